package api

import (
	"context"
	"time"

	"turnstile/internal/desk"
	"turnstile/internal/estimate"
	"turnstile/internal/period"
	"turnstile/internal/queue"
)

// Desk abstracts the desk operations exposed over the API.
type Desk interface {
	CurrentPeriod(ctx context.Context) (period.Window, error)
	TakeToken(ctx context.Context, owner, name, email string) (desk.Ticket, error)
	CallNext(ctx context.Context, worker string) (*queue.Token, error)
	MarkDone(ctx context.Context, tokenID, worker string) (*queue.Token, error)
	ServeBySequence(ctx context.Context, sequence int, worker string) (*queue.Token, error)
	ListQueue(ctx context.Context) ([]estimate.Entry, error)
	DailyStats(ctx context.Context, at time.Time) (desk.DailyStats, error)
	StatsForDate(ctx context.Context, date string) (desk.DailyStats, error)
	Workers(ctx context.Context) ([]queue.WorkerCount, error)
	OwnerHistory(ctx context.Context, owner string) ([]*queue.Token, error)
	Analytics(ctx context.Context) (desk.Analytics, error)
	ApplyRetention(ctx context.Context, policy string) (desk.RetentionResult, error)
}

// QueueService exposes desk operations returning API DTOs.
type QueueService struct {
	desk Desk
}

// NewQueueService constructs a QueueService around the provided desk.
func NewQueueService(d Desk) *QueueService {
	if d == nil {
		return nil
	}
	return &QueueService{desk: d}
}

// Take issues or returns the owner's token.
func (s *QueueService) Take(ctx context.Context, req TakeTokenRequest) (Ticket, error) {
	ticket, err := s.desk.TakeToken(ctx, req.Owner, req.Name, req.Email)
	if err != nil {
		return Ticket{}, err
	}
	return FromTicket(ticket), nil
}

// Next calls the next waiting customer for worker.
func (s *QueueService) Next(ctx context.Context, worker string) (NextResponse, error) {
	token, err := s.desk.CallNext(ctx, worker)
	if err != nil {
		return NextResponse{}, err
	}
	if token == nil {
		return NextResponse{Empty: true}, nil
	}
	dto := FromToken(token)
	return NextResponse{Token: &dto}, nil
}

// Done finishes a serving token by id.
func (s *QueueService) Done(ctx context.Context, tokenID, worker string) (Token, error) {
	token, err := s.desk.MarkDone(ctx, tokenID, worker)
	if err != nil {
		return Token{}, err
	}
	return FromToken(token), nil
}

// Serve finishes the token holding sequence, serving it first if needed.
func (s *QueueService) Serve(ctx context.Context, sequence int, worker string) (Token, error) {
	token, err := s.desk.ServeBySequence(ctx, sequence, worker)
	if err != nil {
		return Token{}, err
	}
	return FromToken(token), nil
}

// List returns the annotated queue of the current period.
func (s *QueueService) List(ctx context.Context) ([]QueueEntry, error) {
	entries, err := s.desk.ListQueue(ctx)
	if err != nil {
		return nil, err
	}
	return FromEntries(entries), nil
}

// Queue returns the annotated queue together with the period it belongs to.
func (s *QueueService) Queue(ctx context.Context) (QueueListResponse, error) {
	window, err := s.desk.CurrentPeriod(ctx)
	if err != nil {
		return QueueListResponse{}, err
	}
	entries, err := s.List(ctx)
	if err != nil {
		return QueueListResponse{}, err
	}
	return QueueListResponse{Period: window.Key, Entries: entries}, nil
}

// Stats reports counts for the period opening on date, or today when empty.
func (s *QueueService) Stats(ctx context.Context, date string) (DailyStats, error) {
	stats, err := s.desk.StatsForDate(ctx, date)
	if err != nil {
		return DailyStats{}, err
	}
	return FromDailyStats(stats), nil
}

// StatsAt reports counts for the period containing at.
func (s *QueueService) StatsAt(ctx context.Context, at time.Time) (DailyStats, error) {
	stats, err := s.desk.DailyStats(ctx, at)
	if err != nil {
		return DailyStats{}, err
	}
	return FromDailyStats(stats), nil
}

// Workers reports per-worker counts for the current period.
func (s *QueueService) Workers(ctx context.Context) ([]WorkerCount, error) {
	counts, err := s.desk.Workers(ctx)
	if err != nil {
		return nil, err
	}
	return FromWorkers(counts), nil
}

// History returns the owner's retained tokens newest first.
func (s *QueueService) History(ctx context.Context, owner string) ([]Token, error) {
	tokens, err := s.desk.OwnerHistory(ctx, owner)
	if err != nil {
		return nil, err
	}
	return FromTokens(tokens), nil
}

// Analytics returns the staff overview of the current period.
func (s *QueueService) Analytics(ctx context.Context) (Analytics, error) {
	report, err := s.desk.Analytics(ctx)
	if err != nil {
		return Analytics{}, err
	}
	return FromAnalytics(report), nil
}

// Archive runs a manual retention pass.
func (s *QueueService) Archive(ctx context.Context, policy string) (RetentionResult, error) {
	result, err := s.desk.ApplyRetention(ctx, policy)
	if err != nil {
		return RetentionResult{}, err
	}
	return FromRetentionResult(result), nil
}
