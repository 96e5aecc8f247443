package desk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"turnstile/internal/config"
	"turnstile/internal/estimate"
	"turnstile/internal/logging"
	"turnstile/internal/notifications"
	"turnstile/internal/period"
	"turnstile/internal/queue"
)

// Ledger is the subset of queue.Store the desk composes.
type Ledger interface {
	FindActiveByOwner(ctx context.Context, periodKey, owner string) (*queue.Token, error)
	NextSequenceNumber(ctx context.Context, periodKey string) (int, error)
	Create(ctx context.Context, spec queue.NewToken) (*queue.Token, error)
	GetByID(ctx context.Context, id string) (*queue.Token, error)
	ClaimNext(ctx context.Context, periodKey, worker string) (*queue.Token, error)
	Complete(ctx context.Context, id, worker string, opts queue.CompleteOptions) (*queue.Token, error)
	CompleteBySequence(ctx context.Context, periodKey string, sequence int, worker string, opts queue.CompleteOptions) (*queue.Token, error)
	ListPeriod(ctx context.Context, periodKey string) ([]*queue.Token, error)
	ListByOwner(ctx context.Context, owner string, statuses ...queue.Status) ([]*queue.Token, error)
	CountWaitingBefore(ctx context.Context, periodKey string, sequence int) (int, error)
	PeriodStats(ctx context.Context, periodKey string) (queue.PeriodStats, error)
	ServedByWorker(ctx context.Context, periodKey string) ([]queue.WorkerCount, error)
	ListBefore(ctx context.Context, periodKey string) ([]*queue.Token, error)
	PurgeBefore(ctx context.Context, periodKey string) (int64, error)
}

// Desk serves customers and workers against a Ledger.
type Desk struct {
	ledger         Ledger
	clock          period.Clock
	calendar       period.Calendar
	averageMinutes int
	attempts       int
	retention      string
	archiveDir     string
	sameWorker     bool
	logger         *slog.Logger
	notifier       notifications.Service

	// resetKey is the period whose retention pass has been claimed.
	resetKey atomic.Pointer[string]
}

// Option customizes a Desk.
type Option func(*Desk)

// WithClock replaces the wall clock used to resolve the current period.
func WithClock(clock period.Clock) Option {
	return func(d *Desk) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithLogger sets the logger used for queue transition events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Desk) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithNotifier publishes a "now serving" event each time a token is called.
func WithNotifier(notifier notifications.Service) Option {
	return func(d *Desk) {
		if notifier != nil {
			d.notifier = notifier
		}
	}
}

// New builds a Desk from the queue policy in cfg.
func New(cfg *config.Config, ledger Ledger, opts ...Option) (*Desk, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidRequest)
	}
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger is required", ErrInvalidRequest)
	}
	calendar, err := period.NewCalendar(cfg.Location(), cfg.Queue.DayStartHour)
	if err != nil {
		return nil, fmt.Errorf("desk calendar: %w", err)
	}

	d := &Desk{
		ledger:         ledger,
		clock:          period.Real(),
		calendar:       calendar,
		averageMinutes: cfg.Queue.AverageServiceMinutes,
		attempts:       cfg.Queue.AllocationAttempts,
		retention:      strings.ToLower(strings.TrimSpace(cfg.Queue.Retention)),
		archiveDir:     cfg.Paths.ArchiveDir,
		sameWorker:     cfg.Queue.EnforceSameWorker,
		logger:         logging.NewNop(),
		notifier:       notifications.Noop(),
	}
	if d.averageMinutes <= 0 {
		d.averageMinutes = estimate.DefaultAverageServiceMinutes
	}
	if d.attempts <= 0 {
		d.attempts = 3
	}
	if d.retention == "" {
		d.retention = config.RetentionRetain
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "desk")
	return d, nil
}

// Calendar exposes the period calendar the desk resolves windows with.
func (d *Desk) Calendar() period.Calendar {
	return d.calendar
}

// AverageServiceMinutes returns the configured per-head wait multiplier.
func (d *Desk) AverageServiceMinutes() int {
	return d.averageMinutes
}

// Now returns the desk clock's current time.
func (d *Desk) Now() time.Time {
	return d.clock.Now()
}

func (d *Desk) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, d.logger)
}

func requireWorker(worker string) (string, error) {
	worker = strings.TrimSpace(worker)
	if worker == "" {
		return "", fmt.Errorf("%w: worker is required", ErrInvalidRequest)
	}
	return worker, nil
}
