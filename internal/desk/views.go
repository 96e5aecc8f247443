package desk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"turnstile/internal/estimate"
	"turnstile/internal/period"
	"turnstile/internal/queue"
)

// DailyStats aggregates one period for reporting.
type DailyStats struct {
	Period  period.Window
	Served  int
	Waiting int
	Serving int
	Total   int
}

// Analytics is the staff overview of the current period.
type Analytics struct {
	Period  period.Window
	Summary estimate.Summary
	Entries []estimate.Entry
	Workers []queue.WorkerCount
}

// ListQueue returns the current period's tokens in creation order, each
// annotated with its ahead count and wait estimate.
func (d *Desk) ListQueue(ctx context.Context) ([]estimate.Entry, error) {
	window, err := d.CurrentPeriod(ctx)
	if err != nil {
		return nil, err
	}
	tokens, err := d.ledger.ListPeriod(ctx, window.Key)
	if err != nil {
		return nil, err
	}
	return estimate.Snapshot(tokens, d.averageMinutes), nil
}

// DailyStats reports counts for the period containing at.
func (d *Desk) DailyStats(ctx context.Context, at time.Time) (DailyStats, error) {
	if _, err := d.CurrentPeriod(ctx); err != nil {
		return DailyStats{}, err
	}
	return d.statsFor(ctx, d.calendar.Window(at))
}

// StatsForDate reports counts for the period that opens on date (YYYY-MM-DD).
// An empty date selects the current period.
func (d *Desk) StatsForDate(ctx context.Context, date string) (DailyStats, error) {
	if strings.TrimSpace(date) == "" {
		return d.DailyStats(ctx, d.clock.Now())
	}
	window, err := d.calendar.ParseDate(date)
	if err != nil {
		return DailyStats{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if _, err := d.CurrentPeriod(ctx); err != nil {
		return DailyStats{}, err
	}
	return d.statsFor(ctx, window)
}

func (d *Desk) statsFor(ctx context.Context, window period.Window) (DailyStats, error) {
	stats, err := d.ledger.PeriodStats(ctx, window.Key)
	if err != nil {
		return DailyStats{}, err
	}
	return DailyStats{
		Period:  window,
		Served:  stats.Done,
		Waiting: stats.Waiting,
		Serving: stats.Serving,
		Total:   stats.Total,
	}, nil
}

// Workers reports per-worker counts for the current period.
func (d *Desk) Workers(ctx context.Context) ([]queue.WorkerCount, error) {
	window, err := d.CurrentPeriod(ctx)
	if err != nil {
		return nil, err
	}
	return d.ledger.ServedByWorker(ctx, window.Key)
}

// OwnerHistory returns every retained token of owner, newest first.
func (d *Desk) OwnerHistory(ctx context.Context, owner string) ([]*queue.Token, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidRequest)
	}
	return d.ledger.ListByOwner(ctx, owner)
}

// Analytics gathers the current period's summary, annotated queue, and
// per-worker counts.
func (d *Desk) Analytics(ctx context.Context) (Analytics, error) {
	window, err := d.CurrentPeriod(ctx)
	if err != nil {
		return Analytics{}, err
	}
	tokens, err := d.ledger.ListPeriod(ctx, window.Key)
	if err != nil {
		return Analytics{}, err
	}
	workers, err := d.ledger.ServedByWorker(ctx, window.Key)
	if err != nil {
		return Analytics{}, err
	}
	return Analytics{
		Period:  window,
		Summary: estimate.Summarize(tokens, d.averageMinutes),
		Entries: estimate.Snapshot(tokens, d.averageMinutes),
		Workers: workers,
	}, nil
}
