package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"turnstile/internal/logging"
	"turnstile/internal/notifications"
	"turnstile/internal/period"
)

type periodResolver interface {
	EnsureCurrentPeriod(ctx context.Context) (period.Window, error)
}

// periodWatcher polls the desk so the retention pass for a new period runs
// shortly after the boundary even when no request arrives.
type periodWatcher struct {
	desk     periodResolver
	notifier notifications.Service
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	running bool
	current string
	failing bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newPeriodWatcher(desk periodResolver, notifier notifications.Service, logger *slog.Logger, interval time.Duration) *periodWatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.Noop()
	}
	return &periodWatcher{
		desk:     desk,
		notifier: notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "period-watcher")),
		interval: interval,
	}
}

func (w *periodWatcher) Start(ctx context.Context, currentKey string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.current = currentKey
	w.running = true

	w.wg.Add(1)
	go w.loop(runCtx)
}

func (w *periodWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

// Current returns the last period key the watcher observed.
func (w *periodWatcher) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *periodWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *periodWatcher) poll(ctx context.Context) {
	window, err := w.desk.EnsureCurrentPeriod(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("period check failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldPeriod, window.Key),
			logging.String(logging.FieldEventType, "period_check_failed"),
		)
		w.mu.Lock()
		firstFailure := !w.failing
		w.failing = true
		w.mu.Unlock()
		if firstFailure {
			w.publish(ctx, notifications.EventError, notifications.Payload{"context": "period reset", "error": err.Error()})
		}
		return
	}

	w.mu.Lock()
	previous := w.current
	w.current = window.Key
	w.failing = false
	w.mu.Unlock()

	if previous != window.Key {
		w.logger.Info("service period rolled over",
			logging.String("previous_period", previous),
			logging.String(logging.FieldPeriod, window.Key),
			logging.String(logging.FieldEventType, "period_reset"),
		)
		w.publish(ctx, notifications.EventPeriodReset, notifications.Payload{"period": window.Key, "previous": previous})
	}
}

func (w *periodWatcher) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := w.notifier.Publish(ctx, event, payload); err != nil {
		w.logger.Warn("period notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
		)
	}
}
