package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"turnstile/internal/api"
	"turnstile/internal/config"
	"turnstile/internal/desk"
	"turnstile/internal/logging"
	"turnstile/internal/notifications"
	"turnstile/internal/preflight"
	"turnstile/internal/queue"
)

// Daemon owns the token desk for the lifetime of the process and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	desk    *desk.Desk
	service *api.QueueService
	logPath string

	lockPath string
	lock     *flock.Flock

	watcher *periodWatcher
	api     *apiServer

	running   atomic.Bool
	mu        sync.Mutex
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	SocketPath   string
	APIBind      string
	StartedAt    time.Time
	Today        desk.DailyStats
	Counts       map[queue.Status]int
	LastError    string
}

// New constructs a daemon around an open store and the desk serving it.
func New(cfg *config.Config, store *queue.Store, d *desk.Desk, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || d == nil {
		return nil, errors.New("daemon requires config, store, and desk")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	daemon := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		desk:     d,
		service:  api.NewQueueService(d),
		logPath:  cfg.LogPath(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	daemon.watcher = newPeriodWatcher(d, notifications.NewService(cfg), logger, time.Minute)
	daemon.api = newAPIServer(cfg, daemon, logger)
	return daemon, nil
}

// Start acquires the daemon lock, runs preflight checks, and brings up the
// API server and period watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another turnstile daemon instance is already running")
	}

	if failed := failedChecks(preflight.RunAll(ctx, d.cfg)); len(failed) > 0 {
		_ = d.lock.Unlock()
		return fmt.Errorf("preflight failed: %s", strings.Join(failed, "; "))
	}

	window, err := d.desk.EnsureCurrentPeriod(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("resolve current period: %w", err)
	}

	d.mu.Lock()
	d.ctx, d.cancel = context.WithCancel(ctx)
	runCtx := d.ctx
	d.mu.Unlock()

	if err := d.api.start(runCtx); err != nil {
		d.mu.Lock()
		d.cancel()
		d.ctx, d.cancel = nil, nil
		d.mu.Unlock()
		_ = d.lock.Unlock()
		return err
	}
	d.watcher.Start(runCtx, window.Key)

	d.mu.Lock()
	d.startedAt = time.Now()
	d.mu.Unlock()
	d.running.Store(true)
	d.logger.Info("turnstile daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldPeriod, window.Key),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop shuts down the API server and watcher and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel := d.cancel
	d.ctx, d.cancel = nil, nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.watcher.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("turnstile daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Service returns the DTO-level facade shared by the HTTP and IPC surfaces.
func (d *Daemon) Service() *api.QueueService {
	return d.service
}

// QueueHealth returns aggregate token counts across retained periods.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddress returns the address the HTTP API is bound to, or "" when it is
// disabled or not yet listening.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status. Count failures are reported in
// LastError rather than failing the whole call.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		APIBind:      d.APIAddress(),
		StartedAt:    startedAt,
	}
	if status.APIBind == "" {
		status.APIBind = strings.TrimSpace(d.cfg.Paths.APIBind)
	}

	today, err := d.desk.DailyStats(ctx, d.desk.Now())
	if err != nil {
		status.LastError = err.Error()
	}
	status.Today = today

	counts, err := d.store.Stats(ctx)
	if err != nil && status.LastError == "" {
		status.LastError = err.Error()
	}
	status.Counts = counts
	return status
}

// API converts the status into its transport representation.
func (s Status) API() api.DaemonStatus {
	return api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		DatabasePath: s.DatabasePath,
		LockFilePath: s.LockFilePath,
		SocketPath:   s.SocketPath,
		APIBind:      s.APIBind,
		StartedAt:    api.FormatTime(s.StartedAt),
		Today:        api.FromDailyStats(s.Today),
		Counts:       api.MergeQueueStats(s.Counts),
		LastError:    s.LastError,
	}
}

func failedChecks(results []preflight.Result) []string {
	var failed []string
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result.Name+": "+result.Detail)
		}
	}
	return failed
}
