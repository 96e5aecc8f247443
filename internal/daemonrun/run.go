package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"turnstile/internal/config"
	"turnstile/internal/daemon"
	"turnstile/internal/desk"
	"turnstile/internal/ipc"
	"turnstile/internal/logging"
	"turnstile/internal/notifications"
	"turnstile/internal/queue"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SocketPath overrides the IPC socket location from config.
	SocketPath string
}

// PIDPath returns the pid file the daemon writes into logDir.
func PIDPath(logDir string) string {
	return filepath.Join(logDir, "turnstiled.pid")
}

// Run starts the turnstile daemon and blocks until SIGINT/SIGTERM or ctx is
// canceled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := cfg.LogPath()
	logger, err := logging.New(logging.Options{
		Level:   level,
		Format:  cfg.Logging.Format,
		Outputs: []string{"stdout", logPath},
		Source:  opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logConfigSnapshot(logger, cfg)

	pidPath := PIDPath(cfg.Paths.LogDir)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open token store", logging.Error(err))
		return err
	}

	d, err := desk.New(cfg, store,
		desk.WithLogger(logger),
		desk.WithNotifier(notifications.NewService(cfg)),
	)
	if err != nil {
		store.Close()
		return fmt.Errorf("create desk: %w", err)
	}

	dm, err := daemon.New(cfg, store, d, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer dm.Close()

	if err := dm.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
		)
		return err
	}

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, dm, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("turnstile daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", cfg.Paths.APIToken != ""),
		logging.String("timezone", cfg.Location().String()),
		logging.Int("day_start_hour", cfg.Queue.DayStartHour),
		logging.Int("average_service_minutes", cfg.Queue.AverageServiceMinutes),
		logging.String("retention", cfg.Queue.Retention),
		logging.Bool("enforce_same_worker", cfg.Queue.EnforceSameWorker),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
	)
}
