package config

const (
	defaultDataDir               = "~/.local/share/turnstile"
	defaultLogDir                = "~/.local/share/turnstile/logs"
	defaultArchiveDir            = "~/.local/share/turnstile/archive"
	defaultAPIBind               = "127.0.0.1:7490"
	defaultAverageServiceMinutes = 5
	defaultAllocationAttempts    = 3
	defaultTimezone              = "Local"
	defaultRetention             = RetentionRetain
	defaultNtfyRequestTimeout    = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			ArchiveDir: defaultArchiveDir,
			APIBind:    defaultAPIBind,
		},
		Queue: Queue{
			AverageServiceMinutes: defaultAverageServiceMinutes,
			AllocationAttempts:    defaultAllocationAttempts,
			Timezone:              defaultTimezone,
			Retention:             defaultRetention,
			EnforceSameWorker:     true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			NotifyCalled:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
