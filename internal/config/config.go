package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	ArchiveDir string `toml:"archive_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Queue contains the token allocation and dispatch policy.
type Queue struct {
	// AverageServiceMinutes is the fixed per-customer multiplier used for wait estimates.
	AverageServiceMinutes int `toml:"average_service_minutes"`
	// AllocationAttempts bounds the retries when concurrent allocations race for a number.
	AllocationAttempts int `toml:"allocation_attempts"`
	// Timezone names the IANA location whose calendar day defines a service period.
	Timezone string `toml:"timezone"`
	// DayStartHour shifts the period boundary (0 = midnight).
	DayStartHour int `toml:"day_start_hour"`
	// Retention decides what happens to tokens from earlier periods: retain, purge, or archive.
	Retention string `toml:"retention"`
	// EnforceSameWorker requires the completing worker to be the one who called the token.
	EnforceSameWorker bool `toml:"enforce_same_worker"`
}

// Notifications configures optional ntfy alerts.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	// NotifyCalled sends an alert each time a worker calls a token.
	NotifyCalled bool `toml:"notify_called"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Retention policies for tokens of expired periods.
const (
	RetentionRetain  = "retain"
	RetentionPurge   = "purge"
	RetentionArchive = "archive"
)

// Config encapsulates all configuration values for Turnstile.
//
// Configuration sections by subsystem:
//   - Paths: storage directories, API bind address and token
//   - Queue: period boundaries, wait estimation, allocation and retention policy
//   - Notifications: ntfy topic and which events are published
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queue         Queue         `toml:"queue"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/turnstile/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("turnstile.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The archive directory is only created when the archive retention policy is active.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Queue.Retention == RetentionArchive && strings.TrimSpace(c.Paths.ArchiveDir) != "" {
		if err := os.MkdirAll(c.Paths.ArchiveDir, 0o755); err != nil {
			return fmt.Errorf("create archive directory %q: %w", c.Paths.ArchiveDir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the token ledger database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "turnstile.db")
}

// SocketPath returns the location of the daemon IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "turnstile.sock")
}

// LogPath returns the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "turnstile.log")
}

// LockPath returns the location of the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "turnstiled.lock")
}

// Location resolves the configured time zone. Unknown names fall back to the local zone;
// Validate rejects them before this is reached in normal operation.
func (c *Config) Location() *time.Location {
	name := strings.TrimSpace(c.Queue.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
