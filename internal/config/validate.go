package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be zero or positive")
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.average_service_minutes": c.Queue.AverageServiceMinutes,
		"queue.allocation_attempts":     c.Queue.AllocationAttempts,
	}); err != nil {
		return err
	}
	if c.Queue.DayStartHour < 0 || c.Queue.DayStartHour > 23 {
		return errors.New("queue.day_start_hour must be between 0 and 23")
	}
	if !strings.EqualFold(c.Queue.Timezone, "local") {
		if _, err := time.LoadLocation(c.Queue.Timezone); err != nil {
			return fmt.Errorf("queue.timezone: unknown location %q", c.Queue.Timezone)
		}
	}
	switch c.Queue.Retention {
	case RetentionRetain, RetentionPurge:
	case RetentionArchive:
		if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
			return errors.New("paths.archive_dir must be set when queue.retention is archive")
		}
	default:
		return fmt.Errorf("queue.retention must be one of retain, purge, archive (got %q)", c.Queue.Retention)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
