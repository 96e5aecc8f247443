package main

import (
	"strings"

	"turnstile/internal/daemonrun"
)

// resolveOptions reads the daemon's environment overrides. turnstiled takes
// no flags so it can run unchanged under a service manager.
func resolveOptions(getenv func(string) string) (string, daemonrun.Options) {
	configPath := strings.TrimSpace(getenv("TURNSTILE_CONFIG"))
	opts := daemonrun.Options{
		LogLevel:   strings.TrimSpace(getenv("TURNSTILE_LOG_LEVEL")),
		SocketPath: strings.TrimSpace(getenv("TURNSTILE_SOCKET")),
	}
	switch strings.ToLower(strings.TrimSpace(getenv("TURNSTILE_DEV"))) {
	case "1", "true", "yes":
		opts.Development = true
	}
	return configPath, opts
}
