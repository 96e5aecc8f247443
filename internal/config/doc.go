// Package config loads, normalizes, and validates Turnstile configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TURNSTILE_API_TOKEN. The Config type centralizes every knob the daemon and
// CLI need: storage locations, the queue policy (service period, wait
// estimate, retention of expired periods), and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
