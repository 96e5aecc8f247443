package preflight

import (
	"context"

	"turnstile/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks the daemon needs before it accepts requests.
// The archive directory is only checked when the archive policy is active.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Queue.Retention == config.RetentionArchive {
		results = append(results, CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir))
	}
	results = append(results, CheckBindAddress(cfg.Paths.APIBind))
	return results
}
