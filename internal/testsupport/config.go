package testsupport

import (
	"path/filepath"
	"testing"

	"turnstile/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Periods are computed in UTC so tests are independent of the host zone.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Paths.APIToken = ""
	cfgVal.Queue.Timezone = "UTC"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRetention sets the expired-period retention policy.
func WithRetention(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.Retention = policy
	}
}

// WithAllocationAttempts overrides the allocator retry bound.
func WithAllocationAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.AllocationAttempts = n
	}
}

// WithSameWorker toggles the same-worker completion policy.
func WithSameWorker(enforce bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.EnforceSameWorker = enforce
	}
}

// WithAPIToken sets the bearer token guarding staff endpoints.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
