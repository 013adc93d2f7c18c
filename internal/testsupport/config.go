package testsupport

import (
	"path/filepath"
	"testing"

	"polytrain/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.ToolkitDir = filepath.Join(base, "toolkit")
	cfgVal.Paths.ResourceDir = filepath.Join(base, "toolkit", "resources")
	cfgVal.Paths.ConfDir = filepath.Join(base, "toolkit", "conf")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Items = []config.Item{{ID: "cantonese", Tier: config.TierLimited}}

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithItems replaces the configured item set.
func WithItems(items ...config.Item) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Items = append([]config.Item(nil), items...)
	}
}

// WithDispatchCommand overrides the dispatcher command on the test config.
func WithDispatchCommand(command string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dispatch.Command = command
	}
}

// WithSubsets overrides the trainer subset sizes.
func WithSubsets(small, medium, large int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Trainer.SubsetSmall = small
		b.cfg.Trainer.SubsetMedium = medium
		b.cfg.Trainer.SubsetLarge = large
	}
}
