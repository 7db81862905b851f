package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"omrpipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The engine executable points at a fake that always succeeds unless
// WithEngine overrides it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "data", "ledger.db")
	cfgVal.Engine.SettlePollMillis = 10
	cfgVal.Engine.SettleSmallMillis = 200
	cfgVal.Engine.SettleLargeMillis = 200
	cfgVal.Batch.Concurrency = 2
	cfgVal.Raster.DPI = 72

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	builder.cfg.Engine.Executable = builder.writeBinary("audiveris", fakeEngineHeader+`write_artifacts "$@"`+"\n")

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithEngine writes body as a fake engine (see FakeEngine) and points the
// config at it.
func WithEngine(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.Executable = b.writeBinary("audiveris-custom", fakeEngineHeader+body+"\n")
	}
}

// WithPreset registers a preset and selects it.
func WithPreset(name string, preset config.Preset) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Presets == nil {
			b.cfg.Presets = map[string]config.Preset{}
		}
		b.cfg.Presets[name] = preset
		b.cfg.Engine.Preset = name
	}
}

// WithBundle sets the cleaned page bundling mode ("pdf" or "none").
func WithBundle(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.Bundle = mode
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"audiveris"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			b.writeBinary(name, "#!/bin/sh\nexit 0\n")
		}
		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

func (b *configBuilder) writeBinary(name, content string) string {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(content), 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
