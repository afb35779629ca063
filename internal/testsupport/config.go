package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"albumrun/internal/config"
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
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Runner.MaxJobs = 2
	cfgVal.Runner.BackoffSeconds = 0
	cfgVal.Logging.RetentionDays = 0

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

// WithCommand overrides the per-unit command on the test config.
func WithCommand(program string, args ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Command.Program = program
		b.cfg.Command.Args = append([]string(nil), args...)
	}
}

// WithRunner overrides the concurrency and retry settings.
func WithRunner(maxJobs, maxRetries int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Runner.MaxJobs = maxJobs
		b.cfg.Runner.MaxRetries = maxRetries
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, beet is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"beet"}
		}
		for _, name := range names {
			WriteStub(b.t, b.baseDir, name, "exit 0")
		}
	}
}

// WithStubScript writes a stub executable named name whose body is the given
// shell snippet, and prepends it to PATH.
func WithStubScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		WriteStub(b.t, b.baseDir, name, body)
	}
}

// WriteStub creates base/bin/name as a /bin/sh script running body and makes
// sure base/bin is first on PATH for the rest of the test.
func WriteStub(t testing.TB, base, name, body string) string {
	t.Helper()

	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	script := []byte("#!/bin/sh\n" + body + "\n")
	if err := os.WriteFile(target, script, 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}

	oldPath := os.Getenv("PATH")
	if parts := filepath.SplitList(oldPath); len(parts) > 0 && parts[0] == binDir {
		return target
	}
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
