package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Runner contains the scheduling and retry knobs for a batch run.
type Runner struct {
	// MaxJobs caps concurrently running units. Zero selects the host's logical CPU count.
	MaxJobs        int `toml:"max_jobs"`
	MaxRetries     int `toml:"max_retries"`
	BackoffSeconds int `toml:"backoff_seconds"`
}

// Command describes the external program invoked once per work unit attempt.
// Args may reference {path}, {id} and {kind}.
type Command struct {
	Program    string   `toml:"program"`
	Args       []string `toml:"args"`
	WorkingDir string   `toml:"working_dir"`
	Env        []string `toml:"env"`
}

// Classifier contains folder classification settings.
type Classifier struct {
	Ignore      []string `toml:"ignore"`
	DiscPattern string   `toml:"disc_pattern"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for albumrun.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Runner     Runner     `toml:"runner"`
	Command    Command    `toml:"command"`
	Classifier Classifier `toml:"classifier"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the configuration at path, or the first existing candidate
// (~/.config/albumrun/config.toml, then ./albumrun.toml) when path is empty.
// A .env file in the working directory is applied to the environment first.
// It returns the config with paths expanded, the file it used, and whether
// that file existed; a missing file yields validated defaults.
func Load(path string) (*Config, string, bool, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

	source, found, err := locateConfig(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if found {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config %s: %w", source, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", source, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, source, found, nil
}

func locateConfig(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		explicit, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		found, err := isFile(explicit)
		return explicit, found, err
	}

	fallback, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	local, err := filepath.Abs("albumrun.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{fallback, local} {
		if found, _ := isFile(candidate); found {
			return candidate, true, nil
		}
	}
	return fallback, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config %s: %w", path, err)
	case info.IsDir():
		return false, fmt.Errorf("config %s is a directory", path)
	}
	return true, nil
}

// EnsureDirectories creates the log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// EffectiveMaxJobs resolves runner.max_jobs, falling back to the logical CPU count.
func (c *Config) EffectiveMaxJobs() int {
	if c.Runner.MaxJobs > 0 {
		return c.Runner.MaxJobs
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// Backoff returns the base linear backoff between attempts.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Runner.BackoffSeconds) * time.Second
}

// HistoryPath returns the run history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockDir returns the directory holding per-root run locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, "~\\") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = home + value[1:]
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// ExpandPath resolves a leading ~ and makes value absolute.
func ExpandPath(value string) (string, error) { return expandPath(value) }

// CreateSample writes the annotated sample configuration to path, creating
// parent directories as needed.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config %s: %w", path, err)
	}
	return nil
}
