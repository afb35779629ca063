package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"albumrun/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// OutputPaths accepts "stdout", "stderr" or file paths. Empty means stdout.
	OutputPaths []string
	// RunLogPath, when set, receives a JSON copy of every record regardless of Format.
	RunLogPath string
}

// New constructs a slog logger using the provided options. The returned
// close function releases any log files it opened.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	source := level.Level() <= slog.LevelDebug

	var files []*os.File
	closeFiles := func() error {
		var errs []error
		for _, f := range files {
			errs = append(errs, f.Close())
		}
		files = nil
		return errors.Join(errs...)
	}

	out, opened, err := openOutputs(opts.OutputPaths)
	files = append(files, opened...)
	if err != nil {
		_ = closeFiles()
		return nil, nil, err
	}

	var handler slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		handler = newConsoleHandler(out, level, source)
	case "json":
		handler = newJSONHandler(out, level, source)
	default:
		_ = closeFiles()
		return nil, nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if path := strings.TrimSpace(opts.RunLogPath); path != "" {
		runLog, err := openFile(path)
		if err != nil {
			_ = closeFiles()
			return nil, nil, err
		}
		files = append(files, runLog)
		handler = newTeeHandler(handler, newJSONHandler(runLog, level, source))
	}
	return slog.New(handler), closeFiles, nil
}

// NewFromConfig builds the logger for a command. Records go to stderr in
// logging.format so stdout carries only command output; runLogPath (if any)
// gets a JSON copy.
func NewFromConfig(cfg *config.Config, runLogPath string) (*slog.Logger, func() error, error) {
	opts := Options{Level: "info", Format: "console", OutputPaths: []string{"stderr"}, RunLogPath: runLogPath}
	if cfg != nil {
		opts.Level = cfg.Logging.Level
		opts.Format = cfg.Logging.Format
	}
	return New(opts)
}

// Enabled reports whether logger emits records at level. A nil logger is never enabled.
func Enabled(logger *slog.Logger, level slog.Level) bool {
	return logger != nil && logger.Enabled(context.Background(), level)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutputs(paths []string) (io.Writer, []*os.File, error) {
	var (
		writers []io.Writer
		files   []*os.File
	)
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		switch p {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			f, err := openFile(p)
			if err != nil {
				return nil, files, err
			}
			files = append(files, f)
			writers = append(writers, f)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, files, nil
	case 1:
		return writers[0], files, nil
	}
	return io.MultiWriter(writers...), files, nil
}

func openFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

// newJSONHandler renames time to "ts" (RFC3339, UTC), lowercases the level
// and shortens source to file:line.
func newJSONHandler(w io.Writer, level slog.Leveler, source bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: source,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				if a.Value.Kind() == slog.KindTime {
					return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339))
				}
				a.Key = "ts"
			case slog.LevelKey:
				a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
			case slog.SourceKey:
				if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
					a.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return a
		},
	})
}
