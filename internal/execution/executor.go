package execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"albumrun/internal/classify"
	"albumrun/internal/logging"
	"albumrun/internal/textutil"
)

// Status is the terminal outcome of a work unit. StatusInterrupted marks a
// unit whose retries were cut short by cancellation with attempts left.
type Status string

const (
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Attempt records one try of a unit's command. It is only logged.
type Attempt struct {
	UnitID     string
	Number     int
	ExitStatus int
	StartedAt  time.Time
	Duration   time.Duration
	Err        error
}

// JobResult is the immutable terminal outcome for one unit.
type JobResult struct {
	Index        int
	Unit         classify.WorkUnit
	Status       Status
	AttemptsUsed int
	LogPath      string
	Duration     time.Duration
	// Error describes the last failure; empty on success.
	Error string
}

// UnitID returns the identifier of the unit this result belongs to.
func (r JobResult) UnitID() string { return r.Unit.ID }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configure an Executor.
type Options struct {
	Builder     CommandBuilder
	Runner      Runner
	MaxRetries  int
	BaseBackoff time.Duration
	// LogDir receives one append-only log file per unit.
	LogDir string
	Sleep  SleepFunc
	Logger *slog.Logger
}

// Executor runs a unit's command with linear backoff retries.
type Executor struct {
	builder     CommandBuilder
	runner      Runner
	maxRetries  int
	baseBackoff time.Duration
	logDir      string
	sleep       SleepFunc
	logger      *slog.Logger
}

// NewExecutor validates options and returns an Executor.
func NewExecutor(opts Options) (*Executor, error) {
	if opts.Builder == nil {
		return nil, errors.New("command builder is required")
	}
	if opts.MaxRetries < 1 {
		return nil, fmt.Errorf("max retries must be at least 1, got %d", opts.MaxRetries)
	}
	if opts.BaseBackoff < 0 {
		return nil, fmt.Errorf("backoff must not be negative, got %s", opts.BaseBackoff)
	}
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Executor{
		builder:     opts.Builder,
		runner:      runner,
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.BaseBackoff,
		logDir:      opts.LogDir,
		sleep:       sleep,
		logger:      logging.NewComponentLogger(opts.Logger, "executor"),
	}, nil
}

// LogName returns the per-unit log file name for the unit at 0-based index.
func LogName(index int, unitID string) string {
	name := textutil.SanitizeFileName(unitID)
	if name == "" {
		name = "unit"
	}
	return fmt.Sprintf("%03d_%s.log", index+1, name)
}

// Backoff returns the wait after failed attempt n.
func Backoff(attempt int, base time.Duration) time.Duration {
	return time.Duration(attempt) * base
}

// Execute runs unit until it succeeds or MaxRetries attempts have failed.
// Cancellation of ctx interrupts backoff waits only; a running attempt is
// allowed to finish. A unit stopped between attempts is StatusInterrupted.
func (e *Executor) Execute(ctx context.Context, index int, unit classify.WorkUnit) JobResult {
	started := time.Now()
	result := JobResult{Index: index, Unit: unit, Status: StatusFailed}
	unitCtx := logging.WithUnitID(ctx, unit.ID)
	logger := logging.WithContext(unitCtx, e.logger)

	cmd, err := e.builder.Build(unit)
	if err != nil {
		result.Error = fmt.Sprintf("build command: %v", err)
		result.Duration = time.Since(started)
		logging.ErrorWithContext(logger, "command build failed", "unit_build_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check [command] program and args"),
		)
		return result
	}

	out, logPath, closeLog := e.openLog(logger, index, unit)
	defer closeLog()
	result.LogPath = logPath

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		attemptCtx := logging.WithAttempt(unitCtx, attempt)
		rec := e.runAttempt(attemptCtx, cmd, unit, attempt, out)
		result.AttemptsUsed = attempt
		attemptLogger := logging.WithContext(attemptCtx, e.logger)

		if rec.Err == nil && rec.ExitStatus == 0 {
			result.Status = StatusSucceeded
			result.Error = ""
			attemptLogger.Debug("attempt succeeded",
				logging.Duration("duration", rec.Duration),
				logging.String(logging.FieldEventType, "unit_attempt_succeeded"),
			)
			break
		}

		if rec.Err != nil {
			result.Error = rec.Err.Error()
		} else {
			result.Error = fmt.Sprintf("exit status %d", rec.ExitStatus)
		}

		if attempt == e.maxRetries {
			break
		}

		wait := Backoff(attempt, e.baseBackoff)
		logging.WarnWithContext(attemptLogger, "attempt failed; retrying", "unit_attempt_failed",
			logging.Int("exit_status", rec.ExitStatus),
			logging.String("reason", result.Error),
			logging.Duration("backoff", wait),
			logging.String(logging.FieldErrorHint, "see unit log "+logPath),
			logging.String(logging.FieldImpact, "unit will be retried"),
		)
		if err := e.sleep(ctx, wait); err != nil {
			result.Status = StatusInterrupted
			result.Error = fmt.Sprintf("%s; retries stopped: %v", result.Error, err)
			writeMarker(out, "=== retries stopped: %v ===\n", err)
			break
		}
	}

	result.Duration = time.Since(started)
	return result
}

func (e *Executor) runAttempt(ctx context.Context, cmd Command, unit classify.WorkUnit, attempt int, out io.Writer) Attempt {
	rec := Attempt{UnitID: unit.ID, Number: attempt, StartedAt: time.Now()}
	writeMarker(out, "=== attempt %d/%d started %s ===\n$ %s\n",
		attempt, e.maxRetries, rec.StartedAt.UTC().Format(time.RFC3339), cmd)

	status, err := e.runner.Run(ctx, cmd, out)
	rec.ExitStatus = status
	rec.Err = err
	rec.Duration = time.Since(rec.StartedAt)

	if err != nil {
		writeMarker(out, "=== attempt %d could not run: %v ===\n", attempt, err)
	} else {
		writeMarker(out, "=== attempt %d exit status %d (%s) ===\n",
			attempt, status, rec.Duration.Round(time.Millisecond))
	}
	return rec
}

func (e *Executor) openLog(logger *slog.Logger, index int, unit classify.WorkUnit) (io.Writer, string, func()) {
	if e.logDir == "" {
		return io.Discard, "", func() {}
	}
	path := filepath.Join(e.logDir, LogName(index, unit.ID))
	if err := os.MkdirAll(e.logDir, 0o755); err != nil {
		e.warnLog(logger, path, err)
		return io.Discard, "", func() {}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		e.warnLog(logger, path, err)
		return io.Discard, "", func() {}
	}
	return file, path, func() { _ = file.Close() }
}

func (e *Executor) warnLog(logger *slog.Logger, path string, err error) {
	logging.WarnWithContext(logger, "unit log unavailable; output discarded", "unit_log_unavailable",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check log_dir permissions"),
		logging.String(logging.FieldImpact, "command output for this unit is not kept"),
	)
}

func writeMarker(out io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(out, format, args...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
