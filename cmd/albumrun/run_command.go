package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"albumrun/internal/classify"
	"albumrun/internal/config"
	"albumrun/internal/execution"
	"albumrun/internal/history"
	"albumrun/internal/logging"
	"albumrun/internal/preflight"
	"albumrun/internal/report"
	"albumrun/internal/runlock"
	"albumrun/internal/scheduler"
)

type runOptions struct {
	maxJobs    int
	maxRetries int
	backoff    time.Duration
	dryRun     bool
	logDir     string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <root> [-- passthrough...]",
		Short: "Classify a library root and run the command once per album folder",
		Long: `Classify every album folder under <root> and run the configured command for
each one with bounded parallelism. Failed attempts are retried with linear
backoff. Arguments after -- are appended verbatim to every command.

Exit status is 0 when no folder failed and 1 otherwise. An interrupted run
(SIGINT or SIGTERM) also exits 1, even if nothing failed, so it is never
mistaken for a complete run.`,
		Args: func(cmd *cobra.Command, args []string) error {
			positional := args
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				positional = args[:dash]
			}
			if len(positional) != 1 {
				return fmt.Errorf("run requires exactly one root directory, got %d", len(positional))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var passthrough []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				passthrough = append([]string(nil), args[dash:]...)
			}
			if cmd.Flags().Changed("max-jobs") && opts.maxJobs < 1 {
				return fmt.Errorf("--max-jobs must be at least 1, got %d", opts.maxJobs)
			}
			if cmd.Flags().Changed("max-retries") && opts.maxRetries < 1 {
				return fmt.Errorf("--max-retries must be at least 1, got %d", opts.maxRetries)
			}
			if opts.backoff < 0 {
				return fmt.Errorf("--backoff must not be negative, got %s", opts.backoff)
			}
			return runBatch(cmd, cfg, args[0], passthrough, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.maxJobs, "max-jobs", "j", 0, "Maximum concurrent commands (default: runner.max_jobs or logical CPU count)")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", 0, "Attempts per folder before it is marked failed (default: runner.max_retries)")
	cmd.Flags().DurationVar(&opts.backoff, "backoff", 0, "Base linear backoff between attempts (default: runner.backoff_seconds)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Log the commands that would run without executing them")
	cmd.Flags().StringVar(&opts.logDir, "log-dir", "", "Directory for run and per-folder logs (default: paths.log_dir)")
	return cmd
}

func runBatch(cmd *cobra.Command, cfg *config.Config, rootArg string, passthrough []string, opts runOptions) error {
	started := time.Now()

	root, err := config.ExpandPath(strings.TrimSpace(rootArg))
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	maxJobs := cfg.EffectiveMaxJobs()
	if cmd.Flags().Changed("max-jobs") {
		maxJobs = opts.maxJobs
	}
	maxRetries := cfg.Runner.MaxRetries
	if cmd.Flags().Changed("max-retries") {
		maxRetries = opts.maxRetries
	}
	backoff := cfg.Backoff()
	if cmd.Flags().Changed("backoff") {
		backoff = opts.backoff
	}
	logDir := cfg.Paths.LogDir
	if dir := strings.TrimSpace(opts.logDir); dir != "" {
		if logDir, err = config.ExpandPath(dir); err != nil {
			return fmt.Errorf("resolve log dir: %w", err)
		}
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("create log directory %q: %w", logDir, err)
	}

	if !opts.dryRun {
		for _, status := range preflight.CheckCommand(cfg) {
			if !status.Available {
				return fmt.Errorf("%s unavailable: %s", strings.ToLower(status.Name), status.Detail)
			}
		}
	}

	lock, err := runlock.Acquire(cfg.LockDir(), root)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	runID := uuid.NewString()
	runLogPath := filepath.Join(logDir, fmt.Sprintf("albumrun-%s.log", runID))
	logger, closeLogs, err := logging.NewFromConfig(cfg, runLogPath)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = closeLogs() }()
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	unitLogRoot := filepath.Join(logDir, "units")
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: logDir, Pattern: "albumrun-*.log", Exclude: []string{runLogPath}},
		logging.RetentionTarget{Dir: unitLogRoot, Pattern: "*", Directories: true},
	)

	classifier, err := classify.New(classify.Options{
		Ignore:      cfg.Classifier.Ignore,
		DiscPattern: cfg.Classifier.DiscPattern,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	units, err := classifier.Classify(root)
	if err != nil {
		return err
	}
	plan := classify.NewPlan(root, units)
	logger.Info("run started",
		logging.String("root", root),
		logging.Int("units", plan.Total()),
		logging.Int("single", plan.Singles),
		logging.Int("multi_disc", plan.MultiDisc),
		logging.Int("max_jobs", maxJobs),
		logging.Int("max_retries", maxRetries),
		logging.Duration("backoff", backoff),
		logging.Bool("dry_run", opts.dryRun),
		logging.String("run_log", runLogPath),
		logging.String(logging.FieldEventType, "run_started"),
	)

	recorder := openRecorder(cfg, logger, history.RunParams{
		ID:         runID,
		Root:       root,
		MaxJobs:    maxJobs,
		MaxRetries: maxRetries,
		DryRun:     opts.dryRun,
	})
	defer recorder.close()

	var runner execution.Runner = execution.ExecRunner{}
	if opts.dryRun {
		runner = execution.DryRunRunner{}
	}
	executor, err := execution.NewExecutor(execution.Options{
		Builder:     execution.NewTemplateBuilder(cfg.Command, passthrough),
		Runner:      runner,
		MaxRetries:  maxRetries,
		BaseBackoff: backoff,
		LogDir:      filepath.Join(unitLogRoot, runID),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	sched, err := scheduler.New(scheduler.Options{
		MaxConcurrency: maxJobs,
		Executor:       executor,
		Hooks:          scheduler.Hooks{OnComplete: recorder.record},
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	outcome := sched.Run(runCtx, units)
	stop()

	recorder.finish(outcome)

	elapsed := time.Since(started)
	logger.Info("run finished",
		logging.Int("succeeded", len(outcome.Summary.Succeeded)),
		logging.Int("failed", len(outcome.Summary.Failed)),
		logging.Int("skipped", len(outcome.Summary.Skipped)),
		logging.Int("interrupted", len(outcome.Summary.Interrupted)),
		logging.Bool("interrupted", outcome.Interrupted),
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "run_finished"),
	)

	out := cmd.OutOrStdout()
	if err := report.Render(out, outcome.Summary, outcome.Results, report.Options{
		Color:   report.ShouldColor(out),
		Elapsed: elapsed,
	}); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	fmt.Fprintf(out, "Run %s logs: %s\n", shortRunID(runID), runLogPath)

	if code := report.ExitCode(outcome.Summary); code != 0 {
		return &exitCodeError{code: code}
	}
	if outcome.Interrupted {
		return &exitCodeError{code: 1, message: "run interrupted before all folders were processed"}
	}
	return nil
}

// runRecorder persists progress to the history store. History is advisory:
// failures are logged and the run continues without it.
type runRecorder struct {
	store  *history.Store
	runID  string
	logger *slog.Logger
}

func openRecorder(cfg *config.Config, logger *slog.Logger, params history.RunParams) *runRecorder {
	r := &runRecorder{runID: params.ID, logger: logger}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		r.warn("run history unavailable", err)
		return r
	}
	if _, err := store.BeginRun(context.Background(), params); err != nil {
		_ = store.Close()
		r.warn("run history unavailable", err)
		return r
	}
	r.store = store
	return r
}

func (r *runRecorder) record(result execution.JobResult) {
	if r.store == nil {
		return
	}
	if err := r.store.RecordResult(context.Background(), r.runID, result); err != nil {
		r.warn("failed to record unit result", err, logging.String(logging.FieldUnitID, result.UnitID()))
	}
}

func (r *runRecorder) finish(outcome scheduler.Outcome) {
	if r.store == nil {
		return
	}
	if err := r.store.FinishRun(context.Background(), r.runID, outcome.Summary, outcome.Interrupted); err != nil {
		r.warn("failed to finish run history", err)
	}
}

func (r *runRecorder) close() {
	if r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		r.warn("failed to close run history", err)
	}
}

func (r *runRecorder) warn(msg string, err error, attrs ...logging.Attr) {
	attrs = append(attrs,
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check state_dir permissions; albumrun history will miss this run"),
		logging.String(logging.FieldImpact, "run continues without history"),
	)
	logging.WarnWithContext(r.logger, msg, "history_unavailable", attrs...)
}

func shortRunID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
