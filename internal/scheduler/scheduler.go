package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"albumrun/internal/classify"
	"albumrun/internal/execution"
	"albumrun/internal/logging"
	"albumrun/internal/report"
)

// UnitExecutor runs one unit to a terminal result. *execution.Executor implements it.
type UnitExecutor interface {
	Execute(ctx context.Context, index int, unit classify.WorkUnit) execution.JobResult
}

// Hooks observe progress. They are called from worker goroutines and must be
// safe for concurrent use.
type Hooks struct {
	OnDispatch func(index int, unit classify.WorkUnit)
	OnComplete func(result execution.JobResult)
}

// Options configure a Scheduler.
type Options struct {
	MaxConcurrency int
	Executor       UnitExecutor
	Hooks          Hooks
	Logger         *slog.Logger
}

// Outcome is the result of one Run.
type Outcome struct {
	Summary report.RunSummary
	// Results holds completed units in input order.
	Results []execution.JobResult
	// Interrupted is set when cancellation left units undispatched or stopped
	// a unit between attempts.
	Interrupted bool
}

// Scheduler dispatches units to at most MaxConcurrency concurrent executions.
// A Scheduler runs one batch at a time.
type Scheduler struct {
	maxConcurrency int
	executor       UnitExecutor
	hooks          Hooks
	logger         *slog.Logger

	runMu sync.Mutex

	mu      sync.Mutex
	states  []State
	results []*execution.JobResult
	running int
	peak    int
}

// New validates options and returns a Scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max concurrency must be positive, got %d", opts.MaxConcurrency)
	}
	if opts.Executor == nil {
		return nil, errors.New("executor is required")
	}
	return &Scheduler{
		maxConcurrency: opts.MaxConcurrency,
		executor:       opts.Executor,
		hooks:          opts.Hooks,
		logger:         logging.NewComponentLogger(opts.Logger, "scheduler"),
	}, nil
}

// Run executes every unit and returns once all of them reached a terminal
// state. Cancelling ctx stops dispatching new units; units already running
// finish, and the rest are reported as skipped.
func (s *Scheduler) Run(ctx context.Context, units []classify.WorkUnit) Outcome {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.reset(len(units))

	workers := min(s.maxConcurrency, len(units))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				s.runUnit(ctx, idx, units[idx], len(units))
			}
		}()
	}

	dispatched := 0
dispatch:
	for i := range units {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	outcome := Outcome{Results: s.collect(), Interrupted: dispatched < len(units)}
	if dispatched < len(units) {
		s.skipPending(units)
		logging.WarnWithContext(s.logger, "run interrupted; remaining units skipped", "run_interrupted",
			logging.Int("dispatched", dispatched),
			logging.Int("skipped", len(units)-dispatched),
			logging.String(logging.FieldErrorHint, "re-run the same root to process the skipped folders"),
			logging.String(logging.FieldImpact, "some folders were not processed"),
		)
	}
	outcome.Summary = report.Summarize(units, outcome.Results)
	if len(outcome.Summary.Interrupted) > 0 {
		outcome.Interrupted = true
	}
	return outcome
}

func (s *Scheduler) runUnit(ctx context.Context, index int, unit classify.WorkUnit, total int) {
	if err := s.begin(index); err != nil {
		logging.ErrorWithContext(s.logger, "unit dispatch rejected", "unit_state_invalid", logging.Error(err))
		return
	}
	logger := s.logger.With(
		logging.String(logging.FieldUnitID, unit.ID),
		logging.String(logging.FieldUnitKind, string(unit.Kind)),
	)
	logger.Info("unit dispatched",
		logging.String("position", fmt.Sprintf("%d/%d", index+1, total)),
		logging.String(logging.FieldEventType, "unit_dispatched"),
	)
	if s.hooks.OnDispatch != nil {
		s.hooks.OnDispatch(index, unit)
	}

	result := s.executor.Execute(ctx, index, unit)
	result.Index = index
	result.Unit = unit

	if err := s.finish(index, result); err != nil {
		logging.ErrorWithContext(s.logger, "unit completion rejected", "unit_state_invalid", logging.Error(err))
		return
	}
	switch result.Status {
	case execution.StatusSucceeded:
		logger.Info("unit succeeded",
			logging.Int("attempts", result.AttemptsUsed),
			logging.Duration("duration", result.Duration),
			logging.String(logging.FieldEventType, "unit_succeeded"),
		)
	case execution.StatusInterrupted:
		logging.WarnWithContext(logger, "unit interrupted before its retries ran out", "unit_interrupted",
			logging.Int("attempts", result.AttemptsUsed),
			logging.String("reason", result.Error),
			logging.String(logging.FieldErrorHint, "re-run the same root to retry this folder"),
			logging.String(logging.FieldImpact, "folder was not processed to completion"),
		)
	default:
		logging.ErrorWithContext(logger, "unit failed", "unit_failed",
			logging.Int("attempts", result.AttemptsUsed),
			logging.String("reason", result.Error),
			logging.String("log_path", result.LogPath),
			logging.String(logging.FieldErrorHint, "inspect the unit log, then re-run this folder"),
		)
	}
	if s.hooks.OnComplete != nil {
		s.hooks.OnComplete(result)
	}
}

func (s *Scheduler) reset(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make([]State, n)
	for i := range s.states {
		s.states[i] = StatePending
	}
	s.results = make([]*execution.JobResult, n)
	s.running = 0
	s.peak = 0
}

func (s *Scheduler) begin(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := transition(s.states, index, StateRunning); err != nil {
		return err
	}
	s.running++
	if s.running > s.peak {
		s.peak = s.running
	}
	return nil
}

func (s *Scheduler) finish(index int, result execution.JobResult) error {
	to := StateFailed
	switch result.Status {
	case execution.StatusSucceeded:
		to = StateSucceeded
	case execution.StatusInterrupted:
		to = StateInterrupted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running--
	if err := transition(s.states, index, to); err != nil {
		return err
	}
	s.results[index] = &result
	return nil
}

func (s *Scheduler) skipPending(units []classify.WorkUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, state := range s.states {
		if state != StatePending {
			continue
		}
		if err := transition(s.states, i, StateSkipped); err != nil {
			continue
		}
		s.logger.Debug("unit skipped", logging.String(logging.FieldUnitID, units[i].ID))
	}
}

func (s *Scheduler) collect() []execution.JobResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]execution.JobResult, 0, len(s.results))
	for _, r := range s.results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// State returns the current state of the unit at index.
func (s *Scheduler) State(index int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.states) {
		return ""
	}
	return s.states[index]
}

// Running returns the number of units currently executing.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// PeakRunning returns the highest concurrent running count seen in the last run.
func (s *Scheduler) PeakRunning() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}
