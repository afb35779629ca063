package history

import (
	"errors"
	"time"
)

var (
	// ErrNotFound reports an unknown run id.
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguous reports a run id prefix matching more than one run.
	ErrAmbiguous = errors.New("run id prefix is ambiguous")
)

// Run is one recorded invocation of the batch runner.
type Run struct {
	ID          string
	Root        string
	StartedAt   time.Time
	FinishedAt  time.Time
	MaxJobs     int
	MaxRetries  int
	Total       int
	Succeeded   int
	Failed      int
	Skipped     int
	DryRun      bool
	Interrupted bool
}

// Finished reports whether FinishRun was recorded.
func (r Run) Finished() bool { return !r.FinishedAt.IsZero() }

// Duration returns the wall-clock time of a finished run.
func (r Run) Duration() time.Duration {
	if !r.Finished() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ShortID returns the first eight characters of the run id.
func (r Run) ShortID() string {
	if len(r.ID) <= 8 {
		return r.ID
	}
	return r.ID[:8]
}

// RunParams describe a run being started. An empty ID is replaced by a new UUID.
type RunParams struct {
	ID         string
	Root       string
	MaxJobs    int
	MaxRetries int
	DryRun     bool
}

// UnitResult is the persisted outcome of one unit within a run.
type UnitResult struct {
	RunID      string
	Position   int
	UnitID     string
	Path       string
	Kind       string
	Status     string
	Attempts   int
	LogPath    string
	Duration   time.Duration
	Error      string
	FinishedAt time.Time
}
