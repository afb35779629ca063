package execution_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"albumrun/internal/classify"
	"albumrun/internal/config"
	"albumrun/internal/execution"
	"albumrun/internal/testsupport"
)

// scriptedRunner returns the queued exit statuses in order, repeating the last one.
type scriptedRunner struct {
	mu       sync.Mutex
	statuses []int
	errs     []error
	calls    int
}

func (r *scriptedRunner) Run(_ context.Context, cmd execution.Command, out io.Writer) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.calls
	r.calls++
	fmt.Fprintf(out, "output of call %d\n", idx+1)
	var err error
	if idx < len(r.errs) {
		err = r.errs[idx]
	}
	if err != nil {
		return -1, err
	}
	if idx >= len(r.statuses) {
		idx = len(r.statuses) - 1
	}
	return r.statuses[idx], nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func (s *sleepRecorder) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, w := range s.waits {
		total += w
	}
	return total
}

var album = classify.WorkUnit{ID: "Artist/Album", Path: "/music/Artist/Album", Kind: classify.KindSingle}

func newExecutor(t *testing.T, runner execution.Runner, sleeper *sleepRecorder, maxRetries int, base time.Duration) (*execution.Executor, string) {
	t.Helper()
	logDir := t.TempDir()
	exec, err := execution.NewExecutor(execution.Options{
		Builder:     execution.NewTemplateBuilder(config.Command{Program: "beet", Args: []string{"import", "{path}"}}, nil),
		Runner:      runner,
		MaxRetries:  maxRetries,
		BaseBackoff: base,
		LogDir:      logDir,
		Sleep:       sleeper.Sleep,
	})
	if err != nil {
		t.Fatalf("NewExecutor returned error: %v", err)
	}
	return exec, logDir
}

func TestExecuteSucceedsOnThirdAttempt(t *testing.T) {
	runner := &scriptedRunner{statuses: []int{1, 2, 0}}
	sleeper := &sleepRecorder{}
	exec, logDir := newExecutor(t, runner, sleeper, 5, time.Second)

	result := exec.Execute(context.Background(), 0, album)
	if result.Status != execution.StatusSucceeded {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.AttemptsUsed != 3 {
		t.Fatalf("expected 3 attempts, got %d", result.AttemptsUsed)
	}
	if result.Error != "" {
		t.Fatalf("expected no error on success, got %q", result.Error)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if !reflect.DeepEqual(sleeper.waits, want) {
		t.Fatalf("unexpected backoff waits: %v", sleeper.waits)
	}
	if result.LogPath != filepath.Join(logDir, "001_Artist-Album.log") {
		t.Fatalf("unexpected log path: %q", result.LogPath)
	}
	if result.UnitID() != "Artist/Album" {
		t.Fatalf("unexpected unit id: %q", result.UnitID())
	}
}

func TestExecuteAlwaysFailingExhaustsRetries(t *testing.T) {
	runner := &scriptedRunner{statuses: []int{1}}
	sleeper := &sleepRecorder{}
	base := 50 * time.Millisecond
	exec, _ := newExecutor(t, runner, sleeper, 3, base)

	result := exec.Execute(context.Background(), 4, album)
	if result.Status != execution.StatusFailed {
		t.Fatalf("expected failure, got %+v", result)
	}
	if result.AttemptsUsed != 3 || runner.calls != 3 {
		t.Fatalf("expected 3 attempts, got attempts=%d calls=%d", result.AttemptsUsed, runner.calls)
	}
	if sleeper.Total() != 1*base+2*base {
		t.Fatalf("expected total backoff %s, got %s (%v)", 3*base, sleeper.Total(), sleeper.waits)
	}
	if result.Error != "exit status 1" {
		t.Fatalf("unexpected error text: %q", result.Error)
	}
}

func TestExecuteAppendsAttemptMarkers(t *testing.T) {
	runner := &scriptedRunner{statuses: []int{3, 0}}
	exec, _ := newExecutor(t, runner, &sleepRecorder{}, 3, 0)

	result := exec.Execute(context.Background(), 1, album)
	data, err := os.ReadFile(result.LogPath)
	if err != nil {
		t.Fatalf("read unit log: %v", err)
	}
	log := string(data)
	for _, want := range []string{
		"=== attempt 1/3 started",
		"$ beet import /music/Artist/Album",
		"output of call 1",
		"=== attempt 1 exit status 3",
		"=== attempt 2/3 started",
		"output of call 2",
		"=== attempt 2 exit status 0",
	} {
		if !strings.Contains(log, want) {
			t.Fatalf("unit log missing %q:\n%s", want, log)
		}
	}
	if strings.Index(log, "output of call 1") > strings.Index(log, "output of call 2") {
		t.Fatalf("attempt output out of order:\n%s", log)
	}
}

func TestExecuteCountsLaunchFailureAsAttempt(t *testing.T) {
	runner := &scriptedRunner{statuses: []int{0}, errs: []error{errors.New("resource temporarily unavailable")}}
	exec, _ := newExecutor(t, runner, &sleepRecorder{}, 3, 0)

	result := exec.Execute(context.Background(), 0, album)
	if result.Status != execution.StatusSucceeded || result.AttemptsUsed != 2 {
		t.Fatalf("expected success on second attempt after launch failure, got %+v", result)
	}
}

func TestExecuteStopsRetryingWhenCancelled(t *testing.T) {
	runner := &scriptedRunner{statuses: []int{1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec, _ := newExecutor(t, runner, &sleepRecorder{}, 5, time.Second)

	result := exec.Execute(ctx, 0, album)
	if result.Status != execution.StatusInterrupted {
		t.Fatalf("expected interrupted unit, got %+v", result)
	}
	if result.AttemptsUsed != 1 || runner.calls != 1 {
		t.Fatalf("expected a single attempt before stopping, got %+v calls=%d", result, runner.calls)
	}
	if !strings.Contains(result.Error, "retries stopped") {
		t.Fatalf("expected retries stopped in error, got %q", result.Error)
	}
}

func TestExecuteBuildFailure(t *testing.T) {
	builder := execution.CommandBuilderFunc(func(classify.WorkUnit) (execution.Command, error) {
		return execution.Command{}, errors.New("no program")
	})
	runner := &scriptedRunner{statuses: []int{0}}
	exec, err := execution.NewExecutor(execution.Options{Builder: builder, Runner: runner, MaxRetries: 3})
	if err != nil {
		t.Fatalf("NewExecutor returned error: %v", err)
	}
	result := exec.Execute(context.Background(), 0, album)
	if result.Status != execution.StatusFailed || result.AttemptsUsed != 0 || runner.calls != 0 {
		t.Fatalf("expected failure without attempts, got %+v calls=%d", result, runner.calls)
	}
}

func TestNewExecutorValidates(t *testing.T) {
	builder := execution.NewTemplateBuilder(config.Command{Program: "beet"}, nil)
	if _, err := execution.NewExecutor(execution.Options{Builder: builder, MaxRetries: 0}); err == nil {
		t.Fatal("expected error for zero retries")
	}
	if _, err := execution.NewExecutor(execution.Options{MaxRetries: 1}); err == nil {
		t.Fatal("expected error for missing builder")
	}
	if _, err := execution.NewExecutor(execution.Options{Builder: builder, MaxRetries: 1, BaseBackoff: -time.Second}); err == nil {
		t.Fatal("expected error for negative backoff")
	}
}

func TestExecRunnerWithStubBinary(t *testing.T) {
	base := t.TempDir()
	counter := filepath.Join(base, "count")
	script := fmt.Sprintf(`n=$(cat %q 2>/dev/null || echo 0)
n=$((n+1))
echo $n > %q
echo "importing $1 (try $n)"
echo "warning on stderr" >&2
[ "$n" -ge 2 ]`, counter, counter)
	testsupport.WriteStub(t, base, "fake-import", script)

	exec, err := execution.NewExecutor(execution.Options{
		Builder:    execution.NewTemplateBuilder(config.Command{Program: "fake-import"}, nil),
		Runner:     execution.ExecRunner{},
		MaxRetries: 3,
		LogDir:     filepath.Join(base, "logs"),
	})
	if err != nil {
		t.Fatalf("NewExecutor returned error: %v", err)
	}
	result := exec.Execute(context.Background(), 0, album)
	if result.Status != execution.StatusSucceeded || result.AttemptsUsed != 2 {
		t.Fatalf("expected success on second attempt, got %+v", result)
	}
	data, err := os.ReadFile(result.LogPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, want := range []string{"importing /music/Artist/Album (try 1)", "warning on stderr", "exit status 1", "(try 2)"} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("log missing %q:\n%s", want, data)
		}
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	status, err := execution.ExecRunner{}.Run(context.Background(), execution.Command{Program: "albumrun-does-not-exist"}, io.Discard)
	if err == nil || status != -1 {
		t.Fatalf("expected launch error, got status=%d err=%v", status, err)
	}
}

func TestDryRunRunner(t *testing.T) {
	var buf strings.Builder
	status, err := execution.DryRunRunner{}.Run(context.Background(), execution.Command{Program: "beet", Args: []string{"import", "/music/My Album"}}, &buf)
	if err != nil || status != 0 {
		t.Fatalf("unexpected dry-run result: %d %v", status, err)
	}
	if buf.String() != "dry-run: beet import '/music/My Album'\n" {
		t.Fatalf("unexpected dry-run output: %q", buf.String())
	}
}

func TestBackoffIsLinear(t *testing.T) {
	for attempt := 1; attempt <= 4; attempt++ {
		if got := execution.Backoff(attempt, 3*time.Second); got != time.Duration(attempt)*3*time.Second {
			t.Fatalf("Backoff(%d) = %s", attempt, got)
		}
	}
}

func TestLogName(t *testing.T) {
	if got := execution.LogName(0, "Björk/Post"); got != "001_Bjork-Post.log" {
		t.Fatalf("unexpected log name: %q", got)
	}
	if got := execution.LogName(41, "???"); got != "042_unit.log" {
		t.Fatalf("unexpected fallback log name: %q", got)
	}
}
