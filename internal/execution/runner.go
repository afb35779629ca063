package execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Runner launches one attempt of a command. Combined stdout/stderr goes to out.
// A non-zero exit is reported through the exit status with a nil error; the
// error is reserved for failures to launch or wait on the process.
type Runner interface {
	Run(ctx context.Context, cmd Command, out io.Writer) (int, error)
}

// ExecRunner runs commands as child processes.
//
// The context is not attached to the child: a cancelled run drains, so an
// in-flight command is allowed to finish writing its log.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(_ context.Context, cmd Command, out io.Writer) (int, error) {
	c := exec.Command(cmd.Program, cmd.Args...) //nolint:gosec
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdout = out
	c.Stderr = out
	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("run %s: %w", cmd.Program, err)
	}
	return 0, nil
}

// DryRunRunner writes the command line it would run and reports success.
type DryRunRunner struct{}

// Run implements Runner.
func (DryRunRunner) Run(_ context.Context, cmd Command, out io.Writer) (int, error) {
	if _, err := fmt.Fprintf(out, "dry-run: %s\n", cmd); err != nil {
		return -1, err
	}
	return 0, nil
}
