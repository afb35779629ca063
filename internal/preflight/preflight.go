package preflight

import (
	"strings"

	"albumrun/internal/config"
	"albumrun/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks a batch run depends on: writable log and state
// directories, a usable command working directory, and the command binary.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if dir := strings.TrimSpace(cfg.Command.WorkingDir); dir != "" {
		results = append(results, CheckDirectoryAccess("Command working directory", dir))
	}

	for _, status := range CheckCommand(cfg) {
		res := Result{Name: status.Name, Passed: status.Available, Detail: status.Path}
		if !status.Available {
			res.Detail = status.Detail
		}
		results = append(results, res)
	}
	return results
}

// CheckCommand evaluates the configured per-unit command binary.
func CheckCommand(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "Import command",
			Command:     cfg.Command.Program,
			Description: "Invoked once per album folder",
		},
	})
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
