// Package deps checks that the external programs albumrun invokes can be
// resolved on PATH.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external program and what it is used for.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

// Status is the resolution result for one Requirement.
type Status struct {
	Requirement
	// Path is the resolved executable when Available.
	Path      string
	Available bool
	Detail    string
}

// Check resolves req.Command with exec.LookPath.
func Check(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found on PATH", req.Command)
		return status
	}
	status.Path = path
	status.Available = true
	return status
}

// CheckBinaries runs Check for every requirement, preserving order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = Check(req)
	}
	return results
}
