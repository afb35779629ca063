// Package execution runs the external per-unit command with retries.
//
// An Executor builds the command for a work unit, runs it through a Runner,
// and appends every attempt's combined output to the unit's log file between
// attempt markers. Failed attempts are retried after a linear backoff
// (attempt n waits n times the base delay) until the retry budget is spent.
// Runner is the seam tests use to replace real subprocesses.
package execution
