// Package scheduler runs work units through an executor with bounded
// concurrency.
//
// A fixed pool of min(MaxConcurrency, len(units)) workers receives unit
// indexes from an unbuffered channel fed in input order, so a freed slot
// always takes the next pending unit. Each unit moves pending -> running ->
// succeeded|failed under an explicit transition table; all per-run state is
// owned by the Scheduler and guarded by its mutex. Cancelling the run context
// stops dispatch and drains in-flight units.
package scheduler
