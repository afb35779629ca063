// Package history records batch runs and their per-unit outcomes in a SQLite
// database under the state directory.
//
// The run command opens a run with BeginRun, records each unit as the
// scheduler completes it, and closes the run with FinishRun; the history and
// show commands read it back. The schema carries a version row and a mismatch
// is reported instead of migrated.
package history
