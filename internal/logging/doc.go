// Package logging assembles structured slog loggers and formatting helpers used
// across albumrun.
//
// It owns the configurable console/JSON handlers, tees every record into the
// per-run JSON log file, and exposes context-aware helpers so scheduler and
// executor code can tag log lines with run IDs, unit IDs, and attempt numbers.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail, plus retention pruning for old run logs.
package logging
