// Package logging assembles structured slog loggers and formatting helpers used
// across the dreary importers.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so importer code can tag log
// lines with the run ID and importer name. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
