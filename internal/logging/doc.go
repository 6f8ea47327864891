// Package logging assembles structured slog loggers and formatting helpers used
// across fieldreport components.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so drain and capture code can tag
// log lines with report IDs, drain IDs, and API correlation IDs. WARN lines
// go through WarnWithContext so each one carries an event type, a hint, and
// the impact on queued reports. A no-op logger is provided for tests and for
// wiring code that cannot fail.
package logging
