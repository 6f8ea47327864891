// Package notifications pushes drain and queue events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Per-event toggles in config.toml decide
// which events actually leave the host.
package notifications
