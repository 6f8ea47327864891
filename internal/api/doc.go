// Package api defines wire-format types, converters, and the HTTP client for
// the daemon API. It translates internal queue, processor, and connectivity
// models into transport-friendly DTOs that the CLI and the capture front-end
// can render without coupling to internal types.
//
// # Key Types
//
// Report: photo-less view of a queued report, including delivery bookkeeping.
//
// DaemonStatus: running state, connectivity, drain state, and queue counts.
//
// DrainSummary: result of one drain pass.
//
// CaptureResponse: result of handing a photo report to the daemon.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Timestamps use RFC3339 with milliseconds. Photo bytes never leave the
// daemon through the read endpoints.
package api
