// Package queue persists photo reports that could not be delivered yet.
//
// The Store wraps a local SQLite database. Records are written once by Add
// and removed only by Delete after the upload endpoint confirms receipt; they
// are never updated in place. ForEachOrdered walks records in timestamp order
// and hands each visitor a Cursor that can delete the record it points at.
//
// Retry bookkeeping (attempt counts, backoff deadlines, parked flags) lives in
// a separate delivery_attempts table so the report rows stay immutable.
// Schema changes to the reports table bump schemaVersion; additive tables go
// through the embedded migrations directory instead.
package queue
