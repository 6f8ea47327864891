// Package processor drains the report queue.
//
// A drain pass walks the store oldest first and uploads one report at a time.
// A report leaves the queue only after the server confirms it; rejected and
// undeliverable reports stay put and the pass moves on to the next one. At
// most one pass runs at a time: a Drain call that arrives while another is in
// progress returns immediately with Summary.Skipped set.
//
// Rejected reports back off exponentially and are parked after too many
// rejections so a permanently bad report cannot be retried forever.
// Transport failures never back off; they say nothing about the report.
package processor
