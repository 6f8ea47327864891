// Package capture hands a freshly captured photo report to the queue or, when
// policy and connectivity allow, straight to the uploader.
//
// A Session is built once per process with the host capabilities injected by
// the caller. Failures that lose the report are returned as *Failure so the
// front-end can show the message to the user.
package capture
