// Package preflight provides readiness checks for the filesystem paths and
// external services fieldreport depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failing check as a
//     warning; failures never stop the daemon because capture must keep
//     working offline.
//   - The CLI "fieldreport status" command uses the same checks to display
//     service health.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
