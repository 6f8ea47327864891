// Package daemon coordinates the long-running fieldreport process.
//
// It wires configuration, the queue store, the connectivity monitor, the
// queue processor, and the capture session into a single lifecycle with
// flock-based locking to prevent multiple instances. Online transitions and
// reports queued while online request a drain; a sweep ticker re-requests one
// while online so backed-off reports are retried once their delay elapses.
//
// The daemon also serves the local HTTP API used by the CLI and the capture
// front-end. Keep orchestration logic here: delivery rules belong to the
// processor and routing rules to the capture session.
package daemon
