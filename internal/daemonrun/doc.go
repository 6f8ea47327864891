// Package daemonrun owns the daemon process runtime: logging setup, pid file,
// log retention, startup checks, and the signal-driven lifecycle.
package daemonrun
