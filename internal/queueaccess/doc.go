// Package queueaccess gives CLI commands one queue surface whether the daemon
// is running (HTTP API) or not (direct SQLite access).
package queueaccess
