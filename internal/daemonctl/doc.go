// Package daemonctl starts, stops, and inspects a fieldreport daemon from the
// CLI. It talks to the daemon through its HTTP API and signals the process
// recorded in the pid file when a stop is requested.
package daemonctl
