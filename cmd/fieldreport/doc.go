// Command fieldreport is the operator CLI for the field report queue.
//
// Most commands talk to a running daemon over its local HTTP API and fall back
// to opening the queue database directly when the daemon is not reachable.
package main
