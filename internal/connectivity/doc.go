// Package connectivity tracks whether the report server is reachable.
//
// The Monitor probes on an interval and whenever the kernel reports a network
// interface change over netlink. Edge transitions fire the OnOnline and
// OnOffline callbacks; the first probe after Start counts as a transition so an
// already-online host drains immediately. The monitor never buffers triggers:
// callers that need re-entrancy protection must provide it themselves.
package connectivity
