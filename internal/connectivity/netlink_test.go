package connectivity

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"fieldreport/internal/logging"
)

func TestNetlinkWatcherNilSafe(t *testing.T) {
	var w *netlinkWatcher
	if w.Running() {
		t.Error("nil watcher should not be running")
	}
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil watcher: %v", err)
	}
}

func TestNetlinkWatcherStopBeforeStart(t *testing.T) {
	w := newNetlinkWatcher(logging.NewNop(), nil)
	w.Stop()
	w.Stop()
	if w.Running() {
		t.Error("expected watcher not running")
	}
	// Connect may fail without privileges; Start must stay non-fatal either way.
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
}

func TestBuildMatcher(t *testing.T) {
	matcher := buildMatcher()

	tests := []struct {
		name   string
		action netlink.KObjAction
		env    map[string]string
		want   bool
	}{
		{"interface added", netlink.ADD, map[string]string{"SUBSYSTEM": "net"}, true},
		{"interface removed", netlink.REMOVE, map[string]string{"SUBSYSTEM": "net"}, true},
		{"interface changed", netlink.CHANGE, map[string]string{"SUBSYSTEM": "net"}, true},
		{"block device", netlink.ADD, map[string]string{"SUBSYSTEM": "block"}, false},
		{"bind action", netlink.KObjAction("bind"), map[string]string{"SUBSYSTEM": "net"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := netlink.UEvent{Action: tc.action, Env: tc.env}
			if got := matcher.Evaluate(ev); got != tc.want {
				t.Fatalf("Evaluate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHandleEventSkipsLoopback(t *testing.T) {
	calls := 0
	w := newNetlinkWatcher(logging.NewNop(), func() { calls++ })

	w.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"INTERFACE": "lo"}})
	if calls != 0 {
		t.Fatalf("loopback should be ignored, calls=%d", calls)
	}
	w.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"INTERFACE": "wlan0"}})
	if calls != 1 {
		t.Fatalf("expected one trigger, got %d", calls)
	}
}
