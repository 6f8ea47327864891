package connectivity_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fieldreport/internal/connectivity"
	"fieldreport/internal/logging"
	"fieldreport/internal/testsupport"
)

// switchProber reports online or offline depending on a flag.
type switchProber struct {
	online atomic.Bool
	calls  atomic.Int32
}

func (p *switchProber) Probe(context.Context) error {
	p.calls.Add(1)
	if p.online.Load() {
		return nil
	}
	return errors.New("network unreachable")
}

type counter struct {
	mu    sync.Mutex
	count int
	ch    chan struct{}
}

func newCounter() *counter { return &counter{ch: make(chan struct{}, 16)} }

func (c *counter) fn(context.Context) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *counter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestStartWhileOnlineFiresOnOnline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	prober := &switchProber{}
	prober.online.Store(true)
	online := newCounter()

	m := connectivity.NewMonitor(cfg, logging.NewNop(),
		connectivity.WithProber(prober),
		connectivity.WithInterval(time.Hour),
		connectivity.OnOnline(online.fn),
	)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	online.wait(t)
	if !m.Online() {
		t.Fatal("expected online state")
	}
	if m.Indicator().Offline() {
		t.Fatal("indicator should be cleared while online")
	}
}

func TestTransitionsFireOncePerEdge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	prober := &switchProber{}
	online := newCounter()
	offline := newCounter()

	m := connectivity.NewMonitor(cfg, nil,
		connectivity.WithProber(prober),
		connectivity.WithInterval(time.Hour),
		connectivity.OnOnline(online.fn),
		connectivity.OnOffline(offline.fn),
	)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	offline.wait(t)
	if !m.Indicator().Offline() {
		t.Fatal("expected offline indicator after offline start")
	}

	m.Check(ctx)
	prober.online.Store(true)
	if got := m.Check(ctx); got != connectivity.StateOnline {
		t.Fatalf("state = %v", got)
	}
	online.wait(t)
	m.Check(ctx)
	m.Check(ctx)

	prober.online.Store(false)
	m.Check(ctx)
	offline.wait(t)

	m.Stop()
	if online.value() != 1 {
		t.Fatalf("online callbacks = %d, want 1", online.value())
	}
	if offline.value() != 2 {
		t.Fatalf("offline callbacks = %d, want 2", offline.value())
	}
}

func TestRecheckTriggersProbe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	prober := &switchProber{}
	online := newCounter()

	m := connectivity.NewMonitor(cfg, nil,
		connectivity.WithProber(prober),
		connectivity.WithInterval(time.Hour),
		connectivity.OnOnline(online.fn),
	)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	prober.online.Store(true)
	m.Recheck()
	online.wait(t)
	if m.State() != connectivity.StateOnline {
		t.Fatalf("state = %v", m.State())
	}
}

func TestIntervalProbing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	prober := &switchProber{}
	online := newCounter()

	m := connectivity.NewMonitor(cfg, nil,
		connectivity.WithProber(prober),
		connectivity.WithInterval(10*time.Millisecond),
		connectivity.OnOnline(online.fn),
	)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	prober.online.Store(true)
	online.wait(t)
}

func TestStopIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := connectivity.NewMonitor(cfg, nil, connectivity.WithProber(&switchProber{}))
	m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Stop()
	m.Stop()
}

func TestHTTPProberTreatsAnyResponseAsOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := connectivity.NewHTTPProber(server.URL, time.Second)
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("expected reachable, got %v", err)
	}

	server.Close()
	if err := p.Probe(context.Background()); err == nil {
		t.Fatal("expected error once server is gone")
	}
}

func TestSnapshotReportsLastError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := connectivity.NewMonitor(cfg, nil, connectivity.WithProber(&switchProber{}))
	m.Check(context.Background())

	snap := m.Snapshot()
	if snap.State != connectivity.StateOffline || snap.LastError == "" || snap.LastProbe.IsZero() {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Netlink {
		t.Fatal("netlink disabled in test config")
	}
}
