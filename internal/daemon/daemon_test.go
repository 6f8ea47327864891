package daemon_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fieldreport/internal/capture"
	"fieldreport/internal/connectivity"
	"fieldreport/internal/daemon"
	"fieldreport/internal/logging"
	"fieldreport/internal/queue"
	"fieldreport/internal/testsupport"
	"fieldreport/internal/upload"
)

type countingUploader struct {
	mu    sync.Mutex
	calls []int64
}

func (u *countingUploader) Submit(_ context.Context, rec *queue.Record) upload.Outcome {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, rec.ID)
	return upload.Outcome{Kind: upload.Delivered}
}

func (u *countingUploader) submitted() []int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]int64(nil), u.calls...)
}

var (
	online  = connectivity.ProberFunc(func(context.Context) error { return nil })
	offline = connectivity.ProberFunc(func(context.Context) error { return errors.New("no route to host") })
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop(),
		daemon.WithUploader(&countingUploader{}),
		daemon.WithProber(offline),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || !status.QueueAvailable {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Connectivity.State != connectivity.StateOffline || !status.Offline {
		t.Fatalf("expected offline state after initial probe, got %+v", status.Connectivity)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := daemon.New(cfg, nil, logging.NewNop(), daemon.WithProber(offline))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, nil, logging.NewNop(), daemon.WithProber(offline))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonDrainsQueuedReportsWhenOnline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	first := testsupport.AddReport(t, store, base, 1, 1)
	second := testsupport.AddReport(t, store, base.Add(time.Minute), 2, 2)

	uploader := &countingUploader{}
	d, err := daemon.New(cfg, store, logging.NewNop(),
		daemon.WithUploader(uploader),
		daemon.WithProber(online),
		daemon.WithSweepInterval(0),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	waitFor(t, 2*time.Second, func() bool {
		n, err := store.Count(context.Background())
		return err == nil && n == 0
	})
	calls := uploader.submitted()
	if len(calls) != 2 || calls[0] != first || calls[1] != second {
		t.Fatalf("expected FIFO uploads [%d %d], got %v", first, second, calls)
	}
	waitFor(t, time.Second, func() bool {
		return d.Status(context.Background()).LastDrain != nil
	})
}

func TestDaemonCaptureWhileOfflineThenDrain(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := &countingUploader{}
	d, err := daemon.New(cfg, store, logging.NewNop(),
		daemon.WithUploader(uploader),
		daemon.WithProber(offline),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	res, err := d.Capture(context.Background(), capture.Photo{Data: testsupport.JPEGBytes(t, 4, 4)})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.Status != capture.StatusQueued {
		t.Fatalf("expected queued, got %s", res.Status)
	}
	if len(uploader.submitted()) != 0 {
		t.Fatal("offline capture must not upload")
	}

	summary, err := d.DrainNow(context.Background())
	if err != nil {
		t.Fatalf("DrainNow: %v", err)
	}
	if summary.Delivered != 1 {
		t.Fatalf("expected 1 delivered, got %+v", summary)
	}
	if ids := testsupport.RemainingIDs(t, store); len(ids) != 0 {
		t.Fatalf("expected empty queue, got %v", ids)
	}
}

func TestDaemonWithoutStorage(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutPersistentStorage())
	d, err := daemon.New(cfg, nil, logging.NewNop(), daemon.WithProber(offline))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if _, err := d.DrainNow(context.Background()); !errors.Is(err, queue.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	if _, err := d.ListQueue(context.Background()); !errors.Is(err, queue.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	if d.RequestDrain() {
		t.Fatal("RequestDrain should refuse without a queue")
	}
	_, err = d.Capture(context.Background(), capture.Photo{Data: []byte("x")})
	if !capture.IsFailure(err) {
		t.Fatalf("expected capture failure while offline without storage, got %v", err)
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, nil, logging.NewNop(), daemon.WithProber(offline))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	sent, msg, err := d.TestNotification(context.Background())
	if sent || err != nil || msg == "" {
		t.Fatalf("unexpected result: %v %q %v", sent, msg, err)
	}
}
