package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"fieldreport/internal/capture"
	"fieldreport/internal/config"
	"fieldreport/internal/connectivity"
	"fieldreport/internal/notifications"
	"fieldreport/internal/processor"
	"fieldreport/internal/queue"
	"fieldreport/internal/upload"
)

// errQueueLocked means another process, usually the daemon, owns the queue.
var errQueueLocked = errors.New("queue is locked by another fieldreport process")

// localCapture runs one capture hand-off in-process when the daemon is not reachable.
func localCapture(ctx context.Context, cfg *config.Config, logger *slog.Logger, photo capture.Photo) (capture.Result, error) {
	var store capture.Queue
	opened, err := queue.Open(cfg)
	switch {
	case errors.Is(err, queue.ErrStorageUnavailable):
	case err != nil:
		return capture.Result{}, err
	default:
		defer opened.Close()
		store = opened
	}

	monitor := connectivity.NewMonitor(cfg, logger)
	monitor.Check(ctx)
	session := capture.NewSession(cfg, store, upload.NewClient(cfg, logger), monitor, logger)
	return session.Submit(ctx, photo)
}

// localDrain runs a single drain pass while holding the daemon's instance lock.
func localDrain(ctx context.Context, cfg *config.Config, logger *slog.Logger) (processor.Summary, bool, error) {
	lockPath := cfg.LockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return processor.Summary{}, false, fmt.Errorf("ensure lock directory: %w", err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return processor.Summary{}, false, fmt.Errorf("acquire queue lock: %w", err)
	}
	if !locked {
		return processor.Summary{}, false, errQueueLocked
	}
	defer func() { _ = lock.Unlock() }()

	store, err := queue.Open(cfg)
	if err != nil {
		return processor.Summary{}, false, err
	}
	defer store.Close()

	monitor := connectivity.NewMonitor(cfg, logger)
	if monitor.Check(ctx) != connectivity.StateOnline {
		return processor.Summary{}, false, nil
	}

	proc := processor.New(store, upload.NewClient(cfg, logger),
		processor.WithPolicy(processor.PolicyFromConfig(cfg)),
		processor.WithLogger(logger),
		processor.WithNotifier(notifications.NewService(cfg)),
		processor.WithIndicator(monitor.Indicator()),
	)
	summary, err := proc.Drain(ctx)
	return summary, true, err
}
