package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"fieldreport/internal/capture"
	"fieldreport/internal/config"
	"fieldreport/internal/connectivity"
	"fieldreport/internal/logging"
	"fieldreport/internal/notifications"
	"fieldreport/internal/processor"
	"fieldreport/internal/queue"
	"fieldreport/internal/upload"
)

// Daemon coordinates the background delivery services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	notifier  notifications.Service
	monitor   *connectivity.Monitor
	processor *processor.Processor
	session   *capture.Session
	logPath   string
	sweep     time.Duration

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running   atomic.Bool
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	drains    sync.WaitGroup
	sweepDone chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running                 bool
	PID                     int
	QueueAvailable          bool
	QueueDBPath             string
	LockFilePath            string
	LogPath                 string
	CapturePolicy           string
	Connectivity            connectivity.Snapshot
	Offline                 bool
	Draining                bool
	LastDrain               *processor.Summary
	Queue                   queue.Stats
	NotificationsConfigured bool
}

type options struct {
	uploader upload.Uploader
	prober   connectivity.Prober
	notifier notifications.Service
	logPath  string
	sweep    time.Duration
}

// Option customizes daemon construction.
type Option func(*options)

// WithUploader replaces the HTTP uploader.
func WithUploader(u upload.Uploader) Option {
	return func(o *options) { o.uploader = u }
}

// WithProber replaces the connectivity probe.
func WithProber(p connectivity.Prober) Option {
	return func(o *options) { o.prober = p }
}

// WithNotifier replaces the notification service built from config.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// WithLogPath records the active run log for status output.
func WithLogPath(path string) Option {
	return func(o *options) { o.logPath = path }
}

// WithSweepInterval sets how often a drain is re-requested while online.
// Zero or negative disables the sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweep = d }
}

// New constructs a daemon with initialized dependencies. store may be nil when
// the host offers no persistent storage; captures then upload directly or fail.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	o := options{sweep: cfg.ProbeInterval()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.uploader == nil {
		o.uploader = upload.NewClient(cfg, logger)
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		notifier: o.notifier,
		logPath:  o.logPath,
		sweep:    o.sweep,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	monitorOpts := []connectivity.Option{
		connectivity.OnOnline(func(context.Context) { d.RequestDrain() }),
	}
	if o.prober != nil {
		monitorOpts = append(monitorOpts, connectivity.WithProber(o.prober))
	}
	d.monitor = connectivity.NewMonitor(cfg, logger, monitorOpts...)

	var captureQueue capture.Queue
	if store != nil {
		captureQueue = store
		d.processor = processor.New(store, o.uploader,
			processor.WithPolicy(processor.PolicyFromConfig(cfg)),
			processor.WithLogger(logger),
			processor.WithNotifier(o.notifier),
			processor.WithIndicator(d.monitor.Indicator()),
		)
	}
	d.session = capture.NewSession(cfg, captureQueue, o.uploader, d.monitor, logger,
		capture.WithDrainRequest(func() { d.RequestDrain() }),
	)

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, starts the API server and the connectivity monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fieldreport daemon instance is already running")
	}

	d.mu.Lock()
	d.ctx, d.cancel = context.WithCancel(ctx)
	runCtx := d.ctx
	d.running.Store(true)
	d.mu.Unlock()

	if err := d.api.start(runCtx); err != nil {
		d.Stop()
		return fmt.Errorf("start api: %w", err)
	}
	if err := d.monitor.Start(runCtx); err != nil {
		d.Stop()
		return fmt.Errorf("start connectivity monitor: %w", err)
	}

	d.sweepDone = make(chan struct{})
	go d.sweepLoop(runCtx, d.sweepDone)

	d.logger.Info("fieldreport daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Bool("queue_available", d.store != nil),
		logging.String("capture_policy", d.cfg.Capture.Policy),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. In-flight
// drains are cancelled; reports they had not deleted stay queued.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return
	}
	d.running.Store(false)
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	sweepDone := d.sweepDone
	d.sweepDone = nil
	d.mu.Unlock()

	d.monitor.Stop()
	d.api.stop()
	if sweepDone != nil {
		<-sweepDone
	}
	d.drains.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			logging.String(logging.FieldImpact, "next daemon start may fail"),
		)
	}
	d.mu.Lock()
	d.ctx = nil
	d.mu.Unlock()
	d.logger.Info("fieldreport daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// RequestDrain starts a background drain pass unless one is already running,
// the daemon is stopped, or offline queueing is unavailable.
func (d *Daemon) RequestDrain() bool {
	if d.processor == nil {
		return false
	}
	d.mu.Lock()
	if !d.running.Load() || d.ctx == nil || d.processor.Draining() {
		d.mu.Unlock()
		return false
	}
	ctx := d.ctx
	d.drains.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.drains.Done()
		if _, err := d.processor.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.WarnWithContext(d.logger, "background drain failed", "drain_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the queue database"),
			)
		}
	}()
	return true
}

// DrainNow runs a drain pass and waits for it. A pass already in progress
// yields a skipped summary.
func (d *Daemon) DrainNow(ctx context.Context) (processor.Summary, error) {
	if d.processor == nil {
		return processor.Summary{}, queue.ErrStorageUnavailable
	}
	return d.processor.Drain(ctx)
}

func (d *Daemon) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	if d.sweep <= 0 || d.store == nil {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(d.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !d.monitor.Online() {
				continue
			}
			count, err := d.store.Count(ctx)
			if err != nil || count == 0 {
				continue
			}
			d.RequestDrain()
		}
	}
}

// Capture routes a photo report through the capture session.
func (d *Daemon) Capture(ctx context.Context, photo capture.Photo) (capture.Result, error) {
	return d.session.Submit(ctx, photo)
}

// ListQueue returns queued report metadata in drain order.
func (d *Daemon) ListQueue(ctx context.Context) ([]queue.Summary, error) {
	if d.store == nil {
		return nil, queue.ErrStorageUnavailable
	}
	return d.store.List(ctx)
}

// RetryReports releases parked or backing-off reports and requests a drain.
func (d *Daemon) RetryReports(ctx context.Context, ids ...int64) (int64, error) {
	if d.store == nil {
		return 0, queue.ErrStorageUnavailable
	}
	updated, err := d.store.ResetDelivery(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		d.logger.Info("reports released for retry",
			logging.String(logging.FieldEventType, "reports_released"),
			logging.Int64("updated", updated),
		)
		if d.monitor.Online() {
			d.RequestDrain()
		}
	}
	return updated, nil
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	if d.store == nil {
		return queue.DatabaseHealth{}, queue.ErrStorageUnavailable
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Online reports the last observed connectivity state.
func (d *Daemon) Online() bool { return d.monitor.Online() }

// APIAddr returns the bound API listener address, or "" when the API is disabled.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:                 d.running.Load(),
		PID:                     os.Getpid(),
		QueueAvailable:          d.store != nil,
		LockFilePath:            d.lockPath,
		LogPath:                 d.logPath,
		CapturePolicy:           d.cfg.Capture.Policy,
		Connectivity:            d.monitor.Snapshot(),
		Offline:                 d.monitor.Indicator().Offline(),
		NotificationsConfigured: strings.TrimSpace(d.cfg.Notifications.NtfyTopic) != "",
	}
	if d.store != nil {
		status.QueueDBPath = d.store.Path()
		stats, err := d.store.Stats(ctx)
		if err != nil {
			d.logger.Warn("queue stats unavailable",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "run fieldreport queue health"),
				logging.String(logging.FieldImpact, "status output omits queue counts"),
			)
		}
		status.Queue = stats
	}
	if d.processor != nil {
		status.Draining = d.processor.Draining()
		if last, ok := d.processor.LastSummary(); ok {
			status.LastDrain = &last
		}
	}
	return status
}
