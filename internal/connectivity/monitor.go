package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fieldreport/internal/config"
	"fieldreport/internal/logging"
)

// State is the last observed reachability.
type State int

const (
	StateUnknown State = iota
	StateOnline
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Callback runs on a connectivity transition.
type Callback func(ctx context.Context)

// Monitor observes online/offline transitions.
type Monitor struct {
	prober    Prober
	interval  time.Duration
	logger    *slog.Logger
	indicator *Indicator
	netlink   *netlinkWatcher

	onOnline  Callback
	onOffline Callback

	mu         sync.Mutex
	state      State
	lastChange time.Time
	lastProbe  time.Time
	lastErr    error
	running    bool
	cancel     context.CancelFunc
	loopDone   chan struct{}

	trigger   chan struct{}
	callbacks sync.WaitGroup
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithProber overrides the configured HTTP prober.
func WithProber(p Prober) Option {
	return func(m *Monitor) {
		if p != nil {
			m.prober = p
		}
	}
}

// WithInterval overrides the periodic probe interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// OnOnline registers the callback fired when the host becomes reachable.
func OnOnline(fn Callback) Option {
	return func(m *Monitor) { m.onOnline = fn }
}

// OnOffline registers the callback fired when the host loses reachability.
func OnOffline(fn Callback) Option {
	return func(m *Monitor) { m.onOffline = fn }
}

// NewMonitor builds a monitor from configuration.
func NewMonitor(cfg *config.Config, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		prober:    NewHTTPProber(cfg.Connectivity.ProbeURL, cfg.ProbeTimeout()),
		interval:  cfg.ProbeInterval(),
		logger:    logging.NewComponentLogger(logger, "connectivity"),
		indicator: &Indicator{},
		trigger:   make(chan struct{}, 1),
	}
	if m.interval <= 0 {
		m.interval = 30 * time.Second
	}
	for _, opt := range opts {
		opt(m)
	}
	if cfg.Connectivity.Netlink {
		m.netlink = newNetlinkWatcher(m.logger, m.Recheck)
	}
	return m
}

// Indicator exposes the offline-mode flag.
func (m *Monitor) Indicator() *Indicator { return m.indicator }

// Start records the initial state, then probes in the background until Stop
// or ctx cancellation.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.loopDone = make(chan struct{})
	m.running = true
	m.mu.Unlock()

	m.Check(loopCtx)

	if err := m.netlink.Start(loopCtx); err != nil {
		m.logger.Debug("netlink watcher unavailable", logging.Error(err))
	}
	go m.loop(loopCtx, m.loopDone)

	m.logger.Info("connectivity monitor started",
		logging.String(logging.FieldEventType, "connectivity_monitor_started"),
		logging.Duration("interval", m.interval),
		logging.Bool("netlink", m.netlink.Running()),
	)
	return nil
}

// Stop halts probing and waits for in-flight callbacks.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.loopDone
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	m.netlink.Stop()
	cancel()
	<-done
	m.callbacks.Wait()
}

// Recheck asks the background loop to probe now. Calls while a probe is
// already pending collapse into one.
func (m *Monitor) Recheck() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		case <-m.trigger:
			m.Check(ctx)
		}
	}
}

// Check probes once and applies any transition.
func (m *Monitor) Check(ctx context.Context) State {
	err := m.prober.Probe(ctx)
	if ctx.Err() != nil {
		return m.State()
	}
	next := StateOnline
	if err != nil {
		next = StateOffline
	}

	m.mu.Lock()
	prev := m.state
	m.lastProbe = time.Now()
	m.lastErr = err
	if prev != next {
		m.state = next
		m.lastChange = m.lastProbe
	}
	m.mu.Unlock()

	if prev == next {
		return next
	}
	m.transition(ctx, prev, next, err)
	return next
}

func (m *Monitor) transition(ctx context.Context, prev, next State, probeErr error) {
	switch next {
	case StateOnline:
		m.indicator.SetOffline(false)
		m.logger.Info("connectivity online",
			logging.String(logging.FieldEventType, "connectivity_online"),
			logging.String("previous", prev.String()),
		)
		m.fire(ctx, m.onOnline)
	case StateOffline:
		m.indicator.SetOffline(true)
		m.logger.Info("connectivity offline",
			logging.String(logging.FieldEventType, "connectivity_offline"),
			logging.String("previous", prev.String()),
			logging.String("reason", errString(probeErr)),
		)
		m.fire(ctx, m.onOffline)
	}
}

func (m *Monitor) fire(ctx context.Context, fn Callback) {
	if fn == nil {
		return
	}
	m.callbacks.Add(1)
	go func() {
		defer m.callbacks.Done()
		fn(ctx)
	}()
}

// State returns the last observed state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Online reports whether the last probe succeeded.
func (m *Monitor) Online() bool { return m.State() == StateOnline }

// Snapshot describes the monitor for status output.
type Snapshot struct {
	State      State
	LastChange time.Time
	LastProbe  time.Time
	LastError  string
	Netlink    bool
}

// Snapshot returns the current monitor view.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:      m.state,
		LastChange: m.lastChange,
		LastProbe:  m.lastProbe,
		LastError:  errString(m.lastErr),
		Netlink:    m.netlink.Running(),
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
