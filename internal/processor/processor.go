package processor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fieldreport/internal/logging"
	"fieldreport/internal/notifications"
	"fieldreport/internal/queue"
	"fieldreport/internal/upload"
)

// Store is the queue surface a drain pass needs.
type Store interface {
	ForEachOrdered(ctx context.Context, visit queue.Visitor) error
	DeliveryState(ctx context.Context, id int64) (queue.DeliveryState, error)
	RecordAttempt(ctx context.Context, id int64, result queue.AttemptResult) error
}

// OfflineIndicator receives the informational offline flag.
type OfflineIndicator interface {
	SetOffline(offline bool)
}

// Summary describes one drain invocation.
type Summary struct {
	DrainID           string        `json:"drain_id,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	Skipped           bool          `json:"skipped"`
	Visited           int           `json:"visited"`
	Delivered         int           `json:"delivered"`
	Rejected          int           `json:"rejected"`
	TransportFailures int           `json:"transport_failures"`
	Deferred          int           `json:"deferred"`
	Parked            int           `json:"parked"`
	NewlyParked       int           `json:"newly_parked"`
	DeleteFailures    int           `json:"delete_failures"`
	Error             string        `json:"error,omitempty"`
}

// Retained is the number of visited reports left in the queue.
func (s Summary) Retained() int {
	return s.Visited - s.Delivered + s.DeleteFailures
}

// Processor runs drain passes against a store.
type Processor struct {
	store     Store
	uploader  upload.Uploader
	policy    RetryPolicy
	logger    *slog.Logger
	notifier  notifications.Service
	indicator OfflineIndicator
	now       func() time.Time

	draining atomic.Bool

	mu   sync.Mutex
	last *Summary
}

// Option customizes a Processor.
type Option func(*Processor)

// WithPolicy sets the retry policy. The zero policy retries rejected reports on every pass.
func WithPolicy(policy RetryPolicy) Option {
	return func(p *Processor) { p.policy = policy }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logging.NewComponentLogger(logger, "processor") }
}

// WithNotifier publishes drain and parking events.
func WithNotifier(svc notifications.Service) Option {
	return func(p *Processor) {
		if svc != nil {
			p.notifier = svc
		}
	}
}

// WithIndicator clears the offline flag after a pass that reached the server.
func WithIndicator(ind OfflineIndicator) Option {
	return func(p *Processor) { p.indicator = ind }
}

// WithClock overrides the time source used for backoff decisions.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a processor.
func New(store Store, uploader upload.Uploader, opts ...Option) *Processor {
	p := &Processor{
		store:    store,
		uploader: uploader,
		logger:   logging.NewComponentLogger(nil, "processor"),
		notifier: notifications.NewService(nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Draining reports whether a pass is in progress.
func (p *Processor) Draining() bool { return p.draining.Load() }

// LastSummary returns the most recent completed pass, if any.
func (p *Processor) LastSummary() (Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Summary{}, false
	}
	return *p.last, true
}

// Drain runs one pass. If a pass is already running it returns at once with
// Skipped set and touches nothing. Per-report failures are logged and counted,
// never returned; the error covers only traversal failures and cancellation.
func (p *Processor) Drain(ctx context.Context) (Summary, error) {
	if !p.draining.CompareAndSwap(false, true) {
		p.logger.Debug("drain already in progress; trigger discarded",
			logging.String(logging.FieldEventType, "drain_skipped"),
		)
		return Summary{Skipped: true}, nil
	}
	defer p.draining.Store(false)

	summary := Summary{DrainID: uuid.NewString(), StartedAt: p.now()}
	ctx = logging.WithDrainID(ctx, summary.DrainID)
	logger := logging.WithContext(ctx, p.logger)
	logger.Debug("drain started", logging.String(logging.FieldEventType, "drain_started"))

	err := p.store.ForEachOrdered(ctx, func(ctx context.Context, rec *queue.Record, cur queue.Cursor) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.Visited++
		p.handle(ctx, logger, rec, cur, &summary)
		return nil
	})
	summary.Duration = time.Since(summary.StartedAt)
	if errors.Is(err, queue.ErrTraversalActive) {
		logger.Debug("queue traversal already active; pass skipped",
			logging.String(logging.FieldEventType, "drain_skipped"),
		)
		return Summary{Skipped: true}, nil
	}
	if err != nil {
		summary.Error = err.Error()
		logging.WarnWithContext(logger, "drain pass aborted", "drain_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'fieldreport queue health' to inspect the queue database"),
		)
		p.publish(ctx, logger, notifications.EventError, notifications.Payload{"context": "drain", "error": err.Error()})
	}

	p.finish(ctx, logger, summary)
	return summary, err
}

func (p *Processor) handle(ctx context.Context, logger *slog.Logger, rec *queue.Record, cur queue.Cursor, summary *Summary) {
	ctx = logging.WithReportID(ctx, rec.ID)
	logger = logger.With(logging.Int64(logging.FieldReportID, rec.ID))

	state, err := p.store.DeliveryState(ctx, rec.ID)
	if err != nil {
		logging.WarnWithContext(logger, "delivery state unreadable; attempting upload anyway", "delivery_state_failed",
			logging.Error(err),
		)
		state = queue.DeliveryState{ReportID: rec.ID}
	}
	now := p.now()
	if state.Parked {
		summary.Parked++
		logger.Debug("report parked; skipping", logging.Int("rejections", state.Rejections))
		return
	}
	if !state.Eligible(now) {
		summary.Deferred++
		logger.Debug("report backing off; skipping", logging.Time("next_attempt_at", *state.NextAttemptAt))
		return
	}

	outcome := p.uploader.Submit(ctx, rec)
	switch outcome.Kind {
	case upload.Delivered:
		summary.Delivered++
		if err := cur.Delete(ctx); err != nil {
			summary.DeleteFailures++
			logging.WarnWithContext(logger, "delivered report could not be removed from the queue", "delete_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "report may be uploaded again on the next drain"),
				logging.String(logging.FieldErrorHint, "check free space and permissions on the data directory"),
			)
			return
		}
		attrs := []any{
			logging.String(logging.FieldEventType, "report_delivered"),
			logging.String(logging.FieldOutcome, outcome.Kind.String()),
			logging.Bool("has_location", rec.HasLocation()),
		}
		if created := rec.CreatedAt(); !created.IsZero() {
			attrs = append(attrs, logging.Duration("queued_for", now.Sub(created)))
		}
		logger.Info("report delivered", attrs...)
	case upload.Rejected:
		summary.Rejected++
		rejections := state.Rejections + 1
		result := queue.AttemptResult{
			Outcome:  queue.OutcomeRejected,
			Error:    outcome.Detail(),
			At:       now,
			Rejected: true,
			Park:     p.policy.ShouldPark(rejections),
		}
		if !result.Park {
			if delay := p.policy.Backoff(rejections); delay > 0 {
				next := now.Add(delay)
				result.NextAttemptAt = &next
			}
		}
		p.recordAttempt(ctx, logger, rec.ID, result)
		if result.Park {
			summary.NewlyParked++
			logging.WarnWithContext(logger, "report parked after repeated rejections", "report_parked",
				logging.String(logging.FieldOutcome, outcome.Kind.String()),
				logging.Int("rejections", rejections),
				logging.String("reason", outcome.Detail()),
				logging.String(logging.FieldImpact, "report stays queued but is skipped until released"),
				logging.String(logging.FieldErrorHint, "fix the report server or run 'fieldreport queue retry'"),
			)
			p.publish(ctx, logger, notifications.EventReportParked, notifications.Payload{
				"reportID":   rec.ID,
				"rejections": rejections,
				"reason":     outcome.Detail(),
			})
			return
		}
		logging.WarnWithContext(logger, "report rejected by server", "report_rejected",
			logging.String(logging.FieldOutcome, outcome.Kind.String()),
			logging.Int("rejections", rejections),
			logging.String("reason", outcome.Detail()),
			logging.String(logging.FieldErrorHint, "inspect the server response for the rejection reason"),
		)
	default:
		summary.TransportFailures++
		p.recordAttempt(ctx, logger, rec.ID, queue.AttemptResult{
			Outcome:       queue.OutcomeTransportFailure,
			Error:         outcome.Detail(),
			At:            now,
			NextAttemptAt: state.NextAttemptAt,
		})
		logging.WarnWithContext(logger, "report upload failed", "report_transport_failure",
			logging.String(logging.FieldOutcome, outcome.Kind.String()),
			logging.Int("status", outcome.StatusCode),
			logging.String("reason", outcome.Detail()),
			logging.String(logging.FieldErrorHint, "check network connectivity and the upload endpoint"),
		)
	}
}

func (p *Processor) recordAttempt(ctx context.Context, logger *slog.Logger, id int64, result queue.AttemptResult) {
	if err := p.store.RecordAttempt(ctx, id, result); err != nil && !errors.Is(err, queue.ErrNotFound) {
		logging.WarnWithContext(logger, "failed to record delivery attempt", "record_attempt_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "retry backoff for this report may be lost"),
		)
	}
}

func (p *Processor) finish(ctx context.Context, logger *slog.Logger, summary Summary) {
	p.mu.Lock()
	p.last = &summary
	p.mu.Unlock()

	if p.indicator != nil && summary.Error == "" && summary.TransportFailures == 0 {
		p.indicator.SetOffline(false)
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "drain_completed"),
		logging.Int("visited", summary.Visited),
		logging.Int("delivered", summary.Delivered),
		logging.Int("rejected", summary.Rejected),
		logging.Int("transport_failures", summary.TransportFailures),
		logging.Int("deferred", summary.Deferred),
		logging.Int("parked", summary.Parked+summary.NewlyParked),
		logging.Duration("duration", summary.Duration),
	}
	if summary.Visited == 0 {
		logger.Debug("drain completed; queue empty", logging.Args(attrs...)...)
	} else {
		logger.Info("drain completed", logging.Args(attrs...)...)
	}

	if summary.Delivered > 0 {
		p.publish(ctx, logger, notifications.EventDrainCompleted, notifications.Payload{
			"delivered": summary.Delivered,
			"remaining": summary.Retained(),
			"duration":  summary.Duration.Round(time.Second).String(),
		})
	}
}

func (p *Processor) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
