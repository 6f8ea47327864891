package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldreport/internal/config"
	"fieldreport/internal/logging"
	"fieldreport/internal/queue"
	"fieldreport/internal/upload"
)

// Photo is one capture as produced by the front-end.
type Photo struct {
	Data        []byte
	Filename    string
	ContentType string
	Latitude    *float64
	Longitude   *float64
	TakenAt     time.Time
	UserID      string
}

// Status says where a submitted report ended up.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusUploaded Status = "uploaded"
)

// Result describes a successful submission.
type Result struct {
	Status    Status    `json:"status"`
	ReportID  int64     `json:"report_id,omitempty"`
	Message   string    `json:"message"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	TakenAt   time.Time `json:"taken_at,omitzero"`
	Size      int       `json:"size"`
	Resized   bool      `json:"resized"`
}

// Failure is a capture error meant for the user.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return fmt.Sprintf("%s: %v", f.Message, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Queue accepts reports for later delivery.
type Queue interface {
	Add(ctx context.Context, rec queue.NewRecord) (int64, error)
}

// Connectivity reports current reachability.
type Connectivity interface {
	Online() bool
}

// Session routes captures according to policy, capabilities, and connectivity.
type Session struct {
	caps     config.Capabilities
	policy   string
	userID   string
	store    Queue
	uploader upload.Uploader
	online   Connectivity
	prep     preparer
	logger   *slog.Logger
	onQueued func()
	now      func() time.Time
}

// Option customizes a Session.
type Option func(*Session)

// WithDrainRequest registers a hook invoked after a report is queued while online.
func WithDrainRequest(fn func()) Option {
	return func(s *Session) { s.onQueued = fn }
}

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession builds a capture session. store may be nil when the host offers
// no persistent storage; online may be nil to treat the host as offline.
func NewSession(cfg *config.Config, store Queue, uploader upload.Uploader, online Connectivity, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		caps:     cfg.Capabilities,
		policy:   cfg.Capture.Policy,
		userID:   cfg.Upload.UserID,
		store:    store,
		uploader: uploader,
		online:   online,
		prep: preparer{
			maxDimension: cfg.Capture.MaxDimension,
			quality:      cfg.Capture.JPEGQuality,
			extractEXIF:  cfg.Capture.ExtractEXIF,
		},
		logger: logging.NewComponentLogger(logger, "capture"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueueAvailable reports whether offline queueing is possible.
func (s *Session) QueueAvailable() bool { return s.store != nil }

// Submit routes one capture. Every returned error is a *Failure.
func (s *Session) Submit(ctx context.Context, photo Photo) (Result, error) {
	if !s.caps.Camera {
		return Result{}, &Failure{Message: "photo capture is not supported on this device"}
	}
	if len(photo.Data) == 0 {
		return Result{}, &Failure{Message: "no photo was captured"}
	}

	if !validCoordinate(photo.Latitude, 90) || !validCoordinate(photo.Longitude, 180) {
		return Result{}, &Failure{Message: "the reported location is invalid", Err: queue.ErrInvalidCoordinates}
	}

	prepared, err := s.prep.prepare(photo)
	if err != nil {
		return Result{}, &Failure{Message: "photo could not be prepared", Err: err}
	}
	created := photo.TakenAt
	if created.IsZero() {
		created = s.now()
	}
	userID := strings.TrimSpace(photo.UserID)
	if userID == "" {
		userID = s.userID
	}
	rec := queue.NewRecord{
		Photo:       prepared.data,
		Latitude:    prepared.latitude,
		Longitude:   prepared.longitude,
		UserID:      userID,
		Filename:    prepared.filename,
		ContentType: prepared.contentType,
		CreatedAt:   created,
	}

	online := s.online != nil && s.online.Online()
	directFirst := online && (s.policy == config.CapturePolicyOfflineOnly || s.store == nil)
	// deferred is set when a direct upload already failed; the drain will retry it later.
	deferred := false

	if directFirst {
		outcome := s.uploader.Submit(ctx, directRecord(rec))
		if outcome.Delivered() {
			s.logger.Info("report uploaded directly",
				logging.String(logging.FieldEventType, "report_uploaded"),
				logging.Int("size", len(rec.Photo)),
			)
			return s.result(StatusUploaded, 0, "Report submitted.", prepared), nil
		}
		if s.store == nil {
			return Result{}, &Failure{
				Message: "report could not be submitted and cannot be saved for later on this device",
				Err:     fmt.Errorf("%s: %s", outcome.Kind, outcome.Detail()),
			}
		}
		logging.WarnWithContext(s.logger, "direct upload failed; queueing report", "direct_upload_failed",
			logging.String(logging.FieldOutcome, outcome.Kind.String()),
			logging.String("reason", outcome.Detail()),
			logging.String(logging.FieldImpact, "report will be delivered by a later drain"),
		)
		deferred = true
	}

	if s.store == nil {
		return Result{}, &Failure{
			Message: "you are offline and this device cannot store reports for later; try again when connected",
			Err:     queue.ErrStorageUnavailable,
		}
	}

	id, err := s.store.Add(ctx, rec)
	if err != nil {
		logging.ErrorWithContext(s.logger, "report could not be queued", "queue_add_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "captured report was lost"),
			logging.String(logging.FieldErrorHint, "check free space on the data directory"),
		)
		return Result{}, &Failure{Message: "report could not be saved on this device; please capture it again", Err: err}
	}
	s.logger.Info("report queued",
		logging.String(logging.FieldEventType, "report_queued"),
		logging.Int64(logging.FieldReportID, id),
		logging.Bool("online", online),
		logging.Bool("deferred", deferred),
	)
	if online && !deferred && s.onQueued != nil {
		s.onQueued()
	}
	msg := "You are offline. The report was saved and will be sent when you reconnect."
	switch {
	case deferred:
		msg = "The server did not accept the report right now. It was saved and will be retried."
	case online:
		msg = "Report saved and queued for upload."
	}
	return s.result(StatusQueued, id, msg, prepared), nil
}

func (s *Session) result(status Status, id int64, msg string, p prepared) Result {
	return Result{
		Status:    status,
		ReportID:  id,
		Message:   msg,
		Latitude:  p.latitude,
		Longitude: p.longitude,
		TakenAt:   p.takenAt,
		Size:      len(p.data),
		Resized:   p.resized,
	}
}

func directRecord(rec queue.NewRecord) *queue.Record {
	return &queue.Record{
		Photo:          rec.Photo,
		Latitude:       rec.Latitude,
		Longitude:      rec.Longitude,
		Timestamp:      queue.FormatTimestamp(rec.CreatedAt),
		UserID:         rec.UserID,
		Filename:       rec.Filename,
		ContentType:    rec.ContentType,
		IdempotencyKey: uuid.NewString(),
	}
}

func validCoordinate(v *float64, limit float64) bool {
	return v == nil || (*v >= -limit && *v <= limit)
}

// IsFailure reports whether err carries a user-facing capture failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}
