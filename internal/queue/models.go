package queue

import "time"

// Record is one queued photo report. Records are never updated after Add.
type Record struct {
	ID             int64
	Photo          []byte
	Latitude       *float64
	Longitude      *float64
	Timestamp      string
	UserID         string
	Filename       string
	ContentType    string
	IdempotencyKey string
}

// CreatedAt parses the stored timestamp; it returns the zero time when unparsable.
func (r *Record) CreatedAt() time.Time {
	if r == nil {
		return time.Time{}
	}
	t, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasLocation reports whether both coordinates were captured.
func (r *Record) HasLocation() bool {
	return r != nil && r.Latitude != nil && r.Longitude != nil
}

// NewRecord is the capture-side input to Add. CreatedAt defaults to the current time.
type NewRecord struct {
	Photo       []byte
	Latitude    *float64
	Longitude   *float64
	UserID      string
	Filename    string
	ContentType string
	CreatedAt   time.Time
}

// Summary is the photo-less view of a queued report used by list and status output.
type Summary struct {
	ID          int64
	Timestamp   string
	UserID      string
	Filename    string
	ContentType string
	Size        int64
	Latitude    *float64
	Longitude   *float64
	Delivery    DeliveryState
}

// Attempt outcomes persisted in delivery_attempts.last_outcome.
const (
	OutcomeRejected         = "rejected"
	OutcomeTransportFailure = "transport_failure"
)

// DeliveryState is the retry bookkeeping kept beside a record.
type DeliveryState struct {
	ReportID      int64
	Attempts      int
	Rejections    int
	LastOutcome   string
	LastError     string
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time
	Parked        bool
}

// Eligible reports whether the record may be offered to the server at now.
func (d DeliveryState) Eligible(now time.Time) bool {
	if d.Parked {
		return false
	}
	return d.NextAttemptAt == nil || !d.NextAttemptAt.After(now)
}

// AttemptResult describes one failed delivery attempt.
type AttemptResult struct {
	Outcome       string
	Error         string
	At            time.Time
	Rejected      bool
	NextAttemptAt *time.Time
	Park          bool
}

// Stats aggregates queue contents for status output.
type Stats struct {
	Total           int
	Pending         int
	BackingOff      int
	Parked          int
	TotalBytes      int64
	OldestTimestamp string
}

// DatabaseHealth captures diagnostic details for the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	Migrations       []string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalReports     int
	Error            string
}
