package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Report describes a queued report in a transport-friendly format.
type Report struct {
	ID          int64    `json:"id"`
	Timestamp   string   `json:"timestamp"`
	UserID      string   `json:"userId"`
	Filename    string   `json:"filename,omitempty"`
	ContentType string   `json:"contentType,omitempty"`
	Size        int64    `json:"size"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Delivery    Delivery `json:"delivery"`
}

// Delivery mirrors the retry bookkeeping kept for a report.
type Delivery struct {
	State         string `json:"state"`
	Attempts      int    `json:"attempts"`
	Rejections    int    `json:"rejections"`
	LastOutcome   string `json:"lastOutcome,omitempty"`
	LastError     string `json:"lastError,omitempty"`
	LastAttemptAt string `json:"lastAttemptAt,omitempty"`
	NextAttemptAt string `json:"nextAttemptAt,omitempty"`
}

// Delivery states derived from the bookkeeping row.
const (
	DeliveryPending    = "pending"
	DeliveryBackingOff = "backing_off"
	DeliveryParked     = "parked"
)

// QueueStats aggregates queue contents.
type QueueStats struct {
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	BackingOff int    `json:"backingOff"`
	Parked     int    `json:"parked"`
	TotalBytes int64  `json:"totalBytes"`
	Oldest     string `json:"oldest,omitempty"`
}

// Connectivity reports the monitor view of the network.
type Connectivity struct {
	State      string `json:"state"`
	Offline    bool   `json:"offline"`
	LastChange string `json:"lastChange,omitempty"`
	LastProbe  string `json:"lastProbe,omitempty"`
	LastError  string `json:"lastError,omitempty"`
	Netlink    bool   `json:"netlink"`
}

// DrainSummary describes one drain pass.
type DrainSummary struct {
	DrainID           string `json:"drainId,omitempty"`
	StartedAt         string `json:"startedAt,omitempty"`
	DurationMillis    int64  `json:"durationMillis"`
	Skipped           bool   `json:"skipped"`
	Visited           int    `json:"visited"`
	Delivered         int    `json:"delivered"`
	Rejected          int    `json:"rejected"`
	TransportFailures int    `json:"transportFailures"`
	Deferred          int    `json:"deferred"`
	Parked            int    `json:"parked"`
	NewlyParked       int    `json:"newlyParked"`
	DeleteFailures    int    `json:"deleteFailures"`
	Error             string `json:"error,omitempty"`
}

// DaemonStatus captures daemon runtime information.
type DaemonStatus struct {
	Running          bool          `json:"running"`
	PID              int           `json:"pid"`
	QueueAvailable   bool          `json:"queueAvailable"`
	QueueDBPath      string        `json:"queueDbPath,omitempty"`
	LockFilePath     string        `json:"lockFilePath"`
	LogPath          string        `json:"logPath,omitempty"`
	CapturePolicy    string        `json:"capturePolicy"`
	Connectivity     Connectivity  `json:"connectivity"`
	Draining         bool          `json:"draining"`
	LastDrain        *DrainSummary `json:"lastDrain,omitempty"`
	Queue            QueueStats    `json:"queue"`
	NotificationsSet bool          `json:"notificationsConfigured"`
}

// QueueListResponse wraps the queue listing.
type QueueListResponse struct {
	Reports []Report `json:"reports"`
}

// RetryResponse reports how many parked or backing-off reports were released.
type RetryResponse struct {
	Updated int64 `json:"updated"`
}

// DrainResponse wraps a manual drain result.
type DrainResponse struct {
	Summary DrainSummary `json:"summary"`
}

// NotifyResponse reports the outcome of a test notification.
type NotifyResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// CaptureRequest is the client-side input for POST /api/reports.
type CaptureRequest struct {
	Photo     []byte
	Filename  string
	Latitude  *float64
	Longitude *float64
	UserID    string
}

// CaptureResponse is the result of a capture hand-off.
type CaptureResponse struct {
	Status    string   `json:"status"`
	ReportID  int64    `json:"reportId,omitempty"`
	Message   string   `json:"message"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	TakenAt   string   `json:"takenAt,omitempty"`
	Size      int      `json:"size"`
	Resized   bool     `json:"resized"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusLine is one rendered row of the CLI status view.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}
