package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fieldreport/internal/config"
	"fieldreport/internal/logging"
	"fieldreport/internal/queue"
)

const (
	userAgent       = "fieldreport/0.1.0"
	maxResponseBody = 64 * 1024
	defaultFilename = "report.jpg"
	defaultMIME     = "image/jpeg"
)

// Uploader submits a single report and waits for the server's verdict.
type Uploader interface {
	Submit(ctx context.Context, rec *queue.Record) Outcome
}

// Client posts reports as multipart forms to the configured endpoint.
type Client struct {
	endpoint string
	token    string
	userID   string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient builds an upload client from configuration. A non-positive rate disables pacing.
func NewClient(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	timeout := cfg.UploadTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.Upload.RatePerSecond > 0 {
		limit = rate.Limit(cfg.Upload.RatePerSecond)
	}
	burst := cfg.Upload.Burst
	if burst <= 0 {
		burst = 1
	}
	c := &Client{
		endpoint: strings.TrimSpace(cfg.Upload.Endpoint),
		token:    strings.TrimSpace(cfg.Upload.Token),
		userID:   strings.TrimSpace(cfg.Upload.UserID),
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logging.NewComponentLogger(logger, "uploader"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type serverResponse struct {
	Success      *bool  `json:"success"`
	Error        string `json:"error"`
	Message      string `json:"message"`
	UploadStatus string `json:"upload_status"`
}

// Submit posts rec and classifies the answer. It never returns a partially
// classified outcome: anything short of an explicit verdict is a TransportFailure.
func (c *Client) Submit(ctx context.Context, rec *queue.Record) Outcome {
	if rec == nil {
		return transportFailure(0, errors.New("nil report"))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return transportFailure(0, fmt.Errorf("wait for upload slot: %w", err))
	}

	body, contentType, err := c.encode(rec)
	if err != nil {
		return transportFailure(0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return transportFailure(0, fmt.Errorf("build upload request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if rec.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", rec.IdempotencyKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return transportFailure(0, fmt.Errorf("post report: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return transportFailure(resp.StatusCode, fmt.Errorf("read upload response: %w", err))
	}
	outcome := classify(resp.StatusCode, raw)
	c.logger.Debug("upload answered",
		logging.Int64(logging.FieldReportID, rec.ID),
		logging.Int("status", resp.StatusCode),
		logging.String(logging.FieldOutcome, outcome.Kind.String()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return outcome
}

func classify(status int, raw []byte) Outcome {
	if status < 200 || status >= 300 {
		snippet := strings.TrimSpace(string(raw))
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return Outcome{Kind: TransportFailure, StatusCode: status, Err: fmt.Errorf("server returned %d: %s", status, snippet)}
	}

	var parsed serverResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return transportFailure(status, fmt.Errorf("decode upload response: %w", err))
	}
	switch {
	case parsed.Success != nil && *parsed.Success:
		return Outcome{Kind: Delivered, StatusCode: status}
	case parsed.Success != nil:
		return Outcome{Kind: Rejected, StatusCode: status, Message: rejectionMessage(parsed)}
	case strings.EqualFold(parsed.UploadStatus, "success"):
		return Outcome{Kind: Delivered, StatusCode: status}
	case parsed.UploadStatus != "":
		return Outcome{Kind: Rejected, StatusCode: status, Message: rejectionMessage(parsed)}
	default:
		return transportFailure(status, errors.New("upload response has no success indicator"))
	}
}

func rejectionMessage(resp serverResponse) string {
	for _, candidate := range []string{resp.Error, resp.Message, resp.UploadStatus} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return "rejected by server"
}

func (c *Client) encode(rec *queue.Record) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := rec.Filename
	if filename == "" {
		filename = defaultFilename
	}
	contentType := rec.ContentType
	if contentType == "" {
		contentType = defaultMIME
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(rec.Photo); err != nil {
		return nil, "", fmt.Errorf("write photo part: %w", err)
	}

	userID := rec.UserID
	if userID == "" {
		userID = c.userID
	}
	fields := []struct{ name, value string }{
		{"latitude", formatCoordinate(rec.Latitude)},
		{"longitude", formatCoordinate(rec.Longitude)},
		{"userId", userID},
		{"timestamp", rec.Timestamp},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func formatCoordinate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
