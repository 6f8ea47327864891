package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable indicates no daemon API is configured or reachable.
var ErrUnavailable = errors.New("daemon API unavailable")

// StatusError is a non-2xx answer from the daemon.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon API returned status %d", e.Code)
	}
	return fmt.Sprintf("daemon API returned status %d: %s", e.Code, e.Message)
}

// Client talks to the daemon HTTP API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// NewClient builds a client for the daemon bound at bind. A nil client is
// returned when bind is empty; every method on it reports ErrUnavailable.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		// Drains and uploads can run for a while; callers bound them with ctx.
		http:  &http.Client{},
		token: strings.TrimSpace(token),
	}, nil
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, "", &out)
	return out, err
}

// Queue lists queued reports.
func (c *Client) Queue(ctx context.Context) ([]Report, error) {
	var out QueueListResponse
	if err := c.do(ctx, http.MethodGet, "/api/queue", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

// Retry releases a parked or backing-off report.
func (c *Client) Retry(ctx context.Context, id int64) (int64, error) {
	var out RetryResponse
	path := "/api/queue/" + strconv.FormatInt(id, 10) + "/retry"
	if err := c.do(ctx, http.MethodPost, path, nil, "", &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// Drain runs a drain pass in the daemon and waits for its summary.
func (c *Client) Drain(ctx context.Context) (DrainSummary, error) {
	var out DrainResponse
	if err := c.do(ctx, http.MethodPost, "/api/drain", nil, "", &out); err != nil {
		return DrainSummary{}, err
	}
	return out.Summary, nil
}

// TestNotification asks the daemon to publish a test notification.
func (c *Client) TestNotification(ctx context.Context) (NotifyResponse, error) {
	var out NotifyResponse
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, "", &out)
	return out, err
}

// Capture hands a photo report to the daemon.
func (c *Client) Capture(ctx context.Context, req CaptureRequest) (CaptureResponse, error) {
	body, contentType, err := encodeCapture(req)
	if err != nil {
		return CaptureResponse{}, err
	}
	var out CaptureResponse
	if err := c.do(ctx, http.MethodPost, "/api/reports", body, contentType, &out); err != nil {
		return CaptureResponse{}, err
	}
	return out, nil
}

func encodeCapture(req CaptureRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = "photo"
	}
	part, err := writer.CreateFormFile("photo", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(req.Photo); err != nil {
		return nil, "", fmt.Errorf("write photo part: %w", err)
	}
	fields := map[string]string{"userId": strings.TrimSpace(req.UserID)}
	if req.Latitude != nil {
		fields["latitude"] = strconv.FormatFloat(*req.Latitude, 'f', -1, 64)
	}
	if req.Longitude != nil {
		fields["longitude"] = strconv.FormatFloat(*req.Longitude, 'f', -1, 64)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if c == nil {
		return ErrUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &payload) != nil {
			payload.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WaitReady polls the status endpoint until the daemon answers or timeout elapses.
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) (DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := c.Status(ctx)
		if err == nil {
			return status, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return DaemonStatus{}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return DaemonStatus{}, fmt.Errorf("daemon not ready: %w", lastErr)
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}

// StatusCode extracts the HTTP status of a *StatusError, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}
