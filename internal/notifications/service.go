package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldreport/internal/config"
)

const userAgent = "fieldreport/0.1.0"

// Event names a notification trigger.
type Event string

const (
	EventDrainCompleted Event = "drain_completed"
	EventReportParked   Event = "report_parked"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event details. Values are rendered with fmt when not strings.
type Payload map[string]any

func (p Payload) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

func (p Payload) number(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg.Notifications,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventDrainCompleted:
		delivered := payload.number("delivered")
		if !n.toggles.Drain || delivered < max(n.toggles.MinDelivered, 1) {
			return message{}, false
		}
		body := fmt.Sprintf("📤 Delivered %d queued report(s)", delivered)
		if remaining := payload.number("remaining"); remaining > 0 {
			body += fmt.Sprintf(", %d still queued", remaining)
		}
		if d := payload.str("duration"); d != "" {
			body += " in " + d
		}
		return message{
			title: "Field Report - Queue Drained",
			body:  body,
			tags:  []string{"fieldreport", "drain", "completed"},
		}, true
	case EventReportParked:
		if !n.toggles.Parked {
			return message{}, false
		}
		body := fmt.Sprintf("⏸️ Report %s parked after %s rejections", payload.str("reportID"), payload.str("rejections"))
		if reason := payload.str("reason"); reason != "" {
			body += "\nServer said: " + reason
		}
		return message{
			title:    "Field Report - Report Parked",
			body:     body,
			tags:     []string{"fieldreport", "queue", "parked"},
			priority: "high",
		}, true
	case EventError:
		if !n.toggles.Errors {
			return message{}, false
		}
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := payload.str("context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if e := payload.str("error"); e != "" {
			b.WriteString(e)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Field Report - Error",
			body:     b.String(),
			tags:     []string{"fieldreport", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Field Report - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"fieldreport", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
