package api

import (
	"time"

	"fieldreport/internal/capture"
	"fieldreport/internal/connectivity"
	"fieldreport/internal/processor"
	"fieldreport/internal/queue"
)

// FromSummary converts a queue summary to its API representation.
func FromSummary(s queue.Summary, now time.Time) Report {
	return Report{
		ID:          s.ID,
		Timestamp:   s.Timestamp,
		UserID:      s.UserID,
		Filename:    s.Filename,
		ContentType: s.ContentType,
		Size:        s.Size,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		Delivery:    FromDeliveryState(s.Delivery, now),
	}
}

// FromSummaries converts a queue listing, preserving order.
func FromSummaries(items []queue.Summary, now time.Time) []Report {
	out := make([]Report, 0, len(items))
	for _, item := range items {
		out = append(out, FromSummary(item, now))
	}
	return out
}

// FromDeliveryState derives the delivery DTO and its state label.
func FromDeliveryState(d queue.DeliveryState, now time.Time) Delivery {
	dto := Delivery{
		State:       DeliveryState(d, now),
		Attempts:    d.Attempts,
		Rejections:  d.Rejections,
		LastOutcome: d.LastOutcome,
		LastError:   d.LastError,
	}
	if d.LastAttemptAt != nil {
		dto.LastAttemptAt = formatTime(*d.LastAttemptAt)
	}
	if d.NextAttemptAt != nil {
		dto.NextAttemptAt = formatTime(*d.NextAttemptAt)
	}
	return dto
}

// DeliveryState labels a bookkeeping row as pending, backing_off, or parked.
func DeliveryState(d queue.DeliveryState, now time.Time) string {
	switch {
	case d.Parked:
		return DeliveryParked
	case !d.Eligible(now):
		return DeliveryBackingOff
	default:
		return DeliveryPending
	}
}

// FromStats converts queue aggregates.
func FromStats(s queue.Stats) QueueStats {
	return QueueStats{
		Total:      s.Total,
		Pending:    s.Pending,
		BackingOff: s.BackingOff,
		Parked:     s.Parked,
		TotalBytes: s.TotalBytes,
		Oldest:     s.OldestTimestamp,
	}
}

// FromDrainSummary converts a processor summary.
func FromDrainSummary(s processor.Summary) DrainSummary {
	dto := DrainSummary{
		DrainID:           s.DrainID,
		DurationMillis:    s.Duration.Milliseconds(),
		Skipped:           s.Skipped,
		Visited:           s.Visited,
		Delivered:         s.Delivered,
		Rejected:          s.Rejected,
		TransportFailures: s.TransportFailures,
		Deferred:          s.Deferred,
		Parked:            s.Parked,
		NewlyParked:       s.NewlyParked,
		DeleteFailures:    s.DeleteFailures,
		Error:             s.Error,
	}
	if !s.StartedAt.IsZero() {
		dto.StartedAt = formatTime(s.StartedAt)
	}
	return dto
}

// FromSnapshot converts the connectivity monitor view.
func FromSnapshot(s connectivity.Snapshot, offline bool) Connectivity {
	dto := Connectivity{
		State:     s.State.String(),
		Offline:   offline,
		LastError: s.LastError,
		Netlink:   s.Netlink,
	}
	if !s.LastChange.IsZero() {
		dto.LastChange = formatTime(s.LastChange)
	}
	if !s.LastProbe.IsZero() {
		dto.LastProbe = formatTime(s.LastProbe)
	}
	return dto
}

// FromCaptureResult converts a capture outcome.
func FromCaptureResult(r capture.Result) CaptureResponse {
	dto := CaptureResponse{
		Status:    string(r.Status),
		ReportID:  r.ReportID,
		Message:   r.Message,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Size:      r.Size,
		Resized:   r.Resized,
	}
	if !r.TakenAt.IsZero() {
		dto.TakenAt = formatTime(r.TakenAt)
	}
	return dto
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dateTimeFormat)
}
