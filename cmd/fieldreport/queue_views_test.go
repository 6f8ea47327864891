package main

import (
	"strings"
	"testing"
	"time"

	"fieldreport/internal/api"
)

func TestBuildQueueStatusRowsSkipsZeroCounts(t *testing.T) {
	rows := buildQueueStatusRows(api.QueueStats{Total: 3, Pending: 2, Parked: 1})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %v", rows)
	}
	if rows[0][0] != "Pending" || rows[0][1] != "2" || rows[1][0] != "Parked" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if buildQueueStatusRows(api.QueueStats{}) != nil {
		t.Fatal("empty queue should produce no rows")
	}
}

func TestFormatDelivery(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		delivery api.Delivery
		want     string
	}{
		{name: "pending", delivery: api.Delivery{State: api.DeliveryPending}, want: "pending"},
		{name: "parked", delivery: api.Delivery{State: api.DeliveryParked}, want: "parked"},
		{name: "backing off", delivery: api.Delivery{State: api.DeliveryBackingOff, NextAttemptAt: "2026-05-01T12:10:00.000Z"}, want: "retry 10 minutes from now"},
		{name: "backing off without time", delivery: api.Delivery{State: api.DeliveryBackingOff}, want: "backing off"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDelivery(tt.delivery, now); got != tt.want {
				t.Fatalf("formatDelivery = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Queue", statusWarn, "2 parked", false)
	if !strings.Contains(line, "Queue:") || !strings.Contains(line, "[WARN] 2 parked") {
		t.Fatalf("unexpected line %q", line)
	}
	colored := renderStatusLine("Queue", statusOK, "", true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected colored output, got %q", colored)
	}
}

func TestRenderTableKeepsFooterCase(t *testing.T) {
	stats := api.QueueStats{Total: 2, Pending: 2, TotalBytes: 52}
	out := renderTable(queueStatusColumns, buildQueueStatusRows(stats), queueStatusFooter(stats))
	if !strings.Contains(out, "Total") || strings.Contains(out, "TOTAL") {
		t.Fatalf("expected footer label as written, got:\n%s", out)
	}
	if !strings.Contains(out, "2 (52 B)") {
		t.Fatalf("expected total with size, got:\n%s", out)
	}
}
