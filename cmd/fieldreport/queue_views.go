package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"fieldreport/internal/api"
	"fieldreport/internal/queue"
	"fieldreport/internal/textutil"
)

var queueStatusColumns = []tableColumn{
	{header: "Delivery", align: alignLeft},
	{header: "Count", align: alignRight},
}

var queueListColumns = []tableColumn{
	{header: "ID", align: alignRight},
	{header: "Captured", align: alignLeft},
	{header: "User", align: alignLeft},
	{header: "Size", align: alignRight},
	{header: "Location", align: alignLeft},
	{header: "Delivery", align: alignLeft},
	{header: "Attempts", align: alignRight},
	{header: "Last Error", align: alignLeft},
}

func buildQueueStatusRows(stats api.QueueStats) [][]string {
	if stats.Total == 0 {
		return nil
	}
	rows := make([][]string, 0, 3)
	for _, entry := range []struct {
		label string
		count int
	}{
		{"Pending", stats.Pending},
		{"Backing off", stats.BackingOff},
		{"Parked", stats.Parked},
	} {
		if entry.count == 0 {
			continue
		}
		rows = append(rows, []string{entry.label, strconv.Itoa(entry.count)})
	}
	return rows
}

func queueStatusFooter(stats api.QueueStats) []string {
	return []string{"Total", fmt.Sprintf("%d (%s)", stats.Total, humanize.Bytes(uint64(max(stats.TotalBytes, 0))))}
}

func buildQueueListRows(reports []api.Report, now time.Time) [][]string {
	rows := make([][]string, 0, len(reports))
	for _, report := range reports {
		rows = append(rows, []string{
			strconv.FormatInt(report.ID, 10),
			formatCaptured(report.Timestamp, now),
			report.UserID,
			humanize.Bytes(uint64(max(report.Size, 0))),
			formatLocation(report.Latitude, report.Longitude),
			formatDelivery(report.Delivery, now),
			strconv.Itoa(report.Delivery.Attempts),
			textutil.Truncate(report.Delivery.LastError, 40),
		})
	}
	return rows
}

func formatCaptured(value string, now time.Time) string {
	ts, err := queue.ParseTimestamp(value)
	if err != nil {
		return value
	}
	return humanize.RelTime(ts, now, "ago", "from now")
}

func formatLocation(lat, lon *float64) string {
	if lat == nil || lon == nil {
		return "-"
	}
	return fmt.Sprintf("%.5f, %.5f", *lat, *lon)
}

func formatDelivery(d api.Delivery, now time.Time) string {
	switch d.State {
	case api.DeliveryParked:
		return "parked"
	case api.DeliveryBackingOff:
		if next, err := queue.ParseTimestamp(d.NextAttemptAt); err == nil {
			return "retry " + humanize.RelTime(next, now, "ago", "from now")
		}
		return "backing off"
	default:
		return "pending"
	}
}
