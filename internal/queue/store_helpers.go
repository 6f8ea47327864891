package queue

import (
	"database/sql"
	"errors"
	"time"
)

// timestampLayout is fixed width so lexical order in SQLite matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const recordColumns = "id, photo, latitude, longitude, timestamp, user_id, filename, content_type, idempotency_key"

// FormatTimestamp renders t in the stored UTC layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses a stored timestamp.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(timestampLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		rec         Record
		lat, lon    sql.NullFloat64
		filename    sql.NullString
		contentType sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Photo,
		&lat,
		&lon,
		&rec.Timestamp,
		&rec.UserID,
		&filename,
		&contentType,
		&rec.IdempotencyKey,
	); err != nil {
		return nil, err
	}
	rec.Latitude = floatPtr(lat)
	rec.Longitude = floatPtr(lon)
	rec.Filename = filename.String
	rec.ContentType = contentType.String
	return &rec, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return FormatTimestamp(*value)
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := ParseTimestamp(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
