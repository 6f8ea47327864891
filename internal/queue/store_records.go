package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Add stores a report and returns its id. The record is durable once Add returns nil.
func (s *Store) Add(ctx context.Context, rec NewRecord) (int64, error) {
	if len(rec.Photo) == 0 {
		return 0, ErrEmptyPhoto
	}
	if err := validateCoordinates(rec.Latitude, rec.Longitude); err != nil {
		return 0, err
	}
	userID := strings.TrimSpace(rec.UserID)
	if userID == "" {
		return 0, errors.New("user id is required")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = s.clock()
	}

	res, err := s.execWithRetry(ctx,
		`INSERT INTO reports (photo, latitude, longitude, timestamp, user_id, filename, content_type, idempotency_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Photo,
		nullableFloat(rec.Latitude),
		nullableFloat(rec.Longitude),
		FormatTimestamp(created),
		userID,
		nullableString(rec.Filename),
		nullableString(rec.ContentType),
		uuid.NewString(),
	)
	if err != nil {
		return 0, &TransactionError{Op: "add", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &TransactionError{Op: "add", Err: fmt.Errorf("read insert id: %w", err)}
	}
	return id, nil
}

func validateCoordinates(lat, lon *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinates, *lat)
	}
	if lon != nil && (*lon < -180 || *lon > 180) {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinates, *lon)
	}
	return nil
}

// Get fetches one report including its photo.
func (s *Store) Get(ctx context.Context, id int64) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM reports WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &TransactionError{Op: "get", ID: id, Err: err}
	}
	return rec, nil
}

// Count returns the number of stored reports.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(*) FROM reports").Scan(&count); err != nil {
		return 0, &TransactionError{Op: "count", Err: err}
	}
	return count, nil
}

// List returns photo-less summaries in delivery order.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.timestamp, r.user_id, r.filename, r.content_type, length(r.photo),
		       r.latitude, r.longitude,
		       COALESCE(d.attempts, 0), COALESCE(d.rejections, 0), d.last_outcome, d.last_error,
		       d.last_attempt_at, d.next_attempt_at, COALESCE(d.parked, 0)
		FROM reports r
		LEFT JOIN delivery_attempts d ON d.report_id = r.id
		ORDER BY r.timestamp, r.id`)
	if err != nil {
		return nil, &TransactionError{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum         Summary
			filename    sql.NullString
			contentType sql.NullString
			lat, lon    sql.NullFloat64
			outcome     sql.NullString
			lastErr     sql.NullString
			lastAt      sql.NullString
			nextAt      sql.NullString
			parked      int
		)
		if err := rows.Scan(
			&sum.ID, &sum.Timestamp, &sum.UserID, &filename, &contentType, &sum.Size,
			&lat, &lon,
			&sum.Delivery.Attempts, &sum.Delivery.Rejections, &outcome, &lastErr,
			&lastAt, &nextAt, &parked,
		); err != nil {
			return nil, &TransactionError{Op: "list", Err: err}
		}
		sum.Filename = filename.String
		sum.ContentType = contentType.String
		sum.Latitude = floatPtr(lat)
		sum.Longitude = floatPtr(lon)
		sum.Delivery.ReportID = sum.ID
		sum.Delivery.LastOutcome = outcome.String
		sum.Delivery.LastError = lastErr.String
		sum.Delivery.LastAttemptAt = parseNullTime(lastAt)
		sum.Delivery.NextAttemptAt = parseNullTime(nextAt)
		sum.Delivery.Parked = parked != 0
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, &TransactionError{Op: "list", Err: err}
	}
	return out, nil
}

// Delete removes a report and its delivery bookkeeping. It returns ErrNotFound
// when no report has the id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM delivery_attempts WHERE report_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &TransactionError{Op: "delete", ID: id, Err: err}
}
