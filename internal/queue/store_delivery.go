package queue

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// DeliveryState returns retry bookkeeping for a report. Reports that were
// never attempted yield a zero state.
func (s *Store) DeliveryState(ctx context.Context, id int64) (DeliveryState, error) {
	ctx = ensureContext(ctx)
	state := DeliveryState{ReportID: id}
	var (
		outcome sql.NullString
		lastErr sql.NullString
		lastAt  sql.NullString
		nextAt  sql.NullString
		parked  int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT attempts, rejections, last_outcome, last_error, last_attempt_at, next_attempt_at, parked
		FROM delivery_attempts WHERE report_id = ?`, id,
	).Scan(&state.Attempts, &state.Rejections, &outcome, &lastErr, &lastAt, &nextAt, &parked)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, &TransactionError{Op: "delivery state", ID: id, Err: err}
	}
	state.LastOutcome = outcome.String
	state.LastError = lastErr.String
	state.LastAttemptAt = parseNullTime(lastAt)
	state.NextAttemptAt = parseNullTime(nextAt)
	state.Parked = parked != 0
	return state, nil
}

// RecordAttempt notes a failed delivery attempt. The report row itself is untouched.
func (s *Store) RecordAttempt(ctx context.Context, id int64, result AttemptResult) error {
	at := result.At
	if at.IsZero() {
		at = s.clock()
	}
	rejected := boolToInt(result.Rejected)
	_, err := s.execWithRetry(ctx, `
		INSERT INTO delivery_attempts
			(report_id, attempts, rejections, last_outcome, last_error, last_attempt_at, next_attempt_at, parked)
		VALUES (?, 1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(report_id) DO UPDATE SET
			attempts = attempts + 1,
			rejections = rejections + excluded.rejections,
			last_outcome = excluded.last_outcome,
			last_error = excluded.last_error,
			last_attempt_at = excluded.last_attempt_at,
			next_attempt_at = excluded.next_attempt_at,
			parked = excluded.parked`,
		id,
		rejected,
		nullableString(result.Outcome),
		nullableString(strings.TrimSpace(result.Error)),
		FormatTimestamp(at),
		nullableTime(result.NextAttemptAt),
		boolToInt(result.Park),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return &TransactionError{Op: "record attempt", ID: id, Err: err}
	}
	return nil
}

// ResetDelivery clears backoff and parking for the given reports, or for every
// report when ids is empty. It returns how many reports became eligible again.
func (s *Store) ResetDelivery(ctx context.Context, ids ...int64) (int64, error) {
	var updated int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE delivery_attempts SET parked = 0, rejections = 0, next_attempt_at = NULL
			WHERE (parked = 1 OR next_attempt_at IS NOT NULL)`
		args := make([]any, 0, len(ids))
		if len(ids) > 0 {
			query += " AND report_id IN (" + makePlaceholders(len(ids)) + ")"
			for _, id := range ids {
				args = append(args, id)
			}
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		updated, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, &TransactionError{Op: "reset delivery", Err: err}
	}
	return updated, nil
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
