package queue

import (
	"context"
	"database/sql"
	"errors"
)

// Cursor points at the record currently handed to a Visitor.
type Cursor interface {
	// Delete removes the current record. Later records remain reachable.
	Delete(ctx context.Context) error
}

// Visitor receives each record in ascending timestamp order. Returning
// ErrStopTraversal ends the walk without error; any other error aborts it.
type Visitor func(ctx context.Context, rec *Record, cur Cursor) error

type recordCursor struct {
	store   *Store
	id      int64
	deleted bool
}

func (c *recordCursor) Delete(ctx context.Context) error {
	if c.deleted {
		return nil
	}
	if err := c.store.Delete(ctx, c.id); err != nil {
		return err
	}
	c.deleted = true
	return nil
}

// ForEachOrdered visits every stored report oldest first, ties broken by id.
// Each step reads the next record after the previous position, so deleting the
// current record through the cursor never skips or repeats a neighbour. Only
// one traversal may run per store; a concurrent call gets ErrTraversalActive.
func (s *Store) ForEachOrdered(ctx context.Context, visit Visitor) error {
	if visit == nil {
		return errors.New("visitor is required")
	}
	if !s.traversing.CompareAndSwap(false, true) {
		return ErrTraversalActive
	}
	defer s.traversing.Store(false)

	ctx = ensureContext(ctx)
	var (
		lastTimestamp string
		lastID        int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := s.nextAfter(ctx, lastTimestamp, lastID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return &TransactionError{Op: "traverse", ID: lastID, Err: err}
		}
		lastTimestamp, lastID = rec.Timestamp, rec.ID

		if err := visit(ctx, rec, &recordCursor{store: s, id: rec.ID}); err != nil {
			if errors.Is(err, ErrStopTraversal) {
				return nil
			}
			return err
		}
	}
}

func (s *Store) nextAfter(ctx context.Context, timestamp string, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+` FROM reports
		 WHERE timestamp > ? OR (timestamp = ? AND id > ?)
		 ORDER BY timestamp, id
		 LIMIT 1`,
		timestamp, timestamp, id,
	)
	return scanRecord(row)
}
