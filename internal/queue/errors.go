package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable means the host offers no usable persistent storage.
	// Offline queueing is disabled; callers degrade to direct upload.
	ErrStorageUnavailable = errors.New("persistent storage unavailable")
	// ErrNotFound is returned when no report matches the requested id.
	ErrNotFound = errors.New("report not found")
	// ErrTraversalActive is returned when ForEachOrdered is already running on the store.
	ErrTraversalActive = errors.New("ordered traversal already active")
	// ErrStopTraversal may be returned by a visitor to end ForEachOrdered early without error.
	ErrStopTraversal = errors.New("stop traversal")
	// ErrEmptyPhoto rejects records without a photo payload.
	ErrEmptyPhoto = errors.New("photo payload is empty")
	// ErrInvalidCoordinates rejects latitude/longitude outside their valid ranges.
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// TransactionError reports a storage engine failure during one store operation.
type TransactionError struct {
	Op  string
	ID  int64
	Err error
}

func (e *TransactionError) Error() string {
	if e.ID > 0 {
		return fmt.Sprintf("queue %s report %d: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// IsTransactionError reports whether err wraps a *TransactionError.
func IsTransactionError(err error) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr)
}
