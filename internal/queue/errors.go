package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that the referenced token does not exist.
	ErrNotFound = errors.New("token not found")
	// ErrInvalidTransition reports a status change that is not forward-adjacent.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDuplicateToken reports that a sequence number or live owner slot is
	// already taken in the period.
	ErrDuplicateToken = errors.New("duplicate token")
	// ErrWorkerMismatch reports a completion attempt by a worker other than the
	// one serving the token.
	ErrWorkerMismatch = errors.New("token is served by another worker")
	// ErrUnavailable wraps every storage-level failure.
	ErrUnavailable = errors.New("token ledger unavailable")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
