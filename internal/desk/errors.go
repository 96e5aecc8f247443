package desk

import "errors"

var (
	// ErrAllocationConflict reports that concurrent allocations kept winning
	// the next sequence number until the retry bound was exhausted.
	ErrAllocationConflict = errors.New("token allocation conflict")
	// ErrForbidden reports a completion by a worker other than the one
	// serving the token.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidRequest reports missing or malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
)
