package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SetStatus moves a token to its forward-adjacent status. Moving to serving
// records by as the serving worker. The update is a compare-and-set on the
// observed status, so a concurrent change is re-evaluated instead of
// overwritten.
func (s *Store) SetStatus(ctx context.Context, id string, to Status, by string) (*Token, error) {
	ctx = ensureContext(ctx)
	for attempt := 0; attempt < transitionAttempts; attempt++ {
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if current.Status.Next() != to || to == "" {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
		}

		var res sql.Result
		timestamp := formatTime(s.now())
		switch to {
		case StatusServing:
			res, err = s.execWithRetry(
				ctx,
				`UPDATE tokens SET status = ?, served_by = ?, called_at = ?, updated_at = ?
                WHERE id = ? AND status = ?`,
				StatusServing, nullableString(strings.TrimSpace(by)), timestamp, timestamp,
				id, current.Status,
			)
		case StatusDone:
			res, err = s.execWithRetry(
				ctx,
				`UPDATE tokens SET status = ?, completed_at = ?, updated_at = ?
                WHERE id = ? AND status = ?`,
				StatusDone, timestamp, timestamp,
				id, current.Status,
			)
		}
		if err != nil {
			return nil, unavailable("update token status", err)
		}
		if applied, err := res.RowsAffected(); err != nil {
			return nil, unavailable("update token status", err)
		} else if applied == 1 {
			return s.mustGet(ctx, id)
		}
	}
	return nil, fmt.Errorf("%w: token %s changed concurrently", ErrInvalidTransition, id)
}

// ClaimNext moves the oldest waiting token of the period to serving for
// worker. Ordering is created_at then sequence number. A token claimed by a
// concurrent caller is skipped, so each waiting token is delivered at most
// once. Returns nil when nothing is waiting.
func (s *Store) ClaimNext(ctx context.Context, periodKey, worker string) (*Token, error) {
	ctx = ensureContext(ctx)
	worker = strings.TrimSpace(worker)
	for attempt := 0; attempt < claimAttempts; attempt++ {
		var id string
		err := s.db.QueryRowContext(
			ctx,
			`SELECT id FROM tokens WHERE period_key = ? AND status = ?
            ORDER BY created_at, sequence_number LIMIT 1`,
			periodKey,
			StatusWaiting,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, unavailable("select next waiting token", err)
		}

		timestamp := formatTime(s.now())
		res, err := s.execWithRetry(
			ctx,
			`UPDATE tokens SET status = ?, served_by = ?, called_at = ?, updated_at = ?
            WHERE id = ? AND status = ?`,
			StatusServing, nullableString(worker), timestamp, timestamp,
			id, StatusWaiting,
		)
		if err != nil {
			return nil, unavailable("claim token", err)
		}
		applied, err := res.RowsAffected()
		if err != nil {
			return nil, unavailable("claim token", err)
		}
		if applied == 1 {
			return s.mustGet(ctx, id)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, unavailable("claim token", errors.New("contention did not settle"))
}

// Complete finishes the token with the given id on behalf of worker.
func (s *Store) Complete(ctx context.Context, id, worker string, opts CompleteOptions) (*Token, error) {
	return s.complete(ctx, worker, opts, func() (*Token, error) {
		token, err := s.GetByID(ctx, id)
		if err == nil && token == nil {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return token, err
	})
}

// CompleteBySequence finishes the token holding sequence in the period on
// behalf of worker.
func (s *Store) CompleteBySequence(ctx context.Context, periodKey string, sequence int, worker string, opts CompleteOptions) (*Token, error) {
	return s.complete(ctx, worker, opts, func() (*Token, error) {
		token, err := s.GetBySequence(ctx, periodKey, sequence)
		if err == nil && token == nil {
			err = fmt.Errorf("%w: period %s sequence %d", ErrNotFound, periodKey, sequence)
		}
		return token, err
	})
}

func (s *Store) complete(ctx context.Context, worker string, opts CompleteOptions, load func() (*Token, error)) (*Token, error) {
	ctx = ensureContext(ctx)
	worker = strings.TrimSpace(worker)
	for attempt := 0; attempt < transitionAttempts; attempt++ {
		current, err := load()
		if err != nil {
			return nil, err
		}

		var res sql.Result
		timestamp := formatTime(s.now())
		switch current.Status {
		case StatusServing:
			if opts.SameWorker && current.ServedBy != worker {
				return nil, fmt.Errorf("%w: token %d is served by %q", ErrWorkerMismatch, current.SequenceNumber, current.ServedBy)
			}
			res, err = s.execWithRetry(
				ctx,
				`UPDATE tokens SET status = ?, completed_at = ?, updated_at = ?
                WHERE id = ? AND status = ?`,
				StatusDone, timestamp, timestamp,
				current.ID, StatusServing,
			)
		case StatusWaiting:
			if !opts.AllowWaiting {
				return nil, fmt.Errorf("%w: token %d is waiting, not serving", ErrInvalidTransition, current.SequenceNumber)
			}
			res, err = s.execWithRetry(
				ctx,
				`UPDATE tokens SET status = ?, served_by = ?, called_at = ?, completed_at = ?, updated_at = ?
                WHERE id = ? AND status = ?`,
				StatusDone, nullableString(worker), timestamp, timestamp, timestamp,
				current.ID, StatusWaiting,
			)
		default:
			return nil, fmt.Errorf("%w: token %d is already %s", ErrInvalidTransition, current.SequenceNumber, current.Status)
		}
		if err != nil {
			return nil, unavailable("complete token", err)
		}
		if applied, err := res.RowsAffected(); err != nil {
			return nil, unavailable("complete token", err)
		} else if applied == 1 {
			return s.mustGet(ctx, current.ID)
		}
	}
	return nil, fmt.Errorf("%w: token changed concurrently", ErrInvalidTransition)
}

func (s *Store) mustGet(ctx context.Context, id string) (*Token, error) {
	token, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return token, nil
}
