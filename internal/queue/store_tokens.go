package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Create inserts a waiting token. ErrDuplicateToken is returned when the
// sequence number is already taken in the period or the owner already holds
// a live token there; both are the expected allocation race.
func (s *Store) Create(ctx context.Context, token NewToken) (*Token, error) {
	token.PeriodKey = strings.TrimSpace(token.PeriodKey)
	token.OwnerRef = strings.TrimSpace(token.OwnerRef)
	if token.PeriodKey == "" {
		return nil, errors.New("create token: period key is required")
	}
	if token.OwnerRef == "" {
		return nil, errors.New("create token: owner is required")
	}
	if token.SequenceNumber <= 0 {
		return nil, fmt.Errorf("create token: sequence number must be positive, got %d", token.SequenceNumber)
	}
	if token.ID == "" {
		token.ID = uuid.NewString()
	}

	now := s.now()
	timestamp := formatTime(now)
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO tokens (
            id, period_key, sequence_number, owner_ref, name, email,
            status, served_by, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		token.ID,
		token.PeriodKey,
		token.SequenceNumber,
		token.OwnerRef,
		nullableString(token.Name),
		nullableString(token.Email),
		StatusWaiting,
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: period %s sequence %d owner %s", ErrDuplicateToken, token.PeriodKey, token.SequenceNumber, token.OwnerRef)
		}
		return nil, unavailable("insert token", err)
	}

	return &Token{
		ID:             token.ID,
		PeriodKey:      token.PeriodKey,
		SequenceNumber: token.SequenceNumber,
		OwnerRef:       token.OwnerRef,
		Name:           token.Name,
		Email:          token.Email,
		Status:         StatusWaiting,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// GetByID fetches a token by identifier, returning nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Token, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+tokenColumns+` FROM tokens WHERE id = ?`, id)
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get token", err)
	}
	return token, nil
}

// GetBySequence fetches the token holding sequence in the period, returning nil when absent.
func (s *Store) GetBySequence(ctx context.Context, periodKey string, sequence int) (*Token, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+tokenColumns+` FROM tokens WHERE period_key = ? AND sequence_number = ?`,
		periodKey,
		sequence,
	)
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get token by sequence", err)
	}
	return token, nil
}

// FindActiveByOwner returns the owner's waiting or serving token in the
// period, or nil when the owner has none.
func (s *Store) FindActiveByOwner(ctx context.Context, periodKey, owner string) (*Token, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+tokenColumns+` FROM tokens
        WHERE period_key = ? AND owner_ref = ? AND status IN (?, ?)
        ORDER BY sequence_number LIMIT 1`,
		periodKey,
		strings.TrimSpace(owner),
		StatusWaiting,
		StatusServing,
	)
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("find active token", err)
	}
	return token, nil
}

// NextSequenceNumber returns the number the next token created in the
// period must carry. It is derived from the row count so it can never drift
// from what is stored.
func (s *Store) NextSequenceNumber(ctx context.Context, periodKey string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM tokens WHERE period_key = ?`,
		periodKey,
	).Scan(&count); err != nil {
		return 0, unavailable("count period tokens", err)
	}
	return count + 1, nil
}

// ListPeriod returns every token of the period in creation order.
func (s *Store) ListPeriod(ctx context.Context, periodKey string) ([]*Token, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+tokenColumns+` FROM tokens WHERE period_key = ? ORDER BY created_at, sequence_number`,
		periodKey,
	)
	if err != nil {
		return nil, unavailable("list period tokens", err)
	}
	tokens, err := scanTokens(rows)
	if err != nil {
		return nil, unavailable("scan period tokens", err)
	}
	return tokens, nil
}

// ListByOwner returns the owner's retained tokens newest first, optionally
// restricted to the given statuses.
func (s *Store) ListByOwner(ctx context.Context, owner string, statuses ...Status) ([]*Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE owner_ref = ?`
	args := []any{strings.TrimSpace(owner)}
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, sequence_number DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, unavailable("list owner tokens", err)
	}
	tokens, err := scanTokens(rows)
	if err != nil {
		return nil, unavailable("scan owner tokens", err)
	}
	return tokens, nil
}

// CountWaitingBefore counts waiting tokens of the period whose sequence
// number is strictly below sequence.
func (s *Store) CountWaitingBefore(ctx context.Context, periodKey string, sequence int) (int, error) {
	var count int
	if err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM tokens WHERE period_key = ? AND status = ? AND sequence_number < ?`,
		periodKey,
		StatusWaiting,
		sequence,
	).Scan(&count); err != nil {
		return 0, unavailable("count waiting tokens", err)
	}
	return count, nil
}
