package desk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"turnstile/internal/estimate"
	"turnstile/internal/logging"
	"turnstile/internal/period"
	"turnstile/internal/queue"
)

// Ticket is what a customer receives after taking a token.
type Ticket struct {
	Token                *queue.Token
	AheadCount           int
	EstimatedWaitMinutes int
	Period               period.Window
	// Existing is true when the owner already held a live token.
	Existing bool
}

// TakeToken returns the owner's live token for the current period, creating
// the next one in sequence when the owner has none. Repeated calls while the
// token is waiting or serving return the same token.
func (d *Desk) TakeToken(ctx context.Context, owner, name, email string) (Ticket, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return Ticket{}, fmt.Errorf("%w: owner is required", ErrInvalidRequest)
	}
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	window, err := d.CurrentPeriod(ctx)
	if err != nil {
		return Ticket{}, err
	}
	logger := d.log(ctx).With(logging.String(logging.FieldOwner, owner), logging.String(logging.FieldPeriod, window.Key))

	for attempt := 1; attempt <= d.attempts; attempt++ {
		existing, err := d.ledger.FindActiveByOwner(ctx, window.Key, owner)
		if err != nil {
			return Ticket{}, err
		}
		if existing != nil {
			return d.ticket(ctx, window, existing, true)
		}

		next, err := d.ledger.NextSequenceNumber(ctx, window.Key)
		if err != nil {
			return Ticket{}, err
		}
		token, err := d.ledger.Create(ctx, queue.NewToken{
			PeriodKey:      window.Key,
			SequenceNumber: next,
			OwnerRef:       owner,
			Name:           name,
			Email:          email,
		})
		if errors.Is(err, queue.ErrDuplicateToken) {
			logger.Debug("allocation race lost, retrying",
				logging.Int(logging.FieldSequence, next),
				logging.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return Ticket{}, err
		}

		logger.Info("token allocated",
			logging.String(logging.FieldEventType, "allocated"),
			logging.String(logging.FieldTokenID, token.ID),
			logging.Int(logging.FieldSequence, token.SequenceNumber),
		)
		return d.ticket(ctx, window, token, false)
	}

	logger.Warn("allocation retries exhausted", logging.Int("attempts", d.attempts))
	return Ticket{}, fmt.Errorf("%w: owner %s after %d attempts", ErrAllocationConflict, owner, d.attempts)
}

func (d *Desk) ticket(ctx context.Context, window period.Window, token *queue.Token, existing bool) (Ticket, error) {
	ahead, err := d.AheadCount(ctx, token)
	if err != nil {
		return Ticket{}, err
	}
	return Ticket{
		Token:                token,
		AheadCount:           ahead,
		EstimatedWaitMinutes: estimate.WaitMinutes(ahead, d.averageMinutes),
		Period:               window,
		Existing:             existing,
	}, nil
}

// AheadCount returns how many waiting tokens precede token in its period.
// Tokens that are no longer waiting have nobody ahead of them.
func (d *Desk) AheadCount(ctx context.Context, token *queue.Token) (int, error) {
	if token == nil || token.Status != queue.StatusWaiting {
		return 0, nil
	}
	return d.ledger.CountWaitingBefore(ctx, token.PeriodKey, token.SequenceNumber)
}
