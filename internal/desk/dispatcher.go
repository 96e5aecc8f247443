package desk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"turnstile/internal/logging"
	"turnstile/internal/notifications"
	"turnstile/internal/queue"
	"turnstile/internal/services"
)

// CallNext moves the oldest waiting token of the current period to serving
// for worker and returns it. It returns nil when nobody is waiting.
func (d *Desk) CallNext(ctx context.Context, worker string) (*queue.Token, error) {
	worker, err := requireWorker(worker)
	if err != nil {
		return nil, err
	}
	window, err := d.CurrentPeriod(ctx)
	if err != nil {
		return nil, err
	}

	token, err := d.ledger.ClaimNext(ctx, window.Key, worker)
	if err != nil {
		return nil, err
	}
	logger := d.log(services.WithWorker(ctx, worker))
	if token == nil {
		logger.Debug("queue empty", logging.String(logging.FieldPeriod, window.Key))
		return nil, nil
	}
	logTransition(logger, "called", token)
	if err := d.notifier.Publish(ctx, notifications.EventTokenCalled, notifications.Payload{
		"sequence": token.SequenceNumber,
		"owner":    token.OwnerRef,
		"name":     token.Name,
		"worker":   worker,
	}); err != nil {
		logger.Warn("token called notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
		)
	}
	return token, nil
}

// MarkDone finishes a serving token of the current period. When the desk
// enforces same-worker completion, only the worker serving the token may
// finish it.
func (d *Desk) MarkDone(ctx context.Context, tokenID, worker string) (*queue.Token, error) {
	worker, err := requireWorker(worker)
	if err != nil {
		return nil, err
	}
	window, err := d.CurrentPeriod(ctx)
	if err != nil {
		return nil, err
	}

	current, err := d.ledger.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.PeriodKey != window.Key {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, tokenID)
	}

	token, err := d.ledger.Complete(ctx, tokenID, worker, queue.CompleteOptions{SameWorker: d.sameWorker})
	if err != nil {
		return nil, translateLedgerError(err)
	}
	logTransition(d.log(services.WithWorker(ctx, worker)), "completed", token)
	return token, nil
}

// ServeBySequence finishes the token holding the customer-visible number in
// the current period. Unlike MarkDone it also accepts a waiting token,
// serving and completing it in one step on behalf of worker.
func (d *Desk) ServeBySequence(ctx context.Context, sequence int, worker string) (*queue.Token, error) {
	worker, err := requireWorker(worker)
	if err != nil {
		return nil, err
	}
	if sequence <= 0 {
		return nil, fmt.Errorf("%w: sequence number must be positive", ErrInvalidRequest)
	}
	window, err := d.CurrentPeriod(ctx)
	if err != nil {
		return nil, err
	}

	token, err := d.ledger.CompleteBySequence(ctx, window.Key, sequence, worker, queue.CompleteOptions{
		AllowWaiting: true,
		SameWorker:   d.sameWorker,
	})
	if err != nil {
		return nil, translateLedgerError(err)
	}
	logTransition(d.log(services.WithWorker(ctx, worker)), "served", token)
	return token, nil
}

func translateLedgerError(err error) error {
	if errors.Is(err, queue.ErrWorkerMismatch) {
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	return err
}

func logTransition(logger *slog.Logger, event string, token *queue.Token) {
	logger.Info("token "+event,
		logging.String(logging.FieldEventType, event),
		logging.String(logging.FieldTokenID, token.ID),
		logging.Int(logging.FieldSequence, token.SequenceNumber),
		logging.String(logging.FieldOwner, token.OwnerRef),
		logging.String(logging.FieldPeriod, token.PeriodKey),
	)
}
