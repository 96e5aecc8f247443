package desk_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"turnstile/internal/desk"
	"turnstile/internal/notifications"
	"turnstile/internal/period"
	"turnstile/internal/queue"
	"turnstile/internal/testsupport"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
	err    error
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.last = payload
	return r.err
}

func newNotifyingDesk(t *testing.T, notifier notifications.Service) *desk.Desk {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	clock := period.Fake(testsupport.Epoch)
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock))
	d, err := desk.New(cfg, store, desk.WithClock(clock), desk.WithNotifier(notifier))
	if err != nil {
		t.Fatalf("desk.New: %v", err)
	}
	return d
}

func TestCallNextPublishesNowServing(t *testing.T) {
	notifier := &recordingNotifier{}
	d := newNotifyingDesk(t, notifier)
	ctx := context.Background()

	if _, err := d.CallNext(ctx, "desk-1"); err != nil {
		t.Fatalf("CallNext on empty queue: %v", err)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("expected no event for an empty queue, got %v", notifier.events)
	}

	testsupport.MustTake(t, d, "alice")
	if _, err := d.CallNext(ctx, "desk-1"); err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventTokenCalled {
		t.Fatalf("expected one token_called event, got %v", notifier.events)
	}
	if notifier.last["sequence"] != 1 || notifier.last["worker"] != "desk-1" || notifier.last["owner"] != "alice" {
		t.Fatalf("unexpected payload %v", notifier.last)
	}
}

func TestCallNextIgnoresNotificationFailure(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("ntfy down")}
	d := newNotifyingDesk(t, notifier)

	testsupport.MustTake(t, d, "bob")
	token, err := d.CallNext(context.Background(), "desk-2")
	if err != nil {
		t.Fatalf("expected call to succeed despite notifier error, got %v", err)
	}
	if token == nil || token.Status != queue.StatusServing {
		t.Fatalf("expected serving token, got %#v", token)
	}
}
