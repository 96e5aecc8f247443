package testsupport

import (
	"testing"
	"time"

	"turnstile/internal/config"
	"turnstile/internal/desk"
	"turnstile/internal/period"
	"turnstile/internal/queue"
)

// Epoch is the fixed instant fake clocks start from: mid-morning UTC so a
// test has hours of headroom before the period rolls over.
var Epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// NewDesk wires a desk, its store, and a fake clock starting at Epoch.
func NewDesk(t testing.TB, cfg *config.Config) (*desk.Desk, *queue.Store, *period.FakeClock) {
	t.Helper()

	clock := period.Fake(Epoch)
	store := MustOpenStore(t, cfg, queue.WithClock(clock))
	d, err := desk.New(cfg, store, desk.WithClock(clock))
	if err != nil {
		t.Fatalf("desk.New: %v", err)
	}
	return d, store, clock
}

// MustTake takes a token for owner and fails the test on error.
func MustTake(t testing.TB, d *desk.Desk, owner string) desk.Ticket {
	t.Helper()

	ticket, err := d.TakeToken(t.Context(), owner, owner, owner+"@example.com")
	if err != nil {
		t.Fatalf("TakeToken(%s): %v", owner, err)
	}
	return ticket
}
