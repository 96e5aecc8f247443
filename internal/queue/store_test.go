package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"turnstile/internal/period"
	"turnstile/internal/queue"
	"turnstile/internal/testsupport"
)

const today = "2026-03-02"

func openStore(t *testing.T) (*queue.Store, *period.FakeClock) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	clock := period.Fake(testsupport.Epoch)
	return testsupport.MustOpenStore(t, cfg, queue.WithClock(clock)), clock
}

func mustCreate(t *testing.T, store *queue.Store, periodKey, owner string, seq int) *queue.Token {
	t.Helper()
	token, err := store.Create(context.Background(), queue.NewToken{
		PeriodKey:      periodKey,
		SequenceNumber: seq,
		OwnerRef:       owner,
		Name:           owner,
	})
	if err != nil {
		t.Fatalf("Create(%s, %d): %v", owner, seq, err)
	}
	return token
}

func TestCreateAndLookup(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	token := mustCreate(t, store, today, "alice", 1)
	if token.ID == "" {
		t.Fatal("expected token ID to be assigned")
	}
	if token.Status != queue.StatusWaiting {
		t.Fatalf("expected waiting, got %s", token.Status)
	}

	fetched, err := store.GetByID(ctx, token.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.OwnerRef != "alice" || fetched.SequenceNumber != 1 {
		t.Fatalf("unexpected fetched token: %#v", fetched)
	}
	if !fetched.CreatedAt.Equal(testsupport.Epoch) {
		t.Fatalf("expected created_at from clock, got %v", fetched.CreatedAt)
	}

	active, err := store.FindActiveByOwner(ctx, today, "alice")
	if err != nil {
		t.Fatalf("FindActiveByOwner failed: %v", err)
	}
	if active == nil || active.ID != token.ID {
		t.Fatalf("expected active token %s, got %#v", token.ID, active)
	}

	missing, err := store.GetByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing token, got %#v %v", missing, err)
	}
}

func TestCreateRejectsDuplicateSequence(t *testing.T) {
	store, _ := openStore(t)
	mustCreate(t, store, today, "alice", 1)

	_, err := store.Create(context.Background(), queue.NewToken{PeriodKey: today, SequenceNumber: 1, OwnerRef: "bob"})
	if !errors.Is(err, queue.ErrDuplicateToken) {
		t.Fatalf("expected ErrDuplicateToken, got %v", err)
	}

	// The same number is free in another period.
	mustCreate(t, store, "2026-03-03", "bob", 1)
}

func TestCreateRejectsSecondLiveTokenForOwner(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	first := mustCreate(t, store, today, "alice", 1)

	_, err := store.Create(ctx, queue.NewToken{PeriodKey: today, SequenceNumber: 2, OwnerRef: "alice"})
	if !errors.Is(err, queue.ErrDuplicateToken) {
		t.Fatalf("expected ErrDuplicateToken for live owner, got %v", err)
	}

	if _, err := store.Complete(ctx, first.ID, "desk-a", queue.CompleteOptions{AllowWaiting: true}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	// A finished token frees the owner's slot.
	mustCreate(t, store, today, "alice", 2)
}

func TestNextSequenceNumberCountsPeriodRows(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	next, err := store.NextSequenceNumber(ctx, today)
	if err != nil || next != 1 {
		t.Fatalf("expected 1 for empty period, got %d (%v)", next, err)
	}
	for i, owner := range []string{"a", "b", "c"} {
		mustCreate(t, store, today, owner, i+1)
	}
	mustCreate(t, store, "2026-03-01", "z", 1)

	next, err = store.NextSequenceNumber(ctx, today)
	if err != nil || next != 4 {
		t.Fatalf("expected 4, got %d (%v)", next, err)
	}
}

func TestSetStatusOnlyMovesForward(t *testing.T) {
	store, clock := openStore(t)
	ctx := context.Background()
	token := mustCreate(t, store, today, "alice", 1)

	if _, err := store.SetStatus(ctx, token.ID, queue.StatusDone, "desk-a"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected skip to be rejected, got %v", err)
	}

	clock.Advance(time.Minute)
	serving, err := store.SetStatus(ctx, token.ID, queue.StatusServing, "desk-a")
	if err != nil {
		t.Fatalf("SetStatus serving: %v", err)
	}
	if serving.ServedBy != "desk-a" || serving.CalledAt == nil {
		t.Fatalf("expected worker and called_at recorded, got %#v", serving)
	}

	if _, err := store.SetStatus(ctx, token.ID, queue.StatusWaiting, "desk-a"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected reversal to be rejected, got %v", err)
	}

	done, err := store.SetStatus(ctx, token.ID, queue.StatusDone, "desk-a")
	if err != nil {
		t.Fatalf("SetStatus done: %v", err)
	}
	if done.CompletedAt == nil || done.Status != queue.StatusDone {
		t.Fatalf("unexpected done token: %#v", done)
	}

	if _, err := store.SetStatus(ctx, token.ID, queue.StatusDone, "desk-a"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected terminal status to be final, got %v", err)
	}
	if _, err := store.SetStatus(ctx, "missing", queue.StatusServing, "desk-a"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimNextFollowsCreationOrder(t *testing.T) {
	store, clock := openStore(t)
	ctx := context.Background()

	for i, owner := range []string{"a", "b", "c"} {
		mustCreate(t, store, today, owner, i+1)
		clock.Advance(time.Second)
	}

	for _, want := range []int{1, 2, 3} {
		token, err := store.ClaimNext(ctx, today, "desk-a")
		if err != nil {
			t.Fatalf("ClaimNext failed: %v", err)
		}
		if token == nil || token.SequenceNumber != want || token.Status != queue.StatusServing {
			t.Fatalf("expected token %d serving, got %#v", want, token)
		}
	}

	token, err := store.ClaimNext(ctx, today, "desk-a")
	if err != nil || token != nil {
		t.Fatalf("expected empty queue, got %#v %v", token, err)
	}
}

func TestClaimNextDeliversEachTokenOnce(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	const tokens = 5
	const workers = 12
	for i := 1; i <= tokens; i++ {
		mustCreate(t, store, today, fmt.Sprintf("owner-%d", i), i)
	}

	var (
		mu      sync.Mutex
		claimed = map[string]string{}
		empty   int
	)
	var group sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		group.Add(1)
		go func(worker string) {
			defer group.Done()
			token, err := store.ClaimNext(ctx, today, worker)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if token == nil {
				empty++
				return
			}
			if prev, ok := claimed[token.ID]; ok {
				errs <- fmt.Errorf("token %d delivered to %s and %s", token.SequenceNumber, prev, worker)
				return
			}
			claimed[token.ID] = worker
		}(fmt.Sprintf("desk-%d", w))
	}
	group.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if len(claimed) != tokens || empty != workers-tokens {
		t.Fatalf("expected %d claims and %d empty results, got %d and %d", tokens, workers-tokens, len(claimed), empty)
	}
}

func TestCompleteHonoursOptions(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	waiting := mustCreate(t, store, today, "alice", 1)

	if _, err := store.Complete(ctx, waiting.ID, "desk-a", queue.CompleteOptions{}); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected waiting token to be rejected, got %v", err)
	}
	unchanged, _ := store.GetByID(ctx, waiting.ID)
	if unchanged.Status != queue.StatusWaiting {
		t.Fatalf("expected token unchanged, got %s", unchanged.Status)
	}

	serving, err := store.ClaimNext(ctx, today, "desk-a")
	if err != nil || serving == nil {
		t.Fatalf("ClaimNext: %#v %v", serving, err)
	}
	if _, err := store.Complete(ctx, serving.ID, "desk-b", queue.CompleteOptions{SameWorker: true}); !errors.Is(err, queue.ErrWorkerMismatch) {
		t.Fatalf("expected ErrWorkerMismatch, got %v", err)
	}
	done, err := store.Complete(ctx, serving.ID, "desk-a", queue.CompleteOptions{SameWorker: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != queue.StatusDone || done.ServedBy != "desk-a" {
		t.Fatalf("unexpected completed token: %#v", done)
	}
}

func TestCompleteBySequenceServesWaitingToken(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	mustCreate(t, store, today, "alice", 1)

	done, err := store.CompleteBySequence(ctx, today, 1, "desk-c", queue.CompleteOptions{AllowWaiting: true})
	if err != nil {
		t.Fatalf("CompleteBySequence: %v", err)
	}
	if done.Status != queue.StatusDone || done.ServedBy != "desk-c" || done.CalledAt == nil {
		t.Fatalf("unexpected token: %#v", done)
	}

	if _, err := store.CompleteBySequence(ctx, today, 9, "desk-c", queue.CompleteOptions{AllowWaiting: true}); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCountWaitingBeforeAndListPeriod(t *testing.T) {
	store, clock := openStore(t)
	ctx := context.Background()
	for i, owner := range []string{"a", "b", "c", "d"} {
		mustCreate(t, store, today, owner, i+1)
		clock.Advance(time.Second)
	}
	if _, err := store.ClaimNext(ctx, today, "desk-a"); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	ahead, err := store.CountWaitingBefore(ctx, today, 4)
	if err != nil || ahead != 2 {
		t.Fatalf("expected 2 waiting ahead of #4, got %d (%v)", ahead, err)
	}

	tokens, err := store.ListPeriod(ctx, today)
	if err != nil {
		t.Fatalf("ListPeriod: %v", err)
	}
	if len(tokens) != 4 {
		t.Fatalf("expected 4 tokens, got %d", len(tokens))
	}
	for i, token := range tokens {
		if token.SequenceNumber != i+1 {
			t.Fatalf("expected creation order, got %d at %d", token.SequenceNumber, i)
		}
	}
}

func TestPeriodStatsAndWorkers(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	for i, owner := range []string{"a", "b", "c", "d"} {
		mustCreate(t, store, today, owner, i+1)
	}
	for _, worker := range []string{"desk-a", "desk-b", "desk-a"} {
		token, err := store.ClaimNext(ctx, today, worker)
		if err != nil || token == nil {
			t.Fatalf("ClaimNext: %v", err)
		}
		if worker == "desk-a" {
			if _, err := store.Complete(ctx, token.ID, worker, queue.CompleteOptions{SameWorker: true}); err != nil {
				t.Fatalf("Complete: %v", err)
			}
		}
	}

	stats, err := store.PeriodStats(ctx, today)
	if err != nil {
		t.Fatalf("PeriodStats: %v", err)
	}
	want := queue.PeriodStats{PeriodKey: today, Total: 4, Waiting: 1, Serving: 1, Done: 2}
	if stats != want {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	workers, err := store.ServedByWorker(ctx, today)
	if err != nil {
		t.Fatalf("ServedByWorker: %v", err)
	}
	if len(workers) != 2 || workers[0].Worker != "desk-a" || workers[0].Served != 2 || workers[1].Serving != 1 {
		t.Fatalf("unexpected worker counts: %+v", workers)
	}
}

func TestListByOwnerNewestFirst(t *testing.T) {
	store, clock := openStore(t)
	ctx := context.Background()

	old := mustCreate(t, store, "2026-03-01", "alice", 4)
	if _, err := store.Complete(ctx, old.ID, "desk-a", queue.CompleteOptions{AllowWaiting: true}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	clock.Advance(time.Hour)
	current := mustCreate(t, store, today, "alice", 1)

	tokens, err := store.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(tokens) != 2 || tokens[0].ID != current.ID {
		t.Fatalf("expected newest token first, got %+v", tokens)
	}

	live, err := store.ListByOwner(ctx, "alice", queue.StatusWaiting, queue.StatusServing)
	if err != nil || len(live) != 1 {
		t.Fatalf("expected one live token, got %d (%v)", len(live), err)
	}
}

func TestPurgeBeforeRemovesEarlierPeriods(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	mustCreate(t, store, "2026-02-28", "a", 1)
	mustCreate(t, store, "2026-03-01", "b", 1)
	mustCreate(t, store, today, "c", 1)

	expired, err := store.ListBefore(ctx, today)
	if err != nil || len(expired) != 2 {
		t.Fatalf("expected 2 expired tokens, got %d (%v)", len(expired), err)
	}
	if expired[0].PeriodKey != "2026-02-28" {
		t.Fatalf("expected oldest period first, got %s", expired[0].PeriodKey)
	}

	removed, err := store.PurgeBefore(ctx, today)
	if err != nil || removed != 2 {
		t.Fatalf("expected 2 purged rows, got %d (%v)", removed, err)
	}
	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 1 || health.Periods != 1 {
		t.Fatalf("unexpected health after purge: %+v", health)
	}
}

func TestCheckHealth(t *testing.T) {
	store, _ := openStore(t)
	mustCreate(t, store, today, "alice", 1)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("unexpected missing columns: %v", health.MissingColumns)
	}
	if health.TotalTokens != 1 {
		t.Fatalf("expected 1 token, got %d", health.TotalTokens)
	}
}

func TestReopenKeepsTokens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mustCreate(t, store, today, "alice", 1)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	next, err := reopened.NextSequenceNumber(context.Background(), today)
	if err != nil || next != 2 {
		t.Fatalf("expected persisted row, next=%d (%v)", next, err)
	}
}
