package queue_test

import (
	"testing"

	"turnstile/internal/queue"
)

func TestParseStatusAcceptsLegacyNames(t *testing.T) {
	cases := map[string]queue.Status{
		"waiting":   queue.StatusWaiting,
		"Pending":   queue.StatusWaiting,
		" SERVING ": queue.StatusServing,
		"served":    queue.StatusDone,
		"Done":      queue.StatusDone,
	}
	for input, want := range cases {
		got, ok := queue.ParseStatus(input)
		if !ok || got != want {
			t.Fatalf("ParseStatus(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}
	if _, ok := queue.ParseStatus("cancelled"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestStatusNextIsForwardAdjacent(t *testing.T) {
	if queue.StatusWaiting.Next() != queue.StatusServing {
		t.Fatal("waiting should advance to serving")
	}
	if queue.StatusServing.Next() != queue.StatusDone {
		t.Fatal("serving should advance to done")
	}
	if queue.StatusDone.Next() != "" {
		t.Fatal("done should be terminal")
	}
	if queue.StatusDone.IsLive() || !queue.StatusServing.IsLive() {
		t.Fatal("unexpected liveness")
	}
}
