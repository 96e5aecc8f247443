package main

import (
	"encoding/json"
	"strings"
	"testing"

	"turnstile/internal/api"
)

func TestTakeNextDoneFlow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"take", "alice", "--name", "Alice"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("take alice: %v", err)
	}
	requireContains(t, out, "Token #1 issued")
	requireContains(t, out, "Ahead of you: 0")

	out, _, err = runCLI(t, []string{"take", "bob"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("take bob: %v", err)
	}
	requireContains(t, out, "Token #2 issued")
	requireContains(t, out, "Estimated wait: 5 min")

	out, _, err = runCLI(t, []string{"take", "alice"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("retake alice: %v", err)
	}
	requireContains(t, out, "Already holding token #1")

	out, _, err = runCLI(t, []string{"next", "--worker", "w1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	requireContains(t, out, "Now serving #1 (Alice)")

	out, _, err = runCLI(t, []string{"serve", "1", "--worker", "w1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	requireContains(t, out, "Token #1 done")

	out, _, err = runCLI(t, []string{"-o", "json", "next", "--worker", "w2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("next json: %v", err)
	}
	var next api.NextResponse
	if err := json.Unmarshal([]byte(out), &next); err != nil {
		t.Fatalf("decode next: %v\n%s", err, out)
	}
	if next.Token == nil || next.Token.Owner != "bob" {
		t.Fatalf("expected bob to be called, got %+v", next)
	}

	if _, _, err := runCLI(t, []string{"done", next.Token.ID, "--worker", "w1"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected a different worker to be refused")
	}
	out, _, err = runCLI(t, []string{"done", next.Token.ID, "--worker", "w2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("done: %v", err)
	}
	requireContains(t, out, "Token #2 done")

	out, _, err = runCLI(t, []string{"next", "--worker", "w1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("next empty: %v", err)
	}
	requireContains(t, out, "No one is waiting")
}

func TestServeRejectsBadSequence(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"serve", "zero", "--worker", "w1"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid sequence number") {
		t.Fatalf("expected invalid sequence error, got %v", err)
	}
}

func TestNextRequiresWorker(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"next"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected missing --worker to fail")
	}
}

func TestHistoryListsOwnerTokens(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"take", "carol"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("take: %v", err)
	}
	out, _, err := runCLI(t, []string{"history", "carol"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "2026-03-02")
	requireContains(t, out, "Waiting")

	out, _, err = runCLI(t, []string{"history", "nobody"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history empty: %v", err)
	}
	requireContains(t, out, "No tokens found")
}

func TestTakeFallsBackToLocalDatabase(t *testing.T) {
	_, socket, configPath := setupOfflineEnv(t)

	out, _, err := runCLI(t, []string{"take", "dave"}, socket, configPath)
	if err != nil {
		t.Fatalf("offline take: %v", err)
	}
	requireContains(t, out, "Token #1 issued")

	out, _, err = runCLI(t, []string{"queue", "list"}, socket, configPath)
	if err != nil {
		t.Fatalf("offline list: %v", err)
	}
	requireContains(t, out, "dave")
}

func TestFormatMinutes(t *testing.T) {
	cases := map[int]string{0: "none", -3: "none", 5: "5 min", 60: "1h 00m", 135: "2h 15m"}
	for in, want := range cases {
		if got := formatMinutes(in); got != want {
			t.Fatalf("formatMinutes(%d) = %q, want %q", in, got, want)
		}
	}
}
