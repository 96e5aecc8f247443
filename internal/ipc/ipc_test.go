package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"turnstile/internal/daemon"
	"turnstile/internal/ipc"
	"turnstile/internal/logging"
	"turnstile/internal/testsupport"
)

func startServer(t *testing.T) *ipc.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	d, store, _ := testsupport.NewDesk(t, cfg)
	logger := logging.NewNop()
	dm, err := daemon.New(cfg, store, d, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.LogDir, "turnstile.sock")
	srv, err := ipc.NewServer(ctx, socket, dm, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(20 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIPCServerClient(t *testing.T) {
	client := startServer(t)

	first, err := client.Take(ipc.TakeRequest{Owner: "alice", Name: "Alice"})
	if err != nil {
		t.Fatalf("Take RPC failed: %v", err)
	}
	if first.Ticket.SequenceNumber != 1 || first.Ticket.Name != "Alice" {
		t.Fatalf("unexpected ticket: %+v", first.Ticket)
	}
	second, err := client.Take(ipc.TakeRequest{Owner: "bob"})
	if err != nil {
		t.Fatalf("Take RPC failed: %v", err)
	}
	if second.Ticket.AheadCount != 1 {
		t.Fatalf("expected bob behind alice, got %+v", second.Ticket)
	}

	list, err := client.QueueList()
	if err != nil {
		t.Fatalf("QueueList RPC failed: %v", err)
	}
	if list.Period != "2026-03-02" || len(list.Entries) != 2 {
		t.Fatalf("unexpected queue: %+v", list)
	}

	next, err := client.Next("desk-1")
	if err != nil {
		t.Fatalf("Next RPC failed: %v", err)
	}
	if next.Empty || next.Token == nil || next.Token.Owner != "alice" {
		t.Fatalf("unexpected next: %+v", next)
	}

	done, err := client.Done(next.Token.ID, "desk-1")
	if err != nil {
		t.Fatalf("Done RPC failed: %v", err)
	}
	if done.Token.Status != "done" {
		t.Fatalf("expected done token, got %+v", done.Token)
	}

	served, err := client.Serve(2, "desk-2")
	if err != nil {
		t.Fatalf("Serve RPC failed: %v", err)
	}
	if served.Token.ServedBy != "desk-2" {
		t.Fatalf("unexpected served token: %+v", served.Token)
	}

	stats, err := client.Stats("")
	if err != nil {
		t.Fatalf("Stats RPC failed: %v", err)
	}
	if stats.Served != 2 || stats.Waiting != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	workers, err := client.Workers()
	if err != nil {
		t.Fatalf("Workers RPC failed: %v", err)
	}
	if len(workers.Workers) != 2 {
		t.Fatalf("expected two workers, got %+v", workers.Workers)
	}

	history, err := client.History("bob")
	if err != nil {
		t.Fatalf("History RPC failed: %v", err)
	}
	if len(history.Tokens) != 1 || history.Tokens[0].Status != "done" {
		t.Fatalf("unexpected history: %+v", history.Tokens)
	}

	report, err := client.Analytics()
	if err != nil {
		t.Fatalf("Analytics RPC failed: %v", err)
	}
	if report.Summary.Done != 2 || report.Summary.RemainingMinutes != 0 {
		t.Fatalf("unexpected analytics: %+v", report.Summary)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Counts["done"] != 2 || status.PID == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}

	health, err := client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth RPC failed: %v", err)
	}
	if health.Total != 2 || health.Periods != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}

	db, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth RPC failed: %v", err)
	}
	if !db.DatabaseExists || !db.IntegrityCheck || len(db.MissingColumns) != 0 {
		t.Fatalf("unexpected database health: %+v", db)
	}
}

func TestIPCErrorsCarryMessages(t *testing.T) {
	client := startServer(t)

	if _, err := client.Next(""); err == nil || !strings.Contains(err.Error(), "worker is required") {
		t.Fatalf("expected worker validation error, got %v", err)
	}
	if _, err := client.Done("missing", "desk-1"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := client.Archive("shred"); err == nil {
		t.Fatal("expected invalid policy error")
	}
}
