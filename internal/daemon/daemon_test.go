package daemon_test

import (
	"context"
	"net/http"
	"testing"

	"turnstile/internal/daemon"
	"turnstile/internal/logging"
	"turnstile/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store, _ := testsupport.NewDesk(t, cfg)
	dm, err := daemon.New(cfg, store, d, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { dm.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dm.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := dm.Status(ctx)
	if !status.Running || status.StartedAt.IsZero() {
		t.Fatalf("expected daemon to report running, got %+v", status)
	}
	if status.APIBind == "" || status.APIBind == "127.0.0.1:0" {
		t.Fatalf("expected resolved api address, got %q", status.APIBind)
	}

	resp, err := http.Get("http://" + dm.APIAddress() + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from live api, got %d", resp.StatusCode)
	}

	if err := dm.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	dm.Stop()
	if dm.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if dm.APIAddress() != "" {
		t.Fatal("expected api listener to be closed")
	}
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store, _ := testsupport.NewDesk(t, cfg)
	first, err := daemon.New(cfg, store, d, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { first.Stop() })
	second, err := daemon.New(cfg, store, d, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be rejected by the lock")
	}
}

func TestDaemonStartFailsPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store, _ := testsupport.NewDesk(t, cfg)
	cfg.Paths.APIBind = "not-an-address"
	dm, err := daemon.New(cfg, store, d, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := dm.Start(context.Background()); err == nil {
		dm.Stop()
		t.Fatal("expected preflight failure")
	}
	if dm.Status(context.Background()).Running {
		t.Fatal("daemon must not run after a failed preflight")
	}
}
