package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "turnstile.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing config error, got %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init overwrite: %v", err)
	}
}

func TestConfigValidateAndShow(t *testing.T) {
	_, socket, configPath := setupOfflineEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, socket, configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, configPath)

	out, _, err = runCLI(t, []string{"config", "show"}, socket, configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "average_service_minutes = 5")
	requireContains(t, out, "UTC")
}

func TestConfigShowRedactsToken(t *testing.T) {
	_, socket, configPath := setupOfflineEnv(t)
	t.Setenv("TURNSTILE_API_TOKEN", "hunter2")

	out, _, err := runCLI(t, []string{"config", "show"}, socket, configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Fatalf("expected api token to be redacted:\n%s", out)
	}
	requireContains(t, out, "********")
}
