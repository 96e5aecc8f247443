package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"turnstile/internal/config"
	"turnstile/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTokenCalled, notifications.Payload{"sequence": 1}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).Publish(context.Background(), notifications.EventTestNotify, nil); err != nil {
		t.Fatalf("expected nil config to yield noop notifier, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "token called",
			event: notifications.EventTokenCalled,
			payload: notifications.Payload{
				"sequence": 7,
				"owner":    "alice",
				"name":     "Alice",
				"worker":   "desk-2",
			},
			expectTitle:   "Turnstile - Now Serving",
			expectMessage: "Now serving #7 (Alice) at desk-2",
			expectTags:    "turnstile,called",
		},
		{
			name:          "token called without name",
			event:         notifications.EventTokenCalled,
			payload:       notifications.Payload{"sequence": 3, "owner": "bob"},
			expectTitle:   "Turnstile - Now Serving",
			expectMessage: "Now serving #3 (bob)",
			expectTags:    "turnstile,called",
		},
		{
			name:          "period reset",
			event:         notifications.EventPeriodReset,
			payload:       notifications.Payload{"period": "2026-03-03", "previous": "2026-03-02"},
			expectTitle:   "Turnstile - New Period",
			expectMessage: "Service period 2026-03-03 opened\nPrevious period 2026-03-02 closed",
			expectTags:    "turnstile,reset",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "retention", "error": "disk full"},
			expectTitle:    "Turnstile - Error",
			expectMessage:  "Error during retention: disk full",
			expectTags:     "turnstile,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTestNotify,
			expectTitle:    "Turnstile - Test",
			expectMessage:  "Notification system test",
			expectTags:     "turnstile,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceSuppressesCalledWhenDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.NotifyCalled = false

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTokenCalled, notifications.Payload{"sequence": 1}); err != nil {
		t.Fatalf("expected no error for suppressed event, got %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.Event("unknown"), nil); err != nil {
		t.Fatalf("expected unknown events to be ignored, got %v", err)
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTestNotify, nil)
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
