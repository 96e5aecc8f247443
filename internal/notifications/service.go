package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"turnstile/internal/config"
)

const userAgent = "Turnstile/0.1.0"

// Event names a desk milestone.
type Event string

const (
	EventTokenCalled Event = "token_called"
	EventPeriodReset Event = "period_reset"
	EventError       Event = "error"
	EventTestNotify  Event = "test"
)

// Payload carries event fields by name.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notifier backed by ntfy when a topic is configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		notifyCalled: cfg.Notifications.NotifyCalled,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	notifyCalled bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventTokenCalled:
		if !n.notifyCalled {
			return message{}, false
		}
		name := payload.text("name")
		if name == "" {
			name = payload.text("owner")
		}
		body := fmt.Sprintf("Now serving #%s", payload.text("sequence"))
		if name != "" {
			body += " (" + name + ")"
		}
		if worker := payload.text("worker"); worker != "" {
			body += " at " + worker
		}
		return message{
			title: "Turnstile - Now Serving",
			body:  body,
			tags:  []string{"turnstile", "called"},
		}, true
	case EventPeriodReset:
		body := fmt.Sprintf("Service period %s opened", payload.text("period"))
		if previous := payload.text("previous"); previous != "" {
			body += fmt.Sprintf("\nPrevious period %s closed", previous)
		}
		return message{
			title: "Turnstile - New Period",
			body:  body,
			tags:  []string{"turnstile", "reset"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("Error")
		if label := payload.text("context"); label != "" {
			b.WriteString(" during ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if errText := payload.text("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Turnstile - Error",
			body:     b.String(),
			tags:     []string{"turnstile", "error", "alert"},
			priority: "high",
		}, true
	case EventTestNotify:
		return message{
			title:    "Turnstile - Test",
			body:     "Notification system test",
			tags:     []string{"turnstile", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// Noop returns a notifier that discards every event.
func Noop() Service {
	return noopService{}
}
