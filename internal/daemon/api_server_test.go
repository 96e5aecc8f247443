package daemon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"turnstile/internal/api"
	"turnstile/internal/desk"
	"turnstile/internal/logging"
	"turnstile/internal/queue"
	"turnstile/internal/testsupport"
)

func newTestServer(t *testing.T, opts ...testsupport.ConfigOption) *httptest.Server {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	d, store, _ := testsupport.NewDesk(t, cfg)
	daemon, err := New(cfg, store, d, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(daemon.api.routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestAPITakeNextDoneFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/tokens", "", api.TakeTokenRequest{Owner: "alice", Name: "Alice"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
	ticket := decode[api.Ticket](t, resp)
	if ticket.SequenceNumber != 1 || ticket.AheadCount != 0 {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}

	again := do(t, http.MethodPost, srv.URL+"/api/tokens", "", api.TakeTokenRequest{Owner: "alice"})
	if again.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for existing token, got %d", again.StatusCode)
	}
	if decode[api.Ticket](t, again).SequenceNumber != 1 {
		t.Fatal("expected the same sequence number on retake")
	}

	next := decode[api.NextResponse](t, do(t, http.MethodPost, srv.URL+"/api/queue/next", "", api.WorkerRequest{Worker: "desk-1"}))
	if next.Empty || next.Token == nil || next.Token.SequenceNumber != 1 {
		t.Fatalf("unexpected next response: %+v", next)
	}

	done := do(t, http.MethodPost, srv.URL+"/api/tokens/"+next.Token.ID+"/done", "", api.WorkerRequest{Worker: "desk-1"})
	if done.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", done.StatusCode)
	}
	if decode[api.TokenResponse](t, done).Token.Status != "done" {
		t.Fatal("expected done status")
	}

	empty := decode[api.NextResponse](t, do(t, http.MethodPost, srv.URL+"/api/queue/next?worker=desk-1", "", nil))
	if !empty.Empty {
		t.Fatalf("expected empty queue, got %+v", empty)
	}

	stats := decode[api.DailyStats](t, do(t, http.MethodGet, srv.URL+"/api/stats", "", nil))
	if stats.Served != 1 || stats.Waiting != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestAPIQueueListing(t *testing.T) {
	srv := newTestServer(t)
	for _, owner := range []string{"a", "b", "c"} {
		do(t, http.MethodPost, srv.URL+"/api/tokens", "", api.TakeTokenRequest{Owner: owner})
	}
	list := decode[api.QueueListResponse](t, do(t, http.MethodGet, srv.URL+"/api/queue", "", nil))
	if list.Period == "" || len(list.Entries) != 3 {
		t.Fatalf("unexpected queue: %+v", list)
	}
	for i, entry := range list.Entries {
		if entry.AheadCount != i || entry.EstimatedWaitMinutes != i*5 {
			t.Fatalf("entry %d: unexpected position %+v", i, entry)
		}
	}

	history := decode[api.TokenListResponse](t, do(t, http.MethodGet, srv.URL+"/api/tokens?owner=b", "", nil))
	if len(history.Tokens) != 1 || history.Tokens[0].SequenceNumber != 2 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestAPIErrorStatuses(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing owner", http.MethodPost, "/api/tokens", api.TakeTokenRequest{}, http.StatusBadRequest, "invalid_request"},
		{"unknown field", http.MethodPost, "/api/tokens", map[string]string{"who": "x"}, http.StatusBadRequest, "invalid_request"},
		{"missing worker", http.MethodPost, "/api/queue/next", nil, http.StatusBadRequest, "invalid_request"},
		{"unknown token", http.MethodPost, "/api/tokens/nope/done", api.WorkerRequest{Worker: "w"}, http.StatusNotFound, "not_found"},
		{"bad sequence", http.MethodPost, "/api/queue/serve/abc", api.WorkerRequest{Worker: "w"}, http.StatusBadRequest, "invalid_request"},
		{"unknown sequence", http.MethodPost, "/api/queue/serve/9", api.WorkerRequest{Worker: "w"}, http.StatusNotFound, "not_found"},
		{"bad date", http.MethodGet, "/api/stats?date=yesterday", nil, http.StatusBadRequest, "invalid_request"},
		{"bad policy", http.MethodPost, "/api/archive?policy=shred", nil, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, tc.method, srv.URL+tc.path, "", tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			if got := decode[api.ErrorResponse](t, resp); got.Code != tc.code {
				t.Fatalf("expected code %q, got %+v", tc.code, got)
			}
		})
	}
}

func TestAPIDoneConflicts(t *testing.T) {
	srv := newTestServer(t)
	do(t, http.MethodPost, srv.URL+"/api/tokens", "", api.TakeTokenRequest{Owner: "alice"})
	list := decode[api.QueueListResponse](t, do(t, http.MethodGet, srv.URL+"/api/queue", "", nil))
	id := list.Entries[0].Token.ID

	waiting := do(t, http.MethodPost, srv.URL+"/api/tokens/"+id+"/done", "", api.WorkerRequest{Worker: "desk-1"})
	if waiting.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for waiting token, got %d", waiting.StatusCode)
	}

	do(t, http.MethodPost, srv.URL+"/api/queue/next", "", api.WorkerRequest{Worker: "desk-1"})
	other := do(t, http.MethodPost, srv.URL+"/api/tokens/"+id+"/done", "", api.WorkerRequest{Worker: "desk-2"})
	if other.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for another worker, got %d", other.StatusCode)
	}
}

func TestAPIStaffEndpointsRequireToken(t *testing.T) {
	srv := newTestServer(t, testsupport.WithAPIToken("s3cret"))

	if resp := do(t, http.MethodPost, srv.URL+"/api/tokens", "", api.TakeTokenRequest{Owner: "alice"}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("customer take should not need a token, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/api/workers", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/api/workers", "wrong", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}
	resp := do(t, http.MethodPost, srv.URL+"/api/queue/next", "s3cret", api.WorkerRequest{Worker: "desk-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestAPIStatus(t *testing.T) {
	srv := newTestServer(t)
	do(t, http.MethodPost, srv.URL+"/api/tokens", "", api.TakeTokenRequest{Owner: "alice"})

	status := decode[api.DaemonStatus](t, do(t, http.MethodGet, srv.URL+"/api/status", "", nil))
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if status.Today.Waiting != 1 || status.Counts["waiting"] != 1 || status.Counts["done"] != 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.DatabasePath == "" || status.LockFilePath == "" {
		t.Fatalf("expected paths in status: %+v", status)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", queue.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", queue.ErrInvalidTransition), http.StatusConflict},
		{desk.ErrAllocationConflict, http.StatusConflict},
		{fmt.Errorf("%w: %w", desk.ErrForbidden, queue.ErrWorkerMismatch), http.StatusForbidden},
		{desk.ErrInvalidRequest, http.StatusBadRequest},
		{fmt.Errorf("%w: ping: boom", queue.ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
