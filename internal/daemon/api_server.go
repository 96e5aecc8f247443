package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"turnstile/internal/api"
	"turnstile/internal/config"
	"turnstile/internal/desk"
	"turnstile/internal/logging"
	"turnstile/internal/queue"
	"turnstile/internal/services"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 64 << 10
)

type apiServer struct {
	bind     string
	token    string
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &apiServer{
		bind:     bind,
		token:    strings.TrimSpace(cfg.Paths.APIToken),
		logger:   logger.With(logging.String(logging.FieldComponent, "api-server")),
		daemon:   d,
		queueSvc: d.Service(),
	}
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	staff := func(h http.HandlerFunc) http.HandlerFunc { return authMiddleware(s.token, h) }

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/tokens", s.handleTake)
	mux.HandleFunc("GET /api/tokens", s.handleHistory)
	mux.HandleFunc("GET /api/queue", s.handleQueue)

	mux.HandleFunc("POST /api/queue/next", staff(s.handleNext))
	mux.HandleFunc("POST /api/tokens/{id}/done", staff(s.handleDone))
	mux.HandleFunc("POST /api/queue/serve/{seq}", staff(s.handleServe))
	mux.HandleFunc("GET /api/stats", staff(s.handleStats))
	mux.HandleFunc("GET /api/workers", staff(s.handleWorkers))
	mux.HandleFunc("GET /api/analytics", staff(s.handleAnalytics))
	mux.HandleFunc("POST /api/archive", staff(s.handleArchive))

	return s.withRequestID(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server := s.server
	listener := s.listener
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, s.daemon.Status(r.Context()).API())
}

func (s *apiServer) handleTake(w http.ResponseWriter, r *http.Request) {
	var req api.TakeTokenRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	ticket, err := s.queueSvc.Take(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	code := http.StatusCreated
	if ticket.Existing {
		code = http.StatusOK
	}
	writeJSON(w, s.logger, code, ticket)
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.queueSvc.History(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, api.TokenListResponse{Tokens: tokens})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queueSvc.Queue(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, resp)
}

func (s *apiServer) handleNext(w http.ResponseWriter, r *http.Request) {
	worker, err := workerFromRequest(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	ctx := services.WithWorker(r.Context(), worker)
	resp, err := s.queueSvc.Next(ctx, worker)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, resp)
}

func (s *apiServer) handleDone(w http.ResponseWriter, r *http.Request) {
	worker, err := workerFromRequest(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	ctx := services.WithTokenID(services.WithWorker(r.Context(), worker), id)
	token, err := s.queueSvc.Done(ctx, id, worker)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, api.TokenResponse{Token: token})
}

func (s *apiServer) handleServe(w http.ResponseWriter, r *http.Request) {
	worker, err := workerFromRequest(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	seq, err := strconv.Atoi(r.PathValue("seq"))
	if err != nil {
		s.writeFailure(w, r, fmt.Errorf("%w: invalid sequence number %q", desk.ErrInvalidRequest, r.PathValue("seq")))
		return
	}
	token, err := s.queueSvc.Serve(services.WithWorker(r.Context(), worker), seq, worker)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, api.TokenResponse{Token: token})
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queueSvc.Stats(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, stats)
}

func (s *apiServer) handleWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.queueSvc.Workers(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, api.WorkerListResponse{Workers: workers})
}

func (s *apiServer) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := s.queueSvc.Analytics(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, report)
}

func (s *apiServer) handleArchive(w http.ResponseWriter, r *http.Request) {
	policy := r.URL.Query().Get("policy")
	if policy == "" {
		policy = config.RetentionArchive
	}
	result, err := s.queueSvc.Archive(r.Context(), policy)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, result)
}

func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("api request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	} else {
		logger.Debug("api request rejected",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	writeError(w, s.logger, status, code, err.Error())
}

// statusForError maps desk and ledger sentinels onto HTTP status codes.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, desk.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, queue.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, desk.ErrAllocationConflict), errors.Is(err, queue.ErrDuplicateToken):
		return http.StatusConflict, "conflict"
	case errors.Is(err, desk.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, queue.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: decode request body: %w", desk.ErrInvalidRequest, err)
	}
	return nil
}

// workerFromRequest reads the acting worker from the JSON body, falling back
// to the worker query parameter.
func workerFromRequest(r *http.Request) (string, error) {
	var req api.WorkerRequest
	if err := decodeBody(r, &req); err != nil {
		return "", err
	}
	worker := strings.TrimSpace(req.Worker)
	if worker == "" {
		worker = strings.TrimSpace(r.URL.Query().Get("worker"))
	}
	return worker, nil
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, code, message string) {
	writeJSON(w, logger, status, api.ErrorResponse{Error: message, Code: code})
}
