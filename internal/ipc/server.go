package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"turnstile/internal/api"
	"turnstile/internal/daemon"
	"turnstile/internal/logging"
	"turnstile/internal/services"
)

// ServiceName is the JSON-RPC service the daemon registers.
const ServiceName = "Turnstile"

// Server exposes the desk via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, queue: d.Service(), logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	queue  *api.QueueService
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Take(req TakeRequest, resp *TakeResponse) error {
	ticket, err := s.queue.Take(s.ctx, req)
	if err != nil {
		return err
	}
	resp.Ticket = ticket
	return nil
}

func (s *service) Next(req WorkerRequest, resp *NextResponse) error {
	ctx := services.WithWorker(s.ctx, req.Worker)
	out, err := s.queue.Next(ctx, req.Worker)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

func (s *service) Done(req DoneRequest, resp *TokenResponse) error {
	ctx := services.WithTokenID(services.WithWorker(s.ctx, req.Worker), req.ID)
	token, err := s.queue.Done(ctx, req.ID, req.Worker)
	if err != nil {
		return err
	}
	resp.Token = token
	return nil
}

func (s *service) Serve(req ServeRequest, resp *TokenResponse) error {
	token, err := s.queue.Serve(services.WithWorker(s.ctx, req.Worker), req.Sequence, req.Worker)
	if err != nil {
		return err
	}
	resp.Token = token
	return nil
}

func (s *service) QueueList(_ QueueListRequest, resp *QueueListResponse) error {
	out, err := s.queue.Queue(s.ctx)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	tokens, err := s.queue.History(s.ctx, req.Owner)
	if err != nil {
		return err
	}
	resp.Tokens = tokens
	return nil
}

func (s *service) Stats(req StatsRequest, resp *StatsResponse) error {
	stats, err := s.queue.Stats(s.ctx, req.Date)
	if err != nil {
		return err
	}
	*resp = stats
	return nil
}

func (s *service) Workers(_ WorkersRequest, resp *WorkersResponse) error {
	workers, err := s.queue.Workers(s.ctx)
	if err != nil {
		return err
	}
	resp.Workers = workers
	return nil
}

func (s *service) Analytics(_ AnalyticsRequest, resp *AnalyticsResponse) error {
	report, err := s.queue.Analytics(s.ctx)
	if err != nil {
		return err
	}
	*resp = report
	return nil
}

func (s *service) Archive(req ArchiveRequest, resp *ArchiveResponse) error {
	s.log().Debug("retention pass requested", logging.String("policy", req.Policy))
	result, err := s.queue.Archive(s.ctx, req.Policy)
	if err != nil {
		return err
	}
	*resp = result
	s.log().Info("retention pass completed",
		logging.String(logging.FieldEventType, "retention_manual"),
		logging.String("policy", result.Policy),
		logging.Int("expired", result.Expired),
		logging.Int64("purged", result.Purged),
	)
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx).API()
	return nil
}

func (s *service) QueueHealth(_ QueueHealthRequest, resp *QueueHealthResponse) error {
	health, err := s.daemon.QueueHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = health.Total
	resp.Waiting = health.Waiting
	resp.Serving = health.Serving
	resp.Done = health.Done
	resp.Periods = health.Periods
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TableExists = health.TableExists
	resp.ColumnsPresent = append(resp.ColumnsPresent, health.ColumnsPresent...)
	resp.MissingColumns = append(resp.MissingColumns, health.MissingColumns...)
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalTokens = health.TotalTokens
	resp.Error = health.Error
	return err
}
