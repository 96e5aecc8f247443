package queueaccess

import (
	"context"

	"turnstile/internal/api"
	"turnstile/internal/desk"
	"turnstile/internal/ipc"
	"turnstile/internal/queue"
)

// Access provides desk operations regardless of IPC or direct store backing.
type Access interface {
	Take(ctx context.Context, req api.TakeTokenRequest) (api.Ticket, error)
	Next(ctx context.Context, worker string) (api.NextResponse, error)
	Done(ctx context.Context, id, worker string) (api.Token, error)
	Serve(ctx context.Context, sequence int, worker string) (api.Token, error)
	Queue(ctx context.Context) (api.QueueListResponse, error)
	History(ctx context.Context, owner string) ([]api.Token, error)
	Stats(ctx context.Context, date string) (api.DailyStats, error)
	Workers(ctx context.Context) ([]api.WorkerCount, error)
	Analytics(ctx context.Context) (api.Analytics, error)
	Archive(ctx context.Context, policy string) (api.RetentionResult, error)
	Health(ctx context.Context) (ipc.QueueHealthResponse, error)
	DatabaseHealth(ctx context.Context) (ipc.DatabaseHealthResponse, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access through a
// desk running in the calling process.
func NewStoreAccess(store *queue.Store, d *desk.Desk) Access {
	return &storeAccess{store: store, service: api.NewQueueService(d)}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Take(_ context.Context, req api.TakeTokenRequest) (api.Ticket, error) {
	resp, err := a.client.Take(req)
	if err != nil {
		return api.Ticket{}, err
	}
	return resp.Ticket, nil
}

func (a *ipcAccess) Next(_ context.Context, worker string) (api.NextResponse, error) {
	resp, err := a.client.Next(worker)
	if err != nil {
		return api.NextResponse{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) Done(_ context.Context, id, worker string) (api.Token, error) {
	resp, err := a.client.Done(id, worker)
	if err != nil {
		return api.Token{}, err
	}
	return resp.Token, nil
}

func (a *ipcAccess) Serve(_ context.Context, sequence int, worker string) (api.Token, error) {
	resp, err := a.client.Serve(sequence, worker)
	if err != nil {
		return api.Token{}, err
	}
	return resp.Token, nil
}

func (a *ipcAccess) Queue(_ context.Context) (api.QueueListResponse, error) {
	resp, err := a.client.QueueList()
	if err != nil {
		return api.QueueListResponse{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) History(_ context.Context, owner string) ([]api.Token, error) {
	resp, err := a.client.History(owner)
	if err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

func (a *ipcAccess) Stats(_ context.Context, date string) (api.DailyStats, error) {
	resp, err := a.client.Stats(date)
	if err != nil {
		return api.DailyStats{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) Workers(_ context.Context) ([]api.WorkerCount, error) {
	resp, err := a.client.Workers()
	if err != nil {
		return nil, err
	}
	return resp.Workers, nil
}

func (a *ipcAccess) Analytics(_ context.Context) (api.Analytics, error) {
	resp, err := a.client.Analytics()
	if err != nil {
		return api.Analytics{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) Archive(_ context.Context, policy string) (api.RetentionResult, error) {
	resp, err := a.client.Archive(policy)
	if err != nil {
		return api.RetentionResult{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) Health(_ context.Context) (ipc.QueueHealthResponse, error) {
	resp, err := a.client.QueueHealth()
	if err != nil {
		return ipc.QueueHealthResponse{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) DatabaseHealth(_ context.Context) (ipc.DatabaseHealthResponse, error) {
	resp, err := a.client.DatabaseHealth()
	if err != nil {
		return ipc.DatabaseHealthResponse{}, err
	}
	return *resp, nil
}

type storeAccess struct {
	store   *queue.Store
	service *api.QueueService
}

func (a *storeAccess) Take(ctx context.Context, req api.TakeTokenRequest) (api.Ticket, error) {
	return a.service.Take(ctx, req)
}

func (a *storeAccess) Next(ctx context.Context, worker string) (api.NextResponse, error) {
	return a.service.Next(ctx, worker)
}

func (a *storeAccess) Done(ctx context.Context, id, worker string) (api.Token, error) {
	return a.service.Done(ctx, id, worker)
}

func (a *storeAccess) Serve(ctx context.Context, sequence int, worker string) (api.Token, error) {
	return a.service.Serve(ctx, sequence, worker)
}

func (a *storeAccess) Queue(ctx context.Context) (api.QueueListResponse, error) {
	return a.service.Queue(ctx)
}

func (a *storeAccess) History(ctx context.Context, owner string) ([]api.Token, error) {
	return a.service.History(ctx, owner)
}

func (a *storeAccess) Stats(ctx context.Context, date string) (api.DailyStats, error) {
	return a.service.Stats(ctx, date)
}

func (a *storeAccess) Workers(ctx context.Context) ([]api.WorkerCount, error) {
	return a.service.Workers(ctx)
}

func (a *storeAccess) Analytics(ctx context.Context) (api.Analytics, error) {
	return a.service.Analytics(ctx)
}

func (a *storeAccess) Archive(ctx context.Context, policy string) (api.RetentionResult, error) {
	return a.service.Archive(ctx, policy)
}

func (a *storeAccess) Health(ctx context.Context) (ipc.QueueHealthResponse, error) {
	health, err := a.store.Health(ctx)
	if err != nil {
		return ipc.QueueHealthResponse{}, err
	}
	return ipc.QueueHealthResponse{
		Total:   health.Total,
		Waiting: health.Waiting,
		Serving: health.Serving,
		Done:    health.Done,
		Periods: health.Periods,
	}, nil
}

func (a *storeAccess) DatabaseHealth(ctx context.Context) (ipc.DatabaseHealthResponse, error) {
	health, err := a.store.CheckHealth(ctx)
	resp := ipc.DatabaseHealthResponse{
		DBPath:           health.DBPath,
		DatabaseExists:   health.DatabaseExists,
		DatabaseReadable: health.DatabaseReadable,
		SchemaVersion:    health.SchemaVersion,
		TableExists:      health.TableExists,
		ColumnsPresent:   health.ColumnsPresent,
		MissingColumns:   health.MissingColumns,
		IntegrityCheck:   health.IntegrityCheck,
		TotalTokens:      health.TotalTokens,
		Error:            health.Error,
	}
	return resp, err
}
