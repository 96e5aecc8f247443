package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// Take issues or returns the owner's token.
func (c *Client) Take(req TakeRequest) (*TakeResponse, error) {
	var resp TakeResponse
	if err := c.call("Take", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Next calls the next waiting customer for worker.
func (c *Client) Next(worker string) (*NextResponse, error) {
	var resp NextResponse
	if err := c.call("Next", WorkerRequest{Worker: worker}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Done finishes a serving token by id.
func (c *Client) Done(id, worker string) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.call("Done", DoneRequest{ID: id, Worker: worker}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Serve finishes the token holding sequence.
func (c *Client) Serve(sequence int, worker string) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.call("Serve", ServeRequest{Sequence: sequence, Worker: worker}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns the annotated queue of the current period.
func (c *Client) QueueList() (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.call("QueueList", QueueListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns the owner's retained tokens.
func (c *Client) History(owner string) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.call("History", HistoryRequest{Owner: owner}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats reports counts for the period opening on date; empty means today.
func (c *Client) Stats(date string) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.call("Stats", StatsRequest{Date: date}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Workers reports per-worker counts for the current period.
func (c *Client) Workers() (*WorkersResponse, error) {
	var resp WorkersResponse
	if err := c.call("Workers", WorkersRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Analytics returns the staff overview.
func (c *Client) Analytics() (*AnalyticsResponse, error) {
	var resp AnalyticsResponse
	if err := c.call("Analytics", AnalyticsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Archive runs a manual retention pass.
func (c *Client) Archive(policy string) (*ArchiveResponse, error) {
	var resp ArchiveResponse
	if err := c.call("Archive", ArchiveRequest{Policy: policy}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueHealth returns token count diagnostics.
func (c *Client) QueueHealth() (*QueueHealthResponse, error) {
	var resp QueueHealthResponse
	if err := c.call("QueueHealth", QueueHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.call("DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
