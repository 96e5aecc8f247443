package ipc

import "turnstile/internal/api"

// Token mirrors the HTTP API token DTO for IPC callers.
type Token = api.Token

// Ticket mirrors the HTTP API take result.
type Ticket = api.Ticket

// QueueEntry mirrors one annotated queue row.
type QueueEntry = api.QueueEntry

// TakeRequest issues or returns the owner's token.
type TakeRequest = api.TakeTokenRequest

// TakeResponse wraps the issued ticket.
type TakeResponse struct {
	Ticket Ticket `json:"ticket"`
}

// WorkerRequest identifies the acting worker.
type WorkerRequest = api.WorkerRequest

// NextResponse carries the called token, or Empty when nobody waits.
type NextResponse = api.NextResponse

// DoneRequest finishes a serving token by id.
type DoneRequest struct {
	ID     string `json:"id"`
	Worker string `json:"worker"`
}

// ServeRequest finishes the token holding a sequence number.
type ServeRequest struct {
	Sequence int    `json:"sequence"`
	Worker   string `json:"worker"`
}

// TokenResponse wraps a single token.
type TokenResponse = api.TokenResponse

// QueueListRequest fetches the annotated queue of the current period.
type QueueListRequest struct{}

// QueueListResponse contains the annotated queue.
type QueueListResponse = api.QueueListResponse

// HistoryRequest lists an owner's retained tokens.
type HistoryRequest struct {
	Owner string `json:"owner"`
}

// HistoryResponse contains the owner's tokens newest first.
type HistoryResponse = api.TokenListResponse

// StatsRequest selects a period by its opening date; empty means today.
type StatsRequest struct {
	Date string `json:"date"`
}

// StatsResponse reports one period's counts.
type StatsResponse = api.DailyStats

// WorkersRequest fetches per-worker counts for the current period.
type WorkersRequest struct{}

// WorkersResponse contains per-worker counts.
type WorkersResponse = api.WorkerListResponse

// AnalyticsRequest fetches the staff overview.
type AnalyticsRequest struct{}

// AnalyticsResponse is the staff overview.
type AnalyticsResponse = api.Analytics

// ArchiveRequest runs a manual retention pass with Policy (purge or archive).
type ArchiveRequest struct {
	Policy string `json:"policy"`
}

// ArchiveResponse summarizes the retention pass.
type ArchiveResponse = api.RetentionResult

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse = api.DaemonStatus

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports token counts across retained periods.
type QueueHealthResponse struct {
	Total   int `json:"total"`
	Waiting int `json:"waiting"`
	Serving int `json:"serving"`
	Done    int `json:"done"`
	Periods int `json:"periods"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalTokens      int      `json:"total_tokens"`
	Error            string   `json:"error"`
}
