package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Token describes a service token in a transport-friendly format.
type Token struct {
	ID             string `json:"id"`
	Period         string `json:"period"`
	SequenceNumber int    `json:"sequenceNumber"`
	Owner          string `json:"owner"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Status         string `json:"status"`
	ServedBy       string `json:"servedBy,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
	CalledAt       string `json:"calledAt,omitempty"`
	CompletedAt    string `json:"completedAt,omitempty"`
}

// Ticket is the customer-facing result of taking a token.
type Ticket struct {
	Token                Token  `json:"token"`
	SequenceNumber       int    `json:"sequenceNumber"`
	AheadCount           int    `json:"aheadCount"`
	EstimatedWaitMinutes int    `json:"estimatedWaitMinutes"`
	Name                 string `json:"name,omitempty"`
	Existing             bool   `json:"existing"`
}

// QueueEntry is one token of the current period with its derived position.
type QueueEntry struct {
	Token                Token  `json:"token"`
	SequenceNumber       int    `json:"sequenceNumber"`
	Status               string `json:"status"`
	AheadCount           int    `json:"aheadCount"`
	EstimatedWaitMinutes int    `json:"estimatedWaitMinutes"`
}

// DailyStats aggregates one period.
type DailyStats struct {
	Period      string `json:"period"`
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
	Served      int    `json:"served"`
	Waiting     int    `json:"waiting"`
	Serving     int    `json:"serving"`
	Total       int    `json:"total"`
}

// WorkerCount reports a worker's activity in the current period.
type WorkerCount struct {
	Worker  string `json:"worker"`
	Served  int    `json:"served"`
	Serving int    `json:"serving"`
}

// Summary holds the period-wide analytics figures.
type Summary struct {
	Total                 int `json:"total"`
	Waiting               int `json:"waiting"`
	Serving               int `json:"serving"`
	Done                  int `json:"done"`
	AverageServiceMinutes int `json:"averageServiceMinutes"`
	RemainingMinutes      int `json:"remainingMinutes"`
}

// Analytics is the staff overview of the current period.
type Analytics struct {
	Period  string        `json:"period"`
	Summary Summary       `json:"summary"`
	Queue   []QueueEntry  `json:"queue"`
	Workers []WorkerCount `json:"workers"`
}

// RetentionResult reports a manual purge or archive pass.
type RetentionResult struct {
	Policy       string   `json:"policy"`
	Period       string   `json:"period"`
	Expired      int      `json:"expired"`
	Purged       int64    `json:"purged"`
	ArchiveFiles []string `json:"archiveFiles,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	SocketPath   string         `json:"socketPath"`
	APIBind      string         `json:"apiBind,omitempty"`
	StartedAt    string         `json:"startedAt,omitempty"`
	Today        DailyStats     `json:"today"`
	Counts       map[string]int `json:"counts"`
	LastError    string         `json:"lastError,omitempty"`
}

// TakeTokenRequest is the body of a take request.
type TakeTokenRequest struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// WorkerRequest identifies the acting worker for staff operations.
type WorkerRequest struct {
	Worker string `json:"worker"`
}

// NextResponse wraps the result of calling the next customer. Token is nil
// and Empty is true when nobody is waiting.
type NextResponse struct {
	Token *Token `json:"token,omitempty"`
	Empty bool   `json:"empty"`
}

// TokenResponse wraps a single token.
type TokenResponse struct {
	Token Token `json:"token"`
}

// TokenListResponse wraps a collection of tokens.
type TokenListResponse struct {
	Tokens []Token `json:"tokens"`
}

// QueueListResponse wraps the annotated queue.
type QueueListResponse struct {
	Period  string       `json:"period"`
	Entries []QueueEntry `json:"entries"`
}

// WorkerListResponse wraps per-worker counts.
type WorkerListResponse struct {
	Workers []WorkerCount `json:"workers"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
