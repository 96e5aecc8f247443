package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a token.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusServing Status = "serving"
	StatusDone    Status = "done"
)

var allStatuses = []Status{
	StatusWaiting,
	StatusServing,
	StatusDone,
}

// legacyStatuses maps historical spellings accepted at the boundary.
var legacyStatuses = map[string]Status{
	"pending":   StatusWaiting,
	"queued":    StatusWaiting,
	"called":    StatusServing,
	"served":    StatusDone,
	"completed": StatusDone,
}

// AllStatuses returns the lifecycle in order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus normalizes a status string, accepting legacy names and any
// letter case.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, status := range allStatuses {
		if string(status) == normalized {
			return status, true
		}
	}
	if status, ok := legacyStatuses[normalized]; ok {
		return status, true
	}
	return "", false
}

// Next returns the only status a token may move to from s, or "" when s is
// terminal or unknown.
func (s Status) Next() Status {
	switch s {
	case StatusWaiting:
		return StatusServing
	case StatusServing:
		return StatusDone
	default:
		return ""
	}
}

// IsLive reports whether a token in this status still holds its owner's slot.
func (s Status) IsLive() bool {
	return s == StatusWaiting || s == StatusServing
}

// Token is one customer's place in line for a period.
type Token struct {
	ID             string
	PeriodKey      string
	SequenceNumber int
	OwnerRef       string
	Name           string
	Email          string
	Status         Status
	ServedBy       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CalledAt       *time.Time
	CompletedAt    *time.Time
}

// NewToken describes a token to insert.
type NewToken struct {
	ID             string
	PeriodKey      string
	SequenceNumber int
	OwnerRef       string
	Name           string
	Email          string
}

// CompleteOptions controls which tokens a completion may finish.
type CompleteOptions struct {
	// AllowWaiting lets a waiting token move straight to done.
	AllowWaiting bool
	// SameWorker rejects completion of a serving token by a different worker.
	SameWorker bool
}

// PeriodStats aggregates token counts for a single period.
type PeriodStats struct {
	PeriodKey string
	Total     int
	Waiting   int
	Serving   int
	Done      int
}

// WorkerCount is the number of tokens a worker completed in a period.
type WorkerCount struct {
	Worker  string
	Served  int
	Serving int
}

// DatabaseHealth captures diagnostic information about the token database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalTokens      int
	Error            string
}

// HealthSummary describes aggregated token counts across all retained periods.
type HealthSummary struct {
	Total   int
	Waiting int
	Serving int
	Done    int
	Periods int
}
