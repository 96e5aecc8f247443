package api

import (
	"time"

	"turnstile/internal/desk"
	"turnstile/internal/estimate"
	"turnstile/internal/period"
	"turnstile/internal/queue"
)

// FormatTime renders an API timestamp; the zero time renders as "".
func FormatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}

func formatTimePtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return FormatTime(*value)
}

// FromToken converts a ledger token to its API representation.
func FromToken(token *queue.Token) Token {
	if token == nil {
		return Token{}
	}
	return Token{
		ID:             token.ID,
		Period:         token.PeriodKey,
		SequenceNumber: token.SequenceNumber,
		Owner:          token.OwnerRef,
		Name:           token.Name,
		Email:          token.Email,
		Status:         string(token.Status),
		ServedBy:       token.ServedBy,
		CreatedAt:      FormatTime(token.CreatedAt),
		UpdatedAt:      FormatTime(token.UpdatedAt),
		CalledAt:       formatTimePtr(token.CalledAt),
		CompletedAt:    formatTimePtr(token.CompletedAt),
	}
}

// FromTokens converts a slice of ledger tokens into API DTOs.
func FromTokens(tokens []*queue.Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, token := range tokens {
		if token == nil {
			continue
		}
		out = append(out, FromToken(token))
	}
	return out
}

// FromTicket converts a desk ticket.
func FromTicket(ticket desk.Ticket) Ticket {
	dto := Ticket{
		Token:                FromToken(ticket.Token),
		AheadCount:           ticket.AheadCount,
		EstimatedWaitMinutes: ticket.EstimatedWaitMinutes,
		Existing:             ticket.Existing,
	}
	if ticket.Token != nil {
		dto.SequenceNumber = ticket.Token.SequenceNumber
		dto.Name = ticket.Token.Name
	}
	return dto
}

// FromEntries converts an annotated queue snapshot.
func FromEntries(entries []estimate.Entry) []QueueEntry {
	out := make([]QueueEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Token == nil {
			continue
		}
		out = append(out, QueueEntry{
			Token:                FromToken(entry.Token),
			SequenceNumber:       entry.Token.SequenceNumber,
			Status:               string(entry.Token.Status),
			AheadCount:           entry.AheadCount,
			EstimatedWaitMinutes: entry.EstimatedWaitMinutes,
		})
	}
	return out
}

// FromDailyStats converts period counts.
func FromDailyStats(stats desk.DailyStats) DailyStats {
	return DailyStats{
		Period:      stats.Period.Key,
		PeriodStart: FormatTime(stats.Period.Start),
		PeriodEnd:   FormatTime(stats.Period.End),
		Served:      stats.Served,
		Waiting:     stats.Waiting,
		Serving:     stats.Serving,
		Total:       stats.Total,
	}
}

// FromWorkers converts per-worker counts.
func FromWorkers(counts []queue.WorkerCount) []WorkerCount {
	out := make([]WorkerCount, 0, len(counts))
	for _, wc := range counts {
		out = append(out, WorkerCount{Worker: wc.Worker, Served: wc.Served, Serving: wc.Serving})
	}
	return out
}

// FromAnalytics converts the staff overview.
func FromAnalytics(report desk.Analytics) Analytics {
	return Analytics{
		Period: report.Period.Key,
		Summary: Summary{
			Total:                 report.Summary.Total,
			Waiting:               report.Summary.Waiting,
			Serving:               report.Summary.Serving,
			Done:                  report.Summary.Done,
			AverageServiceMinutes: report.Summary.AverageServiceMinutes,
			RemainingMinutes:      report.Summary.RemainingMinutes,
		},
		Queue:   FromEntries(report.Entries),
		Workers: FromWorkers(report.Workers),
	}
}

// FromRetentionResult converts a retention pass summary.
func FromRetentionResult(result desk.RetentionResult) RetentionResult {
	return RetentionResult{
		Policy:       result.Policy,
		Period:       result.PeriodKey,
		Expired:      result.Expired,
		Purged:       result.Purged,
		ArchiveFiles: result.ArchiveFiles,
	}
}

// MergeQueueStats converts status counts into a map keyed by status name,
// always including every lifecycle status.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] += count
	}
	return out
}

// WindowLabel renders a period window for display.
func WindowLabel(window period.Window) string {
	if window.Key == "" {
		return ""
	}
	return window.Key + " (" + FormatTime(window.Start) + " - " + FormatTime(window.End) + ")"
}

// ParseTime parses an API timestamp, returning the zero time for empty or
// malformed values.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
