// Package estimate derives "customers ahead" and wait estimates from ledger
// snapshots. It never mutates tokens and keeps no cache; callers recompute
// on demand.
package estimate

import "turnstile/internal/queue"

// DefaultAverageServiceMinutes is the per-head multiplier used when none is configured.
const DefaultAverageServiceMinutes = 5

// Entry pairs a token with its derived position.
type Entry struct {
	Token                *queue.Token
	AheadCount           int
	EstimatedWaitMinutes int
}

// WaitMinutes converts an ahead count into an estimated wait.
func WaitMinutes(ahead, averageMinutes int) int {
	if ahead <= 0 {
		return 0
	}
	if averageMinutes <= 0 {
		averageMinutes = DefaultAverageServiceMinutes
	}
	return ahead * averageMinutes
}

// AheadCount counts waiting tokens with a smaller sequence number than
// token. tokens may be in any order.
func AheadCount(tokens []*queue.Token, token *queue.Token) int {
	if token == nil {
		return 0
	}
	ahead := 0
	for _, other := range tokens {
		if other == nil {
			continue
		}
		if other.Status == queue.StatusWaiting && other.SequenceNumber < token.SequenceNumber {
			ahead++
		}
	}
	return ahead
}

// Snapshot annotates tokens, which must be sorted by creation, in a single
// pass. Waiting tokens report how many waiting tokens precede them; tokens
// already serving or done report zero.
func Snapshot(tokens []*queue.Token, averageMinutes int) []Entry {
	entries := make([]Entry, 0, len(tokens))
	waitingSeen := 0
	for _, token := range tokens {
		if token == nil {
			continue
		}
		entry := Entry{Token: token}
		if token.Status == queue.StatusWaiting {
			entry.AheadCount = waitingSeen
			entry.EstimatedWaitMinutes = WaitMinutes(waitingSeen, averageMinutes)
			waitingSeen++
		}
		entries = append(entries, entry)
	}
	return entries
}

// Summary holds period-wide figures for the analytics view.
type Summary struct {
	Total                 int
	Waiting               int
	Serving               int
	Done                  int
	AverageServiceMinutes int
	RemainingMinutes      int
}

// Summarize counts tokens by status and estimates the time to drain the
// waiting line.
func Summarize(tokens []*queue.Token, averageMinutes int) Summary {
	if averageMinutes <= 0 {
		averageMinutes = DefaultAverageServiceMinutes
	}
	summary := Summary{AverageServiceMinutes: averageMinutes}
	for _, token := range tokens {
		if token == nil {
			continue
		}
		summary.Total++
		switch token.Status {
		case queue.StatusWaiting:
			summary.Waiting++
		case queue.StatusServing:
			summary.Serving++
		case queue.StatusDone:
			summary.Done++
		}
	}
	summary.RemainingMinutes = WaitMinutes(summary.Waiting, averageMinutes)
	return summary
}
