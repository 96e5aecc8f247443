package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"turnstile/internal/desk"
	"turnstile/internal/estimate"
	"turnstile/internal/queue"
)

func TestFromTokenFormatsTimestamps(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 0, 0, 123456789, time.FixedZone("X", 3600))
	called := created.Add(time.Minute)
	dto := FromToken(&queue.Token{
		ID:             "tok-1",
		PeriodKey:      "2026-03-02",
		SequenceNumber: 4,
		OwnerRef:       "alice",
		Status:         queue.StatusServing,
		ServedBy:       "desk-1",
		CreatedAt:      created,
		CalledAt:       &called,
	})
	if dto.CreatedAt != "2026-03-02T08:00:00.123Z" {
		t.Fatalf("unexpected createdAt: %q", dto.CreatedAt)
	}
	if dto.CalledAt == "" || dto.CompletedAt != "" {
		t.Fatalf("unexpected optional timestamps: %+v", dto)
	}
	if dto.Status != "serving" || dto.Owner != "alice" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if got := ParseTime(dto.CreatedAt); !got.Equal(created.Truncate(time.Millisecond)) {
		t.Fatalf("ParseTime round trip mismatch: %v", got)
	}
}

func TestTicketJSONUsesCamelCase(t *testing.T) {
	ticket := FromTicket(desk.Ticket{
		Token:                &queue.Token{ID: "tok-2", SequenceNumber: 2, Name: "Bob", Status: queue.StatusWaiting},
		AheadCount:           1,
		EstimatedWaitMinutes: 5,
	})
	data, err := json.Marshal(ticket)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, fragment := range []string{`"sequenceNumber":2`, `"aheadCount":1`, `"estimatedWaitMinutes":5`, `"name":"Bob"`} {
		if !strings.Contains(string(data), fragment) {
			t.Fatalf("expected %s in %s", fragment, data)
		}
	}
}

func TestFromEntriesSkipsNilTokens(t *testing.T) {
	entries := FromEntries([]estimate.Entry{
		{Token: &queue.Token{SequenceNumber: 1, Status: queue.StatusDone}},
		{},
		{Token: &queue.Token{SequenceNumber: 2, Status: queue.StatusWaiting}, AheadCount: 0},
	})
	if len(entries) != 2 || entries[1].SequenceNumber != 2 || entries[1].Status != "waiting" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestMergeQueueStatsIncludesEveryStatus(t *testing.T) {
	merged := MergeQueueStats(map[queue.Status]int{queue.StatusDone: 3})
	if len(merged) != 3 || merged["done"] != 3 || merged["waiting"] != 0 {
		t.Fatalf("unexpected merged stats: %v", merged)
	}
}
