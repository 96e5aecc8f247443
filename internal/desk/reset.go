package desk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"turnstile/internal/config"
	"turnstile/internal/logging"
	"turnstile/internal/period"
	"turnstile/internal/queue"
)

// RetentionResult summarizes one pass over tokens of expired periods.
type RetentionResult struct {
	Policy       string
	PeriodKey    string
	Expired      int
	Purged       int64
	ArchiveFiles []string
}

// EnsureCurrentPeriod resolves the period containing the desk clock's now.
// Ledger queries are scoped by the returned key, so tokens of earlier periods
// drop out of allocation, dispatch, and estimation immediately. The purge or
// archive policy runs at most once per period per Desk; a failed pass is
// retried by the next request.
func (d *Desk) EnsureCurrentPeriod(ctx context.Context) (period.Window, error) {
	window := d.calendar.Current(d.clock)
	if d.retention == config.RetentionRetain {
		return window, nil
	}

	claimed := d.resetKey.Load()
	if claimed != nil && *claimed == window.Key {
		return window, nil
	}
	key := window.Key
	if !d.resetKey.CompareAndSwap(claimed, &key) {
		return window, nil
	}

	if _, err := d.applyRetention(ctx, window, d.retention); err != nil {
		d.resetKey.CompareAndSwap(&key, claimed)
		return window, err
	}
	return window, nil
}

// CurrentPeriod is EnsureCurrentPeriod for callers that only need the window.
// A failed retention pass is logged and left for the next call to retry;
// only cancellation of ctx is returned.
func (d *Desk) CurrentPeriod(ctx context.Context) (period.Window, error) {
	window, err := d.EnsureCurrentPeriod(ctx)
	if err == nil {
		return window, nil
	}
	if ctx != nil && ctx.Err() != nil {
		return window, ctx.Err()
	}
	d.log(ctx).Warn("retention pass failed",
		logging.Error(err),
		logging.String(logging.FieldPeriod, window.Key),
		logging.String(logging.FieldEventType, "retention_failed"),
	)
	return window, nil
}

// ApplyRetention runs policy over every period before the current one,
// regardless of the configured policy or whether this period was already
// handled.
func (d *Desk) ApplyRetention(ctx context.Context, policy string) (RetentionResult, error) {
	policy = strings.ToLower(strings.TrimSpace(policy))
	switch policy {
	case config.RetentionPurge, config.RetentionArchive:
	default:
		return RetentionResult{}, fmt.Errorf("%w: retention policy must be purge or archive, got %q", ErrInvalidRequest, policy)
	}
	return d.applyRetention(ctx, d.calendar.Current(d.clock), policy)
}

func (d *Desk) applyRetention(ctx context.Context, window period.Window, policy string) (RetentionResult, error) {
	result := RetentionResult{Policy: policy, PeriodKey: window.Key}
	logger := d.log(ctx).With(logging.String(logging.FieldPeriod, window.Key))

	if policy == config.RetentionArchive {
		expired, err := d.ledger.ListBefore(ctx, window.Key)
		if err != nil {
			return result, err
		}
		result.Expired = len(expired)
		if len(expired) == 0 {
			return result, nil
		}
		files, err := writeArchive(d.archiveDir, expired, d.clock.Now())
		result.ArchiveFiles = files
		if err != nil {
			return result, err
		}
	}

	purged, err := d.ledger.PurgeBefore(ctx, window.Key)
	if err != nil {
		return result, err
	}
	result.Purged = purged
	if purged > 0 || len(result.ArchiveFiles) > 0 {
		logger.Info("expired periods cleared",
			logging.String(logging.FieldEventType, "reset"),
			logging.String("policy", policy),
			logging.Int64("purged", purged),
			logging.Int("archive_files", len(result.ArchiveFiles)),
		)
	}
	return result, nil
}

type archiveRecord struct {
	ID             string     `json:"id"`
	PeriodKey      string     `json:"periodKey"`
	SequenceNumber int        `json:"sequenceNumber"`
	OwnerRef       string     `json:"ownerRef"`
	Name           string     `json:"name,omitempty"`
	Email          string     `json:"email,omitempty"`
	Status         string     `json:"status"`
	ServedBy       string     `json:"servedBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CalledAt       *time.Time `json:"calledAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	ArchivedAt     time.Time  `json:"archivedAt"`
}

// ArchivePath returns the archive file holding tokens of periodKey.
func ArchivePath(dir, periodKey string) string {
	return filepath.Join(dir, "tokens-"+periodKey+".jsonl.zst")
}

// writeArchive appends one zstd frame of JSON lines per period. Concatenated
// frames decode as a single stream, so repeated passes over the same period
// only ever append.
func writeArchive(dir string, tokens []*queue.Token, now time.Time) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("archive retention requires paths.archive_dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	byPeriod := make(map[string][]*queue.Token)
	var order []string
	for _, token := range tokens {
		if _, ok := byPeriod[token.PeriodKey]; !ok {
			order = append(order, token.PeriodKey)
		}
		byPeriod[token.PeriodKey] = append(byPeriod[token.PeriodKey], token)
	}

	files := make([]string, 0, len(order))
	for _, key := range order {
		path := ArchivePath(dir, key)
		if err := appendArchiveFrame(path, byPeriod[key], now); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

func appendArchiveFrame(path string, tokens []*queue.Token, now time.Time) (err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close archive %s: %w", path, closeErr)
		}
	}()

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	lines := json.NewEncoder(encoder)
	for _, token := range tokens {
		record := archiveRecord{
			ID:             token.ID,
			PeriodKey:      token.PeriodKey,
			SequenceNumber: token.SequenceNumber,
			OwnerRef:       token.OwnerRef,
			Name:           token.Name,
			Email:          token.Email,
			Status:         string(token.Status),
			ServedBy:       token.ServedBy,
			CreatedAt:      token.CreatedAt,
			UpdatedAt:      token.UpdatedAt,
			CalledAt:       token.CalledAt,
			CompletedAt:    token.CompletedAt,
			ArchivedAt:     now.UTC(),
		}
		if err := lines.Encode(record); err != nil {
			_ = encoder.Close()
			return fmt.Errorf("encode archive record: %w", err)
		}
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("flush archive %s: %w", path, err)
	}
	return file.Sync()
}

// ReadArchive decodes every token record stored in an archive file.
func ReadArchive(path string) ([]*queue.Token, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	var tokens []*queue.Token
	lines := json.NewDecoder(decoder)
	for lines.More() {
		var record archiveRecord
		if err := lines.Decode(&record); err != nil {
			return tokens, fmt.Errorf("decode archive record: %w", err)
		}
		status, ok := queue.ParseStatus(record.Status)
		if !ok {
			return tokens, fmt.Errorf("decode archive record %s: unknown status %q", record.ID, record.Status)
		}
		tokens = append(tokens, &queue.Token{
			ID:             record.ID,
			PeriodKey:      record.PeriodKey,
			SequenceNumber: record.SequenceNumber,
			OwnerRef:       record.OwnerRef,
			Name:           record.Name,
			Email:          record.Email,
			Status:         status,
			ServedBy:       record.ServedBy,
			CreatedAt:      record.CreatedAt,
			UpdatedAt:      record.UpdatedAt,
			CalledAt:       record.CalledAt,
			CompletedAt:    record.CompletedAt,
		})
	}
	return tokens, nil
}
