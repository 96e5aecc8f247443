package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns token counts grouped by status across every retained period.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM tokens GROUP BY status`)
	if err != nil {
		return nil, unavailable("token stats", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, unavailable("scan token stats", err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate token stats", err)
	}
	return stats, nil
}

// Health aggregates token state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusWaiting:
			health.Waiting += count
		case StatusServing:
			health.Serving += count
		case StatusDone:
			health.Done += count
		}
	}
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(DISTINCT period_key) FROM tokens`).Scan(&health.Periods); err != nil {
		return HealthSummary{}, unavailable("count periods", err)
	}
	return health, nil
}

// PeriodStats aggregates token counts for one period.
func (s *Store) PeriodStats(ctx context.Context, periodKey string) (PeriodStats, error) {
	stats := PeriodStats{PeriodKey: periodKey}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT status, COUNT(1) FROM tokens WHERE period_key = ? GROUP BY status`,
		periodKey,
	)
	if err != nil {
		return stats, unavailable("period stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, unavailable("scan period stats", err)
		}
		stats.Total += count
		switch status {
		case StatusWaiting:
			stats.Waiting = count
		case StatusServing:
			stats.Serving = count
		case StatusDone:
			stats.Done = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, unavailable("iterate period stats", err)
	}
	return stats, nil
}

// ServedByWorker reports, per worker, how many tokens of the period they
// completed and are currently serving. Busiest workers come first.
func (s *Store) ServedByWorker(ctx context.Context, periodKey string) ([]WorkerCount, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT served_by,
                SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
                SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
         FROM tokens
         WHERE period_key = ? AND served_by IS NOT NULL AND served_by != ''
         GROUP BY served_by
         ORDER BY 2 DESC, served_by`,
		StatusDone,
		StatusServing,
		periodKey,
	)
	if err != nil {
		return nil, unavailable("worker stats", err)
	}
	defer rows.Close()

	var counts []WorkerCount
	for rows.Next() {
		var wc WorkerCount
		if err := rows.Scan(&wc.Worker, &wc.Served, &wc.Serving); err != nil {
			return nil, unavailable("scan worker stats", err)
		}
		counts = append(counts, wc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate worker stats", err)
	}
	return counts, nil
}

// ListBefore returns tokens of every period whose key sorts before
// periodKey, oldest first.
func (s *Store) ListBefore(ctx context.Context, periodKey string) ([]*Token, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+tokenColumns+` FROM tokens WHERE period_key < ?
        ORDER BY period_key, created_at, sequence_number`,
		periodKey,
	)
	if err != nil {
		return nil, unavailable("list expired tokens", err)
	}
	tokens, err := scanTokens(rows)
	if err != nil {
		return nil, unavailable("scan expired tokens", err)
	}
	return tokens, nil
}

// PurgeBefore deletes tokens of every period whose key sorts before periodKey.
func (s *Store) PurgeBefore(ctx context.Context, periodKey string) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tokens WHERE period_key < ?`, periodKey)
	if err != nil {
		return 0, unavailable("purge expired tokens", err)
	}
	return res.RowsAffected()
}

// CheckHealth returns diagnostic information about the token database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: schemaVersion,
	}

	if s.path == "" {
		return health, errors.New("token database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat token database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("token database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("token database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, unavailable("ping token database", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'tokens'")
	if err := row.Scan(&tableName); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			health.Error = err.Error()
			return health, unavailable("query table info", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		columns, err := s.tableColumns(connCtx)
		if err != nil {
			health.Error = err.Error()
			return health, err
		}
		health.ColumnsPresent = columns

		present := make(map[string]struct{}, len(columns))
		for _, col := range columns {
			present[col] = struct{}{}
		}
		for _, col := range tokenColumnNames {
			if _, ok := present[col]; !ok {
				health.MissingColumns = append(health.MissingColumns, col)
			}
		}

		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM tokens").Scan(&health.TotalTokens); err != nil {
			health.Error = err.Error()
			return health, unavailable("count tokens", err)
		}
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, unavailable("integrity check", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

func (s *Store) tableColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(tokens)")
	if err != nil {
		return nil, unavailable("table info", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typeStr string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typeStr, &notNull, &dflt, &pk); err != nil {
			return nil, unavailable("scan table info", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate table info", err)
	}
	return columns, nil
}
