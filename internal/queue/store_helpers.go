package queue

import (
	"database/sql"
	"errors"
	"time"
)

// timeLayout is fixed width so text comparison in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const tokenColumns = "id, period_key, sequence_number, owner_ref, name, email, status, served_by, created_at, updated_at, called_at, completed_at"

var tokenColumnNames = []string{
	"id",
	"period_key",
	"sequence_number",
	"owner_ref",
	"name",
	"email",
	"status",
	"served_by",
	"created_at",
	"updated_at",
	"called_at",
	"completed_at",
}

func scanToken(scanner interface{ Scan(dest ...any) error }) (*Token, error) {
	var (
		id           string
		periodKey    string
		sequence     int
		ownerRef     string
		name         sql.NullString
		email        sql.NullString
		statusStr    string
		servedBy     sql.NullString
		createdRaw   string
		updatedRaw   string
		calledRaw    sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&periodKey,
		&sequence,
		&ownerRef,
		&name,
		&email,
		&statusStr,
		&servedBy,
		&createdRaw,
		&updatedRaw,
		&calledRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	token := &Token{
		ID:             id,
		PeriodKey:      periodKey,
		SequenceNumber: sequence,
		OwnerRef:       ownerRef,
		Name:           name.String,
		Email:          email.String,
		Status:         Status(statusStr),
		ServedBy:       servedBy.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		token.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		token.UpdatedAt = updated
	}
	if calledRaw.Valid {
		if called, err := parseTimeString(calledRaw.String); err == nil {
			token.CalledAt = &called
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			token.CompletedAt = &completed
		}
	}
	return token, nil
}

func scanTokens(rows *sql.Rows) ([]*Token, error) {
	defer rows.Close()
	var tokens []*Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
