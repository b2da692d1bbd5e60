// Package audit provides append-only access to the logs table, the record
// of every command execution attempt.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/pinctl-core/internal/infrastructure/database"
)

// Page size limits for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Entry is one execution attempt. CommandID and DeviceID are nil when the
// attempt had no such reference; they are never cleared when the
// referenced record is later deleted.
type Entry struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	CommandID    *string   `json:"command_id"`
	DeviceID     *string   `json:"device_id"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message"`
	Timestamp    time.Time `json:"timestamp"`
}

// Filter controls which entries to return. OwnerID is required.
type Filter struct {
	OwnerID  string
	DeviceID string // optional: only attempts against this device
	Success  *bool  // optional: only successes or only failures
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains a page of entries, most recent first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for audit log operations.
// Entries are never updated or deleted.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new entry. The ID and Timestamp are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "log-" + uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = database.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO logs (id, owner_id, command_id, device_id, success, error_message, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OwnerID,
		nullableString(entry.CommandID), nullableString(entry.DeviceID),
		boolToInt(entry.Success), entry.ErrorMessage,
		database.FormatTime(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting log entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first. Entries
// written in the same microsecond keep insertion order.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter.Limit = ClampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	conditions := []string{"owner_id = ?"}
	args := []any{filter.OwnerID}

	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, boolToInt(*filter.Success))
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM logs " + where //nolint:gosec // WHERE built from parameterised conditions, not user input
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting log entries: %w", err)
	}

	query := "SELECT id, owner_id, command_id, device_id, success, error_message, timestamp FROM logs " + //nolint:gosec // as above
		where + " ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying log entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                   Entry
			commandID, deviceID sql.NullString
			success             int
			timestamp           string
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &commandID, &deviceID,
			&success, &e.ErrorMessage, &timestamp); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}

		if commandID.Valid {
			e.CommandID = &commandID.String
		}
		if deviceID.Valid {
			e.DeviceID = &deviceID.String
		}
		e.Success = success != 0

		if e.Timestamp, err = database.ParseTime(timestamp); err != nil {
			return nil, fmt.Errorf("parsing log entry timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// ClampLimit applies DefaultLimit to non-positive values and caps at MaxLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// nullableString returns nil for nil or empty values. Used for nullable
// TEXT columns in SQLite.
func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
