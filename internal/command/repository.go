package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/pinctl-core/internal/infrastructure/database"
)

// Repository defines the interface for command persistence operations.
type Repository interface {
	// GetByID retrieves a command by ID.
	// Returns ErrCommandNotFound if the command does not exist.
	GetByID(ctx context.Context, id string) (*Command, error)

	// GetByIDs retrieves every command whose ID is in ids. Unknown IDs are
	// skipped.
	GetByIDs(ctx context.Context, ids []string) ([]Command, error)

	// ListByDevice retrieves a device's commands, oldest first.
	ListByDevice(ctx context.Context, deviceID string) ([]Command, error)

	// Create inserts a new command.
	// Returns ErrDuplicateRefID or ErrDeviceMissing on constraint failures.
	Create(ctx context.Context, cmd *Command) error

	// Update writes label, ref_id, action and value.
	// Returns ErrCommandNotFound if the command does not exist.
	Update(ctx context.Context, cmd *Command) error

	// Delete removes a command.
	// Returns ErrCommandNotFound if the command does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectCommand = `
	SELECT id, device_id, ref_id, label, action, value, created_at, updated_at
	FROM commands`

// GetByID retrieves a command by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Command, error) {
	cmd, err := scanCommand(r.db.QueryRowContext(ctx, selectCommand+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("querying command by id: %w", err)
	}
	return cmd, nil
}

// GetByIDs retrieves commands by ID with a single IN query.
func (r *SQLiteRepository) GetByIDs(ctx context.Context, ids []string) ([]Command, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	return r.queryCommands(ctx, selectCommand+" WHERE id IN ("+marks+")", args...)
}

// ListByDevice retrieves a device's commands, oldest first.
func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceID string) ([]Command, error) {
	return r.queryCommands(ctx,
		selectCommand+" WHERE device_id = ? ORDER BY created_at ASC, rowid ASC",
		deviceID,
	)
}

// Create inserts a new command.
func (r *SQLiteRepository) Create(ctx context.Context, cmd *Command) error {
	now := database.Now()
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = now
	}
	cmd.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO commands (id, device_id, ref_id, label, action, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cmd.ID,
		cmd.DeviceID,
		cmd.RefID,
		cmd.Label,
		string(cmd.Action),
		cmd.Value,
		database.FormatTime(cmd.CreatedAt),
		database.FormatTime(cmd.UpdatedAt),
	)
	if err != nil {
		return classifyWriteError(err, cmd, "inserting command")
	}
	return nil
}

// Update writes the user-editable fields of an existing command. The owning
// device cannot change.
func (r *SQLiteRepository) Update(ctx context.Context, cmd *Command) error {
	cmd.UpdatedAt = database.Now()

	result, err := r.db.ExecContext(ctx, `
		UPDATE commands SET ref_id = ?, label = ?, action = ?, value = ?, updated_at = ?
		WHERE id = ?`,
		cmd.RefID,
		cmd.Label,
		string(cmd.Action),
		cmd.Value,
		database.FormatTime(cmd.UpdatedAt),
		cmd.ID,
	)
	if err != nil {
		return classifyWriteError(err, cmd, "updating command")
	}
	return requireAffected(result)
}

// Delete removes a command by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM commands WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting command: %w", err)
	}
	return requireAffected(result)
}

func (r *SQLiteRepository) queryCommands(ctx context.Context, query string, args ...any) ([]Command, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning command: %w", err)
		}
		commands = append(commands, *cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating commands: %w", err)
	}
	return commands, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(scanner rowScanner) (*Command, error) {
	var (
		c                    Command
		action               string
		createdAt, updatedAt string
	)
	if err := scanner.Scan(
		&c.ID,
		&c.DeviceID,
		&c.RefID,
		&c.Label,
		&action,
		&c.Value,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	c.Action = Action(action)

	var err error
	if c.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &c, nil
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCommandNotFound
	}
	return nil
}

// classifyWriteError maps SQLite constraint failures to domain errors.
func classifyWriteError(err error, cmd *Command, op string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", ErrDuplicateRefID, cmd.RefID)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %s", ErrDeviceMissing, cmd.DeviceID)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
