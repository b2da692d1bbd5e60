package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/pinctl-core/internal/infrastructure/database"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetByIDs retrieves every device whose ID is in ids. Unknown IDs are
	// skipped, so the result may be shorter than ids.
	GetByIDs(ctx context.Context, ids []string) ([]Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// ListByOwner retrieves a user's devices, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDuplicateRefID if the ref_id is taken.
	Create(ctx context.Context, device *Device) error

	// Update writes the user-editable fields. It never touches status.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// UpdateStatus writes only the status column.
	// Returns ErrDeviceNotFound if the device does not exist.
	UpdateStatus(ctx context.Context, id string, status bool) error

	// Delete removes a device and, through the foreign key, its commands.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDevice = `
	SELECT id, owner_id, name, pin, type, ref_id, status, description,
		created_at, updated_at
	FROM devices`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectDevice+" WHERE id = ?", id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// GetByIDs retrieves devices by ID with a single IN query.
func (r *SQLiteRepository) GetByIDs(ctx context.Context, ids []string) ([]Device, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := selectDevice + " WHERE id IN (" + placeholders(len(ids)) + ")"
	return r.queryDevices(ctx, query, stringArgs(ids)...)
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx, selectDevice+" ORDER BY created_at DESC, rowid DESC")
}

// ListByOwner retrieves a user's devices, newest first.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]Device, error) {
	return r.queryDevices(ctx,
		selectDevice+" WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC",
		ownerID,
	)
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	now := database.Now()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (
			id, owner_id, name, pin, type, ref_id, status, description,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		device.ID,
		device.OwnerID,
		device.Name,
		device.Pin,
		string(device.Type),
		device.RefID,
		boolToInt(device.Status),
		device.Description,
		database.FormatTime(device.CreatedAt),
		database.FormatTime(device.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRefID, device.RefID)
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update writes the user-editable fields of an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	device.UpdatedAt = database.Now()

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			name = ?, pin = ?, type = ?, ref_id = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		device.Name,
		device.Pin,
		string(device.Type),
		device.RefID,
		device.Description,
		database.FormatTime(device.UpdatedAt),
		device.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRefID, device.RefID)
		}
		return fmt.Errorf("updating device: %w", err)
	}
	return requireAffected(result)
}

// UpdateStatus writes only the status column.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET status = ?, updated_at = ? WHERE id = ?",
		boolToInt(status),
		database.FormatTime(database.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireAffected(result)
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var (
		d                    Device
		deviceType           string
		status               int
		createdAt, updatedAt string
	)

	err := scanner.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Name,
		&d.Pin,
		&deviceType,
		&d.RefID,
		&status,
		&d.Description,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = Type(deviceType)
	d.Status = status != 0

	if d.CreatedAt, err = parseTimestamp(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTimestamp(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &d, nil
}

func parseTimestamp(value, column string) (time.Time, error) {
	t, err := database.ParseTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", column, err)
	}
	return t, nil
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
