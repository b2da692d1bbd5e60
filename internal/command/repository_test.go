package command

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/pinctl-core/internal/device"
	"github.com/nerrad567/pinctl-core/internal/infrastructure/database"
	_ "github.com/nerrad567/pinctl-core/migrations"
)

// setupTestDB creates a migrated in-memory database holding one device,
// "dev-1", owned by "user-1".
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	devices := device.NewSQLiteRepository(db.DB)
	if err := devices.Create(ctx, &device.Device{
		ID: "dev-1", OwnerID: "user-1", Name: "LED", Pin: 13, Type: device.TypeOutput, RefID: "DEV_LED_01",
	}); err != nil {
		t.Fatalf("failed to seed device: %v", err)
	}
	return db.DB
}

func testCommand(id, refID string, action Action) *Command {
	return &Command{ID: id, DeviceID: "dev-1", RefID: refID, Label: "Cmd " + refID, Action: action}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	cmd := testCommand("cmd-1", "CMD_DIM", ActionPWM)
	cmd.Value = 128
	if err := repo.Create(ctx, cmd); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "cmd-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.DeviceID != "dev-1" || got.Action != ActionPWM || got.Value != 128 || got.RefID != "CMD_DIM" {
		t.Errorf("GetByID() = %+v", got)
	}
	if !got.CreatedAt.Equal(cmd.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, cmd.CreatedAt)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("GetByID(missing) error = %v, want %v", err, ErrCommandNotFound)
	}
}

func TestSQLiteRepository_Create_ConstraintErrors(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testCommand("cmd-1", "CMD_ON", ActionHigh)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name    string
		cmd     *Command
		wantErr error
	}{
		{"duplicate ref_id", testCommand("cmd-2", "CMD_ON", ActionLow), ErrDuplicateRefID},
		{"unknown device", &Command{ID: "cmd-3", DeviceID: "ghost", RefID: "CMD_X", Label: "x", Action: ActionLow}, ErrDeviceMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(ctx, tt.cmd); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSQLiteRepository_ListByDevice_OldestFirst(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Inserted out of order; listing follows created_at.
	inserts := []struct {
		refID  string
		offset time.Duration
	}{
		{"CMD_B", 2 * time.Minute},
		{"CMD_A", time.Minute},
		{"CMD_C", 3 * time.Minute},
	}
	for _, in := range inserts {
		cmd := testCommand("id-"+in.refID, in.refID, ActionHigh)
		cmd.CreatedAt = base.Add(in.offset)
		if err := repo.Create(ctx, cmd); err != nil {
			t.Fatalf("Create(%s) error = %v", in.refID, err)
		}
	}

	commands, err := repo.ListByDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	want := []string{"CMD_A", "CMD_B", "CMD_C"}
	if len(commands) != len(want) {
		t.Fatalf("ListByDevice() returned %d commands, want %d", len(commands), len(want))
	}
	for i, c := range commands {
		if c.RefID != want[i] {
			t.Errorf("commands[%d].RefID = %q, want %q", i, c.RefID, want[i])
		}
	}

	none, err := repo.ListByDevice(ctx, "other")
	if err != nil {
		t.Fatalf("ListByDevice(other) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListByDevice(other) returned %d commands, want 0", len(none))
	}
}

func TestSQLiteRepository_GetByIDs(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := repo.Create(ctx, testCommand(id, "CMD_"+id, ActionLow)); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	commands, err := repo.GetByIDs(ctx, []string{"a", "b", "deleted"})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(commands) != 2 {
		t.Errorf("GetByIDs() returned %d commands, want 2", len(commands))
	}
}

func TestSQLiteRepository_UpdateAndDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	cmd := testCommand("cmd-1", "CMD_ON", ActionHigh)
	if err := repo.Create(ctx, cmd); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	cmd.Label = "Dim"
	cmd.Action = ActionAnalog
	cmd.Value = 42
	if err := repo.Update(ctx, cmd); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := repo.GetByID(ctx, "cmd-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Label != "Dim" || got.Action != ActionAnalog || got.Value != 42 {
		t.Errorf("Update() did not persist: %+v", got)
	}

	if err := repo.Update(ctx, testCommand("missing", "CMD_Z", ActionLow)); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("Update(missing) error = %v, want %v", err, ErrCommandNotFound)
	}

	if err := repo.Delete(ctx, "cmd-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "cmd-1"); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("second Delete() error = %v, want %v", err, ErrCommandNotFound)
	}
}
