package command

import (
	"context"
	"errors"
	"testing"
)

func TestService_CreateCommand(t *testing.T) {
	svc := NewService(NewSQLiteRepository(setupTestDB(t)))
	ctx := context.Background()

	cmd := &Command{DeviceID: "dev-1", RefID: "cmd_on_01", Label: "On", Action: "high"}
	if err := svc.CreateCommand(ctx, cmd); err != nil {
		t.Fatalf("CreateCommand() error = %v", err)
	}
	if cmd.ID == "" {
		t.Error("CreateCommand() should assign an ID")
	}

	got, err := svc.GetCommand(ctx, cmd.ID)
	if err != nil {
		t.Fatalf("GetCommand() error = %v", err)
	}
	if got.RefID != "CMD_ON_01" || got.Action != ActionHigh || got.Value != 0 {
		t.Errorf("GetCommand() = %+v", got)
	}
}

func TestService_CreateCommand_RejectsBeforeStore(t *testing.T) {
	svc := NewService(NewSQLiteRepository(setupTestDB(t)))
	ctx := context.Background()

	bad := &Command{DeviceID: "dev-1", RefID: "CMD_X", Label: "Dim", Action: ActionPWM, Value: 300}
	if err := svc.CreateCommand(ctx, bad); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("CreateCommand() error = %v, want %v", err, ErrInvalidValue)
	}

	commands, err := svc.ListCommands(ctx, "dev-1")
	if err != nil {
		t.Fatalf("ListCommands() error = %v", err)
	}
	if len(commands) != 0 {
		t.Errorf("invalid command reached the store: %+v", commands)
	}
}

func TestService_GetDeviceCommand(t *testing.T) {
	svc := NewService(NewSQLiteRepository(setupTestDB(t)))
	ctx := context.Background()

	cmd := &Command{DeviceID: "dev-1", RefID: "CMD_ON", Label: "On", Action: ActionHigh}
	if err := svc.CreateCommand(ctx, cmd); err != nil {
		t.Fatalf("CreateCommand() error = %v", err)
	}

	if _, err := svc.GetDeviceCommand(ctx, "dev-1", cmd.ID); err != nil {
		t.Errorf("GetDeviceCommand(dev-1) error = %v", err)
	}
	if _, err := svc.GetDeviceCommand(ctx, "dev-2", cmd.ID); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("GetDeviceCommand(dev-2) error = %v, want %v", err, ErrCommandNotFound)
	}
}

func TestService_UpdateCommand_KeepsDevice(t *testing.T) {
	svc := NewService(NewSQLiteRepository(setupTestDB(t)))
	ctx := context.Background()

	cmd := &Command{DeviceID: "dev-1", RefID: "CMD_ON", Label: "On", Action: ActionHigh}
	if err := svc.CreateCommand(ctx, cmd); err != nil {
		t.Fatalf("CreateCommand() error = %v", err)
	}

	edit := &Command{ID: cmd.ID, DeviceID: "dev-elsewhere", RefID: "CMD_OFF", Label: "Off", Action: ActionLow}
	if err := svc.UpdateCommand(ctx, edit); err != nil {
		t.Fatalf("UpdateCommand() error = %v", err)
	}

	got, err := svc.GetCommand(ctx, cmd.ID)
	if err != nil {
		t.Fatalf("GetCommand() error = %v", err)
	}
	if got.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1", got.DeviceID)
	}
	if got.Action != ActionLow || got.RefID != "CMD_OFF" {
		t.Errorf("UpdateCommand() = %+v", got)
	}

	if err := svc.UpdateCommand(ctx, &Command{ID: "missing"}); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("UpdateCommand(missing) error = %v, want %v", err, ErrCommandNotFound)
	}
}

func TestService_GetCommandsByIDs(t *testing.T) {
	svc := NewService(NewSQLiteRepository(setupTestDB(t)))
	ctx := context.Background()

	cmd := &Command{DeviceID: "dev-1", RefID: "CMD_ON", Label: "On", Action: ActionHigh}
	if err := svc.CreateCommand(ctx, cmd); err != nil {
		t.Fatalf("CreateCommand() error = %v", err)
	}
	if err := svc.DeleteCommand(ctx, cmd.ID); err != nil {
		t.Fatalf("DeleteCommand() error = %v", err)
	}

	byID, err := svc.GetCommandsByIDs(ctx, []string{cmd.ID})
	if err != nil {
		t.Fatalf("GetCommandsByIDs() error = %v", err)
	}
	if _, ok := byID[cmd.ID]; ok {
		t.Error("deleted command should be absent from the lookup")
	}
}
