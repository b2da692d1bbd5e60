package command

import (
	"context"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service validates and persists commands. Ownership is checked by the
// caller against the owning device before any method here is used.
type Service struct {
	repo   Repository
	logger Logger
}

// NewService creates a command service over repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// GetCommand retrieves a command by ID.
func (s *Service) GetCommand(ctx context.Context, id string) (*Command, error) {
	return s.repo.GetByID(ctx, id)
}

// GetDeviceCommand retrieves a command and checks it belongs to deviceID.
// A command of another device is reported as ErrCommandNotFound.
func (s *Service) GetDeviceCommand(ctx context.Context, deviceID, id string) (*Command, error) {
	cmd, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cmd.DeviceID != deviceID {
		return nil, ErrCommandNotFound
	}
	return cmd, nil
}

// GetCommandsByIDs resolves a set of IDs with one repository query.
// Missing IDs are absent from the returned map.
func (s *Service) GetCommandsByIDs(ctx context.Context, ids []string) (map[string]Command, error) {
	commands, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Command, len(commands))
	for _, c := range commands {
		byID[c.ID] = c
	}
	return byID, nil
}

// ListCommands retrieves a device's commands, oldest first.
func (s *Service) ListCommands(ctx context.Context, deviceID string) ([]Command, error) {
	return s.repo.ListByDevice(ctx, deviceID)
}

// CreateCommand normalises, validates and persists a new command.
func (s *Service) CreateCommand(ctx context.Context, cmd *Command) error {
	if cmd.ID == "" {
		cmd.ID = GenerateID()
	}

	Normalize(cmd)
	if err := ValidateCommand(cmd); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, cmd); err != nil {
		return err
	}

	s.logger.Info("command created", "id", cmd.ID, "device_id", cmd.DeviceID, "action", cmd.Action)
	return nil
}

// UpdateCommand persists user edits. The owning device and creation time
// come from the stored record.
func (s *Service) UpdateCommand(ctx context.Context, cmd *Command) error {
	existing, err := s.repo.GetByID(ctx, cmd.ID)
	if err != nil {
		return err
	}
	cmd.DeviceID = existing.DeviceID
	cmd.CreatedAt = existing.CreatedAt

	Normalize(cmd)
	if err := ValidateCommand(cmd); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, cmd); err != nil {
		return err
	}

	s.logger.Info("command updated", "id", cmd.ID, "action", cmd.Action)
	return nil
}

// DeleteCommand removes a command. Log entries that mention it remain.
func (s *Service) DeleteCommand(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("command deleted", "id", id)
	return nil
}
