package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pinctl-core/internal/command"
	"github.com/nerrad567/pinctl-core/internal/device"
	"github.com/nerrad567/pinctl-core/internal/execution"
)

// executeErrorResponse is returned when an execution ran but one of its
// writes failed. Result still describes what the gateway did.
type executeErrorResponse struct {
	Error
	Result execution.Result `json:"result"`
}

// handleListCommands returns a device's commands, oldest first.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.ownedDevice(w, r)
	if !ok {
		return
	}

	commands, err := s.commands.ListCommands(r.Context(), dev.ID)
	if err != nil {
		s.logger.Error("failed to list commands", "device_id", dev.ID, "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": commands, "count": len(commands)})
}

// handleGetCommand returns one command of the device.
func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	_, cmd, ok := s.deviceCommand(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

// handleCreateCommand attaches a new command to the device.
func (s *Server) handleCreateCommand(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.ownedDevice(w, r)
	if !ok {
		return
	}

	var cmd command.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	cmd.ID = ""
	cmd.DeviceID = dev.ID

	if err := s.commands.CreateCommand(r.Context(), &cmd); err != nil {
		if !isValidationError(err) && !errors.Is(err, command.ErrDuplicateRefID) {
			s.logger.Error("failed to create command", "device_id", dev.ID, "error", err)
		}
		writeWriteError(w, err, "failed to create command")
		return
	}

	writeJSON(w, http.StatusCreated, cmd)
}

// handleUpdateCommand applies a partial update to a command. The command
// stays attached to its device.
func (s *Server) handleUpdateCommand(w http.ResponseWriter, r *http.Request) {
	_, existing, ok := s.deviceCommand(w, r)
	if !ok {
		return
	}

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = chi.URLParam(r, "commandID")

	if err := s.commands.UpdateCommand(r.Context(), existing); err != nil {
		if !isValidationError(err) && !errors.Is(err, command.ErrDuplicateRefID) {
			s.logger.Error("failed to update command", "id", existing.ID, "error", err)
		}
		writeWriteError(w, err, "failed to update command")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteCommand removes a command. Its log entries remain.
func (s *Server) handleDeleteCommand(w http.ResponseWriter, r *http.Request) {
	_, cmd, ok := s.deviceCommand(w, r)
	if !ok {
		return
	}

	if err := s.commands.DeleteCommand(r.Context(), cmd.ID); err != nil {
		if errors.Is(err, command.ErrCommandNotFound) {
			writeNotFound(w, "command not found")
			return
		}
		s.logger.Error("failed to delete command", "id", cmd.ID, "error", err)
		writeInternalError(w, "failed to delete command")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleExecuteCommand sends the command to the gateway and reports the
// outcome. A gateway failure is a 200 with success=false; the attempt is
// in the audit trail either way.
func (s *Server) handleExecuteCommand(w http.ResponseWriter, r *http.Request) {
	dev, cmd, ok := s.deviceCommand(w, r)
	if !ok {
		return
	}

	result, err := s.executor.Execute(r.Context(), actorFrom(r.Context()), dev, cmd)
	if err != nil {
		var perr *execution.PersistenceError
		switch {
		case errors.As(err, &perr):
			writeJSON(w, http.StatusInternalServerError, executeErrorResponse{
				Error: Error{
					Status:  http.StatusInternalServerError,
					Code:    ErrCodePersistence,
					Message: "execution could not be fully recorded",
				},
				Result: result,
			})
		case errors.Is(err, execution.ErrNotOwner):
			writeNotFound(w, "device not found")
		case errors.Is(err, execution.ErrCommandMismatch):
			writeNotFound(w, "command not found")
		default:
			s.logger.Error("failed to execute command", "command_id", cmd.ID, "error", err)
			writeInternalError(w, "failed to execute command")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// deviceCommand resolves {id} and {commandID} to a command of a device the
// caller owns. A command that belongs to another device is not found.
func (s *Server) deviceCommand(w http.ResponseWriter, r *http.Request) (*device.Device, *command.Command, bool) {
	dev, ok := s.ownedDevice(w, r)
	if !ok {
		return nil, nil, false
	}

	commandID := chi.URLParam(r, "commandID")
	cmd, err := s.commands.GetDeviceCommand(r.Context(), dev.ID, commandID)
	if err != nil {
		if errors.Is(err, command.ErrCommandNotFound) {
			writeNotFound(w, "command not found")
			return nil, nil, false
		}
		s.logger.Error("failed to get command", "id", commandID, "error", err)
		writeInternalError(w, "failed to get command")
		return nil, nil, false
	}
	return dev, cmd, true
}
