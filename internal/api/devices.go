package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pinctl-core/internal/device"
)

// handleListDevices returns the caller's devices, newest first.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	devices, err := s.registry.ListDevices(r.Context(), actor.ID)
	if err != nil {
		s.logger.Error("failed to list devices", "owner_id", actor.ID, "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device owned by the caller.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.ownedDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice registers a new device for the caller. Any id, owner
// or status in the body is ignored.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	dev.ID = ""
	dev.OwnerID = actorFrom(r.Context()).ID

	if err := s.registry.CreateDevice(r.Context(), &dev); err != nil {
		if !isValidationError(err) && !errors.Is(err, device.ErrDuplicateRefID) {
			s.logger.Error("failed to create device", "error", err)
		}
		writeWriteError(w, err, "failed to create device")
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice applies a partial update to one of the caller's devices.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.ownedDevice(w, r)
	if !ok {
		return
	}

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = chi.URLParam(r, "id")

	if err := s.registry.UpdateDevice(r.Context(), existing); err != nil {
		if !isValidationError(err) && !errors.Is(err, device.ErrDuplicateRefID) {
			s.logger.Error("failed to update device", "id", existing.ID, "error", err)
		}
		writeWriteError(w, err, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDevice removes one of the caller's devices and its commands.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.ownedDevice(w, r)
	if !ok {
		return
	}

	if err := s.registry.DeleteDevice(r.Context(), dev.ID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to delete device", "id", dev.ID, "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownedDevice resolves the {id} route parameter to a device owned by the
// caller. It writes the error response and returns false otherwise; a
// device owned by someone else is reported as not found.
func (s *Server) ownedDevice(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetOwnedDevice(r.Context(), actorFrom(r.Context()).ID, id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return nil, false
		}
		s.logger.Error("failed to get device", "id", id, "error", err)
		writeInternalError(w, "failed to get device")
		return nil, false
	}
	return dev, true
}
