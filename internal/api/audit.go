package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/pinctl-core/internal/audit"
)

// handleListLogs returns a page of the caller's execution attempts, newest
// first, with device and command details where they still exist.
//
// Query parameters:
//   - device_id: only attempts against this device
//   - success: true or false
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	q := r.URL.Query()

	filter := audit.Filter{
		OwnerID:  actor.ID,
		DeviceID: q.Get("device_id"),
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, p.name+" must be an integer")
			return
		}
		*p.dst = n
	}

	if v := q.Get("success"); v != "" {
		ok, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "success must be true or false")
			return
		}
		filter.Success = &ok
	}

	page, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list logs", "owner_id", actor.ID, "error", err)
		writeInternalError(w, "failed to list logs")
		return
	}

	writeJSON(w, http.StatusOK, page)
}
