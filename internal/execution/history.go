package execution

import (
	"context"

	"github.com/nerrad567/pinctl-core/internal/audit"
	"github.com/nerrad567/pinctl-core/internal/command"
	"github.com/nerrad567/pinctl-core/internal/device"
)

// AuditLister reads pages of audit entries. *audit.SQLiteRepository
// implements it.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// DeviceLookup resolves device ids in one query. *device.Registry
// implements it.
type DeviceLookup interface {
	GetDevicesByIDs(ctx context.Context, ids []string) (map[string]device.Device, error)
}

// CommandLookup resolves command ids in one query. *command.Service
// implements it.
type CommandLookup interface {
	GetCommandsByIDs(ctx context.Context, ids []string) (map[string]command.Command, error)
}

// DeviceRef summarises the device an entry refers to.
type DeviceRef struct {
	Name  string `json:"name"`
	RefID string `json:"ref_id"`
}

// CommandRef summarises the command an entry refers to.
type CommandRef struct {
	Label string `json:"label"`
	RefID string `json:"ref_id"`
}

// EnrichedEntry is an audit entry with its references resolved. Device and
// Command are nil when the entry had no reference or the record is gone.
type EnrichedEntry struct {
	audit.Entry
	Device  *DeviceRef  `json:"device"`
	Command *CommandRef `json:"command"`
}

// Page is one page of enriched entries. Total counts every entry matching
// the filter, not just this page.
type Page struct {
	Logs   []EnrichedEntry `json:"logs"`
	Count  int             `json:"count"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// History lists recent execution attempts for display.
type History struct {
	logs     AuditLister
	devices  DeviceLookup
	commands CommandLookup
	logger   Logger
}

// NewHistory creates a History. logger may be nil.
func NewHistory(logs AuditLister, devices DeviceLookup, commands CommandLookup, logger Logger) *History {
	if logger == nil {
		logger = noopLogger{}
	}
	return &History{logs: logs, devices: devices, commands: commands, logger: logger}
}

// ListRecent returns the owner's most recent entries (limit defaults to
// 50, capped at 200), newest first, each joined to the current device and
// command.
func (h *History) ListRecent(ctx context.Context, ownerID string, limit int) ([]EnrichedEntry, error) {
	page, err := h.List(ctx, audit.Filter{OwnerID: ownerID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return page.Logs, nil
}

// List returns one page of the entries matching filter, newest first.
// Lookups are one batch query per table; a failed lookup is logged and its
// references left unresolved.
func (h *History) List(ctx context.Context, filter audit.Filter) (*Page, error) {
	result, err := h.logs.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	logs := h.enrich(ctx, filter.OwnerID, result.Entries)
	return &Page{
		Logs:   logs,
		Count:  len(logs),
		Total:  result.Total,
		Limit:  result.Limit,
		Offset: result.Offset,
	}, nil
}

func (h *History) enrich(ctx context.Context, ownerID string, entries []audit.Entry) []EnrichedEntry {
	deviceIDs, commandIDs := referencedIDs(entries)

	var (
		devices  map[string]device.Device
		commands map[string]command.Command
		err      error
	)
	if len(deviceIDs) > 0 {
		if devices, err = h.devices.GetDevicesByIDs(ctx, deviceIDs); err != nil {
			h.logger.Warn("device lookup failed, leaving references unresolved", "error", err)
		}
	}
	if len(commandIDs) > 0 {
		if commands, err = h.commands.GetCommandsByIDs(ctx, commandIDs); err != nil {
			h.logger.Warn("command lookup failed, leaving references unresolved", "error", err)
		}
	}

	enriched := make([]EnrichedEntry, len(entries))
	for i, e := range entries {
		enriched[i] = EnrichedEntry{Entry: e}

		if e.DeviceID != nil {
			if d, ok := devices[*e.DeviceID]; ok && d.OwnedBy(ownerID) {
				enriched[i].Device = &DeviceRef{Name: d.Name, RefID: d.RefID}
			}
		}
		if e.CommandID != nil {
			if c, ok := commands[*e.CommandID]; ok {
				enriched[i].Command = &CommandRef{Label: c.Label, RefID: c.RefID}
			}
		}
	}
	return enriched
}

// referencedIDs returns the distinct device and command ids in entries.
func referencedIDs(entries []audit.Entry) (deviceIDs, commandIDs []string) {
	seenDevices := make(map[string]struct{})
	seenCommands := make(map[string]struct{})

	for _, e := range entries {
		if e.DeviceID != nil {
			if _, ok := seenDevices[*e.DeviceID]; !ok {
				seenDevices[*e.DeviceID] = struct{}{}
				deviceIDs = append(deviceIDs, *e.DeviceID)
			}
		}
		if e.CommandID != nil {
			if _, ok := seenCommands[*e.CommandID]; !ok {
				seenCommands[*e.CommandID] = struct{}{}
				commandIDs = append(commandIDs, *e.CommandID)
			}
		}
	}
	return deviceIDs, commandIDs
}
