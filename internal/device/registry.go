package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger is the subset of *logging.Logger the registry uses.
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

// Registry fronts a Repository with a by-ID cache of device copies.
// Every execution resolves its device through the cache; listings skip it
// and read the store so ordering stays newest first. Safe for concurrent
// use.
type Registry struct {
	repo    Repository
	cache   map[string]*Device
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new device registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache replaces the cache with every stored device. Called once at
// startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		r.cache[devices[i].ID] = devices[i].Clone()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice returns a copy of the device, or ErrDeviceNotFound. A cache miss
// falls through to the repository and fills the cache.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.Clone(), nil
	}

	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.remember(device)
	return device, nil
}

// GetOwnedDevice retrieves a device and checks that ownerID owns it.
// A device owned by someone else is reported as ErrDeviceNotFound so callers
// cannot probe for other users' IDs.
func (r *Registry) GetOwnedDevice(ctx context.Context, ownerID, id string) (*Device, error) {
	device, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !device.OwnedBy(ownerID) {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}

// GetDevicesByIDs resolves a set of IDs with one repository query.
// Missing IDs are absent from the returned map.
func (r *Registry) GetDevicesByIDs(ctx context.Context, ids []string) (map[string]Device, error) {
	devices, err := r.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Device, len(devices))
	for _, d := range devices {
		byID[d.ID] = d
	}
	return byID, nil
}

// ListDevices retrieves a user's devices, newest first.
func (r *Registry) ListDevices(ctx context.Context, ownerID string) ([]Device, error) {
	return r.repo.ListByOwner(ctx, ownerID)
}

// CreateDevice normalises and validates a new device, assigns an ID if
// needed, and persists it. Status always starts false.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	if device.ID == "" {
		device.ID = GenerateID()
	}
	device.Status = false

	Normalize(device)
	if err := ValidateDevice(device); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	r.remember(device)
	r.logger.Info("device created", "id", device.ID, "ref_id", device.RefID)
	return nil
}

// UpdateDevice persists user edits to an existing device. The owner,
// status and creation time are taken from the stored record, whatever the
// caller passed.
func (r *Registry) UpdateDevice(ctx context.Context, device *Device) error {
	existing, err := r.GetDevice(ctx, device.ID)
	if err != nil {
		return err
	}
	device.OwnerID = existing.OwnerID
	device.Status = existing.Status
	device.CreatedAt = existing.CreatedAt

	Normalize(device)
	if err := ValidateDevice(device); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, device); err != nil {
		return err
	}

	// Update never writes status, so the cached status is newer than the
	// one read above if SetDeviceStatus ran in between.
	r.cacheMu.Lock()
	if cached, ok := r.cache[device.ID]; ok {
		device.Status = cached.Status
	}
	r.cache[device.ID] = device.Clone()
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", device.ID, "ref_id", device.RefID)
	return nil
}

// DeleteDevice removes a device. Its commands go with it; its log entries
// stay.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.forget(id)
	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetDeviceStatus persists a new status and refreshes the cached copy.
func (r *Registry) SetDeviceStatus(ctx context.Context, id string, status bool) error {
	if err := r.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.Clone()
		updated.Status = status
		updated.UpdatedAt = time.Now().UTC()
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device status updated", "id", id, "status", status)
	return nil
}

func (r *Registry) remember(d *Device) {
	r.cacheMu.Lock()
	r.cache[d.ID] = d.Clone()
	r.cacheMu.Unlock()
}

func (r *Registry) forget(id string) {
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
