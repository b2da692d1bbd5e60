package execution

import (
	"context"

	"github.com/nerrad567/pinctl-core/internal/command"
	"github.com/nerrad567/pinctl-core/internal/device"
)

// StatusStore persists a device's on/off status. *device.Registry
// implements it.
type StatusStore interface {
	SetDeviceStatus(ctx context.Context, id string, status bool) error
}

// Reconciler writes the status a successful command leaves a device in.
type Reconciler struct {
	store StatusStore
}

// NewReconciler creates a Reconciler over store.
func NewReconciler(store StatusStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile sets the device active for HIGH (or ON) and inactive for
// anything else. It must only be called after a successful dispatch.
func (r *Reconciler) Reconcile(ctx context.Context, dev *device.Device, cmd *command.Command) (bool, error) {
	status := cmd.Action.ActivatesDevice()
	if err := r.store.SetDeviceStatus(ctx, dev.ID, status); err != nil {
		return false, &PersistenceError{Op: OpReconcile, Err: err}
	}
	return status, nil
}
