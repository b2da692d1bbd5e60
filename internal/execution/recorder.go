package execution

import (
	"context"

	"github.com/nerrad567/pinctl-core/internal/audit"
	"github.com/nerrad567/pinctl-core/internal/gateway"
)

// AuditStore inserts audit entries. *audit.SQLiteRepository implements it.
type AuditStore interface {
	Create(ctx context.Context, entry *audit.Entry) error
}

// AuditRecorder appends one entry per execution attempt.
type AuditRecorder struct {
	store AuditStore
}

// NewAuditRecorder creates an AuditRecorder over store.
func NewAuditRecorder(store AuditStore) *AuditRecorder {
	return &AuditRecorder{store: store}
}

// Record inserts an entry timestamped at write time. Successful attempts
// never carry an error message; failed ones always do.
func (r *AuditRecorder) Record(ctx context.Context, ownerID, commandID, deviceID string, success bool, errorMessage string) (*audit.Entry, error) {
	switch {
	case success:
		errorMessage = ""
	case errorMessage == "":
		errorMessage = gateway.GenericFailureMessage
	}

	entry := &audit.Entry{
		OwnerID:      ownerID,
		CommandID:    optional(commandID),
		DeviceID:     optional(deviceID),
		Success:      success,
		ErrorMessage: errorMessage,
	}
	if err := r.store.Create(ctx, entry); err != nil {
		return nil, &PersistenceError{Op: OpAudit, Err: err}
	}
	return entry, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
