package execution

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/pinctl-core/internal/command"
	"github.com/nerrad567/pinctl-core/internal/device"
	"github.com/nerrad567/pinctl-core/internal/gateway"
)

// Actor is the authenticated user asking for an execution.
type Actor struct {
	ID string
}

// Result is the outcome shown to the caller. Status is set only when the
// device status was reconciled; LogID only when the audit entry was written.
type Result struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
	Status       *bool  `json:"status,omitempty"`
	LogID        string `json:"log_id,omitempty"`
}

// MetricsRecorder receives execution telemetry. *influxdb.Client
// implements it.
type MetricsRecorder interface {
	RecordExecution(deviceID, commandID, action string, success bool, duration time.Duration)
	RecordDeviceStatus(deviceID string, status bool)
}

// Logger interface for execution logging.
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

// Executor runs dispatch, reconcile and audit for one command.
//
// Thread Safety: Execute is safe for concurrent use. With per-device
// serialisation on (the default) two executions against the same device
// never interleave, so the last dispatch is also the last status write.
type Executor struct {
	gateway    gateway.Dispatcher
	reconciler *Reconciler
	recorder   *AuditRecorder
	metrics    MetricsRecorder
	locks      *keyedMutex
	logger     Logger
}

// NewExecutor creates an executor. logger may be nil.
func NewExecutor(gw gateway.Dispatcher, reconciler *Reconciler, recorder *AuditRecorder, logger Logger) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Executor{
		gateway:    gw,
		reconciler: reconciler,
		recorder:   recorder,
		locks:      newKeyedMutex(),
		logger:     logger,
	}
}

// SetMetrics sets an optional metrics recorder.
func (e *Executor) SetMetrics(metrics MetricsRecorder) {
	e.metrics = metrics
}

// SetSerializePerDevice turns the per-device execution lock on or off.
func (e *Executor) SetSerializePerDevice(enabled bool) {
	if enabled {
		e.locks = newKeyedMutex()
		return
	}
	e.locks = nil
}

// Execute dispatches cmd to the gateway on behalf of actor.
//
// The actor must own dev and cmd must belong to dev; otherwise ErrNotOwner
// or ErrCommandMismatch is returned and nothing else happens. Past those
// checks the gateway is called at most once and exactly one audit entry is
// attempted. A dispatch failure is not an error: it is reported through
// Result.Success and Result.ErrorMessage. The returned error is non-nil
// only for store failures (*PersistenceError, joined when both writes fail),
// in which case the Result is still valid.
//
// Caller cancellation is ignored once the checks pass; the gateway timeout
// bounds the call.
func (e *Executor) Execute(ctx context.Context, actor Actor, dev *device.Device, cmd *command.Command) (Result, error) {
	if dev == nil || cmd == nil {
		return Result{}, ErrMissingTarget
	}
	if actor.ID == "" || !dev.OwnedBy(actor.ID) {
		return Result{}, ErrNotOwner
	}
	if cmd.DeviceID != dev.ID {
		return Result{}, ErrCommandMismatch
	}

	ctx = context.WithoutCancel(ctx)

	if locks := e.locks; locks != nil {
		unlock := locks.Lock(dev.ID)
		defer unlock()
	}

	started := time.Now()
	var (
		result Result
		errs   []error
	)

	dispatchErr := e.gateway.Dispatch(ctx, gateway.Request{CommandID: cmd.ID, RefID: cmd.RefID})
	if dispatchErr == nil {
		result.Success = true

		status, err := e.reconciler.Reconcile(ctx, dev, cmd)
		if err != nil {
			e.logger.Error("device status not persisted after successful dispatch",
				"device_id", dev.ID, "command_id", cmd.ID, "error", err)
			errs = append(errs, err)
		} else {
			result.Status = &status
			if e.metrics != nil {
				e.metrics.RecordDeviceStatus(dev.ID, status)
			}
		}
	} else {
		result.ErrorMessage = gateway.FailureMessage(dispatchErr)
		e.logger.Warn("command dispatch failed",
			"device_id", dev.ID, "command_id", cmd.ID, "ref_id", cmd.RefID, "error", dispatchErr)
	}

	entry, err := e.recorder.Record(ctx, dev.OwnerID, cmd.ID, dev.ID, result.Success, result.ErrorMessage)
	if err != nil {
		e.logger.Error("execution attempt not recorded",
			"device_id", dev.ID, "command_id", cmd.ID, "success", result.Success, "error", err)
		errs = append(errs, err)
	} else {
		result.LogID = entry.ID
	}

	duration := time.Since(started)
	if e.metrics != nil {
		e.metrics.RecordExecution(dev.ID, cmd.ID, string(cmd.Action), result.Success, duration)
	}

	e.logger.Info("command executed",
		"device_id", dev.ID,
		"command_id", cmd.ID,
		"action", cmd.Action,
		"success", result.Success,
		"duration_ms", duration.Milliseconds(),
	)

	return result, errors.Join(errs...)
}
