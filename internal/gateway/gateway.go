// Package gateway sends command dispatches to the remote device gateway.
//
// Two transports implement Dispatcher: HTTPClient posts to the gateway's
// /execute-command endpoint and MQTTDispatcher publishes on the broker and
// waits for a reply. Every failure mode (transport error, timeout, non-2xx
// status, error payload) surfaces as a *DispatchError whose Message is the
// text recorded in the audit trail.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/pinctl-core/internal/infrastructure/config"
)

// GenericFailureMessage is used when a failure carries no gateway error text.
const GenericFailureMessage = "failed to execute command"

// Errors returned by New.
var (
	ErrUnknownTransport = errors.New("gateway: unknown transport")
	ErrBrokerRequired   = errors.New("gateway: mqtt transport requires a broker connection")
)

// Request identifies the command the gateway should run.
type Request struct {
	CommandID string `json:"command_id"`
	RefID     string `json:"ref_id"`
}

// Dispatcher delivers a Request to the device gateway. A nil error means the
// gateway acknowledged the command.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
}

// DispatchError describes a failed dispatch. StatusCode is zero when no
// HTTP response was received.
type DispatchError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *DispatchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("gateway: status %d: %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("gateway: %s: %v", e.Message, e.Err)
	default:
		return "gateway: " + e.Message
	}
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// FailureMessage returns the human-readable text for a dispatch failure:
// the gateway's own error text when it sent one, otherwise
// GenericFailureMessage.
func FailureMessage(err error) string {
	var de *DispatchError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return GenericFailureMessage
}

// failure builds a DispatchError, falling back to the generic message.
func failure(status int, message string, err error) *DispatchError {
	if message == "" {
		message = GenericFailureMessage
	}
	return &DispatchError{StatusCode: status, Message: message, Err: err}
}

// Logger interface for gateway logging.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// New builds the Dispatcher selected by cfg.Transport. messenger is only
// used by the mqtt transport and may be nil otherwise. logger may be nil.
func New(cfg config.GatewayConfig, messenger Messenger, qos byte, logger Logger) (Dispatcher, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	switch cfg.Transport {
	case "", config.GatewayTransportHTTP:
		c := NewHTTPClient(cfg)
		c.SetLogger(logger)
		return c, nil
	case config.GatewayTransportMQTT:
		if messenger == nil {
			return nil, ErrBrokerRequired
		}
		d := NewMQTTDispatcher(messenger, cfg, qos)
		d.SetLogger(logger)
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
}
