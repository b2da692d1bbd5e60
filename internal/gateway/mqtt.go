package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/pinctl-core/internal/infrastructure/config"
	"github.com/nerrad567/pinctl-core/internal/infrastructure/mqtt"
)

// Messenger is the broker surface MQTTDispatcher needs. *mqtt.Client
// implements it.
type Messenger interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTDispatcher publishes a dispatch on {prefix}/command/{ref_id} and waits
// for the gateway's reply on {prefix}/response/{request_id}.
type MQTTDispatcher struct {
	messenger Messenger
	topics    mqtt.Topics
	qos       byte
	timeout   time.Duration
	logger    Logger
}

// NewMQTTDispatcher creates a dispatcher over messenger. A reply must
// arrive within cfg.Timeout seconds (10 when unset).
func NewMQTTDispatcher(messenger Messenger, cfg config.GatewayConfig, qos byte) *MQTTDispatcher {
	return &MQTTDispatcher{
		messenger: messenger,
		topics:    mqtt.Topics{Prefix: cfg.TopicPrefix},
		qos:       qos,
		timeout:   cfg.DispatchTimeout(),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for dispatch events.
func (d *MQTTDispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

type mqttRequest struct {
	RequestID string `json:"request_id"`
	CommandID string `json:"command_id"`
	RefID     string `json:"ref_id"`
}

type mqttReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Dispatch subscribes to a fresh response topic, publishes the request and
// blocks until a reply, the timeout, or ctx cancellation. No reply in time
// is a failure.
func (d *MQTTDispatcher) Dispatch(ctx context.Context, req Request) error {
	requestID := uuid.NewString()
	responseTopic := d.topics.Response(requestID)

	replies := make(chan mqttReply, 1)
	err := d.messenger.Subscribe(responseTopic, d.qos, func(_ string, payload []byte) error {
		var reply mqttReply
		if err := json.Unmarshal(payload, &reply); err != nil {
			return fmt.Errorf("decoding gateway reply: %w", err)
		}
		select {
		case replies <- reply:
		default:
		}
		return nil
	})
	if err != nil {
		return failure(0, "", fmt.Errorf("subscribing to %s: %w", responseTopic, err))
	}
	defer func() {
		if err := d.messenger.Unsubscribe(responseTopic); err != nil {
			d.logger.Warn("failed to unsubscribe from response topic", "topic", responseTopic, "error", err)
		}
	}()

	payload, err := json.Marshal(mqttRequest{RequestID: requestID, CommandID: req.CommandID, RefID: req.RefID})
	if err != nil {
		return failure(0, "", fmt.Errorf("encoding request: %w", err))
	}
	if err := d.messenger.Publish(d.topics.Command(req.RefID), payload, d.qos, false); err != nil {
		d.logger.Warn("gateway publish failed", "ref_id", req.RefID, "error", err)
		return failure(0, "", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	select {
	case reply := <-replies:
		if reply.OK && strings.TrimSpace(reply.Error) == "" {
			d.logger.Debug("command dispatched", "ref_id", req.RefID, "request_id", requestID)
			return nil
		}
		message := strings.TrimSpace(reply.Error)
		d.logger.Warn("gateway reported error", "ref_id", req.RefID, "request_id", requestID, "error", message)
		return failure(0, message, nil)
	case <-ctx.Done():
		d.logger.Warn("gateway reply timed out", "ref_id", req.RefID, "request_id", requestID, "timeout", d.timeout)
		return failure(0, "", fmt.Errorf("waiting for reply on %s: %w", responseTopic, ctx.Err()))
	}
}
