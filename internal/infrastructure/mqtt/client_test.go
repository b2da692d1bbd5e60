package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/pinctl-core/internal/infrastructure/config"
)

const testBrokerAddr = "127.0.0.1:1883"

// testConfig returns a configuration for the local test broker.
func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// requireBroker skips the test when no broker listens on testBrokerAddr.
func requireBroker(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", testBrokerAddr, 500*time.Millisecond)
	if err != nil {
		t.Skipf("MQTT broker not available at %s: %v", testBrokerAddr, err)
	}
	conn.Close()
}

// offlineClient is a Client that never connected.
func offlineClient() *Client {
	return &Client{subscriptions: make(map[string]subscription)}
}

// =============================================================================
// Offline Tests
// =============================================================================

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"command", Topics{}.Command("LED_ON_01"), "pinctl/command/LED_ON_01"},
		{"response", Topics{}.Response("req-1"), "pinctl/response/req-1"},
		{"status", Topics{}.SystemStatus(), "pinctl/system/status"},
		{"custom prefix", Topics{Prefix: "lab"}.Command("X"), "lab/command/X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig("pinctl-test")
	cfg.Auth.Username = "core"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "pinctl-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "core" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("expected clean session with auto-reconnect")
	}
	if opts.TLSConfig != nil {
		t.Error("TLS should be off without broker.tls")
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config should enforce the minimum version")
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var got statusPayload
	if err := json.Unmarshal(buildStatusPayload("core-1", "offline", "graceful_shutdown"), &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Status != "offline" || got.ClientID != "core-1" || got.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", got)
	}
	if _, err := time.Parse(time.RFC3339, got.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", got.Timestamp, err)
	}

	if strings.Contains(string(buildStatusPayload("core-1", "online", "")), "reason") {
		t.Error("empty reason should be omitted")
	}
}

func TestPublish_Validation(t *testing.T) {
	c := offlineClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"bad qos", "pinctl/x", []byte("x"), 3, ErrInvalidQoS},
		{"too large", "pinctl/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "pinctl/x", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := offlineClient()
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v", err)
	}
	if err := c.Subscribe("pinctl/x", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v", err)
	}
	if err := c.Subscribe("pinctl/x", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}
	if err := c.Subscribe("pinctl/x", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(offline) error = %v", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Error("failed subscriptions must not be tracked")
	}
	if err := c.Unsubscribe("pinctl/x"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe(offline) error = %v", err)
	}
}

func TestOfflineClient(t *testing.T) {
	c := offlineClient()
	if c.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want %v", err, ErrNotConnected)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

// =============================================================================
// Broker Tests
// =============================================================================

func TestConnect(t *testing.T) {
	requireBroker(t)

	client, err := Connect(testConfig("pinctl-test-connect"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	requireBroker(t)

	sub, err := Connect(testConfig("pinctl-test-sub"))
	if err != nil {
		t.Fatalf("Connect(sub) error = %v", err)
	}
	defer sub.Close()

	pub, err := Connect(testConfig("pinctl-test-pub"))
	if err != nil {
		t.Fatalf("Connect(pub) error = %v", err)
	}
	defer pub.Close()

	topic := Topics{Prefix: "pinctl-test"}.Response("roundtrip")
	received := make(chan string, 1)
	var once sync.Once

	err = sub.Subscribe(topic, 1, func(_ string, payload []byte) error {
		once.Do(func() { received <- string(payload) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !sub.HasSubscription(topic) {
		t.Error("subscription should be tracked")
	}

	if err := pub.Publish(topic, []byte(`{"ok":true}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != `{"ok":true}` {
			t.Errorf("payload = %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	if err := sub.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if sub.HasSubscription(topic) {
		t.Error("subscription should be forgotten after Unsubscribe")
	}
}
