package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/climate-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "climatecore-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"SensorReading", topics.SensorReading("D4"), "climate/sensor/D4/reading"},
		{"AllSensorReadings", topics.AllSensorReadings(), "climate/sensor/+/reading"},
		{"ActuatorSet", topics.ActuatorSet(17), "climate/actuator/17/set"},
		{"UnitSample", topics.UnitSample(3), "climate/unit/3/sample"},
		{"UnitAlert", topics.UnitAlert(3), "climate/alert/unit/3"},
		{"Notification", topics.Notification(3), "climate/notify/unit/3"},
		{"SystemStatus", topics.SystemStatus(), "climate/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestParseSensorReading(t *testing.T) {
	tests := []struct {
		topic   string
		wantPin string
		wantOk  bool
	}{
		{"climate/sensor/D4/reading", "D4", true},
		{"climate/sensor/SDA/reading", "SDA", true},
		{"climate/sensor//reading", "", false},
		{"climate/sensor/D4/state", "", false},
		{"other/sensor/D4/reading", "", false},
		{"climate/sensor/D4/reading/extra", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			pin, ok := Topics{}.ParseSensorReading(tt.topic)
			if ok != tt.wantOk || pin != tt.wantPin {
				t.Errorf("ParseSensorReading(%q) = (%q, %v), want (%q, %v)", tt.topic, pin, ok, tt.wantPin, tt.wantOk)
			}
		})
	}
}

func TestParseActuatorSet(t *testing.T) {
	gpio, ok := Topics{}.ParseActuatorSet(Topics{}.ActuatorSet(22))
	if !ok || gpio != 22 {
		t.Errorf("ParseActuatorSet() = (%d, %v), want (22, true)", gpio, ok)
	}
	if _, ok := (Topics{}).ParseActuatorSet("climate/actuator/x/set"); ok {
		t.Error("ParseActuatorSet() accepted a non-numeric gpio")
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "core"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "climatecore-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "core" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.WillEnabled || opts.WillTopic != "climate/system/status" || !opts.WillRetained {
		t.Errorf("LWT = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if !strings.Contains(string(opts.WillPayload), `"unexpected_disconnect"`) {
		t.Errorf("WillPayload = %s", opts.WillPayload)
	}
	if opts.TLSConfig != nil && cfg.Broker.TLS {
		t.Error("TLS config set without broker.tls")
	}
}

func TestBrokerURL_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	if got := brokerURL(cfg); got != "ssl://127.0.0.1:8883" {
		t.Errorf("brokerURL() = %q, want ssl://127.0.0.1:8883", got)
	}
}

func TestStatusPayload(t *testing.T) {
	var msg statusMessage
	if err := json.Unmarshal([]byte(statusPayload("core-1", "offline", "graceful_shutdown")), &msg); err != nil {
		t.Fatalf("statusPayload() is not JSON: %v", err)
	}
	if msg.Status != "offline" || msg.ClientID != "core-1" || msg.Reason != "graceful_shutdown" || msg.Timestamp == "" {
		t.Errorf("statusPayload() = %+v", msg)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
	ctx := context.Background()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "climate/x", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "climate/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "climate/x", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(ctx, tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishJSON_EncodingError(t *testing.T) {
	c := &Client{cfg: testConfig()}

	err := c.PublishJSON(context.Background(), "climate/x", make(chan int), false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v", err)
	}
	if err := c.Subscribe("a", 5, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 5) error = %v", err)
	}
	if err := c.Subscribe("a", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}
	if err := c.Subscribe("a", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := &Client{}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestClose_NeverConnected(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestDeliver_RecoversAndLogs(t *testing.T) {
	logger := &mockLogger{}
	c := &Client{}
	c.SetLogger(logger)

	c.deliver(func(string, []byte) error { panic("boom") }, "climate/x", nil)
	c.deliver(func(string, []byte) error { return errors.New("bad payload") }, "climate/x", nil)
	c.deliver(func(string, []byte) error { return nil }, "climate/x", nil)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) != 1 {
		t.Errorf("error logs = %d, want 1 (panic)", len(logger.errors))
	}
	if len(logger.warns) != 1 {
		t.Errorf("warn logs = %d, want 1 (handler error)", len(logger.warns))
	}
}
