package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sqliteop/internal/infrastructure/config"
	"github.com/nerrad567/sqliteop/internal/infrastructure/database"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "sqliteop-test",
		},
		QoS:         1,
		TopicPrefix: "sqliteop-test",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "sqliteop"}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"SystemStatus", topics.SystemStatus(), "sqliteop/system/status"},
		{"Changes", topics.Changes("app.db", "execute_query"), "sqliteop/app.db/changes/execute_query"},
		{"Errors", topics.Errors("app.db", "select_query"), "sqliteop/app.db/errors/select_query"},
		{"DatabaseChanges", topics.DatabaseChanges("app.db"), "sqliteop/app.db/changes/+"},
		{"AllChanges", topics.AllChanges(), "sqliteop/+/changes/+"},
		{"AllErrors", topics.AllErrors(), "sqliteop/+/errors/+"},
		{"AllTopics", topics.AllTopics(), "sqliteop/#"},
		{"DefaultPrefix", Topics{}.SystemStatus(), "sqliteop/system/status"},
		{"CustomPrefix", Topics{Prefix: "site/a"}.Changes("x.db", "migrate"), "site/a/x.db/changes/migrate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Option and Validation Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "user", Password: "pass"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "sqliteop-test" {
		t.Errorf("ClientID = %q, want sqliteop-test", opts.ClientID)
	}
	if opts.Username != "user" || opts.Password != "pass" {
		t.Error("credentials not applied")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, Topics{Prefix: "p"}, "client-1")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != "p/system/status" {
		t.Errorf("WillTopic = %q, want p/system/status", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(opts.WillPayload), &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload["status"] != "offline" || payload["client_id"] != "client-1" {
		t.Errorf("will payload = %v", payload)
	}
}

func TestValidatePublish(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"valid", "a/b", []byte("x"), 1, nil},
		{"nil payload", "a/b", nil, 0, nil},
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "a/b", []byte("x"), 3, ErrInvalidQoS},
		{"oversized", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePublish(tt.topic, tt.payload, tt.qos)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validatePublish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	client := &Client{}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublish_NotConnected(t *testing.T) {
	client := &Client{}

	if err := client.Publish("a/b", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := client.PublishAsync("a/b", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishAsync() error = %v, want ErrNotConnected", err)
	}
	if err := client.PublishAsync("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("PublishAsync() error = %v, want ErrInvalidTopic", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		qos     byte
		handler MessageHandler
		topics  []string
		wantErr error
	}{
		{"no topics", 1, handler, nil, ErrInvalidTopic},
		{"empty topic among filters", 1, handler, []string{"a/b", ""}, ErrInvalidTopic},
		{"qos 3", 3, handler, []string{"a/b"}, ErrInvalidQoS},
		{"nil handler", 1, nil, []string{"a/b"}, ErrSubscribeFailed},
		{"not connected", 1, handler, []string{"a/b", "a/c"}, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.qos, tt.handler, tt.topics...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}

	if err := client.Unsubscribe(); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("a/b"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe(a/b) error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Publisher Tests
// =============================================================================

type publishedMessage struct {
	topic   string
	payload []byte
	qos     byte
}

// fakePublisher records messages instead of sending them.
type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (f *fakePublisher) PublishAsync(topic string, payload []byte, qos byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, publishedMessage{topic: topic, payload: payload, qos: qos})
	return nil
}

// warnRecorder counts Warn calls.
type warnRecorder struct {
	mu    sync.Mutex
	warns int
}

func (l *warnRecorder) Error(string, ...any) {}

func (l *warnRecorder) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func TestPublisher_ObserveOperation(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		ev        database.Event
		wantTopic string
	}{
		{
			name: "successful mutation",
			ev: database.Event{
				ID: "e1", Operation: database.OpInsertUpdateRow, Database: "app.db",
				Statement: "INSERT INTO Person VALUES (?, ?, ?, ?)", Rows: 1, At: at,
			},
			wantTopic: "sqliteop/app.db/changes/insert_update_row",
		},
		{
			name: "failed read",
			ev: database.Event{
				ID: "e2", Operation: database.OpSelectFetchAll, Database: "app.db",
				Intent: database.ReadOnly, Err: errors.New("no such table"), At: at,
			},
			wantTopic: "sqliteop/app.db/errors/select_query_fetchall",
		},
		{
			name: "successful read is skipped",
			ev: database.Event{
				ID: "e3", Operation: database.OpSelect, Database: "app.db", At: at,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakePublisher{}
			p := &Publisher{client: fake, topics: Topics{Prefix: "sqliteop"}, qos: 1}

			p.ObserveOperation(context.Background(), tt.ev)

			if tt.wantTopic == "" {
				if len(fake.messages) != 0 {
					t.Errorf("published %d messages, want 0", len(fake.messages))
				}
				return
			}
			if len(fake.messages) != 1 {
				t.Fatalf("published %d messages, want 1", len(fake.messages))
			}
			msg := fake.messages[0]
			if msg.topic != tt.wantTopic {
				t.Errorf("topic = %q, want %q", msg.topic, tt.wantTopic)
			}
			if msg.qos != 1 {
				t.Errorf("qos = %d, want 1", msg.qos)
			}

			var ce database.EventPayload
			if err := json.Unmarshal(msg.payload, &ce); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if ce.ID != tt.ev.ID || ce.Operation != string(tt.ev.Operation) {
				t.Errorf("payload = %+v, does not match event", ce)
			}
			if (tt.ev.Err != nil) != (ce.Error != "") {
				t.Errorf("payload error = %q, event error = %v", ce.Error, tt.ev.Err)
			}
		})
	}
}

func TestPublisher_PublishFailureIsLogged(t *testing.T) {
	logger := &warnRecorder{}
	p := &Publisher{
		client: &fakePublisher{err: ErrNotConnected},
		topics: Topics{},
		logger: logger,
	}

	p.ObserveOperation(context.Background(), database.Event{
		Operation: database.OpExecute,
		Database:  "app.db",
	})

	if logger.warns != 1 {
		t.Errorf("warns = %d, want 1", logger.warns)
	}
}
