package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/config"
)

// testConfig returns a configuration for a local broker. Nothing in this
// file connects to it; see integration_test.go.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "vimqa-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestBrokerURL(t *testing.T) {
	cfg := testConfig()
	if got := brokerURL(cfg); got != "tcp://127.0.0.1:1883" {
		t.Errorf("brokerURL() = %q", got)
	}
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	if got := brokerURL(cfg); got != "ssl://127.0.0.1:8883" {
		t.Errorf("brokerURL(tls) = %q", got)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "vimqa-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if !opts.CleanSession || !opts.AutoReconnect || !opts.ConnectRetry {
		t.Error("expected clean session with auto-reconnect")
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want none for anonymous config", opts.Username)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS enabled")
	}

	cfg.Auth = config.MQTTAuthConfig{Username: "qa", Password: "pw"}
	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Username != "qa" || opts.Password != "pw" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v, want TLS 1.2 minimum", opts.TLSConfig)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "vimqa-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("expected a retained will")
	}
	if opts.WillTopic != "vimqa/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if opts.WillQos != 1 {
		t.Errorf("WillQos = %d, want 1", opts.WillQos)
	}

	var will statusMessage
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("WillPayload %q: %v", opts.WillPayload, err)
	}
	if will.Status != statusOffline || will.Reason != reasonConnection || will.ClientID != "vimqa-test" {
		t.Errorf("will = %+v", will)
	}
}

func TestStatusPayload(t *testing.T) {
	tests := []struct {
		name   string
		status string
		reason string
		want   string
	}{
		{"online has no reason", statusOnline, "", `"status":"online"`},
		{"shutdown", statusOffline, reasonShutdown, `"reason":"graceful_shutdown"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := statusPayload("vimqa-core", tt.status, tt.reason)
			if !strings.Contains(string(payload), tt.want) {
				t.Errorf("payload = %s, want it to contain %s", payload, tt.want)
			}
			var msg statusMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if msg.ClientID != "vimqa-core" {
				t.Errorf("client_id = %q", msg.ClientID)
			}
			if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
				t.Errorf("timestamp %q: %v", msg.Timestamp, err)
			}
			if tt.reason == "" && strings.Contains(string(payload), "reason") {
				t.Errorf("payload = %s, want no reason", payload)
			}
		})
	}
}

// fakeToken completes immediately with err, or never when pending.
type fakeToken struct {
	pending bool
	err     error
}

func (t fakeToken) Wait() bool                     { return !t.pending }
func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}
func (t fakeToken) Error() error { return t.err }

func TestAwait(t *testing.T) {
	brokerErr := errors.New("not authorized")
	tests := []struct {
		name    string
		token   fakeToken
		wantErr error
		wantMsg string
	}{
		{"acknowledged", fakeToken{}, nil, ""},
		{"timed out", fakeToken{pending: true}, ErrSubscribeFailed, "timeout after 1s"},
		{"refused", fakeToken{err: brokerErr}, brokerErr, "not authorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := await(tt.token, ErrSubscribeFailed, time.Second)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("await() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrSubscribeFailed) {
				t.Errorf("await() error = %v, want %v wrapped in ErrSubscribeFailed", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("await() error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"change", Topics{Prefix: "vimqa/data"}.Change("modules", "insert"), "vimqa/data/modules/insert"},
		{"zero value prefix", Topics{}.Change("testcases", "delete"), "vimqa/data/testcases/delete"},
		{"trailing slash", Topics{Prefix: "lab/qa/"}.Change("dvrs", "update"), "lab/qa/dvrs/update"},
		{"table pattern", Topics{}.TableChanges("tests"), "vimqa/data/tests/+"},
		{"all changes", Topics{Prefix: "lab"}.AllChanges(), "lab/#"},
		{"status", Topics{Prefix: "lab"}.SystemStatus(), "vimqa/system/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopics_ParseChange(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		topic     string
		table, op string
		ok        bool
	}{
		{"vimqa/data/modules/insert", "modules", "insert", true},
		{"vimqa/data/modules", "", "", false},
		{"vimqa/data/modules/insert/extra", "", "", false},
		{"other/modules/insert", "", "", false},
		{"vimqa/data//insert", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			table, op, ok := topics.ParseChange(tt.topic)
			if table != tt.table || op != tt.op || ok != tt.ok {
				t.Errorf("ParseChange() = %q, %q, %v, want %q, %q, %v", table, op, ok, tt.table, tt.op, tt.ok)
			}
		})
	}
}

func TestClient_Disconnected(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("t", nil, 3, false), ErrInvalidQoS},
		{"publish oversized", c.Publish("t", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", c.Publish("t", []byte("{}"), 1, false), ErrNotConnected},
		{"subscribe empty topic", c.Subscribe("", 1, noop), ErrInvalidTopic},
		{"subscribe bad qos", c.Subscribe("t", 3, noop), ErrInvalidQoS},
		{"subscribe nil handler", c.Subscribe("t", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("t", 1, noop), ErrNotConnected},
		{"unsubscribe empty topic", c.Unsubscribe(""), ErrInvalidTopic},
		{"unsubscribe disconnected", c.Unsubscribe("t"), ErrNotConnected},
		{"health check", c.HealthCheck(context.Background()), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if got := c.Subscriptions(); len(got) != 0 {
		t.Error("failed subscribe left a tracked subscription")
	}
}

func TestClient_HealthCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (&Client{}).HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestClient_CloseNeverConnected(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu       sync.Mutex
	errors   []string
	warns    []string
	lastArgs []any
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
	l.lastArgs = args
}

func TestWrapHandler(t *testing.T) {
	c := &Client{}
	logger := &recordingLogger{}
	c.SetLogger(logger)
	msg := fakeMessage{topic: "vimqa/data/modules/insert", payload: []byte(`{}`)}

	var got string
	c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + " " + string(payload)
		return nil
	})(nil, msg)
	if got != "vimqa/data/modules/insert {}" {
		t.Errorf("handler saw %q", got)
	}

	c.wrapHandler(func(string, []byte) error {
		return fmt.Errorf("bad payload")
	})(nil, msg)
	c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, msg)

	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one for the handler error", logger.warns)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one for the recovered panic", logger.errors)
	}
}

func TestWrapHandler_LabelsChangeTopics(t *testing.T) {
	c := &Client{}
	logger := &recordingLogger{}
	c.SetLogger(logger)
	c.SetChangeTopics(Topics{Prefix: "lab/qa"})

	fail := c.wrapHandler(func(string, []byte) error { return fmt.Errorf("bad payload") })
	fail(nil, fakeMessage{topic: "lab/qa/testcases/update"})

	want := []any{"topic", "lab/qa/testcases/update", "table", "testcases", "op", "update"}
	if len(logger.lastArgs) < len(want) {
		t.Fatalf("log args = %v, want prefix %v", logger.lastArgs, want)
	}
	for i, v := range want {
		if logger.lastArgs[i] != v {
			t.Errorf("log arg %d = %v, want %v", i, logger.lastArgs[i], v)
		}
	}

	fail(nil, fakeMessage{topic: "vimqa/system/status"})
	if len(logger.lastArgs) != 4 {
		t.Errorf("non-change topic log args = %v, want topic and error only", logger.lastArgs)
	}
}
