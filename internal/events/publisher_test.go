package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/vimqa-core/internal/schema"
	"github.com/nerrad567/vimqa-core/internal/table"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakeClient struct {
	messages []published
	err      error
}

func (c *fakeClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, published{topic, payload, qos, retained})
	return nil
}

type countingLogger struct {
	warns int
}

func (l *countingLogger) Debug(string, ...any) {}
func (l *countingLogger) Warn(string, ...any)  { l.warns++ }

func TestPublisher_Changed(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisher(client, mqtt.Topics{Prefix: "lab/qa"}, 1)
	pub.newID = func() string { return "evt-1" }

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("BST", 3600))
	pub.Changed(context.Background(), table.Change{
		Op:           table.OpUpdate,
		Table:        "dvrs",
		RowID:        4,
		Fields:       map[string]any{"firmware": "1.0.0", "password": "hunter2"},
		RowsAffected: 1,
		Timestamp:    at,
	})

	if len(client.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.messages))
	}
	msg := client.messages[0]
	if msg.topic != "lab/qa/dvrs/update" {
		t.Errorf("topic = %q", msg.topic)
	}
	if msg.qos != 1 || msg.retained {
		t.Errorf("qos = %d, retained = %v, want 1, false", msg.qos, msg.retained)
	}

	event, err := Decode(msg.payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if event.ID != "evt-1" || event.Op != table.OpUpdate || event.Table != "dvrs" || event.RowID != 4 {
		t.Errorf("event = %+v", event)
	}
	if event.Fields["firmware"] != "1.0.0" {
		t.Errorf("fields = %v", event.Fields)
	}
	if _, ok := event.Fields["password"]; ok {
		t.Error("password published in event fields")
	}
	if !event.Timestamp.Equal(at) || event.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp = %v, want %v in UTC", event.Timestamp, at)
	}
}

func TestPublisher_RenamedSecretColumn(t *testing.T) {
	mapping, err := schema.Parse([]byte(`
tables:
  dvr:
    table: tbl_dvr
    fields:
      id: DvrID
      name: Label
      password: Secret
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	client := &fakeClient{}
	pub := NewPublisher(client, mqtt.Topics{}, 1)
	pub.SetMapping(mapping)

	pub.Changed(context.Background(), table.Change{
		Op:           table.OpUpdate,
		Table:        "tbl_dvr",
		RowID:        2,
		Fields:       map[string]any{"Label": "Yard", "Secret": "hunter2"},
		RowsAffected: 1,
	})

	event, err := Decode(client.messages[0].payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, ok := event.Fields["Secret"]; ok {
		t.Errorf("fields = %v, want the mapped password column left out", event.Fields)
	}
	if event.Fields["Label"] != "Yard" {
		t.Errorf("fields = %v, want Label kept", event.Fields)
	}
}

func TestPublisher_DefaultIDs(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisher(client, mqtt.Topics{}, 0)

	for range 2 {
		pub.Changed(context.Background(), table.Change{Op: table.OpInsert, Table: "modules", RowID: 1, RowsAffected: 1})
	}

	a, _ := Decode(client.messages[0].payload)
	b, _ := Decode(client.messages[1].payload)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("event ids %q and %q, want distinct", a.ID, b.ID)
	}
	if client.messages[0].topic != "vimqa/data/modules/insert" {
		t.Errorf("topic = %q", client.messages[0].topic)
	}
}

func TestPublisher_FailureIsLogged(t *testing.T) {
	client := &fakeClient{err: mqtt.ErrNotConnected}
	logger := &countingLogger{}
	pub := NewPublisher(client, mqtt.Topics{}, 1)
	pub.SetLogger(logger)

	pub.Changed(context.Background(), table.Change{Op: table.OpDelete, Table: "tests", RowsAffected: 3})

	if logger.warns != 1 {
		t.Errorf("warnings = %d, want 1", logger.warns)
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, payload := range []string{
		`not json`,
		`{}`,
		`{"id":"x","op":"insert"}`,
	} {
		if _, err := Decode([]byte(payload)); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("Decode(%s) error = %v, want ErrInvalidEvent", payload, err)
		}
	}
}
