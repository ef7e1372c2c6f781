package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/vimqa-core/internal/schema"
	"github.com/nerrad567/vimqa-core/internal/table"
)

// ErrInvalidEvent is returned by Decode for payloads that are not change events.
var ErrInvalidEvent = errors.New("events: invalid change event")

// MQTTClient is the part of the MQTT client the Publisher needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Event is the JSON body published for each change.
type Event struct {
	ID           string         `json:"id"`
	Op           table.Op       `json:"op"`
	Table        string         `json:"table"`
	RowID        int64          `json:"row_id,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
	RowsAffected int64          `json:"rows_affected"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Publisher publishes table changes to MQTT. It satisfies table.Observer.
//
// Events go to {prefix}/{table}/{op}, unretained. A failed publish is
// logged and dropped; it never fails the write that caused it. Secret
// columns are left out of event fields.
type Publisher struct {
	client MQTTClient
	topics mqtt.Topics
	qos    byte
	logger Logger

	// mapping resolves each table's secret columns. nil falls back to the
	// logical secret names.
	mapping *schema.Mapping

	// newID is replaced in tests.
	newID func() string
}

// NewPublisher creates a publisher on topics with the given QoS.
func NewPublisher(client MQTTClient, topics mqtt.Topics, qos byte) *Publisher {
	return &Publisher{
		client: client,
		topics: topics,
		qos:    qos,
		logger: noopLogger{},
		newID:  uuid.NewString,
	}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// SetMapping sets the schema mapping used to find the secret columns
// left out of event fields.
func (p *Publisher) SetMapping(m *schema.Mapping) {
	p.mapping = m
}

// Changed publishes change.
func (p *Publisher) Changed(_ context.Context, change table.Change) {
	event := Event{
		ID:           p.newID(),
		Op:           change.Op,
		Table:        change.Table,
		RowID:        change.RowID,
		Fields:       p.eventFields(change.Table, change.Fields),
		RowsAffected: change.RowsAffected,
		Timestamp:    change.Timestamp.UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("encoding change event", "table", change.Table, "op", change.Op, "error", err)
		return
	}

	topic := p.topics.Change(change.Table, string(change.Op))
	if err := p.client.Publish(topic, payload, p.qos, false); err != nil {
		p.logger.Warn("publishing change event", "topic", topic, "error", err)
		return
	}

	p.logger.Debug("change event published",
		"event_id", event.ID,
		"topic", topic,
		"row_id", event.RowID,
	)
}

// eventFields copies fields of the physical table without its secret columns.
func (p *Publisher) eventFields(physical string, fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	def := schema.Table{Name: physical}
	if p.mapping != nil {
		if t, ok := p.mapping.Table(physical); ok {
			def = t
		}
	}
	secret := def.SecretColumns()

	out := make(map[string]any, len(fields))
	for col, v := range fields {
		if !slices.Contains(secret, col) {
			out[col] = v
		}
	}
	return out
}

// Decode parses a change event payload.
func Decode(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if event.ID == "" || event.Table == "" || event.Op == "" {
		return Event{}, fmt.Errorf("%w: missing id, table, or op", ErrInvalidEvent)
	}
	return event, nil
}
