package mqtt

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/sqliteop/internal/infrastructure/database"
)

// asyncPublisher is the part of Client the Publisher needs.
type asyncPublisher interface {
	PublishAsync(topic string, payload []byte, qos byte, retained bool) error
}

// Publisher is a database.Observer that announces operator calls on MQTT.
//
// Successful mutating calls go to {prefix}/{database}/changes/{operation}.
// Failed calls of any kind go to {prefix}/{database}/errors/{operation}.
// Successful reads are not published.
//
// Publishing never waits on the broker, so the operator call that produced
// the event is not slowed by network round trips.
type Publisher struct {
	client asyncPublisher
	topics Topics
	qos    byte
	logger Logger
}

// NewPublisher creates a Publisher sending through client.
func NewPublisher(client *Client, logger Logger) *Publisher {
	return &Publisher{
		client: client,
		topics: client.Topics(),
		qos:    client.QoS(),
		logger: logger,
	}
}

// ObserveOperation implements database.Observer.
func (p *Publisher) ObserveOperation(_ context.Context, ev database.Event) {
	var topic string
	switch {
	case !ev.Succeeded():
		topic = p.topics.Errors(ev.Database, string(ev.Operation))
	case ev.Operation.Mutates():
		topic = p.topics.Changes(ev.Database, string(ev.Operation))
	default:
		return
	}

	payload, err := json.Marshal(ev.Payload())
	if err != nil {
		p.warn("encoding change event", err, ev)
		return
	}

	if err := p.client.PublishAsync(topic, payload, p.qos, false); err != nil {
		p.warn("publishing change event", err, ev)
	}
}

func (p *Publisher) warn(msg string, err error, ev database.Event) {
	if p.logger == nil {
		return
	}
	p.logger.Warn(msg,
		"event_id", ev.ID,
		"operation", ev.Operation,
		"error", err,
	)
}
