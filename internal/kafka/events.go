package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const eventVersion = 1

type publisher interface {
	Publish(ctx context.Context, m kafka.Message) error
}

// EventPublisher wraps domain events in the shared envelope and queues them
// keyed by order id.
type EventPublisher struct {
	Producer    publisher
	ServiceName string
	Now         func() time.Time
}

func (p *EventPublisher) Publish(ctx context.Context, ev orders.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if p.Now != nil {
		now = p.Now()
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  eventVersion,
		OccurredAt:    now,
		Producer:      p.ServiceName,
		TraceID:       ev.TraceID,
		CorrelationID: ev.OrderID,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.Producer.Publish(ctx, kafka.Message{
		Topic: ev.Topic,
		Key:   orders.PartitionKey(ev.OrderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(ev.Type)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
		},
	})
}
