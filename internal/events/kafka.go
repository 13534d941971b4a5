package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/segmentio/kafka-go"

	"marketplace-service/internal/sharding"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evts ...OrderEvent) error {
	if len(evts) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evts))
	for _, evt := range evts {
		msg, err := NewMessage(evt)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write order events: %w", err)
	}
	return nil
}

// NewMessage keys the event as "order.<type>.<sub-order id>" and tags it with
// the seller for partitioning.
func NewMessage(evt OrderEvent) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal order event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(fmt.Sprintf("order.%s.%d", evt.Type, evt.SubOrderID)),
		Value: value,
		Headers: []kafka.Header{
			{Key: sharding.SellerHeader, Value: []byte(strconv.FormatInt(evt.SellerID, 10))},
		},
	}, nil
}

// ParseMessage decodes a message written by NewMessage.
func ParseMessage(msg kafka.Message) (OrderEvent, error) {
	var evt OrderEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return evt, fmt.Errorf("unmarshal order event: %w", err)
	}
	if evt.Type == "" {
		parts := strings.Split(string(msg.Key), ".")
		if len(parts) == 3 {
			evt.Type = EventType(parts[1])
		}
	}
	return evt, nil
}
