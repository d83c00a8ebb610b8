package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is the message published for downstream consumers (SMS workers,
// display boards).
type Event struct {
	Contact string    `json:"contact"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// KafkaNotifier publishes notification events to a topic instead of
// delivering them directly.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(broker, topic string) *KafkaNotifier {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      []string{broker},
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: int(kafka.RequireOne),
	})
	return &KafkaNotifier{writer: writer}
}

func (n *KafkaNotifier) Send(ctx context.Context, contact, message string) error {
	value, err := json.Marshal(Event{
		Contact: contact,
		Message: message,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// contact as key keeps one patient's events in order
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(contact),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
