// Package notify delivers journey-start notices to members who are not
// currently connected. Delivery is best-effort: a journey start must never
// fail because the notification pipeline is down.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Notice is the payload published for each recipient of a journey start.
type Notice struct {
	GroupJourneyID string    `json:"group_journey_id"`
	GroupID        string    `json:"group_id"`
	GroupName      string    `json:"group_name"`
	StartedBy      string    `json:"started_by"`
	StartedByName  string    `json:"started_by_name"`
	StartedAt      time.Time `json:"started_at"`
}

// Notifier fans a journey-start notice out to a set of recipients.
type Notifier interface {
	JourneyStarted(ctx context.Context, recipients []string, notice Notice)
	Close() error
}

// KafkaNotifier publishes one message per recipient, keyed by user ID so a
// downstream push consumer sees each user's notices in order.
type KafkaNotifier struct {
	writer       *kafka.Writer
	writeTimeout time.Duration
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		writeTimeout: 5 * time.Second,
	}
}

func (n *KafkaNotifier) JourneyStarted(ctx context.Context, recipients []string, notice Notice) {
	if len(recipients) == 0 {
		return
	}

	value, err := json.Marshal(notice)
	if err != nil {
		slog.Warn("Failed to encode journey notice", "error", err)
		return
	}

	msgs := make([]kafka.Message, 0, len(recipients))
	for _, userID := range recipients {
		msgs = append(msgs, kafka.Message{
			Key:   []byte(userID),
			Value: value,
			Time:  notice.StartedAt,
		})
	}

	writeCtx, cancel := context.WithTimeout(ctx, n.writeTimeout)
	defer cancel()

	if err := n.writer.WriteMessages(writeCtx, msgs...); err != nil {
		slog.Warn("Failed to publish journey notices",
			"group_journey_id", notice.GroupJourneyID,
			"recipients", len(recipients),
			"error", err)
	}
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// NoopNotifier is used when notifications are disabled.
type NoopNotifier struct{}

func (NoopNotifier) JourneyStarted(context.Context, []string, Notice) {}
func (NoopNotifier) Close() error                                     { return nil }
