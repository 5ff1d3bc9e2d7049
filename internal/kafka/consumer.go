package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"ms-events/internal/logger"
	"ms-events/internal/models"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Notification is a decoded lifecycle message.
type Notification struct {
	Topic   string
	Action  string
	EventID int64
	Event   *models.EventView
}

type Consumer struct {
	reader MessageReader
	logger *logger.Logger
}

// NewConsumer subscribes a consumer group to the lifecycle topics under prefix.
func NewConsumer(brokers []string, prefix, groupID string, log *logger.Logger) *Consumer {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: []string{prefix + ".created", prefix + ".updated", prefix + ".deleted"},
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return NewConsumerWithReader(reader, log)
}

func NewConsumerWithReader(reader MessageReader, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Discard()
	}
	return &Consumer{reader: reader, logger: log}
}

// Run reads messages until ctx is cancelled. Messages that cannot be
// decoded are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle func(Notification)) error {
	c.logger.Info("KAFKA", "Lifecycle consumer started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		n, err := Decode(msg)
		if err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Skipping message on %s: %v", msg.Topic, err))
			continue
		}
		c.logger.LogKafka("RECEIVE", msg.Topic, fmt.Sprintf("event %d", n.EventID))
		handle(n)
	}
}

// Decode turns a lifecycle message into a Notification. The action is the
// last dot-separated segment of the topic.
func Decode(msg kafka.Message) (Notification, error) {
	action := msg.Topic
	if i := strings.LastIndex(action, "."); i >= 0 {
		action = action[i+1:]
	}

	n := Notification{Topic: msg.Topic, Action: action}
	switch action {
	case "created", "updated":
		var view models.EventView
		if err := json.Unmarshal(msg.Value, &view); err != nil {
			return n, fmt.Errorf("invalid event payload: %w", err)
		}
		n.EventID = view.ID
		n.Event = &view
	case "deleted":
		var deleted models.EventDeleted
		if err := json.Unmarshal(msg.Value, &deleted); err != nil {
			return n, fmt.Errorf("invalid delete payload: %w", err)
		}
		n.EventID = deleted.ID
	default:
		return n, fmt.Errorf("unknown lifecycle topic %q", msg.Topic)
	}
	return n, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
