package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-events/internal/logger"
	"ms-events/internal/models"
)

const DefaultTopicPrefix = "sports.events"

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Prefix string
	Logger *logger.Logger
}

// NewProducer builds a producer that routes each message by its own topic.
func NewProducer(brokers []string, prefix string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, prefix, log)
}

func NewProducerWithWriter(writer MessageWriter, prefix string, log *logger.Logger) *Producer {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Producer{Writer: writer, Prefix: prefix, Logger: log}
}

func (p *Producer) TopicCreated() string { return p.Prefix + ".created" }
func (p *Producer) TopicUpdated() string { return p.Prefix + ".updated" }
func (p *Producer) TopicDeleted() string { return p.Prefix + ".deleted" }

// Topics lists every topic the producer writes to.
func (p *Producer) Topics() []string {
	return []string{p.TopicCreated(), p.TopicUpdated(), p.TopicDeleted()}
}

func (p *Producer) PublishEventCreated(ctx context.Context, event models.EventView) error {
	return p.publish(ctx, p.TopicCreated(), event.ID, event)
}

func (p *Producer) PublishEventUpdated(ctx context.Context, event models.EventView) error {
	return p.publish(ctx, p.TopicUpdated(), event.ID, event)
}

func (p *Producer) PublishEventDeleted(ctx context.Context, id int64) error {
	return p.publish(ctx, p.TopicDeleted(), id, models.EventDeleted{ID: id})
}

func (p *Producer) publish(ctx context.Context, topic string, id int64, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(id, 10)),
		Value: value,
	})
	if err != nil {
		p.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish to %s: %v", topic, err))
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("event %d", id))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
