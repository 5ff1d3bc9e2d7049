package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ms-events/internal/logger"
)

// EnsureTopicsExist creates the given topics on the cluster controller.
// Topics that already exist are skipped.
func EnsureTopicsExist(ctx context.Context, brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if log == nil {
		log = logger.Discard()
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker %s: %w", brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	existing, err := ListTopics(ctx, brokers)
	if err != nil {
		return err
	}

	for _, topic := range missingTopics(topics, existing) {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
			log.Error("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
			continue
		}
		log.LogKafka("CREATE_TOPIC", topic, "topic ready")
	}
	return nil
}

// ListTopics returns the distinct topics known to the first broker.
func ListTopics(ctx context.Context, brokers []string) ([]string, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka broker %s: %w", brokers[0], err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return nil, fmt.Errorf("failed to read partitions: %w", err)
	}

	seen := make(map[string]bool)
	var topics []string
	for _, p := range partitions {
		if !seen[p.Topic] {
			seen[p.Topic] = true
			topics = append(topics, p.Topic)
		}
	}
	return topics, nil
}

func missingTopics(wanted, existing []string) []string {
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t] = true
	}
	var missing []string
	for _, t := range wanted {
		if !have[t] {
			missing = append(missing, t)
			have[t] = true
		}
	}
	return missing
}
