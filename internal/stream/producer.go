package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Message is one record bound for the event stream.
type Message struct {
	Topic   string
	Key     string
	Value   interface{}
	Headers map[string]string
}

// Publisher fan-outs ingested analytics events to downstream consumers.
// Publishing is best-effort: callers must never fail a request because the
// stream is unavailable.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// ProducerConfig contains configuration for the Kafka publisher.
type ProducerConfig struct {
	Brokers         []string
	RetryMax        int
	TimeoutMs       int
	RequiredAcks    sarama.RequiredAcks
	CompressionType sarama.CompressionCodec
	MaxMessageBytes int
}

// DefaultProducerConfig returns a default publisher configuration.
func DefaultProducerConfig(brokers []string) *ProducerConfig {
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	return &ProducerConfig{
		Brokers:         brokers,
		RetryMax:        3,
		TimeoutMs:       10000,
		RequiredAcks:    sarama.WaitForLocal,
		CompressionType: sarama.CompressionSnappy,
		MaxMessageBytes: 1000000, // 1MB
	}
}

// KafkaPublisher publishes stream messages through a sarama sync producer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	config   *ProducerConfig
}

// NewKafkaPublisher creates a Kafka-backed publisher.
func NewKafkaPublisher(config *ProducerConfig) (Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes

	// Hash partitioner keeps all events for one session/user on one partition
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &KafkaPublisher{producer: producer, config: config}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal stream message: %w", err)
	}

	headers := make([]sarama.RecordHeader, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	record := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Key:       sarama.StringEncoder(msg.Key),
		Value:     sarama.ByteEncoder(payload),
		Headers:   headers,
		Timestamp: time.Now(),
	}

	if _, _, err := p.producer.SendMessage(record); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", msg.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) HealthCheck(ctx context.Context) error {
	// SyncProducer keeps broker connections alive internally; a closed
	// producer is the only unhealthy state we can observe here.
	if p.producer == nil {
		return fmt.Errorf("kafka producer is not initialized")
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

// NoopPublisher discards all messages. Used when the stream is disabled.
type NoopPublisher struct{}

func NewNoopPublisher() Publisher {
	return &NoopPublisher{}
}

func (NoopPublisher) Publish(ctx context.Context, msg Message) error { return nil }
func (NoopPublisher) HealthCheck(ctx context.Context) error          { return nil }
func (NoopPublisher) Close() error                                   { return nil }
