package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// Producer publishes JSON events, keeping one writer per topic.
type Producer struct {
	brokers []string
	async   bool
	log     *logger.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// ProducerConfig holds producer configuration.
type ProducerConfig struct {
	Brokers []string
	Async   bool
}

func NewProducer(cfg ProducerConfig) *Producer {
	return &Producer{
		brokers: cfg.Brokers,
		async:   cfg.Async,
		writers: make(map[string]*kafka.Writer),
		log:     logger.Get().With("component", "kafka_producer"),
	}
}

func (p *Producer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:     kafka.TCP(p.brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
		Async:    p.async,
	}
	p.writers[topic] = w
	return w
}

// Publish marshals the event and writes it under the given key.
func (p *Producer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "marshal event for %s", topic)
	}

	msg := kafka.Message{Key: []byte(key), Value: data}
	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		p.log.Errorf("Failed to publish to %s: %v", topic, err)
		return err
	}

	p.log.Debugf("Published to %s: %s", topic, key)
	return nil
}

// PublishBatch writes pre-built messages in one call.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []kafka.Message) error {
	if err := p.writer(topic).WriteMessages(ctx, messages...); err != nil {
		p.log.Errorf("Failed to publish batch to %s: %v", topic, err)
		return err
	}

	p.log.Debugf("Published %d messages to %s", len(messages), topic)
	return nil
}

// Close shuts down every topic writer, collecting failures rather than
// stopping at the first one.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var merr errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			p.log.Errorf("Failed to close writer for %s: %v", topic, err)
			merr.Add(err)
		}
	}
	return merr.ToError()
}
