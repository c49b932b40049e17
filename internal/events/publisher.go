package events

import (
	"context"

	"resonance/internal/adapters/kafka"
	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
	"resonance/internal/metrics"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// MessageProducer is the slice of the Kafka producer the publisher needs.
// Satisfied by *kafka.Producer.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Publisher publishes pipeline events to Kafka as JSON
type Publisher struct {
	producer MessageProducer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer MessageProducer, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log,
	}
}

// PublishScriptGenerated publishes a finalized draft to the script.generated
// topic, plus a copy on the notifications topic for the Telegram consumer.
func (p *Publisher) PublishScriptGenerated(ctx context.Context, draft *script.Draft) error {
	event := ScriptGeneratedEvent{
		Envelope: NewEnvelope(kafka.TopicScriptGenerated, "pipeline"),
		Script:   draft,
	}

	var merr errors.MultiError
	merr.Add(p.publish(ctx, kafka.TopicScriptGenerated, draft.ID.String(), event))
	merr.Add(p.publish(ctx, kafka.TopicNotifications, draft.ID.String(), event))
	return merr.ToError()
}

// PublishTrendRanked publishes a ranking to the trend.ranked topic
func (p *Publisher) PublishTrendRanked(ctx context.Context, niche string, trends []trend.RankedTrend) error {
	event := TrendRankedEvent{
		Envelope: NewEnvelope(kafka.TopicTrendRanked, "ranker"),
		Niche:    niche,
		Trends:   trends,
	}

	return p.publish(ctx, kafka.TopicTrendRanked, niche, event)
}

// publish is the generic publish method using JSON serialization
func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	err := p.producer.Publish(ctx, topic, key, event)
	metrics.RecordKafkaMessage(topic, "produced", err)

	if err != nil {
		p.log.Errorw("Failed to publish event",
			"topic", topic,
			"key", key,
			"error", err,
		)
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("Event published",
		"topic", topic,
		"key", key,
	)

	return nil
}
