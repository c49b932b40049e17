package consumers

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	kafkaadapter "resonance/internal/adapters/kafka"
	telegram "resonance/internal/adapters/telegram"
	"resonance/internal/events"
	"resonance/internal/metrics"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// ScriptAnnouncer delivers finished scripts to the admin chat.
// Satisfied by *telegram.NotificationService.
type ScriptAnnouncer interface {
	NotifyScriptGenerated(chatID int64, data telegram.ScriptGeneratedData) error
}

// ScriptNotificationConsumer reads the notifications topic and announces
// finished scripts over Telegram.
type ScriptNotificationConsumer struct {
	consumer    *kafkaadapter.Consumer
	announcer   ScriptAnnouncer
	adminChatID int64
	log         *logger.Logger
}

// NewScriptNotificationConsumer creates a new script notification consumer
func NewScriptNotificationConsumer(
	consumer *kafkaadapter.Consumer,
	announcer ScriptAnnouncer,
	adminChatID int64,
	log *logger.Logger,
) *ScriptNotificationConsumer {
	return &ScriptNotificationConsumer{
		consumer:    consumer,
		announcer:   announcer,
		adminChatID: adminChatID,
		log:         log.With("component", "script_notification_consumer"),
	}
}

// Start begins consuming notification events
func (snc *ScriptNotificationConsumer) Start(ctx context.Context) error {
	snc.log.Info("Starting script notification consumer...")

	defer func() {
		snc.log.Info("Closing script notification consumer...")
		if err := snc.consumer.Close(); err != nil {
			snc.log.Error("Failed to close consumer", "error", err)
		}
	}()

	for {
		msg, err := snc.consumer.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				snc.log.Info("Script notification consumer stopping (context cancelled)")
				return nil
			}
			snc.log.Debugw("Failed to read notification event", "error", err)
			continue
		}

		// Process message with timeout
		processCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = snc.handleMessage(processCtx, msg)
		cancel()

		metrics.RecordKafkaMessage(kafkaadapter.TopicNotifications, "consumed", err)
		if err != nil {
			snc.log.Errorw("Failed to handle notification",
				"topic", msg.Topic,
				"error", err,
			)
		}

		if ctx.Err() != nil {
			snc.log.Info("Script notification consumer stopping after processing current message")
			return nil
		}
	}
}

// handleMessage routes a message by the envelope's event type
func (snc *ScriptNotificationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var envelope events.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return errors.Wrap(err, "unmarshal envelope")
	}

	switch envelope.Type {
	case kafkaadapter.TopicScriptGenerated:
		return snc.handleScriptGenerated(ctx, msg.Value)

	default:
		snc.log.Debugw("Ignoring unknown event type", "event_type", envelope.Type)
		return nil
	}
}

// handleScriptGenerated announces one finished script
func (snc *ScriptNotificationConsumer) handleScriptGenerated(_ context.Context, data []byte) error {
	var event events.ScriptGeneratedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return errors.Wrap(err, "unmarshal script_generated")
	}
	if event.Script == nil {
		return errors.New("script_generated event carries no script")
	}

	notifData := telegram.NewScriptGeneratedData(event.Script)

	// Model output can carry byte sequences the Telegram API rejects
	notifData.Title = events.SanitizeUTF8(notifData.Title)
	notifData.Preview = events.SanitizeUTF8(notifData.Preview)

	snc.log.Debugw("Announcing generated script",
		"script_id", event.Script.ID,
		"niche", event.Script.Niche,
	)

	return snc.announcer.NotifyScriptGenerated(snc.adminChatID, notifData)
}
