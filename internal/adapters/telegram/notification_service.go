package telegram

import (
	"resonance/pkg/logger"
	"resonance/pkg/telegram"
)

// NotificationService handles sending structured Telegram notifications
// Uses pkg/telegram framework (Bot interface + TemplateRenderer)
type NotificationService struct {
	bot       telegram.Bot
	templates telegram.TemplateRenderer
	log       *logger.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	bot telegram.Bot,
	templates telegram.TemplateRenderer,
	log *logger.Logger,
) *NotificationService {
	return &NotificationService{
		bot:       bot,
		templates: templates,
		log:       log.With("component", "telegram_notifications"),
	}
}

// NotifyScriptGenerated announces a finished script
func (ns *NotificationService) NotifyScriptGenerated(chatID int64, data ScriptGeneratedData) error {
	text, err := ns.templates.Render("notifications/script_generated", data)
	if err != nil {
		ns.log.Errorw("Failed to render script_generated template", "error", err)
		return err
	}

	return ns.bot.SendMessage(chatID, text)
}

// NotifyPipelineFailed reports a generation run that produced nothing
func (ns *NotificationService) NotifyPipelineFailed(chatID int64, data PipelineFailedData) error {
	text, err := ns.templates.Render("notifications/pipeline_failed", data)
	if err != nil {
		ns.log.Errorw("Failed to render pipeline_failed template", "error", err)
		return err
	}

	return ns.bot.SendMessage(chatID, text)
}
