package telegram

import (
	"resonance/pkg/telegram"
	"resonance/pkg/templates"
)

var _ telegram.TemplateRenderer = (*TemplateRendererAdapter)(nil)

// TemplateRendererAdapter lets the bot framework render notification
// templates through the shared registry.
type TemplateRendererAdapter struct {
	registry *templates.Registry
}

func NewTemplateRendererAdapter(registry *templates.Registry) *TemplateRendererAdapter {
	return &TemplateRendererAdapter{registry: registry}
}

func (a *TemplateRendererAdapter) Render(templatePath string, data interface{}) (string, error) {
	return a.registry.Render(templatePath, data)
}
