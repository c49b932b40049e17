package templates

import (
	"strings"
	"testing"
)

func TestHookPromptRendersExemplars(t *testing.T) {
	registry := Get()

	data := map[string]interface{}{
		"TopicID":    "pushups",
		"TrendScore": 42.5,
		"Velocity":   3.21,
		"Exemplars": []string{
			"Stop doing pushups like this",
			"The pushup mistake everyone makes",
		},
	}

	output, err := registry.Render("prompts/hook", data)
	if err != nil {
		t.Fatalf("Failed to render hook prompt: %v", err)
	}

	if !strings.Contains(output, "pushups") {
		t.Error("Missing topic id in hook prompt")
	}
	if !strings.Contains(output, "42.5") {
		t.Error("Missing trend score in hook prompt")
	}
	if !strings.Contains(output, "Stop doing pushups like this") {
		t.Error("Missing exemplar in hook prompt")
	}
	if !strings.Contains(output, "Do not copy them") {
		t.Error("Missing exemplar guidance in hook prompt")
	}
}

func TestHookPromptOmitsExemplarBlockWhenEmpty(t *testing.T) {
	registry := Get()

	output, err := registry.Render("prompts/hook", map[string]interface{}{
		"TopicID":    "yoga",
		"TrendScore": 10.0,
		"Velocity":   0.5,
	})
	if err != nil {
		t.Fatalf("Failed to render hook prompt: %v", err)
	}

	if strings.Contains(output, "performed well in this niche") {
		t.Error("Exemplar block rendered without exemplars")
	}
}

func TestBodyPromptCarriesDraftAndPosition(t *testing.T) {
	registry := Get()

	output, err := registry.Render("prompts/body", map[string]interface{}{
		"DraftSoFar":   "Why your pushups stopped working",
		"BodyPosition": 2,
		"BodyTarget":   3,
	})
	if err != nil {
		t.Fatalf("Failed to render body prompt: %v", err)
	}

	if !strings.Contains(output, "Why your pushups stopped working") {
		t.Error("Missing draft context in body prompt")
	}
	if !strings.Contains(output, "segment 2 of up to 3") {
		t.Error("Missing position targeting in body prompt")
	}
}

func TestCTAPromptRequestsJSON(t *testing.T) {
	registry := Get()

	output, err := registry.Render("prompts/cta", map[string]interface{}{
		"DraftSoFar": "hook\nbody",
	})
	if err != nil {
		t.Fatalf("Failed to render cta prompt: %v", err)
	}

	for _, field := range []string{`"cta"`, `"title"`, `"visual_notes"`, `"audio_notes"`} {
		if !strings.Contains(output, field) {
			t.Errorf("Missing %s field in cta prompt", field)
		}
	}
}

func TestSystemPromptInjectsNicheAndTone(t *testing.T) {
	registry := Get()

	output, err := registry.Render("prompts/system", map[string]interface{}{
		"Niche": "fitness",
		"Tone":  "motivational",
	})
	if err != nil {
		t.Fatalf("Failed to render system prompt: %v", err)
	}

	if !strings.Contains(output, "fitness") {
		t.Error("Missing niche in system prompt")
	}
	if !strings.Contains(output, "motivational") {
		t.Error("Missing tone in system prompt")
	}
}

func TestUnknownPromptReturnsError(t *testing.T) {
	registry := Get()

	_, err := registry.Render("prompts/nonexistent", nil)
	if err == nil {
		t.Error("Expected error for nonexistent template")
	}
}
