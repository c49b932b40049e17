package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"resonance/internal/domain/catalog"
	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
	"resonance/internal/pipeline"
	"resonance/pkg/logger"
	"resonance/pkg/telegram"
)

// ScriptGenerator runs the full generation pipeline.
// Satisfied by *pipeline.Pipeline.
type ScriptGenerator interface {
	Generate(ctx context.Context, req pipeline.GenerateRequest) (*pipeline.GenerateResult, error)
}

// TrendRanker scores topics by decayed engagement.
// Satisfied by *ranker.Ranker.
type TrendRanker interface {
	Rank(ctx context.Context, topics []string, asOf time.Time, limit int) ([]trend.RankedTrend, error)
}

// TopicTracker exposes the aggregator's in-memory view.
// Satisfied by *aggregator.Aggregator.
type TopicTracker interface {
	TrackedTopics() []string
}

// CommandDeps gathers the collaborators the admin commands need
type CommandDeps struct {
	Generator ScriptGenerator
	Catalog   catalog.Repository
	Ranker    TrendRanker
	Tracker   TopicTracker
	Notifier  *NotificationService
	Log       *logger.Logger
}

// generateTimeout bounds one /generate run end to end
const generateTimeout = 5 * time.Minute

// trendsCommandLimit is how many ranked topics /trends shows
const trendsCommandLimit = 5

// NewAdminCommandRegistry builds the command registry with middleware and
// all admin commands registered. Every command is restricted to the admin
// chat; the bot has no public surface.
func NewAdminCommandRegistry(bot telegram.Bot, adminChatID int64, deps CommandDeps) *telegram.CommandRegistry {
	registry := telegram.NewCommandRegistry(bot, deps.Log)

	registry.Use(telegram.RecoveryMiddleware(deps.Log))
	registry.Use(telegram.LoggingMiddleware(deps.Log))
	registry.Use(telegram.AdminOnlyMiddleware(adminChatID))
	registry.Use(telegram.RateLimitMiddleware(20, deps.Log))

	registerCommands(registry, deps)

	return registry
}

func registerCommands(registry *telegram.CommandRegistry, deps CommandDeps) {
	registry.MustRegister(telegram.CommandConfig{
		Name:        "start",
		Description: "Show what this bot does",
		Category:    "General",
		Handler:     handleStart,
	})

	registry.MustRegister(telegram.CommandConfig{
		Name:        "help",
		Aliases:     []string{"h"},
		Description: "List available commands",
		Category:    "General",
		Handler:     handleHelp(registry),
	})

	registry.MustRegister(telegram.CommandConfig{
		Name:        "status",
		Description: "Tracked topics and active niches",
		Category:    "Trends",
		Handler:     handleStatus(deps),
	})

	registry.MustRegister(telegram.CommandConfig{
		Name:        "trends",
		Aliases:     []string{"t"},
		Description: "Rank a niche's topics by trend score",
		Usage:       "/trends <niche>",
		Category:    "Trends",
		Handler:     handleTrends(deps),
	})

	registry.MustRegister(telegram.CommandConfig{
		Name:        "generate",
		Aliases:     []string{"g", "gen"},
		Description: "Generate a script for a niche",
		Usage:       "/generate <niche> [tone] [length]",
		Category:    "Scripts",
		Handler:     handleGenerate(deps),
	})
}

func handleStart(ctx *telegram.CommandContext) error {
	text := "🎬 *Trend scripting bot*\n\n" +
		"I rank short-video topics by engagement and turn the winners into scripts.\n" +
		"Finished scripts are announced here automatically.\n\n" +
		"Use /help to see the commands."
	return ctx.Bot.SendMessage(ctx.ChatID, text)
}

func handleHelp(registry *telegram.CommandRegistry) telegram.CommandHandler {
	return func(ctx *telegram.CommandContext) error {
		grouped := registry.GetCommandsByCategory(false)

		categories := make([]string, 0, len(grouped))
		for category := range grouped {
			categories = append(categories, category)
		}
		sort.Strings(categories)

		var b strings.Builder
		b.WriteString("*Commands*\n")
		for _, category := range categories {
			commands := grouped[category]
			sort.Slice(commands, func(i, j int) bool { return commands[i].Name < commands[j].Name })

			b.WriteString(fmt.Sprintf("\n_%s_\n", category))
			for _, cmd := range commands {
				usage := "/" + cmd.Name
				if cmd.Usage != "" {
					usage = cmd.Usage
				}
				b.WriteString(fmt.Sprintf("%s\n  %s\n", usage, cmd.Description))
			}
		}

		return ctx.Bot.SendMessage(ctx.ChatID, b.String())
	}
}

func handleStatus(deps CommandDeps) telegram.CommandHandler {
	return func(ctx *telegram.CommandContext) error {
		niches, err := deps.Catalog.ActiveNiches(ctx.Ctx)
		if err != nil {
			return err
		}
		tracked := deps.Tracker.TrackedTopics()

		var b strings.Builder
		b.WriteString("📊 *Status*\n\n")
		b.WriteString(fmt.Sprintf("Topics with live engagement: %d\n", len(tracked)))
		if len(niches) == 0 {
			b.WriteString("No active niches in the catalog.")
		} else {
			sort.Strings(niches)
			b.WriteString(fmt.Sprintf("Active niches (%d): %s", len(niches), strings.Join(niches, ", ")))
		}

		return ctx.Bot.SendMessage(ctx.ChatID, b.String())
	}
}

func handleTrends(deps CommandDeps) telegram.CommandHandler {
	return func(ctx *telegram.CommandContext) error {
		niche := strings.ToLower(strings.TrimSpace(ctx.Args))
		if niche == "" {
			return telegram.ValidationError{Field: "niche", Message: "Usage: /trends <niche>"}
		}

		topics, err := deps.Catalog.TopicsForNiche(ctx.Ctx, niche)
		if err != nil {
			return err
		}
		if len(topics) == 0 {
			return ctx.Bot.SendMessage(ctx.ChatID, fmt.Sprintf("No topics tracked for `%s`.", niche))
		}

		topicIDs := make([]string, len(topics))
		for i, topic := range topics {
			topicIDs[i] = topic.TopicID
		}

		trends, err := deps.Ranker.Rank(ctx.Ctx, topicIDs, time.Now(), trendsCommandLimit)
		if err != nil {
			return err
		}
		if len(trends) == 0 {
			return ctx.Bot.SendMessage(ctx.ChatID, fmt.Sprintf("No engagement data yet for `%s`.", niche))
		}

		var b strings.Builder
		b.WriteString(fmt.Sprintf("🔥 *Top trends for %s*\n\n", niche))
		for _, t := range trends {
			b.WriteString(fmt.Sprintf("%d. %s score %.1f (%d samples)\n",
				t.Rank,
				telegram.Code(t.TopicID),
				t.Score,
				t.StatsSnapshot.SampleCount,
			))
		}

		return ctx.Bot.SendMessage(ctx.ChatID, b.String())
	}
}

func handleGenerate(deps CommandDeps) telegram.CommandHandler {
	return func(ctx *telegram.CommandContext) error {
		req, err := parseGenerateArgs(ctx.Args)
		if err != nil {
			return err
		}

		if err := ctx.Bot.SendMessage(ctx.ChatID, fmt.Sprintf(
			"⏳ Generating a %s %s script for `%s`. Results land here when ready.",
			req.Length, req.Tone, req.Niche,
		)); err != nil {
			return err
		}

		// The run outlives the command; the finished script arrives through
		// the notification consumer, so only failures report back directly.
		chatID := ctx.ChatID
		go func() {
			runCtx, cancel := context.WithTimeout(context.Background(), generateTimeout)
			defer cancel()

			if _, err := deps.Generator.Generate(runCtx, req); err != nil {
				deps.Log.Errorw("Generation run from telegram failed",
					"niche", req.Niche,
					"error", err,
				)
				if notifyErr := deps.Notifier.NotifyPipelineFailed(chatID, PipelineFailedData{
					Niche:  req.Niche,
					Tone:   string(req.Tone),
					Length: string(req.Length),
					Reason: err.Error(),
				}); notifyErr != nil {
					deps.Log.Errorw("Failed to deliver failure notification", "error", notifyErr)
				}
			}
		}()

		return nil
	}
}

// parseGenerateArgs reads "<niche> [tone] [length]" with educational/short
// as defaults.
func parseGenerateArgs(args string) (pipeline.GenerateRequest, error) {
	fields := strings.Fields(strings.ToLower(args))
	if len(fields) == 0 {
		return pipeline.GenerateRequest{}, telegram.ValidationError{
			Field:   "niche",
			Message: "Usage: /generate <niche> [tone] [length]",
		}
	}

	req := pipeline.GenerateRequest{
		Niche:  fields[0],
		Tone:   script.ToneEducational,
		Length: script.LengthShort,
	}

	if len(fields) > 1 {
		req.Tone = script.Tone(fields[1])
		if !req.Tone.Valid() {
			return pipeline.GenerateRequest{}, telegram.ValidationError{
				Field:   "tone",
				Message: fmt.Sprintf("Unknown tone %q. Try educational, entertaining, testimonial, motivational or demonstration.", fields[1]),
			}
		}
	}

	if len(fields) > 2 {
		req.Length = script.Length(fields[2])
		if !req.Length.Valid() {
			return pipeline.GenerateRequest{}, telegram.ValidationError{
				Field:   "length",
				Message: fmt.Sprintf("Unknown length %q. Try short, medium or long.", fields[2]),
			}
		}
	}

	return req, nil
}
