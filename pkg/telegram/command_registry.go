package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	stderrors "errors"

	"resonance/pkg/logger"
)

// CommandContext carries everything a command handler needs.
type CommandContext struct {
	Ctx        context.Context
	User       interface{} // application-defined principal
	TelegramID int64
	ChatID     int64
	Command    string
	Args       string
	RawMessage string
	Bot        Bot
}

// CommandHandler executes one command.
type CommandHandler func(ctx *CommandContext) error

// CommandMiddleware wraps handlers; applied outermost-first.
type CommandMiddleware func(next CommandHandler) CommandHandler

// CommandConfig declares one command.
type CommandConfig struct {
	Name        string   // primary name, e.g. "generate"
	Aliases     []string // shorthand names, e.g. ["g"]
	Description string
	Usage       string // e.g. "/generate <niche> [tone] [length]"
	Handler     CommandHandler
	Middleware  []CommandMiddleware // command-specific, inside the global chain
	Hidden      bool                // excluded from /help
	Category    string              // /help grouping, defaults to "General"
}

// CommandRegistry routes slash commands through a middleware chain to
// their handlers.
type CommandRegistry struct {
	primary    map[string]*CommandConfig // primary name -> config
	aliases    map[string]string         // alias -> primary name
	middleware []CommandMiddleware
	bot        Bot
	log        *logger.Logger
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry(bot Bot, log *logger.Logger) *CommandRegistry {
	return &CommandRegistry{
		primary: make(map[string]*CommandConfig),
		aliases: make(map[string]string),
		bot:     bot,
		log:     log.With("component", "command_registry"),
	}
}

// Register adds a command; invalid configs are logged and skipped.
func (cr *CommandRegistry) Register(config CommandConfig) {
	if config.Name == "" || config.Handler == nil {
		cr.log.Errorw("Rejecting invalid command registration", "command", config.Name)
		return
	}

	cr.primary[config.Name] = &config
	for _, alias := range config.Aliases {
		cr.aliases[alias] = config.Name
	}

	cr.log.Debugw("Registered command",
		"name", config.Name,
		"aliases", config.Aliases,
		"category", config.Category,
	)
}

// MustRegister adds a command, panicking on an invalid config. Meant for
// wiring-time registration where a bad config is a programming error.
func (cr *CommandRegistry) MustRegister(config CommandConfig) {
	if config.Name == "" || config.Handler == nil {
		panic(fmt.Sprintf("invalid command config: name=%q handler=%v", config.Name, config.Handler))
	}
	cr.Register(config)
}

// Use appends global middleware; earlier registrations wrap later ones.
func (cr *CommandRegistry) Use(middleware CommandMiddleware) {
	cr.middleware = append(cr.middleware, middleware)
}

// resolve maps a (possibly aliased) command name to its config.
func (cr *CommandRegistry) resolve(command string) (*CommandConfig, bool) {
	name := strings.ToLower(strings.TrimSpace(command))
	if primary, ok := cr.aliases[name]; ok {
		name = primary
	}
	config, ok := cr.primary[name]
	return config, ok
}

// Handle routes one parsed command through the middleware chain.
func (cr *CommandRegistry) Handle(ctx context.Context, usr interface{}, telegramID, chatID int64, command, args, rawMessage string) error {
	config, ok := cr.resolve(command)
	if !ok {
		cr.log.Warnw("Unknown command", "command", command, "telegram_id", telegramID)
		return cr.bot.SendMessage(chatID,
			fmt.Sprintf("❌ Unknown command: /%s\n\nUse /help to see available commands.", command))
	}

	cmdCtx := &CommandContext{
		Ctx:        ctx,
		User:       usr,
		TelegramID: telegramID,
		ChatID:     chatID,
		Command:    config.Name,
		Args:       args,
		RawMessage: rawMessage,
		Bot:        cr.bot,
	}

	handler := chain(config.Handler, config.Middleware)
	handler = chain(handler, cr.middleware)

	if err := handler(cmdCtx); err != nil {
		cr.log.Errorw("Command failed",
			"command", config.Name,
			"telegram_id", telegramID,
			"error", err,
		)
		return cr.reportError(cmdCtx, err)
	}

	cr.log.Infow("Command executed", "command", config.Name, "telegram_id", telegramID)
	return nil
}

// chain wraps handler in the middleware slice, first entry outermost.
func chain(handler CommandHandler, middleware []CommandMiddleware) CommandHandler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// GetCommands returns registered commands sorted by name.
func (cr *CommandRegistry) GetCommands(includeHidden bool) []*CommandConfig {
	commands := make([]*CommandConfig, 0, len(cr.primary))
	for _, config := range cr.primary {
		if config.Hidden && !includeHidden {
			continue
		}
		commands = append(commands, config)
	}

	sort.Slice(commands, func(i, j int) bool { return commands[i].Name < commands[j].Name })
	return commands
}

// GetCommandsByCategory groups commands for /help output.
func (cr *CommandRegistry) GetCommandsByCategory(includeHidden bool) map[string][]*CommandConfig {
	grouped := make(map[string][]*CommandConfig)
	for _, cmd := range cr.GetCommands(includeHidden) {
		category := cmd.Category
		if category == "" {
			category = "General"
		}
		grouped[category] = append(grouped[category], cmd)
	}
	return grouped
}

// HasCommand reports whether a name or alias is registered.
func (cr *CommandRegistry) HasCommand(command string) bool {
	_, ok := cr.resolve(command)
	return ok
}

// reportError turns a handler error into user-facing feedback. Validation
// errors echo their message; everything else gets a generic reply.
func (cr *CommandRegistry) reportError(cmdCtx *CommandContext, err error) error {
	var valErr ValidationError
	if stderrors.As(err, &valErr) {
		return cmdCtx.Bot.SendMessage(cmdCtx.ChatID, "❌ "+valErr.Message)
	}
	return cmdCtx.Bot.SendMessage(cmdCtx.ChatID, "❌ Something went wrong. Please try again.")
}
