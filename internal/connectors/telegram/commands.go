package telegram

import (
	"context"
	"strings"

	"github.com/lewisedginton/ron/internal/assistant"
)

const helpText = `Puedo ayudarte con:
- diagnosticar y reparar tu computadora ("no funciona el internet")
- abrir y cerrar aplicaciones ("abre youtube")
- buscar en Google y YouTube ("investiga ...", "reproduce ...")
- el clima ("clima en Madrid")
- recordatorios ("recuérdame pagar: la renta")
o simplemente conversar.`

// CommandHandler handles a specific Telegram bot command
type CommandHandler func(ctx context.Context, chatID int64, args string) string

// CommandRegistry manages bot command handlers
type CommandRegistry struct {
	handlers map[string]CommandHandler
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandHandler),
	}
}

// Register adds a command handler to the registry
func (r *CommandRegistry) Register(command string, handler CommandHandler) {
	r.handlers[command] = handler
}

// IsCommand checks if a message is a command
func (r *CommandRegistry) IsCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// Handle runs the command in text. Bot name suffixes such as /help@ronbot
// are ignored.
func (r *CommandRegistry) Handle(ctx context.Context, chatID int64, text string) string {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	command, _, _ := strings.Cut(parts[0], "@")
	args := ""
	if len(parts) == 2 {
		args = strings.TrimSpace(parts[1])
	}

	handler, exists := r.handlers[command]
	if !exists {
		return "Comando desconocido: " + command
	}
	return handler(ctx, chatID, args)
}

// setupCommands initializes the command registry with all available commands
func (c *Connector) setupCommands() {
	c.commands = NewCommandRegistry()
	c.commands.Register("/start", func(context.Context, int64, string) string {
		return "¡Hola! Escríbeme lo que necesites.\n\n" + helpText
	})
	c.commands.Register("/ayuda", func(context.Context, int64, string) string { return helpText })
	c.commands.Register("/help", func(context.Context, int64, string) string { return helpText })
	c.commands.Register("/recordatorios", c.utteranceCommand("qué recordatorios tengo"))
}

// utteranceCommand answers a command as if the user had said utterance.
func (c *Connector) utteranceCommand(utterance string) CommandHandler {
	return func(ctx context.Context, chatID int64, _ string) string {
		return c.responder.Respond(ctx, assistant.Request{
			Device: DeviceKey(chatID),
			Text:   utterance,
		}).Text
	}
}
