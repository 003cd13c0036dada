package slack

import (
	"context"
	"fmt"

	"github.com/lewisedginton/ron/internal/assistant"
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

const helpText = `*Comandos disponibles:*

• */ron <mensaje>* - Habla con Ron
• */recordatorios* - Lista tus recordatorios
• */ayuda* - Muestra esta ayuda`

// CommandHandler handles a specific slash command
type CommandHandler func(ctx context.Context, cmd slack.SlashCommand) (string, error)

// CommandRegistry manages slash command handlers
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

// Handle processes a slash command event
func (r *CommandRegistry) Handle(ctx context.Context, cmd slack.SlashCommand) (string, error) {
	handler, exists := r.handlers[cmd.Command]
	if !exists {
		return fmt.Sprintf("Comando desconocido: %s", cmd.Command), nil
	}
	return handler(ctx, cmd)
}

func (c *Connector) respondTo(ctx context.Context, cmd slack.SlashCommand, text string) (string, error) {
	if text == "" {
		return helpText, nil
	}
	return c.responder.Respond(ctx, assistant.Request{Device: DeviceKey(cmd.UserID), Text: text}).Text, nil
}

// setupCommands initialises the command registry with all available commands
func (c *Connector) setupCommands() {
	c.commands = NewCommandRegistry()
	c.commands.Register("/ron", func(ctx context.Context, cmd slack.SlashCommand) (string, error) {
		return c.respondTo(ctx, cmd, cmd.Text)
	})
	c.commands.Register("/recordatorios", func(ctx context.Context, cmd slack.SlashCommand) (string, error) {
		return c.respondTo(ctx, cmd, "qué recordatorios tengo")
	})
	c.commands.Register("/ayuda", func(context.Context, slack.SlashCommand) (string, error) {
		return helpText, nil
	})
}

// handleSlashCommand processes incoming slash command events
func (c *Connector) handleSlashCommand(ctx context.Context, envelope socketmode.Event) {
	if envelope.Request == nil {
		return
	}
	cmd, ok := envelope.Data.(slack.SlashCommand)
	if !ok {
		c.logger.Warn("Failed to parse slash command data", logger.StringField("data", fmt.Sprintf("%+v", envelope.Data)))
		c.socketMode.Ack(*envelope.Request)
		return
	}

	c.logger.Info("Received slash command",
		logger.StringField("command", cmd.Command),
		logger.StringField("user_id", cmd.UserID),
		logger.StringField("channel_id", cmd.ChannelID))

	text, err := c.commands.Handle(ctx, cmd)
	if err != nil {
		c.logger.Error("Error handling command",
			logger.StringField("command", cmd.Command),
			logger.ErrorField(err))
		text = "Ocurrió un error al procesar tu comando."
	}
	c.socketMode.Ack(*envelope.Request, map[string]interface{}{"text": text})
}
