// Package telegram hosts the assistant as a Telegram bot. Every chat gets its
// own memory document.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/lewisedginton/ron/internal/assistant"
	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/lewisedginton/ron/pkg/logger"
)

// Responder answers one utterance.
type Responder interface {
	Respond(ctx context.Context, req assistant.Request) assistant.Reply
}

// Connector represents the Telegram connector
type Connector struct {
	bot       *bot.Bot
	responder Responder
	commands  *CommandRegistry
	logger    logger.Logger
}

// Config holds configuration for the Telegram connector
type Config struct {
	BotToken string // Bot token from @BotFather
	Debug    bool   // Enable debug logging
	Logger   logger.Logger

	// ServerURL overrides the Bot API endpoint, mostly for tests.
	ServerURL string
	// SkipGetMe skips the token check performed when the bot is created.
	SkipGetMe bool
}

// NewConnector creates a new Telegram connector
func NewConnector(config Config, responder Responder) (*Connector, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if responder == nil {
		return nil, fmt.Errorf("responder is required")
	}
	if config.Logger == nil {
		config.Logger = logger.NewNopLogger()
	}

	connector := &Connector{
		responder: responder,
		logger:    config.Logger.WithFields(logger.StringField("connector", "telegram")),
	}
	connector.setupCommands()

	opts := []bot.Option{
		bot.WithDefaultHandler(connector.handleUpdate),
	}
	if config.Debug {
		opts = append(opts, bot.WithDebug())
	}
	if config.ServerURL != "" {
		opts = append(opts, bot.WithServerURL(config.ServerURL))
	}
	if config.SkipGetMe {
		opts = append(opts, bot.WithSkipGetMe())
	}

	b, err := bot.New(config.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	connector.bot = b
	connector.logger.Info("Telegram bot initialized")

	return connector, nil
}

// Start begins polling for updates and blocks until ctx is cancelled
func (c *Connector) Start(ctx context.Context) error {
	c.logger.Info("Starting Telegram bot polling")
	c.bot.Start(ctx)
	return nil
}

// DeviceKey maps a Telegram chat to its memory document.
func DeviceKey(chatID int64) memory_store.DeviceKey {
	return memory_store.SanitizeDeviceKey("telegram", strconv.FormatInt(chatID, 10))
}

// handleUpdate processes all incoming Telegram updates
func (c *Connector) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	if update.Message.From != nil && update.Message.From.IsBot {
		return
	}

	chatID := update.Message.Chat.ID
	ctx, _ = logger.EnsureCorrelationID(ctx)
	log := logger.GetLoggerFromContext(ctx, c.logger).WithFields(logger.Field("chat_id", chatID))

	var text string
	if c.commands.IsCommand(update.Message.Text) {
		text = c.commands.Handle(ctx, chatID, update.Message.Text)
	} else {
		reply := c.responder.Respond(ctx, assistant.Request{
			Device: DeviceKey(chatID),
			Text:   update.Message.Text,
		})
		log.Debug("Message handled", logger.IntentField(reply.Intent))
		text = reply.Text
	}
	if text == "" {
		return
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		log.Error("Error sending message to Telegram", logger.ErrorField(err))
	}
}

// GetBotInfo returns information about the bot
func (c *Connector) GetBotInfo(ctx context.Context) (*models.User, error) {
	return c.bot.GetMe(ctx)
}
