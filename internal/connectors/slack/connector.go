// Package slack hosts the assistant as a Slack Socket Mode app. Every Slack
// user gets their own memory document.
package slack

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lewisedginton/ron/internal/assistant"
	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>`)

// Responder answers one utterance.
type Responder interface {
	Respond(ctx context.Context, req assistant.Request) assistant.Reply
}

// Connector represents the Slack Socket Mode connector
type Connector struct {
	client     *slack.Client
	socketMode *socketmode.Client
	responder  Responder
	commands   *CommandRegistry
	logger     logger.Logger
}

// Config holds configuration for the Slack connector
type Config struct {
	BotToken string // xoxb-*
	AppToken string // xapp-*
	Debug    bool
	Logger   logger.Logger

	// APIURL overrides the Web API endpoint, mostly for tests.
	APIURL string
}

// NewConnector creates a new Slack connector
func NewConnector(config Config, responder Responder) (*Connector, error) {
	if !strings.HasPrefix(config.BotToken, "xoxb-") {
		return nil, fmt.Errorf("invalid bot token format, expected xoxb-*")
	}
	if !strings.HasPrefix(config.AppToken, "xapp-") {
		return nil, fmt.Errorf("invalid app token format, expected xapp-*")
	}
	if responder == nil {
		return nil, fmt.Errorf("responder is required")
	}
	if config.Logger == nil {
		config.Logger = logger.NewNopLogger()
	}

	opts := []slack.Option{
		slack.OptionAppLevelToken(config.AppToken),
		slack.OptionDebug(config.Debug),
	}
	if config.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(config.APIURL))
	}
	client := slack.New(config.BotToken, opts...)

	c := &Connector{
		client:     client,
		socketMode: socketmode.New(client, socketmode.OptionDebug(config.Debug)),
		responder:  responder,
		logger:     config.Logger.WithFields(logger.StringField("connector", "slack")),
	}
	c.setupCommands()
	return c, nil
}

// DeviceKey maps a Slack user to their memory document.
func DeviceKey(userID string) memory_store.DeviceKey {
	return memory_store.SanitizeDeviceKey("slack", userID)
}

// Start begins the Socket Mode connection and event handling
func (c *Connector) Start(ctx context.Context) error {
	c.logger.Info("Starting Slack Socket Mode connector")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case envelope, ok := <-c.socketMode.Events:
				if !ok {
					return
				}
				c.handleEnvelope(ctx, envelope)
			}
		}
	}()

	return c.socketMode.RunContext(ctx)
}

func (c *Connector) handleEnvelope(ctx context.Context, envelope socketmode.Event) {
	switch envelope.Type {
	case socketmode.EventTypeConnecting:
		c.logger.Info("Connecting to Slack with Socket Mode")

	case socketmode.EventTypeConnectionError:
		c.logger.Warn("Slack connection failed", logger.StringField("data", fmt.Sprintf("%v", envelope.Data)))

	case socketmode.EventTypeConnected:
		c.logger.Info("Connected to Slack with Socket Mode")

	case socketmode.EventTypeEventsAPI:
		event, ok := envelope.Data.(slackevents.EventsAPIEvent)
		if !ok || envelope.Request == nil {
			return
		}
		c.socketMode.Ack(*envelope.Request)
		if err := c.handleEvent(ctx, event); err != nil {
			c.logger.Error("Failed to handle event", logger.ErrorField(err))
		}

	case socketmode.EventTypeSlashCommand:
		c.handleSlashCommand(ctx, envelope)

	case socketmode.EventTypeInteractive:
		if envelope.Request != nil {
			c.socketMode.Ack(*envelope.Request)
		}
	}
}

// handleEvent processes Slack events and routes them to the assistant
func (c *Connector) handleEvent(ctx context.Context, event slackevents.EventsAPIEvent) error {
	if event.Type != slackevents.CallbackEvent {
		return nil
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		return c.handleMessageEvent(ctx, ev)
	case *slackevents.AppMentionEvent:
		return c.reply(ctx, ev.User, ev.Channel, removeBotMention(ev.Text))
	}
	return nil
}

// handleMessageEvent processes direct messages to the bot
func (c *Connector) handleMessageEvent(ctx context.Context, event *slackevents.MessageEvent) error {
	if event.BotID != "" || event.SubType == "bot_message" {
		return nil
	}
	// DM channel IDs start with D
	if !strings.HasPrefix(event.Channel, "D") {
		return nil
	}

	msg := slack.Message{Msg: slack.Msg{Text: event.Text}}
	if event.Message != nil {
		msg.Msg = *event.Message
		if msg.Text == "" {
			msg.Text = event.Text
		}
	}
	return c.reply(ctx, event.User, event.Channel, extractMessageText(msg))
}

func (c *Connector) reply(ctx context.Context, userID, channel, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	ctx, _ = logger.EnsureCorrelationID(ctx)
	log := logger.GetLoggerFromContext(ctx, c.logger).WithFields(
		logger.StringField("user_id", userID),
		logger.StringField("channel", channel))

	reply := c.responder.Respond(ctx, assistant.Request{Device: DeviceKey(userID), Text: text})
	log.Debug("Message handled", logger.IntentField(reply.Intent))
	if reply.Text == "" {
		return nil
	}

	if _, _, err := c.client.PostMessageContext(ctx, channel, slack.MsgOptionText(reply.Text, false)); err != nil {
		return fmt.Errorf("failed to post reply: %w", err)
	}
	return nil
}

// removeBotMention strips <@U123> mentions from message text
func removeBotMention(text string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
}
