package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/dadbot/internal/chat"
)

// Client implements chat.Client on top of the Telegram Bot API.
// Room ids are chat ids and event ids are "<chat_id>:<message_id>".
type Client struct {
	logger  *slog.Logger
	handler chat.HandlerFunc
	bot     *bot.Bot

	mu     sync.RWMutex
	selfID string
}

var _ chat.Client = (*Client)(nil)

// NewClient creates a Telegram client that delivers new and edited messages to handler.
func NewClient(token string, logger *slog.Logger, handler chat.HandlerFunc, opts ...bot.Option) (*Client, error) {
	if handler == nil {
		return nil, errors.New("telegram event handler cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		logger:  logger.With("component", "telegram_client"),
		handler: handler,
	}

	opts = append(opts,
		bot.WithSkipGetMe(),
		bot.WithAllowedUpdates(bot.AllowedUpdates{"message", "edited_message"}),
		bot.WithDefaultHandler(c.onUpdate),
	)
	b, err := NewTelegramBot(token, logger, opts...)
	if err != nil {
		return nil, err
	}
	c.bot = b

	return c, nil
}

// Connect resolves the bot's own user id with getMe.
func (c *Client) Connect(ctx context.Context) error {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return &chat.TransportError{Op: "getMe", Err: err}
	}

	c.mu.Lock()
	c.selfID = strconv.FormatInt(me.ID, 10)
	c.mu.Unlock()

	c.logger.Info("Connected to Telegram", "bot_id", me.ID, "bot_username", me.Username)
	return nil
}

// SelfID returns the bot's numeric user id as a string.
func (c *Client) SelfID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selfID
}

// Start long-polls for updates until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	c.bot.Start(ctx)
	return nil
}

// Send posts a new message, or edits the text of msg.Replaces.
// Notices are sent without a notification sound.
func (c *Client) Send(ctx context.Context, roomID string, msg chat.Outgoing) (string, error) {
	chatID, err := strconv.ParseInt(roomID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid telegram chat id %q: %w", roomID, err)
	}

	if msg.IsEdit() {
		_, messageID, err := parseMessageKey(msg.Replaces)
		if err != nil {
			return "", err
		}
		_, err = c.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: messageID,
			Text:      msg.Body,
		})
		if err != nil && !isNotModified(err) {
			return "", &chat.TransportError{Op: "editMessageText", Err: err}
		}
		return msg.Replaces, nil
	}

	sent, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:              chatID,
		Text:                msg.Body,
		DisableNotification: msg.Kind == chat.KindNotice,
	})
	if err != nil {
		return "", &chat.TransportError{Op: "sendMessage", Err: err}
	}
	return messageKey(chatID, sent.ID), nil
}

// isNotModified reports whether Telegram rejected an edit because the text is unchanged.
func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

func (c *Client) onUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	evt := toChatEvent(update)
	if evt == nil {
		return
	}

	if err := c.handler(ctx, c, evt); err != nil {
		c.logger.ErrorContext(ctx, "Event handler failed", "update_id", update.ID, "event_id", evt.ID, "error", err)
	}
}

// toChatEvent converts message and edited_message updates. Other updates yield nil.
func toChatEvent(update *models.Update) *chat.Event {
	if update == nil {
		return nil
	}

	msg, edited := update.Message, false
	if msg == nil && update.EditedMessage != nil {
		msg, edited = update.EditedMessage, true
	}
	if msg == nil {
		return nil
	}

	evt := &chat.Event{
		ID:        messageKey(msg.Chat.ID, msg.ID),
		RoomID:    strconv.FormatInt(msg.Chat.ID, 10),
		Timestamp: time.Unix(int64(msg.Date), 0),
	}
	if msg.From != nil {
		evt.Sender = strconv.FormatInt(msg.From.ID, 10)
	}

	kind, body := chat.KindText, msg.Text
	if body == "" {
		kind, body = chat.KindOther, msg.Caption
	}

	if edited {
		if msg.EditDate != 0 {
			evt.Timestamp = time.Unix(int64(msg.EditDate), 0)
		}
		evt.Content = chat.EditContent{Target: evt.ID, Kind: kind, Body: body}
		return evt
	}

	evt.Content = chat.TextContent{Kind: kind, Body: body}
	return evt
}

func messageKey(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}

func parseMessageKey(key string) (int64, int, error) {
	chatPart, msgPart, ok := strings.Cut(key, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid telegram message key %q", key)
	}
	chatID, err := strconv.ParseInt(chatPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chat id in message key %q: %w", key, err)
	}
	messageID, err := strconv.Atoi(msgPart)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid message id in message key %q: %w", key, err)
	}
	return chatID, messageID, nil
}
