// Package matrix connects dadbot to a Matrix homeserver using mautrix-go.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/edgard/dadbot/internal/chat"
	"github.com/edgard/dadbot/internal/config"
)

const editFallbackPrefix = " * "

// Client implements chat.Client on top of a mautrix client.
type Client struct {
	cfg     config.MatrixConfig
	logger  *slog.Logger
	handler chat.HandlerFunc
	mx      *mautrix.Client

	mu     sync.RWMutex
	selfID id.UserID
}

var _ chat.Client = (*Client)(nil)

// NewClient creates a Matrix client that delivers room messages to handler.
// zl receives the SDK's own logs.
func NewClient(cfg config.MatrixConfig, logger *slog.Logger, zl zerolog.Logger, handler chat.HandlerFunc) (*Client, error) {
	if cfg.Homeserver == "" {
		return nil, errors.New("matrix homeserver cannot be empty")
	}
	if cfg.Token == "" {
		return nil, errors.New("matrix access token cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("matrix event handler cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mx, err := mautrix.NewClient(cfg.Homeserver, "", cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix client: %w", err)
	}
	mx.Log = zl.With().Str("component", "mautrix").Logger()

	c := &Client{
		cfg:     cfg,
		logger:  logger.With("component", "matrix_client"),
		handler: handler,
		mx:      mx,
	}

	syncer, ok := mx.Syncer.(mautrix.ExtensibleSyncer)
	if !ok {
		return nil, fmt.Errorf("matrix syncer %T does not support event handlers", mx.Syncer)
	}
	syncer.OnEventType(event.EventMessage, c.onMessage)
	if cfg.AutoJoin {
		syncer.OnEventType(event.StateMember, c.onMember)
	}
	if cfg.SkipInitialBacklog {
		syncer.OnSync(mx.DontProcessOldEvents)
	}

	c.logger.Info("Matrix client created", "homeserver", cfg.Homeserver, "auto_join", cfg.AutoJoin)
	return c, nil
}

// Connect resolves the bot's user id from the access token.
func (c *Client) Connect(ctx context.Context) error {
	resp, err := c.mx.Whoami(ctx)
	if err != nil {
		return &chat.TransportError{Op: "whoami", Err: err}
	}

	c.mu.Lock()
	c.selfID = resp.UserID
	c.mu.Unlock()
	c.mx.UserID = resp.UserID

	c.logger.Info("Connected to homeserver", "user_id", resp.UserID, "device_id", resp.DeviceID)
	return nil
}

// SelfID returns the bot's Matrix user id.
func (c *Client) SelfID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return string(c.selfID)
}

// Start runs the sync loop until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	if c.SelfID() == "" {
		return errors.New("matrix client is not connected")
	}

	err := c.mx.SyncWithContext(ctx)
	if err != nil && ctx.Err() == nil {
		return &chat.TransportError{Op: "sync", Err: err}
	}
	return nil
}

// Send posts msg to roomID, as an m.replace edit when msg.Replaces is set.
func (c *Client) Send(ctx context.Context, roomID string, msg chat.Outgoing) (string, error) {
	resp, err := c.mx.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, buildContent(msg))
	if err != nil {
		return "", &chat.TransportError{Op: "send", Err: err}
	}
	return string(resp.EventID), nil
}

func (c *Client) onMessage(ctx context.Context, evt *event.Event) {
	chatEvt := toChatEvent(evt)
	if chatEvt == nil {
		return
	}

	if err := c.handler(ctx, c, chatEvt); err != nil {
		c.logger.ErrorContext(ctx, "Event handler failed", "event_id", evt.ID, "room_id", evt.RoomID, "error", err)
	}
}

func (c *Client) onMember(ctx context.Context, evt *event.Event) {
	self := c.SelfID()
	if self == "" || evt.GetStateKey() != self {
		return
	}
	if evt.Content.AsMember().Membership != event.MembershipInvite {
		return
	}

	log := c.logger.With("room_id", evt.RoomID, "inviter", evt.Sender)
	if _, err := c.mx.JoinRoomByID(ctx, evt.RoomID); err != nil {
		log.ErrorContext(ctx, "Failed to join room after invite", "error", err)
		return
	}
	log.InfoContext(ctx, "Joined room after invite")
}

// toChatEvent converts a parsed m.room.message event. It returns nil for events
// without message content.
func toChatEvent(evt *event.Event) *chat.Event {
	if evt == nil {
		return nil
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content == nil {
		return nil
	}

	out := &chat.Event{
		ID:        string(evt.ID),
		RoomID:    string(evt.RoomID),
		Sender:    string(evt.Sender),
		Timestamp: time.UnixMilli(evt.Timestamp),
	}

	if rel := content.RelatesTo; rel != nil && rel.Type == event.RelReplace {
		edit := chat.EditContent{Target: string(rel.EventID)}
		if nc := content.NewContent; nc != nil {
			edit.Kind, edit.Body = kindOf(nc.MsgType), nc.Body
		} else {
			// Without m.new_content the top-level body is the fallback text.
			edit.Kind, edit.Body = kindOf(content.MsgType), stripEditFallback(content.Body)
		}
		out.Content = edit
		return out
	}

	out.Content = chat.TextContent{
		Kind: kindOf(content.MsgType),
		Body: content.Body,
	}
	return out
}

// stripEditFallback removes the "* " marker clients prepend to edited bodies.
func stripEditFallback(body string) string {
	return strings.TrimPrefix(strings.TrimPrefix(body, " "), "* ")
}

func kindOf(msgType event.MessageType) chat.MessageKind {
	switch msgType {
	case event.MsgText:
		return chat.KindText
	case event.MsgNotice:
		return chat.KindNotice
	default:
		return chat.KindOther
	}
}

func msgTypeOf(kind chat.MessageKind) event.MessageType {
	if kind == chat.KindText {
		return event.MsgText
	}
	return event.MsgNotice
}

// buildContent renders an outgoing message. Edits carry the fallback body at the
// top level and the replacement under m.new_content.
func buildContent(msg chat.Outgoing) *event.MessageEventContent {
	msgType := msgTypeOf(msg.Kind)
	if !msg.IsEdit() {
		return &event.MessageEventContent{MsgType: msgType, Body: msg.Body}
	}

	fallback := msg.FallbackBody
	if fallback == "" {
		fallback = editFallbackPrefix + msg.Body
	}
	return &event.MessageEventContent{
		MsgType: msgType,
		Body:    fallback,
		NewContent: &event.MessageEventContent{
			MsgType: msgType,
			Body:    msg.Body,
		},
		RelatesTo: &event.RelatesTo{
			Type:    event.RelReplace,
			EventID: id.EventID(msg.Replaces),
		},
	}
}
