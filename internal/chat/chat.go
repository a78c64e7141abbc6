// Package chat defines the transport-neutral message model shared by the
// Matrix and Telegram clients and the handlers that react to their events.
package chat

import (
	"context"
	"time"
)

// MessageKind classifies message content.
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindNotice MessageKind = "notice"
	KindOther  MessageKind = "other"
)

// Content is the payload of an inbound Event. It is either TextContent or EditContent.
type Content interface {
	content()
}

// TextContent is a plain, newly posted message.
type TextContent struct {
	Kind MessageKind
	Body string
}

// EditContent replaces the content of an earlier message identified by Target.
type EditContent struct {
	Target string
	Kind   MessageKind
	Body   string
}

func (TextContent) content() {}
func (EditContent) content() {}

// Event is an inbound room message after boundary validation by a transport.
type Event struct {
	ID        string
	RoomID    string
	Sender    string
	Timestamp time.Time
	Content   Content
}

// Body returns the text carried by the event, or the replacement text for edits.
func (e *Event) Body() string {
	switch c := e.Content.(type) {
	case TextContent:
		return c.Body
	case EditContent:
		return c.Body
	}
	return ""
}

// Kind returns the message kind of the event content.
func (e *Event) Kind() MessageKind {
	switch c := e.Content.(type) {
	case TextContent:
		return c.Kind
	case EditContent:
		return c.Kind
	}
	return KindOther
}

// EditTarget returns the id of the message being edited, or "" for non-edits.
func (e *Event) EditTarget() string {
	if c, ok := e.Content.(EditContent); ok {
		return c.Target
	}
	return ""
}

// Outgoing is a message the bot sends. When Replaces is set the message edits
// that earlier event and FallbackBody is shown by clients without edit support.
type Outgoing struct {
	Kind         MessageKind
	Body         string
	Replaces     string
	FallbackBody string
}

// IsEdit reports whether the message replaces an earlier one.
func (o Outgoing) IsEdit() bool {
	return o.Replaces != ""
}

// Client is a connection to a chat network.
type Client interface {
	// Connect authenticates and resolves the bot's own user id.
	Connect(ctx context.Context) error

	// SelfID returns the bot's user id. Empty before Connect succeeds.
	SelfID() string

	// Send posts msg to roomID and returns the id of the resulting event.
	Send(ctx context.Context, roomID string, msg Outgoing) (string, error)

	// Start delivers events to the registered handler until ctx is cancelled.
	Start(ctx context.Context) error
}

// HandlerFunc reacts to a single inbound event.
type HandlerFunc func(ctx context.Context, c Client, evt *Event) error

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps handler with middleware. The first middleware in the slice is the outermost.
func Chain(handler HandlerFunc, mw ...Middleware) HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}
