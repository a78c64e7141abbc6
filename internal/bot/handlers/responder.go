package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/dadbot/internal/chat"
)

const (
	sendMessageTimeout = 10 * time.Second
	dbOperationTimeout = 5 * time.Second
)

type responder struct {
	deps HandlerDeps
}

// NewResponder creates a handler that answers "I'm ..." messages with a dad joke
// and edits its earlier answer when the triggering message is edited.
func NewResponder(deps HandlerDeps) chat.HandlerFunc {
	return responder{deps}.Handle
}

// Handle validates evt, extracts a name and sends, edits, or drops a reply.
// Send and store failures are returned to the caller without retry.
func (h responder) Handle(ctx context.Context, c chat.Client, evt *chat.Event) error {
	log := h.deps.Logger.With("handler", "responder")

	if !Validate(c.SelfID(), evt) {
		return nil
	}

	if maxAge := h.maxMessageAge(); !IsRecent(evt, h.now(), maxAge) {
		log.DebugContext(ctx, "Ignoring stale message", "event_id", evt.ID, "timestamp", evt.Timestamp, "max_age", maxAge)
		return nil
	}

	name := ExtractName(evt.Body())
	if name == "" {
		log.DebugContext(ctx, "Trigger word without a name, skipping", "event_id", evt.ID)
		return nil
	}
	text := ResponseText(name)

	if target := evt.EditTarget(); target != "" {
		return h.editReply(ctx, c, evt, target, text)
	}
	return h.sendReply(ctx, c, evt, text)
}

func (h responder) sendReply(ctx context.Context, c chat.Client, evt *chat.Event, text string) error {
	log := h.deps.Logger.With("handler", "responder", "event_id", evt.ID, "room_id", evt.RoomID)

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()

	responseID, err := c.Send(sendCtx, evt.RoomID, chat.Outgoing{Kind: chat.KindNotice, Body: text})
	if err != nil {
		return fmt.Errorf("send reply to %s: %w", evt.ID, err)
	}
	log.InfoContext(ctx, "Sent reply", "response_id", responseID)

	dbCtx, dbCancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer dbCancel()

	if err := h.deps.Store.PutCorrelation(dbCtx, evt.ID, responseID); err != nil {
		log.WarnContext(ctx, "Reply sent but correlation not saved, later edits will be ignored",
			"response_id", responseID, "error", err)
		return fmt.Errorf("save correlation for %s: %w", evt.ID, err)
	}
	return nil
}

func (h responder) editReply(ctx context.Context, c chat.Client, evt *chat.Event, target, text string) error {
	log := h.deps.Logger.With("handler", "responder", "event_id", evt.ID, "edit_target", target)

	dbCtx, dbCancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer dbCancel()

	rec, err := h.deps.Store.GetCorrelation(dbCtx, target)
	if err != nil {
		return fmt.Errorf("look up correlation for %s: %w", target, err)
	}
	if rec == nil {
		log.DebugContext(ctx, "Edit of a message we never answered, skipping")
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()

	msg := chat.Outgoing{
		Kind:         chat.KindNotice,
		Body:         text,
		Replaces:     rec.ResponseID,
		FallbackBody: EditFallback(text),
	}
	if _, err := c.Send(sendCtx, evt.RoomID, msg); err != nil {
		return fmt.Errorf("edit reply %s: %w", rec.ResponseID, err)
	}

	log.InfoContext(ctx, "Edited reply", "response_id", rec.ResponseID)
	return nil
}

func (h responder) now() time.Time {
	if h.deps.Now != nil {
		return h.deps.Now()
	}
	return time.Now()
}

func (h responder) maxMessageAge() time.Duration {
	if h.deps.Config == nil {
		return 0
	}
	return h.deps.Config.Responder.MaxMessageAge
}
