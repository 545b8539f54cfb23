package chat

import (
	"context"
	"encoding/json"

	"github.com/ageniuscoder/caseline/backend/internal/wire"
)

type handlerFunc func(ctx context.Context, h *Hub, c *Client, data json.RawMessage) error

// dispatchTable maps each inbound event tag to its handler. Unknown tags are
// answered with an error event.
func dispatchTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		wire.EventJoinConversation:  handleJoin,
		wire.EventLeaveConversation: handleLeave,
		wire.EventSendMessage:       handleSend,
		wire.EventReadMessages:      handleRead,
		wire.EventTyping:            handleTyping,
	}
}

// Dispatch decodes one inbound frame and runs its handler. A failing event is
// reported to the client and never closes the connection.
func (h *Hub) Dispatch(ctx context.Context, c *Client, raw []byte) {
	var f wire.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		h.emitError(c, validationf("malformed frame"))
		return
	}
	handle, ok := h.handlers[f.Event]
	if !ok {
		h.emitError(c, validationf("unknown event %q", f.Event))
		return
	}
	if err := handle(ctx, h, c, f.Data); err != nil {
		h.Log.Debug("event failed", "event", f.Event, "user_id", c.Identity.ID, "err", err)
		h.emitError(c, err)
	}
}

// decode unmarshals and validates an event payload.
func (h *Hub) decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return validationf("missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return validationf("malformed payload")
	}
	if err := h.validate.Struct(v); err != nil {
		return validationf("%v", err)
	}
	return nil
}

func handleJoin(ctx context.Context, h *Hub, c *Client, data json.RawMessage) error {
	var ref wire.ConversationRef
	if err := h.decode(data, &ref); err != nil {
		return err
	}
	return h.Join(ctx, c, ref.ConversationID)
}

func handleLeave(_ context.Context, h *Hub, c *Client, data json.RawMessage) error {
	var ref wire.ConversationRef
	if err := h.decode(data, &ref); err != nil {
		return err
	}
	h.Leave(c, ref.ConversationID)
	return nil
}

func handleSend(ctx context.Context, h *Hub, c *Client, data json.RawMessage) error {
	var p wire.SendMessage
	if err := h.decode(data, &p); err != nil {
		return err
	}
	_, err := h.Send(ctx, c.Identity, SendInput{
		ConversationID: p.ConversationID,
		Content:        p.Content,
		ContentType:    p.ContentType,
		Attachments:    p.Attachments,
	}, PathSocket)
	return err
}

func handleRead(ctx context.Context, h *Hub, c *Client, data json.RawMessage) error {
	var p wire.ReadMessages
	if err := h.decode(data, &p); err != nil {
		return err
	}
	_, err := h.MarkRead(ctx, c.Identity, p.ConversationID, c)
	return err
}

func handleTyping(_ context.Context, h *Hub, c *Client, data json.RawMessage) error {
	var p wire.Typing
	if err := h.decode(data, &p); err != nil {
		return err
	}
	return h.SetTyping(c, p.ConversationID, p.IsTyping)
}
