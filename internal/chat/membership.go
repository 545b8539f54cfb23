package chat

import (
	"context"

	"github.com/ageniuscoder/caseline/backend/internal/wire"
)

// Join subscribes c to a conversation room after an access check, then marks
// the conversation read on the identity's behalf and tells the rest of the
// room. Joining twice only repeats the read-mark.
func (h *Hub) Join(ctx context.Context, c *Client, conversationID string) error {
	conv, err := h.Access.Conversation(ctx, c.Identity, conversationID)
	if err != nil {
		return err
	}
	if h.Registry.Subscribe(c, conv.ID) {
		h.Log.Debug("joined conversation", "user_id", c.Identity.ID, "conversation_id", conv.ID)
	}

	n, err := h.Store.MarkRead(ctx, conv.ID, c.Identity.ID)
	if err != nil {
		h.Log.Warn("mark read on join", "user_id", c.Identity.ID, "conversation_id", conv.ID, "err", err)
		return nil
	}
	h.broadcast(conv.ID, c, wire.EventMessagesRead, wire.MessagesRead{
		ConversationID: conv.ID, UserID: c.Identity.ID, Timestamp: h.Now(),
	})
	h.Log.Debug("marked read on join", "conversation_id", conv.ID, "count", n)
	return nil
}

// Leave is always allowed and idempotent.
func (h *Hub) Leave(c *Client, conversationID string) {
	h.Registry.Unsubscribe(c, conversationID)
	for _, conv := range h.Typing.Clear(c.Identity.ID, conversationID) {
		h.broadcast(conv, c, wire.EventTypingIndicator, wire.TypingIndicator{
			ConversationID: conv, UserID: c.Identity.ID, IsTyping: false, Timestamp: h.Now(),
		})
	}
}

// resubscribe puts a fresh connection back into every conversation the
// identity takes part in and is still authorized for. Past participation in a
// case conversation does not count once the case has moved on.
func (h *Hub) resubscribe(ctx context.Context, c *Client) {
	convs, err := h.Store.ListUserConversations(ctx, c.Identity.ID)
	if err != nil {
		h.Log.Error("list conversations for resubscribe", "user_id", c.Identity.ID, "err", err)
		return
	}
	n := 0
	for _, conv := range convs {
		ok, err := h.Access.Authorize(ctx, c.Identity, conv.ID)
		if err != nil {
			h.Log.Warn("authorize resubscribe", "user_id", c.Identity.ID, "conversation_id", conv.ID, "err", err)
			continue
		}
		if !ok {
			continue
		}
		h.Registry.Subscribe(c, conv.ID)
		n++
	}
	h.Log.Debug("resubscribed", "user_id", c.Identity.ID, "rooms", n)
}
