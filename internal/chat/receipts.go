package chat

import (
	"context"

	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/wire"
)

// MarkRead flips every unread message from other senders in the conversation
// to read and broadcasts messages_read. The socket path passes the reader's
// connection as except; the HTTP path passes nil and the whole room, reader
// included, gets the event.
func (h *Hub) MarkRead(ctx context.Context, reader models.Identity, conversationID string, except *Client) (int, error) {
	conv, err := h.Access.Conversation(ctx, reader, conversationID)
	if err != nil {
		return 0, err
	}
	n, err := h.Store.MarkRead(ctx, conv.ID, reader.ID)
	if err != nil {
		return 0, persistence("mark read", err)
	}
	h.broadcast(conv.ID, except, wire.EventMessagesRead, wire.MessagesRead{
		ConversationID: conv.ID, UserID: reader.ID, Timestamp: h.Now(),
	})
	return n, nil
}

// SetTyping relays a typing signal to the rest of the room. It is fire and
// forget; only a connection that is in the room may signal into it.
func (h *Hub) SetTyping(c *Client, conversationID string, typing bool) error {
	if !h.Registry.InRoom(c, conversationID) {
		return ErrAccessDenied
	}
	h.Typing.Set(conversationID, c.Identity.ID, typing)
	h.broadcast(conversationID, c, wire.EventTypingIndicator, wire.TypingIndicator{
		ConversationID: conversationID,
		UserID:         c.Identity.ID,
		IsTyping:       typing,
		Timestamp:      h.Now(),
	})
	return nil
}
