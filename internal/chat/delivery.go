package chat

import (
	"context"
	"errors"
	"time"

	"github.com/ageniuscoder/caseline/backend/internal/metrics"
	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/ageniuscoder/caseline/backend/internal/wire"
)

const (
	// RedactionMarker replaces the content of messages too old to delete.
	RedactionMarker = "[Message has been redacted]"
	// DeleteWindow is how long after creation a sender may hard-delete.
	DeleteWindow = 5 * time.Minute

	previewLen = 50
)

// Path labels where a message came from.
type Path string

const (
	PathSocket Path = "socket"
	PathHTTP   Path = "http"
	PathSystem Path = "system"
)

type SendInput struct {
	ConversationID string
	Content        string
	ContentType    string
	Attachments    []string
}

// Send validates, authorizes and persists a message, then broadcasts it to the
// room (sender included) and notifies authorized identities outside the room.
// Nothing is broadcast when persistence fails.
func (h *Hub) Send(ctx context.Context, sender models.Identity, in SendInput, path Path) (*models.Message, error) {
	if in.Content == "" {
		return nil, validationf("content is required")
	}
	conv, err := h.Access.Conversation(ctx, sender, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if in.ContentType == "" {
		in.ContentType = "text"
	}

	msg, err := h.Store.InsertMessage(ctx, storage.NewMessage{
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		SenderType:     sender.SenderKind(),
		Content:        in.Content,
		ContentType:    in.ContentType,
		AttachmentIDs:  in.Attachments,
	})
	if err != nil {
		h.Log.Error("persist message", "conversation_id", conv.ID, "sender_id", sender.ID, "err", err)
		return nil, persistence("insert message", err)
	}
	metrics.MessagesSent.WithLabelValues(string(path)).Inc()

	h.broadcast(conv.ID, nil, wire.EventNewMessage, msg)
	h.notifyNewMessage(ctx, conv, msg, sender)
	return msg, nil
}

// SendSystem posts a system message into a conversation on behalf of actor and
// broadcasts it to the room. No access check and no notifications: it is
// always a side effect of an operation that was already authorized.
func (h *Hub) SendSystem(ctx context.Context, conversationID string, actor models.Identity, content string) (*models.Message, error) {
	msg, err := h.Store.InsertMessage(ctx, storage.NewMessage{
		ConversationID: conversationID,
		SenderID:       actor.ID,
		SenderType:     models.SenderSystem,
		Content:        content,
		ContentType:    "text",
	})
	if err != nil {
		return nil, persistence("insert system message", err)
	}
	metrics.MessagesSent.WithLabelValues(string(PathSystem)).Inc()
	h.broadcast(conversationID, nil, wire.EventNewMessage, msg)
	return msg, nil
}

func (h *Hub) notifyNewMessage(ctx context.Context, conv *models.Conversation, msg *models.Message, sender models.Identity) {
	audience, err := h.Access.Audience(ctx, conv)
	if err != nil {
		h.Log.Warn("resolve notification audience", "conversation_id", conv.ID, "err", err)
		return
	}
	targets := make([]string, 0, len(audience))
	for _, uid := range audience {
		if uid == sender.ID || h.Registry.IsSubscribed(uid, conv.ID) {
			continue
		}
		targets = append(targets, uid)
	}
	if len(targets) == 0 {
		return
	}
	h.Notifier.Notify(targets, wire.NewMessageNotice{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		Preview:        Preview(msg.Content),
		Sender:         models.Sender{ID: sender.ID, Name: sender.DisplayName, Role: sender.Role},
		Timestamp:      msg.CreatedAt,
	})
}

// Preview truncates content to its first 50 characters, adding an ellipsis
// when anything was cut.
func Preview(content string) string {
	r := []rune(content)
	if len(r) <= previewLen {
		return content
	}
	return string(r[:previewLen]) + "..."
}

// DeleteOrRedact lets the original sender remove a message: hard delete while
// it is younger than DeleteWindow, redaction afterwards. A missing message and
// someone else's message both report false.
func (h *Hub) DeleteOrRedact(ctx context.Context, messageID string, requester models.Identity) (bool, error) {
	msg, err := h.Store.GetMessage(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, persistence("get message", err)
	}
	if msg.SenderID != requester.ID {
		return false, nil
	}

	if h.Now().Sub(msg.CreatedAt) < DeleteWindow {
		err = h.Store.DeleteMessage(ctx, messageID)
	} else {
		err = h.Store.RedactMessage(ctx, messageID, RedactionMarker)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, persistence("remove message", err)
	}
	return true, nil
}
