// Package chatclient is a Go consumer of the caseline realtime socket.
package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/wire"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client owns one socket. Writes are serialized; Next must be called from a
// single goroutine.
type Client struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// Dial opens the socket at url (e.g. ws://host:8080/ws) with a bearer token.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, h)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return c.conn.Close()
}

func (c *Client) emit(event string, data any) error {
	frame, err := wire.Encode(event, data)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) Join(conversationID string) error {
	return c.emit(wire.EventJoinConversation, wire.ConversationRef{ConversationID: conversationID})
}

func (c *Client) Leave(conversationID string) error {
	return c.emit(wire.EventLeaveConversation, wire.ConversationRef{ConversationID: conversationID})
}

func (c *Client) Send(conversationID, content string, attachments ...string) error {
	return c.emit(wire.EventSendMessage, wire.SendMessage{
		ConversationID: conversationID,
		Content:        content,
		ContentType:    "text",
		Attachments:    attachments,
	})
}

func (c *Client) MarkRead(conversationID string) error {
	return c.emit(wire.EventReadMessages, wire.ReadMessages{ConversationID: conversationID})
}

func (c *Client) SetTyping(conversationID string, typing bool) error {
	return c.emit(wire.EventTyping, wire.Typing{ConversationID: conversationID, IsTyping: typing})
}

// Event is one decoded outbound frame. Exactly one payload field is set,
// matching Name.
type Event struct {
	Name         string
	Message      *models.Message
	Read         *wire.MessagesRead
	Typing       *wire.TypingIndicator
	Notification wire.Envelope
	Err          *wire.Error
}

// Next blocks for the next frame. Unknown events are returned with only Name set.
func (c *Client) Next() (Event, error) {
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return Event{}, err
	}
	return DecodeEvent(raw)
}

func DecodeEvent(raw []byte) (Event, error) {
	var f wire.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}
	ev := Event{Name: f.Event}
	var err error
	switch f.Event {
	case wire.EventNewMessage:
		ev.Message = new(models.Message)
		err = json.Unmarshal(f.Data, ev.Message)
	case wire.EventMessagesRead:
		ev.Read = new(wire.MessagesRead)
		err = json.Unmarshal(f.Data, ev.Read)
	case wire.EventTypingIndicator:
		ev.Typing = new(wire.TypingIndicator)
		err = json.Unmarshal(f.Data, ev.Typing)
	case wire.EventNotification:
		ev.Notification, err = wire.DecodeEnvelope(f.Data)
	case wire.EventError:
		ev.Err = new(wire.Error)
		err = json.Unmarshal(f.Data, ev.Err)
	}
	if err != nil {
		return Event{}, fmt.Errorf("decode %s: %w", f.Event, err)
	}
	return ev, nil
}

// NotificationHandler has one method per envelope kind.
type NotificationHandler interface {
	NewMessage(wire.NewMessageNotice)
	CaseUpdate(wire.CaseUpdateNotice)
	NewConversation(wire.NewConversationNotice)
}

// Route hands env to the handler method for its kind.
func Route(env wire.Envelope, h NotificationHandler) error {
	switch v := env.(type) {
	case wire.NewMessageNotice:
		h.NewMessage(v)
	case wire.CaseUpdateNotice:
		h.CaseUpdate(v)
	case wire.NewConversationNotice:
		h.NewConversation(v)
	default:
		return fmt.Errorf("unhandled envelope %T", env)
	}
	return nil
}
