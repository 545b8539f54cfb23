// Package wire defines the JSON frames exchanged over the realtime socket.
package wire

import (
	"encoding/json"
	"time"
)

// Inbound events (client -> server).
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventReadMessages      = "read_messages"
	EventTyping            = "typing"
)

// Outbound events (server -> client).
const (
	EventNewMessage      = "new_message"
	EventMessagesRead    = "messages_read"
	EventTypingIndicator = "typing_indicator"
	EventNotification    = "notification"
	EventError           = "error"
)

// Frame is one socket message: an event tag and its payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an outbound frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// ConversationRef is the payload of join/leave. Clients may send either a bare
// JSON string or {"conversationId": "..."}.
type ConversationRef struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

func (r *ConversationRef) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		r.ConversationID = id
		return nil
	}
	type plain ConversationRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = ConversationRef(p)
	return nil
}

type SendMessage struct {
	ConversationID string   `json:"conversationId" validate:"required"`
	Content        string   `json:"content" validate:"required"`
	ContentType    string   `json:"contentType" validate:"required"`
	Attachments    []string `json:"attachments"`
}

type ReadMessages struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type Typing struct {
	ConversationID string `json:"conversationId" validate:"required"`
	IsTyping       bool   `json:"isTyping"`
}

type MessagesRead struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	Timestamp      time.Time `json:"timestamp"`
}

type TypingIndicator struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	IsTyping       bool      `json:"isTyping"`
	Timestamp      time.Time `json:"timestamp"`
}

type Error struct {
	Message string `json:"message"`
}
