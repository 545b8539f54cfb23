package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ageniuscoder/caseline/backend/internal/models"
)

type Kind string

const (
	KindNewMessage      Kind = "new_message"
	KindCaseUpdate      Kind = "case_update"
	KindNewConversation Kind = "new_conversation"
)

// Envelope is a notification addressed to one identity. The set of
// implementations is closed: NewMessageNotice, CaseUpdateNotice and
// NewConversationNotice.
type Envelope interface {
	Kind() Kind
	envelope()
}

type NewMessageNotice struct {
	ConversationID string        `json:"conversationId"`
	MessageID      string        `json:"messageId"`
	Preview        string        `json:"preview"`
	Sender         models.Sender `json:"sender"`
	Timestamp      time.Time     `json:"timestamp"`
}

type Change struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type CaseUpdate struct {
	Status            string        `json:"status"`
	UpdatedBy         models.Sender `json:"updatedBy"`
	Timestamp         time.Time     `json:"timestamp"`
	StatusChanged     *Change       `json:"statusChanged,omitempty"`
	AssignmentChanged *Change       `json:"assignmentChanged,omitempty"`
	PriorityChanged   *Change       `json:"priorityChanged,omitempty"`
}

type CaseUpdateNotice struct {
	CaseID     string     `json:"caseId"`
	CaseNumber int64      `json:"caseNumber"`
	Update     CaseUpdate `json:"update"`
}

type NewConversationNotice struct {
	Conversation models.Conversation `json:"conversation"`
	CreatedBy    models.Sender       `json:"createdBy"`
	Timestamp    time.Time           `json:"timestamp"`
}

func (NewMessageNotice) Kind() Kind      { return KindNewMessage }
func (CaseUpdateNotice) Kind() Kind      { return KindCaseUpdate }
func (NewConversationNotice) Kind() Kind { return KindNewConversation }

func (NewMessageNotice) envelope()      {}
func (CaseUpdateNotice) envelope()      {}
func (NewConversationNotice) envelope() {}

// MarshalEnvelope flattens the envelope with its "type" tag.
func MarshalEnvelope(e Envelope) ([]byte, error) {
	var body any
	switch v := e.(type) {
	case NewMessageNotice:
		body = struct {
			Type Kind `json:"type"`
			NewMessageNotice
		}{v.Kind(), v}
	case CaseUpdateNotice:
		body = struct {
			Type Kind `json:"type"`
			CaseUpdateNotice
		}{v.Kind(), v}
	case NewConversationNotice:
		body = struct {
			Type Kind `json:"type"`
			NewConversationNotice
		}{v.Kind(), v}
	default:
		return nil, fmt.Errorf("unknown envelope %T", e)
	}
	return json.Marshal(body)
}

// DecodeEnvelope is the consumer side of MarshalEnvelope.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case KindNewMessage:
		var v NewMessageNotice
		err := json.Unmarshal(b, &v)
		return v, err
	case KindCaseUpdate:
		var v CaseUpdateNotice
		err := json.Unmarshal(b, &v)
		return v, err
	case KindNewConversation:
		var v NewConversationNotice
		err := json.Unmarshal(b, &v)
		return v, err
	}
	return nil, fmt.Errorf("unknown envelope type %q", head.Type)
}

// EncodeNotification wraps an envelope in a notification frame.
func EncodeNotification(e Envelope) ([]byte, error) {
	raw, err := MarshalEnvelope(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: EventNotification, Data: raw})
}
