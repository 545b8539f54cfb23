package chat

import (
	"context"
	"errors"

	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
)

// AccessStore is the slice of the data collaborator the oracle reads.
type AccessStore interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	GetCase(ctx context.Context, id string) (*models.Case, error)
	HasSentMessage(ctx context.Context, conversationID, userID string) (bool, error)
	ListConversationSenders(ctx context.Context, conversationID string) ([]string, error)
	ListUserIDsByRole(ctx context.Context, role models.Role) ([]string, error)
}

// Oracle decides who may read and write a conversation. It holds no state and
// never caches: every answer is derived from the store at call time.
//
// Case conversations admit the case owner, the assigned specialist and any
// admin. Conversations without a case admit anyone who has sent a message in it.
type Oracle struct {
	Store AccessStore
}

func (o *Oracle) Authorize(ctx context.Context, ident models.Identity, conversationID string) (bool, error) {
	_, err := o.Conversation(ctx, ident, conversationID)
	if errors.Is(err, ErrAccessDenied) {
		return false, nil
	}
	return err == nil, err
}

// Conversation loads the conversation if ident may access it. A missing
// conversation is reported as ErrAccessDenied so existence does not leak.
func (o *Oracle) Conversation(ctx context.Context, ident models.Identity, conversationID string) (*models.Conversation, error) {
	if conversationID == "" {
		return nil, validationf("conversation id is required")
	}
	conv, err := o.Store.GetConversation(ctx, conversationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, persistence("get conversation", err)
	}

	if conv.HasCase() {
		cs, err := o.Store.GetCase(ctx, conv.CaseID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAccessDenied
		}
		if err != nil {
			return nil, persistence("get case", err)
		}
		if ident.IsAdmin() || ident.ID == cs.OwnerID || (cs.AssignedTo != "" && ident.ID == cs.AssignedTo) {
			return conv, nil
		}
		return nil, ErrAccessDenied
	}

	sent, err := o.Store.HasSentMessage(ctx, conv.ID, ident.ID)
	if err != nil {
		return nil, persistence("check participation", err)
	}
	if !sent {
		return nil, ErrAccessDenied
	}
	return conv, nil
}

// Audience lists every identity currently authorized for the conversation.
func (o *Oracle) Audience(ctx context.Context, conv *models.Conversation) ([]string, error) {
	if !conv.HasCase() {
		return o.Store.ListConversationSenders(ctx, conv.ID)
	}
	cs, err := o.Store.GetCase(ctx, conv.CaseID)
	if err != nil {
		return nil, err
	}
	admins, err := o.Store.ListUserIDsByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return dedupe(append(cs.Participants(), admins...)), nil
}

func dedupe(ids []string) []string {
	seen := make(set, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
