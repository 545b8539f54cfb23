package chat

import (
	"log/slog"

	"github.com/ageniuscoder/caseline/backend/internal/metrics"
	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/wire"
)

type resolver interface {
	Resolve(userID string) (*Client, bool)
}

// Notifier pushes envelopes to individual identities on the notification
// channel, outside of room broadcasts. Offline targets are dropped: there is
// no queue and no retry.
type Notifier struct {
	Sessions resolver
	Log      *slog.Logger
}

// Notify returns how many targets had a live connection that accepted the frame.
// Callers exclude the acting identity and identities already in the room.
func (n *Notifier) Notify(targets []string, env wire.Envelope) int {
	frame, err := wire.EncodeNotification(env)
	if err != nil {
		n.Log.Error("encode notification", "kind", env.Kind(), "err", err)
		return 0
	}
	kind := string(env.Kind())
	delivered := 0
	for _, uid := range dedupe(append([]string(nil), targets...)) {
		c, ok := n.Sessions.Resolve(uid)
		if !ok || !c.emit(frame) {
			metrics.Notifications.WithLabelValues(kind, "dropped").Inc()
			continue
		}
		metrics.Notifications.WithLabelValues(kind, "delivered").Inc()
		delivered++
	}
	return delivered
}

// NotifyCaseUpdate tells the case owner and assignee, minus the actor, that the
// case changed.
func (h *Hub) NotifyCaseUpdate(cs *models.Case, update wire.CaseUpdate, actorID string) int {
	return h.Notifier.Notify(without(cs.Participants(), actorID), wire.CaseUpdateNotice{
		CaseID:     cs.ID,
		CaseNumber: cs.Number,
		Update:     update,
	})
}

// NotifyNewConversation tells every participant but the creator about a new conversation.
func (h *Hub) NotifyNewConversation(conv *models.Conversation, participants []string, creator models.Identity) int {
	return h.Notifier.Notify(without(participants, creator.ID), wire.NewConversationNotice{
		Conversation: *conv,
		CreatedBy:    models.Sender{ID: creator.ID, Name: creator.DisplayName, Role: creator.Role},
		Timestamp:    conv.CreatedAt,
	})
}

func without(ids []string, exclude string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
