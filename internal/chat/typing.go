package chat

import (
	"sync"
	"time"
)

// TypingTTL is how long a typing signal stays active without a follow-up.
const TypingTTL = 3 * time.Second

type typingKey struct {
	conversationID string
	userID         string
}

// TypingTracker is the in-memory view of who is typing where. Nothing here is
// persisted; entries expire on their own after TypingTTL.
type TypingTracker struct {
	mu     sync.Mutex
	now    func() time.Time
	active map[typingKey]time.Time
}

func NewTypingTracker(now func() time.Time) *TypingTracker {
	return &TypingTracker{now: now, active: make(map[typingKey]time.Time)}
}

func (t *TypingTracker) Set(conversationID, userID string, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := typingKey{conversationID, userID}
	if typing {
		t.active[k] = t.now().Add(TypingTTL)
		return
	}
	delete(t.active, k)
}

// Active lists the users currently typing in a conversation.
func (t *TypingTracker) Active(conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var out []string
	for k, exp := range t.active {
		if !now.Before(exp) {
			delete(t.active, k)
			continue
		}
		if k.conversationID == conversationID {
			out = append(out, k.userID)
		}
	}
	return out
}

// Clear removes the user's unexpired entries, limited to one conversation when
// conversationID is set, and returns the conversations that had one.
func (t *TypingTracker) Clear(userID, conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var out []string
	for k, exp := range t.active {
		if k.userID != userID || (conversationID != "" && k.conversationID != conversationID) {
			continue
		}
		delete(t.active, k)
		if now.Before(exp) {
			out = append(out, k.conversationID)
		}
	}
	return out
}
