package chat

import (
	"sync"

	"github.com/ageniuscoder/caseline/backend/internal/metrics"
)

type set map[string]struct{}

type session struct {
	client *Client
	rooms  set
}

// Registry maps identities to their live connection and tracks which
// connections belong to which conversation room. All methods are safe for
// concurrent use; broadcast target selection reads a snapshot under the same lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session           // identity id -> current session
	rooms    map[string]map[*Client]struct{} // conversation id -> broadcast group
	joined   map[*Client]set                 // reverse index, includes superseded clients
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		rooms:    make(map[string]map[*Client]struct{}),
		joined:   make(map[*Client]set),
	}
}

// Register makes c the identity's connection. A previous connection is
// returned but not closed: it keeps its room memberships until it disconnects.
func (r *Registry) Register(c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prev *Client
	if s, ok := r.sessions[c.Identity.ID]; ok {
		prev = s.client
	}
	r.sessions[c.Identity.ID] = &session{client: c, rooms: make(set)}
	if _, ok := r.joined[c]; !ok {
		r.joined[c] = make(set)
	}
	r.updateGauges()
	return prev
}

// Unregister drops c from every room. The identity mapping is removed only
// when c is still the identity's current connection, so a superseded socket
// closing late cannot evict its replacement.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conv := range r.joined[c] {
		r.removeMember(conv, c)
	}
	delete(r.joined, c)

	current := false
	if s, ok := r.sessions[c.Identity.ID]; ok && s.client == c {
		delete(r.sessions, c.Identity.ID)
		current = true
	}
	r.updateGauges()
	return current
}

func (r *Registry) Resolve(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	if !ok {
		return nil, false
	}
	return s.client, true
}

func (r *Registry) IsConnected(userID string) bool {
	_, ok := r.Resolve(userID)
	return ok
}

// Subscribe enrolls c in the conversation's broadcast group. It reports
// whether c was not already a member.
func (r *Registry) Subscribe(c *Client, conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.joined[c]
	if !ok {
		rooms = make(set)
		r.joined[c] = rooms
	}
	_, already := rooms[conversationID]
	rooms[conversationID] = struct{}{}

	group, ok := r.rooms[conversationID]
	if !ok {
		group = make(map[*Client]struct{})
		r.rooms[conversationID] = group
	}
	group[c] = struct{}{}

	if s, ok := r.sessions[c.Identity.ID]; ok && s.client == c {
		s.rooms[conversationID] = struct{}{}
	}
	r.updateGauges()
	return !already
}

func (r *Registry) Unsubscribe(c *Client, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeMember(conversationID, c)
	r.updateGauges()
}

func (r *Registry) removeMember(conversationID string, c *Client) {
	if rooms, ok := r.joined[c]; ok {
		delete(rooms, conversationID)
	}
	if group, ok := r.rooms[conversationID]; ok {
		delete(group, c)
		if len(group) == 0 {
			delete(r.rooms, conversationID)
		}
	}
	if s, ok := r.sessions[c.Identity.ID]; ok && s.client == c {
		delete(s.rooms, conversationID)
	}
}

// IsSubscribed reports whether the identity's current connection is in the room.
func (r *Registry) IsSubscribed(userID, conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	if !ok {
		return false
	}
	_, in := s.rooms[conversationID]
	return in
}

// InRoom reports whether the given connection is in the room.
func (r *Registry) InRoom(c *Client, conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, in := r.rooms[conversationID][c]
	return in
}

// Rooms returns the conversations the identity's current connection is subscribed to.
func (r *Registry) Rooms(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		out = append(out, id)
	}
	return out
}

// Members is a snapshot of the room's broadcast group.
func (r *Registry) Members(conversationID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	group := r.rooms[conversationID]
	out := make([]*Client, 0, len(group))
	for c := range group {
		out = append(out, c)
	}
	return out
}

// Clear empties the registry and returns every connection it knew about.
func (r *Registry) Clear() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.joined))
	for c := range r.joined {
		out = append(out, c)
	}
	r.sessions = make(map[string]*session)
	r.rooms = make(map[string]map[*Client]struct{})
	r.joined = make(map[*Client]set)
	r.updateGauges()
	return out
}

// updateGauges must be called with mu held.
func (r *Registry) updateGauges() {
	subs := 0
	for _, group := range r.rooms {
		subs += len(group)
	}
	metrics.ConnectedIdentities.Set(float64(len(r.sessions)))
	metrics.RoomSubscriptions.Set(float64(subs))
}
