package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/ageniuscoder/caseline/backend/internal/metrics"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/ageniuscoder/caseline/backend/internal/wire"
	"github.com/go-playground/validator/v10"
)

// Hub is the realtime messaging core: one per process. It owns the session
// registry and coordinates access checks, persistence and fan-out for both the
// socket path and the HTTP fallback.
type Hub struct {
	Store    storage.Store
	Registry *Registry
	Access   *Oracle
	Notifier *Notifier
	Typing   *TypingTracker
	Log      *slog.Logger
	Now      func() time.Time

	validate *validator.Validate
	handlers map[string]handlerFunc
}

func NewHub(store storage.Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		Store:    store,
		Registry: NewRegistry(),
		Access:   &Oracle{Store: store},
		Log:      logger.With("component", "hub"),
		Now:      func() time.Time { return time.Now().UTC() },
		validate: validator.New(),
	}
	h.Notifier = &Notifier{Sessions: h.Registry, Log: h.Log}
	h.Typing = NewTypingTracker(func() time.Time { return h.Now() })
	h.handlers = dispatchTable()
	return h
}

// Run blocks until ctx is done and then tears down every connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Shutdown()
}

// Shutdown clears all registry state and closes every client's send queue.
func (h *Hub) Shutdown() {
	clients := h.Registry.Clear()
	for _, c := range clients {
		c.close()
	}
	h.Log.Info("hub stopped", "clients", len(clients))
}

// Connect registers c as its identity's connection and restores its room
// memberships from the conversations the identity takes part in.
func (h *Hub) Connect(ctx context.Context, c *Client) {
	if prev := h.Registry.Register(c); prev != nil {
		h.Log.Info("connection superseded", "user_id", c.Identity.ID)
	}
	h.Log.Info("client connected", "user_id", c.Identity.ID, "role", c.Identity.Role)
	h.resubscribe(ctx, c)
}

// Disconnect removes c from the registry and every room. Frames still queued
// for c are discarded.
func (h *Hub) Disconnect(c *Client) {
	ts := h.Now()
	for _, conv := range h.Typing.Clear(c.Identity.ID, "") {
		h.broadcast(conv, c, wire.EventTypingIndicator, wire.TypingIndicator{
			ConversationID: conv, UserID: c.Identity.ID, IsTyping: false, Timestamp: ts,
		})
	}
	h.Registry.Unregister(c)
	c.close()
	h.Log.Info("client disconnected", "user_id", c.Identity.ID)
}

// broadcast pushes an event to the room's current members, skipping except
// when it is set.
func (h *Hub) broadcast(conversationID string, except *Client, event string, data any) int {
	frame, err := wire.Encode(event, data)
	if err != nil {
		h.Log.Error("encode frame", "event", event, "err", err)
		return 0
	}
	n := 0
	for _, c := range h.Registry.Members(conversationID) {
		if c == except {
			continue
		}
		if c.emit(frame) {
			n++
		}
	}
	metrics.BroadcastFrames.WithLabelValues(event).Add(float64(n))
	return n
}

// emitError sends an error event to one client; the connection stays open.
func (h *Hub) emitError(c *Client, err error) {
	frame, encErr := wire.Encode(wire.EventError, wire.Error{Message: PublicMessage(err)})
	if encErr != nil {
		return
	}
	c.emit(frame)
}
