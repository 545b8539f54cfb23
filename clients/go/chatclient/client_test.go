package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/wire"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer checks the bearer token, replies to a join with a notification,
// and records every inbound frame.
func echoServer(t *testing.T, inbound chan<- wire.Frame) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f wire.Frame
			if json.Unmarshal(raw, &f) != nil {
				return
			}
			inbound <- f
			if f.Event == wire.EventJoinConversation {
				out, _ := wire.EncodeNotification(wire.NewMessageNotice{
					ConversationID: "c1", MessageID: "m1", Preview: "hello",
					Sender: models.Sender{ID: "u2", Name: "Bo", Role: models.RoleSpecialist},
				})
				_ = conn.WriteMessage(websocket.TextMessage, out)
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type recorder struct {
	newMessages []wire.NewMessageNotice
	cases       []wire.CaseUpdateNotice
	convs       []wire.NewConversationNotice
}

func (r *recorder) NewMessage(n wire.NewMessageNotice)           { r.newMessages = append(r.newMessages, n) }
func (r *recorder) CaseUpdate(n wire.CaseUpdateNotice)           { r.cases = append(r.cases, n) }
func (r *recorder) NewConversation(n wire.NewConversationNotice) { r.convs = append(r.convs, n) }

func TestDialJoinAndReceiveNotification(t *testing.T) {
	inbound := make(chan wire.Frame, 4)
	srv := echoServer(t, inbound)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(srv), "tok")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Join("c1"))
	f := <-inbound
	assert.Equal(t, wire.EventJoinConversation, f.Event)
	var ref wire.ConversationRef
	require.NoError(t, json.Unmarshal(f.Data, &ref))
	assert.Equal(t, "c1", ref.ConversationID)

	ev, err := c.Next()
	require.NoError(t, err)
	require.Equal(t, wire.EventNotification, ev.Name)

	var rec recorder
	require.NoError(t, Route(ev.Notification, &rec))
	require.Len(t, rec.newMessages, 1)
	assert.Equal(t, "hello", rec.newMessages[0].Preview)
	assert.Empty(t, rec.cases)
	assert.Empty(t, rec.convs)
}

func TestDialRejectsBadToken(t *testing.T) {
	srv := echoServer(t, make(chan wire.Frame, 1))
	defer srv.Close()

	_, err := Dial(context.Background(), wsURL(srv), "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSendFramesCarryRequiredFields(t *testing.T) {
	inbound := make(chan wire.Frame, 4)
	srv := echoServer(t, inbound)
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv), "tok")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send("c1", "hi", "d1"))
	f := <-inbound
	assert.Equal(t, wire.EventSendMessage, f.Event)
	var sm wire.SendMessage
	require.NoError(t, json.Unmarshal(f.Data, &sm))
	assert.Equal(t, wire.SendMessage{ConversationID: "c1", Content: "hi", ContentType: "text", Attachments: []string{"d1"}}, sm)

	require.NoError(t, c.SetTyping("c1", true))
	f = <-inbound
	assert.Equal(t, wire.EventTyping, f.Event)
}

func TestDecodeEvent(t *testing.T) {
	raw, err := wire.Encode(wire.EventTypingIndicator, wire.TypingIndicator{ConversationID: "c1", UserID: "u1", IsTyping: true})
	require.NoError(t, err)
	ev, err := DecodeEvent(raw)
	require.NoError(t, err)
	require.NotNil(t, ev.Typing)
	assert.True(t, ev.Typing.IsTyping)

	raw, err = wire.Encode(wire.EventError, wire.Error{Message: "access denied to conversation"})
	require.NoError(t, err)
	ev, err = DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "access denied to conversation", ev.Err.Message)

	raw, err = wire.EncodeNotification(wire.CaseUpdateNotice{CaseID: "k1", CaseNumber: 7,
		Update: wire.CaseUpdate{Status: "Open", StatusChanged: &wire.Change{From: "New", To: "Open"}}})
	require.NoError(t, err)
	ev, err = DecodeEvent(raw)
	require.NoError(t, err)
	cu, ok := ev.Notification.(wire.CaseUpdateNotice)
	require.True(t, ok)
	assert.Equal(t, int64(7), cu.CaseNumber)
	assert.Equal(t, "Open", cu.Update.StatusChanged.To)

	_, err = DecodeEvent([]byte(`{"event":"notification","data":{"type":"bogus"}}`))
	require.Error(t, err)

	ev, err = DecodeEvent([]byte(`{"event":"something_new"}`))
	require.NoError(t, err)
	assert.Equal(t, "something_new", ev.Name)
}

type transitions struct {
	mu  sync.Mutex
	got []bool
}

func (tr *transitions) emit(v bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.got = append(tr.got, v)
}

func (tr *transitions) snapshot() []bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]bool(nil), tr.got...)
}

func TestTypistGoesIdleAfterQuiet(t *testing.T) {
	var tr transitions
	ty := NewTypist(tr.emit)
	ty.Quiet = 30 * time.Millisecond

	ty.Keystroke()
	ty.Keystroke()
	ty.Keystroke()
	assert.Equal(t, []bool{true}, tr.snapshot())

	require.Eventually(t, func() bool { return !ty.Active() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true, false}, tr.snapshot())
}

func TestTypistSubmitStopsImmediately(t *testing.T) {
	var tr transitions
	ty := NewTypist(tr.emit)
	ty.Quiet = time.Hour

	ty.Keystroke()
	ty.Submit()
	ty.Submit()
	assert.Equal(t, []bool{true, false}, tr.snapshot())
	assert.False(t, ty.Active())
}
