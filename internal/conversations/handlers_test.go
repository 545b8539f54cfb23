package conversations

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ageniuscoder/caseline/backend/internal/auth"
	"github.com/ageniuscoder/caseline/backend/internal/chat"
	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/ageniuscoder/caseline/backend/internal/storage/storagetest"
	"github.com/ageniuscoder/caseline/backend/internal/wire"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type env struct {
	t      *testing.T
	router *gin.Engine
	hub    *chat.Hub
	store  *storage.SQLStore

	owner, spec, admin, outsider models.Identity
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := storagetest.NewSQLite(t)
	e := &env{
		t:        t,
		store:    s,
		owner:    storagetest.User(t, s, "Ana", models.RoleUser),
		spec:     storagetest.User(t, s, "Bo", models.RoleSpecialist),
		admin:    storagetest.User(t, s, "Cy", models.RoleAdmin),
		outsider: storagetest.User(t, s, "Dee", models.RoleUser),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.hub = chat.NewHub(s, logger)
	e.router = gin.New()
	Register(e.router.Group("/api", auth.Authenticator{Secret: secret, Users: s}.Middleware()), e.hub, logger)
	return e
}

func (e *env) do(method, path string, who models.Identity, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	tok, err := auth.NewToken(secret, who.ID, 5)
	require.NoError(e.t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestCreateConversationNotifiesParticipants(t *testing.T) {
	e := newEnv(t)
	a := chat.NewClient(e.hub, nil, e.owner, 8)
	e.hub.Connect(context.Background(), a)
	d := chat.NewClient(e.hub, nil, e.outsider, 8)
	e.hub.Connect(context.Background(), d)

	w := e.do(http.MethodPost, "/api/conversations", e.owner, gin.H{
		"title":        "Paperwork",
		"participants": []string{e.outsider.ID, e.owner.ID, e.outsider.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Conversation models.Conversation `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	conv := resp.Conversation
	assert.Equal(t, "Paperwork", conv.Title)

	assert.True(t, e.hub.Registry.IsSubscribed(e.owner.ID, conv.ID))
	assert.False(t, e.hub.Registry.IsSubscribed(e.outsider.ID, conv.ID))
	assert.Empty(t, a.Send)

	require.Len(t, d.Send, 1)
	var f wire.Frame
	require.NoError(t, json.Unmarshal(<-d.Send, &f))
	require.Equal(t, wire.EventNotification, f.Event)
	env, err := wire.DecodeEnvelope(f.Data)
	require.NoError(t, err)
	nc := env.(wire.NewConversationNotice)
	assert.Equal(t, conv.ID, nc.Conversation.ID)
	assert.Equal(t, e.owner.ID, nc.CreatedBy.ID)

	// Both participants now pass the access check; others do not.
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/conversations/"+conv.ID, e.outsider, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/api/conversations/"+conv.ID, e.spec, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/api/conversations/"+conv.ID, e.admin, nil).Code)

	senders, err := e.store.ListConversationSenders(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{e.owner.ID, e.outsider.ID}, senders)
}

func TestCreateCaseConversationRequiresCaseAccess(t *testing.T) {
	e := newEnv(t)
	cs := storagetest.Case(t, e.store, e.owner, e.spec.ID)

	w := e.do(http.MethodPost, "/api/conversations", e.outsider, gin.H{"caseId": cs.ID, "participants": []string{e.owner.ID}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/conversations", e.spec, gin.H{"caseId": "missing", "participants": []string{e.owner.ID}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/api/conversations", e.spec, gin.H{"caseId": cs.ID, "participants": []string{e.owner.ID}})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(http.MethodPost, "/api/conversations", e.spec, gin.H{"title": "no participants"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCaseConversationRejectsOutsideParticipants(t *testing.T) {
	e := newEnv(t)
	cs := storagetest.Case(t, e.store, e.owner, e.spec.ID)
	d := chat.NewClient(e.hub, nil, e.outsider, 8)
	e.hub.Connect(context.Background(), d)

	w := e.do(http.MethodPost, "/api/conversations", e.spec, gin.H{"caseId": cs.ID, "participants": []string{e.owner.ID, e.outsider.ID}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), e.outsider.ID)
	assert.Empty(t, d.Send)

	w = e.do(http.MethodPost, "/api/conversations", e.spec, gin.H{"caseId": cs.ID, "participants": []string{"ghost"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	list, err := e.store.ListUserConversations(context.Background(), e.owner.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	w = e.do(http.MethodPost, "/api/conversations", e.spec, gin.H{"caseId": cs.ID, "participants": []string{e.owner.ID, e.admin.ID}})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestListAndGetConversations(t *testing.T) {
	e := newEnv(t)
	cs := storagetest.Case(t, e.store, e.owner, e.spec.ID)
	_, err := e.hub.Send(context.Background(), e.owner, chat.SendInput{ConversationID: cs.Conversation, Content: "hi"}, chat.PathHTTP)
	require.NoError(t, err)

	w := e.do(http.MethodGet, "/api/conversations", e.spec, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, 1, list.Conversations[0].UnreadCount)

	w = e.do(http.MethodGet, "/api/conversations", e.outsider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"conversations":[]}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/conversations/"+cs.Conversation, e.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"typing":[]`)
}
