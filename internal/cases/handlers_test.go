package cases

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

	owner, spec, other, admin, outsider models.Identity
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
		other:    storagetest.User(t, s, "Eli", models.RoleSpecialist),
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

func (e *env) connect(ident models.Identity) *chat.Client {
	c := chat.NewClient(e.hub, nil, ident, 32)
	e.hub.Connect(context.Background(), c)
	return c
}

func frames(t *testing.T, c *chat.Client) []wire.Frame {
	t.Helper()
	var out []wire.Frame
	for {
		select {
		case b := <-c.Send:
			var f wire.Frame
			require.NoError(t, json.Unmarshal(b, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func caseNotices(t *testing.T, c *chat.Client) []wire.CaseUpdateNotice {
	t.Helper()
	var out []wire.CaseUpdateNotice
	for _, f := range frames(t, c) {
		if f.Event != wire.EventNotification {
			continue
		}
		env, err := wire.DecodeEnvelope(f.Data)
		require.NoError(t, err)
		if n, ok := env.(wire.CaseUpdateNotice); ok {
			out = append(out, n)
		}
	}
	return out
}

func decodeCase(t *testing.T, w *httptest.ResponseRecorder) models.Case {
	t.Helper()
	var resp struct {
		Case models.Case `json:"case"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Case
}

func TestCreateCasePostsSystemMessage(t *testing.T) {
	e := newEnv(t)
	a := e.connect(e.owner)

	w := e.do(http.MethodPost, "/api/cases", e.owner, gin.H{"issueType": "Billing", "issueDescription": "double charge"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cs := decodeCase(t, w)
	assert.Equal(t, int64(1), cs.Number)
	assert.Equal(t, "Medium", cs.Priority)
	require.NotEmpty(t, cs.Conversation)

	list, err := e.store.ListMessages(context.Background(), cs.Conversation, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, createdNotice, list[0].Content)
	assert.Equal(t, models.SenderSystem, list[0].SenderType)
	assert.True(t, list[0].Read)

	// The creator's live socket is put in the new room and sees the message.
	af := frames(t, a)
	require.Len(t, af, 1)
	assert.Equal(t, wire.EventNewMessage, af[0].Event)

	w = e.do(http.MethodPost, "/api/cases", e.owner, gin.H{"issueDescription": "no type"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusChangeNotifiesAndPostsMessage(t *testing.T) {
	e := newEnv(t)
	cs := storagetest.Case(t, e.store, e.owner, e.spec.ID)
	a := e.connect(e.owner)
	b := e.connect(e.spec)
	e.hub.Leave(a, cs.Conversation)

	w := e.do(http.MethodPatch, "/api/cases/"+cs.ID, e.spec, gin.H{"status": "InProgress", "priority": "High"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "InProgress", decodeCase(t, w).Status)

	notices := caseNotices(t, a)
	require.Len(t, notices, 1)
	u := notices[0].Update
	assert.Equal(t, cs.ID, notices[0].CaseID)
	assert.Equal(t, &wire.Change{From: "New", To: "InProgress"}, u.StatusChanged)
	assert.Equal(t, &wire.Change{From: "Medium", To: "High"}, u.PriorityChanged)
	assert.Nil(t, u.AssignmentChanged)
	assert.Equal(t, e.spec.ID, u.UpdatedBy.ID)

	// The actor gets the system message in the room but no notification.
	bf := frames(t, b)
	require.Len(t, bf, 1)
	assert.Equal(t, wire.EventNewMessage, bf[0].Event)
	var msg models.Message
	require.NoError(t, json.Unmarshal(bf[0].Data, &msg))
	assert.Equal(t, "Case status changed from New to InProgress", msg.Content)
}

func TestOwnerMayOnlyEscalate(t *testing.T) {
	e := newEnv(t)
	cs := storagetest.Case(t, e.store, e.owner, e.spec.ID)
	b := e.connect(e.spec)

	w := e.do(http.MethodPatch, "/api/cases/"+cs.ID, e.owner, gin.H{"status": "Closed", "isEscalated": true})
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeCase(t, w)
	assert.Equal(t, "New", got.Status)
	assert.True(t, got.IsEscalated)

	notices := caseNotices(t, b)
	require.Len(t, notices, 1)
	assert.Nil(t, notices[0].Update.StatusChanged)

	list, err := e.store.ListMessages(context.Background(), cs.Conversation, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReassignmentNotifiesBothSpecialists(t *testing.T) {
	e := newEnv(t)
	cs := storagetest.Case(t, e.store, e.owner, e.spec.ID)
	a := e.connect(e.owner)
	b := e.connect(e.spec)
	o := e.connect(e.other)

	w := e.do(http.MethodPatch, "/api/cases/"+cs.ID, e.admin, gin.H{"assignedTo": e.other.ID})
	require.Equal(t, http.StatusOK, w.Code)

	for _, c := range []*chat.Client{a, b, o} {
		notices := caseNotices(t, c)
		require.Len(t, notices, 1)
		assert.Equal(t, &wire.Change{From: e.spec.ID, To: e.other.ID}, notices[0].Update.AssignmentChanged)
	}
}

func TestNoopUpdateSendsNothing(t *testing.T) {
	e := newEnv(t)
	cs := storagetest.Case(t, e.store, e.owner, e.spec.ID)
	a := e.connect(e.owner)

	w := e.do(http.MethodPatch, "/api/cases/"+cs.ID, e.spec, gin.H{"status": "New"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, frames(t, a))
}

func TestCaseAccess(t *testing.T) {
	e := newEnv(t)
	cs := storagetest.Case(t, e.store, e.owner, e.spec.ID)

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/cases/"+cs.ID, e.owner, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/cases/"+cs.ID, e.spec, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/cases/"+cs.ID, e.admin, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/api/cases/"+cs.ID, e.outsider, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPatch, "/api/cases/"+cs.ID, e.other, gin.H{"status": "Closed"}).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/cases/missing", e.admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPatch, "/api/cases/"+cs.ID, e.spec, gin.H{"status": "Bogus"}).Code)
}
