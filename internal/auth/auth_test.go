package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type users map[string]models.Identity

func (u users) GetUser(_ context.Context, id string) (*models.Identity, error) {
	if id == "broken" {
		return nil, errors.New("connection refused")
	}
	ident, ok := u[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &ident, nil
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := NewToken("s", "u1", 5)
	require.NoError(t, err)

	claims, err := ParseToken("s", tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	_, err = ParseToken("other", tok)
	assert.Error(t, err)
}

func TestParseTokenRejectsEmptySubject(t *testing.T) {
	tok, err := NewToken("s", "", 5)
	require.NoError(t, err)
	_, err = ParseToken("s", tok)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)
}

func TestAuthenticate(t *testing.T) {
	a := Authenticator{Secret: "s", Users: users{"u1": {ID: "u1", Role: models.RoleSpecialist, DisplayName: "Bo"}}}
	ctx := context.Background()

	good, _ := NewToken("s", "u1", 5)
	ident, err := a.Authenticate(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSpecialist, ident.Role)

	expired, _ := NewToken("s", "u1", -1)
	_, err = a.Authenticate(ctx, expired)
	require.ErrorIs(t, err, ErrAuthentication)
	assert.Contains(t, err.Error(), "expired")

	unknown, _ := NewToken("s", "ghost", 5)
	_, err = a.Authenticate(ctx, unknown)
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = a.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrAuthentication)

	// A failing user lookup is not the caller's fault.
	broken, _ := NewToken("s", "broken", 5)
	_, err = a.Authenticate(ctx, broken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthentication)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
	assert.Equal(t, "q", BearerToken(r))
	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", BearerToken(r))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := Authenticator{Secret: "s", Users: users{"u1": {ID: "u1", Role: models.RoleUser}}}
	r := gin.New()
	r.GET("/me", a.Middleware(), func(c *gin.Context) {
		c.String(http.StatusOK, MustIdentity(c).ID)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, _ := NewToken("s", "u1", 5)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	tok, _ = NewToken("s", "broken", 5)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "hunter2"))
	assert.Error(t, CheckPassword(hash, "hunter3"))
}

