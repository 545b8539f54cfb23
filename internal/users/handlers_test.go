package users

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
	"github.com/ageniuscoder/caseline/backend/internal/config"
	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/ageniuscoder/caseline/backend/internal/storage/storagetest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := storagetest.NewSQLite(t)
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	ident, err := s.CreateUser(context.Background(), storage.NewUser{
		Email: "ana@example.com", PasswordHash: hash, DisplayName: "Ana", Role: models.RoleSpecialist,
	})
	require.NoError(t, err)

	r := gin.New()
	cfg := config.Config{JWTSecret: "s", JWTTTLMin: 5}
	RegisterPublic(r.Group("/auth"), s, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	post := func(body any) *httptest.ResponseRecorder {
		b, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(gin.H{"email": "ANA@example.com", "password": "hunter2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string          `json:"token"`
		User  models.Identity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, *ident, resp.User)
	claims, err := auth.ParseToken("s", resp.Token)
	require.NoError(t, err)
	assert.Equal(t, ident.ID, claims.UserID)

	assert.Equal(t, http.StatusUnauthorized, post(gin.H{"email": "ana@example.com", "password": "nope"}).Code)
	assert.Equal(t, http.StatusUnauthorized, post(gin.H{"email": "bo@example.com", "password": "hunter2"}).Code)
	assert.Equal(t, http.StatusBadRequest, post(gin.H{"email": "not-an-email", "password": "x"}).Code)
}
