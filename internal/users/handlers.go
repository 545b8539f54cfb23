package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ageniuscoder/caseline/backend/internal/auth"
	"github.com/ageniuscoder/caseline/backend/internal/config"
	"github.com/ageniuscoder/caseline/backend/internal/httpx"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/ageniuscoder/caseline/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

type Service struct {
	Users     storage.Store
	JWTSecret string
	JWTTTLMin int
	Log       *slog.Logger
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func RegisterPublic(rg *gin.RouterGroup, store storage.Store, cfg config.Config, logger *slog.Logger) {
	s := Service{
		Users:     store,
		JWTSecret: cfg.JWTSecret,
		JWTTTLMin: cfg.JWTTTLMin,
		Log:       logger,
	}
	rg.POST("/login", s.login)
}

func (s Service) login(c *gin.Context) {
	var req loginReq
	if !utils.BindJSON(c, &req) {
		return
	}

	u, err := s.Users.GetUserByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if errors.Is(err, storage.ErrNotFound) {
		httpx.Err(c, http.StatusUnauthorized, "Invalid Credentials")
		return
	}
	if err != nil {
		s.Log.Error("login lookup", "err", err)
		httpx.Err(c, http.StatusInternalServerError, "login failed")
		return
	}

	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		httpx.Err(c, http.StatusUnauthorized, "Invalid Credentials")
		return
	}
	tok, err := auth.NewToken(s.JWTSecret, u.ID, s.JWTTTLMin)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "Token Generation Failed")
		return
	}
	httpx.OK(c, gin.H{"token": tok, "user": u.Identity})
}
