package httpx

import (
	"errors"
	"net/http"

	"github.com/ageniuscoder/caseline/backend/internal/auth"
	"github.com/ageniuscoder/caseline/backend/internal/chat"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/gin-gonic/gin"
)

func OK(c *gin.Context, v any) {
	c.JSON(200, v)
}

func Created(c *gin.Context, v any) {
	c.JSON(http.StatusCreated, v)
}

func Err(c *gin.Context, code int, msg any) {
	c.JSON(code, gin.H{"error": msg})
}

// Fail maps a hub or auth error onto its HTTP status.
func Fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		Err(c, http.StatusBadRequest, chat.PublicMessage(err))
	case errors.Is(err, chat.ErrAccessDenied):
		Err(c, http.StatusForbidden, chat.PublicMessage(err))
	case errors.Is(err, storage.ErrNotFound):
		Err(c, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrAuthentication):
		Err(c, http.StatusUnauthorized, err.Error())
	default:
		_ = c.Error(err)
		Err(c, http.StatusInternalServerError, chat.PublicMessage(err))
	}
}
