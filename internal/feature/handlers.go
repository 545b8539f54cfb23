package feature

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ageniuscoder/caseline/backend/internal/chat"
	"github.com/ageniuscoder/caseline/backend/internal/httpx"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/gin-gonic/gin"
)

type Service struct {
	Users    storage.Store
	Sessions *chat.Registry
	Log      *slog.Logger
}

func Register(rg *gin.RouterGroup, hub *chat.Hub, logger *slog.Logger) {
	s := Service{
		Users:    hub.Store,
		Sessions: hub.Registry,
		Log:      logger,
	}
	rg.GET("/users/:id/presence", s.getPresence)
}

// getPresence reports whether the user currently holds a live connection.
// Presence is process-local, like the registry it reads.
func (s Service) getPresence(c *gin.Context) {
	userID := c.Param("id")
	ident, err := s.Users.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.Err(c, http.StatusNotFound, "user not found")
		} else {
			s.Log.Error("get presence", "user_id", userID, "err", err)
			httpx.Err(c, http.StatusInternalServerError, "database error")
		}
		return
	}

	httpx.OK(c, gin.H{"success": true, "user": ident, "online": s.Sessions.IsConnected(ident.ID)})
}
