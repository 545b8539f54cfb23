package profile

import (
	"net/http"
	"sort"

	"github.com/ageniuscoder/caseline/backend/internal/auth"
	"github.com/ageniuscoder/caseline/backend/internal/chat"
	"github.com/ageniuscoder/caseline/backend/internal/httpx"
	"github.com/gin-gonic/gin"
)

type Service struct {
	Sessions *chat.Registry
}

func Register(rg *gin.RouterGroup, hub *chat.Hub) {
	s := Service{
		Sessions: hub.Registry,
	}
	rg.GET("/me", s.getMe)
}

// getMe returns the caller's identity together with its live socket state.
func (s Service) getMe(c *gin.Context) {
	ident := auth.MustIdentity(c)
	if ident.ID == "" {
		httpx.Err(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	rooms := s.Sessions.Rooms(ident.ID)
	sort.Strings(rooms)
	httpx.OK(c, gin.H{
		"user":      ident,
		"connected": s.Sessions.IsConnected(ident.ID),
		"rooms":     rooms,
	})
}
