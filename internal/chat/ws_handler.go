package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/ageniuscoder/caseline/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow CORS for demo; tighten in prod.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterWS mounts GET /ws. The bearer credential is checked before the
// upgrade, so a bad token never reaches event handling.
// Auth works via:
// 1) Header: Authorization: Bearer <JWT>
// 2) Query:  ?token=<JWT>
func RegisterWS(rg *gin.RouterGroup, hub *Hub, authn auth.Authenticator, sendBuffer int) {
	rg.GET("/ws", func(c *gin.Context) {
		ident, err := authn.Authenticate(c.Request.Context(), auth.BearerToken(c.Request))
		if errors.Is(err, auth.ErrAuthentication) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			hub.Log.Error("authenticate socket", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		// The request context ends with the handler; the socket outlives it.
		ctx := context.WithoutCancel(c.Request.Context())
		client := NewClient(hub, conn, *ident, sendBuffer)
		hub.Connect(ctx, client)

		go client.writePump()
		go client.readPump(ctx)
	})
}
