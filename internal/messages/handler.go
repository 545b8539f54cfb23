package messages

import (
	"log/slog"
	"net/http"

	"github.com/ageniuscoder/caseline/backend/internal/auth"
	"github.com/ageniuscoder/caseline/backend/internal/chat"
	"github.com/ageniuscoder/caseline/backend/internal/httpx"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/ageniuscoder/caseline/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service is the HTTP fallback for clients without a live socket. Every
// handler goes through the hub so both paths produce the same side effects.
type Service struct {
	Hub *chat.Hub
	Log *slog.Logger
}

type sendReq struct {
	Content     string   `json:"content" binding:"required"`
	ContentType string   `json:"contentType"`
	Attachments []string `json:"attachments"`
}

// documentReq registers a stored file so messages can attach it by id.
type documentReq struct {
	FileName string `json:"fileName" binding:"required"`
	FileType string `json:"fileType" binding:"required"`
	FileURL  string `json:"fileUrl"`
}

type pageReq struct {
	Page     int `form:"page"`
	PageSize int `form:"pageSize"`
}

func (q *pageReq) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
}

func Register(rg *gin.RouterGroup, hub *chat.Hub, logger *slog.Logger) {
	s := Service{
		Hub: hub,
		Log: logger,
	}
	rg.GET("/conversations/:id/messages", s.list)
	rg.POST("/conversations/:id/messages", s.send)
	rg.POST("/conversations/:id/read", s.markRead)
	rg.GET("/messaging/unread", s.unread)
	rg.DELETE("/messages/:id", s.remove)
	rg.POST("/documents", s.createDocument)
}

func (s Service) send(c *gin.Context) {
	ident := auth.MustIdentity(c)
	var req sendReq
	if !utils.BindJSON(c, &req) {
		return
	}

	msg, err := s.Hub.Send(c.Request.Context(), ident, chat.SendInput{
		ConversationID: c.Param("id"),
		Content:        req.Content,
		ContentType:    req.ContentType,
		Attachments:    req.Attachments,
	}, chat.PathHTTP)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.Created(c, gin.H{"message": msg})
}

// list returns a page of messages in ascending order and marks the
// conversation read for the caller, broadcasting to the whole room.
func (s Service) list(c *gin.Context) {
	ident := auth.MustIdentity(c)
	ctx := c.Request.Context()
	var q pageReq
	_ = c.BindQuery(&q)
	q.normalize()

	conv, err := s.Hub.Access.Conversation(ctx, ident, c.Param("id"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	list, err := s.Hub.Store.ListMessages(ctx, conv.ID, q.PageSize, (q.Page-1)*q.PageSize)
	if err != nil {
		s.Log.Error("list messages", "conversation_id", conv.ID, "err", err)
		httpx.Err(c, http.StatusInternalServerError, "failed to retrieve messages")
		return
	}
	if _, err := s.Hub.MarkRead(ctx, ident, conv.ID, nil); err != nil {
		s.Log.Warn("mark read after fetch", "conversation_id", conv.ID, "err", err)
	}
	httpx.OK(c, gin.H{"messages": list, "page": q.Page, "pageSize": q.PageSize})
}

func (s Service) markRead(c *gin.Context) {
	ident := auth.MustIdentity(c)
	n, err := s.Hub.MarkRead(c.Request.Context(), ident, c.Param("id"), nil)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"message": "marked as read", "count": n})
}

func (s Service) unread(c *gin.Context) {
	ident := auth.MustIdentity(c)
	n, err := s.Hub.Store.UnreadCount(c.Request.Context(), ident.ID)
	if err != nil {
		s.Log.Error("unread count", "user_id", ident.ID, "err", err)
		httpx.Err(c, http.StatusInternalServerError, "failed to retrieve unread message count")
		return
	}
	httpx.OK(c, gin.H{"unreadCount": n})
}

func (s Service) remove(c *gin.Context) {
	ident := auth.MustIdentity(c)
	ok, err := s.Hub.DeleteOrRedact(c.Request.Context(), c.Param("id"), ident)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	if !ok {
		httpx.Err(c, http.StatusNotFound, "message not found or you do not have permission to delete it")
		return
	}
	httpx.OK(c, gin.H{"message": "message deleted or redacted"})
}

func (s Service) createDocument(c *gin.Context) {
	ident := auth.MustIdentity(c)
	var req documentReq
	if !utils.BindJSON(c, &req) {
		return
	}
	doc, err := s.Hub.Store.CreateDocument(c.Request.Context(), storage.NewDocument{
		OwnerID:  ident.ID,
		FileName: req.FileName,
		FileType: req.FileType,
		FileURL:  req.FileURL,
	})
	if err != nil {
		s.Log.Error("create document", "user_id", ident.ID, "err", err)
		httpx.Err(c, http.StatusInternalServerError, "failed to register document")
		return
	}
	httpx.Created(c, gin.H{"document": doc})
}
