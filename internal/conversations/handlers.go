package conversations

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ageniuscoder/caseline/backend/internal/auth"
	"github.com/ageniuscoder/caseline/backend/internal/chat"
	"github.com/ageniuscoder/caseline/backend/internal/httpx"
	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/ageniuscoder/caseline/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

type Service struct {
	Hub *chat.Hub
	Log *slog.Logger
}

type createReq struct {
	Title        string   `json:"title" binding:"max=200"`
	CaseID       string   `json:"caseId"`
	Participants []string `json:"participants" binding:"required"`
}

func Register(rg *gin.RouterGroup, hub *chat.Hub, logger *slog.Logger) {
	s := Service{
		Hub: hub,
		Log: logger,
	}
	rg.GET("/conversations", s.listMine)
	rg.POST("/conversations", s.create)
	rg.GET("/conversations/:id", s.get)
}

func (s Service) listMine(c *gin.Context) {
	ident := auth.MustIdentity(c)

	list, err := s.Hub.Store.ListUserConversations(c.Request.Context(), ident.ID)
	if err != nil {
		s.Log.Error("list conversations", "user_id", ident.ID, "err", err)
		httpx.Err(c, http.StatusInternalServerError, "failed to fetch conversations")
		return
	}
	if list == nil {
		list = []models.ConversationSummary{}
	}
	httpx.OK(c, gin.H{"conversations": list})
}

func (s Service) get(c *gin.Context) {
	ident := auth.MustIdentity(c)
	conv, err := s.Hub.Access.Conversation(c.Request.Context(), ident, c.Param("id"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	typing := s.Hub.Typing.Active(conv.ID)
	if typing == nil {
		typing = []string{}
	}
	httpx.OK(c, gin.H{"conversation": conv, "typing": typing})
}

// create opens a multi-party conversation. The creator always takes part and
// the other participants get a new_conversation notification.
func (s Service) create(c *gin.Context) {
	ident := auth.MustIdentity(c)
	ctx := c.Request.Context()
	var req createReq
	if !utils.BindJSON(c, &req) {
		return
	}

	participants := []string{ident.ID}
	seen := map[string]bool{ident.ID: true}
	for _, p := range req.Participants {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		participants = append(participants, p)
	}

	if req.CaseID != "" {
		cs, err := s.Hub.Store.GetCase(ctx, req.CaseID)
		if errors.Is(err, storage.ErrNotFound) {
			httpx.Err(c, http.StatusNotFound, "case not found")
			return
		}
		if err != nil {
			s.Log.Error("get case", "case_id", req.CaseID, "err", err)
			httpx.Err(c, http.StatusInternalServerError, "failed to create conversation")
			return
		}
		if !ident.IsAdmin() && ident.ID != cs.OwnerID && ident.ID != cs.AssignedTo {
			httpx.Err(c, http.StatusForbidden, "access denied")
			return
		}
		for _, p := range participants {
			ok, err := s.caseMember(ctx, cs, p)
			if err != nil {
				s.Log.Error("check participant", "case_id", cs.ID, "user_id", p, "err", err)
				httpx.Err(c, http.StatusInternalServerError, "failed to create conversation")
				return
			}
			if !ok {
				httpx.Err(c, http.StatusBadRequest, "participant "+p+" is not part of this case")
				return
			}
		}
	}

	conv, err := s.Hub.Store.CreateConversation(ctx, storage.NewConversation{
		Title:        req.Title,
		CaseID:       req.CaseID,
		Participants: participants,
	})
	if err != nil {
		s.Log.Error("create conversation", "user_id", ident.ID, "err", err)
		httpx.Err(c, http.StatusBadRequest, "create conversation failed")
		return
	}

	if client, ok := s.Hub.Registry.Resolve(ident.ID); ok {
		s.Hub.Registry.Subscribe(client, conv.ID)
	}
	s.Hub.NotifyNewConversation(conv, participants, ident)
	httpx.Created(c, gin.H{"conversation": conv})
}

// caseMember reports whether userID may take part in a conversation on cs:
// the owner, the assignee or any admin.
func (s Service) caseMember(ctx context.Context, cs *models.Case, userID string) (bool, error) {
	if userID == cs.OwnerID || (cs.AssignedTo != "" && userID == cs.AssignedTo) {
		return true, nil
	}
	u, err := s.Hub.Store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}
