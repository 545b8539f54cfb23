package cases

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ageniuscoder/caseline/backend/internal/auth"
	"github.com/ageniuscoder/caseline/backend/internal/chat"
	"github.com/ageniuscoder/caseline/backend/internal/httpx"
	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/ageniuscoder/caseline/backend/internal/utils"
	"github.com/ageniuscoder/caseline/backend/internal/wire"
	"github.com/gin-gonic/gin"
)

const createdNotice = "Case created. Please wait for a specialist to be assigned."

type Service struct {
	Hub *chat.Hub
	Log *slog.Logger
}

type createReq struct {
	IssueType        string `json:"issueType" binding:"required"`
	IssueDescription string `json:"issueDescription"`
	Priority         string `json:"priority" binding:"omitempty,oneof=Low Medium High Urgent"`
}

type updateReq struct {
	Status      *string `json:"status" binding:"omitempty,oneof=New Open InProgress Resolved Closed"`
	Priority    *string `json:"priority" binding:"omitempty,oneof=Low Medium High Urgent"`
	AssignedTo  *string `json:"assignedTo"`
	IsEscalated *bool   `json:"isEscalated"`
}

func Register(rg *gin.RouterGroup, hub *chat.Hub, logger *slog.Logger) {
	s := Service{
		Hub: hub,
		Log: logger,
	}
	rg.POST("/cases", s.create)
	rg.GET("/cases/:id", s.get)
	rg.PATCH("/cases/:id", s.update)
}

func canAccess(ident models.Identity, cs *models.Case) bool {
	return ident.IsAdmin() || ident.ID == cs.OwnerID || (cs.AssignedTo != "" && ident.ID == cs.AssignedTo)
}

func (s Service) load(c *gin.Context, ident models.Identity) (*models.Case, bool) {
	cs, err := s.Hub.Store.GetCase(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		httpx.Err(c, http.StatusNotFound, "case not found")
		return nil, false
	}
	if err != nil {
		s.Log.Error("get case", "case_id", c.Param("id"), "err", err)
		httpx.Err(c, http.StatusInternalServerError, "failed to retrieve case")
		return nil, false
	}
	if !canAccess(ident, cs) {
		httpx.Err(c, http.StatusForbidden, "access denied")
		return nil, false
	}
	return cs, true
}

func (s Service) get(c *gin.Context) {
	cs, ok := s.load(c, auth.MustIdentity(c))
	if !ok {
		return
	}
	httpx.OK(c, gin.H{"case": cs})
}

func (s Service) create(c *gin.Context) {
	ident := auth.MustIdentity(c)
	ctx := c.Request.Context()
	var req createReq
	if !utils.BindJSON(c, &req) {
		return
	}

	cs, err := s.Hub.Store.CreateCase(ctx, storage.NewCase{
		OwnerID:     ident.ID,
		IssueType:   req.IssueType,
		Description: req.IssueDescription,
		Priority:    req.Priority,
	})
	if err != nil {
		s.Log.Error("create case", "user_id", ident.ID, "err", err)
		httpx.Err(c, http.StatusInternalServerError, "failed to create case")
		return
	}

	if cs.Conversation != "" {
		if client, ok := s.Hub.Registry.Resolve(ident.ID); ok {
			s.Hub.Registry.Subscribe(client, cs.Conversation)
		}
		if _, err := s.Hub.SendSystem(ctx, cs.Conversation, ident, createdNotice); err != nil {
			s.Log.Warn("case created message", "case_id", cs.ID, "err", err)
		}
	}
	httpx.Created(c, gin.H{"case": cs})
}

// update applies the fields the caller's role may change, then notifies the
// other case participants. A status change also posts a system message; its
// failure does not fail the update.
func (s Service) update(c *gin.Context) {
	ident := auth.MustIdentity(c)
	ctx := c.Request.Context()
	existing, ok := s.load(c, ident)
	if !ok {
		return
	}
	var req updateReq
	if !utils.BindJSON(c, &req) {
		return
	}

	var u storage.CaseUpdate
	if ident.Role == models.RoleSpecialist || ident.IsAdmin() {
		if req.Status != nil && *req.Status != existing.Status {
			u.Status = req.Status
		}
		if req.Priority != nil && *req.Priority != existing.Priority {
			u.Priority = req.Priority
		}
		if req.AssignedTo != nil && *req.AssignedTo != existing.AssignedTo {
			u.AssignedTo = req.AssignedTo
		}
	}
	if req.IsEscalated != nil && *req.IsEscalated != existing.IsEscalated {
		u.IsEscalated = req.IsEscalated
	}
	if u.Empty() {
		httpx.OK(c, gin.H{"case": existing})
		return
	}

	updated, err := s.Hub.Store.UpdateCase(ctx, existing.ID, u)
	if err != nil {
		s.Log.Error("update case", "case_id", existing.ID, "err", err)
		httpx.Err(c, http.StatusInternalServerError, "failed to update case")
		return
	}

	update := wire.CaseUpdate{
		Status:    updated.Status,
		UpdatedBy: models.Sender{ID: ident.ID, Name: ident.DisplayName, Role: ident.Role},
		Timestamp: s.Hub.Now(),
	}
	if u.Status != nil {
		update.StatusChanged = &wire.Change{From: existing.Status, To: updated.Status}
	}
	if u.AssignedTo != nil {
		update.AssignmentChanged = &wire.Change{From: existing.AssignedTo, To: updated.AssignedTo}
	}
	if u.Priority != nil {
		update.PriorityChanged = &wire.Change{From: existing.Priority, To: updated.Priority}
	}

	// The previous assignee hears about a reassignment away from them too.
	notifyCase := *updated
	if u.AssignedTo != nil && existing.AssignedTo != "" && existing.AssignedTo != ident.ID {
		s.Hub.Notifier.Notify([]string{existing.AssignedTo}, wire.CaseUpdateNotice{
			CaseID: updated.ID, CaseNumber: updated.Number, Update: update,
		})
	}
	s.Hub.NotifyCaseUpdate(&notifyCase, update, ident.ID)

	if update.StatusChanged != nil && updated.Conversation != "" {
		content := fmt.Sprintf("Case status changed from %s to %s", existing.Status, updated.Status)
		if _, err := s.Hub.SendSystem(ctx, updated.Conversation, ident, content); err != nil {
			s.Log.Warn("status change message", "case_id", updated.ID, "err", err)
		}
	}
	httpx.OK(c, gin.H{"case": updated})
}
