// Package storage is the data collaborator of the realtime hub: conversations,
// messages, cases and users held in a relational store.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ageniuscoder/caseline/backend/internal/models"
)

var ErrNotFound = errors.New("not found")

// Store is what the hub and the HTTP handlers need from persistence.
// Every write is its own atomic unit of work.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u NewUser) (*models.Identity, error)
	GetUser(ctx context.Context, id string) (*models.Identity, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUserIDsByRole(ctx context.Context, role models.Role) ([]string, error)

	CreateConversation(ctx context.Context, c NewConversation) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListUserConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	HasSentMessage(ctx context.Context, conversationID, userID string) (bool, error)
	ListConversationSenders(ctx context.Context, conversationID string) ([]string, error)

	InsertMessage(ctx context.Context, m NewMessage) (*models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	RedactMessage(ctx context.Context, id, marker string) error
	MarkRead(ctx context.Context, conversationID, readerID string) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)

	CreateDocument(ctx context.Context, d NewDocument) (*models.Attachment, error)

	CreateCase(ctx context.Context, c NewCase) (*models.Case, error)
	GetCase(ctx context.Context, id string) (*models.Case, error)
	UpdateCase(ctx context.Context, id string, u CaseUpdate) (*models.Case, error)
}

type NewUser struct {
	Email        string
	PasswordHash string
	DisplayName  string
	Role         models.Role
}

type NewConversation struct {
	Title  string
	CaseID string
	// Participants get an intro system message each; the first one is the creator.
	Participants []string
}

type NewMessage struct {
	ConversationID string
	SenderID       string
	SenderType     models.SenderKind
	Content        string
	ContentType    string
	AttachmentIDs  []string
}

type NewDocument struct {
	OwnerID  string
	FileName string
	FileType string
	FileURL  string
}

type NewCase struct {
	OwnerID     string
	IssueType   string
	Description string
	Priority    string
}

// CaseUpdate carries only the fields being changed.
type CaseUpdate struct {
	Status      *string
	Priority    *string
	AssignedTo  *string
	IsEscalated *bool
}

func (u CaseUpdate) Empty() bool {
	return u.Status == nil && u.Priority == nil && u.AssignedTo == nil && u.IsEscalated == nil
}

// Clock lets tests pin timestamps written by the store.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
