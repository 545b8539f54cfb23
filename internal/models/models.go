package models

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleSpecialist Role = "specialist"
	RoleAdmin      Role = "admin"
)

type SenderKind string

const (
	SenderUser       SenderKind = "user"
	SenderSpecialist SenderKind = "specialist"
	SenderSystem     SenderKind = "system"
)

// Identity is the authenticated principal behind a connection or request.
// It does not change for the lifetime of a connection.
type Identity struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"name"`
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// SenderKind maps a role onto the message sender vocabulary.
func (i Identity) SenderKind() SenderKind {
	if i.Role == RoleSpecialist {
		return SenderSpecialist
	}
	return SenderUser
}

// User is an Identity plus credentials, only used by login.
type User struct {
	Identity
	Email        string
	PasswordHash string
}

type Conversation struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"caseId,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c Conversation) HasCase() bool { return c.CaseID != "" }

// ConversationSummary is a conversation as listed for one user.
// UpdatedAt doubles as the last-activity timestamp.
type ConversationSummary struct {
	Conversation
	UnreadCount int `json:"unreadCount"`
}

type Attachment struct {
	DocumentID string `json:"documentId"`
	FileName   string `json:"fileName,omitempty"`
	FileType   string `json:"fileType,omitempty"`
	FileURL    string `json:"fileUrl,omitempty"`
}

type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	SenderType     SenderKind   `json:"senderType"`
	Sender         Sender       `json:"sender"`
	Content        string       `json:"content"`
	ContentType    string       `json:"contentType"`
	Attachments    []Attachment `json:"attachments"`
	Read           bool         `json:"read"`
	CreatedAt      time.Time    `json:"createdAt"`
}

type Case struct {
	ID           string    `json:"id"`
	Number       int64     `json:"caseNumber"`
	OwnerID      string    `json:"ownerId"`
	AssignedTo   string    `json:"assignedTo,omitempty"`
	IssueType    string    `json:"issueType"`
	Description  string    `json:"issueDescription"`
	Priority     string    `json:"priority"`
	Status       string    `json:"status"`
	IsEscalated  bool      `json:"isEscalated"`
	Conversation string    `json:"conversationId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Participants is the fixed authorized set of a case: owner and assignee.
func (c Case) Participants() []string {
	ids := []string{c.OwnerID}
	if c.AssignedTo != "" && c.AssignedTo != c.OwnerID {
		ids = append(ids, c.AssignedTo)
	}
	return ids
}
