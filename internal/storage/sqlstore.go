package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/google/uuid"
)

type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// SQLStore implements Store over database/sql. Queries are written with '?'
// placeholders and rebound for postgres.
type SQLStore struct {
	DB      *sql.DB
	Dialect Dialect
	Now     Clock
	NewID   func() string
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		DB:      db,
		Dialect: dialect,
		Now:     utcNow,
		NewID:   uuid.NewString,
	}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) q(query string) string {
	if s.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// ---- users

func (s *SQLStore) CreateUser(ctx context.Context, u NewUser) (*models.Identity, error) {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	id := s.NewID()
	_, err := s.DB.ExecContext(ctx, s.q(`INSERT INTO users (id, email, password_hash, display_name, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`), id, u.Email, u.PasswordHash, u.DisplayName, string(u.Role), s.Now())
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &models.Identity{ID: id, Role: u.Role, DisplayName: u.DisplayName}, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*models.Identity, error) {
	var ident models.Identity
	var role string
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT id, display_name, role FROM users WHERE id=?`), id).
		Scan(&ident.ID, &ident.DisplayName, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	ident.Role = models.Role(role)
	return &ident, nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	var role string
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT id, display_name, role, email, password_hash FROM users WHERE email=?`), email).
		Scan(&u.ID, &u.DisplayName, &role, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (s *SQLStore) ListUserIDsByRole(ctx context.Context, role models.Role) ([]string, error) {
	return s.column(ctx, s.DB, `SELECT id FROM users WHERE role=? ORDER BY id`, string(role))
}

func (s *SQLStore) column(ctx context.Context, db queryer, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ---- conversations

const conversationCols = `c.id, COALESCE(c.case_id, ''), COALESCE(c.title, ''), c.created_at, c.updated_at`

func scanConversation(sc interface{ Scan(...any) error }, c *models.Conversation, extra ...any) error {
	dest := append([]any{&c.ID, &c.CaseID, &c.Title, &c.CreatedAt, &c.UpdatedAt}, extra...)
	return sc.Scan(dest...)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLStore) CreateConversation(ctx context.Context, nc NewConversation) (*models.Conversation, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := s.Now()
	conv := &models.Conversation{ID: s.NewID(), CaseID: nc.CaseID, Title: nc.Title, CreatedAt: now, UpdatedAt: now}
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO conversations (id, case_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		conv.ID, nullable(nc.CaseID), nullable(nc.Title), now, now); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	// Intro system messages make every participant a historical sender, which
	// is what grants access to conversations without a case.
	for i, uid := range nc.Participants {
		content := fmt.Sprintf("Participant %s added to the conversation", uid)
		if i == 0 {
			content = "Conversation started with " + strings.Join(nc.Participants, ", ")
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO messages (id, conversation_id, sender_id, sender_type, content, content_type, is_read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			s.NewID(), conv.ID, uid, string(models.SenderSystem), content, "text", true, now); err != nil {
			return nil, fmt.Errorf("insert intro message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return conv, nil
}

func (s *SQLStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	row := s.DB.QueryRowContext(ctx, s.q(`SELECT `+conversationCols+` FROM conversations c WHERE c.id=?`), id)
	if err := scanConversation(row, &c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

func (s *SQLStore) ListUserConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	rows, err := s.DB.QueryContext(ctx, s.q(`
		SELECT `+conversationCols+`,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = c.id AND m.sender_id <> ? AND m.is_read = ?) AS unread
		FROM conversations c
		LEFT JOIN cases ca ON ca.id = c.case_id
		WHERE ca.owner_id = ? OR ca.assigned_to = ? OR (c.case_id IS NULL AND EXISTS (
			SELECT 1 FROM messages m WHERE m.conversation_id = c.id AND m.sender_id = ?))
		ORDER BY c.updated_at DESC`), userID, false, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var list []models.ConversationSummary
	for rows.Next() {
		var cs models.ConversationSummary
		if err := scanConversation(rows, &cs.Conversation, &cs.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		list = append(list, cs)
	}
	return list, rows.Err()
}

func (s *SQLStore) HasSentMessage(ctx context.Context, conversationID, userID string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM messages WHERE conversation_id=? AND sender_id=?`),
		conversationID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count sent messages: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) ListConversationSenders(ctx context.Context, conversationID string) ([]string, error) {
	ids, err := s.column(ctx, s.DB, `SELECT DISTINCT sender_id FROM messages WHERE conversation_id=? ORDER BY sender_id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list senders: %w", err)
	}
	return ids, nil
}

// ---- messages

const messageSelect = `
	SELECT m.id, m.conversation_id, m.sender_id, m.sender_type, m.content, m.content_type,
		m.is_read, m.created_at, u.display_name, u.role
	FROM messages m
	JOIN users u ON u.id = m.sender_id`

func scanMessage(sc interface{ Scan(...any) error }) (models.Message, error) {
	var m models.Message
	var senderType, role string
	err := sc.Scan(&m.ID, &m.ConversationID, &m.SenderID, &senderType, &m.Content, &m.ContentType,
		&m.Read, &m.CreatedAt, &m.Sender.Name, &role)
	m.SenderType = models.SenderKind(senderType)
	m.Sender.ID = m.SenderID
	m.Sender.Role = models.Role(role)
	m.Attachments = []models.Attachment{}
	return m, err
}

// InsertMessage writes the message, touches the conversation and links the
// attachments in one transaction and returns the materialized record.
func (s *SQLStore) InsertMessage(ctx context.Context, nm NewMessage) (*models.Message, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	id := s.NewID()
	now := s.Now()
	if nm.ContentType == "" {
		nm.ContentType = "text"
	}
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO messages (id, conversation_id, sender_id, sender_type, content, content_type, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		id, nm.ConversationID, nm.SenderID, string(nm.SenderType), nm.Content, nm.ContentType,
		nm.SenderType == models.SenderSystem, now); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`UPDATE conversations SET updated_at=? WHERE id=?`), now, nm.ConversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	for i, docID := range nm.AttachmentIDs {
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO message_attachments (message_id, document_id, position) VALUES (?, ?, ?)`),
			id, docID, i); err != nil {
			return nil, fmt.Errorf("link attachment %s: %w", docID, err)
		}
	}

	m, err := s.getMessage(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

func (s *SQLStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	return s.getMessage(ctx, s.DB, id)
}

func (s *SQLStore) getMessage(ctx context.Context, db queryer, id string) (*models.Message, error) {
	m, err := scanMessage(db.QueryRowContext(ctx, s.q(messageSelect+` WHERE m.id=?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	list := []models.Message{m}
	if err := s.attachments(ctx, db, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (s *SQLStore) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	rows, err := s.DB.QueryContext(ctx, s.q(messageSelect+`
		WHERE m.conversation_id=?
		ORDER BY m.created_at ASC, m.id ASC LIMIT ? OFFSET ?`), conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	list := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachments(ctx, s.DB, list); err != nil {
		return nil, err
	}
	return list, nil
}

// attachments fills the ordered attachments of every message in list with one query.
func (s *SQLStore) attachments(ctx context.Context, db queryer, list []models.Message) error {
	if len(list) == 0 {
		return nil
	}
	idx := make(map[string]int, len(list))
	args := make([]any, len(list))
	for i, m := range list {
		idx[m.ID] = i
		args[i] = m.ID
	}
	rows, err := db.QueryContext(ctx, s.q(`
		SELECT ma.message_id, d.id, d.file_name, d.file_type, d.file_url
		FROM message_attachments ma
		JOIN documents d ON d.id = ma.document_id
		WHERE ma.message_id IN (`+placeholders(len(list))+`)
		ORDER BY ma.message_id, ma.position`), args...)
	if err != nil {
		return fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mid string
		var a models.Attachment
		if err := rows.Scan(&mid, &a.DocumentID, &a.FileName, &a.FileType, &a.FileURL); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		i := idx[mid]
		list[i].Attachments = append(list[i].Attachments, a)
	}
	return rows.Err()
}

func (s *SQLStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, s.q(`DELETE FROM messages WHERE id=?`), id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return affected(res)
}

func (s *SQLStore) RedactMessage(ctx context.Context, id, marker string) error {
	res, err := s.DB.ExecContext(ctx, s.q(`UPDATE messages SET content=?, content_type=? WHERE id=?`), marker, "text", id)
	if err != nil {
		return fmt.Errorf("redact message: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) MarkRead(ctx context.Context, conversationID, readerID string) (int, error) {
	res, err := s.DB.ExecContext(ctx, s.q(`UPDATE messages SET is_read=?
		WHERE conversation_id=? AND sender_id<>? AND is_read=?`), true, conversationID, readerID, false)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*) FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		LEFT JOIN cases ca ON ca.id = c.case_id
		WHERE m.sender_id <> ? AND m.is_read = ?
		AND (ca.owner_id = ? OR ca.assigned_to = ? OR (c.case_id IS NULL AND EXISTS (
			SELECT 1 FROM messages m2 WHERE m2.conversation_id = c.id AND m2.sender_id = ?)))`),
		userID, false, userID, userID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

// ---- documents

func (s *SQLStore) CreateDocument(ctx context.Context, d NewDocument) (*models.Attachment, error) {
	id := s.NewID()
	_, err := s.DB.ExecContext(ctx, s.q(`INSERT INTO documents (id, owner_id, file_name, file_type, file_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`), id, d.OwnerID, d.FileName, d.FileType, d.FileURL, s.Now())
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return &models.Attachment{DocumentID: id, FileName: d.FileName, FileType: d.FileType, FileURL: d.FileURL}, nil
}

// ---- cases

const caseSelect = `
	SELECT ca.id, ca.case_number, ca.owner_id, COALESCE(ca.assigned_to, ''), ca.issue_type,
		ca.issue_description, ca.priority, ca.status, ca.is_escalated, ca.created_at, ca.updated_at,
		COALESCE((SELECT c.id FROM conversations c WHERE c.case_id = ca.id ORDER BY c.created_at LIMIT 1), '')
	FROM cases ca`

func (s *SQLStore) getCase(ctx context.Context, db queryer, id string) (*models.Case, error) {
	var c models.Case
	err := db.QueryRowContext(ctx, s.q(caseSelect+` WHERE ca.id=?`), id).Scan(
		&c.ID, &c.Number, &c.OwnerID, &c.AssignedTo, &c.IssueType, &c.Description,
		&c.Priority, &c.Status, &c.IsEscalated, &c.CreatedAt, &c.UpdatedAt, &c.Conversation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return &c, nil
}

func (s *SQLStore) GetCase(ctx context.Context, id string) (*models.Case, error) {
	return s.getCase(ctx, s.DB, id)
}

// CreateCase inserts the case and its linked conversation together.
func (s *SQLStore) CreateCase(ctx context.Context, nc NewCase) (*models.Case, error) {
	if nc.Priority == "" {
		nc.Priority = "Medium"
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var number int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(case_number), 0) + 1 FROM cases`).Scan(&number); err != nil {
		return nil, fmt.Errorf("next case number: %w", err)
	}
	id := s.NewID()
	now := s.Now()
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO cases (id, case_number, owner_id, issue_type, issue_description, priority, status, is_escalated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, number, nc.OwnerID, nc.IssueType, nc.Description, nc.Priority, "New", false, now, now); err != nil {
		return nil, fmt.Errorf("insert case: %w", err)
	}
	title := fmt.Sprintf("Case #%d: %s", number, nc.IssueType)
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO conversations (id, case_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		s.NewID(), id, title, now, now); err != nil {
		return nil, fmt.Errorf("insert case conversation: %w", err)
	}

	c, err := s.getCase(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}

func (s *SQLStore) UpdateCase(ctx context.Context, id string, u CaseUpdate) (*models.Case, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var sets []string
	var args []any
	if u.Status != nil {
		sets = append(sets, "status=?")
		args = append(args, *u.Status)
	}
	if u.Priority != nil {
		sets = append(sets, "priority=?")
		args = append(args, *u.Priority)
	}
	if u.AssignedTo != nil {
		sets = append(sets, "assigned_to=?")
		args = append(args, nullable(*u.AssignedTo))
	}
	if u.IsEscalated != nil {
		sets = append(sets, "is_escalated=?")
		args = append(args, *u.IsEscalated)
	}
	sets = append(sets, "updated_at=?")
	args = append(args, s.Now(), id)

	res, err := tx.ExecContext(ctx, s.q(`UPDATE cases SET `+strings.Join(sets, ", ")+` WHERE id=?`), args...)
	if err != nil {
		return nil, fmt.Errorf("update case: %w", err)
	}
	if err := affected(res); err != nil {
		return nil, err
	}
	c, err := s.getCase(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}
