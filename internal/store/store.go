package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Store wraps the relational backing for chat sessions and messages.
type Store struct {
	DB *sql.DB
}

// Message type discriminators persisted in chat_messages.message_type.
const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
)

var (
	// ErrNotFound indicates the requested session or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the session exists but belongs to another user.
	ErrUnauthorized = errors.New("not authorized")
)

// Session is a user-owned container for an ordered sequence of messages.
type Session struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"session_name"`
	Data      json.RawMessage `json:"session_data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SessionSummary is a session row with its message count aggregate.
type SessionSummary struct {
	Session
	MessageCount int `json:"message_count"`
}

// Message is a single chat message. Append-only: created once, never
// mutated, removed only by cascading session deletion.
type Message struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      string          `json:"message_type"`
	Content   string          `json:"content"`
	Data      json.RawMessage `json:"message_data"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Ping probes store connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// GetOrCreateSession returns the session with the given id when it exists
// and is owned by userID. A foreign-owned id is rejected with
// ErrUnauthorized. An empty or unknown id creates a fresh session.
func (s *Store) GetOrCreateSession(ctx context.Context, userID, sessionID, name string, data []byte) (Session, error) {
	if sessionID != "" {
		var sess Session
		err := s.DB.QueryRowContext(ctx,
			`SELECT id, user_id, COALESCE(session_name,''), session_data, created_at, updated_at FROM chat_sessions WHERE id=$1`,
			sessionID).Scan(&sess.ID, &sess.UserID, &sess.Name, &sess.Data, &sess.CreatedAt, &sess.UpdatedAt)
		switch {
		case err == nil:
			if sess.UserID != userID {
				return Session{}, ErrUnauthorized
			}
			return sess, nil
		case errors.Is(err, sql.ErrNoRows):
			// fall through to create
		default:
			return Session{}, err
		}
	}

	sess := Session{UserID: userID, Name: name}
	if len(data) == 0 {
		data = []byte(`{}`)
	}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO chat_sessions (user_id, session_name, session_data) VALUES ($1,$2,$3)
		 RETURNING id, session_data, created_at, updated_at`,
		userID, name, data).Scan(&sess.ID, &sess.Data, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// CreateMessage appends a message to a session.
func (s *Store) CreateMessage(ctx context.Context, sessionID, msgType, content string, data []byte) (Message, error) {
	if msgType != MessageTypeUser && msgType != MessageTypeAssistant {
		return Message{}, fmt.Errorf("invalid message type %q", msgType)
	}
	if len(data) == 0 {
		data = []byte(`{}`)
	}
	msg := Message{SessionID: sessionID, Type: msgType, Content: content}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO chat_messages (session_id, message_type, content, message_data) VALUES ($1,$2,$3,$4)
		 RETURNING id, message_data, created_at`,
		sessionID, msgType, content, data).Scan(&msg.ID, &msg.Data, &msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// RecentMessages returns the most recent limit messages of a session in
// chronological order. This is the context-window input for pairing.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, message_type, content, message_data, created_at FROM (
  SELECT id, session_id, message_type, content, message_data, created_at
  FROM chat_messages WHERE session_id=$1 ORDER BY created_at DESC LIMIT $2
) recent ORDER BY created_at ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// ownedSession verifies a session exists and belongs to userID.
func (s *Store) ownedSession(ctx context.Context, sessionID, userID string) error {
	var owner string
	err := s.DB.QueryRowContext(ctx, `SELECT user_id FROM chat_sessions WHERE id=$1`, sessionID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrUnauthorized
	}
	return nil
}

// SessionMessages returns a session's messages in chronological order,
// enforcing ownership. An absent session reads as empty, so fetching
// after a delete is not an error; a foreign-owned session is rejected.
func (s *Store) SessionMessages(ctx context.Context, sessionID, userID string, limit, offset int) ([]Message, error) {
	if err := s.ownedSession(ctx, sessionID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, session_id, message_type, content, message_data, created_at
		 FROM chat_messages WHERE session_id=$1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// AllUserMessages returns messages across all of a user's sessions.
func (s *Store) AllUserMessages(ctx context.Context, userID string, limit, offset int) ([]Message, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT m.id, m.session_id, m.message_type, m.content, m.message_data, m.created_at
		 FROM chat_messages m JOIN chat_sessions s ON s.id = m.session_id
		 WHERE s.user_id=$1 ORDER BY m.created_at ASC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// UserSessions lists a user's sessions with message counts, most recently
// updated first.
func (s *Store) UserSessions(ctx context.Context, userID string, limit, offset int) ([]SessionSummary, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT s.id, s.user_id, COALESCE(s.session_name,''), s.session_data, s.created_at, s.updated_at, COUNT(m.id)
FROM chat_sessions s LEFT JOIN chat_messages m ON m.session_id = s.id
WHERE s.user_id=$1
GROUP BY s.id ORDER BY s.updated_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionSummary
	for rows.Next() {
		var sm SessionSummary
		if err := rows.Scan(&sm.ID, &sm.UserID, &sm.Name, &sm.Data, &sm.CreatedAt, &sm.UpdatedAt, &sm.MessageCount); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, via cascade, all its messages.
// A missing or foreign-owned id reports ErrNotFound.
func (s *Store) DeleteSession(ctx context.Context, sessionID, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id=$1 AND user_id=$2`, sessionID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteExchange appends the assistant reply and advances the session's
// updated_at in one transaction. The preceding user message is committed
// separately, so a responder failure leaves it persisted while the
// timestamp stays untouched.
func (s *Store) CompleteExchange(ctx context.Context, sessionID, content string, data []byte) (Message, error) {
	if len(data) == 0 {
		data = []byte(`{}`)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	msg := Message{SessionID: sessionID, Type: MessageTypeAssistant, Content: content}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO chat_messages (session_id, message_type, content, message_data) VALUES ($1,$2,$3,$4)
		 RETURNING id, message_data, created_at`,
		sessionID, MessageTypeAssistant, content, data).Scan(&msg.ID, &msg.Data, &msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = NOW() WHERE id=$1`, sessionID); err != nil {
		return Message{}, err
	}
	if err = tx.Commit(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Type, &m.Content, &m.Data, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
