package server

import (
	"encoding/json"
	"time"

	"github.com/quanghia/lectura/internal/store"
)

// HTTPError is the generic error envelope returned by both services.
type HTTPError struct {
	Error string `json:"error"`
}

// SendMessageRequest is the payload for POST /api/chat/send.
type SendMessageRequest struct {
	UserID      string          `json:"user_id"`
	SessionID   string          `json:"session_id,omitempty"`
	SessionData json.RawMessage `json:"session_data,omitempty"`
	Message     string          `json:"message"`
}

// SendMessageResponse reports both persisted message ids and the reply.
type SendMessageResponse struct {
	MessageID     string `json:"message_id"`
	SessionID     string `json:"session_id"`
	Response      string `json:"response"`
	UserMessageID string `json:"user_message_id"`
}

// GetMessagesRequest is the payload for POST /api/chat/messages.
type GetMessagesRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

// GetSessionsRequest is the payload for POST /api/chat/sessions and
// POST /api/chat/history.
type GetSessionsRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// SessionHistory bundles a session with its messages for /history.
type SessionHistory struct {
	SessionID   string          `json:"session_id"`
	SessionName string          `json:"session_name"`
	Messages    []store.Message `json:"messages"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CreateTranscriptRequest is the payload for POST /api/transcripts.
type CreateTranscriptRequest struct {
	VideoURL     string `json:"video_url"`
	FilenameHint string `json:"filename_hint,omitempty"`
	Language     string `json:"language,omitempty"`
}

// TranscriptResponse carries the finished transcript.
type TranscriptResponse struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
	Cached     bool   `json:"cached"`
	DurationMS int64  `json:"duration_ms"`
}
