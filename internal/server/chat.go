package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quanghia/lectura/internal/conversation"
	"github.com/quanghia/lectura/internal/store"
	"github.com/quanghia/lectura/provider"
)

// historyMessagesPerSession caps how many messages each session bundle
// carries in the /history response.
const historyMessagesPerSession = 100

var sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lectura_chat_sends_total",
	Help: "Chat send requests by outcome.",
}, []string{"status"})

// ChatHandler serves the chat message API: session/message persistence
// plus replies from the external responder.
type ChatHandler struct {
	Store         *store.Store
	Responder     provider.Responder
	ContextWindow int
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.GET("", h.index)
	g.GET("/health", h.health)
	g.POST("/send", h.send)
	g.POST("/messages", h.messages)
	g.POST("/sessions", h.sessions)
	g.POST("/history", h.history)
	g.DELETE("/session/:session_id", h.deleteSession)
}

func (h *ChatHandler) index(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"service":     "lectura chat service",
		"description": "stores chat sessions/messages and relays replies from the responder",
		"endpoints": map[string]string{
			"send_message":   "POST /api/chat/send",
			"get_messages":   "POST /api/chat/messages",
			"get_sessions":   "POST /api/chat/sessions",
			"get_history":    "POST /api/chat/history",
			"delete_session": "DELETE /api/chat/session/{session_id}",
			"health":         "GET /api/chat/health",
		},
		"note": "user management is handled by the external identity service",
	})
}

func (h *ChatHandler) health(c echo.Context) error {
	ctx, cancel := shortTimeout(c.Request().Context())
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
		"service":  "running",
	})
}

// send persists the user message, asks the responder for a reply using
// the session's recent exchange pairs, and persists that reply. The user
// message is committed before the responder call, so a responder failure
// leaves it durably stored while the session timestamp stays untouched.
func (h *ChatHandler) send(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" || strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and message required")
	}
	ctx := c.Request().Context()

	sess, err := h.Store.GetOrCreateSession(ctx, req.UserID, req.SessionID, sessionName(req.Message), req.SessionData)
	if err != nil {
		sendsTotal.WithLabelValues("error").Inc()
		return chatStoreError(err)
	}

	window := h.ContextWindow
	if window <= 0 {
		window = defaultContextWindow
	}
	recent, err := h.Store.RecentMessages(ctx, sess.ID, window)
	if err != nil {
		sendsTotal.WithLabelValues("error").Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pairs := conversation.PairHistory(recent)

	userMsg, err := h.Store.CreateMessage(ctx, sess.ID, store.MessageTypeUser, req.Message, []byte(`{"intent":"user_message"}`))
	if err != nil {
		sendsTotal.WithLabelValues("error").Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	reply, err := h.Responder.Reply(ctx, req.Message, pairs)
	if err != nil {
		sendsTotal.WithLabelValues("responder_error").Inc()
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	replyData, err := json.Marshal(map[string]interface{}{
		"model":  h.Responder.Model(),
		"tokens": len(reply),
	})
	if err != nil {
		sendsTotal.WithLabelValues("error").Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	aiMsg, err := h.Store.CompleteExchange(ctx, sess.ID, reply, replyData)
	if err != nil {
		sendsTotal.WithLabelValues("error").Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	sendsTotal.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, SendMessageResponse{
		MessageID:     aiMsg.ID,
		SessionID:     sess.ID,
		Response:      reply,
		UserMessageID: userMsg.ID,
	})
}

func (h *ChatHandler) messages(c echo.Context) error {
	var req GetMessagesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	ctx := c.Request().Context()

	var (
		msgs []store.Message
		err  error
	)
	if req.SessionID != "" {
		msgs, err = h.Store.SessionMessages(ctx, req.SessionID, req.UserID, limit, req.Offset)
	} else {
		msgs, err = h.Store.AllUserMessages(ctx, req.UserID, limit, req.Offset)
	}
	if err != nil {
		return chatStoreError(err)
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *ChatHandler) sessions(c echo.Context) error {
	var req GetSessionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	sessions, err := h.Store.UserSessions(c.Request().Context(), req.UserID, limit, req.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if sessions == nil {
		sessions = []store.SessionSummary{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *ChatHandler) history(c echo.Context) error {
	var req GetSessionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	ctx := c.Request().Context()

	sessions, err := h.Store.UserSessions(ctx, req.UserID, limit, req.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	history := make([]SessionHistory, 0, len(sessions))
	for _, sess := range sessions {
		msgs, err := h.Store.SessionMessages(ctx, sess.ID, req.UserID, historyMessagesPerSession, 0)
		if err != nil {
			return chatStoreError(err)
		}
		if msgs == nil {
			msgs = []store.Message{}
		}
		history = append(history, SessionHistory{
			SessionID:   sess.ID,
			SessionName: sess.Name,
			Messages:    msgs,
			CreatedAt:   sess.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, history)
}

func (h *ChatHandler) deleteSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id required")
	}
	err := h.Store.DeleteSession(c.Request().Context(), sessionID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found or not authorized")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "session deleted successfully"})
}

// chatStoreError maps store sentinels onto HTTP status classes.
func chatStoreError(err error) error {
	if errors.Is(err, store.ErrUnauthorized) {
		return echo.NewHTTPError(http.StatusForbidden, "session not owned by user")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// sessionName derives a display name for a freshly created session from
// its first message, truncating on a rune boundary.
func sessionName(message string) string {
	name := strings.TrimSpace(message)
	if len(name) > 80 {
		cut := 80
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}
