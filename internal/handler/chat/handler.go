package chat

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/ai-chat/backend/internal/middleware"
	"github.com/zhouzirui/ai-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/ai-chat/backend/internal/service/chat"
	"github.com/zhouzirui/ai-chat/backend/pkg/utils"
)

// SessionStore 是会话接口所需的存储能力
type SessionStore interface {
	CreateSession(ctx context.Context, userID, title string) (chat.Session, error)
	GetSessionFor(ctx context.Context, sessionID, userID string) (chat.Session, error)
	SessionsForUser(ctx context.Context, userID string) ([]chat.Session, error)
}

// Handler 聊天会话的HTTP处理器
type Handler struct {
	sessions SessionStore
}

// New 创建聊天处理器
func New(sessions SessionStore) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes 注册会话相关的路由，调用方负责挂载鉴权中间件
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions", h.handleListSessions)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
}

// handleCreateSession 为当前用户创建会话，title 来自查询参数
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondUnauthorized(w, "Could not validate credentials")
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), current.Username, r.URL.Query().Get("title"))
	if err != nil {
		log.Error().Err(err).Str("component", "chat").Msg("create session failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	utils.RespondJSON(w, http.StatusOK, session)
}

// handleListSessions 返回当前用户的全部会话
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondUnauthorized(w, "Could not validate credentials")
		return
	}

	sessions, err := h.sessions.SessionsForUser(r.Context(), current.Username)
	if err != nil {
		log.Error().Err(err).Str("component", "chat").Msg("list sessions failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessions)
}

// handleGetSession 查询会话，不属于当前用户时返回 403
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondUnauthorized(w, "Could not validate credentials")
		return
	}

	session, err := h.sessions.GetSessionFor(r.Context(), chi.URLParam(r, "sessionID"), current.Username)
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "Session not found")
		return
	case errors.Is(err, chatService.ErrForbidden):
		utils.RespondError(w, http.StatusForbidden, "Not authorized to access this session")
		return
	case err != nil:
		log.Error().Err(err).Str("component", "chat").Msg("get session failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}

	utils.RespondJSON(w, http.StatusOK, session)
}
