package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/ai-chat/backend/internal/middleware"
	"github.com/zhouzirui/ai-chat/backend/internal/model/user"
	authService "github.com/zhouzirui/ai-chat/backend/internal/service/auth"
	"github.com/zhouzirui/ai-chat/backend/pkg/utils"
)

// Service 是鉴权接口所需的账户能力
type Service interface {
	Login(ctx context.Context, username, password string) (authService.Token, error)
	Register(ctx context.Context, input authService.RegisterInput) (user.User, error)
}

// Handler 登录与注册的HTTP处理器
type Handler struct {
	svc Service
}

// New 创建鉴权处理器
func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册公开路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/token", h.handleToken)
	r.Post("/users", h.handleCreateUser)
}

// RegisterProtectedRoutes 注册需要登录的路由
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/users/me", h.handleMe)
}

// handleToken 使用表单中的用户名密码换取 access token
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	username, ok := utils.FormValue(w, r, "username")
	if !ok {
		return
	}
	password, ok := utils.FormValue(w, r, "password")
	if !ok {
		return
	}

	token, err := h.svc.Login(r.Context(), username, password)
	switch {
	case errors.Is(err, authService.ErrInvalidCredentials):
		utils.RespondUnauthorized(w, "Incorrect username or password")
		return
	case err != nil:
		log.Error().Err(err).Str("component", "auth").Msg("login failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	utils.RespondJSON(w, http.StatusOK, token)
}

// handleCreateUser 注册新用户
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload authService.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	created, err := h.svc.Register(r.Context(), payload)
	switch {
	case errors.Is(err, authService.ErrUserExists):
		utils.RespondError(w, http.StatusBadRequest, "Username already registered")
		return
	case errors.Is(err, authService.ErrInvalidInput):
		utils.RespondError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	case err != nil:
		log.Error().Err(err).Str("component", "auth").Msg("register failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	log.Info().Str("component", "auth").Str("username", created.Username).Msg("user registered")
	utils.RespondJSON(w, http.StatusOK, created.Registered())
}

// handleMe 返回当前登录用户
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondUnauthorized(w, "Could not validate credentials")
		return
	}
	utils.RespondJSON(w, http.StatusOK, current.Public())
}
