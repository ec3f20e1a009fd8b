package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/ai-chat/backend/internal/handler/analyze"
	"github.com/zhouzirui/ai-chat/backend/internal/handler/auth"
	"github.com/zhouzirui/ai-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/ai-chat/backend/internal/handler/code"
	"github.com/zhouzirui/ai-chat/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/ai-chat/backend/internal/middleware"
	aiService "github.com/zhouzirui/ai-chat/backend/internal/service/ai"
	authService "github.com/zhouzirui/ai-chat/backend/internal/service/auth"
	chatService "github.com/zhouzirui/ai-chat/backend/internal/service/chat"
	"github.com/zhouzirui/ai-chat/backend/internal/service/connection"
	sentimentService "github.com/zhouzirui/ai-chat/backend/internal/service/sentiment"
	"github.com/zhouzirui/ai-chat/backend/internal/service/vision"
	"github.com/zhouzirui/ai-chat/backend/pkg/utils"
)

// Deps 汇总路由依赖的服务，全部由 main 创建并持有
type Deps struct {
	Registry       *connection.Registry
	Sessions       *chatService.Service
	Auth           *authService.Service
	AI             aiService.Backend
	Sentiment      *sentimentService.Service
	Vision         *vision.Analyzer
	SessionMemory  bool
	MaxUploadBytes int64
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	aiBackend := deps.AI
	if aiBackend == nil {
		aiBackend = aiService.Unavailable{}
	}

	authHandler := auth.New(deps.Auth)
	chatHandler := chat.New(deps.Sessions)
	wsHandler := ws.New(deps.Registry, deps.Sessions, aiBackend, ws.Options{SessionMemory: deps.SessionMemory})
	analyzeHandler := analyze.New(deps.Sentiment, deps.Vision, deps.MaxUploadBytes)
	codeHandler := code.New(aiBackend)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Welcome to AI Chat Application API"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"connections": deps.Registry.Count(),
		})
	})

	wsHandler.RegisterRoutes(r)
	authHandler.RegisterRoutes(r)
	analyzeHandler.RegisterRoutes(r)
	codeHandler.RegisterRoutes(r)

	r.Group(func(protected chi.Router) {
		protected.Use(middlewarePkg.RequireUser(deps.Auth))
		authHandler.RegisterProtectedRoutes(protected)
		chatHandler.RegisterRoutes(protected)
	})

	return r
}
