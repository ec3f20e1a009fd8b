package code

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/ai-chat/backend/internal/service/ai"
	"github.com/zhouzirui/ai-chat/backend/pkg/utils"
)

// Handler 代码生成的HTTP处理器
type Handler struct {
	generator ai.CodeGenerator
}

// New 创建代码生成处理器
func New(generator ai.CodeGenerator) *Handler {
	return &Handler{generator: generator}
}

// RegisterRoutes 注册代码生成路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/code/generate", h.handleGenerate)
}

type generateResponse struct {
	Code string `json:"code"`
}

// handleGenerate 根据表单字段 prompt 生成代码
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	prompt, ok := utils.FormValue(w, r, "prompt")
	if !ok {
		return
	}

	code, err := h.generator.GenerateCode(r.Context(), prompt)
	if err != nil {
		log.Error().Err(err).Str("component", "code").Msg("code generation failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to generate code")
		return
	}

	utils.RespondJSON(w, http.StatusOK, generateResponse{Code: code})
}
