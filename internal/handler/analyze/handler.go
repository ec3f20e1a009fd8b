package analyze

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/ai-chat/backend/internal/service/sentiment"
	"github.com/zhouzirui/ai-chat/backend/internal/service/vision"
	"github.com/zhouzirui/ai-chat/backend/pkg/utils"
)

const defaultMaxUpload = 10 << 20

// SentimentAnalyzer 对文本做情感分类
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) (sentiment.Result, error)
}

// ImageAnalyzer 对上传的图片生成描述
type ImageAnalyzer interface {
	Analyze(ctx context.Context, data []byte) (vision.Result, error)
}

// Handler 文本与图片分析的HTTP处理器
type Handler struct {
	sentiment SentimentAnalyzer
	images    ImageAnalyzer
	maxUpload int64
}

// New 创建分析处理器，maxUpload <= 0 时使用 10 MiB
func New(sentimentSvc SentimentAnalyzer, images ImageAnalyzer, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{sentiment: sentimentSvc, images: images, maxUpload: maxUpload}
}

// RegisterRoutes 注册分析路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/analyze/sentiment", h.handleSentiment)
	r.Post("/analyze/image", h.handleImage)
}

// handleSentiment 分析表单字段 text 的情感倾向
func (h *Handler) handleSentiment(w http.ResponseWriter, r *http.Request) {
	text, ok := utils.FormValue(w, r, "text")
	if !ok {
		return
	}

	result, err := h.sentiment.Analyze(r.Context(), text)
	if err != nil {
		log.Error().Err(err).Str("component", "analyze").Msg("sentiment analysis failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to analyze sentiment")
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// handleImage 读取 multipart 字段 file 并返回图片分析结果
func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		utils.RespondError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload))
	if err != nil {
		log.Error().Err(err).Str("component", "analyze").Msg("read upload failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to analyze image")
		return
	}

	result, err := h.images.Analyze(r.Context(), data)
	if err != nil {
		log.Error().Err(err).Str("component", "analyze").Str("filename", header.Filename).Msg("image analysis failed")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to analyze image")
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}
