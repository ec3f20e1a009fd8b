package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// RespondError 发送错误响应，格式为 {"detail": message}
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"detail": message})
}

// RespondUnauthorized 发送带 WWW-Authenticate 头的 401 响应
func RespondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	RespondError(w, http.StatusUnauthorized, message)
}

// FormValue 读取必填表单字段，缺失时写出 422 并返回 false
func FormValue(w http.ResponseWriter, r *http.Request, field string) (string, bool) {
	value := r.FormValue(field)
	if value == "" {
		RespondError(w, http.StatusUnprocessableEntity, field+" is required")
		return "", false
	}
	return value, true
}
