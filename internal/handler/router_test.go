package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/ai-chat/backend/internal/config"
	"github.com/zhouzirui/ai-chat/backend/internal/model/user"
	authService "github.com/zhouzirui/ai-chat/backend/internal/service/auth"
	chatService "github.com/zhouzirui/ai-chat/backend/internal/service/chat"
	"github.com/zhouzirui/ai-chat/backend/internal/service/connection"
	sentimentService "github.com/zhouzirui/ai-chat/backend/internal/service/sentiment"
	"github.com/zhouzirui/ai-chat/backend/internal/service/vision"
)

func newTestRouter(t *testing.T) (http.Handler, Deps) {
	t.Helper()
	authSvc := authService.NewService(user.NewMemoryStore(), config.AuthConfig{JWTSecret: "test", TokenTTLMinutes: 30})
	require.NoError(t, authSvc.SeedDemoUser("secret"))

	deps := Deps{
		Registry:  connection.NewRegistry(connection.Options{}),
		Sessions:  chatService.NewService(chatService.Options{}),
		Auth:      authSvc,
		Sentiment: sentimentService.NewService(nil),
		Vision:    vision.NewAnalyzer(),
	}
	return NewRouter(deps), deps
}

func login(t *testing.T, r http.Handler) string {
	t.Helper()
	form := url.Values{"username": {"johndoe"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var token authService.Token
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &token))
	return token.AccessToken
}

func TestRootWelcome(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"message":"Welcome to AI Chat Application API"}`, resp.Body.String())
	require.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestRootWelcomeIgnoresBearerToken(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"message":"Welcome to AI Chat Application API"}`, resp.Body.String())
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"status":"ok","connections":0}`, resp.Body.String())
}

func TestSessionsRequireAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "Bearer", resp.Header().Get("WWW-Authenticate"))
}

func TestSessionLifecycleThroughRouter(t *testing.T) {
	r, deps := newTestRouter(t)
	token := login(t, r)

	req := httptest.NewRequest(http.MethodPost, "/sessions?title=Trip", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var created struct {
		ID     string  `json:"id"`
		UserID *string `json:"user_id"`
		Title  string  `json:"title"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	require.Equal(t, "Trip", created.Title)
	require.Equal(t, "johndoe", *created.UserID)

	req = httptest.NewRequest(http.MethodGet, "/sessions/"+created.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	other, err := deps.Sessions.CreateSession(context.Background(), "someone-else", "")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/sessions/"+other.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusForbidden, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/sessions/nonexistent-id", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.JSONEq(t, `{"detail":"Session not found"}`, resp.Body.String())
}

func TestCodeGenerateWithoutBackend(t *testing.T) {
	r, _ := newTestRouter(t)
	form := url.Values{"prompt": {"reverse a string"}}
	req := httptest.NewRequest(http.MethodPost, "/code/generate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.JSONEq(t, `{"detail":"Failed to generate code"}`, resp.Body.String())
}
