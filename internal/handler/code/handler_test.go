package code

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/ai-chat/backend/internal/service/ai"
)

type echoGenerator struct {
	prompts []string
}

func (g *echoGenerator) GenerateCode(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return "print(" + prompt + ")", nil
}

func generate(r http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/code/generate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestGenerateCode(t *testing.T) {
	gen := &echoGenerator{}
	r := chi.NewRouter()
	New(gen).RegisterRoutes(r)

	resp := generate(r, url.Values{"prompt": {"'hi'"}})
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"code":"print('hi')"}`, resp.Body.String())
	require.Equal(t, []string{"'hi'"}, gen.prompts)
}

func TestGenerateCodeMissingPrompt(t *testing.T) {
	r := chi.NewRouter()
	New(&echoGenerator{}).RegisterRoutes(r)

	resp := generate(r, url.Values{})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.JSONEq(t, `{"detail":"prompt is required"}`, resp.Body.String())
}

func TestGenerateCodeUpstreamFailure(t *testing.T) {
	r := chi.NewRouter()
	New(ai.Unavailable{}).RegisterRoutes(r)

	resp := generate(r, url.Values{"prompt": {"sort a list"}})
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.JSONEq(t, `{"detail":"Failed to generate code"}`, resp.Body.String())
}
