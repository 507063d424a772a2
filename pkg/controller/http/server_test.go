package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	server "github.com/m-mizutani/komainu/pkg/controller/http"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/model/sampling"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/repository/database/memory"
	"github.com/m-mizutani/komainu/pkg/service/auth"
	"github.com/m-mizutani/komainu/pkg/usecase"
)

type echoClient struct{}

func (c *echoClient) Generate(ctx context.Context, req *completion.Request) (*completion.Result, error) {
	return &completion.Result{
		Text:       "echo response",
		Provider:   req.Provider,
		Latency:    10 * time.Millisecond,
		TokenCount: 5,
		Cost:       0.0005,
	}, nil
}

func testVersion() *prompt.Version {
	return &prompt.Version{
		ID:       "gen-summary",
		Version:  "1.0.0",
		Provider: types.LLMProviderClaude,
		Sampling: sampling.Config{Temperature: 0.2, TopP: 0.9, Model: "claude-sonnet-4-20250514"},
		Template: "Summarize: {{text}}",
	}
}

func newServer(t *testing.T, opts ...server.Options) *server.Server {
	t.Helper()

	repo := memory.New()
	gt.NoError(t, repo.Register(context.Background(), testVersion()))

	uc := usecase.New(
		usecase.WithPromptRepository(repo),
		usecase.WithCompletionClient(&echoClient{}),
	)

	base := []server.Options{
		server.WithCallUseCases(uc),
		server.WithRegistryUseCases(uc),
		server.WithMetricsUseCases(uc),
	}
	return server.New(append(base, opts...)...)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, rec.Body.String(), "OK")
}

func TestCallEndpoint(t *testing.T) {
	srv := newServer(t)

	body, err := json.Marshal(&interfaces.CallRequest{
		PromptID: "gen-summary",
		Input:    map[string]string{"text": "report"},
	})
	gt.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/call", bytes.NewReader(body)))

	gt.Equal(t, rec.Code, http.StatusOK)

	var resp interfaces.CallResponse
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	gt.Equal(t, resp.Result.Text, "echo response")
	gt.False(t, resp.FallbackUsed)
}

func TestCallUnknownPromptReturns404(t *testing.T) {
	srv := newServer(t)

	body, err := json.Marshal(&interfaces.CallRequest{
		PromptID: "no-such-prompt",
		Input:    map[string]string{},
	})
	gt.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/call", bytes.NewReader(body)))

	gt.Equal(t, rec.Code, http.StatusNotFound)
}

func TestCallMalformedBodyReturns400(t *testing.T) {
	srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/call", strings.NewReader("{broken")))

	gt.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestRegisterAndGetPrompt(t *testing.T) {
	srv := newServer(t)

	v := testVersion()
	v.Version = "1.1.0"
	body, err := json.Marshal(v)
	gt.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/prompts", bytes.NewReader(body)))
	gt.Equal(t, rec.Code, http.StatusCreated)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prompts/gen-summary", nil))
	gt.Equal(t, rec.Code, http.StatusOK)

	var got prompt.Version
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	// Highest active version wins when no version is requested
	gt.Equal(t, got.Version, "1.1.0")

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prompts/gen-summary?version=1.0.0", nil))
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	gt.Equal(t, got.Version, "1.0.0")
}

func TestListVersionsEndpoint(t *testing.T) {
	srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prompts/gen-summary/versions", nil))
	gt.Equal(t, rec.Code, http.StatusOK)

	var resp struct {
		Versions []*prompt.Version `json:"versions"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	gt.Equal(t, len(resp.Versions), 1)
}

func TestDeprecateEndpoint(t *testing.T) {
	srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/prompts/gen-summary/versions/1.0.0/deprecate", nil))
	gt.Equal(t, rec.Code, http.StatusNoContent)

	// Zero sunset defaults to now, so the only version is inactive
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prompts/gen-summary", nil))
	gt.Equal(t, rec.Code, http.StatusNotFound)
}

func TestRetireEndpoint(t *testing.T) {
	srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/prompts/gen-summary/versions/1.0.0", nil))
	gt.Equal(t, rec.Code, http.StatusNoContent)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prompts/gen-summary/versions", nil))
	gt.Equal(t, rec.Code, http.StatusNotFound)
}

func TestExportImportEndpoints(t *testing.T) {
	srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prompts/export", nil))
	gt.Equal(t, rec.Code, http.StatusOK)

	exported := rec.Body.Bytes()

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/prompts/import", bytes.NewReader(exported)))
	gt.Equal(t, rec.Code, http.StatusNoContent)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prompts", nil))
	gt.Equal(t, rec.Code, http.StatusOK)

	var resp struct {
		Prompts []types.PromptID `json:"prompts"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	gt.Equal(t, resp.Prompts, []types.PromptID{"gen-summary"})
}

func TestMetricsEndpoints(t *testing.T) {
	srv := newServer(t)

	body, err := json.Marshal(&interfaces.CallRequest{
		PromptID: "gen-summary",
		Input:    map[string]string{"text": "report"},
	})
	gt.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/call", bytes.NewReader(body)))
	gt.Equal(t, rec.Code, http.StatusOK)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))
	gt.Equal(t, rec.Code, http.StatusOK)

	var metrics struct {
		TotalCalls  int     `json:"total_calls"`
		SuccessRate float64 `json:"success_rate"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metrics))
	gt.Equal(t, metrics.TotalCalls, 1)
	gt.Equal(t, metrics.SuccessRate, 1.0)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics/health", nil))
	gt.Equal(t, rec.Code, http.StatusOK)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics/report", nil))
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.True(t, strings.Contains(rec.Body.String(), "Call Safety Report"))
}

func TestBearerAuth(t *testing.T) {
	tokens, err := auth.New([]byte("test-secret"))
	gt.NoError(t, err)

	srv := newServer(t, server.WithTokenService(tokens))

	// Health stays open
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	gt.Equal(t, rec.Code, http.StatusOK)

	// API routes reject missing and bad tokens
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prompts", nil))
	gt.Equal(t, rec.Code, http.StatusUnauthorized)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/prompts", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	gt.Equal(t, rec.Code, http.StatusUnauthorized)

	// A signed token passes
	token, err := tokens.Sign("test")
	gt.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/prompts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	gt.Equal(t, rec.Code, http.StatusOK)
}
