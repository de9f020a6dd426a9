package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/debateflow/llm"
	"github.com/BaSui01/debateflow/llm/retry"
	"github.com/BaSui01/debateflow/providers"
)

func fastRetryer() retry.Retryer {
	return retry.NewBackoffRetryer(&retry.Policy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}, nil)
}

func testProvider(baseURL string) *GeminiProvider {
	return NewGeminiProvider(providers.GeminiConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "gemini-2.0-flash",
		MaxRetries: 1,
		Timeout:    providers.Duration(5 * time.Second),
	}, nil)
}

func chatRequest(schema json.RawMessage) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model: "gemini-2.0-flash",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be terse"},
			{Role: llm.RoleUser, Content: "hello"},
		},
		MaxTokens:      256,
		Temperature:    0.7,
		ResponseSchema: schema,
	}
}

func TestCompletion(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Contains(t, r.URL.Path, "/v1beta/models/gemini-2.0-flash:generateContent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{
				Content:      geminiContent{Role: "model", Parts: []geminiPart{{Text: `{"ok":true}`}}},
				FinishReason: "STOP",
			}},
			UsageMetadata: &geminiUsage{PromptTokenCount: 12, CandidatesTokenCount: 5, TotalTokenCount: 17},
		})
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	resp, err := p.Completion(context.Background(), chatRequest(json.RawMessage(`{"type":"object"}`)))
	require.NoError(t, err)

	// system 指令单独传递，user 消息进入 contents
	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "be terse", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)

	// schema 启用原生 JSON 输出约束
	require.NotNil(t, got.GenerationConfig)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMimeType)
	assert.JSONEq(t, `{"type":"object"}`, string(got.GenerationConfig.ResponseSchema))

	text, err := resp.FirstText()
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 17, resp.Usage.TotalTokens)
}

func TestCompletionRetriesOn429(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "quota"}})
			return
		}
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{{Text: "ok"}}}}},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider(providers.GeminiConfig{
		APIKey:  "k",
		BaseURL: srv.URL,
		Model:   "gemini-2.0-flash",
	}, nil)
	// 收紧重试延迟，避免测试等待
	p.retryer = fastRetryer()

	resp, err := p.Completion(context.Background(), chatRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	text, _ := resp.FirstText()
	assert.Equal(t, "ok", text)
}

func TestCompletionUnauthorizedNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad key"}})
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	_, err := p.Completion(context.Background(), chatRequest(nil))
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUnauthorized, llmErr.Code)
	assert.False(t, llmErr.Retryable)
	assert.Contains(t, llmErr.Message, "bad key")
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestHealthCheckFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	status, err := p.HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}
