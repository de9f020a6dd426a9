package claude

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
	"github.com/BaSui01/debateflow/providers"
)

func testProvider(baseURL string) *ClaudeProvider {
	return NewClaudeProvider(providers.ClaudeConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "claude-sonnet-4-5",
		MaxRetries: 1,
		Timeout:    providers.Duration(5 * time.Second),
	}, nil)
}

func TestCompletion(t *testing.T) {
	var got claudeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(claudeResponse{
			ID:         "msg_1",
			Role:       "assistant",
			Model:      "claude-sonnet-4-5",
			StopReason: "end_turn",
			Content:    []claudeContent{{Type: "text", Text: `{"ok":true}`}},
			Usage:      &claudeUsage{InputTokens: 10, OutputTokens: 4},
		})
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model: "claude-sonnet-4-5",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be terse"},
			{Role: llm.RoleUser, Content: "hello"},
		},
		ResponseSchema: json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)

	// system 单独传递，schema 注入到 system 指令尾部
	assert.Contains(t, got.System, "be terse")
	assert.Contains(t, got.System, "JSON Schema")
	assert.Contains(t, got.System, `{"type":"object"}`)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	// MaxTokens 缺省填充
	assert.Equal(t, 4096, got.MaxTokens)

	text, err := resp.FirstText()
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
}

func TestCompletionErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"type": "overloaded_error", "message": "overloaded"}})
	}))
	defer srv.Close()

	p := NewClaudeProvider(providers.ClaudeConfig{
		APIKey:  "k",
		BaseURL: srv.URL,
	}, nil)
	p.retryer = noRetry{}

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrModelOverloaded, llmErr.Code)
	assert.True(t, llmErr.Retryable)
}

// noRetry 直接执行一次，测试中绕过退避延迟。
type noRetry struct{}

func (noRetry) Do(ctx context.Context, fn func() error) error { return fn() }
