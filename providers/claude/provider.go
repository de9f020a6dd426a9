package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/debateflow/llm"
	"github.com/BaSui01/debateflow/llm/retry"
	"github.com/BaSui01/debateflow/providers"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClaudeProvider 实现 Anthropic Claude 的 LLM Provider。
// Claude API 与 OpenAI 有显著差异：
// 1. 认证使用 x-api-key 请求头而非 Bearer Token
// 2. system 消息单独传递
// 3. 无原生输出形状约束，ResponseSchema 注入到 system 指令
type ClaudeProvider struct {
	cfg     providers.ClaudeConfig
	client  *http.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	retryer retry.Retryer
}

const anthropicVersion = "2023-06-01"

// NewClaudeProvider 创建 Claude Provider。
func NewClaudeProvider(cfg providers.ClaudeConfig, logger *zap.Logger) *ClaudeProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout.Std()
	if timeout == 0 {
		timeout = 60 * time.Second // Claude 响应可能较慢
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}

	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}

	return &ClaudeProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("provider", "claude")),
		limiter: providers.NewLimiter(cfg.RPS),
		retryer: retry.NewBackoffRetryer(policy, logger),
	}
}

func (p *ClaudeProvider) Name() string { return "claude" }

func (p *ClaudeProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/v1/models", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readClaudeErrMsg(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency}, fmt.Errorf("claude health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Claude 的消息结构
type claudeMessage struct {
	Role    string `json:"role"` // user 或 assistant
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"` // system 消息单独传递
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature,omitempty"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type claudeResponse struct {
	ID         string          `json:"id"`
	Role       string          `json:"role"`
	Content    []claudeContent `json:"content"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Usage      *claudeUsage    `json:"usage,omitempty"`
}

type claudeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Completion 实现 llm.Provider。
func (p *ClaudeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	body := p.buildRequest(req)
	endpoint := fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.cfg.BaseURL, "/"))

	var out *llm.ChatResponse
	err := p.retryer.Do(ctx, func() error {
		resp, callErr := p.doRequest(ctx, endpoint, body)
		if callErr != nil {
			return callErr
		}
		out = p.convertResponse(resp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// buildRequest 将统一请求转换为 Claude 格式。
func (p *ClaudeProvider) buildRequest(req *llm.ChatRequest) *claudeRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	out := &claudeRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			out.System = m.Content
		case llm.RoleUser:
			out.Messages = append(out.Messages, claudeMessage{Role: "user", Content: m.Content})
		case llm.RoleAssistant:
			out.Messages = append(out.Messages, claudeMessage{Role: "assistant", Content: m.Content})
		}
	}

	// Claude 无原生形状约束，把 Schema 追加到 system 指令
	if len(req.ResponseSchema) > 0 {
		out.System = strings.TrimSpace(out.System +
			"\n\nRespond ONLY with a JSON object conforming to this JSON Schema, with no surrounding text:\n" +
			string(req.ResponseSchema))
	}

	return out
}

func (p *ClaudeProvider) doRequest(ctx context.Context, endpoint string, reqBody *claudeRequest) (*claudeResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal claude request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build claude request: %w", err)
	}
	p.buildHeaders(httpReq)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code:      llm.ErrUpstreamError,
			Message:   fmt.Sprintf("claude request failed: %v", err),
			Retryable: true,
			Provider:  "claude",
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readClaudeErrMsg(resp.Body)
		p.logger.Warn("claude completion failed",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, llm.NewError("claude", resp.StatusCode, msg)
	}

	var out claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode claude response: %w", err)
	}

	p.logger.Debug("claude completion ok",
		zap.Duration("latency", time.Since(start)),
		zap.String("stop_reason", out.StopReason))
	return &out, nil
}

func (p *ClaudeProvider) convertResponse(in *claudeResponse) *llm.ChatResponse {
	var sb strings.Builder
	for _, c := range in.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}

	out := &llm.ChatResponse{
		ID:        in.ID,
		Provider:  "claude",
		Model:     in.Model,
		CreatedAt: time.Now(),
		Choices: []llm.ChatChoice{{
			Index:        0,
			FinishReason: in.StopReason,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: sb.String()},
		}},
	}

	if in.Usage != nil {
		out.Usage = llm.ChatUsage{
			PromptTokens:     in.Usage.InputTokens,
			CompletionTokens: in.Usage.OutputTokens,
			TotalTokens:      in.Usage.InputTokens + in.Usage.OutputTokens,
		}
	}
	return out
}

func (p *ClaudeProvider) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

func readClaudeErrMsg(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var body claudeErrorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(string(data))
}
