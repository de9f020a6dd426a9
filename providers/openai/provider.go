package openai

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

// OpenAIProvider 实现 OpenAI Chat Completions 的 LLM Provider。
// 兼容 OpenAI 协议的第三方网关可通过 BaseURL 接入。
type OpenAIProvider struct {
	cfg     providers.OpenAIConfig
	client  *http.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	retryer retry.Retryer
}

// NewOpenAIProvider 创建 OpenAI Provider。
func NewOpenAIProvider(cfg providers.OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout.Std()
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}

	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}

	return &OpenAIProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("provider", "openai")),
		limiter: providers.NewLimiter(cfg.RPS),
		retryer: retry.NewBackoffRetryer(policy, logger),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
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
		msg := readOpenAIErrMsg(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency}, fmt.Errorf("openai health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type string `json:"type"` // json_object
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float32               `json:"temperature"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	FinishReason string        `json:"finish_reason"`
	Message      openaiMessage `json:"message"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openaiChoice `json:"choices"`
	Usage   *openaiUsage   `json:"usage,omitempty"`
}

type openaiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Completion 实现 llm.Provider。
func (p *OpenAIProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	body := p.buildRequest(req)
	endpoint := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(p.cfg.BaseURL, "/"))

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

// buildRequest 将统一请求转换为 OpenAI 格式。
// ResponseSchema 存在时启用 json_object 模式并把 Schema 注入 system 消息。
func (p *OpenAIProvider) buildRequest(req *llm.ChatRequest) *openaiRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	out := &openaiRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	schemaHint := ""
	if len(req.ResponseSchema) > 0 {
		out.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
		schemaHint = "\n\nRespond ONLY with a JSON object conforming to this JSON Schema:\n" + string(req.ResponseSchema)
	}

	for _, m := range req.Messages {
		msg := openaiMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == llm.RoleSystem && schemaHint != "" {
			msg.Content += schemaHint
			schemaHint = ""
		}
		out.Messages = append(out.Messages, msg)
	}
	// 没有 system 消息时，Schema 提示作为独立 system 消息前置
	if schemaHint != "" {
		out.Messages = append([]openaiMessage{{Role: "system", Content: strings.TrimSpace(schemaHint)}}, out.Messages...)
	}

	return out
}

func (p *OpenAIProvider) doRequest(ctx context.Context, endpoint string, reqBody *openaiRequest) (*openaiResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build openai request: %w", err)
	}
	p.buildHeaders(httpReq)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code:      llm.ErrUpstreamError,
			Message:   fmt.Sprintf("openai request failed: %v", err),
			Retryable: true,
			Provider:  "openai",
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readOpenAIErrMsg(resp.Body)
		p.logger.Warn("openai completion failed",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, llm.NewError("openai", resp.StatusCode, msg)
	}

	var out openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}

	p.logger.Debug("openai completion ok",
		zap.Duration("latency", time.Since(start)),
		zap.Int("choices", len(out.Choices)))
	return &out, nil
}

func (p *OpenAIProvider) convertResponse(in *openaiResponse) *llm.ChatResponse {
	out := &llm.ChatResponse{
		ID:        in.ID,
		Provider:  "openai",
		Model:     in.Model,
		CreatedAt: time.Now(),
	}

	for _, c := range in.Choices {
		out.Choices = append(out.Choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: c.Message.Content},
		})
	}

	if in.Usage != nil {
		out.Usage = llm.ChatUsage{
			PromptTokens:     in.Usage.PromptTokens,
			CompletionTokens: in.Usage.CompletionTokens,
			TotalTokens:      in.Usage.TotalTokens,
		}
	}
	return out
}

func (p *OpenAIProvider) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	if p.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", p.cfg.Organization)
	}
}

func readOpenAIErrMsg(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var body openaiErrorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(string(data))
}
