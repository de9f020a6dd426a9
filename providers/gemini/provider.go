package gemini

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

// GeminiProvider 实现 Google Gemini 的 LLM Provider。
// Gemini API 特点：
// 1. 使用 x-goog-api-key 请求头认证
// 2. system 指令通过 systemInstruction 字段单独传递
// 3. 原生支持输出形状约束（responseSchema + responseMimeType）
type GeminiProvider struct {
	cfg     providers.GeminiConfig
	client  *http.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	retryer retry.Retryer
}

// NewGeminiProvider 创建 Gemini Provider。
func NewGeminiProvider(cfg providers.GeminiConfig, logger *zap.Logger) *GeminiProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout.Std()
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}

	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}

	return &GeminiProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("provider", "gemini")),
		limiter: providers.NewLimiter(cfg.RPS),
		retryer: retry.NewBackoffRetryer(policy, logger),
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/v1beta/models", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readErrMsg(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency}, fmt.Errorf("gemini health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Gemini 消息结构
type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user, model
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      float32         `json:"temperature,omitempty"`
	MaxOutputTokens  int             `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
	ModelVersion  string            `json:"modelVersion,omitempty"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Completion 实现 llm.Provider。
func (p *GeminiProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	body, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(p.cfg.BaseURL, "/"), model)

	var out *llm.ChatResponse
	err = p.retryer.Do(ctx, func() error {
		resp, callErr := p.doRequest(ctx, endpoint, body)
		if callErr != nil {
			return callErr
		}
		out = p.convertResponse(model, resp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// buildRequest 将统一请求转换为 Gemini 格式。
// ResponseSchema 存在时启用原生 JSON 输出约束。
func (p *GeminiProvider) buildRequest(req *llm.ChatRequest) (*geminiRequest, error) {
	out := &geminiRequest{}

	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case llm.RoleUser:
			out.Contents = append(out.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: m.Content}},
			})
		case llm.RoleAssistant:
			out.Contents = append(out.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: m.Content}},
			})
		default:
			return nil, fmt.Errorf("unsupported message role: %s", m.Role)
		}
	}

	gc := &geminiGenerationConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	}
	if len(req.ResponseSchema) > 0 {
		gc.ResponseMimeType = "application/json"
		gc.ResponseSchema = req.ResponseSchema
	}
	out.GenerationConfig = gc

	return out, nil
}

func (p *GeminiProvider) doRequest(ctx context.Context, endpoint string, reqBody *geminiRequest) (*geminiResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	p.buildHeaders(httpReq)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code:      llm.ErrUpstreamError,
			Message:   fmt.Sprintf("gemini request failed: %v", err),
			Retryable: true,
			Provider:  "gemini",
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readErrMsg(resp.Body)
		p.logger.Warn("gemini completion failed",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, llm.NewError("gemini", resp.StatusCode, msg)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	p.logger.Debug("gemini completion ok",
		zap.Duration("latency", time.Since(start)),
		zap.Int("candidates", len(out.Candidates)))
	return &out, nil
}

func (p *GeminiProvider) convertResponse(model string, in *geminiResponse) *llm.ChatResponse {
	out := &llm.ChatResponse{
		Provider:  "gemini",
		Model:     model,
		CreatedAt: time.Now(),
	}

	for i, c := range in.Candidates {
		var sb strings.Builder
		for _, part := range c.Content.Parts {
			sb.WriteString(part.Text)
		}
		out.Choices = append(out.Choices, llm.ChatChoice{
			Index:        i,
			FinishReason: strings.ToLower(c.FinishReason),
			Message:      llm.Message{Role: llm.RoleAssistant, Content: sb.String()},
		})
	}

	if in.UsageMetadata != nil {
		out.Usage = llm.ChatUsage{
			PromptTokens:     in.UsageMetadata.PromptTokenCount,
			CompletionTokens: in.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      in.UsageMetadata.TotalTokenCount,
		}
	}
	return out
}

func (p *GeminiProvider) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)
}

func readErrMsg(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var body geminiErrorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(string(data))
}
