package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// 统一的 LLM 错误码，用于对齐 HTTP 状态、可重试性与降级策略。
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"      // 参数/格式错误
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"         // 未授权或密钥失效
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"         // 上游或本地限流
	ErrContentFiltered     ErrorCode = "LLM_CONTENT_FILTERED"     // 命中内容安全
	ErrModelOverloaded     ErrorCode = "LLM_MODEL_OVERLOADED"     // 模型过载
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"     // 上游超时
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"       // 上游 5xx/网络错误
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE" // Provider 不可用
)

// Error 是 Provider 边界上的统一错误结构。
// Retryable 标记该错误是否值得在 Provider 内部重试；
// 重试耗尽后错误原样向上传播，由调用方决定降级策略。
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// NewError 构造统一错误并按 HTTP 状态推断可重试性。
func NewError(provider string, status int, msg string) *Error {
	code, retryable := classifyStatus(status)
	return &Error{
		Code:       code,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  retryable,
		Provider:   provider,
	}
}

// classifyStatus 将 HTTP 状态映射到错误码与可重试性。
func classifyStatus(status int) (ErrorCode, bool) {
	switch {
	case status == 401 || status == 403:
		return ErrUnauthorized, false
	case status == 429:
		return ErrRateLimited, true
	case status == 408 || status == 504:
		return ErrUpstreamTimeout, true
	case status == 529:
		return ErrModelOverloaded, true
	case status >= 500:
		return ErrUpstreamError, true
	case status >= 400:
		return ErrInvalidRequest, false
	default:
		return ErrUpstreamError, true
	}
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
}

// ChatRequest 是一次同步补全请求。
// ResponseSchema 为可选的输出形状约束（JSON Schema 描述），
// 不支持原生约束的 Provider 将其注入提示词。
type ChatRequest struct {
	TraceID        string          `json:"trace_id"`
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float32         `json:"temperature,omitempty"`
	ResponseSchema json.RawMessage `json:"response_schema,omitempty"`
	Timeout        time.Duration   `json:"timeout,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// FirstText 返回首个 choice 的文本内容。
func (r *ChatResponse) FirstText() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return r.Choices[0].Message.Content, nil
}

// HealthStatus 表示 Provider 健康检查结果。
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider 定义统一的 LLM 适配接口。
// 辩论管线仅依赖此接口；具体厂商客户端位于 providers/ 下。
// 瞬态失败（网络、限流、5xx）由 Provider 内部按策略重试，
// 重试耗尽后作为单次调用的不可恢复错误返回。
type Provider interface {
	// Completion 发起同步聊天请求，返回完整响应
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthCheck 执行轻量级健康检查，返回延迟与可用性信息
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name 返回 Provider 的唯一标识
	Name() string
}
