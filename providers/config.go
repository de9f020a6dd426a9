package providers

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Duration 是配置文件中的时长，接受 "30s" 形式的字面量
// 与纳秒整数两种写法。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("parse duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\" or an integer")
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("parse duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\" or an integer")
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std 返回标准库表示。
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GeminiConfig Gemini Provider 配置
type GeminiConfig struct {
	APIKey     string   `json:"api_key" yaml:"api_key"`
	BaseURL    string   `json:"base_url" yaml:"base_url"`
	Model      string   `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout    Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RPS        float64  `json:"rps,omitempty" yaml:"rps,omitempty"` // 客户端限流（0 表示不限）
}

// ClaudeConfig Claude Provider 配置
type ClaudeConfig struct {
	APIKey     string   `json:"api_key" yaml:"api_key"`
	BaseURL    string   `json:"base_url" yaml:"base_url"`
	Model      string   `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout    Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RPS        float64  `json:"rps,omitempty" yaml:"rps,omitempty"`
}

// OpenAIConfig OpenAI Provider 配置
type OpenAIConfig struct {
	APIKey       string   `json:"api_key" yaml:"api_key"`
	BaseURL      string   `json:"base_url" yaml:"base_url"`
	Organization string   `json:"organization,omitempty" yaml:"organization,omitempty"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout      Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries   int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RPS          float64  `json:"rps,omitempty" yaml:"rps,omitempty"`
}

// NewLimiter 按配置的 RPS 创建客户端限流器。
// rps <= 0 时返回 nil，表示不做客户端限流。
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
