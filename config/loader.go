// =============================================================================
// 📦 Debateflow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("DEBATEFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BaSui01/debateflow/providers"
	"gopkg.in/yaml.v3"
)

// Config 是 Debateflow 的完整配置结构
type Config struct {
	// Participants 辩论参与者（必须恰好 4 个）
	Participants []ParticipantConfig `yaml:"participants"`

	// Providers 各 LLM 后端配置
	Providers ProvidersConfig `yaml:"providers"`

	// Debate 辩论管线配置
	Debate DebateConfig `yaml:"debate"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics"`
}

// ParticipantConfig 单个参与者配置
type ParticipantConfig struct {
	// 参与者标识（辩论内唯一）
	Name string `yaml:"name"`
	// 后端类型: gemini, claude, openai
	Provider string `yaml:"provider"`
	// 模型名称
	Model string `yaml:"model"`
}

// ProvidersConfig LLM 后端配置
type ProvidersConfig struct {
	Gemini providers.GeminiConfig `yaml:"gemini"`
	Claude providers.ClaudeConfig `yaml:"claude"`
	OpenAI providers.OpenAIConfig `yaml:"openai"`
}

// DebateConfig 辩论管线配置
type DebateConfig struct {
	// 各阶段采样温度
	AssessTemperature float32 `yaml:"assess_temperature"`
	SolveTemperature  float32 `yaml:"solve_temperature"`
	ReviewTemperature float32 `yaml:"review_temperature"`
	JudgeTemperature  float32 `yaml:"judge_temperature"`
	// 单次后端调用超时
	CallTimeout providers.Duration `yaml:"call_timeout"`
	// 单次调用最大输出 token 数
	MaxTokens int `yaml:"max_tokens"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 级别: debug, info, warn, error
	Level string `yaml:"level"`
	// 格式: json, console
	Format string `yaml:"format"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	// Prometheus 暴露端口（0 表示不暴露）
	Port int `yaml:"port"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Debate: DebateConfig{
			AssessTemperature: 0.7,
			SolveTemperature:  0.7,
			ReviewTemperature: 0.7,
			JudgeTemperature:  0.0,
			CallTimeout:       providers.Duration(120 * time.Second),
			MaxTokens:         4096,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "debateflow",
			SampleRate:  1.0,
		},
		Metrics: MetricsConfig{
			Namespace: "debateflow",
		},
	}
}

// Loader 配置加载器
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{envPrefix: "DEBATEFLOW"}
}

// WithConfigPath 设置 YAML 配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load 执行加载: 默认值 → YAML → 环境变量，最后校验
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", l.configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", l.configPath, err)
		}
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 应用环境变量覆盖。
// 密钥类字段只从环境读取是部署上的常态，优先支持。
func (l *Loader) applyEnv(cfg *Config) {
	if v := os.Getenv(l.envPrefix + "_GEMINI_API_KEY"); v != "" {
		cfg.Providers.Gemini.APIKey = v
	}
	if v := os.Getenv(l.envPrefix + "_CLAUDE_API_KEY"); v != "" {
		cfg.Providers.Claude.APIKey = v
	}
	if v := os.Getenv(l.envPrefix + "_OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv(l.envPrefix + "_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(l.envPrefix + "_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
		cfg.Telemetry.Enabled = true
	}
}

// Validate 校验配置的结构约束
func (c *Config) Validate() error {
	if n := len(c.Participants); n != 0 && n != 4 {
		return fmt.Errorf("debate requires exactly 4 participants, got %d", n)
	}

	seen := make(map[string]bool, len(c.Participants))
	for i, p := range c.Participants {
		if p.Name == "" {
			return fmt.Errorf("participants[%d]: name must not be empty", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("participants[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true

		switch p.Provider {
		case "gemini", "claude", "openai":
		default:
			return fmt.Errorf("participants[%d]: unknown provider %q", i, p.Provider)
		}
	}

	if c.Debate.CallTimeout <= 0 {
		return fmt.Errorf("debate.call_timeout must be positive")
	}
	return nil
}
