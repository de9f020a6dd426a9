package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.7, cfg.Debate.SolveTemperature, 1e-6)
	assert.InDelta(t, 0.0, cfg.Debate.JudgeTemperature, 1e-6)
	assert.Equal(t, 120*time.Second, cfg.Debate.CallTimeout.Std())
	assert.Equal(t, 4096, cfg.Debate.MaxTokens)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "debateflow", cfg.Metrics.Namespace)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
participants:
  - name: alpha
    provider: gemini
    model: gemini-2.0-flash
  - name: bravo
    provider: claude
    model: claude-sonnet-4-5
  - name: charlie
    provider: openai
    model: gpt-4o
  - name: delta
    provider: gemini
    model: gemini-2.0-flash
providers:
  gemini:
    api_key: key-from-file
debate:
  judge_temperature: 0.1
  call_timeout: 30s
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	require.Len(t, cfg.Participants, 4)
	assert.Equal(t, "alpha", cfg.Participants[0].Name)
	assert.Equal(t, "claude", cfg.Participants[1].Provider)
	assert.Equal(t, "key-from-file", cfg.Providers.Gemini.APIKey)
	assert.InDelta(t, 0.1, cfg.Debate.JudgeTemperature, 1e-6)
	assert.Equal(t, 30*time.Second, cfg.Debate.CallTimeout.Std())
	assert.Equal(t, "debug", cfg.Log.Level)

	// 文件未覆盖的字段保留默认值
	assert.InDelta(t, 0.7, cfg.Debate.SolveTemperature, 1e-6)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEBATEFLOW_GEMINI_API_KEY", "env-gemini")
	t.Setenv("DEBATEFLOW_CLAUDE_API_KEY", "env-claude")
	t.Setenv("DEBATEFLOW_OPENAI_API_KEY", "env-openai")
	t.Setenv("DEBATEFLOW_LOG_LEVEL", "warn")
	t.Setenv("DEBATEFLOW_OTLP_ENDPOINT", "collector:4317")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "env-gemini", cfg.Providers.Gemini.APIKey)
	assert.Equal(t, "env-claude", cfg.Providers.Claude.APIKey)
	assert.Equal(t, "env-openai", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestValidateParticipantCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Participants = []ParticipantConfig{
		{Name: "a", Provider: "gemini"},
		{Name: "b", Provider: "claude"},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateDuplicateNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Participants = []ParticipantConfig{
		{Name: "a", Provider: "gemini"},
		{Name: "a", Provider: "claude"},
		{Name: "c", Provider: "openai"},
		{Name: "d", Provider: "gemini"},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateUnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Participants = []ParticipantConfig{
		{Name: "a", Provider: "gemini"},
		{Name: "b", Provider: "claude"},
		{Name: "c", Provider: "grok"},
		{Name: "d", Provider: "gemini"},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debate.CallTimeout = 0
	require.Error(t, cfg.Validate())
}
