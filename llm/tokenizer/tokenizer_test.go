package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimator(t *testing.T) {
	e := NewEstimator("some-model")
	assert.Equal(t, "estimator", e.Name())

	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// 非空短文本至少算 1 个 token
	n, err = e.CountTokens("ab")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.CountTokens(strings.Repeat("a", 400))
	require.NoError(t, err)
	assert.Equal(t, 100, n)
}

func TestForModelFallsBackToEstimator(t *testing.T) {
	tok := ForModel("totally-unknown-model")
	assert.Equal(t, "estimator", tok.Name())
}

func TestTiktokenEncodingSelection(t *testing.T) {
	tok, err := NewTiktokenTokenizer("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "tiktoken/o200k_base", tok.Name())

	// 前缀匹配：gpt-4o-mini 复用 gpt-4o 的编码
	tok, err = NewTiktokenTokenizer("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "tiktoken/o200k_base", tok.Name())

	_, err = NewTiktokenTokenizer("claude-sonnet-4-5")
	require.Error(t, err)
}

func TestTiktokenLongestPrefixWins(t *testing.T) {
	// gpt-4o-mini 同时是 gpt-4o 与 gpt-4 的前缀匹配；
	// 选择必须稳定落在更长的 gpt-4o 上，与表的遍历顺序无关
	for i := 0; i < 500; i++ {
		tok, err := NewTiktokenTokenizer("gpt-4o-mini")
		require.NoError(t, err)
		require.Equal(t, "tiktoken/o200k_base", tok.Name())
	}

	tok, err := NewTiktokenTokenizer("gpt-4-0613")
	require.NoError(t, err)
	assert.Equal(t, "tiktoken/cl100k_base", tok.Name())

	tok, err = NewTiktokenTokenizer("gpt-4-turbo-2024-04-09")
	require.NoError(t, err)
	assert.Equal(t, "tiktoken/cl100k_base", tok.Name())
}
