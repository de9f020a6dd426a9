package debate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStructured_JSONFence(t *testing.T) {
	raw := "Here is my answer:\n```json\n{\"winner\": \"Solver_1\"}\n```\nHope that helps."
	assert.Equal(t, `{"winner": "Solver_1"}`, ExtractStructured(raw))
}

func TestExtractStructured_BareFence(t *testing.T) {
	raw := "```\n{\"confidence\": 0.8}\n```"
	assert.Equal(t, `{"confidence": 0.8}`, ExtractStructured(raw))
}

func TestExtractStructured_PrefersJSONFence(t *testing.T) {
	raw := "```\nnot this\n```\n```json\n{\"a\":1}\n```"
	assert.Equal(t, `{"a":1}`, ExtractStructured(raw))
}

func TestExtractStructured_NoFence(t *testing.T) {
	raw := "  {\"a\": 1}  \n"
	assert.Equal(t, `{"a": 1}`, ExtractStructured(raw))
}

func TestExtractStructured_UnclosedFence(t *testing.T) {
	// 未闭合围栏不算围栏块，回落到整体裁剪
	raw := "```json\n{\"a\": 1}"
	assert.Equal(t, "```json\n{\"a\": 1}", ExtractStructured(raw))
}

func TestDecodeRecord_Plain(t *testing.T) {
	var v FinalVerdict
	err := decodeRecord(`{"winner":"Solver_2","confidence":0.9,"reasoning":"clear"}`, &v)
	require.NoError(t, err)
	assert.Equal(t, "Solver_2", v.Winner)
	assert.InDelta(t, 0.9, v.Confidence, 1e-9)
}

func TestDecodeRecord_Fenced(t *testing.T) {
	raw := "Sure!\n```json\n{\"winner\":\"Solver_1\",\"confidence\":0.7,\"reasoning\":\"ok\"}\n```"
	var v FinalVerdict
	require.NoError(t, decodeRecord(raw, &v))
	assert.Equal(t, "Solver_1", v.Winner)
}

func TestDecodeRecord_BraceSpanFallback(t *testing.T) {
	// 无围栏且 JSON 前后带散文：括号扫描兜底
	raw := `The verdict is {"winner":"Solver_3","confidence":0.6,"reasoning":"r"} as requested.`
	var v FinalVerdict
	require.NoError(t, decodeRecord(raw, &v))
	assert.Equal(t, "Solver_3", v.Winner)
}

func TestDecodeRecord_NoJSON(t *testing.T) {
	var v FinalVerdict
	err := decodeRecord("I refuse to answer in JSON.", &v)
	require.Error(t, err)
}

func TestDecodeRecord_MalformedJSON(t *testing.T) {
	var v FinalVerdict
	err := decodeRecord(`{"winner": "Solver_1", "confidence": }`, &v)
	require.Error(t, err)
}
