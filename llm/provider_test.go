package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		code      ErrorCode
		retryable bool
	}{
		{401, ErrUnauthorized, false},
		{403, ErrUnauthorized, false},
		{429, ErrRateLimited, true},
		{408, ErrUpstreamTimeout, true},
		{504, ErrUpstreamTimeout, true},
		{529, ErrModelOverloaded, true},
		{500, ErrUpstreamError, true},
		{503, ErrUpstreamError, true},
		{400, ErrInvalidRequest, false},
		{404, ErrInvalidRequest, false},
	}

	for _, tt := range tests {
		err := NewError("gemini", tt.status, "boom")
		assert.Equal(t, tt.code, err.Code, "status %d", tt.status)
		assert.Equal(t, tt.retryable, err.Retryable, "status %d", tt.status)
		assert.Equal(t, tt.status, err.HTTPStatus)
		assert.Equal(t, "gemini", err.Provider)
		assert.Equal(t, "boom", err.Error())
	}
}

func TestFirstText(t *testing.T) {
	resp := &ChatResponse{
		Choices: []ChatChoice{
			{Message: Message{Role: RoleAssistant, Content: "hello"}},
			{Message: Message{Role: RoleAssistant, Content: "ignored"}},
		},
	}
	text, err := resp.FirstText()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestFirstTextEmpty(t *testing.T) {
	var nilResp *ChatResponse
	_, err := nilResp.FirstText()
	assert.Error(t, err)

	_, err = (&ChatResponse{}).FirstText()
	assert.Error(t, err)
}
