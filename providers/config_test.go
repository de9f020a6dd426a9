package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationYAML(t *testing.T) {
	var cfg GeminiConfig
	require.NoError(t, yaml.Unmarshal([]byte("timeout: 45s\n"), &cfg))
	assert.Equal(t, 45*time.Second, cfg.Timeout.Std())

	// 纳秒整数写法同样接受
	require.NoError(t, yaml.Unmarshal([]byte("timeout: 1000000000\n"), &cfg))
	assert.Equal(t, time.Second, cfg.Timeout.Std())

	assert.Error(t, yaml.Unmarshal([]byte("timeout: forever\n"), &cfg))
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := yaml.Marshal(d)
	require.NoError(t, err)

	var back Duration
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, d, back)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0))
	assert.Nil(t, NewLimiter(-1))

	l := NewLimiter(0.5)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())

	l = NewLimiter(10)
	require.NotNil(t, l)
	assert.Equal(t, 10, l.Burst())
}
