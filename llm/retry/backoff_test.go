package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/debateflow/llm"
)

func fastPolicy(maxRetries int) *Policy {
	return &Policy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(2), nil)
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientError(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(2), nil)
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return llm.NewError("test", 429, "rate limited")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(2), nil)
	calls := 0
	wrapped := llm.NewError("test", 503, "unavailable")
	err := r.Do(context.Background(), func() error {
		calls++
		return wrapped
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUpstreamError, llmErr.Code)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(5), nil)
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return llm.NewError("test", 401, "bad key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRespectsContextCancel(t *testing.T) {
	slow := &Policy{
		MaxRetries:   3,
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
	}
	r := NewBackoffRetryer(slow, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := r.Do(ctx, func() error {
		return llm.NewError("test", 503, "unavailable")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoOnRetryCallback(t *testing.T) {
	policy := fastPolicy(2)
	var attempts []int
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	r := NewBackoffRetryer(policy, nil)
	_ = r.Do(context.Background(), func() error {
		return errors.New("always fails")
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestCalculateDelayBounded(t *testing.T) {
	policy := &Policy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       true,
	}
	r := NewBackoffRetryer(policy, nil).(*backoffRetryer)

	for attempt := 1; attempt <= 10; attempt++ {
		d := r.calculateDelay(attempt)
		// 抖动上界 ±25%，且不低于初始延迟
		assert.GreaterOrEqual(t, d, policy.InitialDelay)
		assert.LessOrEqual(t, d, time.Duration(float64(policy.MaxDelay)*1.25))
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(llm.NewError("p", 400, "bad request")))
	assert.True(t, IsRetryable(llm.NewError("p", 429, "slow down")))
	// 未分类错误（网络层）默认重试
	assert.True(t, IsRetryable(errors.New("connection reset")))
}
