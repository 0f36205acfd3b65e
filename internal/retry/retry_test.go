package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestPolicy_Do_SucceedsAfterRetries(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delays: []time.Duration{time.Millisecond, time.Millisecond}}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_Exhausted(t *testing.T) {
	var retries []int
	p := Policy{
		MaxAttempts: 3,
		Delays:      []time.Duration{time.Millisecond},
		OnRetry: func(attempt int, wait time.Duration, err error) {
			retries = append(retries, attempt)
		},
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errTransient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls, "总尝试次数不能超过 MaxAttempts")
	assert.Equal(t, []int{1, 2}, retries)
}

func TestPolicy_Do_NonRetryable(t *testing.T) {
	permanent := errors.New("not found")
	p := Policy{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return permanent
	})

	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, Delays: []time.Duration{time.Hour}}

	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
		cancel()
		return errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicy_Delay(t *testing.T) {
	fixed := DefaultPolicy()
	assert.Equal(t, 100*time.Millisecond, fixed.Delay(0))
	assert.Equal(t, 200*time.Millisecond, fixed.Delay(1))
	assert.Equal(t, 200*time.Millisecond, fixed.Delay(5))

	exp := Exponential(5, time.Second, 5*time.Second, 2.0)
	assert.Equal(t, time.Second, exp.Delay(0))
	assert.Equal(t, 2*time.Second, exp.Delay(1))
	assert.Equal(t, 4*time.Second, exp.Delay(2))
	assert.Equal(t, 5*time.Second, exp.Delay(3))
}
