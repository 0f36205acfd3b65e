package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted 达到最大尝试次数
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy 可复用的重试策略，只用于幂等读操作。
//
// 等待时间优先取 Delays[i]（第 i 次重试前的等待）；Delays 用完后沿用最后一个值。
// Delays 为空时按 InitialBackoff * BackoffFactor^i 指数退避，封顶 MaxBackoff。
type Policy struct {
	MaxAttempts    int // 总尝试次数（含首次），<=0 视为 1
	Delays         []time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	// Retryable 为 nil 时所有错误都重试
	Retryable func(error) bool
	// OnRetry 每次决定重试后、等待前回调（日志、指标）
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy 3 次尝试，间隔 100ms、200ms
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delays:      []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
	}
}

// Exponential 指数退避策略
func Exponential(maxAttempts int, initial, max time.Duration, factor float64) Policy {
	return Policy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: initial,
		MaxBackoff:     max,
		BackoffFactor:  factor,
	}
}

// Delay 第 retry 次重试（从 0 开始）前的等待时间
func (p Policy) Delay(retry int) time.Duration {
	if len(p.Delays) > 0 {
		if retry < len(p.Delays) {
			return p.Delays[retry]
		}
		return p.Delays[len(p.Delays)-1]
	}

	backoff := p.InitialBackoff
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	for i := 0; i < retry; i++ {
		backoff = time.Duration(float64(backoff) * factor)
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Do 执行 fn 直到成功、遇到不可重试错误、ctx 结束或尝试次数用完。
// 不可重试错误原样返回；次数用完时返回包装了最后一次错误的 ErrExhausted。
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	max := p.attempts()
	var lastErr error

	for attempt := 1; attempt <= max; attempt++ {
		if attempt > 1 {
			wait := p.Delay(attempt - 2)
			if p.OnRetry != nil {
				p.OnRetry(attempt-1, wait, lastErr)
			}
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, max, lastErr)
}
