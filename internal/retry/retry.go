package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"tradepilot/internal/logger"
)

// defaultRetryable 可重试错误的消息特征。命中任意一项即按瞬时错误处理。
var defaultRetryable = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection",
	"network",
	"rate limit",
	"too many requests",
	"status=429",
	"status=500",
	"status=502",
	"status=503",
	"status=504",
}

// Policy 重试参数。零值字段使用默认：3 次、1s 起步、10s 封顶、倍率 2。
type Policy struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	ExtraRetryable []string
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2
	}
	return p
}

// Executor 以有界指数退避包裹一次易失败操作。
type Executor struct {
	policy  Policy
	sleepFn func(ctx context.Context, d time.Duration) error
}

func NewExecutor(policy Policy) *Executor {
	return &Executor{
		policy:  policy.withDefaults(),
		sleepFn: sleepCtx,
	}
}

// Do 执行 op：不可重试错误立即上抛；可重试错误按
// min(initial*factor^attempt, max) 退避后重试，最多 MaxRetries 次。
func (e *Executor) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	policy := e.policy
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !e.Retryable(lastErr) {
			return lastErr
		}
		if attempt >= policy.MaxRetries {
			return lastErr
		}
		delay := backoffDelay(policy, attempt)
		logger.Warnf("retry %s: attempt %d/%d failed, waiting %s: %v",
			name, attempt+1, policy.MaxRetries, delay, lastErr)
		if err := e.sleepFn(ctx, delay); err != nil {
			return err
		}
	}
}

// Retryable 判断错误是否归类为瞬时错误。
func (e *Executor) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var tr interface{ Transient() bool }
	if errors.As(err, &tr) {
		return tr.Transient()
	}
	msg := strings.ToLower(err.Error())
	for _, token := range defaultRetryable {
		if strings.Contains(msg, token) {
			return true
		}
	}
	for _, token := range e.policy.ExtraRetryable {
		token = strings.ToLower(strings.TrimSpace(token))
		if token != "" && strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

func backoffDelay(p Policy, attempt int) time.Duration {
	delay := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.BackoffFactor
	}
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
