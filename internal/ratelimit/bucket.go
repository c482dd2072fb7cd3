package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradepilot/internal/logger"
)

const defaultPollInterval = 100 * time.Millisecond

// lowQuotaRatio 低于容量的该比例时触发一次低配额事件。
const lowQuotaRatio = 0.2

// Status 当前令牌桶快照。
type Status struct {
	Remaining int       `json:"remaining"`
	Capacity  int       `json:"capacity"`
	ResetAt   time.Time `json:"reset_at"`
}

// Bucket 线性回填的令牌桶。容量 C，窗口 W，每经过 elapsed 回填
// floor(elapsed/W*C) 个令牌并截断到 C。取不到令牌时按固定间隔轮询。
type Bucket struct {
	name       string
	capacity   int
	window     time.Duration
	pollEvery  time.Duration
	onLowQuota func(name string, st Status)

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	lowFired   bool

	nowFn func() time.Time
}

func NewBucket(name string, capacity int, window time.Duration) *Bucket {
	if capacity <= 0 {
		capacity = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	b := &Bucket{
		name:      name,
		capacity:  capacity,
		window:    window,
		pollEvery: defaultPollInterval,
		tokens:    capacity,
		nowFn:     time.Now,
	}
	b.lastRefill = b.nowFn()
	return b
}

// SetLowQuotaHook 注册低配额回调（纯观测，不改变行为）。
func (b *Bucket) SetLowQuotaHook(fn func(name string, st Status)) {
	b.mu.Lock()
	b.onLowQuota = fn
	b.mu.Unlock()
}

// Acquire 阻塞直到取得一个令牌或 ctx 取消。
func (b *Bucket) Acquire(ctx context.Context) error {
	for {
		if b.tryAcquire() {
			return nil
		}
		timer := time.NewTimer(b.pollEvery)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit %s: %w", b.name, ctx.Err())
		case <-timer.C:
		}
	}
}

// TryAcquire 非阻塞获取，拿不到立即返回 false。
func (b *Bucket) TryAcquire() bool {
	return b.tryAcquire()
}

func (b *Bucket) tryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	if b.onLowQuota != nil && float64(b.tokens) < float64(b.capacity)*lowQuotaRatio {
		if !b.lowFired {
			b.lowFired = true
			hook := b.onLowQuota
			st := b.statusLocked()
			go hook(b.name, st)
		}
	}
	return true
}

// Status 返回当前快照。ResetAt 为桶按当前速率回满的估算时间。
func (b *Bucket) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.statusLocked()
}

func (b *Bucket) statusLocked() Status {
	missing := b.capacity - b.tokens
	perToken := b.window / time.Duration(b.capacity)
	return Status{
		Remaining: b.tokens,
		Capacity:  b.capacity,
		ResetAt:   b.nowFn().Add(time.Duration(missing) * perToken),
	}
}

func (b *Bucket) refillLocked() {
	now := b.nowFn()
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	refill := int(float64(elapsed) / float64(b.window) * float64(b.capacity))
	if refill <= 0 {
		return
	}
	b.tokens += refill
	if b.tokens >= b.capacity {
		b.tokens = b.capacity
	}
	if float64(b.tokens) >= float64(b.capacity)*lowQuotaRatio {
		b.lowFired = false
	}
	b.lastRefill = now
}

// DefaultLowQuotaHook 默认低配额事件：只打日志。
func DefaultLowQuotaHook(name string, st Status) {
	logger.Warnf("rate limit %s: quota low remaining=%d/%d reset_at=%s",
		name, st.Remaining, st.Capacity, st.ResetAt.UTC().Format(time.RFC3339))
}
