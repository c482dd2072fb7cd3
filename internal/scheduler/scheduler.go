package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tradepilot/internal/logger"
)

// Task 一个可周期执行的任务。返回错误只记录，不会终止调度。
type Task func(ctx context.Context) error

type entry struct {
	key      string
	interval time.Duration
	task     Task
	running  atomic.Bool
}

// Scheduler 按 key 管理独立节拍的周期任务。
// 同一 key 的任务绝不并发：上一轮还在执行时，到点的 tick 直接跳过
// 并记录；不同 key 之间互不影响。
type Scheduler struct {
	mu             sync.Mutex
	entries        []*entry
	runImmediately bool

	nowFn func() time.Time
}

func New(runImmediately bool) *Scheduler {
	return &Scheduler{
		runImmediately: runImmediately,
		nowFn:          time.Now,
	}
}

// Add 注册一个周期任务。必须在 Run 之前调用。
func (s *Scheduler) Add(key string, interval time.Duration, task Task) {
	if interval <= 0 || task == nil {
		logger.Warnf("scheduler: invalid task registration key=%s interval=%s", key, interval)
		return
	}
	s.mu.Lock()
	s.entries = append(s.entries, &entry{key: key, interval: interval, task: task})
	s.mu.Unlock()
}

// Run 启动全部任务循环并阻塞到 ctx 取消。
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	entries := make([]*entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	if len(entries) == 0 {
		logger.Warnf("scheduler: no tasks registered")
		<-ctx.Done()
		return ctx.Err()
	}

	logger.Infof("scheduler: starting %d task loops run_immediately=%v", len(entries), s.runImmediately)

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	if s.runImmediately {
		s.fire(ctx, e)
	}
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("scheduler: task %s stopped", e.key)
			return
		case <-ticker.C:
			s.fire(ctx, e)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, e *entry) {
	if !e.running.CompareAndSwap(false, true) {
		logger.Warnf("scheduler: task %s still running, tick skipped", e.key)
		return
	}
	defer e.running.Store(false)

	start := s.nowFn()
	if err := e.task(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Errorf("scheduler: task %s failed after %s: %v", e.key, time.Since(start).Truncate(time.Millisecond), err)
		return
	}
	logger.Debugf("scheduler: task %s completed in %s", e.key, time.Since(start).Truncate(time.Millisecond))
}
