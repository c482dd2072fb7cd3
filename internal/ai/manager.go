package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradepilot/internal/ai/provider"
	"tradepilot/internal/logger"
	"tradepilot/internal/ratelimit"
	"tradepilot/internal/retry"
)

// Health 单个供应商的运行状态，仅由 Manager 持有与更新。
type Health struct {
	ServiceID    string  `json:"service_id"`
	Ready        bool    `json:"ready"`
	RequestCount int64   `json:"request_count"`
	ErrorCount   int64   `json:"error_count"`
	LastError    string  `json:"last_error,omitempty"`
	CostAccrued  float64 `json:"cost_accrued"`
}

// ManagerOptions Manager 的装配参数。
type ManagerOptions struct {
	Providers []provider.ModelProvider
	Primary   string
	Timeout   time.Duration
	Retry     retry.Policy
	Buckets   *ratelimit.Registry
	BucketCap int
	BucketWin time.Duration
}

// Manager 把 N 个供应商适配器收敛为一个稳定的 Predict 契约。
// 主力供应商失败后按序尝试回退列表，首个成功者成为新的主力
// （粘性切换）；全部失败返回聚合错误，由上层回退 WAIT。
type Manager struct {
	providers []provider.ModelProvider
	retrier   *retry.Executor
	timeout   time.Duration
	buckets   *ratelimit.Registry
	bucketCap int
	bucketWin time.Duration

	mu       sync.Mutex
	activeID string
	health   map[string]*Health
}

func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		providers: opts.Providers,
		retrier:   retry.NewExecutor(opts.Retry),
		timeout:   opts.Timeout,
		buckets:   opts.Buckets,
		bucketCap: opts.BucketCap,
		bucketWin: opts.BucketWin,
		health:    make(map[string]*Health, len(opts.Providers)),
	}
	if m.timeout <= 0 {
		m.timeout = 30 * time.Second
	}
	if m.buckets == nil {
		m.buckets = ratelimit.NewRegistry()
	}
	if m.bucketCap <= 0 {
		m.bucketCap = 30
	}
	if m.bucketWin <= 0 {
		m.bucketWin = time.Minute
	}
	for _, p := range m.providers {
		if p == nil {
			continue
		}
		m.health[p.ID()] = &Health{ServiceID: p.ID(), Ready: p.Enabled()}
	}
	primary := strings.TrimSpace(opts.Primary)
	if primary != "" && m.health[primary] != nil {
		m.activeID = primary
	} else if len(m.providers) > 0 && m.providers[0] != nil {
		m.activeID = m.providers[0].ID()
	}
	return m
}

// Available 是否存在至少一个已注册供应商。
func (m *Manager) Available() bool {
	return m != nil && len(m.providers) > 0
}

// ActiveID 返回当前主力供应商。
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// SwitchProvider 手动切换主力供应商。
func (m *Manager) SwitchProvider(id string) error {
	id = strings.TrimSpace(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.health[id]; !ok {
		return fmt.Errorf("unknown provider %q", id)
	}
	prev := m.activeID
	m.activeID = id
	logger.Infof("ai manager: active provider switched manually %s -> %s", prev, id)
	return nil
}

// Stats 返回各供应商健康与成本快照。
func (m *Manager) Stats() []Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Health, 0, len(m.providers))
	for _, p := range m.providers {
		if p == nil {
			continue
		}
		if h := m.health[p.ID()]; h != nil {
			out = append(out, *h)
		}
	}
	return out
}

// Predict 先尝试主力供应商（限流+重试），失败后按注册顺序把每个
// ready 的回退供应商各尝试一次；成功者粘住成为新的主力。
func (m *Manager) Predict(ctx context.Context, input PromptInput) (Decision, error) {
	if !m.Available() {
		return Decision{}, fmt.Errorf("ai manager: no providers configured")
	}
	system, user := BuildPrompt(input)
	payload := provider.ChatPayload{System: system, User: user, ExpectJSON: true}

	var errs []error
	for _, p := range m.ordered() {
		if p == nil {
			continue
		}
		id := p.ID()
		if !m.isReady(id) {
			continue
		}
		withRetry := id == m.ActiveID()
		decision, err := m.callProvider(ctx, p, payload, withRetry)
		if err != nil {
			m.recordError(id, err)
			errs = append(errs, &ProviderError{ProviderID: id, Err: err})
			logger.Warnf("ai manager: provider %s failed: %v", id, err)
			continue
		}
		m.stick(id)
		return decision, nil
	}
	if len(errs) == 0 {
		return Decision{}, fmt.Errorf("ai manager: no ready providers")
	}
	return Decision{}, &AllProvidersError{Errors: errs}
}

// TestConnection 对每个供应商发送最小探测请求，更新 ready 状态。
func (m *Manager) TestConnection(ctx context.Context) {
	for _, p := range m.providers {
		if p == nil {
			continue
		}
		id := p.ID()
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		_, err := p.Call(probeCtx, provider.ChatPayload{User: "ping: reply with the word pong"})
		cancel()
		m.mu.Lock()
		if h := m.health[id]; h != nil {
			h.Ready = err == nil
			if err != nil {
				h.LastError = err.Error()
			}
		}
		m.mu.Unlock()
		if err != nil {
			logger.Warnf("ai manager: connection test failed for %s: %v", id, err)
		} else {
			logger.Infof("ai manager: provider %s ready", id)
		}
	}
}

// StartHealthLoop 周期性探测供应商可用性，提前把故障节点摘出候选。
func (m *Manager) StartHealthLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.TestConnection(ctx)
			}
		}
	}()
}

// ordered 返回以当前主力打头、其余按注册顺序排列的候选序列。
func (m *Manager) ordered() []provider.ModelProvider {
	active := m.ActiveID()
	out := make([]provider.ModelProvider, 0, len(m.providers))
	for _, p := range m.providers {
		if p != nil && p.ID() == active {
			out = append(out, p)
			break
		}
	}
	for _, p := range m.providers {
		if p == nil || p.ID() == active {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (m *Manager) callProvider(ctx context.Context, p provider.ModelProvider, payload provider.ChatPayload, withRetry bool) (Decision, error) {
	bucket := m.buckets.Bucket("ai:"+p.ID(), m.bucketCap, m.bucketWin)

	var raw string
	call := func(ctx context.Context) error {
		if err := bucket.Acquire(ctx); err != nil {
			return err
		}
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		var cerr error
		raw, cerr = p.Call(cctx, payload)
		return cerr
	}

	m.recordRequest(p.ID(), p.CostPerCallUSD())

	var err error
	if withRetry {
		err = m.retrier.Do(ctx, "ai:"+p.ID(), call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return Decision{}, err
	}
	// schema 失败在适配器边界立即上抛，绝不凑一个有置信度的决策
	return Parse(raw)
}

func (m *Manager) isReady(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.health[id]
	return h != nil && h.Ready
}

func (m *Manager) stick(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID != id {
		logger.Infof("ai manager: sticky failover, active provider %s -> %s", m.activeID, id)
		m.activeID = id
	}
	if h := m.health[id]; h != nil {
		h.Ready = true
	}
}

func (m *Manager) recordRequest(id string, cost float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h := m.health[id]; h != nil {
		h.RequestCount++
		h.CostAccrued += cost
	}
}

func (m *Manager) recordError(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h := m.health[id]; h != nil {
		h.ErrorCount++
		h.LastError = err.Error()
	}
}
