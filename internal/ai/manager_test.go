package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradepilot/internal/ai/provider"
	"tradepilot/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodResponse = `{"action":"BUY","confidence":85,"reason":"confirmed","riskLevel":"MEDIUM"}`

type scriptedProvider struct {
	id       string
	response string
	err      error
	cost     float64
	calls    int
}

func (p *scriptedProvider) ID() string              { return p.id }
func (p *scriptedProvider) Enabled() bool           { return true }
func (p *scriptedProvider) CostPerCallUSD() float64 { return p.cost }
func (p *scriptedProvider) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

func newTestManager(providers ...provider.ModelProvider) *Manager {
	return NewManager(ManagerOptions{
		Providers: providers,
		Timeout:   time.Second,
		// 不可重试错误直达回退逻辑，测试里不等退避
		Retry: retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond},
	})
}

func promptInput() PromptInput {
	return PromptInput{Symbol: "BTCUSDT", Timeframe: "1h", Candidate: "BUY"}
}

func TestManager_PredictHappyPath(t *testing.T) {
	primary := &scriptedProvider{id: "primary", response: goodResponse, cost: 0.002}
	m := newTestManager(primary)

	d, err := m.Predict(context.Background(), promptInput())
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, d.Action)
	assert.Equal(t, 85.0, d.Confidence)
	assert.Equal(t, "primary", m.ActiveID())

	stats := m.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].RequestCount)
	assert.InDelta(t, 0.002, stats[0].CostAccrued, 1e-9)
}

func TestManager_StickyFailover(t *testing.T) {
	primary := &scriptedProvider{id: "primary", err: errors.New("invalid api key")}
	fallback := &scriptedProvider{id: "fallback", response: goodResponse}
	m := newTestManager(primary, fallback)
	require.Equal(t, "primary", m.ActiveID())

	t.Run("fallback succeeds and becomes active", func(t *testing.T) {
		d, err := m.Predict(context.Background(), promptInput())
		require.NoError(t, err)
		assert.Equal(t, ActionBuy, d.Action)
		assert.Equal(t, "fallback", m.ActiveID())
		assert.Equal(t, 1, primary.calls)
		assert.Equal(t, 1, fallback.calls)
	})

	t.Run("next call goes straight to new active", func(t *testing.T) {
		_, err := m.Predict(context.Background(), promptInput())
		require.NoError(t, err)
		assert.Equal(t, 1, primary.calls, "broken primary must not be retried once failover sticks")
		assert.Equal(t, 2, fallback.calls)
	})
}

func TestManager_AllProvidersFail(t *testing.T) {
	a := &scriptedProvider{id: "a", err: errors.New("invalid api key")}
	b := &scriptedProvider{id: "b", err: errors.New("model deprecated")}
	m := newTestManager(a, b)

	_, err := m.Predict(context.Background(), promptInput())
	require.Error(t, err)

	var all *AllProvidersError
	require.ErrorAs(t, err, &all)
	assert.Len(t, all.Errors, 2)
	assert.Equal(t, "a", m.ActiveID(), "active provider unchanged when nothing succeeded")

	for _, h := range m.Stats() {
		assert.Equal(t, int64(1), h.ErrorCount)
		assert.NotEmpty(t, h.LastError)
	}
}

func TestManager_MalformedResponseFailsOver(t *testing.T) {
	// 主力返回 200 但 schema 非法：不是瞬时错误，但要触发回退
	primary := &scriptedProvider{id: "primary", response: `{"action":"BUY"}`}
	fallback := &scriptedProvider{id: "fallback", response: goodResponse}
	m := newTestManager(primary, fallback)

	d, err := m.Predict(context.Background(), promptInput())
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, d.Action)
	assert.Equal(t, "fallback", m.ActiveID())
	assert.Equal(t, 1, primary.calls, "schema failure must not re-call the same provider")
}

func TestManager_PrimarySelection(t *testing.T) {
	a := &scriptedProvider{id: "a", response: goodResponse}
	b := &scriptedProvider{id: "b", response: goodResponse}

	t.Run("explicit primary wins", func(t *testing.T) {
		m := NewManager(ManagerOptions{Providers: []provider.ModelProvider{a, b}, Primary: "b"})
		assert.Equal(t, "b", m.ActiveID())
	})
	t.Run("unknown primary falls back to first registered", func(t *testing.T) {
		m := NewManager(ManagerOptions{Providers: []provider.ModelProvider{a, b}, Primary: "missing"})
		assert.Equal(t, "a", m.ActiveID())
	})
}

func TestManager_SwitchProvider(t *testing.T) {
	a := &scriptedProvider{id: "a", response: goodResponse}
	b := &scriptedProvider{id: "b", response: goodResponse}
	m := newTestManager(a, b)

	require.NoError(t, m.SwitchProvider("b"))
	assert.Equal(t, "b", m.ActiveID())
	assert.Error(t, m.SwitchProvider("nope"))
	assert.Equal(t, "b", m.ActiveID())
}

func TestManager_NotConfigured(t *testing.T) {
	m := newTestManager()
	assert.False(t, m.Available())
	_, err := m.Predict(context.Background(), promptInput())
	assert.Error(t, err)
}
