package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradepilot/internal/ai"
	"tradepilot/internal/config"
	"tradepilot/internal/market"
	"tradepilot/internal/position"
	"tradepilot/internal/ratelimit"
	"tradepilot/internal/retry"
	"tradepilot/internal/signal"
	"tradepilot/internal/store/gormstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedSource struct {
	candles []market.Candle
	price   float64
}

func (s *cannedSource) Name() string { return "canned" }
func (s *cannedSource) FetchCandles(ctx context.Context, req market.FetchRequest) ([]market.Candle, error) {
	return s.candles, nil
}
func (s *cannedSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	return s.price, nil
}

type cannedPredictor struct {
	decision ai.Decision
}

func (p *cannedPredictor) Available() bool  { return true }
func (p *cannedPredictor) ActiveID() string { return "canned:model" }
func (p *cannedPredictor) Predict(ctx context.Context, input ai.PromptInput) (ai.Decision, error) {
	return p.decision, nil
}

func rally(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		p := 100 + float64(i)*1.5
		out[i] = market.Candle{
			OpenTime: int64(i) * 3_600_000,
			Open:     p - 1,
			High:     p + 0.5,
			Low:      p - 1.5,
			Close:    p,
			Volume:   2000,
		}
	}
	return out
}

func newLiveFixture(t *testing.T, cfg *config.Config, predictor signal.Predictor) (*LiveService, *gormstore.Store) {
	t.Helper()
	store, err := gormstore.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	source := &cannedSource{candles: rally(60), price: 188.5}
	bucket := ratelimit.NewBucket("test", 1000, time.Minute)
	retrier := retry.NewExecutor(retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond})
	marketSvc := market.NewService(source, store, bucket, retrier, 100)

	tunables := config.NewTunables(cfg)
	engine := signal.NewEngine(predictor, tunables)
	positions := position.NewManager(store, marketSvc, tunables)
	return NewLiveService(marketSvc, engine, positions, store, tunables), store
}

func TestLiveService_RunCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("wait signal is persisted without opening a position", func(t *testing.T) {
		cfg := &config.Config{
			Filter:  config.FilterConfig{RSIOversold: 30, RSIOverbought: 99, VolumeRatioMin: 1.2, MinBodyPct: 0.5},
			Trading: config.TradingConfig{MinConfidence: 80, PositionSizeUSD: 100, TakeProfitPct: 6, StopLossPct: 3},
		}
		svc, store := newLiveFixture(t, cfg, &cannedPredictor{})

		require.NoError(t, svc.RunCycle(ctx, "BTCUSDT", "1h"))

		signals, err := store.RecentSignals(ctx, 10)
		require.NoError(t, err)
		require.Len(t, signals, 1)
		assert.Equal(t, signal.ActionWait, signals[0].FinalAction)

		open, err := store.ListOpenPositions(ctx)
		require.NoError(t, err)
		assert.Empty(t, open)
	})

	t.Run("confirmed buy opens a position sized in usd", func(t *testing.T) {
		// 阈值放宽到让上涨序列必出 BUY 候选
		cfg := &config.Config{
			Filter:  config.FilterConfig{RSIOversold: 101, RSIOverbought: 200, VolumeRatioMin: 0.001, MinBodyPct: 0.001},
			Trading: config.TradingConfig{MinConfidence: 80, PositionSizeUSD: 100, TakeProfitPct: 6, StopLossPct: 3},
		}
		predictor := &cannedPredictor{
			decision: ai.Decision{Action: ai.ActionBuy, Confidence: 90, Reason: "confirmed", RiskLevel: ai.RiskMedium},
		}
		svc, store := newLiveFixture(t, cfg, predictor)

		require.NoError(t, svc.RunCycle(ctx, "BTCUSDT", "1h"))

		open, err := store.ListOpenPositions(ctx)
		require.NoError(t, err)
		require.Len(t, open, 1)

		lastClose := 100 + 59*1.5
		assert.Equal(t, lastClose, open[0].EntryPrice)
		assert.InDelta(t, 100.0/lastClose, open[0].Size, 1e-9)

		signals, err := store.RecentSignals(ctx, 10)
		require.NoError(t, err)
		require.Len(t, signals, 1)
		assert.Equal(t, signal.ActionBuy, signals[0].FinalAction)
		assert.Equal(t, "canned:model", signals[0].AIProviderID)

		t.Run("second cycle stays idempotent", func(t *testing.T) {
			require.NoError(t, svc.RunCycle(ctx, "BTCUSDT", "1h"))
			open, err := store.ListOpenPositions(ctx)
			require.NoError(t, err)
			assert.Len(t, open, 1)
		})
	})
}
