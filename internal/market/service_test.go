package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradepilot/internal/ratelimit"
	"tradepilot/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	candles  []Candle
	price    float64
	priceErr error
	fetchErr error

	fetchCalls []FetchRequest
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchCandles(ctx context.Context, req FetchRequest) ([]Candle, error) {
	f.fetchCalls = append(f.fetchCalls, req)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.candles, nil
}

func (f *fakeSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	return f.price, nil
}

type memCandleStore struct {
	byKey map[int64]Candle
}

func newMemCandleStore() *memCandleStore {
	return &memCandleStore{byKey: make(map[int64]Candle)}
}

func (s *memCandleStore) UpsertCandles(ctx context.Context, symbol, interval string, candles []Candle) error {
	for _, c := range candles {
		s.byKey[c.OpenTime] = c
	}
	return nil
}

func (s *memCandleStore) CandlesAscending(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	out := make([]Candle, 0, len(s.byKey))
	for _, c := range s.byKey {
		out = append(out, c)
	}
	SortAscending(out)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memCandleStore) LatestOpenTime(ctx context.Context, symbol, interval string) (int64, error) {
	var latest int64
	for t := range s.byKey {
		if t > latest {
			latest = t
		}
	}
	return latest, nil
}

func newTestService(source Source, store CandleStore) *Service {
	bucket := ratelimit.NewBucket("test", 1000, time.Minute)
	retrier := retry.NewExecutor(retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond})
	return NewService(source, store, bucket, retrier, 100)
}

func TestService_SyncCandles(t *testing.T) {
	ctx := context.Background()

	t.Run("initial sync has no start time", func(t *testing.T) {
		source := &fakeSource{candles: []Candle{{OpenTime: 1000, Close: 10}, {OpenTime: 2000, Close: 11}}}
		store := newMemCandleStore()
		svc := newTestService(source, store)

		got, err := svc.SyncCandles(ctx, "btcusdt", "1h")
		require.NoError(t, err)
		assert.Len(t, got, 2)
		require.Len(t, source.fetchCalls, 1)
		assert.Zero(t, source.fetchCalls[0].Start)
		assert.Equal(t, "BTCUSDT", source.fetchCalls[0].Symbol)
	})

	t.Run("incremental sync resumes from stored candle", func(t *testing.T) {
		source := &fakeSource{candles: []Candle{{OpenTime: 2000, Close: 11.5}, {OpenTime: 3000, Close: 12}}}
		store := newMemCandleStore()
		store.byKey[1000] = Candle{OpenTime: 1000, Close: 10}
		store.byKey[2000] = Candle{OpenTime: 2000, Close: 11}
		svc := newTestService(source, store)

		got, err := svc.SyncCandles(ctx, "BTCUSDT", "1h")
		require.NoError(t, err)
		require.Len(t, source.fetchCalls, 1)
		assert.Equal(t, int64(2000), source.fetchCalls[0].Start, "refetch from last stored open time")

		// 未收盘K线被覆盖
		assert.Len(t, got, 3)
		assert.Equal(t, 11.5, got[1].Close)
	})

	t.Run("unsupported timeframe", func(t *testing.T) {
		svc := newTestService(&fakeSource{}, newMemCandleStore())
		_, err := svc.SyncCandles(ctx, "BTCUSDT", "7m")
		assert.Error(t, err)
	})
}

func TestService_LatestPrice(t *testing.T) {
	ctx := context.Background()

	t.Run("ticker path", func(t *testing.T) {
		svc := newTestService(&fakeSource{price: 50000}, newMemCandleStore())
		price, err := svc.LatestPrice(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.Equal(t, 50000.0, price)
	})

	t.Run("falls back to last close", func(t *testing.T) {
		source := &fakeSource{
			priceErr: errors.New("ticker unavailable"),
			candles:  []Candle{{OpenTime: 1000, Close: 49900}},
		}
		svc := newTestService(source, newMemCandleStore())
		price, err := svc.LatestPrice(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.Equal(t, 49900.0, price)
	})

	t.Run("both paths down returns error", func(t *testing.T) {
		source := &fakeSource{
			priceErr: errors.New("ticker unavailable"),
			fetchErr: errors.New("klines unavailable"),
		}
		svc := newTestService(source, newMemCandleStore())
		_, err := svc.LatestPrice(ctx, "BTCUSDT")
		assert.Error(t, err)
	})
}
