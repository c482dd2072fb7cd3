package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	t.Run("common intervals", func(t *testing.T) {
		for in, wantDur := range map[string]time.Duration{
			"1m":  time.Minute,
			"15m": 15 * time.Minute,
			"1h":  time.Hour,
			"4h":  4 * time.Hour,
			"1d":  24 * time.Hour,
		} {
			tf, err := ParseTimeframe(in)
			require.NoError(t, err, in)
			assert.Equal(t, wantDur, tf.Duration, in)
		}
	})

	t.Run("uppercase is accepted", func(t *testing.T) {
		tf, err := ParseTimeframe("4H")
		require.NoError(t, err)
		assert.Equal(t, "4h", tf.Key)
	})

	t.Run("1M is a month, 1m is a minute", func(t *testing.T) {
		month, err := ParseTimeframe("1M")
		require.NoError(t, err)
		assert.Equal(t, "1mo", month.Key)
		assert.Equal(t, "1M", month.SourceInterval)

		minute, err := ParseTimeframe("1m")
		require.NoError(t, err)
		assert.Equal(t, "1m", minute.Key)
		assert.Equal(t, time.Minute, minute.Duration)
	})

	t.Run("unknown timeframe", func(t *testing.T) {
		_, err := ParseTimeframe("7m")
		assert.Error(t, err)
	})
}

func TestCandleBody(t *testing.T) {
	assert.InDelta(t, 0.006, Candle{Open: 100, Close: 100.6}.Body(), 1e-9)
	assert.InDelta(t, 0.006, Candle{Open: 100, Close: 99.4}.Body(), 1e-9)
	assert.Zero(t, Candle{Open: 0, Close: 50}.Body())
}

func TestSortAscending(t *testing.T) {
	candles := []Candle{{OpenTime: 3}, {OpenTime: 1}, {OpenTime: 2}}
	SortAscending(candles)
	assert.Equal(t, int64(1), candles[0].OpenTime)
	assert.Equal(t, int64(3), candles[2].OpenTime)
}
