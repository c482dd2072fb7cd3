package market

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Timeframe 描述受支持的周期（内部 duration + 数据源 interval）。
type Timeframe struct {
	Key            string
	Duration       time.Duration
	SourceInterval string
}

var supportedTimeframes = map[string]Timeframe{
	"1m":  {Key: "1m", Duration: time.Minute, SourceInterval: "1m"},
	"5m":  {Key: "5m", Duration: 5 * time.Minute, SourceInterval: "5m"},
	"15m": {Key: "15m", Duration: 15 * time.Minute, SourceInterval: "15m"},
	"30m": {Key: "30m", Duration: 30 * time.Minute, SourceInterval: "30m"},
	"1h":  {Key: "1h", Duration: time.Hour, SourceInterval: "1h"},
	"2h":  {Key: "2h", Duration: 2 * time.Hour, SourceInterval: "2h"},
	"4h":  {Key: "4h", Duration: 4 * time.Hour, SourceInterval: "4h"},
	"1d":  {Key: "1d", Duration: 24 * time.Hour, SourceInterval: "1d"},
	"3d":  {Key: "3d", Duration: 72 * time.Hour, SourceInterval: "3d"},
	"1w":  {Key: "1w", Duration: 7 * 24 * time.Hour, SourceInterval: "1w"},
	"1mo": {Key: "1mo", Duration: 30 * 24 * time.Hour, SourceInterval: "1M"},
}

// ParseTimeframe 返回标准化周期定义。
func ParseTimeframe(input string) (Timeframe, error) {
	trimmed := strings.TrimSpace(input)
	// "1M"（月线）与 "1m"（分钟线）仅大小写不同，先于小写化处理。
	key := strings.ToLower(trimmed)
	if trimmed == "1M" {
		key = "1mo"
	}
	tf, ok := supportedTimeframes[key]
	if !ok {
		return Timeframe{}, fmt.Errorf("unsupported timeframe: %s", input)
	}
	return tf, nil
}

// SupportedTimeframes 返回所有支持的 key（排序后）。
func SupportedTimeframes() []string {
	keys := make([]string, 0, len(supportedTimeframes))
	for k := range supportedTimeframes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
