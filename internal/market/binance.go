package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

const maxFetchLimit = 1500

// BinanceSource 基于 go-binance SDK 的 USDT 合约行情源。
type BinanceSource struct {
	client *futures.Client
}

type BinanceConfig struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func NewBinanceSource(cfg BinanceConfig) *BinanceSource {
	client := futures.NewClient("", "")
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &BinanceSource{client: client}
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) FetchCandles(ctx context.Context, req FetchRequest) ([]Candle, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	interval := strings.TrimSpace(req.Interval)
	if symbol == "" || interval == "" {
		return nil, fmt.Errorf("symbol/interval is required")
	}
	limit := req.Limit
	if limit <= 0 || limit > maxFetchLimit {
		limit = 500
	}
	svc := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
	if req.Start > 0 {
		svc = svc.StartTime(req.Start)
	}
	if req.End > 0 {
		svc = svc.EndTime(req.End)
	}
	kls, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s@%s: %w", symbol, interval, err)
	}
	out := make([]Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	SortAscending(out)
	return out, nil
}

// LatestPrice 取合约最新成交价。
func (s *BinanceSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, fmt.Errorf("symbol is required")
	}
	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}
	for _, p := range prices {
		if p == nil {
			continue
		}
		if strings.EqualFold(p.Symbol, symbol) {
			val := parseFloat(p.Price)
			if val <= 0 {
				return 0, fmt.Errorf("binance ticker %s: non-positive price %q", symbol, p.Price)
			}
			return val, nil
		}
	}
	return 0, fmt.Errorf("binance ticker %s: empty response", symbol)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
