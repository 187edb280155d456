package screener

import (
	"context"
	"strconv"

	"gap-screener/internal/cache"
	"gap-screener/internal/market"
	"gap-screener/internal/metrics"

	"go.uber.org/zap"
)

// DataSource supplies candle and ticker data. Empty results mean "no data";
// errors are reserved for transport-level failures.
type DataSource interface {
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
	FetchTickers(ctx context.Context, symbol string) ([]market.TickerSnapshot, error)
}

// RawClient is the exchange API surface the cached source wraps. The Binance
// client satisfies it.
type RawClient interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]any, error)
	Tickers(ctx context.Context, symbol string) ([]map[string]any, error)
}

// CachedSource parses upstream payloads into market types and caches the
// parsed results under canonical keys, so repeated requests inside one TTL
// window cost nothing upstream.
type CachedSource struct {
	client  RawClient
	cache   *cache.Cache[any]
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewCachedSource(client RawClient, c *cache.Cache[any], m *metrics.Metrics, log *zap.Logger) *CachedSource {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &CachedSource{client: client, cache: c, log: log, metrics: m}
}

func (s *CachedSource) Cache() *cache.Cache[any] {
	return s.cache
}

func (s *CachedSource) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	key := cache.Key("klines", map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	})
	if v, ok := s.cache.Get(key); ok {
		s.metrics.CacheHits.Inc()
		if candles, ok := v.([]market.Candle); ok {
			return candles, nil
		}
	}
	s.metrics.CacheMisses.Inc()
	rows, err := s.client.Klines(ctx, symbol, interval, limit)
	if err != nil {
		s.metrics.FetchErrors.Inc()
		return nil, err
	}
	candles := market.ParseKlines(rows, s.log)
	if len(candles) > 0 {
		s.cache.Put(key, candles)
	}
	return candles, nil
}

func (s *CachedSource) FetchTickers(ctx context.Context, symbol string) ([]market.TickerSnapshot, error) {
	target := symbol
	if target == "" {
		target = "all"
	}
	key := cache.Key("tickers", map[string]string{"symbol": target})
	if v, ok := s.cache.Get(key); ok {
		s.metrics.CacheHits.Inc()
		if tickers, ok := v.([]market.TickerSnapshot); ok {
			return tickers, nil
		}
	}
	s.metrics.CacheMisses.Inc()
	rows, err := s.client.Tickers(ctx, symbol)
	if err != nil {
		s.metrics.FetchErrors.Inc()
		return nil, err
	}
	tickers := market.ParseTickers(rows, s.log)
	if len(tickers) > 0 {
		s.cache.Put(key, tickers)
	}
	return tickers, nil
}
