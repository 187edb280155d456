package screener

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"gap-screener/internal/config"
	"gap-screener/internal/indicator"
	"gap-screener/internal/market"
	"gap-screener/internal/metrics"
	"gap-screener/internal/signal"

	"go.uber.org/zap"
)

const minCandlesForAnalysis = 10

const errInsufficientData = "Insufficient data"

// SymbolResult is the per-instrument outcome of one scan. Placeholder
// results (Error set, signal none) keep downstream aggregation free of
// absent-entry special cases.
type SymbolResult struct {
	Symbol           string              `json:"symbol"`
	Error            string              `json:"error,omitempty"`
	CurrentPrice     float64             `json:"current_price"`
	Signal           signal.Signal       `json:"signal"`
	Confidence       float64             `json:"confidence"`
	CumulativeChange float64             `json:"cumulative_change"`
	SignalDetails    signal.Details      `json:"signal_details"`
	Indicators       indicator.Set       `json:"indicators"`
	Trend            signal.Trend        `json:"trend"`
	TrendDetails     signal.TrendResult  `json:"-"`
	Volume24h        float64             `json:"volume_24h"`
	PriceChange24h   float64             `json:"price_change_24h"`
	Timestamp        time.Time           `json:"timestamp"`
}

type Summary struct {
	TotalSymbols      int       `json:"total_symbols"`
	BuySignals        int       `json:"buy_signals"`
	SellSignals       int       `json:"sell_signals"`
	BuyConfidenceAvg  float64   `json:"buy_confidence_avg"`
	SellConfidenceAvg float64   `json:"sell_confidence_avg"`
	AvgVolume         float64   `json:"avg_volume"`
	MaxVolume         float64   `json:"max_volume"`
	AvgPriceChange    float64   `json:"avg_price_change"`
	MaxPriceChange    float64   `json:"max_price_change"`
	Timestamp         time.Time `json:"timestamp"`
}

// Bundle is one complete published scan. It is immutable after publication;
// a new scan swaps in a fresh bundle.
type Bundle struct {
	Processed   []SymbolResult `json:"processed"`
	Buy         []SymbolResult `json:"buy_signals"`
	Sell        []SymbolResult `json:"sell_signals"`
	Summary     Summary        `json:"summary"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Recorder receives scan byproducts for optional persistence. Implementations
// must not block the scan.
type Recorder interface {
	RecordCandles(symbol, interval string, candles []market.Candle)
	RecordScan(summary Summary)
}

// Screener drives the filter → fetch → compute → classify pipeline and
// publishes immutable result bundles.
type Screener struct {
	cfg      config.ScreenerConfig
	source   DataSource
	calc     *indicator.Calculator
	detector *signal.Detector
	log      *zap.Logger
	metrics  *metrics.Metrics
	recorder Recorder
	sleep    func(time.Duration)
	now      func() time.Time

	refreshMu sync.Mutex // one in-flight cycle at a time

	mu          sync.RWMutex
	latest      *Bundle
	subscribers []func(Bundle)
}

func New(cfg config.ScreenerConfig, source DataSource, m *metrics.Metrics, log *zap.Logger) *Screener {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Screener{
		cfg:      cfg,
		source:   source,
		calc:     indicator.NewCalculator(cfg.EMAPeriods),
		detector: signal.NewDetector(cfg.SignalLookbackPeriods, cfg.SignalChangeThresholdPct),
		log:      log,
		metrics:  m,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// SetRecorder attaches an optional scan recorder. Must be called before Run.
func (s *Screener) SetRecorder(r Recorder) {
	s.recorder = r
}

// OnPublish registers a callback invoked with each newly published bundle.
// Must be called before Run.
func (s *Screener) OnPublish(fn func(Bundle)) {
	s.subscribers = append(s.subscribers, fn)
}

// Latest returns the most recently published bundle.
func (s *Screener) Latest() (Bundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Bundle{}, false
	}
	return *s.latest, true
}

// Seed publishes a bundle without running a scan; used for warm starts.
// It never replaces a bundle produced by a real scan and does not notify
// subscribers.
func (s *Screener) Seed(bundle Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		s.latest = &bundle
	}
}

// FilterTickers keeps instruments that clear the liquidity and volatility
// thresholds, sorted by quote volume descending.
func (s *Screener) FilterTickers(tickers []market.TickerSnapshot) []market.TickerSnapshot {
	filtered := make([]market.TickerSnapshot, 0, len(tickers))
	for _, tk := range tickers {
		if tk.QuoteVolume >= s.cfg.VolumeThresholdUSDT && math.Abs(tk.PriceChangePercent) >= s.cfg.PriceChangeThresholdPct {
			filtered = append(filtered, tk)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].QuoteVolume > filtered[j].QuoteVolume
	})
	s.log.Info("filtered symbols",
		zap.Int("kept", len(filtered)),
		zap.Int("total", len(tickers)),
	)
	return filtered
}

// ProcessSymbol runs the full indicator/signal/trend pipeline for one
// instrument. Short candle histories produce the insufficient-data
// placeholder instead of an error.
func (s *Screener) ProcessSymbol(symbol string, candles []market.Candle, ticker *market.TickerSnapshot) SymbolResult {
	if len(candles) < minCandlesForAnalysis {
		return SymbolResult{
			Symbol:     symbol,
			Error:      errInsufficientData,
			Signal:     signal.SignalNone,
			Confidence: 0.0,
			Timestamp:  s.now().UTC(),
		}
	}

	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)
	currentPrice := closes[len(closes)-1]

	indicators := s.calc.Compute(closes, highs, lows)
	detected := s.detector.Detect(candles)
	trend := signal.ClassifyTrend(currentPrice, indicators.EMAs)

	result := SymbolResult{
		Symbol:           symbol,
		CurrentPrice:     currentPrice,
		Signal:           detected.Signal,
		Confidence:       detected.Confidence,
		CumulativeChange: detected.CumulativeChange,
		SignalDetails:    detected.Details,
		Indicators:       indicators,
		Trend:            trend.Trend,
		TrendDetails:     trend,
		Timestamp:        s.now().UTC(),
	}
	if ticker != nil {
		result.Volume24h = ticker.QuoteVolume
		result.PriceChange24h = ticker.PriceChangePercent
	}
	switch detected.Signal {
	case signal.SignalBuy:
		s.metrics.BuySignals.Inc()
	case signal.SignalSell:
		s.metrics.SellSignals.Inc()
	}
	return result
}

// Scan runs one full refresh cycle and returns the resulting bundle without
// publishing it.
func (s *Screener) Scan(ctx context.Context) (Bundle, error) {
	tickers, err := s.source.FetchTickers(ctx, "")
	if err != nil {
		return Bundle{}, err
	}
	filtered := s.FilterTickers(tickers)

	processed := make([]SymbolResult, 0, len(filtered))
	for i, tk := range filtered {
		if err := ctx.Err(); err != nil {
			return Bundle{}, err
		}
		candles, err := s.source.FetchKlines(ctx, tk.Symbol, s.cfg.DefaultKlineInterval, s.cfg.KlineLimit)
		if err != nil {
			s.metrics.SymbolsFailed.Inc()
			s.log.Warn("kline fetch failed, skipping symbol",
				zap.String("symbol", tk.Symbol),
				zap.Error(err),
			)
			continue
		}
		if s.recorder != nil && len(candles) > 0 {
			s.recorder.RecordCandles(tk.Symbol, s.cfg.DefaultKlineInterval, candles)
		}
		ticker := tk
		processed = append(processed, s.ProcessSymbol(tk.Symbol, candles, &ticker))
		s.metrics.SymbolsProcessed.Inc()
		if i < len(filtered)-1 && s.cfg.FetchDelay > 0 {
			s.sleep(s.cfg.FetchDelay)
		}
	}

	sort.SliceStable(processed, func(i, j int) bool {
		return processed[i].Confidence > processed[j].Confidence
	})

	buy, sell := s.Segment(processed)
	bundle := Bundle{
		Processed:   processed,
		Buy:         buy,
		Sell:        sell,
		Summary:     Summarize(processed, s.now().UTC()),
		GeneratedAt: s.now().UTC(),
	}
	if s.recorder != nil {
		s.recorder.RecordScan(bundle.Summary)
	}
	return bundle, nil
}

// Segment partitions processed results into buy and sell lists at the
// minimum confidence threshold, each sorted by confidence descending.
func (s *Screener) Segment(processed []SymbolResult) (buy, sell []SymbolResult) {
	for _, r := range processed {
		if r.Confidence < s.cfg.MinSignalConfidence {
			continue
		}
		switch r.Signal {
		case signal.SignalBuy:
			buy = append(buy, r)
		case signal.SignalSell:
			sell = append(sell, r)
		}
	}
	sort.SliceStable(buy, func(i, j int) bool { return buy[i].Confidence > buy[j].Confidence })
	sort.SliceStable(sell, func(i, j int) bool { return sell[i].Confidence > sell[j].Confidence })
	return buy, sell
}

// Refresh synchronously runs one cycle and publishes the new bundle.
func (s *Screener) Refresh(ctx context.Context) (Bundle, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := s.now()
	bundle, err := s.Scan(ctx)
	if err != nil {
		s.metrics.CycleFailures.Inc()
		return Bundle{}, err
	}
	s.metrics.CyclesRun.Inc()
	s.publish(bundle)
	s.log.Info("refresh cycle complete",
		zap.Int("symbols", len(bundle.Processed)),
		zap.Int("buy_signals", len(bundle.Buy)),
		zap.Int("sell_signals", len(bundle.Sell)),
		zap.Duration("elapsed", s.now().Sub(start)),
	)
	return bundle, nil
}

func (s *Screener) publish(bundle Bundle) {
	s.mu.Lock()
	s.latest = &bundle
	subs := s.subscribers
	s.mu.Unlock()
	for _, fn := range subs {
		fn(bundle)
	}
}

// Run drives periodic refreshes until the context is cancelled. A failed
// cycle leaves the previous bundle published and delays the next attempt by
// the failure backoff instead of the normal cadence.
func (s *Screener) Run(ctx context.Context) error {
	delay := time.Duration(0) // immediate first cycle
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if _, err := s.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error("refresh cycle failed", zap.Error(err))
			delay = s.cfg.FailureBackoff
			continue
		}
		delay = s.cfg.RefreshInterval
	}
}
