package alerts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"gap-screener/internal/screener"
	"gap-screener/internal/signal"

	"go.uber.org/zap"
)

type fakeSender struct {
	enabled bool
	fail    bool
	sent    []string
}

func (f *fakeSender) Enabled() bool { return f.enabled }

func (f *fakeSender) Send(_ context.Context, message string) error {
	if f.fail {
		return errors.New("send rejected")
	}
	f.sent = append(f.sent, message)
	return nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) Close() error { return nil }

func buyResult(symbol string, confidence, price float64) screener.SymbolResult {
	return screener.SymbolResult{
		Symbol:           symbol,
		Signal:           signal.SignalBuy,
		Confidence:       confidence,
		CurrentPrice:     price,
		CumulativeChange: 2.0,
		Trend:            signal.TrendStrongBullish,
	}
}

func countByPrefix(messages []string, prefix string) int {
	count := 0
	for _, m := range messages {
		if strings.HasPrefix(m, prefix) {
			count++
		}
	}
	return count
}

func TestNotifyBundleDeduplicates(t *testing.T) {
	sender := &fakeSender{enabled: true}
	n := NewNotifier(sender, newMemStore(), nil, zap.NewNop())
	bundle := screener.Bundle{Buy: []screener.SymbolResult{buyResult("BTCUSDT", 0.8, 43000)}}

	n.NotifyBundle(context.Background(), bundle)
	firstRun := len(sender.sent)
	if got := countByPrefix(sender.sent, "BUY signal"); got != 1 {
		t.Fatalf("expected 1 signal message, got %d", got)
	}
	if got := countByPrefix(sender.sent, "Scan complete"); got != 1 {
		t.Fatalf("expected a summary after a new signal, got %d", got)
	}

	// Nothing new: no signal repeat and no summary.
	n.NotifyBundle(context.Background(), bundle)
	if len(sender.sent) != firstRun {
		t.Fatalf("expected no messages for a repeated signal, got %d extra",
			len(sender.sent)-firstRun)
	}

	// Any component of the signature moving makes it a fresh alert.
	bundle.Buy[0].CurrentPrice = 43100
	n.NotifyBundle(context.Background(), bundle)
	if got := countByPrefix(sender.sent, "BUY signal"); got != 2 {
		t.Fatalf("expected a new signal message after price moved, got %d", got)
	}
}

func TestNotifyBundleRetriesAfterSendFailure(t *testing.T) {
	sender := &fakeSender{enabled: true, fail: true}
	n := NewNotifier(sender, newMemStore(), nil, zap.NewNop())
	bundle := screener.Bundle{Buy: []screener.SymbolResult{buyResult("BTCUSDT", 0.8, 43000)}}

	n.NotifyBundle(context.Background(), bundle)
	if len(sender.sent) != 0 {
		t.Fatalf("expected no recorded sends while failing")
	}

	sender.fail = false
	n.NotifyBundle(context.Background(), bundle)
	if got := countByPrefix(sender.sent, "BUY signal"); got != 1 {
		t.Fatalf("expected a failed alert to be retried on the next cycle, got %d signal sends", got)
	}
}

func TestNotifyBundleDisabledSenderIsNoop(t *testing.T) {
	sender := &fakeSender{enabled: false}
	n := NewNotifier(sender, newMemStore(), nil, zap.NewNop())
	n.NotifyBundle(context.Background(), screener.Bundle{
		Buy: []screener.SymbolResult{buyResult("BTCUSDT", 0.8, 43000)},
	})
	if len(sender.sent) != 0 {
		t.Fatalf("expected no sends from a disabled sender")
	}
}

func TestSignature(t *testing.T) {
	got := Signature(buyResult("BTCUSDT", 0.8, 43000))
	if got != "BTCUSDT-0.80-43000.00000000" {
		t.Fatalf("unexpected signature %q", got)
	}
}

func TestFormatSignal(t *testing.T) {
	r := buyResult("BTCUSDT", 0.8, 43000)
	r.Volume24h = 90_000_000
	r.PriceChange24h = 3.1
	r.SignalDetails.Lookback = 3
	r.Indicators.RSI = 62.5
	r.Indicators.ATR = 120
	r.Indicators.EMADiffs = map[int]float64{20: 1.25, 60: -0.4}

	msg := FormatSignal(r)
	for _, want := range []string{
		"BUY signal: BTCUSDT",
		"Price: 43000.0000",
		"Confidence: 80%",
		"Change over 3 candles: +2.00%",
		"Trend: strong_bullish",
		"24h volume: 90.0M USDT",
		"24h change: +3.10%",
		"RSI: 62.5",
		"ATR: 120.0000",
		"EMA diffs: 20:+1.25% 60:-0.40%",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatSummary(t *testing.T) {
	msg := FormatSummary(screener.Summary{
		TotalSymbols:     12,
		BuySignals:       2,
		BuyConfidenceAvg: 0.75,
		SellSignals:      0,
		AvgVolume:        150_000_000,
		MaxPriceChange:   6.4,
	})
	for _, want := range []string{
		"Scan complete: 12 symbols",
		"Buy signals: 2 (avg confidence 75%)",
		"Sell signals: 0",
		"Avg 24h volume: 150.0M USDT",
		"Max 24h move: 6.40%",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("summary missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatSignalSell(t *testing.T) {
	r := buyResult("ETHUSDT", 0.75, 0.00004212)
	r.Signal = signal.SignalSell
	r.CumulativeChange = -1.5
	r.Trend = signal.TrendStrongBearish

	msg := FormatSignal(r)
	if !strings.HasPrefix(msg, "SELL signal: ETHUSDT") {
		t.Fatalf("expected sell prefix, got:\n%s", msg)
	}
	if !strings.Contains(msg, "Price: 0.00004212") {
		t.Fatalf("expected full-precision sub-unit price, got:\n%s", msg)
	}
	if !strings.Contains(msg, "-1.50%") {
		t.Fatalf("expected signed negative change, got:\n%s", msg)
	}
}
