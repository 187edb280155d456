package market

import (
	"testing"

	"go.uber.org/zap"
)

func kline(openTime int64, open, high, low, close string) []any {
	return []any{
		float64(openTime), open, high, low, close, "1000",
		float64(openTime + 899_999), "50000", float64(120),
	}
}

func TestParseKlines(t *testing.T) {
	rows := []any{
		kline(1_700_000_000_000, "100", "105", "95", "102"),
		kline(1_700_000_900_000, "102", "108", "101", "107"),
	}
	candles := ParseKlines(rows, zap.NewNop())
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	first := candles[0]
	if first.Open != 100 || first.High != 105 || first.Low != 95 || first.Close != 102 {
		t.Fatalf("unexpected OHLC: %+v", first)
	}
	if first.Volume != 1000 || first.QuoteVolume != 50000 || first.TradeCount != 120 {
		t.Fatalf("unexpected volume fields: %+v", first)
	}
	if !candles[1].OpenTime.After(first.OpenTime) {
		t.Fatalf("expected increasing open times")
	}
}

func TestParseKlinesTruncatesOnDuplicateOpenTime(t *testing.T) {
	rows := []any{
		kline(1_700_000_000_000, "100", "105", "95", "102"),
		kline(1_700_000_000_000, "102", "108", "101", "107"),
		kline(1_700_001_800_000, "107", "110", "106", "109"),
	}
	candles := ParseKlines(rows, zap.NewNop())
	if len(candles) != 1 {
		t.Fatalf("expected series truncated at duplicate timestamp, got %d candles", len(candles))
	}
}

func TestParseKlinesSkipsMalformedRow(t *testing.T) {
	rows := []any{
		kline(1_700_000_000_000, "100", "105", "95", "102"),
		[]any{"garbage"},
		kline(1_700_000_900_000, "102", "108", "101", "107"),
	}
	candles := ParseKlines(rows, zap.NewNop())
	if len(candles) != 2 {
		t.Fatalf("expected malformed row skipped, got %d candles", len(candles))
	}
}

func TestParseTickers(t *testing.T) {
	rows := []map[string]any{
		{
			"symbol": "BTCUSDT", "quoteVolume": "120000000", "priceChangePercent": "2.5",
			"lastPrice": "43000", "highPrice": "44000", "lowPrice": "41000",
			"volume": "2800", "count": float64(912345),
		},
		{"symbol": "BADUSDT", "quoteVolume": "not-a-number", "priceChangePercent": "1.0"},
		{"quoteVolume": "5", "priceChangePercent": "1.0"},
	}
	tickers := ParseTickers(rows, zap.NewNop())
	if len(tickers) != 1 {
		t.Fatalf("expected 1 valid ticker, got %d", len(tickers))
	}
	tk := tickers[0]
	if tk.Symbol != "BTCUSDT" || tk.QuoteVolume != 120_000_000 || tk.PriceChangePercent != 2.5 {
		t.Fatalf("unexpected ticker: %+v", tk)
	}
	if tk.TradeCount != 912345 {
		t.Fatalf("expected trade count 912345, got %d", tk.TradeCount)
	}
}

func TestFloatFromAnyVariants(t *testing.T) {
	if f, ok := floatFromAny(" 1.5 "); !ok || f != 1.5 {
		t.Fatalf("expected 1.5 from padded string, got %f (ok=%v)", f, ok)
	}
	if f, ok := floatFromAny(float64(3)); !ok || f != 3 {
		t.Fatalf("expected 3 from float64, got %f (ok=%v)", f, ok)
	}
	if _, ok := floatFromAny(nil); ok {
		t.Fatalf("expected nil to fail")
	}
	if _, ok := floatFromAny("abc"); ok {
		t.Fatalf("expected non-numeric string to fail")
	}
}

func TestSeriesAccessors(t *testing.T) {
	candles := ParseKlines([]any{
		kline(1_700_000_000_000, "100", "105", "95", "102"),
		kline(1_700_000_900_000, "102", "108", "101", "107"),
	}, zap.NewNop())
	closes := Closes(candles)
	highs := Highs(candles)
	lows := Lows(candles)
	if closes[1] != 107 || highs[0] != 105 || lows[1] != 101 {
		t.Fatalf("unexpected accessor values: closes=%v highs=%v lows=%v", closes, highs, lows)
	}
}
