package market

import "time"

// Candle is one time-bounded OHLCV observation. Immutable once parsed.
type Candle struct {
	OpenTime    time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	CloseTime   time.Time
	QuoteVolume float64
	TradeCount  int64
}

// TickerSnapshot carries 24h rolling statistics for one instrument. It has no
// timestamp of its own; the holder pairs it with the retrieval time.
type TickerSnapshot struct {
	Symbol             string
	QuoteVolume        float64
	PriceChangePercent float64
	LastPrice          float64
	HighPrice          float64
	LowPrice           float64
	BaseVolume         float64
	TradeCount         int64
}

func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}
