package market

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Binance kline payloads are positional arrays mixing numbers and numeric
// strings, so parsing stays tolerant rather than struct-bound.
const (
	klineOpenTime = iota
	klineOpen
	klineHigh
	klineLow
	klineClose
	klineVolume
	klineCloseTime
	klineQuoteVolume
	klineTradeCount
)

var errShortKline = errors.New("kline has fewer than 9 fields")

// ParseKlines converts raw kline rows into an ordered candle series. Open
// times must be strictly increasing; on a tie or regression the offending
// candle and everything after it is dropped with a warning.
func ParseKlines(rows []any, log *zap.Logger) []Candle {
	candles := make([]Candle, 0, len(rows))
	var lastOpen time.Time
	for i, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			if log != nil {
				log.Warn("skipping malformed kline", zap.Int("index", i), zap.Error(err))
			}
			continue
		}
		if len(candles) > 0 && !candle.OpenTime.After(lastOpen) {
			if log != nil {
				log.Warn("kline series out of order, truncating",
					zap.Int("index", i),
					zap.Time("open_time", candle.OpenTime),
					zap.Time("previous", lastOpen),
				)
			}
			break
		}
		candles = append(candles, candle)
		lastOpen = candle.OpenTime
	}
	return candles
}

func parseKline(row any) (Candle, error) {
	fields, ok := toSlice(row)
	if !ok || len(fields) < 9 {
		return Candle{}, errShortKline
	}
	open, ok1 := floatFromAny(fields[klineOpen])
	high, ok2 := floatFromAny(fields[klineHigh])
	low, ok3 := floatFromAny(fields[klineLow])
	closePx, ok4 := floatFromAny(fields[klineClose])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Candle{}, errors.New("non-numeric price field")
	}
	volume, _ := floatFromAny(fields[klineVolume])
	quoteVolume, _ := floatFromAny(fields[klineQuoteVolume])
	openMs, ok := intFromAny(fields[klineOpenTime])
	if !ok {
		return Candle{}, errors.New("non-numeric open time")
	}
	closeMs, _ := intFromAny(fields[klineCloseTime])
	trades, _ := intFromAny(fields[klineTradeCount])
	return Candle{
		OpenTime:    time.UnixMilli(openMs).UTC(),
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closePx,
		Volume:      volume,
		CloseTime:   time.UnixMilli(closeMs).UTC(),
		QuoteVolume: quoteVolume,
		TradeCount:  trades,
	}, nil
}

// ParseTickers converts raw 24h ticker objects. A record missing its symbol
// or with non-numeric volume/change fields is skipped with a warning; one bad
// ticker never fails the batch.
func ParseTickers(rows []map[string]any, log *zap.Logger) []TickerSnapshot {
	tickers := make([]TickerSnapshot, 0, len(rows))
	for _, row := range rows {
		symbol := stringFromAny(row["symbol"])
		if symbol == "" {
			if log != nil {
				log.Warn("skipping ticker without symbol")
			}
			continue
		}
		quoteVolume, ok1 := floatFromAny(row["quoteVolume"])
		priceChange, ok2 := floatFromAny(row["priceChangePercent"])
		if !ok1 || !ok2 {
			if log != nil {
				log.Warn("skipping malformed ticker", zap.String("symbol", symbol))
			}
			continue
		}
		lastPrice, _ := floatFromAny(row["lastPrice"])
		highPrice, _ := floatFromAny(row["highPrice"])
		lowPrice, _ := floatFromAny(row["lowPrice"])
		baseVolume, _ := floatFromAny(row["volume"])
		trades, _ := intFromAny(row["count"])
		tickers = append(tickers, TickerSnapshot{
			Symbol:             symbol,
			QuoteVolume:        quoteVolume,
			PriceChangePercent: priceChange,
			LastPrice:          lastPrice,
			HighPrice:          highPrice,
			LowPrice:           lowPrice,
			BaseVolume:         baseVolume,
			TradeCount:         trades,
		})
	}
	return tickers
}

func toSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func floatFromAny(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func intFromAny(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case float64:
		return int64(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return i, true
		}
		f, err := val.Float64()
		return int64(f), err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return int64(f), err == nil
	default:
		return 0, false
	}
}
