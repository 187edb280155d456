package screener

import (
	"math"
	"time"

	"gap-screener/internal/signal"
)

// Summarize aggregates one scan's results. Price-change statistics are over
// absolute magnitudes. Results carrying an error contribute to the total
// count but not to the volume or price-change statistics, since their market
// fields were never populated.
func Summarize(processed []SymbolResult, at time.Time) Summary {
	sum := Summary{
		TotalSymbols: len(processed),
		Timestamp:    at,
	}

	var (
		buyConfTotal  float64
		sellConfTotal float64
		volumeTotal   float64
		volumeCount   int
		changeTotal   float64
		changeCount   int
	)
	for _, r := range processed {
		switch r.Signal {
		case signal.SignalBuy:
			sum.BuySignals++
			buyConfTotal += r.Confidence
		case signal.SignalSell:
			sum.SellSignals++
			sellConfTotal += r.Confidence
		}
		if r.Volume24h > 0 {
			volumeTotal += r.Volume24h
			volumeCount++
			if r.Volume24h > sum.MaxVolume {
				sum.MaxVolume = r.Volume24h
			}
		}
		if change := math.Abs(r.PriceChange24h); change != 0 {
			changeTotal += change
			changeCount++
			if change > sum.MaxPriceChange {
				sum.MaxPriceChange = change
			}
		}
	}
	if sum.BuySignals > 0 {
		sum.BuyConfidenceAvg = buyConfTotal / float64(sum.BuySignals)
	}
	if sum.SellSignals > 0 {
		sum.SellConfidenceAvg = sellConfTotal / float64(sum.SellSignals)
	}
	if volumeCount > 0 {
		sum.AvgVolume = volumeTotal / float64(volumeCount)
	}
	if changeCount > 0 {
		sum.AvgPriceChange = changeTotal / float64(changeCount)
	}
	return sum
}
