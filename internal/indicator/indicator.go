package indicator

import "math"

// Value is an indicator sample that may be undefined. Insufficient-history
// branches return undefined values instead of errors so callers can run the
// engine unconditionally across instruments with short histories.
type Value struct {
	F       float64
	Defined bool
}

func defined(f float64) Value { return Value{F: f, Defined: true} }

const (
	DefaultRSIPeriod       = 14
	DefaultATRPeriod       = 14
	DefaultBollingerPeriod = 20
	DefaultBollingerK      = 2.0
	DefaultMACDFast        = 12
	DefaultMACDSlow        = 26
	DefaultMACDSignal      = 9
)

// EMA computes the exponential moving average over the whole series, seeded
// by the first price with smoothing factor 2/(period+1). The output has the
// same length as the input; with fewer prices than the period every sample is
// undefined.
func EMA(prices []float64, period int) []Value {
	out := make([]Value, len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}
	alpha := 2.0 / float64(period+1)
	ema := prices[0]
	out[0] = defined(ema)
	for i := 1; i < len(prices); i++ {
		ema = prices[i]*alpha + ema*(1-alpha)
		out[i] = defined(ema)
	}
	return out
}

// RSI computes the latest relative strength index using Wilder smoothing.
// Fewer than period+1 prices yields the neutral 50; a zero average loss pins
// the step at 100.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50.0
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := prices[i] - prices[i-1]
		if delta >= 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	rsi := 100.0
	if avgLoss != 0 {
		rs := avgGain / avgLoss
		rsi = 100.0 - 100.0/(1.0+rs)
	}
	p := float64(period)
	for i := period + 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		if avgLoss == 0 {
			rsi = 100.0
		} else {
			rs := avgGain / avgLoss
			rsi = 100.0 - 100.0/(1.0+rs)
		}
	}
	return rsi
}

// ATR computes the latest average true range. True ranges start at index 1;
// the seed is the simple mean of the first period true ranges, then Wilder
// smoothing rolls forward. Short inputs yield 0.
func ATR(high, low, close []float64, period int) float64 {
	if period <= 0 || len(high) < period || len(low) < period || len(close) < period {
		return 0.0
	}
	n := len(high)
	if len(low) < n {
		n = len(low)
	}
	if len(close) < n {
		n = len(close)
	}
	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		trs = append(trs, math.Max(hl, math.Max(hc, lc)))
	}
	if len(trs) < period {
		return 0.0
	}
	var atr float64
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)
	p := float64(period)
	for _, tr := range trs[period:] {
		atr = (atr*(p-1) + tr) / p
	}
	return atr
}

type Bollinger struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// BollingerBands computes middle/upper/lower bands over the last period
// prices using the population standard deviation. Short inputs yield the
// zero bundle.
func BollingerBands(prices []float64, period int, k float64) Bollinger {
	if period <= 0 || len(prices) < period {
		return Bollinger{}
	}
	window := prices[len(prices)-period:]
	var sum float64
	for _, p := range window {
		sum += p
	}
	mean := sum / float64(period)
	var sqSum float64
	for _, p := range window {
		d := p - mean
		sqSum += d * d
	}
	std := math.Sqrt(sqSum / float64(period))
	return Bollinger{
		Upper:  mean + k*std,
		Middle: mean,
		Lower:  mean - k*std,
	}
}

type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes the latest MACD line, signal line, and histogram. Both EMAs
// run over the whole price history; the signal line is an EMA of the MACD
// series restricted to indices where both EMAs are defined. Short inputs or
// undefined EMAs yield the zero bundle.
func MACD(prices []float64, fast, slow, signal int) MACDResult {
	if len(prices) < slow+signal {
		return MACDResult{}
	}
	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)
	last := len(prices) - 1
	if !fastEMA[last].Defined || !slowEMA[last].Defined {
		return MACDResult{}
	}
	macd := fastEMA[last].F - slowEMA[last].F

	macdSeries := make([]float64, 0, len(prices))
	for i := range prices {
		if fastEMA[i].Defined && slowEMA[i].Defined {
			macdSeries = append(macdSeries, fastEMA[i].F-slowEMA[i].F)
		}
	}
	signalLine := 0.0
	if sig := EMA(macdSeries, signal); len(sig) > 0 && sig[len(sig)-1].Defined {
		signalLine = sig[len(sig)-1].F
	}
	return MACDResult{
		MACD:      macd,
		Signal:    signalLine,
		Histogram: macd - signalLine,
	}
}
