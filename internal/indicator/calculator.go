package indicator

// Calculator bundles the per-instrument indicator computations behind an
// immutable EMA period configuration.
type Calculator struct {
	emaPeriods []int
}

func NewCalculator(emaPeriods []int) *Calculator {
	periods := make([]int, len(emaPeriods))
	copy(periods, emaPeriods)
	return &Calculator{emaPeriods: periods}
}

func (c *Calculator) EMAPeriods() []int {
	periods := make([]int, len(c.emaPeriods))
	copy(periods, c.emaPeriods)
	return periods
}

// LatestEMAs returns the last defined EMA value per configured period. A
// period with no defined value maps to 0.0: a neutral placeholder that still
// participates in downstream arithmetic, distinct from "undefined".
func (c *Calculator) LatestEMAs(prices []float64) map[int]float64 {
	latest := make(map[int]float64, len(c.emaPeriods))
	for _, period := range c.emaPeriods {
		series := EMA(prices, period)
		value := 0.0
		for i := len(series) - 1; i >= 0; i-- {
			if series[i].Defined {
				value = series[i].F
				break
			}
		}
		latest[period] = value
	}
	return latest
}

// EMADifferences returns (price-ema)/ema*100 per period. A zero EMA maps to
// 0.0; callers treat that as "no signal", not "price equals EMA".
func (c *Calculator) EMADifferences(currentPrice float64, emas map[int]float64) map[int]float64 {
	diffs := make(map[int]float64, len(emas))
	for period, ema := range emas {
		if ema == 0 {
			diffs[period] = 0.0
			continue
		}
		diffs[period] = (currentPrice - ema) / ema * 100
	}
	return diffs
}

// Set is the full per-instrument indicator bundle, recomputed fresh on every
// call.
type Set struct {
	EMAs      map[int]float64 `json:"ema_values"`
	EMADiffs  map[int]float64 `json:"ema_differences"`
	RSI       float64         `json:"rsi"`
	ATR       float64         `json:"atr"`
	Bollinger Bollinger       `json:"bollinger_bands"`
	MACD      MACDResult      `json:"macd"`
}

func (c *Calculator) Compute(closes, highs, lows []float64) Set {
	emas := c.LatestEMAs(closes)
	current := 0.0
	if len(closes) > 0 {
		current = closes[len(closes)-1]
	}
	return Set{
		EMAs:      emas,
		EMADiffs:  c.EMADifferences(current, emas),
		RSI:       RSI(closes, DefaultRSIPeriod),
		ATR:       ATR(highs, lows, closes, DefaultATRPeriod),
		Bollinger: BollingerBands(closes, DefaultBollingerPeriod, DefaultBollingerK),
		MACD:      MACD(closes, DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal),
	}
}
