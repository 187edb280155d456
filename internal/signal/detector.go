package signal

import (
	"math"
	"sort"

	"gap-screener/internal/market"
)

type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalNone Signal = "none"
)

type SequenceKind string

const (
	SequenceIncreasing SequenceKind = "increasing"
	SequenceDecreasing SequenceKind = "decreasing"
	SequenceMixed      SequenceKind = "mixed"
)

// Details records how each sub-sequence of the lookback window behaved.
type Details struct {
	LowSequence     SequenceKind `json:"low_sequence"`
	CloseSequence   SequenceKind `json:"close_sequence"`
	HighSequence    SequenceKind `json:"high_sequence"`
	Lookback        int          `json:"lookback_periods"`
	ChangeThreshold float64      `json:"change_threshold"`
}

type Result struct {
	Signal           Signal  `json:"signal"`
	Confidence       float64 `json:"confidence"`
	CumulativeChange float64 `json:"cumulative_change"`
	Details          Details `json:"details"`
}

// Detector evaluates the trailing lookback window of a candle series for
// monotonic run patterns.
type Detector struct {
	lookback        int
	changeThreshold float64
}

func NewDetector(lookback int, changeThreshold float64) *Detector {
	return &Detector{lookback: lookback, changeThreshold: changeThreshold}
}

// Detect classifies the most recent lookback candles as a buy, sell, or no
// signal. A buy needs cumulative change above the threshold with lows, closes
// and highs all strictly increasing; a sell is the mirror image.
func (d *Detector) Detect(candles []market.Candle) Result {
	if len(candles) < d.lookback {
		return Result{Signal: SignalNone}
	}
	window := candles[len(candles)-d.lookback:]
	lows := market.Lows(window)
	closes := market.Closes(window)
	highs := market.Highs(window)

	cumulative := 0.0
	if first := closes[0]; first != 0 {
		cumulative = (closes[len(closes)-1] - first) / first * 100
	}

	lowSeq := classifySequence(lows)
	closeSeq := classifySequence(closes)
	highSeq := classifySequence(highs)

	result := Result{
		Signal:           SignalNone,
		CumulativeChange: cumulative,
		Details: Details{
			LowSequence:     lowSeq,
			CloseSequence:   closeSeq,
			HighSequence:    highSeq,
			Lookback:        d.lookback,
			ChangeThreshold: d.changeThreshold,
		},
	}

	allIncreasing := lowSeq == SequenceIncreasing && closeSeq == SequenceIncreasing && highSeq == SequenceIncreasing
	allDecreasing := lowSeq == SequenceDecreasing && closeSeq == SequenceDecreasing && highSeq == SequenceDecreasing

	switch {
	case cumulative > d.changeThreshold && allIncreasing:
		result.Signal = SignalBuy
		result.Confidence = confidence(cumulative, d.changeThreshold)
	case cumulative < -d.changeThreshold && allDecreasing:
		result.Signal = SignalSell
		result.Confidence = confidence(math.Abs(cumulative), d.changeThreshold)
	}
	return result
}

// classifySequence treats single-element sequences as both increasing and
// decreasing; they come out as increasing here, which the gating conditions
// never distinguish because a one-candle window moves nothing.
func classifySequence(values []float64) SequenceKind {
	switch {
	case isStrictlyIncreasing(values):
		return SequenceIncreasing
	case isStrictlyDecreasing(values):
		return SequenceDecreasing
	default:
		return SequenceMixed
	}
}

func isStrictlyIncreasing(values []float64) bool {
	for i := 0; i+1 < len(values); i++ {
		if values[i] >= values[i+1] {
			return false
		}
	}
	return true
}

func isStrictlyDecreasing(values []float64) bool {
	for i := 0; i+1 < len(values); i++ {
		if values[i] <= values[i+1] {
			return false
		}
	}
	return true
}

// confidence rises linearly from 0.5 at the threshold to 1.0 at twice the
// threshold and saturates beyond. Magnitudes at or under the threshold clamp
// to the 0.5 floor; the gating conditions normally rule that branch out.
func confidence(magnitude, threshold float64) float64 {
	if magnitude <= threshold {
		return 0.5
	}
	excess := math.Min(magnitude-threshold, threshold)
	return 0.5 + excess/threshold*0.5
}

type Trend string

const (
	TrendStrongBullish Trend = "strong_bullish"
	TrendBullish       Trend = "bullish"
	TrendStrongBearish Trend = "strong_bearish"
	TrendBearish       Trend = "bearish"
	TrendNeutral       Trend = "neutral"
)

type EMAPosition struct {
	Value       float64 `json:"value"`
	DiffPercent float64 `json:"diff_percent"`
	Position    string  `json:"position"`
}

type TrendResult struct {
	Trend     Trend               `json:"trend"`
	Positions map[int]EMAPosition `json:"ema_positions"`
	Price     float64             `json:"price"`
}

// ClassifyTrend reads the latest close against the EMA ladder. EMAs that are
// exactly zero are placeholders for "undefined" and are excluded before any
// position is computed.
func ClassifyTrend(latestClose float64, emas map[int]float64) TrendResult {
	positions := make(map[int]EMAPosition, len(emas))
	periods := make([]int, 0, len(emas))
	for period, ema := range emas {
		if ema == 0 {
			continue
		}
		diff := (latestClose - ema) / ema * 100
		position := "below"
		if diff > 0 {
			position = "above"
		}
		positions[period] = EMAPosition{Value: ema, DiffPercent: diff, Position: position}
		periods = append(periods, period)
	}
	result := TrendResult{Trend: TrendNeutral, Positions: positions, Price: latestClose}
	if len(periods) < 2 {
		return result
	}
	sort.Ints(periods)

	allAbove, allBelow := true, true
	for _, p := range periods {
		if positions[p].Position != "above" {
			allAbove = false
		}
		if positions[p].Position != "below" {
			allBelow = false
		}
	}
	switch {
	case allAbove:
		result.Trend = TrendStrongBullish
	case allBelow:
		result.Trend = TrendStrongBearish
	default:
		descending, ascending := true, true
		for i := 0; i+1 < len(periods); i++ {
			cur := positions[periods[i]].Value
			next := positions[periods[i+1]].Value
			if cur <= next {
				descending = false
			}
			if cur >= next {
				ascending = false
			}
		}
		if descending {
			result.Trend = TrendBullish
		} else if ascending {
			result.Trend = TrendBearish
		}
	}
	return result
}
