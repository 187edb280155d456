package indicator

import (
	"math"
	"testing"
)

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestEMAShortSeriesAllUndefined(t *testing.T) {
	prices := []float64{1, 2, 3}
	out := EMA(prices, 5)
	if len(out) != len(prices) {
		t.Fatalf("expected output length %d, got %d", len(prices), len(out))
	}
	for i, v := range out {
		if v.Defined {
			t.Fatalf("expected undefined at %d, got %+v", i, v)
		}
	}
}

func TestEMASeededByFirstPrice(t *testing.T) {
	prices := []float64{10, 20, 30}
	out := EMA(prices, 2)
	if !out[0].Defined || out[0].F != 10 {
		t.Fatalf("expected seed 10, got %+v", out[0])
	}
	// alpha = 2/3: 20*(2/3) + 10*(1/3) = 50/3
	if !closeEnough(out[1].F, 50.0/3.0) {
		t.Fatalf("expected 50/3, got %f", out[1].F)
	}
	if !closeEnough(out[2].F, 30*(2.0/3.0)+out[1].F/3.0) {
		t.Fatalf("unexpected third value %f", out[2].F)
	}
}

func TestEMAConstantSeries(t *testing.T) {
	out := EMA([]float64{5, 5, 5, 5, 5}, 3)
	for i, v := range out {
		if !v.Defined || !closeEnough(v.F, 5) {
			t.Fatalf("expected constant 5 at %d, got %+v", i, v)
		}
	}
}

func TestRSIInsufficientDataNeutral(t *testing.T) {
	if got := RSI(ramp(100, 1, 10), 14); got != 50.0 {
		t.Fatalf("expected neutral 50, got %f", got)
	}
}

func TestRSIMonotonicIncreasing(t *testing.T) {
	got := RSI(ramp(100, 1, 30), 14)
	if got != 100.0 {
		t.Fatalf("expected 100 for all gains, got %f", got)
	}
}

func TestRSIMonotonicDecreasing(t *testing.T) {
	got := RSI(ramp(100, -1, 30), 14)
	if got > 50.0 || got < 0 {
		t.Fatalf("expected rsi <= 50 for all losses, got %f", got)
	}
}

func TestRSIWithinBounds(t *testing.T) {
	prices := []float64{44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41,
		46.22, 45.64, 46.21, 46.25, 45.71, 46.45, 45.78, 45.35, 44.03, 44.18,
		44.22, 44.57}
	got := RSI(prices, 14)
	if got < 0 || got > 100 {
		t.Fatalf("rsi out of bounds: %f", got)
	}
}

func TestATRInsufficientDataZero(t *testing.T) {
	if got := ATR(ramp(10, 1, 5), ramp(9, 1, 5), ramp(9.5, 1, 5), 14); got != 0.0 {
		t.Fatalf("expected 0 for short input, got %f", got)
	}
}

func TestATRNonNegative(t *testing.T) {
	n := 40
	highs := ramp(105, 0.5, n)
	lows := ramp(95, 0.5, n)
	closes := ramp(100, 0.5, n)
	got := ATR(highs, lows, closes, 14)
	if got < 0 {
		t.Fatalf("expected non-negative atr, got %f", got)
	}
	// Constant 10-point range gives an ATR of exactly 10.
	if !closeEnough(got, 10) {
		t.Fatalf("expected atr 10, got %f", got)
	}
}

func TestBollingerShortSeriesZero(t *testing.T) {
	bb := BollingerBands(ramp(100, 1, 10), 20, 2.0)
	if bb.Upper != 0 || bb.Middle != 0 || bb.Lower != 0 {
		t.Fatalf("expected zero bundle, got %+v", bb)
	}
}

func TestBollingerBandOrdering(t *testing.T) {
	bb := BollingerBands(ramp(100, 1, 30), 20, 2.0)
	if !(bb.Upper > bb.Middle && bb.Middle > bb.Lower) {
		t.Fatalf("expected upper > middle > lower, got %+v", bb)
	}
}

func TestBollingerConstantSeriesCollapses(t *testing.T) {
	bb := BollingerBands(ramp(50, 0, 25), 20, 2.0)
	if !closeEnough(bb.Upper, 50) || !closeEnough(bb.Middle, 50) || !closeEnough(bb.Lower, 50) {
		t.Fatalf("expected bands collapsed at 50, got %+v", bb)
	}
}

func TestMACDShortSeriesZero(t *testing.T) {
	m := MACD(ramp(100, 1, 30), DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)
	if m.MACD != 0 || m.Signal != 0 || m.Histogram != 0 {
		t.Fatalf("expected zero bundle under slow+signal prices, got %+v", m)
	}
}

func TestMACDUptrendPositive(t *testing.T) {
	m := MACD(ramp(100, 1, 60), DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)
	if m.MACD <= 0 {
		t.Fatalf("expected positive macd in a steady uptrend, got %+v", m)
	}
	if !closeEnough(m.Histogram, m.MACD-m.Signal) {
		t.Fatalf("histogram mismatch: %+v", m)
	}
}

func TestLatestEMAs(t *testing.T) {
	calc := NewCalculator([]int{2, 50})
	prices := ramp(100, 1, 10)
	emas := calc.LatestEMAs(prices)
	if emas[2] == 0 {
		t.Fatalf("expected defined ema for period 2")
	}
	if emas[50] != 0 {
		t.Fatalf("expected neutral 0 fallback for period 50, got %f", emas[50])
	}
}

func TestEMADifferences(t *testing.T) {
	calc := NewCalculator([]int{20})
	diffs := calc.EMADifferences(110, map[int]float64{20: 100, 60: 0})
	if !closeEnough(diffs[20], 10) {
		t.Fatalf("expected 10%% diff, got %f", diffs[20])
	}
	if diffs[60] != 0 {
		t.Fatalf("expected 0 diff for zero ema, got %f", diffs[60])
	}
}

func TestComputeProducesFreshSet(t *testing.T) {
	calc := NewCalculator([]int{5, 10})
	closes := ramp(100, 0.5, 60)
	highs := ramp(101, 0.5, 60)
	lows := ramp(99, 0.5, 60)
	set := calc.Compute(closes, highs, lows)
	if len(set.EMAs) != 2 || len(set.EMADiffs) != 2 {
		t.Fatalf("expected 2 ema periods, got %+v", set.EMAs)
	}
	if set.RSI < 0 || set.RSI > 100 {
		t.Fatalf("rsi out of bounds: %f", set.RSI)
	}
	if set.ATR < 0 {
		t.Fatalf("negative atr: %f", set.ATR)
	}
	if set.Bollinger.Upper < set.Bollinger.Lower {
		t.Fatalf("inverted bollinger: %+v", set.Bollinger)
	}
}
