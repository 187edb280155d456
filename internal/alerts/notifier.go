package alerts

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gap-screener/internal/metrics"
	"gap-screener/internal/screener"
	"gap-screener/internal/signal"
	"gap-screener/internal/state"

	"go.uber.org/zap"
)

const dedupKeyPrefix = "alerts:sent:"

// Sender abstracts the outbound message transport.
type Sender interface {
	Enabled() bool
	Send(ctx context.Context, message string) error
}

// Notifier turns published scan bundles into alert messages, deduplicating
// on a symbol/confidence/price signature so an unchanged signal is announced
// once per run, surviving restarts via the state store.
type Notifier struct {
	sender  Sender
	store   state.Store
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewNotifier(sender Sender, store state.Store, m *metrics.Metrics, log *zap.Logger) *Notifier {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Notifier{sender: sender, store: store, log: log, metrics: m}
}

// NotifyBundle sends one message per not-yet-announced buy or sell signal in
// the bundle, followed by a scan summary when anything new was announced.
// Send failures are logged per signal; a failed send is not recorded as
// announced, so the next cycle retries it.
func (n *Notifier) NotifyBundle(ctx context.Context, bundle screener.Bundle) {
	if n.sender == nil || !n.sender.Enabled() {
		return
	}
	announced := 0
	for _, r := range bundle.Buy {
		if n.notify(ctx, r) {
			announced++
		}
	}
	for _, r := range bundle.Sell {
		if n.notify(ctx, r) {
			announced++
		}
	}
	if announced == 0 {
		return
	}
	if err := n.sender.Send(ctx, FormatSummary(bundle.Summary)); err != nil {
		n.metrics.NotificationsFailed.Inc()
		n.log.Warn("summary send failed", zap.Error(err))
	}
}

func (n *Notifier) notify(ctx context.Context, r screener.SymbolResult) bool {
	sig := Signature(r)
	if n.alreadySent(ctx, sig) {
		return false
	}
	if err := n.sender.Send(ctx, FormatSignal(r)); err != nil {
		n.metrics.NotificationsFailed.Inc()
		n.log.Warn("alert send failed",
			zap.String("symbol", r.Symbol),
			zap.Error(err),
		)
		return false
	}
	n.metrics.NotificationsSent.Inc()
	n.markSent(ctx, sig)
	return true
}

// NotifyStartup announces the service coming online.
func (n *Notifier) NotifyStartup(ctx context.Context, interval string, refreshEvery time.Duration) {
	if n.sender == nil || !n.sender.Enabled() {
		return
	}
	msg := fmt.Sprintf("Gap screener online\nInterval: %s\nRefresh: every %s", interval, refreshEvery)
	if err := n.sender.Send(ctx, msg); err != nil {
		n.log.Warn("startup alert failed", zap.Error(err))
	}
}

// NotifyShutdown announces a graceful stop.
func (n *Notifier) NotifyShutdown(ctx context.Context) {
	if n.sender == nil || !n.sender.Enabled() {
		return
	}
	if err := n.sender.Send(ctx, "Gap screener shutting down"); err != nil {
		n.log.Warn("shutdown alert failed", zap.Error(err))
	}
}

func (n *Notifier) alreadySent(ctx context.Context, sig string) bool {
	if n.store == nil {
		return false
	}
	_, ok, err := n.store.Get(ctx, dedupKeyPrefix+sig)
	if err != nil {
		n.log.Warn("dedup lookup failed", zap.String("signature", sig), zap.Error(err))
		return false
	}
	return ok
}

func (n *Notifier) markSent(ctx context.Context, sig string) {
	if n.store == nil {
		return
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339))
	if err := n.store.Set(ctx, dedupKeyPrefix+sig, stamp); err != nil {
		n.log.Warn("dedup record failed", zap.String("signature", sig), zap.Error(err))
	}
}

// Signature identifies one announcement. The same symbol at the same price
// with the same confidence is the same alert; any component moving makes it
// new.
func Signature(r screener.SymbolResult) string {
	return fmt.Sprintf("%s-%.2f-%.8f", r.Symbol, r.Confidence, r.CurrentPrice)
}

// FormatSignal renders one alert message.
func FormatSignal(r screener.SymbolResult) string {
	var b strings.Builder
	switch r.Signal {
	case signal.SignalBuy:
		b.WriteString("BUY signal: ")
	case signal.SignalSell:
		b.WriteString("SELL signal: ")
	default:
		b.WriteString("Signal: ")
	}
	b.WriteString(r.Symbol)
	b.WriteString("\nPrice: ")
	b.WriteString(formatPrice(r.CurrentPrice))
	fmt.Fprintf(&b, "\nConfidence: %.0f%%", r.Confidence*100)
	fmt.Fprintf(&b, "\nChange over %d candles: %+.2f%%", r.SignalDetails.Lookback, r.CumulativeChange)
	if r.Trend != "" {
		b.WriteString("\nTrend: ")
		b.WriteString(string(r.Trend))
	}
	if r.Volume24h > 0 {
		fmt.Fprintf(&b, "\n24h volume: %s USDT", formatVolume(r.Volume24h))
	}
	if r.PriceChange24h != 0 {
		fmt.Fprintf(&b, "\n24h change: %+.2f%%", r.PriceChange24h)
	}
	if r.Indicators.RSI != 0 {
		fmt.Fprintf(&b, "\nRSI: %.1f", r.Indicators.RSI)
	}
	if r.Indicators.ATR != 0 {
		fmt.Fprintf(&b, "\nATR: %s", formatPrice(r.Indicators.ATR))
	}
	if len(r.Indicators.EMADiffs) > 0 {
		periods := make([]int, 0, len(r.Indicators.EMADiffs))
		for period := range r.Indicators.EMADiffs {
			periods = append(periods, period)
		}
		sort.Ints(periods)
		b.WriteString("\nEMA diffs:")
		for _, period := range periods {
			fmt.Fprintf(&b, " %d:%+.2f%%", period, r.Indicators.EMADiffs[period])
		}
	}
	return b.String()
}

// FormatSummary renders the end-of-scan overview message.
func FormatSummary(s screener.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scan complete: %d symbols", s.TotalSymbols)
	fmt.Fprintf(&b, "\nBuy signals: %d", s.BuySignals)
	if s.BuySignals > 0 {
		fmt.Fprintf(&b, " (avg confidence %.0f%%)", s.BuyConfidenceAvg*100)
	}
	fmt.Fprintf(&b, "\nSell signals: %d", s.SellSignals)
	if s.SellSignals > 0 {
		fmt.Fprintf(&b, " (avg confidence %.0f%%)", s.SellConfidenceAvg*100)
	}
	if s.AvgVolume > 0 {
		fmt.Fprintf(&b, "\nAvg 24h volume: %s USDT", formatVolume(s.AvgVolume))
	}
	if s.MaxPriceChange > 0 {
		fmt.Fprintf(&b, "\nMax 24h move: %.2f%%", s.MaxPriceChange)
	}
	return b.String()
}

// formatPrice keeps enough precision for sub-cent instruments without
// drowning majors in trailing zeros.
func formatPrice(p float64) string {
	switch {
	case p >= 1:
		return strconv.FormatFloat(p, 'f', 4, 64)
	default:
		return strconv.FormatFloat(p, 'f', 8, 64)
	}
}

func formatVolume(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
