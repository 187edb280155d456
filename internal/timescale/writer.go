package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"gap-screener/internal/config"
	"gap-screener/internal/market"
	"gap-screener/internal/screener"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// candleRecentTail bounds how much of each kline history is persisted per
// scan: the last closed candle plus the forming one. Older rows are already
// in the table from earlier cycles.
const candleRecentTail = 2

type candleRow struct {
	Symbol   string
	Interval string
	Start    time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	QuoteVol float64
}

// Writer persists scan output to TimescaleDB off the hot path. Enqueue
// operations never block; rows are dropped when the queue is full.
type Writer struct {
	db          *sql.DB
	log         *zap.Logger
	schema      string
	candles     chan candleRow
	summaries   chan screener.Summary
	started     atomic.Bool
	dropCandle  atomic.Uint64
	dropSummary atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:        db,
		log:       log,
		schema:    schema,
		candles:   make(chan candleRow, queueSize),
		summaries: make(chan screener.Summary, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

// RecordCandles enqueues the trailing candles of one kline fetch.
func (w *Writer) RecordCandles(symbol, interval string, candles []market.Candle) {
	if w == nil {
		return
	}
	start := 0
	if len(candles) > candleRecentTail {
		start = len(candles) - candleRecentTail
	}
	for _, c := range candles[start:] {
		row := candleRow{
			Symbol:   symbol,
			Interval: interval,
			Start:    c.OpenTime,
			Open:     c.Open,
			High:     c.High,
			Low:      c.Low,
			Close:    c.Close,
			Volume:   c.Volume,
			QuoteVol: c.QuoteVolume,
		}
		select {
		case w.candles <- row:
		default:
			if w.dropCandle.Add(1) == 1 && w.log != nil {
				w.log.Warn("timescale candle queue full")
			}
		}
	}
}

// RecordScan enqueues one scan summary row.
func (w *Writer) RecordScan(summary screener.Summary) {
	if w == nil {
		return
	}
	select {
	case w.summaries <- summary:
	default:
		if w.dropSummary.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale summary queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case row := <-w.candles:
			w.writeCandle(ctx, row)
		case summary := <-w.summaries:
			w.writeSummary(ctx, summary)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		open DOUBLE PRECISION NOT NULL,
		high DOUBLE PRECISION NOT NULL,
		low DOUBLE PRECISION NOT NULL,
		close DOUBLE PRECISION NOT NULL,
		volume DOUBLE PRECISION NOT NULL DEFAULT 0,
		quote_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (ts, symbol, interval)
	)`, w.table("market_ohlc"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		total_symbols INTEGER NOT NULL,
		buy_signals INTEGER NOT NULL,
		sell_signals INTEGER NOT NULL,
		buy_confidence_avg DOUBLE PRECISION NOT NULL,
		sell_confidence_avg DOUBLE PRECISION NOT NULL,
		avg_volume DOUBLE PRECISION NOT NULL,
		max_volume DOUBLE PRECISION NOT NULL,
		avg_price_change DOUBLE PRECISION NOT NULL,
		max_price_change DOUBLE PRECISION NOT NULL
	)`, w.table("scan_summaries"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("market_ohlc"))); err != nil && w.log != nil {
		w.log.Warn("timescale market_ohlc hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("scan_summaries"))); err != nil && w.log != nil {
		w.log.Warn("timescale scan_summaries hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeCandle(ctx context.Context, row candleRow) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, interval, open, high, low, close, volume, quote_volume
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9
	)
	ON CONFLICT (ts, symbol, interval) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		quote_volume = EXCLUDED.quote_volume`, w.table("market_ohlc"))
	if _, err := w.db.ExecContext(ctx, query,
		row.Start,
		row.Symbol,
		row.Interval,
		row.Open,
		row.High,
		row.Low,
		row.Close,
		row.Volume,
		row.QuoteVol,
	); err != nil && w.log != nil {
		w.log.Warn("timescale candle upsert failed", zap.Error(err))
	}
}

func (w *Writer) writeSummary(ctx context.Context, summary screener.Summary) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, total_symbols, buy_signals, sell_signals, buy_confidence_avg,
		sell_confidence_avg, avg_volume, max_volume, avg_price_change, max_price_change
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
	)`, w.table("scan_summaries"))
	if _, err := w.db.ExecContext(ctx, query,
		summary.Timestamp,
		summary.TotalSymbols,
		summary.BuySignals,
		summary.SellSignals,
		summary.BuyConfidenceAvg,
		summary.SellConfidenceAvg,
		summary.AvgVolume,
		summary.MaxVolume,
		summary.AvgPriceChange,
		summary.MaxPriceChange,
	); err != nil && w.log != nil {
		w.log.Warn("timescale summary insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
