package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gap-screener/internal/alerts"
	"gap-screener/internal/api"
	"gap-screener/internal/binance"
	"gap-screener/internal/cache"
	"gap-screener/internal/config"
	"gap-screener/internal/metrics"
	"gap-screener/internal/screener"
	"gap-screener/internal/state/sqlite"
	"gap-screener/internal/timescale"

	"go.uber.org/zap"
)

const shutdownGrace = 5 * time.Second

type App struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *sqlite.Store
	client   *binance.Client
	cache    *cache.Cache[any]
	screener *screener.Screener
	notifier *alerts.Notifier
	writer   *timescale.Writer
	server   *api.Server
	metrics  *metrics.Metrics
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if dir := filepath.Dir(cfg.State.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	prom := metrics.NewPrometheus()
	m := prom.Metrics

	apiKey := strings.TrimSpace(os.Getenv("BINANCE_API_KEY"))
	client := binance.New(cfg.REST.BaseURL, cfg.REST.Timeout, apiKey, log)
	c := cache.New[any](cfg.Screener.CacheTTL)
	source := screener.NewCachedSource(client, c, m, log)
	scr := screener.New(cfg.Screener, source, m, log)

	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if writer != nil {
		scr.SetRecorder(writer)
	}

	telegram := alerts.NewTelegram(cfg.Telegram, log)
	notifier := alerts.NewNotifier(telegram, store, m, log)

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(cfg.API.ListenAddr, scr, c, prom.Handler(), log)
	}

	return &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		client:   client,
		cache:    c,
		screener: scr,
		notifier: notifier,
		writer:   writer,
		server:   server,
		metrics:  m,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.writer.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, a.cfg.REST.Timeout)
	if err := a.client.Ping(pingCtx); err != nil {
		a.log.Warn("upstream ping failed, continuing anyway", zap.Error(err))
	}
	cancelPing()

	if bundle, ok, err := loadSnapshot(ctx, a.store); err != nil {
		a.log.Warn("warm-start snapshot load failed", zap.Error(err))
	} else if ok {
		a.screener.Seed(bundle)
		a.log.Info("warm-started from snapshot",
			zap.Time("generated_at", bundle.GeneratedAt),
			zap.Int("symbols", len(bundle.Processed)),
		)
	}

	a.writer.Start(ctx)
	a.screener.OnPublish(func(bundle screener.Bundle) {
		a.notifier.NotifyBundle(ctx, bundle)
		if err := saveSnapshot(ctx, a.store, bundle); err != nil {
			a.log.Warn("snapshot save failed", zap.Error(err))
		}
		if a.server != nil {
			a.server.Broadcast(bundle)
		}
	})

	a.notifier.NotifyStartup(ctx, a.cfg.Screener.DefaultKlineInterval, a.cfg.Screener.RefreshInterval)

	errc := make(chan error, 2)
	go func() { errc <- a.screener.Run(ctx) }()
	if a.server != nil {
		go func() { errc <- a.server.Start(ctx) }()
	}

	err := <-errc
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	a.notifier.NotifyShutdown(shutdownCtx)
	return err
}
