package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "gap_screener"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	newCounter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}

	m := &Metrics{
		CyclesRun:           promCounter{newCounter("cycles_run_total", "Total number of completed refresh cycles.")},
		CycleFailures:       promCounter{newCounter("cycle_failures_total", "Total number of refresh cycles that failed.")},
		SymbolsProcessed:    promCounter{newCounter("symbols_processed_total", "Total number of symbols processed.")},
		SymbolsFailed:       promCounter{newCounter("symbols_failed_total", "Total number of per-symbol processing failures.")},
		FetchErrors:         promCounter{newCounter("fetch_errors_total", "Total number of upstream fetch errors.")},
		CacheHits:           promCounter{newCounter("cache_hits_total", "Total number of cache hits.")},
		CacheMisses:         promCounter{newCounter("cache_misses_total", "Total number of cache misses.")},
		BuySignals:          promCounter{newCounter("buy_signals_total", "Total number of buy signals detected.")},
		SellSignals:         promCounter{newCounter("sell_signals_total", "Total number of sell signals detected.")},
		NotificationsSent:   promCounter{newCounter("notifications_sent_total", "Total number of notifications delivered.")},
		NotificationsFailed: promCounter{newCounter("notifications_failed_total", "Total number of notification delivery failures.")},
	}

	return &Prometheus{Metrics: m, registry: registry}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
