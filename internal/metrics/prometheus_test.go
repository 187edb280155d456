package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNoopCountersAreSafe(t *testing.T) {
	m := NewNoop()
	m.CyclesRun.Inc()
	m.CacheHits.Inc()
	m.NotificationsFailed.Inc()
}

func TestPrometheusHandlerExposesCounters(t *testing.T) {
	p := NewPrometheus()
	p.Metrics.CyclesRun.Inc()
	p.Metrics.BuySignals.Inc()
	p.Metrics.BuySignals.Inc()

	server := httptest.NewServer(p.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	text := string(body)
	if !strings.Contains(text, "gap_screener_cycles_run_total 1") {
		t.Fatalf("expected cycles counter in output:\n%s", text)
	}
	if !strings.Contains(text, "gap_screener_buy_signals_total 2") {
		t.Fatalf("expected buy signals counter in output:\n%s", text)
	}
}
