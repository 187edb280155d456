package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gap-screener/internal/cache"
	"gap-screener/internal/screener"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// BundleSource is the screener surface the API consumes.
type BundleSource interface {
	Latest() (screener.Bundle, bool)
	Refresh(ctx context.Context) (screener.Bundle, error)
}

// Server exposes scan results over HTTP: JSON endpoints for the dashboard,
// a websocket push channel, and the Prometheus scrape handler.
type Server struct {
	source   BundleSource
	cache    *cache.Cache[any]
	metrics  http.Handler
	log      *zap.Logger
	hub      *hub
	server   *http.Server
	started  time.Time
}

func NewServer(addr string, source BundleSource, c *cache.Cache[any], metricsHandler http.Handler, log *zap.Logger) *Server {
	s := &Server{
		source:  source,
		cache:   c,
		metrics: metricsHandler,
		log:     log,
		hub:     newHub(log),
		started: time.Now(),
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/data", s.handleData).Methods(http.MethodGet)
	r.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/symbol/{symbol}", s.handleSymbol).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/cache/stats", s.handleCacheStats).Methods(http.MethodGet)
	r.HandleFunc("/api/cache/clear", s.handleCacheClear).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.handleWS).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	return r
}

// Start runs the listener until the context is cancelled, then drains with a
// short shutdown grace period.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
	s.log.Info("api server listening", zap.String("addr", s.server.Addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.closeAll()
		return s.server.Shutdown(shutdownCtx)
	}
}

// Broadcast pushes a newly published bundle to all websocket subscribers.
// Wire it as a screener publish callback.
func (s *Server) Broadcast(bundle screener.Bundle) {
	s.hub.broadcast(bundle)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.URL.Query().Get("refresh"), "true") {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		bundle, err := s.source.Refresh(ctx)
		if err != nil {
			s.writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, bundle)
		return
	}
	bundle, ok := s.source.Latest()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "no scan completed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	bundle, err := s.source.Refresh(ctx)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"summary": bundle.Summary,
	})
}

func (s *Server) handleSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	bundle, ok := s.source.Latest()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "no scan completed yet")
		return
	}
	for _, result := range bundle.Processed {
		if result.Symbol == symbol {
			s.writeJSON(w, http.StatusOK, result)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "symbol not in latest scan: "+symbol)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"ws_clients":     s.hub.count(),
	}
	if s.cache != nil {
		status["cache"] = s.cache.Stats()
	}
	if bundle, ok := s.source.Latest(); ok {
		status["last_scan"] = bundle.GeneratedAt
		status["symbols_tracked"] = len(bundle.Processed)
		status["buy_signals"] = len(bundle.Buy)
		status["sell_signals"] = len(bundle.Sell)
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		s.writeError(w, http.StatusNotFound, "cache not configured")
		return
	}
	stats := s.cache.Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_entries":   stats.Total,
		"valid_entries":   stats.Valid,
		"expired_entries": stats.Expired,
		"ttl_seconds":     s.cache.TTL().Seconds(),
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeError(w, http.StatusNotFound, "cache not configured")
		return
	}
	prefix := r.URL.Query().Get("prefix")
	removed := s.cache.Invalidate(prefix)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"removed": removed,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
