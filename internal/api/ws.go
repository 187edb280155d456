package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"gap-screener/internal/screener"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const wsWriteTimeout = 5 * time.Second

// hub fans published bundles out to websocket subscribers. Slow clients are
// dropped rather than allowed to stall a broadcast.
type hub struct {
	log *zap.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]context.CancelFunc
}

func newHub(log *zap.Logger) *hub {
	return &hub{log: log, conns: make(map[*websocket.Conn]context.CancelFunc)}
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	h.mu.Lock()
	h.conns[conn] = cancel
	h.mu.Unlock()
	h.log.Debug("websocket client connected", zap.Int("clients", h.count()))

	// Reader loop exists only to observe the close handshake; clients are
	// not expected to send anything.
	defer h.drop(conn)
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func (h *hub) broadcast(bundle screener.Bundle) {
	payload, err := json.Marshal(bundle)
	if err != nil {
		h.log.Warn("bundle encode failed", zap.Error(err))
		return
	}
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		err := conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			h.log.Debug("websocket write failed, dropping client", zap.Error(err))
			h.drop(conn)
		}
	}
}

func (h *hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	cancel, ok := h.conns[conn]
	if ok {
		delete(h.conns, conn)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *hub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		h.drop(conn)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
