// Package ws streams level and execution updates to subscribers over
// compressed websocket connections. It implements matching.Handler and
// fans each event out to every subscriber of the event's symbol.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/flate"
	"go.uber.org/zap"

	"github.com/nexustrade/lobengine/internal/matching"
	"github.com/nexustrade/lobengine/pkg/lob"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    4096,
	WriteBufferSize:   4096,
	EnableCompression: true,
	CheckOrigin:       func(r *http.Request) bool { return true },
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks subscribers per symbol and publishes market events to them.
type Hub struct {
	matching.BaseHandler

	mu          sync.RWMutex
	subscribers map[uint32]map[*subscriber]struct{}
	logger      *zap.Logger
}

// NewHub constructs an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{subscribers: make(map[uint32]map[*subscriber]struct{}), logger: logger}
}

// ServeSymbol upgrades an HTTP request to a websocket and subscribes the
// connection to symbolID's events until it disconnects. Per-message
// compression uses gorilla/websocket's own permessage-deflate support; the
// compression level is klauspost/compress's flate.BestSpeed constant.
func (h *Hub) ServeSymbol(symbolID uint32, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	conn.EnableWriteCompression(true)
	if err := conn.SetCompressionLevel(flate.BestSpeed); err != nil {
		h.logger.Warn("set websocket compression level failed", zap.Error(err))
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, 64)}
	h.addSubscriber(symbolID, sub)
	defer h.removeSubscriber(symbolID, sub)

	for msg := range sub.send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hub) addSubscriber(symbolID uint32, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subscribers[symbolID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subscribers[symbolID] = set
	}
	set[sub] = struct{}{}
}

func (h *Hub) removeSubscriber(symbolID uint32, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers[symbolID], sub)
	close(sub.send)
	sub.conn.Close()
}

func (h *Hub) broadcast(symbolID uint32, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal websocket payload failed", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers[symbolID] {
		select {
		case sub.send <- body:
		default:
			h.logger.Warn("dropping slow websocket subscriber", zap.Uint32("symbol_id", symbolID))
		}
	}
}

func (h *Hub) OnAddLevel(sym lob.Symbol, level lob.Level, top bool) {
	h.broadcast(sym.ID, map[string]interface{}{"type": "level_add", "level": level, "top": top})
}

func (h *Hub) OnUpdateLevel(sym lob.Symbol, level lob.Level, top bool) {
	h.broadcast(sym.ID, map[string]interface{}{"type": "level_update", "level": level, "top": top})
}

func (h *Hub) OnDeleteLevel(sym lob.Symbol, level lob.Level, top bool) {
	h.broadcast(sym.ID, map[string]interface{}{"type": "level_delete", "level": level, "top": top})
}

func (h *Hub) OnExecuteOrder(order lob.Order, price, quantity uint64) {
	h.broadcast(order.SymbolID, map[string]interface{}{"type": "execute", "price": price, "quantity": quantity})
}

var _ matching.Handler = (*Hub)(nil)
