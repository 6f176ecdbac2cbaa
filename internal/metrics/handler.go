package metrics

import (
	"strconv"

	"github.com/nexustrade/lobengine/internal/matching"
	"github.com/nexustrade/lobengine/pkg/lob"
)

// Handler implements matching.Handler, feeding order-flow and book-depth
// metrics into a Registry from the manager's own callbacks — the same
// shape as events.EventPublisher and analytics.Tracker.
type Handler struct {
	matching.BaseHandler

	reg *Registry
}

// NewHandler builds a Handler recording into reg.
func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

func symbolLabel(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

func levelSide(kind lob.LevelKind) string {
	if kind == lob.LevelBid {
		return "bid"
	}
	return "ask"
}

func (h *Handler) OnAddOrder(o lob.Order) {
	h.reg.Counter("orders_total", 1, map[string]string{"kind": o.Kind.String(), "side": o.Side.String()})
	h.reg.GaugeAdd("active_orders", 1, map[string]string{"symbol": symbolLabel(o.SymbolID)})
}

func (h *Handler) OnDeleteOrder(o lob.Order) {
	h.reg.GaugeAdd("active_orders", -1, map[string]string{"symbol": symbolLabel(o.SymbolID)})
}

func (h *Handler) OnExecuteOrder(o lob.Order, price, quantity uint64) {
	h.reg.Counter("executions_total", 1, map[string]string{"symbol": symbolLabel(o.SymbolID)})
}

func (h *Handler) OnAddLevel(sym lob.Symbol, level lob.Level, top bool) {
	h.reg.GaugeAdd("book_depth_levels", 1, map[string]string{"symbol": symbolLabel(sym.ID), "side": levelSide(level.Kind)})
}

func (h *Handler) OnDeleteLevel(sym lob.Symbol, level lob.Level, top bool) {
	h.reg.GaugeAdd("book_depth_levels", -1, map[string]string{"symbol": symbolLabel(sym.ID), "side": levelSide(level.Kind)})
}

var _ matching.Handler = (*Handler)(nil)
