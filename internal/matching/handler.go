package matching

import "github.com/nexustrade/lobengine/pkg/lob"

// Handler is the outward interface consuming market events emitted by a
// Manager (spec §6). Implementations receive synchronous callbacks in
// emission order for the duration of one command — they must not call back
// into the Manager.
type Handler interface {
	OnAddSymbol(sym lob.Symbol)
	OnDeleteSymbol(sym lob.Symbol)

	OnAddOrderBook(sym lob.Symbol)
	OnUpdateOrderBook(sym lob.Symbol, top bool)
	OnDeleteOrderBook(sym lob.Symbol)

	OnAddLevel(sym lob.Symbol, level lob.Level, top bool)
	OnUpdateLevel(sym lob.Symbol, level lob.Level, top bool)
	OnDeleteLevel(sym lob.Symbol, level lob.Level, top bool)

	OnAddOrder(order lob.Order)
	OnUpdateOrder(order lob.Order)
	OnDeleteOrder(order lob.Order)

	OnExecuteOrder(order lob.Order, price, quantity uint64)
}

// BaseHandler implements Handler with no-op methods so callers can embed it
// and override only the callbacks they care about, the Go equivalent of the
// original's empty virtual method bodies.
type BaseHandler struct{}

func (BaseHandler) OnAddSymbol(lob.Symbol)    {}
func (BaseHandler) OnDeleteSymbol(lob.Symbol) {}

func (BaseHandler) OnAddOrderBook(lob.Symbol)        {}
func (BaseHandler) OnUpdateOrderBook(lob.Symbol, bool) {}
func (BaseHandler) OnDeleteOrderBook(lob.Symbol)     {}

func (BaseHandler) OnAddLevel(lob.Symbol, lob.Level, bool)    {}
func (BaseHandler) OnUpdateLevel(lob.Symbol, lob.Level, bool) {}
func (BaseHandler) OnDeleteLevel(lob.Symbol, lob.Level, bool) {}

func (BaseHandler) OnAddOrder(lob.Order)    {}
func (BaseHandler) OnUpdateOrder(lob.Order) {}
func (BaseHandler) OnDeleteOrder(lob.Order) {}

func (BaseHandler) OnExecuteOrder(lob.Order, uint64, uint64) {}

var _ Handler = BaseHandler{}

// FanoutHandler dispatches every callback to each handler in turn, in
// order, so a Manager — which accepts exactly one Handler — can still
// drive several independent consumers (event publishing, websocket
// streaming, analytics) from the same command stream.
type FanoutHandler struct {
	handlers []Handler
}

// NewFanoutHandler builds a FanoutHandler over handlers, skipping any nil
// entries so optional consumers can be wired in conditionally.
func NewFanoutHandler(handlers ...Handler) FanoutHandler {
	live := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			live = append(live, h)
		}
	}
	return FanoutHandler{handlers: live}
}

func (f FanoutHandler) OnAddSymbol(sym lob.Symbol) {
	for _, h := range f.handlers {
		h.OnAddSymbol(sym)
	}
}

func (f FanoutHandler) OnDeleteSymbol(sym lob.Symbol) {
	for _, h := range f.handlers {
		h.OnDeleteSymbol(sym)
	}
}

func (f FanoutHandler) OnAddOrderBook(sym lob.Symbol) {
	for _, h := range f.handlers {
		h.OnAddOrderBook(sym)
	}
}

func (f FanoutHandler) OnUpdateOrderBook(sym lob.Symbol, top bool) {
	for _, h := range f.handlers {
		h.OnUpdateOrderBook(sym, top)
	}
}

func (f FanoutHandler) OnDeleteOrderBook(sym lob.Symbol) {
	for _, h := range f.handlers {
		h.OnDeleteOrderBook(sym)
	}
}

func (f FanoutHandler) OnAddLevel(sym lob.Symbol, level lob.Level, top bool) {
	for _, h := range f.handlers {
		h.OnAddLevel(sym, level, top)
	}
}

func (f FanoutHandler) OnUpdateLevel(sym lob.Symbol, level lob.Level, top bool) {
	for _, h := range f.handlers {
		h.OnUpdateLevel(sym, level, top)
	}
}

func (f FanoutHandler) OnDeleteLevel(sym lob.Symbol, level lob.Level, top bool) {
	for _, h := range f.handlers {
		h.OnDeleteLevel(sym, level, top)
	}
}

func (f FanoutHandler) OnAddOrder(order lob.Order) {
	for _, h := range f.handlers {
		h.OnAddOrder(order)
	}
}

func (f FanoutHandler) OnUpdateOrder(order lob.Order) {
	for _, h := range f.handlers {
		h.OnUpdateOrder(order)
	}
}

func (f FanoutHandler) OnDeleteOrder(order lob.Order) {
	for _, h := range f.handlers {
		h.OnDeleteOrder(order)
	}
}

func (f FanoutHandler) OnExecuteOrder(order lob.Order, price, quantity uint64) {
	for _, h := range f.handlers {
		h.OnExecuteOrder(order, price, quantity)
	}
}

var _ Handler = FanoutHandler{}
