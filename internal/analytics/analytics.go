// Package analytics computes rolling order-flow statistics — VWAP and
// realized volatility of executed prices — by consuming execution events
// alongside the existing event-publishing pipeline.
package analytics

import (
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/nexustrade/lobengine/internal/matching"
	"github.com/nexustrade/lobengine/pkg/lob"
)

// Window holds a bounded trailing history of (price, quantity) fills for
// one symbol.
type Window struct {
	capacity int
	prices   []float64
	weights  []float64
}

func newWindow(capacity int) *Window {
	return &Window{capacity: capacity}
}

func (w *Window) push(price, qty float64) {
	w.prices = append(w.prices, price)
	w.weights = append(w.weights, qty)
	if len(w.prices) > w.capacity {
		w.prices = w.prices[1:]
		w.weights = w.weights[1:]
	}
}

// VWAP returns the volume-weighted average price of the window, or 0 if
// it holds no fills.
func (w *Window) VWAP() float64 {
	if len(w.prices) == 0 {
		return 0
	}
	return stat.Mean(w.prices, w.weights)
}

// Volatility returns the standard deviation of the window's trade prices
// (unweighted), a simple realized-volatility proxy.
func (w *Window) Volatility() float64 {
	if len(w.prices) < 2 {
		return 0
	}
	_, std := stat.MeanStdDev(w.prices, nil)
	return std
}

// Tracker implements matching.Handler, maintaining one Window per symbol
// from executed-order events.
type Tracker struct {
	matching.BaseHandler

	mu       sync.Mutex
	capacity int
	windows  map[uint32]*Window
}

// NewTracker creates a Tracker retaining the most recent windowSize
// execution reports per symbol. A fill matched inside the engine is
// reported once for each of its two orders, so it takes two window entries.
func NewTracker(windowSize int) *Tracker {
	return &Tracker{capacity: windowSize, windows: make(map[uint32]*Window)}
}

func (t *Tracker) OnExecuteOrder(order lob.Order, price, quantity uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[order.SymbolID]
	if !ok {
		w = newWindow(t.capacity)
		t.windows[order.SymbolID] = w
	}
	w.push(float64(price), float64(quantity))
}

// Snapshot returns the VWAP and volatility for symbolID, or ok=false if no
// fills have been observed yet.
func (t *Tracker) Snapshot(symbolID uint32) (vwap, volatility float64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, exists := t.windows[symbolID]
	if !exists || len(w.prices) == 0 {
		return 0, 0, false
	}
	return w.VWAP(), w.Volatility(), true
}

var _ matching.Handler = (*Tracker)(nil)
