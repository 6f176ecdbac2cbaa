// Package matching implements the MarketManager: the symbol table, book
// table, process-wide order index, command dispatch, matching loop, stop
// activation and trailing recalculation, and event dispatch to a Handler
// (spec §4.2–§4.7).
package matching

import (
	"go.uber.org/zap"

	coreob "github.com/nexustrade/lobengine/internal/core/matching"
	"github.com/nexustrade/lobengine/pkg/interfaces"
	"github.com/nexustrade/lobengine/pkg/lob"
)

// orderRef locates a live order within the book that owns it.
type orderRef struct {
	symbolID uint32
	arenaIdx int
}

// Manager is the single-threaded matching engine for one venue (spec §1,
// §5: "single-threaded and cooperative within one command").
type Manager struct {
	logger  *zap.Logger
	handler Handler
	metrics interfaces.Metrics

	symbols map[uint32]lob.Symbol
	books   map[uint32]*coreob.Book
	index   map[uint64]orderRef

	matchingEnabled bool
}

// NewManager constructs a Manager dispatching events to handler.
func NewManager(handler Handler, logger *zap.Logger) *Manager {
	if handler == nil {
		handler = BaseHandler{}
	}
	return &Manager{
		logger:  logger,
		handler: handler,
		symbols: make(map[uint32]lob.Symbol),
		books:   make(map[uint32]*coreob.Book),
		index:   make(map[uint64]orderRef),
	}
}

// AddSymbol registers a new symbol (spec §4.2).
func (m *Manager) AddSymbol(sym lob.Symbol) lob.ErrorKind {
	if _, exists := m.symbols[sym.ID]; exists {
		return lob.ErrorSymbolDuplicate
	}
	m.symbols[sym.ID] = sym
	m.handler.OnAddSymbol(sym)
	return lob.ErrorOK
}

// DeleteSymbol unregisters a symbol. Per spec §9's resolved open question,
// this rejects with ErrorOrderBookDuplicate if the symbol's order book is
// still registered (see DESIGN.md).
func (m *Manager) DeleteSymbol(id uint32) lob.ErrorKind {
	sym, exists := m.symbols[id]
	if !exists {
		return lob.ErrorSymbolNotFound
	}
	if _, hasBook := m.books[id]; hasBook {
		return lob.ErrorOrderBookDuplicate
	}
	delete(m.symbols, id)
	m.handler.OnDeleteSymbol(sym)
	return lob.ErrorOK
}

// AddOrderBook creates an empty book for an existing symbol.
func (m *Manager) AddOrderBook(symbolID uint32) lob.ErrorKind {
	sym, exists := m.symbols[symbolID]
	if !exists {
		return lob.ErrorSymbolNotFound
	}
	if _, exists := m.books[symbolID]; exists {
		return lob.ErrorOrderBookDuplicate
	}
	m.books[symbolID] = coreob.NewBook(sym)
	m.handler.OnAddOrderBook(sym)
	return lob.ErrorOK
}

// DeleteOrderBook tears down a book, releasing any remaining orders from
// the index without per-order events (spec §4.2).
func (m *Manager) DeleteOrderBook(symbolID uint32) lob.ErrorKind {
	sym, exists := m.symbols[symbolID]
	if !exists {
		return lob.ErrorOrderBookNotFound
	}
	book, exists := m.books[symbolID]
	if !exists {
		return lob.ErrorOrderBookNotFound
	}

	for id, ref := range m.index {
		if ref.symbolID == symbolID {
			delete(m.index, id)
		}
	}
	_ = book // remaining arena storage is discarded with the book

	delete(m.books, symbolID)
	m.handler.OnDeleteOrderBook(sym)
	return lob.ErrorOK
}

// EnableMatching turns on automatic matching and runs a full pass.
func (m *Manager) EnableMatching() lob.ErrorKind {
	if m.matchingEnabled {
		return lob.ErrorOK
	}
	m.matchingEnabled = true
	m.Match()
	return lob.ErrorOK
}

// DisableMatching stops future automatic matching; manual Match() remains
// legal (spec §4.6).
func (m *Manager) DisableMatching() lob.ErrorKind {
	m.matchingEnabled = false
	return lob.ErrorOK
}

// SetMetrics attaches a sink recording match-pass latency. nil disables
// recording; safe to call at any time.
func (m *Manager) SetMetrics(metrics interfaces.Metrics) {
	m.metrics = metrics
}

func (m *Manager) emitLevelUpdate(sym lob.Symbol, update lob.LevelUpdate) {
	switch update.Kind {
	case lob.UpdateAdd:
		m.handler.OnAddLevel(sym, update.Level, update.Top)
	case lob.UpdateUpdate:
		m.handler.OnUpdateLevel(sym, update.Level, update.Top)
	case lob.UpdateDelete:
		m.handler.OnDeleteLevel(sym, update.Level, update.Top)
	}
	m.handler.OnUpdateOrderBook(sym, update.Top)
}
