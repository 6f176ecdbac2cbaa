package matching

import (
	"math"

	coreob "github.com/nexustrade/lobengine/internal/core/matching"
	"github.com/nexustrade/lobengine/pkg/lob"
)

// AddOrder dispatches to the kind-specific addition path (spec §4.3). Every
// path emits on_add_order on entry.
func (m *Manager) AddOrder(order lob.Order) lob.ErrorKind {
	if v := order.Validate(); !v.OK() {
		return v
	}
	book, ok := m.books[order.SymbolID]
	if !ok {
		return lob.ErrorOrderBookNotFound
	}

	switch {
	case order.Kind == lob.KindMarket:
		return m.addMarketOrder(book, order, false)
	case order.Kind == lob.KindLimit:
		return m.addLimitOrder(book, order, false)
	case order.Kind == lob.KindStop || order.Kind == lob.KindTrailingStop:
		return m.addStopOrder(book, order, false)
	case order.Kind == lob.KindStopLimit || order.Kind == lob.KindTrailingStopLimit:
		return m.addStopLimitOrder(book, order, false)
	default:
		return lob.ErrorOrderTypeInvalid
	}
}

func (m *Manager) resolveMarketPrice(book *coreob.Book, order *lob.Order) bool {
	if order.Side == lob.SideBuy {
		askIdx, ok := book.BestAskLevel()
		if !ok {
			return false
		}
		order.Price = addSlippage(book.LevelAt(askIdx).Price, order.Slippage)
		return true
	}
	bidIdx, ok := book.BestBidLevel()
	if !ok {
		return false
	}
	order.Price = subSlippage(book.LevelAt(bidIdx).Price, order.Slippage)
	return true
}

func addSlippage(price, slippage uint64) uint64 {
	if slippage == lob.NoSlippage {
		return price
	}
	if slippage > math.MaxUint64-price {
		return math.MaxUint64
	}
	return price + slippage
}

func subSlippage(price, slippage uint64) uint64 {
	if slippage == lob.NoSlippage {
		return price
	}
	if slippage > price {
		return 0
	}
	return price - slippage
}

// addMarketOrder implements spec §4.3 "Market order". Market orders never
// rest: they always end with on_delete_order.
func (m *Manager) addMarketOrder(book *coreob.Book, order lob.Order, recursive bool) lob.ErrorKind {
	m.handler.OnAddOrder(order)

	if !m.resolveMarketPrice(book, &order) {
		m.handler.OnDeleteOrder(order)
		if !recursive {
			m.autoMatch()
		}
		return lob.ErrorOK
	}

	m.matchOrder(book, &order)
	m.handler.OnDeleteOrder(order)

	if !recursive {
		m.autoMatch()
	}
	return lob.ErrorOK
}

// addLimitOrder implements spec §4.3 "Limit order".
func (m *Manager) addLimitOrder(book *coreob.Book, order lob.Order, recursive bool) lob.ErrorKind {
	m.handler.OnAddOrder(order)

	m.matchOrder(book, &order)

	if order.LeavesQuantity > 0 && order.TimeInForce != lob.IOC && order.TimeInForce != lob.FOK {
		if _, exists := m.index[order.ID]; exists {
			m.handler.OnDeleteOrder(order)
			return lob.ErrorOrderDuplicate
		}
		arenaIdx, update := book.AddLimitOrder(order)
		m.index[order.ID] = orderRef{symbolID: order.SymbolID, arenaIdx: arenaIdx}
		m.emitLevelUpdate(book.Symbol, update)
	} else {
		m.handler.OnDeleteOrder(order)
	}

	if !recursive {
		m.autoMatch()
	}
	return lob.ErrorOK
}

func inTheMoney(order *lob.Order, referencePrice uint64) bool {
	if order.Side == lob.SideBuy {
		return order.StopPrice <= referencePrice
	}
	return order.StopPrice >= referencePrice
}

func stopReference(book *coreob.Book, side lob.Side) uint64 {
	if side == lob.SideBuy {
		return book.MarketPriceAsk()
	}
	return book.MarketPriceBid()
}

// addStopOrder implements spec §4.3 "Stop / trailing-stop".
func (m *Manager) addStopOrder(book *coreob.Book, order lob.Order, recursive bool) lob.ErrorKind {
	if order.Kind.IsTrailing() {
		order.StopPrice = book.CalculateTrailingStopPrice(&order)
	}

	m.handler.OnAddOrder(order)

	reference := stopReference(book, order.Side)
	if inTheMoney(&order, reference) {
		order.Kind = lob.KindMarket
		order.Price = 0
		order.StopPrice = 0
		if order.TimeInForce != lob.FOK {
			order.TimeInForce = lob.IOC
		}
		m.handler.OnUpdateOrder(order)

		if !m.resolveMarketPrice(book, &order) {
			m.handler.OnDeleteOrder(order)
			if !recursive {
				m.autoMatch()
			}
			return lob.ErrorOK
		}
		m.matchOrder(book, &order)
		m.handler.OnDeleteOrder(order)
		if !recursive {
			m.autoMatch()
		}
		return lob.ErrorOK
	}

	if _, exists := m.index[order.ID]; exists {
		m.handler.OnDeleteOrder(order)
		return lob.ErrorOrderDuplicate
	}
	arenaIdx := book.AddStopOrder(order)
	m.index[order.ID] = orderRef{symbolID: order.SymbolID, arenaIdx: arenaIdx}

	if !recursive {
		m.autoMatch()
	}
	return lob.ErrorOK
}

// addStopLimitOrder implements spec §4.3 "Stop-limit / trailing-stop-limit".
func (m *Manager) addStopLimitOrder(book *coreob.Book, order lob.Order, recursive bool) lob.ErrorKind {
	if order.Kind.IsTrailing() {
		diff := int64(order.Price) - int64(order.StopPrice)
		newStop := book.CalculateTrailingStopPrice(&order)
		newPrice := int64(newStop) + diff
		if newPrice < 0 {
			newPrice = 0
		}
		order.StopPrice = newStop
		order.Price = uint64(newPrice)
	}

	m.handler.OnAddOrder(order)

	reference := stopReference(book, order.Side)
	if inTheMoney(&order, reference) {
		order.Kind = lob.KindLimit
		order.StopPrice = 0
		m.handler.OnUpdateOrder(order)

		m.matchOrder(book, &order)

		if order.LeavesQuantity > 0 && order.TimeInForce != lob.IOC && order.TimeInForce != lob.FOK {
			if _, exists := m.index[order.ID]; exists {
				m.handler.OnDeleteOrder(order)
				if !recursive {
					m.autoMatch()
				}
				return lob.ErrorOrderDuplicate
			}
			arenaIdx, update := book.AddLimitOrder(order)
			m.index[order.ID] = orderRef{symbolID: order.SymbolID, arenaIdx: arenaIdx}
			m.emitLevelUpdate(book.Symbol, update)
		} else {
			m.handler.OnDeleteOrder(order)
		}
		if !recursive {
			m.autoMatch()
		}
		return lob.ErrorOK
	}

	if _, exists := m.index[order.ID]; exists {
		m.handler.OnDeleteOrder(order)
		return lob.ErrorOrderDuplicate
	}
	arenaIdx := book.AddStopOrder(order)
	m.index[order.ID] = orderRef{symbolID: order.SymbolID, arenaIdx: arenaIdx}

	if !recursive {
		m.autoMatch()
	}
	return lob.ErrorOK
}

// reduceOrderInternal implements spec §4.5 reduce_order.
func (m *Manager) reduceOrderInternal(symbolID uint32, arenaIdx int, qty uint64, recursive bool) lob.ErrorKind {
	book := m.books[symbolID]
	order := book.OrderAt(arenaIdx)

	if qty > order.LeavesQuantity {
		qty = order.LeavesQuantity
	}
	oldVisible := order.Visible()
	order.LeavesQuantity -= qty
	newVisible := order.Visible()
	deltaVisible := oldVisible - newVisible

	if order.Kind.IsStop() {
		m.booksReduceStop(book, arenaIdx, qty)
	} else {
		update := book.ReduceLimitOrder(arenaIdx, qty, deltaVisible)
		m.emitLevelUpdate(book.Symbol, update)
	}

	m.finishMutation(book, symbolID, arenaIdx)

	if !recursive {
		m.autoMatch()
	}
	return lob.ErrorOK
}

func (m *Manager) booksReduceStop(book *coreob.Book, arenaIdx int, qty uint64) {
	book.ReduceStopOrder(arenaIdx, qty)
}

// finishMutation emits on_update_order or on_delete_order depending on
// whether the order at arenaIdx still has leaves, removing it from the
// index and releasing its arena slot in the terminal case.
func (m *Manager) finishMutation(book *coreob.Book, symbolID uint32, arenaIdx int) {
	order := *book.OrderAt(arenaIdx)
	if order.LeavesQuantity > 0 {
		m.handler.OnUpdateOrder(order)
		return
	}
	m.handler.OnDeleteOrder(order)
	delete(m.index, order.ID)
	book.ReleaseOrder(arenaIdx)
}

// ReduceOrder implements the public reduce_order command.
func (m *Manager) ReduceOrder(id uint64, qty uint64) lob.ErrorKind {
	ref, ok := m.index[id]
	if !ok {
		return lob.ErrorOrderNotFound
	}
	if qty == 0 {
		return lob.ErrorOrderQuantityInvalid
	}
	return m.reduceOrderInternal(ref.symbolID, ref.arenaIdx, qty, false)
}

// removeFromBook unlinks order (still resident at arenaIdx) from whichever
// ladder it currently occupies, without emitting a LevelUpdate or
// releasing the arena slot — used by modify/replace, which re-attach the
// (mutated) same arena slot afterward.
func (m *Manager) removeFromBook(book *coreob.Book, arenaIdx int, order *lob.Order) {
	if order.Kind.IsStop() {
		book.DeleteStopOrder(arenaIdx)
	} else {
		book.DeleteLimitOrder(arenaIdx)
	}
}

// reattach re-links the mutated order at arenaIdx back into its ladder,
// emitting a LevelUpdate for limit orders.
func (m *Manager) reattach(book *coreob.Book, arenaIdx int, order *lob.Order) {
	if order.Kind.IsStop() {
		book.AttachStopOrder(arenaIdx)
		return
	}
	update := book.AttachLimitOrder(arenaIdx)
	m.emitLevelUpdate(book.Symbol, update)
}

// ModifyOrder implements spec §4.2 modify_order.
func (m *Manager) ModifyOrder(id uint64, newPrice, newQty uint64) lob.ErrorKind {
	return m.modifyOrderInternal(id, newPrice, newQty, false, false)
}

// MitigateOrder implements spec §4.2 mitigate_order.
func (m *Manager) MitigateOrder(id uint64, newPrice, newQty uint64) lob.ErrorKind {
	return m.modifyOrderInternal(id, newPrice, newQty, true, false)
}

func (m *Manager) modifyOrderInternal(id uint64, newPrice, newQty uint64, mitigate, recursive bool) lob.ErrorKind {
	ref, ok := m.index[id]
	if !ok {
		return lob.ErrorOrderNotFound
	}
	if newQty == 0 {
		return lob.ErrorOrderQuantityInvalid
	}
	book := m.books[ref.symbolID]
	order := book.OrderAt(ref.arenaIdx)

	m.removeFromBook(book, ref.arenaIdx, order)

	order.Price = newPrice
	order.Quantity = newQty
	if mitigate {
		if newQty > order.ExecutedQuantity {
			order.LeavesQuantity = newQty - order.ExecutedQuantity
		} else {
			order.LeavesQuantity = 0
		}
	} else {
		order.LeavesQuantity = newQty
	}

	if order.LeavesQuantity > 0 {
		m.handler.OnUpdateOrder(*order)
		m.matchOrder(book, order)
		if order.LeavesQuantity > 0 {
			m.reattach(book, ref.arenaIdx, order)
		} else {
			snapshot := *order
			delete(m.index, id)
			m.handler.OnDeleteOrder(snapshot)
			book.ReleaseOrder(ref.arenaIdx)
		}
	} else {
		snapshot := *order
		delete(m.index, id)
		m.handler.OnDeleteOrder(snapshot)
		book.ReleaseOrder(ref.arenaIdx)
	}

	if !recursive {
		m.autoMatch()
	}
	return lob.ErrorOK
}

// ReplaceOrder implements spec §4.2 replace_order(id, new_id, new_price, new_qty).
// Valid only for limit orders.
func (m *Manager) ReplaceOrder(id, newID, newPrice, newQty uint64) lob.ErrorKind {
	ref, ok := m.index[id]
	if !ok {
		return lob.ErrorOrderNotFound
	}
	book := m.books[ref.symbolID]
	order := book.OrderAt(ref.arenaIdx)
	if order.Kind != lob.KindLimit {
		return lob.ErrorOrderTypeInvalid
	}
	if _, dup := m.index[newID]; dup {
		return lob.ErrorOrderDuplicate
	}

	m.removeFromBook(book, ref.arenaIdx, order)
	oldSnapshot := *order
	m.handler.OnDeleteOrder(oldSnapshot)
	delete(m.index, id)

	order.ID = newID
	order.Price = newPrice
	order.Quantity = newQty
	order.ExecutedQuantity = 0
	order.LeavesQuantity = newQty
	m.handler.OnAddOrder(*order)

	m.matchOrder(book, order)

	if order.LeavesQuantity > 0 {
		m.reattach(book, ref.arenaIdx, order)
		m.index[newID] = orderRef{symbolID: ref.symbolID, arenaIdx: ref.arenaIdx}
	} else {
		snapshot := *order
		m.handler.OnDeleteOrder(snapshot)
		book.ReleaseOrder(ref.arenaIdx)
	}

	m.autoMatch()
	return lob.ErrorOK
}

// ReplaceOrderWith implements spec §4.2 replace_order(id, new_order):
// delete(id) then add_order(new_order).
func (m *Manager) ReplaceOrderWith(id uint64, newOrder lob.Order) lob.ErrorKind {
	if _, ok := m.index[id]; !ok {
		return lob.ErrorOrderNotFound
	}
	if code := m.DeleteOrder(id); !code.OK() {
		return code
	}
	return m.AddOrder(newOrder)
}

// DeleteOrder implements spec §4.2 delete_order.
func (m *Manager) DeleteOrder(id uint64) lob.ErrorKind {
	ref, ok := m.index[id]
	if !ok {
		return lob.ErrorOrderNotFound
	}
	return m.deleteOrderInternal(ref.symbolID, ref.arenaIdx, false)
}

func (m *Manager) deleteOrderInternal(symbolID uint32, arenaIdx int, recursive bool) lob.ErrorKind {
	book := m.books[symbolID]
	order := book.OrderAt(arenaIdx)

	if order.Kind.IsStop() {
		book.DeleteStopOrder(arenaIdx)
	} else {
		update := book.DeleteLimitOrder(arenaIdx)
		m.emitLevelUpdate(book.Symbol, update)
	}

	snapshot := *order
	m.handler.OnDeleteOrder(snapshot)
	delete(m.index, snapshot.ID)
	book.ReleaseOrder(arenaIdx)

	if !recursive {
		m.autoMatch()
	}
	return lob.ErrorOK
}

// ExecuteOrder implements spec §4.2 execute_order(id, qty): executes at the
// order's own price.
func (m *Manager) ExecuteOrder(id uint64, qty uint64) lob.ErrorKind {
	ref, ok := m.index[id]
	if !ok {
		return lob.ErrorOrderNotFound
	}
	book := m.books[ref.symbolID]
	order := book.OrderAt(ref.arenaIdx)
	return m.executeOrderInternal(book, ref, qty, order.Price)
}

// ExecuteOrderAt implements spec §4.2 execute_order(id, price, qty):
// executes at an externally supplied price.
func (m *Manager) ExecuteOrderAt(id uint64, price, qty uint64) lob.ErrorKind {
	ref, ok := m.index[id]
	if !ok {
		return lob.ErrorOrderNotFound
	}
	book := m.books[ref.symbolID]
	return m.executeOrderInternal(book, ref, qty, price)
}

func (m *Manager) executeOrderInternal(book *coreob.Book, ref orderRef, qty, price uint64) lob.ErrorKind {
	order := book.OrderAt(ref.arenaIdx)
	if qty > order.LeavesQuantity {
		qty = order.LeavesQuantity
	}

	m.handler.OnExecuteOrder(*order, price, qty)
	book.UpdateLastPrice(order, price)
	book.UpdateMatchingPrice(order, price)

	oldVisible := order.Visible()
	order.ExecutedQuantity += qty
	order.LeavesQuantity -= qty
	newVisible := order.Visible()
	deltaVisible := oldVisible - newVisible

	if order.Kind.IsStop() {
		book.ReduceStopOrder(ref.arenaIdx, qty)
	} else {
		update := book.ReduceLimitOrder(ref.arenaIdx, qty, deltaVisible)
		m.emitLevelUpdate(book.Symbol, update)
	}

	m.finishMutation(book, ref.symbolID, ref.arenaIdx)

	// execute_order is a top-level-only operation (spec §4.5), never invoked
	// recursively, so the automatic match trigger always applies here.
	m.autoMatch()
	return lob.ErrorOK
}
