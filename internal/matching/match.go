package matching

import (
	"time"

	coreob "github.com/nexustrade/lobengine/internal/core/matching"
	"github.com/nexustrade/lobengine/pkg/lob"
)

// Match runs a full matching pass across every book: sweeping crossed
// resting levels, activating triggered stop orders, and recalculating
// trailing-stop prices, repeating until no book can make further progress
// (spec §4.4, §4.6). Legal to call directly regardless of matching-enabled
// state; only the automatic per-command trigger is gated, via autoMatch.
func (m *Manager) Match() lob.ErrorKind {
	start := time.Now()
	for _, book := range m.books {
		m.matchBook(book)
	}
	if m.metrics != nil {
		m.metrics.Timer("match_pass_seconds", time.Since(start), nil)
	}
	return lob.ErrorOK
}

// autoMatch runs Match only when automatic matching is enabled. Every
// internal command calls this, not Match, after mutating a book.
func (m *Manager) autoMatch() {
	if m.matchingEnabled {
		m.Match()
	}
}

func (m *Manager) matchBook(book *coreob.Book) {
	for {
		progressed := m.sweepCrossedLevels(book)
		if m.activateStopOrders(book) {
			progressed = true
		}
		if m.recalculateTrailingStops(book) {
			progressed = true
		}
		if !progressed {
			break
		}
	}
	book.ResetMatchingPrice()
}

// crosses reports whether a resting level at price is marketable against
// order, given order's side and limit price (market orders carry a
// slippage-widened Price so the same check applies uniformly).
func crosses(order *lob.Order, price uint64) bool {
	if order.Side == lob.SideBuy {
		return order.Price >= price
	}
	return order.Price <= price
}

func (m *Manager) bestOppositeLevel(book *coreob.Book, side lob.Side) (int, bool) {
	if side == lob.SideBuy {
		return book.BestAskLevel()
	}
	return book.BestBidLevel()
}

func nextOppositeLevel(book *coreob.Book, side lob.Side, price uint64) (int, bool) {
	if side == lob.SideBuy {
		return book.NextAskLevel(price)
	}
	return book.NextBidLevel(price)
}

// chainCanFill reports whether the opposite side currently holds enough
// crossing volume to fill order in full. Used to gate FOK and AON
// aggressors before any execution happens, so a partial fill is never
// started only to be abandoned (spec §4.4). It walks resting orders in the
// FIFO order matchOrder fills them and fails at a resting AON maker larger
// than the quantity still needed, where matchOrder would stop; see
// DESIGN.md.
func (m *Manager) chainCanFill(book *coreob.Book, order *lob.Order) bool {
	needed := order.LeavesQuantity
	levelIdx, ok := m.bestOppositeLevel(book, order.Side)
	for ok && needed > 0 {
		level := book.LevelAt(levelIdx)
		if !crosses(order, level.Price) {
			break
		}
		for makerIdx, more := book.FirstOrder(levelIdx); more && needed > 0; makerIdx, more = book.NextOrder(makerIdx) {
			maker := book.OrderAt(makerIdx)
			if maker.TimeInForce == lob.AON && maker.LeavesQuantity > needed {
				return false
			}
			if maker.LeavesQuantity >= needed {
				needed = 0
			} else {
				needed -= maker.LeavesQuantity
			}
		}
		levelIdx, ok = nextOppositeLevel(book, order.Side, level.Price)
	}
	return needed == 0
}

// matchOrder matches order (aggressor) against the opposite ladder in
// price-time priority until it is filled, no longer marketable, or blocked
// by a resting all-or-none maker it cannot fill whole (spec §4.4). Callers
// are responsible for resting, converting, or discarding order once
// LeavesQuantity settles.
func (m *Manager) matchOrder(book *coreob.Book, order *lob.Order) {
	if order.LeavesQuantity == 0 {
		return
	}
	if order.TimeInForce == lob.FOK || order.TimeInForce == lob.AON {
		if !m.chainCanFill(book, order) {
			return
		}
	}

	for order.LeavesQuantity > 0 {
		levelIdx, ok := m.bestOppositeLevel(book, order.Side)
		if !ok {
			break
		}
		level := book.LevelAt(levelIdx)
		if !crosses(order, level.Price) {
			break
		}

		makerIdx, ok := book.FirstOrder(levelIdx)
		if !ok {
			break
		}
		maker := book.OrderAt(makerIdx)
		if maker.TimeInForce == lob.AON && maker.LeavesQuantity > order.LeavesQuantity {
			break
		}

		qty := order.LeavesQuantity
		if maker.LeavesQuantity < qty {
			qty = maker.LeavesQuantity
		}
		price := level.Price

		m.handler.OnExecuteOrder(*order, price, qty)
		book.UpdateLastPrice(order, price)
		book.UpdateMatchingPrice(order, price)
		order.ExecutedQuantity += qty
		order.LeavesQuantity -= qty

		m.executeMakerFill(book, makerIdx, price, qty)
	}
}

// executeMakerFill books a resting order's side of a fill already decided
// by matchOrder or sweepCrossedLevels: emits on_execute_order, updates
// reference prices, reduces leaves, and finalizes the order.
func (m *Manager) executeMakerFill(book *coreob.Book, orderIdx int, price, qty uint64) {
	order := book.OrderAt(orderIdx)
	m.handler.OnExecuteOrder(*order, price, qty)
	book.UpdateLastPrice(order, price)
	book.UpdateMatchingPrice(order, price)

	oldVisible := order.Visible()
	order.ExecutedQuantity += qty
	order.LeavesQuantity -= qty
	newVisible := order.Visible()
	deltaVisible := oldVisible - newVisible

	// makers are always resting limit orders: bid/ask ladders never hold
	// stop-kind orders, which trade only after activateStopHead converts
	// them.
	update := book.ReduceLimitOrder(orderIdx, qty, deltaVisible)
	m.emitLevelUpdate(book.Symbol, update)

	m.finishMutation(book, book.Symbol.ID, orderIdx)
}

// sweepCrossedLevels matches resting bid and ask FIFO heads against each
// other while the book remains crossed — the case a ModifyOrder or
// ReplaceOrder can create by moving a resting order's price across the
// spread (spec §8 scenario 6). Execution happens at the ask order's price,
// the only resolution consistent with that scenario's expected output; see
// DESIGN.md.
func (m *Manager) sweepCrossedLevels(book *coreob.Book) bool {
	progressed := false
	for {
		bidIdx, ok1 := book.BestBidLevel()
		askIdx, ok2 := book.BestAskLevel()
		if !ok1 || !ok2 {
			break
		}
		bidLevel := book.LevelAt(bidIdx)
		askLevel := book.LevelAt(askIdx)
		if bidLevel.Price < askLevel.Price {
			break
		}

		bidOrderIdx, ok := book.FirstOrder(bidIdx)
		if !ok {
			break
		}
		askOrderIdx, ok := book.FirstOrder(askIdx)
		if !ok {
			break
		}
		bidOrder := book.OrderAt(bidOrderIdx)
		askOrder := book.OrderAt(askOrderIdx)

		if bidOrder.TimeInForce == lob.AON && bidOrder.LeavesQuantity > askOrder.LeavesQuantity {
			break
		}
		if askOrder.TimeInForce == lob.AON && askOrder.LeavesQuantity > bidOrder.LeavesQuantity {
			break
		}

		qty := bidOrder.LeavesQuantity
		if askOrder.LeavesQuantity < qty {
			qty = askOrder.LeavesQuantity
		}
		if qty == 0 {
			break
		}

		price := askLevel.Price
		m.executeMakerFill(book, bidOrderIdx, price, qty)
		m.executeMakerFill(book, askOrderIdx, price, qty)
		progressed = true
	}
	return progressed
}

// --- stop activation (spec §4.1) -------------------------------------------

func pickExtremeLevel(book *coreob.Book, preferLower bool, a, b func() (int, bool)) (int, uint64, bool) {
	idxA, okA := a()
	idxB, okB := b()
	switch {
	case okA && okB:
		pa, pb := book.LevelAt(idxA).Price, book.LevelAt(idxB).Price
		if (preferLower && pa <= pb) || (!preferLower && pa >= pb) {
			return idxA, pa, true
		}
		return idxB, pb, true
	case okA:
		return idxA, book.LevelAt(idxA).Price, true
	case okB:
		return idxB, book.LevelAt(idxB).Price, true
	default:
		return 0, 0, false
	}
}

func (m *Manager) activateStopOrders(book *coreob.Book) bool {
	progressed := false
	for m.activateOneBuyStop(book) {
		progressed = true
	}
	for m.activateOneSellStop(book) {
		progressed = true
	}
	return progressed
}

// activateOneBuyStop triggers the lowest-priced buy-stop/trailing-buy-stop
// level once the ask has risen to or through it.
func (m *Manager) activateOneBuyStop(book *coreob.Book) bool {
	levelIdx, price, ok := pickExtremeLevel(book, true, book.BestBuyStopLevel, book.BestTrailingBuyStopLevel)
	if !ok || book.MarketPriceAsk() < price {
		return false
	}
	return m.activateStopHead(book, levelIdx)
}

// activateOneSellStop triggers the highest-priced sell-stop/trailing-sell-
// stop level once the bid has fallen to or through it.
func (m *Manager) activateOneSellStop(book *coreob.Book) bool {
	levelIdx, price, ok := pickExtremeLevel(book, false, book.BestSellStopLevel, book.BestTrailingSellStopLevel)
	if !ok || book.MarketPriceBid() > price {
		return false
	}
	return m.activateStopHead(book, levelIdx)
}

// activateStopHead pops the FIFO head of a triggered stop level and
// converts it to a market (Stop/TrailingStop) or limit (StopLimit/
// TrailingStopLimit) order, matching it in immediately (spec §4.3).
func (m *Manager) activateStopHead(book *coreob.Book, levelIdx int) bool {
	orderIdx, ok := book.FirstOrder(levelIdx)
	if !ok {
		return false
	}
	order := *book.OrderAt(orderIdx)
	book.DeleteStopOrder(orderIdx)
	delete(m.index, order.ID)
	book.ReleaseOrder(orderIdx)

	if order.Kind == lob.KindStop || order.Kind == lob.KindTrailingStop {
		order.Kind = lob.KindMarket
		order.Price = 0
		order.StopPrice = 0
		if order.TimeInForce != lob.FOK {
			order.TimeInForce = lob.IOC
		}
		m.handler.OnUpdateOrder(order)

		if !m.resolveMarketPrice(book, &order) {
			m.handler.OnDeleteOrder(order)
			return true
		}
		m.matchOrder(book, &order)
		m.handler.OnDeleteOrder(order)
		return true
	}

	order.Kind = lob.KindLimit
	order.StopPrice = 0
	m.handler.OnUpdateOrder(order)

	m.matchOrder(book, &order)

	if order.LeavesQuantity > 0 && order.TimeInForce != lob.IOC && order.TimeInForce != lob.FOK {
		arenaIdx, update := book.AddLimitOrder(order)
		m.index[order.ID] = orderRef{symbolID: book.Symbol.ID, arenaIdx: arenaIdx}
		m.emitLevelUpdate(book.Symbol, update)
	} else {
		m.handler.OnDeleteOrder(order)
	}
	return true
}

// --- trailing-stop recalculation (spec §4.1) -------------------------------

// recalculateTrailingStops recomputes the stop price of every resting
// trailing order as the market moves, relocating it to a new ladder
// position when its stop price changes.
func (m *Manager) recalculateTrailingStops(book *coreob.Book) bool {
	progressed := false
	for _, levelIdx := range book.TrailingBuyStopLevels() {
		for _, orderIdx := range book.LevelOrders(levelIdx) {
			if m.recalculateOne(book, orderIdx) {
				progressed = true
			}
		}
	}
	for _, levelIdx := range book.TrailingSellStopLevels() {
		for _, orderIdx := range book.LevelOrders(levelIdx) {
			if m.recalculateOne(book, orderIdx) {
				progressed = true
			}
		}
	}
	return progressed
}

func (m *Manager) recalculateOne(book *coreob.Book, orderIdx int) bool {
	order := book.OrderAt(orderIdx)
	oldStop := order.StopPrice
	newStop := book.CalculateTrailingStopPrice(order)
	if newStop == oldStop {
		return false
	}

	var priceOffset int64
	if order.Kind == lob.KindTrailingStopLimit {
		priceOffset = int64(order.Price) - int64(order.StopPrice)
	}

	book.DeleteStopOrder(orderIdx)
	order.StopPrice = newStop
	if order.Kind == lob.KindTrailingStopLimit {
		newPrice := int64(newStop) + priceOffset
		if newPrice < 0 {
			newPrice = 0
		}
		order.Price = uint64(newPrice)
	}
	book.AttachStopOrder(orderIdx)
	m.handler.OnUpdateOrder(*order)
	return true
}
