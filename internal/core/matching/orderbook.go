// Package matching implements the per-symbol order book: price ladders,
// stop/trailing-stop auxiliary ladders, and the primitive add/reduce/delete
// operations described in spec §4.1. It holds no knowledge of command
// dispatch or event emission ordering — that belongs to internal/matching
// (the MarketManager).
package matching

import (
	"math"

	"github.com/nexustrade/lobengine/pkg/lob"
)

const sentinelLastAsk = math.MaxUint64

// Book is a single symbol's order book: six price ladders, their arenas,
// and the last/matching/trailing reference prices used by the matching
// algorithm and trailing-stop recalculation.
type Book struct {
	Symbol lob.Symbol

	orders *orderArena
	levels *levelArena

	bids *ladder // descending: best = highest price
	asks *ladder // ascending: best = lowest price

	buyStops  *ladder // ascending: activates when the ask rises to/through it
	sellStops *ladder // descending: activates when the bid falls to/through it

	trailingBuyStops  *ladder // ascending
	trailingSellStops *ladder // descending

	lastBidPrice uint64
	lastAskPrice uint64

	matchingBidPrice uint64
	matchingAskPrice uint64

	trailingBidPrice uint64
	trailingAskPrice uint64
}

// NewBook creates an empty order book for symbol.
func NewBook(symbol lob.Symbol) *Book {
	return &Book{
		Symbol:            symbol,
		orders:            newOrderArena(),
		levels:            newLevelArena(),
		bids:              newLadder(true),
		asks:              newLadder(false),
		buyStops:          newLadder(false),
		sellStops:         newLadder(true),
		trailingBuyStops:  newLadder(false),
		trailingSellStops: newLadder(true),
		lastBidPrice:      0,
		lastAskPrice:      sentinelLastAsk,
		matchingBidPrice:  0,
		matchingAskPrice:  sentinelLastAsk,
		trailingBidPrice:  0,
		trailingAskPrice:  sentinelLastAsk,
	}
}

// OrderAt returns the live order stored at orderIdx.
func (ob *Book) OrderAt(orderIdx int) *lob.Order {
	return ob.orders.Get(orderIdx)
}

// LevelAt returns the live level snapshot stored at levelIdx.
func (ob *Book) LevelAt(levelIdx int) *lob.Level {
	return ob.levels.Get(levelIdx)
}

func (ob *Book) ladderFor(side lob.Side) *ladder {
	if side == lob.SideBuy {
		return ob.bids
	}
	return ob.asks
}

func levelKindFor(side lob.Side) lob.LevelKind {
	if side == lob.SideBuy {
		return lob.LevelBid
	}
	return lob.LevelAsk
}

// BestBidLevel / BestAskLevel return the arena index of the current best
// level on each side.
func (ob *Book) BestBidLevel() (int, bool) {
	_, idx, ok := ob.bids.Best()
	return idx, ok
}

func (ob *Book) BestAskLevel() (int, bool) {
	_, idx, ok := ob.asks.Best()
	return idx, ok
}

// NextBidLevel / NextAskLevel return the level that would follow levelIdx's
// price when walking deeper into the book (used by chain matching).
func (ob *Book) NextBidLevel(price uint64) (int, bool) {
	_, idx, ok := ob.bids.Next(price)
	return idx, ok
}

func (ob *Book) NextAskLevel(price uint64) (int, bool) {
	_, idx, ok := ob.asks.Next(price)
	return idx, ok
}

// FirstOrder / NextOrder walk a level's FIFO list.
func (ob *Book) FirstOrder(levelIdx int) (int, bool) {
	h := ob.levels.node(levelIdx).head
	return h, h != -1
}

func (ob *Book) NextOrder(orderIdx int) (int, bool) {
	n := ob.orders.node(orderIdx).next
	return n, n != -1
}

// --- limit ladder primitives (spec §4.1) -----------------------------------

// AddLimitOrder inserts order into the appropriate ladder, returning the
// arena index it was stored at and the resulting LevelUpdate.
func (ob *Book) AddLimitOrder(order lob.Order) (int, lob.LevelUpdate) {
	orderIdx := ob.orders.Alloc(order)
	return orderIdx, ob.AttachLimitOrder(orderIdx)
}

// AttachLimitOrder links an already-arena-resident order (current price
// taken from its order record) into the appropriate ladder. Used both by
// AddLimitOrder and by modify/replace paths that mutate an order in place
// and re-insert it without reallocating its arena slot.
func (ob *Book) AttachLimitOrder(orderIdx int) lob.LevelUpdate {
	on := ob.orders.node(orderIdx)
	side := on.order.Side
	price := on.order.Price

	lad := ob.ladderFor(side)
	levelIdx, found := lad.Get(price)
	kind := lob.UpdateUpdate
	if !found {
		levelIdx = ob.levels.Alloc(levelKindFor(side), price)
		lad.Set(price, levelIdx)
		kind = lob.UpdateAdd
	}

	on.order.LevelIndex = levelIdx
	ob.pushBack(levelIdx, orderIdx)

	lv := ob.levels.node(levelIdx)
	lv.level.Volume += on.order.LeavesQuantity
	lv.level.Visible += on.order.Visible()
	lv.level.Orders++

	return lob.LevelUpdate{Kind: kind, Level: lv.level, Top: ob.isTop(side, price)}
}

// ReduceLimitOrder applies a leaves-quantity reduction of deltaQty (with
// deltaVisible of that reduction being currently-visible volume) to the
// order at orderIdx, deleting its level if volume reaches zero.
func (ob *Book) ReduceLimitOrder(orderIdx int, deltaQty, deltaVisible uint64) lob.LevelUpdate {
	on := ob.orders.node(orderIdx)
	levelIdx := on.order.LevelIndex
	lv := ob.levels.node(levelIdx)

	lv.level.Volume -= deltaQty
	lv.level.Visible -= deltaVisible

	if on.order.LeavesQuantity == 0 {
		ob.unlink(levelIdx, orderIdx)
		lv.level.Orders--
	}

	snapshot := lv.level
	kind := lob.UpdateUpdate
	if lv.level.Volume == 0 {
		ob.deleteLevel(on.order.Side, levelIdx)
		kind = lob.UpdateDelete
	}

	return lob.LevelUpdate{Kind: kind, Level: snapshot, Top: ob.isTop(on.order.Side, snapshot.Price)}
}

// DeleteLimitOrder fully reverses AddLimitOrder for orderIdx.
func (ob *Book) DeleteLimitOrder(orderIdx int) lob.LevelUpdate {
	on := ob.orders.node(orderIdx)
	levelIdx := on.order.LevelIndex
	lv := ob.levels.node(levelIdx)

	lv.level.Volume -= on.order.LeavesQuantity
	lv.level.Visible -= on.order.Visible()
	ob.unlink(levelIdx, orderIdx)
	lv.level.Orders--

	snapshot := lv.level
	kind := lob.UpdateUpdate
	if lv.level.Volume == 0 {
		ob.deleteLevel(on.order.Side, levelIdx)
		kind = lob.UpdateDelete
	}

	return lob.LevelUpdate{Kind: kind, Level: snapshot, Top: ob.isTop(on.order.Side, snapshot.Price)}
}

func (ob *Book) deleteLevel(side lob.Side, levelIdx int) {
	price := ob.levels.Get(levelIdx).Price
	ob.ladderFor(side).Delete(price)
	ob.levels.Release(levelIdx)
}

// isTop reports whether price is (still, or again) the best price on side
// after a mutation.
func (ob *Book) isTop(side lob.Side, price uint64) bool {
	var lad *ladder
	if side == lob.SideBuy {
		lad = ob.bids
	} else {
		lad = ob.asks
	}
	best, _, ok := lad.Best()
	return ok && best == price
}

// ReleaseOrder returns orderIdx's arena slot without touching any ladder;
// used once an order's lifecycle is fully terminal.
func (ob *Book) ReleaseOrder(orderIdx int) {
	ob.orders.Release(orderIdx)
}

// --- stop / trailing-stop ladders (spec §4.1: "no LevelUpdate is emitted")

func stopLadderFor(ob *Book, order *lob.Order) *ladder {
	if order.Kind.IsTrailing() {
		if order.Side == lob.SideBuy {
			return ob.trailingBuyStops
		}
		return ob.trailingSellStops
	}
	if order.Side == lob.SideBuy {
		return ob.buyStops
	}
	return ob.sellStops
}

// AddStopOrder inserts a stop/stop-limit/trailing-stop order into its
// auxiliary ladder and returns its arena index.
func (ob *Book) AddStopOrder(order lob.Order) int {
	orderIdx := ob.orders.Alloc(order)
	ob.AttachStopOrder(orderIdx)
	return orderIdx
}

// AttachStopOrder links an already-arena-resident stop-kind order (current
// stop price taken from its order record) into its auxiliary ladder.
func (ob *Book) AttachStopOrder(orderIdx int) {
	on := ob.orders.node(orderIdx)
	lad := stopLadderFor(ob, &on.order)

	levelIdx, found := lad.Get(on.order.StopPrice)
	if !found {
		kind := lob.LevelBid
		if on.order.Side == lob.SideSell {
			kind = lob.LevelAsk
		}
		levelIdx = ob.levels.Alloc(kind, on.order.StopPrice)
		lad.Set(on.order.StopPrice, levelIdx)
	}

	on.order.LevelIndex = levelIdx
	ob.pushBack(levelIdx, orderIdx)

	lv := ob.levels.node(levelIdx)
	lv.level.Volume += on.order.LeavesQuantity
	lv.level.Orders++
}

// ReduceStopOrder mirrors ReduceLimitOrder for stop ladders (no LevelUpdate).
func (ob *Book) ReduceStopOrder(orderIdx int, deltaQty uint64) {
	on := ob.orders.node(orderIdx)
	levelIdx := on.order.LevelIndex
	lv := ob.levels.node(levelIdx)
	lv.level.Volume -= deltaQty

	if on.order.LeavesQuantity == 0 {
		ob.unlink(levelIdx, orderIdx)
		lv.level.Orders--
	}
	if lv.level.Volume == 0 {
		lad := stopLadderFor(ob, &on.order)
		lad.Delete(lv.level.Price)
		ob.levels.Release(levelIdx)
	}
}

// DeleteStopOrder mirrors DeleteLimitOrder for stop ladders.
func (ob *Book) DeleteStopOrder(orderIdx int) {
	on := ob.orders.node(orderIdx)
	levelIdx := on.order.LevelIndex
	lv := ob.levels.node(levelIdx)
	lv.level.Volume -= on.order.LeavesQuantity
	ob.unlink(levelIdx, orderIdx)
	lv.level.Orders--
	if lv.level.Volume == 0 {
		lad := stopLadderFor(ob, &on.order)
		lad.Delete(lv.level.Price)
		ob.levels.Release(levelIdx)
	}
}

// LevelOrders snapshots the FIFO chain of order arena indices resting at
// levelIdx, in queue order. Used where a walk must mutate the ladder it is
// visiting (trailing-stop recalculation).
func (ob *Book) LevelOrders(levelIdx int) []int {
	var out []int
	idx, ok := ob.FirstOrder(levelIdx)
	for ok {
		out = append(out, idx)
		idx, ok = ob.NextOrder(idx)
	}
	return out
}

// TrailingBuyStopLevels / TrailingSellStopLevels snapshot the level indices
// currently resident in each trailing-stop ladder, used by trailing-stop
// recalculation (spec §4.1).
func (ob *Book) TrailingBuyStopLevels() []int {
	var out []int
	ob.trailingBuyStops.Ascend(0, func(_ uint64, levelIdx int) bool {
		out = append(out, levelIdx)
		return true
	})
	return out
}

func (ob *Book) TrailingSellStopLevels() []int {
	var out []int
	ob.trailingSellStops.Descend(math.MaxUint64, func(_ uint64, levelIdx int) bool {
		out = append(out, levelIdx)
		return true
	})
	return out
}

// Stop-ladder accessors used by activation and recalculation.

func (ob *Book) BestBuyStopLevel() (int, bool) {
	_, idx, ok := ob.buyStops.Best()
	return idx, ok
}

func (ob *Book) BestSellStopLevel() (int, bool) {
	_, idx, ok := ob.sellStops.Best()
	return idx, ok
}

func (ob *Book) BestTrailingBuyStopLevel() (int, bool) {
	_, idx, ok := ob.trailingBuyStops.Best()
	return idx, ok
}

func (ob *Book) BestTrailingSellStopLevel() (int, bool) {
	_, idx, ok := ob.trailingSellStops.Best()
	return idx, ok
}

// --- reference prices (spec §4.1) ------------------------------------------

// MarketPriceBid / MarketPriceAsk return the best resting quote on each
// side, falling back to the last traded price once that side is empty.
// Stop-order activation checks against these, not raw last-trade prices,
// so a stop order is judged against what the book can actually trade at
// right now.
func (ob *Book) MarketPriceBid() uint64 {
	if _, idx, ok := ob.bids.Best(); ok {
		return ob.levels.Get(idx).Price
	}
	return ob.lastBidPrice
}

func (ob *Book) MarketPriceAsk() uint64 {
	if _, idx, ok := ob.asks.Best(); ok {
		return ob.levels.Get(idx).Price
	}
	return ob.lastAskPrice
}

func (ob *Book) TrailingMarketPriceBid() uint64 {
	return minU64(ob.matchingBidPrice, ob.lastBidPrice)
}

func (ob *Book) TrailingMarketPriceAsk() uint64 {
	return maxU64(ob.matchingAskPrice, ob.lastAskPrice)
}

// UpdateLastPrice updates last_bid/last_ask based on which side of order
// just traded: a sell execution updates last_bid, a buy execution updates
// last_ask (spec §4.1: "the counterparty side of the order").
func (ob *Book) UpdateLastPrice(order *lob.Order, price uint64) {
	if order.Side == lob.SideSell {
		ob.lastBidPrice = price
	} else {
		ob.lastAskPrice = price
	}
}

// UpdateMatchingPrice mirrors UpdateLastPrice for the transient matching
// price, valid only during a single Match() pass.
func (ob *Book) UpdateMatchingPrice(order *lob.Order, price uint64) {
	if order.Side == lob.SideSell {
		ob.matchingBidPrice = price
	} else {
		ob.matchingAskPrice = price
	}
}

// ResetMatchingPrice restores the matching prices to the last traded prices
// at the end of a matching pass.
func (ob *Book) ResetMatchingPrice() {
	ob.matchingBidPrice = ob.lastBidPrice
	ob.matchingAskPrice = ob.lastAskPrice
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
