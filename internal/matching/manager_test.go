package matching_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexustrade/lobengine/internal/matching"
	"github.com/nexustrade/lobengine/pkg/lob"
)

type event struct {
	kind  string
	id    uint64
	price uint64
	qty   uint64
}

type recorder struct {
	matching.BaseHandler
	events []event
}

func (r *recorder) OnAddOrder(o lob.Order) {
	r.events = append(r.events, event{"add", o.ID, o.Price, o.LeavesQuantity})
}
func (r *recorder) OnUpdateOrder(o lob.Order) {
	r.events = append(r.events, event{"update", o.ID, o.Price, o.LeavesQuantity})
}
func (r *recorder) OnDeleteOrder(o lob.Order) {
	r.events = append(r.events, event{"delete", o.ID, o.Price, o.LeavesQuantity})
}
func (r *recorder) OnExecuteOrder(o lob.Order, price, qty uint64) {
	r.events = append(r.events, event{"execute", o.ID, price, qty})
}

func newTestManager(t *testing.T) (*matching.Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := matching.NewManager(rec, nil)
	require.True(t, m.AddSymbol(lob.Symbol{ID: 1, Name: "BTC/USD"}).OK())
	require.True(t, m.AddOrderBook(1).OK())
	require.True(t, m.EnableMatching().OK())
	return m, rec
}

func TestAddSymbolDuplicate(t *testing.T) {
	m, _ := newTestManager(t)
	require.Equal(t, lob.ErrorSymbolDuplicate, m.AddSymbol(lob.Symbol{ID: 1, Name: "BTC/USD"}))
}

func TestAddOrderBookRequiresSymbol(t *testing.T) {
	m := matching.NewManager(nil, nil)
	require.Equal(t, lob.ErrorSymbolNotFound, m.AddOrderBook(99))
}

func TestDeleteSymbolRejectsLiveBook(t *testing.T) {
	m, _ := newTestManager(t)
	require.Equal(t, lob.ErrorOrderBookDuplicate, m.DeleteSymbol(1))
}

func TestRestingLimitOrderFullyCrossed(t *testing.T) {
	m, rec := newTestManager(t)

	require.True(t, m.AddOrder(lob.SellLimit(1, 1, 100, 10, lob.GTC, lob.PlainVisibleQuantity)).OK())
	require.True(t, m.AddOrder(lob.BuyLimit(2, 1, 100, 10, lob.GTC, lob.PlainVisibleQuantity)).OK())

	var executes []event
	for _, e := range rec.events {
		if e.kind == "execute" {
			executes = append(executes, e)
		}
	}
	require.Len(t, executes, 2)
	for _, e := range executes {
		require.Equal(t, uint64(100), e.price)
		require.Equal(t, uint64(10), e.qty)
	}
}

func TestIncomingLimitPartiallyFilledRemainderRests(t *testing.T) {
	m, rec := newTestManager(t)

	require.True(t, m.AddOrder(lob.SellLimit(1, 1, 100, 4, lob.GTC, lob.PlainVisibleQuantity)).OK())
	require.True(t, m.AddOrder(lob.BuyLimit(2, 1, 100, 10, lob.GTC, lob.PlainVisibleQuantity)).OK())

	var deletes, fills int
	for _, e := range rec.events {
		switch e.kind {
		case "delete":
			if e.id == 2 {
				t.Fatalf("order 2 should still be resting, got delete event")
			}
			deletes++
		case "execute":
			if e.id == 2 && e.qty == 4 {
				fills++
			}
		}
	}
	require.Equal(t, 1, deletes) // the fully filled sell order
	require.Equal(t, 1, fills)   // 4 of 10 filled, 6 left resting
}

func TestIOCCancelsUnfilledRemainder(t *testing.T) {
	m, rec := newTestManager(t)

	require.True(t, m.AddOrder(lob.BuyLimit(1, 1, 100, 10, lob.IOC, lob.PlainVisibleQuantity)).OK())

	var deleted bool
	for _, e := range rec.events {
		if e.kind == "delete" && e.id == 1 {
			deleted = true
		}
	}
	require.True(t, deleted, "IOC order with nothing to match must be deleted, not rested")
}

func TestMarketOrderAgainstEmptyBookIsDroppedWithoutError(t *testing.T) {
	m, _ := newTestManager(t)
	code := m.AddOrder(lob.BuyMarket(1, 1, 10, lob.NoSlippage, lob.IOC))
	require.True(t, code.OK())
}

func TestStopOrderActivatesWhenMarketReachesTrigger(t *testing.T) {
	m, rec := newTestManager(t)

	require.True(t, m.AddOrder(lob.SellLimit(1, 1, 100, 10, lob.GTC, lob.PlainVisibleQuantity)).OK())
	require.True(t, m.AddOrder(lob.BuyStop(2, 1, 100, 5, lob.NoSlippage, lob.IOC)).OK())
	require.True(t, m.AddOrder(lob.SellLimit(3, 1, 100, 5, lob.GTC, lob.PlainVisibleQuantity)).OK())

	var stopExecuted bool
	for _, e := range rec.events {
		if e.kind == "execute" && e.id == 2 {
			stopExecuted = true
		}
	}
	require.True(t, stopExecuted, "buy-stop should activate and execute once the ask trades through its trigger")
}

func TestReplaceOrderCanCrossTheBook(t *testing.T) {
	m, rec := newTestManager(t)

	require.True(t, m.AddOrder(lob.SellLimit(1, 1, 40, 10, lob.GTC, lob.PlainVisibleQuantity)).OK())
	require.True(t, m.AddOrder(lob.BuyLimit(2, 1, 30, 10, lob.GTC, lob.PlainVisibleQuantity)).OK())

	require.True(t, m.ReplaceOrder(2, 20, 50, 10).OK())

	var executedAt40 bool
	for _, e := range rec.events {
		if e.kind == "execute" && e.price == 40 {
			executedAt40 = true
		}
	}
	require.True(t, executedAt40, "replacing the bid through the resting ask must execute at the ask's price")
}

func TestReduceOrderToZeroDeletesIt(t *testing.T) {
	m, rec := newTestManager(t)
	require.True(t, m.AddOrder(lob.BuyLimit(1, 1, 50, 10, lob.GTC, lob.PlainVisibleQuantity)).OK())
	require.True(t, m.ReduceOrder(1, 10).OK())

	var deleted bool
	for _, e := range rec.events {
		if e.kind == "delete" && e.id == 1 {
			deleted = true
		}
	}
	require.True(t, deleted)
}

func TestDeleteOrderNotFound(t *testing.T) {
	m, _ := newTestManager(t)
	require.Equal(t, lob.ErrorOrderNotFound, m.DeleteOrder(404))
}

func TestExecuteOrderAtExplicitPrice(t *testing.T) {
	m, rec := newTestManager(t)
	require.True(t, m.AddOrder(lob.BuyLimit(1, 1, 50, 10, lob.GTC, lob.PlainVisibleQuantity)).OK())
	require.True(t, m.ExecuteOrderAt(1, 45, 4).OK())

	var found bool
	for _, e := range rec.events {
		if e.kind == "execute" && e.id == 1 && e.price == 45 && e.qty == 4 {
			found = true
		}
	}
	require.True(t, found)
}
