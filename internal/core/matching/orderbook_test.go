package matching

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexustrade/lobengine/pkg/lob"
)

func TestAddLimitOrderCreatesLevel(t *testing.T) {
	book := NewBook(lob.Symbol{ID: 1, Name: "BTC/USD"})
	order := lob.BuyLimit(1, 1, 100, 10, lob.GTC, lob.PlainVisibleQuantity)

	idx, update := book.AddLimitOrder(order)
	require.Equal(t, lob.UpdateAdd, update.Kind)
	require.Equal(t, uint64(10), update.Level.Volume)
	require.True(t, update.Top)

	bidIdx, ok := book.BestBidLevel()
	require.True(t, ok)
	require.Equal(t, uint64(100), book.LevelAt(bidIdx).Price)

	orderIdx, ok := book.FirstOrder(bidIdx)
	require.True(t, ok)
	require.Equal(t, idx, orderIdx)
}

func TestReduceLimitOrderToZeroDeletesLevel(t *testing.T) {
	book := NewBook(lob.Symbol{ID: 1, Name: "BTC/USD"})
	order := lob.BuyLimit(1, 1, 100, 10, lob.GTC, lob.PlainVisibleQuantity)
	idx, _ := book.AddLimitOrder(order)

	update := book.ReduceLimitOrder(idx, 10, 10)
	require.Equal(t, lob.UpdateDelete, update.Kind)

	_, ok := book.BestBidLevel()
	require.False(t, ok)
}

func TestSecondOrderAtSamePriceJoinsLevel(t *testing.T) {
	book := NewBook(lob.Symbol{ID: 1, Name: "BTC/USD"})
	_, u1 := book.AddLimitOrder(lob.BuyLimit(1, 1, 100, 10, lob.GTC, lob.PlainVisibleQuantity))
	_, u2 := book.AddLimitOrder(lob.BuyLimit(2, 1, 100, 5, lob.GTC, lob.PlainVisibleQuantity))

	require.Equal(t, lob.UpdateAdd, u1.Kind)
	require.Equal(t, lob.UpdateUpdate, u2.Kind)
	require.Equal(t, uint64(15), u2.Level.Volume)
}

func TestBestBidIsHighestPrice(t *testing.T) {
	book := NewBook(lob.Symbol{ID: 1, Name: "BTC/USD"})
	book.AddLimitOrder(lob.BuyLimit(1, 1, 90, 10, lob.GTC, lob.PlainVisibleQuantity))
	book.AddLimitOrder(lob.BuyLimit(2, 1, 100, 10, lob.GTC, lob.PlainVisibleQuantity))

	idx, ok := book.BestBidLevel()
	require.True(t, ok)
	require.Equal(t, uint64(100), book.LevelAt(idx).Price)
}

func TestBestAskIsLowestPrice(t *testing.T) {
	book := NewBook(lob.Symbol{ID: 1, Name: "BTC/USD"})
	book.AddLimitOrder(lob.SellLimit(1, 1, 110, 10, lob.GTC, lob.PlainVisibleQuantity))
	book.AddLimitOrder(lob.SellLimit(2, 1, 100, 10, lob.GTC, lob.PlainVisibleQuantity))

	idx, ok := book.BestAskLevel()
	require.True(t, ok)
	require.Equal(t, uint64(100), book.LevelAt(idx).Price)
}

func TestCalculateTrailingStopPriceAbsoluteDistance(t *testing.T) {
	book := NewBook(lob.Symbol{ID: 1, Name: "BTC/USD"})
	book.AddLimitOrder(lob.SellLimit(1, 1, 100, 10, lob.GTC, lob.PlainVisibleQuantity))
	book.UpdateLastPrice(&lob.Order{Side: lob.SideBuy}, 100)
	book.ResetMatchingPrice()

	order := lob.TrailingBuyStop(2, 1, 0, 5, lob.NoSlippage, lob.GTC, 5, 1)
	price := book.CalculateTrailingStopPrice(&order)
	require.Equal(t, uint64(105), price)
}

func TestMarketPriceAskPrefersBestRestingLevel(t *testing.T) {
	book := NewBook(lob.Symbol{ID: 1, Name: "BTC/USD"})
	require.Equal(t, uint64(sentinelLastAsk), book.MarketPriceAsk())

	book.AddLimitOrder(lob.SellLimit(1, 1, 100, 10, lob.GTC, lob.PlainVisibleQuantity))
	require.Equal(t, uint64(100), book.MarketPriceAsk())
}
