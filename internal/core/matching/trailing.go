package matching

import (
	"math"

	"github.com/nexustrade/lobengine/pkg/lob"
)

// CalculateTrailingStopPrice implements the trailing-stop price formula of
// spec §4.1. It returns the order's unchanged StopPrice if the movement
// filter rejects the candidate.
func (ob *Book) CalculateTrailingStopPrice(order *lob.Order) uint64 {
	var market uint64
	if order.Side == lob.SideBuy {
		market = ob.TrailingMarketPriceAsk()
	} else {
		market = ob.TrailingMarketPriceBid()
	}

	offset := trailingAmount(order.TrailingDistance, market)
	step := trailingAmount(order.TrailingStep, market)

	var candidate uint64
	if order.Side == lob.SideBuy {
		candidate = addClamped(market, offset)
	} else {
		candidate = subClamped(market, offset)
	}

	current := order.StopPrice

	if order.Side == lob.SideBuy {
		// Favorable direction for a buy-stop is downward (lower trigger).
		if candidate == 0 || current == 0 {
			return candidate
		}
		if candidate < current && (current-candidate) > step {
			return candidate
		}
		return current
	}

	// Favorable direction for a sell-stop is upward (higher trigger).
	if candidate > current && (candidate-current) > step {
		return candidate
	}
	return current
}

// trailingAmount resolves the signed distance/step encoding of spec §3:
// positive values are absolute ticks, negative values are basis points of
// market (d/−10000 of market, floored).
func trailingAmount(v int64, market uint64) uint64 {
	if v > 0 {
		return uint64(v)
	}
	if v == 0 {
		return 0
	}
	bps := uint64(-v)
	return (market * bps) / 10000
}

func addClamped(a, b uint64) uint64 {
	if b > math.MaxUint64-a {
		return math.MaxUint64
	}
	return a + b
}

func subClamped(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
