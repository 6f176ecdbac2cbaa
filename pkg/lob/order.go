package lob

import "math"

// NoSlippage marks a market/stop order as having no slippage tolerance set.
const NoSlippage = math.MaxUint64

// PlainVisibleQuantity marks an order as fully visible (not an iceberg).
const PlainVisibleQuantity = math.MaxUint64

// Side is the side of an order or price level.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// Kind is the order type.
type Kind uint8

const (
	KindMarket Kind = iota
	KindLimit
	KindStop
	KindStopLimit
	KindTrailingStop
	KindTrailingStopLimit
)

func (k Kind) String() string {
	switch k {
	case KindMarket:
		return "market"
	case KindLimit:
		return "limit"
	case KindStop:
		return "stop"
	case KindStopLimit:
		return "stop-limit"
	case KindTrailingStop:
		return "trailing-stop"
	case KindTrailingStopLimit:
		return "trailing-stop-limit"
	default:
		return "unknown"
	}
}

func (k Kind) IsStop() bool {
	return k == KindStop || k == KindStopLimit || k == KindTrailingStop || k == KindTrailingStopLimit
}

func (k Kind) IsTrailing() bool {
	return k == KindTrailingStop || k == KindTrailingStopLimit
}

func (k Kind) IsLimitLike() bool {
	return k == KindLimit || k == KindStopLimit || k == KindTrailingStopLimit
}

// TimeInForce controls how an order behaves when it cannot be fully matched
// immediately.
type TimeInForce uint8

const (
	GTC TimeInForce = iota // Good-Till-Cancel
	IOC                    // Immediate-Or-Cancel
	FOK                    // Fill-Or-Kill
	AON                    // All-Or-None
)

func (t TimeInForce) String() string {
	switch t {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	case AON:
		return "AON"
	default:
		return "unknown"
	}
}

// Symbol identifies a tradable instrument on the venue.
type Symbol struct {
	ID   uint32
	Name string
}

// Order is the canonical order record (spec §3).
type Order struct {
	ID       uint64
	SymbolID uint32
	Kind     Kind
	Side     Side

	Price     uint64
	StopPrice uint64

	Quantity          uint64
	ExecutedQuantity  uint64
	LeavesQuantity    uint64
	TimeInForce       TimeInForce
	MaxVisibleQuantity uint64
	Slippage          uint64

	TrailingDistance int64
	TrailingStep     int64

	// LevelIndex is the arena index of the price level this order currently
	// sits in; valid only while the order is present in the order index.
	LevelIndex int
}

// Hidden returns the currently hidden leaves quantity.
func (o *Order) Hidden() uint64 {
	if o.LeavesQuantity <= o.MaxVisibleQuantity {
		return 0
	}
	return o.LeavesQuantity - o.MaxVisibleQuantity
}

// Visible returns the currently visible leaves quantity.
func (o *Order) Visible() uint64 {
	if o.LeavesQuantity < o.MaxVisibleQuantity {
		return o.LeavesQuantity
	}
	return o.MaxVisibleQuantity
}

func (o *Order) IsBuy() bool  { return o.Side == SideBuy }
func (o *Order) IsSell() bool { return o.Side == SideSell }

func (o *Order) IsMarket() bool              { return o.Kind == KindMarket }
func (o *Order) IsLimit() bool               { return o.Kind == KindLimit }
func (o *Order) IsStop() bool                { return o.Kind == KindStop }
func (o *Order) IsStopLimit() bool           { return o.Kind == KindStopLimit }
func (o *Order) IsTrailingStop() bool        { return o.Kind == KindTrailingStop }
func (o *Order) IsTrailingStopLimit() bool   { return o.Kind == KindTrailingStopLimit }

func (o *Order) IsIceberg() bool {
	return o.MaxVisibleQuantity != PlainVisibleQuantity && o.MaxVisibleQuantity > 0
}

func (o *Order) IsHidden() bool {
	return o.MaxVisibleQuantity == 0
}

// Validate enforces spec §4.2's order validation rules, returning the exact
// ErrorKind to reject with, or ErrorOK if the order is acceptable.
func (o *Order) Validate() ErrorKind {
	if o.ID == 0 {
		return ErrorOrderIDInvalid
	}
	if o.Quantity < o.LeavesQuantity {
		return ErrorOrderParameterInvalid
	}
	if o.LeavesQuantity == 0 {
		return ErrorOrderQuantityInvalid
	}

	switch o.Kind {
	case KindMarket:
		if !(o.TimeInForce == IOC || o.TimeInForce == FOK) {
			return ErrorOrderParameterInvalid
		}
		if o.IsIceberg() || o.IsHidden() {
			return ErrorOrderParameterInvalid
		}
	case KindLimit:
		if o.Slippage != NoSlippage {
			return ErrorOrderParameterInvalid
		}
	case KindStop, KindTrailingStop:
		if o.TimeInForce == AON {
			return ErrorOrderParameterInvalid
		}
		if o.IsIceberg() || o.IsHidden() {
			return ErrorOrderParameterInvalid
		}
	case KindStopLimit, KindTrailingStopLimit:
		if o.Slippage != NoSlippage {
			return ErrorOrderParameterInvalid
		}
	default:
		return ErrorOrderTypeInvalid
	}

	if o.Kind.IsTrailing() {
		if o.TrailingDistance == 0 {
			return ErrorOrderParameterInvalid
		}
		if o.TrailingDistance > 0 {
			if o.TrailingStep < 0 || o.TrailingStep >= o.TrailingDistance {
				return ErrorOrderParameterInvalid
			}
		} else {
			if o.TrailingDistance < -10000 || o.TrailingDistance > -1 {
				return ErrorOrderParameterInvalid
			}
			if o.TrailingStep <= o.TrailingDistance || o.TrailingStep > 0 {
				return ErrorOrderParameterInvalid
			}
		}
	}

	return ErrorOK
}

// --- factory constructors, mirroring the static factories of the original
// --- Order type (Market/Limit/Stop/StopLimit/TrailingStop/...).

func newOrder(id uint64, symbolID uint32, kind Kind, side Side, price, stopPrice, quantity uint64, tif TimeInForce, maxVisible, slippage uint64, trailingDistance, trailingStep int64) Order {
	return Order{
		ID:                 id,
		SymbolID:           symbolID,
		Kind:               kind,
		Side:               side,
		Price:              price,
		StopPrice:          stopPrice,
		Quantity:           quantity,
		LeavesQuantity:     quantity,
		TimeInForce:        tif,
		MaxVisibleQuantity: maxVisible,
		Slippage:           slippage,
		TrailingDistance:   trailingDistance,
		TrailingStep:       trailingStep,
	}
}

func BuyMarket(id uint64, symbolID uint32, quantity, slippage uint64, tif TimeInForce) Order {
	return newOrder(id, symbolID, KindMarket, SideBuy, 0, 0, quantity, tif, PlainVisibleQuantity, slippage, 0, 0)
}

func SellMarket(id uint64, symbolID uint32, quantity, slippage uint64, tif TimeInForce) Order {
	return newOrder(id, symbolID, KindMarket, SideSell, 0, 0, quantity, tif, PlainVisibleQuantity, slippage, 0, 0)
}

func BuyLimit(id uint64, symbolID uint32, price, quantity uint64, tif TimeInForce, maxVisible uint64) Order {
	return newOrder(id, symbolID, KindLimit, SideBuy, price, 0, quantity, tif, maxVisible, NoSlippage, 0, 0)
}

func SellLimit(id uint64, symbolID uint32, price, quantity uint64, tif TimeInForce, maxVisible uint64) Order {
	return newOrder(id, symbolID, KindLimit, SideSell, price, 0, quantity, tif, maxVisible, NoSlippage, 0, 0)
}

func BuyStop(id uint64, symbolID uint32, stopPrice, quantity, slippage uint64, tif TimeInForce) Order {
	return newOrder(id, symbolID, KindStop, SideBuy, 0, stopPrice, quantity, tif, PlainVisibleQuantity, slippage, 0, 0)
}

func SellStop(id uint64, symbolID uint32, stopPrice, quantity, slippage uint64, tif TimeInForce) Order {
	return newOrder(id, symbolID, KindStop, SideSell, 0, stopPrice, quantity, tif, PlainVisibleQuantity, slippage, 0, 0)
}

func BuyStopLimit(id uint64, symbolID uint32, stopPrice, price, quantity uint64, tif TimeInForce) Order {
	return newOrder(id, symbolID, KindStopLimit, SideBuy, price, stopPrice, quantity, tif, PlainVisibleQuantity, NoSlippage, 0, 0)
}

func SellStopLimit(id uint64, symbolID uint32, stopPrice, price, quantity uint64, tif TimeInForce) Order {
	return newOrder(id, symbolID, KindStopLimit, SideSell, price, stopPrice, quantity, tif, PlainVisibleQuantity, NoSlippage, 0, 0)
}

func TrailingBuyStop(id uint64, symbolID uint32, stopPrice, quantity, slippage uint64, tif TimeInForce, trailingDistance, trailingStep int64) Order {
	return newOrder(id, symbolID, KindTrailingStop, SideBuy, 0, stopPrice, quantity, tif, PlainVisibleQuantity, slippage, trailingDistance, trailingStep)
}

func TrailingSellStop(id uint64, symbolID uint32, stopPrice, quantity, slippage uint64, tif TimeInForce, trailingDistance, trailingStep int64) Order {
	return newOrder(id, symbolID, KindTrailingStop, SideSell, 0, stopPrice, quantity, tif, PlainVisibleQuantity, slippage, trailingDistance, trailingStep)
}

func TrailingBuyStopLimit(id uint64, symbolID uint32, stopPrice, price, quantity uint64, tif TimeInForce, trailingDistance, trailingStep int64) Order {
	return newOrder(id, symbolID, KindTrailingStopLimit, SideBuy, price, stopPrice, quantity, tif, PlainVisibleQuantity, NoSlippage, trailingDistance, trailingStep)
}

func TrailingSellStopLimit(id uint64, symbolID uint32, stopPrice, price, quantity uint64, tif TimeInForce, trailingDistance, trailingStep int64) Order {
	return newOrder(id, symbolID, KindTrailingStopLimit, SideSell, price, stopPrice, quantity, tif, PlainVisibleQuantity, NoSlippage, trailingDistance, trailingStep)
}
