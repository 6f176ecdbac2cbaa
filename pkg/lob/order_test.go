package lob

import "testing"

func TestBuyLimitValidate(t *testing.T) {
	o := BuyLimit(1, 1, 100, 10, GTC, PlainVisibleQuantity)
	if code := o.Validate(); !code.OK() {
		t.Fatalf("expected OK, got %v", code)
	}
}

func TestOrderIDInvalid(t *testing.T) {
	o := BuyLimit(0, 1, 100, 10, GTC, PlainVisibleQuantity)
	if code := o.Validate(); code != ErrorOrderIDInvalid {
		t.Fatalf("expected ErrorOrderIDInvalid, got %v", code)
	}
}

func TestMarketOrderRejectsGTC(t *testing.T) {
	o := BuyMarket(1, 1, 10, NoSlippage, GTC)
	if code := o.Validate(); code != ErrorOrderParameterInvalid {
		t.Fatalf("expected ErrorOrderParameterInvalid for GTC market order, got %v", code)
	}
}

func TestMarketOrderRejectsIceberg(t *testing.T) {
	o := BuyMarket(1, 1, 10, NoSlippage, IOC)
	o.MaxVisibleQuantity = 5
	if code := o.Validate(); code != ErrorOrderParameterInvalid {
		t.Fatalf("expected ErrorOrderParameterInvalid for iceberg market order, got %v", code)
	}
}

func TestLimitOrderRejectsSlippage(t *testing.T) {
	o := BuyLimit(1, 1, 100, 10, GTC, PlainVisibleQuantity)
	o.Slippage = 5
	if code := o.Validate(); code != ErrorOrderParameterInvalid {
		t.Fatalf("expected ErrorOrderParameterInvalid for limit order slippage, got %v", code)
	}
}

func TestStopOrderRejectsAON(t *testing.T) {
	o := BuyStop(1, 1, 90, 10, NoSlippage, AON)
	if code := o.Validate(); code != ErrorOrderParameterInvalid {
		t.Fatalf("expected ErrorOrderParameterInvalid for AON stop order, got %v", code)
	}
}

func TestTrailingStopZeroDistanceInvalid(t *testing.T) {
	o := TrailingBuyStop(1, 1, 90, 10, NoSlippage, GTC, 0, 1)
	if code := o.Validate(); code != ErrorOrderParameterInvalid {
		t.Fatalf("expected ErrorOrderParameterInvalid for zero trailing distance, got %v", code)
	}
}

func TestTrailingStopPositiveStepRange(t *testing.T) {
	o := TrailingBuyStop(1, 1, 90, 10, NoSlippage, GTC, 10, 10)
	if code := o.Validate(); code != ErrorOrderParameterInvalid {
		t.Fatalf("expected ErrorOrderParameterInvalid for step >= distance, got %v", code)
	}
	o = TrailingBuyStop(1, 1, 90, 10, NoSlippage, GTC, 10, 5)
	if code := o.Validate(); !code.OK() {
		t.Fatalf("expected OK, got %v", code)
	}
}

func TestIcebergVisibleComputation(t *testing.T) {
	o := BuyLimit(1, 1, 100, 100, GTC, 10)
	if o.Visible() != 10 {
		t.Fatalf("expected visible 10, got %d", o.Visible())
	}
	if !o.IsIceberg() {
		t.Fatalf("expected IsIceberg true")
	}
}

func TestHiddenOrder(t *testing.T) {
	o := BuyLimit(1, 1, 100, 100, GTC, 0)
	if !o.IsHidden() {
		t.Fatalf("expected IsHidden true for MaxVisibleQuantity=0")
	}
	if o.Visible() != 0 {
		t.Fatalf("expected visible 0, got %d", o.Visible())
	}
}
