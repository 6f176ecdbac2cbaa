package lob

// ErrorKind is the total, exception-free result code returned by every
// MarketManager operation. The zero value, ErrorOK, is success.
type ErrorKind uint8

const (
	ErrorOK ErrorKind = iota
	ErrorSymbolDuplicate
	ErrorSymbolNotFound
	ErrorOrderBookDuplicate
	ErrorOrderBookNotFound
	ErrorOrderDuplicate
	ErrorOrderNotFound
	ErrorOrderIDInvalid
	ErrorOrderTypeInvalid
	ErrorOrderParameterInvalid
	ErrorOrderQuantityInvalid
)

var errorKindNames = map[ErrorKind]string{
	ErrorOK:                    "OK",
	ErrorSymbolDuplicate:       "SYMBOL_DUPLICATE",
	ErrorSymbolNotFound:        "SYMBOL_NOT_FOUND",
	ErrorOrderBookDuplicate:    "ORDER_BOOK_DUPLICATE",
	ErrorOrderBookNotFound:     "ORDER_BOOK_NOT_FOUND",
	ErrorOrderDuplicate:        "ORDER_DUPLICATE",
	ErrorOrderNotFound:         "ORDER_NOT_FOUND",
	ErrorOrderIDInvalid:        "ORDER_ID_INVALID",
	ErrorOrderTypeInvalid:      "ORDER_TYPE_INVALID",
	ErrorOrderParameterInvalid: "ORDER_PARAMETER_INVALID",
	ErrorOrderQuantityInvalid:  "ORDER_QUANTITY_INVALID",
}

func (e ErrorKind) String() string {
	if name, ok := errorKindNames[e]; ok {
		return name
	}
	return "UNKNOWN"
}

// OK reports whether the result represents success.
func (e ErrorKind) OK() bool { return e == ErrorOK }
