// Command lobcli is an interactive line-oriented console for driving a
// MarketManager directly, the Go counterpart of the original engine's
// command-line matching harness: one command per line, one result per
// command, no persistence across runs.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nexustrade/lobengine/internal/matching"
	"github.com/nexustrade/lobengine/pkg/lob"
)

type printHandler struct {
	matching.BaseHandler
}

func (printHandler) OnAddOrder(o lob.Order) { fmt.Printf("on_add_order: id=%d\n", o.ID) }
func (printHandler) OnUpdateOrder(o lob.Order) {
	fmt.Printf("on_update_order: id=%d leaves=%d\n", o.ID, o.LeavesQuantity)
}
func (printHandler) OnDeleteOrder(o lob.Order) { fmt.Printf("on_delete_order: id=%d\n", o.ID) }
func (printHandler) OnExecuteOrder(o lob.Order, price, qty uint64) {
	fmt.Printf("on_execute_order: id=%d price=%d quantity=%d\n", o.ID, price, qty)
}
func (printHandler) OnAddLevel(sym lob.Symbol, level lob.Level, top bool) {
	fmt.Printf("on_add_level: symbol=%s price=%d volume=%d top=%v\n", sym.Name, level.Price, level.Volume, top)
}
func (printHandler) OnUpdateLevel(sym lob.Symbol, level lob.Level, top bool) {
	fmt.Printf("on_update_level: symbol=%s price=%d volume=%d top=%v\n", sym.Name, level.Price, level.Volume, top)
}
func (printHandler) OnDeleteLevel(sym lob.Symbol, level lob.Level, top bool) {
	fmt.Printf("on_delete_level: symbol=%s price=%d top=%v\n", sym.Name, level.Price, top)
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	manager := matching.NewManager(printHandler{}, logger)
	manager.EnableMatching()

	fmt.Println("lobcli — type 'help' for the command grammar, 'quit' to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			return
		case "help":
			printHelp()
		default:
			if code, err := dispatch(manager, fields); err != nil {
				fmt.Println("error:", err)
			} else if !code.OK() {
				fmt.Println("rejected:", code)
			} else {
				fmt.Println("ok")
			}
		}
	}
}

func printHelp() {
	fmt.Println(`commands:
  add_symbol <id> <name>
  delete_symbol <id>
  add_book <symbol_id>
  delete_book <symbol_id>
  enable_matching
  disable_matching
  add buy|sell limit <id> <symbol_id> <price> <qty> <tif> [max_visible]
  add buy|sell market <id> <symbol_id> <qty> <tif> [slippage]
  add buy|sell stop <id> <symbol_id> <stop_price> <qty> <tif> [slippage]
  add buy|sell stop_limit <id> <symbol_id> <stop_price> <price> <qty> <tif>
  reduce <id> <qty>
  modify <id> <price> <qty>
  mitigate <id> <price> <qty>
  replace <id> <new_id> <price> <qty>
  delete <id>
  execute <id> <qty> [price]`)
}

func dispatch(m *matching.Manager, f []string) (lob.ErrorKind, error) {
	switch f[0] {
	case "add_symbol":
		id, err := parseU32(f[1])
		if err != nil {
			return 0, err
		}
		return m.AddSymbol(lob.Symbol{ID: id, Name: f[2]}), nil
	case "delete_symbol":
		id, err := parseU32(f[1])
		if err != nil {
			return 0, err
		}
		return m.DeleteSymbol(id), nil
	case "add_book":
		id, err := parseU32(f[1])
		if err != nil {
			return 0, err
		}
		return m.AddOrderBook(id), nil
	case "delete_book":
		id, err := parseU32(f[1])
		if err != nil {
			return 0, err
		}
		return m.DeleteOrderBook(id), nil
	case "enable_matching":
		return m.EnableMatching(), nil
	case "disable_matching":
		return m.DisableMatching(), nil
	case "add":
		return dispatchAdd(m, f[1:])
	case "reduce":
		id, err := parseU64(f[1])
		if err != nil {
			return 0, err
		}
		qty, err := parseU64(f[2])
		if err != nil {
			return 0, err
		}
		return m.ReduceOrder(id, qty), nil
	case "modify":
		return dispatchModify(m, f[1:], false)
	case "mitigate":
		return dispatchModify(m, f[1:], true)
	case "replace":
		id, err := parseU64(f[1])
		if err != nil {
			return 0, err
		}
		newID, err := parseU64(f[2])
		if err != nil {
			return 0, err
		}
		price, err := parseU64(f[3])
		if err != nil {
			return 0, err
		}
		qty, err := parseU64(f[4])
		if err != nil {
			return 0, err
		}
		return m.ReplaceOrder(id, newID, price, qty), nil
	case "delete":
		id, err := parseU64(f[1])
		if err != nil {
			return 0, err
		}
		return m.DeleteOrder(id), nil
	case "execute":
		id, err := parseU64(f[1])
		if err != nil {
			return 0, err
		}
		qty, err := parseU64(f[2])
		if err != nil {
			return 0, err
		}
		if len(f) > 3 {
			price, err := parseU64(f[3])
			if err != nil {
				return 0, err
			}
			return m.ExecuteOrderAt(id, price, qty), nil
		}
		return m.ExecuteOrder(id, qty), nil
	default:
		return 0, fmt.Errorf("unknown command %q", f[0])
	}
}

func dispatchModify(m *matching.Manager, f []string, mitigate bool) (lob.ErrorKind, error) {
	id, err := parseU64(f[0])
	if err != nil {
		return 0, err
	}
	price, err := parseU64(f[1])
	if err != nil {
		return 0, err
	}
	qty, err := parseU64(f[2])
	if err != nil {
		return 0, err
	}
	if mitigate {
		return m.MitigateOrder(id, price, qty), nil
	}
	return m.ModifyOrder(id, price, qty), nil
}

func dispatchAdd(m *matching.Manager, f []string) (lob.ErrorKind, error) {
	if len(f) < 2 {
		return 0, fmt.Errorf("add requires at least side and kind")
	}
	side, kind := f[0], f[1]
	rest := f[2:]

	switch kind {
	case "limit":
		id, symbolID, price, qty, tif, maxVisible, err := parseLimitArgs(rest)
		if err != nil {
			return 0, err
		}
		if side == "buy" {
			return m.AddOrder(lob.BuyLimit(id, symbolID, price, qty, tif, maxVisible)), nil
		}
		return m.AddOrder(lob.SellLimit(id, symbolID, price, qty, tif, maxVisible)), nil
	case "market":
		id, symbolID, qty, tif, slippage, err := parseMarketArgs(rest)
		if err != nil {
			return 0, err
		}
		if side == "buy" {
			return m.AddOrder(lob.BuyMarket(id, symbolID, qty, slippage, tif)), nil
		}
		return m.AddOrder(lob.SellMarket(id, symbolID, qty, slippage, tif)), nil
	case "stop":
		id, symbolID, stopPrice, qty, tif, slippage, err := parseStopArgs(rest)
		if err != nil {
			return 0, err
		}
		if side == "buy" {
			return m.AddOrder(lob.BuyStop(id, symbolID, stopPrice, qty, slippage, tif)), nil
		}
		return m.AddOrder(lob.SellStop(id, symbolID, stopPrice, qty, slippage, tif)), nil
	case "stop_limit":
		id, symbolID, stopPrice, price, qty, tif, err := parseStopLimitArgs(rest)
		if err != nil {
			return 0, err
		}
		if side == "buy" {
			return m.AddOrder(lob.BuyStopLimit(id, symbolID, stopPrice, price, qty, tif)), nil
		}
		return m.AddOrder(lob.SellStopLimit(id, symbolID, stopPrice, price, qty, tif)), nil
	default:
		return 0, fmt.Errorf("unknown order kind %q", kind)
	}
}

func parseLimitArgs(f []string) (id uint64, symbolID uint32, price, qty uint64, tif lob.TimeInForce, maxVisible uint64, err error) {
	if len(f) < 5 {
		err = fmt.Errorf("limit order requires id symbol_id price qty tif [max_visible]")
		return
	}
	id, err = parseU64(f[0])
	if err != nil {
		return
	}
	symbolID, err = parseU32(f[1])
	if err != nil {
		return
	}
	price, err = parseU64(f[2])
	if err != nil {
		return
	}
	qty, err = parseU64(f[3])
	if err != nil {
		return
	}
	tif = parseTIF(f[4])
	maxVisible = lob.PlainVisibleQuantity
	if len(f) > 5 {
		maxVisible, err = parseU64(f[5])
	}
	return
}

func parseMarketArgs(f []string) (id uint64, symbolID uint32, qty uint64, tif lob.TimeInForce, slippage uint64, err error) {
	if len(f) < 4 {
		err = fmt.Errorf("market order requires id symbol_id qty tif [slippage]")
		return
	}
	id, err = parseU64(f[0])
	if err != nil {
		return
	}
	symbolID, err = parseU32(f[1])
	if err != nil {
		return
	}
	qty, err = parseU64(f[2])
	if err != nil {
		return
	}
	tif = parseTIF(f[3])
	slippage = lob.NoSlippage
	if len(f) > 4 {
		slippage, err = parseU64(f[4])
	}
	return
}

func parseStopArgs(f []string) (id uint64, symbolID uint32, stopPrice, qty uint64, tif lob.TimeInForce, slippage uint64, err error) {
	if len(f) < 5 {
		err = fmt.Errorf("stop order requires id symbol_id stop_price qty tif [slippage]")
		return
	}
	id, err = parseU64(f[0])
	if err != nil {
		return
	}
	symbolID, err = parseU32(f[1])
	if err != nil {
		return
	}
	stopPrice, err = parseU64(f[2])
	if err != nil {
		return
	}
	qty, err = parseU64(f[3])
	if err != nil {
		return
	}
	tif = parseTIF(f[4])
	slippage = lob.NoSlippage
	if len(f) > 5 {
		slippage, err = parseU64(f[5])
	}
	return
}

func parseStopLimitArgs(f []string) (id uint64, symbolID uint32, stopPrice, price, qty uint64, tif lob.TimeInForce, err error) {
	if len(f) < 6 {
		err = fmt.Errorf("stop_limit order requires id symbol_id stop_price price qty tif")
		return
	}
	id, err = parseU64(f[0])
	if err != nil {
		return
	}
	symbolID, err = parseU32(f[1])
	if err != nil {
		return
	}
	stopPrice, err = parseU64(f[2])
	if err != nil {
		return
	}
	price, err = parseU64(f[3])
	if err != nil {
		return
	}
	qty, err = parseU64(f[4])
	if err != nil {
		return
	}
	tif = parseTIF(f[5])
	return
}

func parseTIF(s string) lob.TimeInForce {
	switch strings.ToUpper(s) {
	case "IOC":
		return lob.IOC
	case "FOK":
		return lob.FOK
	case "AON":
		return lob.AON
	default:
		return lob.GTC
	}
}

func parseU64(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }
func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}
