// Package matching implements the two entry points of spec.md S4.6:
// MatchLimit and MatchMarket, sharing a single trade-execution
// primitive. Grounded on the teacher's internal/engine/orderbook.go
// Match()/handleLimit()/handleMarket() sweep, generalized for
// maker-price execution, fixed-point settlement, and the
// price-improvement refund spec.md requires for limit takers.
package matching

import (
	"errors"
	"fmt"
	"time"

	"fenrir/internal/book"
	"fenrir/internal/bookerr"
	"fenrir/internal/fixedpoint"
	"fenrir/internal/order"
	"fenrir/internal/trade"
)

// Status strings mirror spec.md S6's Response.status enumeration.
const (
	StatusMatched     = "Matched"
	StatusAddedToBook = "Added to book"
	StatusFilled      = "Filled"
	StatusNoLiquidity = "No liquidity"
	StatusPartial     = "Partial"
)

// Result is the outcome of a match attempt: the trades it produced
// and the status string the dispatcher reports to the caller.
type Result struct {
	Trades []trade.Trade
	Status string
}

func opposite(s order.Side) order.Side {
	if s == order.Buy {
		return order.Sell
	}
	return order.Buy
}

func minQuantity(a, b fixedpoint.Quantity) fixedpoint.Quantity {
	if a < b {
		return a
	}
	return b
}

// MatchLimit implements spec.md S4.6.1. The caller (the dispatcher)
// must have already reserved the taker's funds at taker.LimitPrice
// before calling this; execute() only ever refunds the unused
// price-improvement delta back to the taker, it never performs the
// taker's initial debit.
func MatchLimit(b *book.OrderBook, taker *order.Order) (Result, error) {
	var trades []trade.Trade

	for taker.Remaining.IsPositive() {
		maker, ok := b.BestOrder(opposite(taker.Side))
		if !ok {
			break
		}
		if taker.Side == order.Buy && maker.LimitPrice > taker.LimitPrice {
			break
		}
		if taker.Side == order.Sell && maker.LimitPrice < taker.LimitPrice {
			break
		}

		qty := minQuantity(taker.Remaining, maker.Remaining)
		tr, err := execute(b, maker, taker, qty, false)
		if err != nil {
			return Result{}, err
		}
		trades = append(trades, tr)
	}

	if taker.Remaining.IsPositive() {
		if err := b.AddResting(taker); err != nil {
			return Result{}, err
		}
	}

	status := StatusAddedToBook
	if len(trades) > 0 {
		status = StatusMatched
	}
	return Result{Trades: trades, Status: status}, nil
}

// MatchMarket implements spec.md S4.6.2. Market orders never rest:
// whatever remains unfilled when liquidity or funds run out is
// discarded. Funds are debited incrementally, per trade, since the
// total cost is unknown up front; a debit that the taker cannot cover
// halts matching but keeps the trades executed so far.
func MatchMarket(b *book.OrderBook, taker *order.Order) (Result, error) {
	var trades []trade.Trade
	sawLiquidity := false
	haltedOnFunds := false

	for taker.Remaining.IsPositive() {
		maker, ok := b.BestOrder(opposite(taker.Side))
		if !ok {
			break
		}
		sawLiquidity = true

		qty := minQuantity(taker.Remaining, maker.Remaining)
		tr, err := execute(b, maker, taker, qty, true)
		if err != nil {
			if errors.Is(err, bookerr.ErrInsufficientFunds) {
				haltedOnFunds = true
				break
			}
			return Result{}, err
		}
		trades = append(trades, tr)
	}

	var status string
	switch {
	case !sawLiquidity:
		status = StatusNoLiquidity
	case !taker.Remaining.IsPositive():
		status = StatusFilled
	case haltedOnFunds || taker.Remaining.IsPositive():
		status = StatusPartial
	}
	return Result{Trades: trades, Status: status}, nil
}

// execute is the shared trade primitive of spec.md S4.6. Price is
// always the maker's (the resting order set the quote); taker
// settlement differs by flow:
//
//   - limit taker (debitTakerNow=false): the taker already reserved
//     qty*taker.LimitPrice (or qty, for a Sell) at placement time; here
//     we only refund the Buy-side price-improvement delta.
//   - market taker (debitTakerNow=true): no pre-reservation exists, so
//     the taker's leg is debited from live available balance; a
//     shortfall surfaces as bookerr.ErrInsufficientFunds and the caller
//     halts the sweep without rolling back prior trades.
func execute(b *book.OrderBook, maker, taker *order.Order, qty fixedpoint.Quantity, debitTakerNow bool) (trade.Trade, error) {
	price := maker.LimitPrice

	quoteAmount, err := price.Mul(qty)
	if err != nil {
		return trade.Trade{}, fmt.Errorf("%w: %v", bookerr.ErrOverflow, err)
	}

	if taker.Side == order.Buy {
		if debitTakerNow {
			if err := b.Balances.DebitUSD(taker.User, quoteAmount); err != nil {
				return trade.Trade{}, err
			}
		} else if taker.LimitPrice > price {
			delta, err := taker.LimitPrice.Sub(price)
			if err != nil {
				return trade.Trade{}, fmt.Errorf("%w: %v", bookerr.ErrOverflow, err)
			}
			refund, err := delta.Mul(qty)
			if err != nil {
				return trade.Trade{}, fmt.Errorf("%w: %v", bookerr.ErrOverflow, err)
			}
			if refund.IsPositive() {
				if err := b.Balances.CreditUSD(taker.User, refund); err != nil {
					return trade.Trade{}, err
				}
			}
		}
		if err := b.Balances.CreditBTC(taker.User, qty); err != nil {
			return trade.Trade{}, err
		}
		if err := b.Balances.CreditUSD(maker.User, quoteAmount); err != nil {
			return trade.Trade{}, err
		}
		// maker's BTC reservation was already deducted from available
		// at the maker's own placement time; it is consumed here, not
		// debited again.
	} else {
		if debitTakerNow {
			if err := b.Balances.DebitBTC(taker.User, qty); err != nil {
				return trade.Trade{}, err
			}
		}
		// a Sell taker's reservation equals qty exactly: no
		// price-improvement delta is possible.
		if err := b.Balances.CreditUSD(taker.User, quoteAmount); err != nil {
			return trade.Trade{}, err
		}
		if err := b.Balances.CreditBTC(maker.User, qty); err != nil {
			return trade.Trade{}, err
		}
		// maker's USD reservation was already deducted at placement.
	}

	if err := maker.Fill(qty); err != nil {
		return trade.Trade{}, err
	}
	if err := taker.Fill(qty); err != nil {
		return trade.Trade{}, err
	}
	b.SettleFill(maker, qty)

	return trade.Trade{
		ID:         trade.NewID(),
		MakerOrder: maker.ID,
		TakerOrder: taker.ID,
		MakerUser:  maker.User,
		TakerUser:  taker.User,
		Price:      price,
		Quantity:   qty,
		Timestamp:  time.Now(),
	}, nil
}
