// Package dispatcher is the single-writer command loop that owns the
// order book (spec.md S4.7, S5). Every mutation of the book or the
// ledger happens on one goroutine, draining a buffered command
// channel; callers never touch book or balance state directly, they
// submit a Command and read its Response off a per-command reply
// channel. Grounded on the teacher's internal/worker.go WorkerPool,
// which already runs a tomb.Tomb-supervised consumer loop over a task
// channel -- generalized here from a generic any-task pool to a typed
// command dispatch with per-command reply channels instead of a
// shared result channel.
package dispatcher

import (
	"fmt"

	"fenrir/internal/balance"
	"fenrir/internal/book"
	"fenrir/internal/bookerr"
	"fenrir/internal/fixedpoint"
	"fenrir/internal/matching"
	"fenrir/internal/order"
	"fenrir/internal/trade"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Response is returned to the submitter of a Command on its Reply
// channel, exactly once, after the command has been applied.
type Response struct {
	Order   *order.Order
	Trades  []trade.Trade
	Balance balance.UserBalance
	Bids    []book.DepthLevel
	Asks    []book.DepthLevel
	Status  string
	Err     error
}

func reply(ch chan<- Response, r Response) {
	select {
	case ch <- r:
	default:
		// Reply channel is buffered to capacity 1 and owned exclusively
		// by the submitting caller; a full channel here means the caller
		// already gave up, which is not this loop's problem.
	}
}

// Command is the tagged union of requests the dispatcher accepts
// (spec.md S6). Each variant owns its own reply channel so the
// dispatcher never needs a correlation id.
type Command interface {
	apply(d *Dispatcher)
}

// PlaceLimit submits a new limit order for matching.
type PlaceLimit struct {
	User  uuid.UUID
	Side  order.Side
	Price fixedpoint.Price
	Qty   fixedpoint.Quantity
	Reply chan Response
}

// PlaceMarket submits a new market order for immediate execution.
type PlaceMarket struct {
	User  uuid.UUID
	Side  order.Side
	Qty   fixedpoint.Quantity
	Reply chan Response
}

// Cancel requests removal of a resting order on behalf of User.
type Cancel struct {
	User  uuid.UUID
	Order order.ID
	Reply chan Response
}

// GetDepth requests an aggregate depth snapshot, up to Levels rows per
// side (Levels<=0 means all levels).
type GetDepth struct {
	Levels int
	Reply  chan Response
}

// GetBalance requests a user's current available balance.
type GetBalance struct {
	User  uuid.UUID
	Reply chan Response
}

// AddFunds credits a user's available balance in USD or BTC.
type AddFunds struct {
	User     uuid.UUID
	Currency balance.Currency
	Amount   int64
	Reply    chan Response
}

func (c *PlaceLimit) apply(d *Dispatcher) {
	if !c.Price.IsPositive() || !c.Qty.IsPositive() {
		reply(c.Reply, Response{Err: bookerr.ErrInvalidArguments})
		return
	}

	taker := order.NewLimit(c.User, c.Side, c.Price, c.Qty)

	reserveErr := reserveLimit(d.book, taker)
	if reserveErr != nil {
		reply(c.Reply, Response{Err: reserveErr})
		return
	}

	res, err := matching.MatchLimit(d.book, taker)
	if err != nil {
		log.Error().Err(err).Str("order", taker.ID.String()).Msg("limit match failed")
		reply(c.Reply, Response{Err: err})
		return
	}

	log.Debug().
		Str("order", taker.ID.String()).
		Str("side", c.Side.String()).
		Str("status", res.Status).
		Int("trades", len(res.Trades)).
		Msg("placed limit order")

	reply(c.Reply, Response{Order: taker, Trades: res.Trades, Status: res.Status})
}

func (c *PlaceMarket) apply(d *Dispatcher) {
	if !c.Qty.IsPositive() {
		reply(c.Reply, Response{Err: bookerr.ErrInvalidArguments})
		return
	}

	taker := order.NewMarket(c.User, c.Side, c.Qty)
	res, err := matching.MatchMarket(d.book, taker)
	if err != nil {
		log.Error().Err(err).Str("order", taker.ID.String()).Msg("market match failed")
		reply(c.Reply, Response{Err: err})
		return
	}

	log.Debug().
		Str("order", taker.ID.String()).
		Str("side", c.Side.String()).
		Str("status", res.Status).
		Int("trades", len(res.Trades)).
		Msg("placed market order")

	reply(c.Reply, Response{Order: taker, Trades: res.Trades, Status: res.Status})
}

func (c *Cancel) apply(d *Dispatcher) {
	o, err := d.book.Cancel(c.Order, c.User)
	if err != nil {
		reply(c.Reply, Response{Err: err})
		return
	}

	refundErr := refundCancelled(d.book, o)
	if refundErr != nil {
		// The order is already removed from the book; a refund failure
		// here is an internal bookkeeping bug, not a user-facing one.
		log.Error().Err(refundErr).Str("order", o.ID.String()).Msg("refund after cancel failed")
		reply(c.Reply, Response{Err: refundErr})
		return
	}

	log.Debug().Str("order", o.ID.String()).Msg("cancelled order")
	reply(c.Reply, Response{Order: o})
}

func (c *GetDepth) apply(d *Dispatcher) {
	bids, asks := d.book.Depth(c.Levels)
	reply(c.Reply, Response{Bids: bids, Asks: asks})
}

func (c *GetBalance) apply(d *Dispatcher) {
	reply(c.Reply, Response{Balance: d.book.Balances.Snapshot(c.User)})
}

func (c *AddFunds) apply(d *Dispatcher) {
	bal, err := d.book.Balances.AddFunds(c.User, c.Currency, c.Amount)
	if err != nil {
		reply(c.Reply, Response{Err: err})
		return
	}
	log.Debug().Str("user", c.User.String()).Str("currency", string(c.Currency)).Msg("funds added")
	reply(c.Reply, Response{Balance: bal})
}

// reserveLimit debits the placing user's reservation before the order
// enters matching, per spec.md S4.2: a Buy reserves price*qty in USD,
// a Sell reserves qty in BTC.
func reserveLimit(b *book.OrderBook, o *order.Order) error {
	if o.Side == order.Buy {
		amount, err := o.LimitPrice.Mul(o.Original)
		if err != nil {
			return fmt.Errorf("%w: %v", bookerr.ErrOverflow, err)
		}
		return b.Balances.DebitUSD(o.User, amount)
	}
	return b.Balances.DebitBTC(o.User, o.Original)
}

// refundCancelled credits back whatever remained reserved against a
// just-cancelled order.
func refundCancelled(b *book.OrderBook, o *order.Order) error {
	if o.Side == order.Buy {
		amount, err := o.LimitPrice.Mul(o.Remaining)
		if err != nil {
			return fmt.Errorf("%w: %v", bookerr.ErrOverflow, err)
		}
		return b.Balances.CreditUSD(o.User, amount)
	}
	return b.Balances.CreditBTC(o.User, o.Remaining)
}

// Dispatcher owns the order book and drains commands under a single
// goroutine supervised by a tomb.Tomb, matching the teacher's
// WorkerPool lifecycle pattern.
type Dispatcher struct {
	book     *book.OrderBook
	commands chan Command
}

// New constructs a Dispatcher with the given command queue capacity.
func New(queueCapacity int) *Dispatcher {
	return &Dispatcher{
		book:     book.NewOrderBook(),
		commands: make(chan Command, queueCapacity),
	}
}

// Submit enqueues a command for the dispatch loop to apply. It blocks
// if the queue is full, applying backpressure to producers.
func (d *Dispatcher) Submit(c Command) {
	d.commands <- c
}

// Run is the single-writer loop: it owns all mutation of the book and
// ledger, applying one command at a time until the tomb is dying.
func (d *Dispatcher) Run(t *tomb.Tomb) error {
	log.Info().Msg("dispatcher starting")
	for {
		select {
		case <-t.Dying():
			log.Info().Msg("dispatcher stopping")
			return nil
		case cmd := <-d.commands:
			cmd.apply(d)
		}
	}
}
