// Package book implements the OrderBook: two price-indexed btree
// sides, an id index, and the balance ledger they share. Grounded on
// the teacher's internal/engine/orderbook.go, which already used
// github.com/tidwall/btree the same way (PriceLevel comparator,
// MinMut/GetMut/Set/Delete); generalized here to carry reservation-
// aware orders and a real balance ledger instead of float64 fields.
package book

import (
	"fenrir/internal/balance"
	"fenrir/internal/bookerr"
	"fenrir/internal/fixedpoint"
	"fenrir/internal/order"

	"github.com/google/uuid"
	"github.com/tidwall/btree"
)

type levels = btree.BTreeG[*PriceLevel]

// OrderBook holds both sides of the book, the id index, and the
// balance ledger (spec.md S4.5).
type OrderBook struct {
	bids *levels // sorted descending: best bid first
	asks *levels // sorted ascending: best ask first

	orders   map[order.ID]*order.Order
	Balances *balance.Ledger
}

// NewOrderBook constructs an empty book with a fresh ledger.
func NewOrderBook() *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price
	})
	return &OrderBook{
		bids:     bids,
		asks:     asks,
		orders:   make(map[order.ID]*order.Order),
		Balances: balance.New(),
	}
}

func (b *OrderBook) sideTree(side order.Side) *levels {
	if side == order.Buy {
		return b.bids
	}
	return b.asks
}

// BestBid returns the highest resting buy price, if any.
func (b *OrderBook) BestBid() (fixedpoint.Price, bool) {
	lvl, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest resting sell price, if any.
func (b *OrderBook) BestAsk() (fixedpoint.Price, bool) {
	lvl, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// BestOrder returns the head order of the best level on the given
// side, the order the matching engine should trade against next.
func (b *OrderBook) BestOrder(side order.Side) (*order.Order, bool) {
	lvl, ok := b.sideTree(side).MinMut()
	if !ok {
		return nil, false
	}
	return lvl.Front(), true
}

// Get looks up a resting order by id.
func (b *OrderBook) Get(id order.ID) (*order.Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// AddResting inserts an order that did not fully match into the
// correct side under its limit price (spec.md S4.5). The caller is
// responsible for having matched it first -- this method does not
// check for crossing (I5 is an engine-level invariant).
func (b *OrderBook) AddResting(o *order.Order) error {
	if o.Type != order.Limit {
		return bookerr.ErrInvalidArguments
	}
	tree := b.sideTree(o.Side)
	if lvl, ok := tree.GetMut(&PriceLevel{Price: o.LimitPrice}); ok {
		lvl.PushBack(o)
	} else {
		lvl = newPriceLevel(o.LimitPrice)
		lvl.PushBack(o)
		tree.Set(lvl)
	}
	b.orders[o.ID] = o
	return nil
}

// SettleFill re-syncs a level's cached volume after a resident order
// was filled by `by`, and evicts the order (and, if empty, the level)
// once it is fully Filled. Called by the matching engine after every
// partial or full execution against a resting maker.
func (b *OrderBook) SettleFill(o *order.Order, by fixedpoint.Quantity) {
	tree := b.sideTree(o.Side)
	lvl, ok := tree.GetMut(&PriceLevel{Price: o.LimitPrice})
	if !ok {
		return
	}
	lvl.shrinkVolume(by)
	if o.Status == order.Filled {
		if id, popped := lvl.PopFrontIfFilled(); popped {
			delete(b.orders, id)
		}
		if lvl.IsEmpty() {
			tree.Delete(lvl)
		}
	}
}

// Cancel removes a resting order by id on behalf of `user`. The
// ownership check happens before any mutation (spec.md S4.7): an
// unknown id or a user mismatch leaves the book untouched.
func (b *OrderBook) Cancel(id order.ID, user uuid.UUID) (*order.Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, bookerr.ErrUnknownOrder
	}
	if o.User != user {
		return nil, bookerr.ErrNotOrderOwner
	}

	tree := b.sideTree(o.Side)
	lvl, ok := tree.GetMut(&PriceLevel{Price: o.LimitPrice})
	if !ok {
		// Index/level inconsistency: a programmer error, not a user
		// facing failure (spec.md S7).
		panic("book: order present in index but not in its price level")
	}
	if _, removed := lvl.Remove(id); !removed {
		panic("book: order present in index but not found in its level")
	}
	if lvl.IsEmpty() {
		tree.Delete(lvl)
	}
	delete(b.orders, id)
	if err := o.Cancel(); err != nil {
		panic(err)
	}
	return o, nil
}

// Depth returns up to k aggregate (price, volume) levels per side,
// bids descending and asks ascending (spec.md S4.5). k<=0 means "all
// levels".
func (b *OrderBook) Depth(k int) (bids, asks []DepthLevel) {
	return collectDepth(b.bids, k), collectDepth(b.asks, k)
}

// DepthLevel is one aggregated (price, volume) row of a depth
// snapshot.
type DepthLevel struct {
	Price  fixedpoint.Price
	Volume fixedpoint.Quantity
}

func collectDepth(tree *levels, k int) []DepthLevel {
	var out []DepthLevel
	tree.Scan(func(lvl *PriceLevel) bool {
		out = append(out, DepthLevel{Price: lvl.Price, Volume: lvl.TotalVolume()})
		return k <= 0 || len(out) < k
	})
	return out
}

// BidLevels and AskLevels expose the raw resting levels for tests
// checking I1 (strict price ordering) and I2 (FIFO within a level).
func (b *OrderBook) BidLevels() []*PriceLevel { return collectLevels(b.bids) }
func (b *OrderBook) AskLevels() []*PriceLevel { return collectLevels(b.asks) }

func collectLevels(tree *levels) []*PriceLevel {
	var out []*PriceLevel
	tree.Scan(func(lvl *PriceLevel) bool {
		out = append(out, lvl)
		return true
	})
	return out
}

// Crosses reports whether a limit order on the given side at price
// would cross the opposite best -- i.e. it must match rather than
// rest (spec.md GLOSSARY: "Crossing").
func (b *OrderBook) Crosses(side order.Side, price fixedpoint.Price) bool {
	if side == order.Buy {
		ask, ok := b.BestAsk()
		return ok && price >= ask
	}
	bid, ok := b.BestBid()
	return ok && price <= bid
}

// Summary is a one-line top-of-book view: best bid and best ask, with
// Spread giving the difference between them (an error if either side
// is empty). It reports book state without walking every level.
type Summary struct {
	BestBid fixedpoint.Price
	BestAsk fixedpoint.Price
	HasBid  bool
	HasAsk  bool
}

// Spread returns BestAsk-BestBid, or an error if either side is empty.
func (s Summary) Spread() (fixedpoint.Price, error) {
	if !s.HasBid || !s.HasAsk {
		return 0, bookerr.ErrInvalidArguments
	}
	return s.BestAsk.Sub(s.BestBid)
}

// Summary returns the current top-of-book snapshot.
func (b *OrderBook) Summary() Summary {
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	return Summary{BestBid: bid, BestAsk: ask, HasBid: hasBid, HasAsk: hasAsk}
}
