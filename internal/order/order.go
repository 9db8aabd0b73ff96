// Package order defines the Order record: identity, side, type,
// quantity bookkeeping and status transitions. Grounded on the
// teacher's internal/common/order.go, generalized to carry fixed-point
// scalars and the reservation/fill discipline of spec.md S4.2.
package order

import (
	"fmt"
	"time"

	"fenrir/internal/fixedpoint"

	"github.com/google/uuid"
)

// ID uniquely identifies an order for its whole lifetime.
type ID uuid.UUID

func (id ID) String() string { return uuid.UUID(id).String() }

// NewID mints a fresh order id.
func NewID() ID { return ID(uuid.New()) }

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Type distinguishes resting limit orders from immediate-execution
// market orders.
type Type int

const (
	Limit Type = iota
	Market
)

func (t Type) String() string {
	if t == Market {
		return "market"
	}
	return "limit"
}

// Status tracks an order's position in its lifecycle.
type Status int

const (
	Open Status = iota
	PartiallyFilled
	Filled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is a single resting or aggressing order. LimitPrice is the
// zero value for market orders.
type Order struct {
	ID         ID
	User       uuid.UUID
	Side       Side
	Type       Type
	LimitPrice fixedpoint.Price
	Original   fixedpoint.Quantity
	Remaining  fixedpoint.Quantity
	Status     Status
	CreatedAt  time.Time
}

// NewLimit constructs an Open limit order. CreatedAt is assigned once,
// here, and never changes afterwards; ties are broken by ID, assigned
// at the same moment (spec.md S4.2).
func NewLimit(user uuid.UUID, side Side, price fixedpoint.Price, qty fixedpoint.Quantity) *Order {
	return &Order{
		ID:         NewID(),
		User:       user,
		Side:       side,
		Type:       Limit,
		LimitPrice: price,
		Original:   qty,
		Remaining:  qty,
		Status:     Open,
		CreatedAt:  time.Now(),
	}
}

// NewMarket constructs an Open market order.
func NewMarket(user uuid.UUID, side Side, qty fixedpoint.Quantity) *Order {
	return &Order{
		ID:        NewID(),
		User:      user,
		Side:      side,
		Type:      Market,
		Original:  qty,
		Remaining: qty,
		Status:    Open,
		CreatedAt: time.Now(),
	}
}

// Fill subtracts q from the order's remaining quantity, failing if q
// exceeds what remains. Status is updated to PartiallyFilled or Filled.
func (o *Order) Fill(q fixedpoint.Quantity) error {
	remaining, err := o.Remaining.Sub(q)
	if err != nil || remaining < 0 {
		return fmt.Errorf("order %s: cannot fill %s against remaining %s", o.ID, q, o.Remaining)
	}
	o.Remaining = remaining
	if o.Remaining == 0 {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
	return nil
}

// Cancel marks the order Cancelled. Only permitted while Open or
// PartiallyFilled.
func (o *Order) Cancel() error {
	if o.Status != Open && o.Status != PartiallyFilled {
		return fmt.Errorf("order %s: cannot cancel from status %s", o.ID, o.Status)
	}
	o.Status = Cancelled
	return nil
}

// IsResting reports whether the order currently occupies a price
// level (I3: orders[id] exists iff resting).
func (o *Order) IsResting() bool {
	return o.Status == Open || o.Status == PartiallyFilled
}

// Before orders the earliest-first, tie-broken-by-id comparator used
// for FIFO within a price level and for resolving equal timestamps.
func Before(a, b *Order) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID.String() < b.ID.String()
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (o *Order) String() string {
	return fmt.Sprintf(
		"Order{id=%s user=%s side=%s type=%s price=%s remaining=%s/%s status=%s}",
		o.ID, o.User, o.Side, o.Type, o.LimitPrice, o.Remaining, o.Original, o.Status,
	)
}
