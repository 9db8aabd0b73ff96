package book

import (
	"fenrir/internal/fixedpoint"
	"fenrir/internal/order"
)

// PriceLevel is a FIFO queue of resting orders at one price, with a
// cached aggregate remaining volume. Grounded on the teacher's
// internal/engine/orderbook.go PriceLevel, generalized to keep the
// cached volume in sync on every mutation (spec.md S4.4).
type PriceLevel struct {
	Price  fixedpoint.Price
	Orders []*order.Order

	totalVolume fixedpoint.Quantity
}

func newPriceLevel(price fixedpoint.Price) *PriceLevel {
	return &PriceLevel{Price: price}
}

// TotalVolume returns the cached sum of remaining quantity across all
// residents of the level.
func (l *PriceLevel) TotalVolume() fixedpoint.Quantity { return l.totalVolume }

// IsEmpty reports whether the level has no residents.
func (l *PriceLevel) IsEmpty() bool { return len(l.Orders) == 0 }

// Len returns the number of resting orders at this level.
func (l *PriceLevel) Len() int { return len(l.Orders) }

// Front returns the head of the queue -- the earliest-arrived
// resident, hence the next to match (I2).
func (l *PriceLevel) Front() *order.Order {
	if len(l.Orders) == 0 {
		return nil
	}
	return l.Orders[0]
}

// PushBack queues a newly-resting order and updates the cached
// volume. The order goes behind every resident that precedes it under
// order.Before (earlier CreatedAt, then smaller id), which is the back
// of the queue for any order created after the current residents.
func (l *PriceLevel) PushBack(o *order.Order) {
	i := len(l.Orders)
	for i > 0 && order.Before(o, l.Orders[i-1]) {
		i--
	}
	l.Orders = append(l.Orders, nil)
	copy(l.Orders[i+1:], l.Orders[i:])
	l.Orders[i] = o
	l.totalVolume, _ = l.totalVolume.Add(o.Remaining)
}

// PopFrontIfFilled removes the head order if it is Filled, returning
// its id and true. Otherwise it is a no-op.
func (l *PriceLevel) PopFrontIfFilled() (order.ID, bool) {
	if len(l.Orders) == 0 || l.Orders[0].Status != order.Filled {
		return order.ID{}, false
	}
	head := l.Orders[0]
	l.Orders = l.Orders[1:]
	return head.ID, true
}

// Remove deletes a specific order from the level by id (used by
// cancel). Linear cost is acceptable: the id index has already
// located the level in O(log n), and levels are small in practice
// (spec.md S4.4).
func (l *PriceLevel) Remove(id order.ID) (*order.Order, bool) {
	for i, o := range l.Orders {
		if o.ID == id {
			l.Orders = append(l.Orders[:i], l.Orders[i+1:]...)
			l.totalVolume, _ = l.totalVolume.Sub(o.Remaining)
			return o, true
		}
	}
	return nil, false
}

// shrinkVolume re-syncs the cached volume after an in-place fill on a
// resident order (the order object is shared with the id index, so
// its Remaining already reflects the fill -- only the cache needs
// correcting).
func (l *PriceLevel) shrinkVolume(by fixedpoint.Quantity) {
	l.totalVolume, _ = l.totalVolume.Sub(by)
}
