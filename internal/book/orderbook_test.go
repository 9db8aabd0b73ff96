package book_test

import (
	"testing"

	"fenrir/internal/book"
	"fenrir/internal/bookerr"
	"fenrir/internal/fixedpoint"
	"fenrir/internal/order"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(m int64) fixedpoint.Price  { return fixedpoint.NewPrice(m) }
func qty(m int64) fixedpoint.Quantity { return fixedpoint.NewQuantity(m) }

func TestAddResting_SortsBidsDescendingAsksAscending(t *testing.T) {
	b := book.NewOrderBook()
	u := uuid.New()

	require.NoError(t, b.AddResting(order.NewLimit(u, order.Buy, price(98), qty(1))))
	require.NoError(t, b.AddResting(order.NewLimit(u, order.Buy, price(99), qty(1))))
	require.NoError(t, b.AddResting(order.NewLimit(u, order.Sell, price(101), qty(1))))
	require.NoError(t, b.AddResting(order.NewLimit(u, order.Sell, price(100), qty(1))))

	bids := b.BidLevels()
	require.Len(t, bids, 2)
	assert.Equal(t, price(99), bids[0].Price)
	assert.Equal(t, price(98), bids[1].Price)

	asks := b.AskLevels()
	require.Len(t, asks, 2)
	assert.Equal(t, price(100), asks[0].Price)
	assert.Equal(t, price(101), asks[1].Price)
}

func TestAddResting_FIFOWithinLevel(t *testing.T) {
	b := book.NewOrderBook()
	u := uuid.New()

	first := order.NewLimit(u, order.Buy, price(99), qty(10))
	require.NoError(t, b.AddResting(first))
	second := order.NewLimit(u, order.Buy, price(99), qty(20))
	require.NoError(t, b.AddResting(second))

	lvl := b.BidLevels()[0]
	require.Len(t, lvl.Orders, 2)
	assert.Equal(t, first.ID, lvl.Orders[0].ID)
	assert.Equal(t, second.ID, lvl.Orders[1].ID)
	assert.Equal(t, qty(30), lvl.TotalVolume())
}

func TestCancel_RefusesWrongOwnerWithoutMutating(t *testing.T) {
	b := book.NewOrderBook()
	owner := uuid.New()
	other := uuid.New()

	o := order.NewLimit(owner, order.Buy, price(99), qty(10))
	require.NoError(t, b.AddResting(o))

	_, err := b.Cancel(o.ID, other)
	assert.ErrorIs(t, err, bookerr.ErrNotOrderOwner)

	// State unchanged: the order is still resting and still findable.
	got, ok := b.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, order.Open, got.Status)
}

func TestCancel_UnknownOrder(t *testing.T) {
	b := book.NewOrderBook()
	_, err := b.Cancel(order.NewID(), uuid.New())
	assert.ErrorIs(t, err, bookerr.ErrUnknownOrder)
}

func TestCancel_IsIdempotent(t *testing.T) {
	b := book.NewOrderBook()
	owner := uuid.New()
	o := order.NewLimit(owner, order.Buy, price(99), qty(10))
	require.NoError(t, b.AddResting(o))

	_, err := b.Cancel(o.ID, owner)
	require.NoError(t, err)

	bidsAfterFirst := b.BidLevels()
	_, ok := b.Get(o.ID)
	require.False(t, ok)

	_, err = b.Cancel(o.ID, owner)
	assert.ErrorIs(t, err, bookerr.ErrUnknownOrder)

	// Book state after the second (no-op) cancel is identical to the
	// state after the first: the order stays gone, no level reappears.
	assert.Equal(t, bidsAfterFirst, b.BidLevels())
	_, ok = b.Get(o.ID)
	assert.False(t, ok)
}

func TestCancel_RemovesEmptyLevel(t *testing.T) {
	b := book.NewOrderBook()
	owner := uuid.New()
	o := order.NewLimit(owner, order.Sell, price(100), qty(10))
	require.NoError(t, b.AddResting(o))

	_, err := b.Cancel(o.ID, owner)
	require.NoError(t, err)

	assert.Empty(t, b.AskLevels())
	_, ok := b.Get(o.ID)
	assert.False(t, ok)
}

func TestDepth_LimitsLevelsPerSide(t *testing.T) {
	b := book.NewOrderBook()
	u := uuid.New()
	for _, p := range []int64{100, 101, 102} {
		require.NoError(t, b.AddResting(order.NewLimit(u, order.Sell, price(p), qty(1))))
	}

	bids, asks := b.Depth(2)
	assert.Empty(t, bids)
	assert.Len(t, asks, 2)
	assert.Equal(t, price(100), asks[0].Price)
	assert.Equal(t, price(101), asks[1].Price)
}

func TestCrosses(t *testing.T) {
	b := book.NewOrderBook()
	u := uuid.New()
	require.NoError(t, b.AddResting(order.NewLimit(u, order.Sell, price(100), qty(1))))

	assert.True(t, b.Crosses(order.Buy, price(100)))
	assert.True(t, b.Crosses(order.Buy, price(101)))
	assert.False(t, b.Crosses(order.Buy, price(99)))
}

func TestDepth_IsPureAcrossRepeatedCalls(t *testing.T) {
	b := book.NewOrderBook()
	u := uuid.New()
	require.NoError(t, b.AddResting(order.NewLimit(u, order.Buy, price(98), qty(3))))
	require.NoError(t, b.AddResting(order.NewLimit(u, order.Buy, price(99), qty(1))))
	require.NoError(t, b.AddResting(order.NewLimit(u, order.Sell, price(100), qty(2))))
	require.NoError(t, b.AddResting(order.NewLimit(u, order.Sell, price(101), qty(5))))

	bids1, asks1 := b.Depth(10)
	bids2, asks2 := b.Depth(10)
	assert.Equal(t, bids1, bids2)
	assert.Equal(t, asks1, asks2)

	// A read-only call must not mutate the book it observes.
	bids3, asks3 := b.Depth(10)
	assert.Equal(t, bids1, bids3)
	assert.Equal(t, asks1, asks3)
}

func TestSummary_ReportsSpreadOnlyWhenBothSidesPresent(t *testing.T) {
	b := book.NewOrderBook()
	u := uuid.New()

	empty := b.Summary()
	assert.False(t, empty.HasBid)
	assert.False(t, empty.HasAsk)
	_, err := empty.Spread()
	assert.ErrorIs(t, err, bookerr.ErrInvalidArguments)

	require.NoError(t, b.AddResting(order.NewLimit(u, order.Buy, price(98), qty(1))))
	require.NoError(t, b.AddResting(order.NewLimit(u, order.Sell, price(101), qty(1))))

	s := b.Summary()
	require.True(t, s.HasBid)
	require.True(t, s.HasAsk)
	spread, err := s.Spread()
	require.NoError(t, err)
	assert.Equal(t, price(3), spread)
}
