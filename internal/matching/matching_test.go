package matching_test

import (
	"testing"

	"fenrir/internal/balance"
	"fenrir/internal/book"
	"fenrir/internal/bookerr"
	"fenrir/internal/fixedpoint"
	"fenrir/internal/matching"
	"fenrir/internal/order"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dollars/bitcoin let scenarios read in the spec's literal decimal
// values: dollars(50_000) is $50,000, bitcoin(15) is 1.5 BTC (tenths).
func dollars(whole int64) fixedpoint.Price     { return fixedpoint.NewPrice(whole * fixedpoint.PriceScale) }
func bitcoin(tenths int64) fixedpoint.Quantity { return fixedpoint.NewQuantity(tenths * fixedpoint.QuantityScale / 10) }

func reserve(t *testing.T, b *book.OrderBook, o *order.Order) {
	t.Helper()
	if o.Side == order.Buy {
		amt, err := o.LimitPrice.Mul(o.Original)
		require.NoError(t, err)
		require.NoError(t, b.Balances.DebitUSD(o.User, amt))
		return
	}
	require.NoError(t, b.Balances.DebitBTC(o.User, o.Original))
}

func TestScenario_AddAndRest(t *testing.T) {
	b := book.NewOrderBook()
	u1 := uuid.New()
	require.NoError(t, depositUSD(b, u1, 100_000))

	taker := order.NewLimit(u1, order.Buy, dollars(50_000), bitcoin(10))
	reserve(t, b, taker)

	res, err := matching.MatchLimit(b, taker)
	require.NoError(t, err)
	assert.Equal(t, matching.StatusAddedToBook, res.Status)
	assert.Empty(t, res.Trades)

	bids, asks := b.Depth(10)
	assert.Empty(t, asks)
	require.Len(t, bids, 1)
	assert.Equal(t, dollars(50_000), bids[0].Price)
	assert.Equal(t, bitcoin(10), bids[0].Volume)
	assert.Equal(t, dollars(50_000), b.Balances.Snapshot(u1).USD)
}

func TestScenario_CrossAndFill(t *testing.T) {
	b := book.NewOrderBook()
	u1, u2 := uuid.New(), uuid.New()
	require.NoError(t, depositUSD(b, u1, 100_000))
	require.NoError(t, depositBTC(b, u2, 2))

	maker := order.NewLimit(u1, order.Buy, dollars(50_000), bitcoin(10))
	reserve(t, b, maker)
	_, err := matching.MatchLimit(b, maker)
	require.NoError(t, err)

	taker := order.NewLimit(u2, order.Sell, dollars(49_000), bitcoin(10))
	reserve(t, b, taker)
	res, err := matching.MatchLimit(b, taker)
	require.NoError(t, err)

	assert.Equal(t, matching.StatusMatched, res.Status)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, dollars(50_000), res.Trades[0].Price)
	assert.Equal(t, bitcoin(10), res.Trades[0].Quantity)

	bids, asks := b.Depth(10)
	assert.Empty(t, bids)
	assert.Empty(t, asks)

	u1bal := b.Balances.Snapshot(u1)
	assert.Equal(t, bitcoin(10), u1bal.BTC)
	assert.Equal(t, dollars(50_000), u1bal.USD)

	u2bal := b.Balances.Snapshot(u2)
	assert.Equal(t, bitcoin(10), u2bal.BTC)
	assert.Equal(t, dollars(50_000), u2bal.USD)
}

func TestScenario_PartialAndResidueRests(t *testing.T) {
	b := book.NewOrderBook()
	u1, u2 := uuid.New(), uuid.New()
	require.NoError(t, depositUSD(b, u1, 100_000))
	require.NoError(t, depositBTC(b, u2, 2))

	ask := order.NewLimit(u2, order.Sell, dollars(50_000), bitcoin(20))
	reserve(t, b, ask)
	_, err := matching.MatchLimit(b, ask)
	require.NoError(t, err)

	bid := order.NewLimit(u1, order.Buy, dollars(50_000), bitcoin(15))
	reserve(t, b, bid)
	res, err := matching.MatchLimit(b, bid)
	require.NoError(t, err)

	assert.Equal(t, matching.StatusMatched, res.Status)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, bitcoin(15), res.Trades[0].Quantity)

	_, asks := b.Depth(10)
	require.Len(t, asks, 1)
	assert.Equal(t, bitcoin(5), asks[0].Volume)

	u1bal := b.Balances.Snapshot(u1)
	assert.Equal(t, bitcoin(15), u1bal.BTC)
	assert.Equal(t, dollars(25_000), u1bal.USD)

	u2bal := b.Balances.Snapshot(u2)
	assert.Equal(t, fixedpoint.NewQuantity(0), u2bal.BTC)
	assert.Equal(t, dollars(75_000), u2bal.USD)
}

func TestScenario_NoLiquidity(t *testing.T) {
	b := book.NewOrderBook()
	u := uuid.New()
	require.NoError(t, depositUSD(b, u, 1000))

	res, err := matching.MatchMarket(b, order.NewMarket(u, order.Buy, bitcoin(10)))
	require.NoError(t, err)
	assert.Equal(t, matching.StatusNoLiquidity, res.Status)
	assert.Empty(t, res.Trades)
	assert.Equal(t, dollars(1000), b.Balances.Snapshot(u).USD)
}

func TestScenario_MarketHaltsOnInsufficientFunds(t *testing.T) {
	b := book.NewOrderBook()
	maker, taker := uuid.New(), uuid.New()
	require.NoError(t, depositBTC(b, maker, 1))
	require.NoError(t, depositUSD(b, taker, 100)) // far too little to cover any fill

	ask := order.NewLimit(maker, order.Sell, dollars(50_000), bitcoin(10))
	reserve(t, b, ask)
	_, err := matching.MatchLimit(b, ask)
	require.NoError(t, err)

	res, err := matching.MatchMarket(b, order.NewMarket(taker, order.Buy, bitcoin(10)))
	require.NoError(t, err)
	assert.Equal(t, matching.StatusPartial, res.Status)
	assert.Empty(t, res.Trades)
	assert.Equal(t, dollars(100), b.Balances.Snapshot(taker).USD)
}

func TestScenario_MarketSlippageSweepsMultipleLevels(t *testing.T) {
	b := book.NewOrderBook()
	maker, taker := uuid.New(), uuid.New()
	require.NoError(t, depositBTC(b, maker, 40))
	require.NoError(t, depositUSD(b, taker, 10_000))

	for _, leg := range []struct {
		price fixedpoint.Price
		qty   fixedpoint.Quantity
	}{
		{dollars(98), bitcoin(50)},
		{dollars(98), bitcoin(30)},
		{dollars(100), bitcoin(100)},
		{dollars(105), bitcoin(200)},
	} {
		o := order.NewLimit(maker, order.Sell, leg.price, leg.qty)
		reserve(t, b, o)
		_, err := matching.MatchLimit(b, o)
		require.NoError(t, err)
	}

	res, err := matching.MatchMarket(b, order.NewMarket(taker, order.Buy, bitcoin(150)))
	require.NoError(t, err)
	assert.Equal(t, matching.StatusFilled, res.Status)
	require.Len(t, res.Trades, 3)
	assert.Equal(t, dollars(98), res.Trades[0].Price)
	assert.Equal(t, bitcoin(50), res.Trades[0].Quantity)
	assert.Equal(t, dollars(98), res.Trades[1].Price)
	assert.Equal(t, bitcoin(30), res.Trades[1].Quantity)
	assert.Equal(t, dollars(100), res.Trades[2].Price)
	assert.Equal(t, bitcoin(70), res.Trades[2].Quantity)

	_, asks := b.Depth(10)
	require.Len(t, asks, 2)
	assert.Equal(t, dollars(100), asks[0].Price)
	assert.Equal(t, bitcoin(30), asks[0].Volume)
	assert.Equal(t, dollars(105), asks[1].Price)
	assert.Equal(t, bitcoin(200), asks[1].Volume)

	assert.Equal(t, bitcoin(150), b.Balances.Snapshot(taker).BTC)
}

func TestCancel_RestoresReservationExactly(t *testing.T) {
	b := book.NewOrderBook()
	u := uuid.New()
	require.NoError(t, depositUSD(b, u, 100_000))

	o := order.NewLimit(u, order.Buy, dollars(50_000), bitcoin(10))
	reserve(t, b, o)
	res, err := matching.MatchLimit(b, o)
	require.NoError(t, err)
	require.Equal(t, matching.StatusAddedToBook, res.Status)

	cancelled, err := b.Cancel(o.ID, u)
	require.NoError(t, err)
	refund, err := cancelled.LimitPrice.Mul(cancelled.Remaining)
	require.NoError(t, err)
	require.NoError(t, b.Balances.CreditUSD(u, refund))

	assert.Equal(t, dollars(100_000), b.Balances.Snapshot(u).USD)
}

func TestCancel_WrongOwnerLeavesReservationIntact(t *testing.T) {
	b := book.NewOrderBook()
	owner, other := uuid.New(), uuid.New()
	require.NoError(t, depositUSD(b, owner, 100_000))

	o := order.NewLimit(owner, order.Buy, dollars(50_000), bitcoin(1))
	reserve(t, b, o)
	_, err := matching.MatchLimit(b, o)
	require.NoError(t, err)

	_, err = b.Cancel(o.ID, other)
	assert.ErrorIs(t, err, bookerr.ErrNotOrderOwner)
	assert.Equal(t, dollars(95_000), b.Balances.Snapshot(owner).USD)
}

func depositUSD(b *book.OrderBook, user uuid.UUID, whole int64) error {
	_, err := b.Balances.AddFunds(user, balance.USD, whole*fixedpoint.PriceScale)
	return err
}

func depositBTC(b *book.OrderBook, user uuid.UUID, whole int64) error {
	_, err := b.Balances.AddFunds(user, balance.BTC, whole*fixedpoint.QuantityScale)
	return err
}
