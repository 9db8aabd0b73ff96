// Package fixedpoint provides the deterministic, integer-backed scalar
// types used anywhere on the matching path. No floating-point value is
// ever allowed to touch a Price or a Quantity; conversion to and from
// decimal only happens at the boundary, via shopspring/decimal.
package fixedpoint

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/shopspring/decimal"
)

// PriceScale is the implicit decimal scale of a Price mantissa (10^6).
const PriceScale int64 = 1_000_000

// QuantityScale is the implicit decimal scale of a Quantity mantissa (10^8).
const QuantityScale int64 = 100_000_000

var (
	ErrOverflow       = fmt.Errorf("fixedpoint: overflow")
	ErrNotExact       = fmt.Errorf("fixedpoint: value does not fit the fixed scale exactly")
	ErrNegativeOrigin = fmt.Errorf("fixedpoint: value must be non-negative")
)

// Price is a fixed-point price, or quote-currency amount, at scale 10^6.
// The zero value is Price(0).
type Price int64

// Quantity is a fixed-point quantity, or base-currency amount, at scale
// 10^8. The zero value is Quantity(0).
type Quantity int64

// QuoteAmount is an amount of quote currency (USD). It shares Price's
// scale, since a USD balance and a USD-per-BTC price are the same
// fixed-point representation.
type QuoteAmount = Price

// BaseAmount is an amount of base currency (BTC). It shares Quantity's
// scale.
type BaseAmount = Quantity

// NewPrice constructs a Price directly from its mantissa.
func NewPrice(mantissa int64) Price { return Price(mantissa) }

// NewQuantity constructs a Quantity directly from its mantissa.
func NewQuantity(mantissa int64) Quantity { return Quantity(mantissa) }

// PriceFromDecimal converts a decimal value to a Price, failing if the
// value does not land exactly on the 10^6 grid or overflows int64.
func PriceFromDecimal(d decimal.Decimal) (Price, error) {
	m, err := mantissaFromDecimal(d, PriceScale)
	if err != nil {
		return 0, err
	}
	return Price(m), nil
}

// QuantityFromDecimal converts a decimal value to a Quantity, failing if
// the value does not land exactly on the 10^8 grid or overflows int64.
func QuantityFromDecimal(d decimal.Decimal) (Quantity, error) {
	m, err := mantissaFromDecimal(d, QuantityScale)
	if err != nil {
		return 0, err
	}
	return Quantity(m), nil
}

func mantissaFromDecimal(d decimal.Decimal, scale int64) (int64, error) {
	if d.IsNegative() {
		return 0, ErrNegativeOrigin
	}
	scaled := d.Mul(decimal.NewFromInt(scale))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrNotExact
	}
	big := scaled.BigInt()
	if !big.IsInt64() {
		return 0, ErrOverflow
	}
	return big.Int64(), nil
}

// Decimal converts a Price back to an exact decimal.Decimal. Only used
// at the external boundary (reporting, logging, config).
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p), 0).Shift(-6)
}

// Decimal converts a Quantity back to an exact decimal.Decimal.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(int64(q), 0).Shift(-8)
}

func (p Price) String() string    { return p.Decimal().String() }
func (q Quantity) String() string { return q.Decimal().String() }

// Mantissa returns the raw scaled integer backing a Price.
func (p Price) Mantissa() int64 { return int64(p) }

// Mantissa returns the raw scaled integer backing a Quantity.
func (q Quantity) Mantissa() int64 { return int64(q) }

// IsPositive reports whether the price is strictly greater than zero.
func (p Price) IsPositive() bool { return p > 0 }

// IsPositive reports whether the quantity is strictly greater than zero.
func (q Quantity) IsPositive() bool { return q > 0 }

// Add returns p+o, failing on int64 overflow.
func (p Price) Add(o Price) (Price, error) {
	sum, ok := checkedAdd(int64(p), int64(o))
	if !ok {
		return 0, ErrOverflow
	}
	return Price(sum), nil
}

// Sub returns p-o, failing on int64 underflow/overflow.
func (p Price) Sub(o Price) (Price, error) {
	diff, ok := checkedSub(int64(p), int64(o))
	if !ok {
		return 0, ErrOverflow
	}
	return Price(diff), nil
}

// Add returns q+o, failing on int64 overflow.
func (q Quantity) Add(o Quantity) (Quantity, error) {
	sum, ok := checkedAdd(int64(q), int64(o))
	if !ok {
		return 0, ErrOverflow
	}
	return Quantity(sum), nil
}

// Sub returns q-o, failing on int64 underflow/overflow.
func (q Quantity) Sub(o Quantity) (Quantity, error) {
	diff, ok := checkedSub(int64(q), int64(o))
	if !ok {
		return 0, ErrOverflow
	}
	return Quantity(diff), nil
}

// Mul multiplies a Price by a Quantity, producing a quote-currency
// QuoteAmount at Price's scale. The Quantity's scale is absorbed in the
// division, matching spec.md's "Price x Quantity producing a quote
// amount at scale 10^6" rule. Computed in 128-bit space so a realistic
// price/quantity pair can never silently wrap.
func (p Price) Mul(q Quantity) (QuoteAmount, error) {
	hi, lo := bits.Mul64(uint64(abs64(int64(p))), uint64(abs64(int64(q))))
	negative := (p < 0) != (q < 0)

	divisor := uint64(QuantityScale)
	if hi >= divisor {
		// Quotient would not fit in 64 bits.
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, divisor)
	if quo > uint64(math.MaxInt64) {
		return 0, ErrOverflow
	}
	result := int64(quo)
	if negative {
		result = -result
	}
	return Price(result), nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func checkedAdd(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func checkedSub(a, b int64) (int64, bool) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, false
	}
	return diff, true
}
