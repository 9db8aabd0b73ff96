// Package bookerr collects the sentinel errors the core can return.
// These are the concrete forms of the abstract error kinds from
// spec.md: InsufficientFunds, UnknownOrder, NotOrderOwner,
// InvalidArguments, and Overflow. NoLiquidity is deliberately absent —
// it is a status on a Response, never an error (spec.md S4.6.2).
package bookerr

import "errors"

var (
	// ErrInsufficientFunds is returned when a reservation or an
	// incremental market-order debit cannot be covered by available
	// balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnknownOrder is returned when a command references an order
	// id that is not currently resting in the book.
	ErrUnknownOrder = errors.New("unknown order")

	// ErrNotOrderOwner is returned when a cancel is requested by a
	// user who did not place the order.
	ErrNotOrderOwner = errors.New("not authorized")

	// ErrInvalidArguments is returned for non-positive price/quantity
	// or an unsupported currency string.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrOverflow surfaces a fixed-point overflow detected on the
	// matching path.
	ErrOverflow = errors.New("overflow")
)
