// Package balance is the per-user balance ledger owned by the order
// book. It is the sole source of truth for available funds; reserved
// funds are represented, per spec.md S3/S9, as the absence of a
// deducted amount from "available" combined with the resting order
// that holds the claim -- there is no separate "reserved" field.
//
// Grounded in spirit on the account/ledger style seen in the wider
// retrieval pack (e.g. an Account with USDCBalance/LockedCollateral
// and a Validate invariant check), adapted to the two fixed
// currencies this engine supports.
package balance

import (
	"fmt"

	"fenrir/internal/bookerr"
	"fenrir/internal/fixedpoint"

	"github.com/google/uuid"
)

// Currency is one of the two assets this engine tracks balances for.
type Currency string

const (
	USD Currency = "USD"
	BTC Currency = "BTC"
)

func (c Currency) valid() bool { return c == USD || c == BTC }

// UserBalance holds one user's available funds in both currencies.
type UserBalance struct {
	User uuid.UUID
	USD  fixedpoint.QuoteAmount
	BTC  fixedpoint.BaseAmount
}

// Ledger is the per-user balance map owned by the order book. It is
// never shared across goroutines; the dispatcher is its sole mutator.
type Ledger struct {
	byUser map[uuid.UUID]*UserBalance
}

// New constructs an empty ledger.
func New() *Ledger {
	return &Ledger{byUser: make(map[uuid.UUID]*UserBalance)}
}

// GetOrCreate returns the user's balance record, creating a
// zero-balance one lazily on first reference.
func (l *Ledger) GetOrCreate(user uuid.UUID) *UserBalance {
	ub, ok := l.byUser[user]
	if !ok {
		ub = &UserBalance{User: user}
		l.byUser[user] = ub
	}
	return ub
}

// Snapshot returns a read-only copy of a user's balance, or a
// zero-balance snapshot if the user has never been referenced.
func (l *Ledger) Snapshot(user uuid.UUID) UserBalance {
	if ub, ok := l.byUser[user]; ok {
		return *ub
	}
	return UserBalance{User: user}
}

// HasSufficient reports whether the user's available balance in
// currency covers amount (given as a raw fixed-point mantissa in the
// currency's own scale).
func (l *Ledger) HasSufficient(user uuid.UUID, currency Currency, amountMantissa int64) (bool, error) {
	if !currency.valid() {
		return false, bookerr.ErrInvalidArguments
	}
	ub := l.GetOrCreate(user)
	switch currency {
	case USD:
		return ub.USD.Mantissa() >= amountMantissa, nil
	case BTC:
		return ub.BTC.Mantissa() >= amountMantissa, nil
	default:
		return false, bookerr.ErrInvalidArguments
	}
}

// DebitUSD atomically checks and deducts a USD amount from the user's
// available balance. It is the sole ledger operation that can fail.
func (l *Ledger) DebitUSD(user uuid.UUID, amount fixedpoint.QuoteAmount) error {
	ub := l.GetOrCreate(user)
	if ub.USD < amount {
		return bookerr.ErrInsufficientFunds
	}
	next, err := ub.USD.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", bookerr.ErrOverflow, err)
	}
	ub.USD = next
	return nil
}

// DebitBTC atomically checks and deducts a BTC amount from the user's
// available balance.
func (l *Ledger) DebitBTC(user uuid.UUID, amount fixedpoint.BaseAmount) error {
	ub := l.GetOrCreate(user)
	if ub.BTC < amount {
		return bookerr.ErrInsufficientFunds
	}
	next, err := ub.BTC.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", bookerr.ErrOverflow, err)
	}
	ub.BTC = next
	return nil
}

// CreditUSD adds to the user's available USD balance. Infallible save
// for fixed-point overflow, which would indicate a programmer error
// (an unbounded credit loop), not a user-facing failure.
func (l *Ledger) CreditUSD(user uuid.UUID, amount fixedpoint.QuoteAmount) error {
	ub := l.GetOrCreate(user)
	next, err := ub.USD.Add(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", bookerr.ErrOverflow, err)
	}
	ub.USD = next
	return nil
}

// CreditBTC adds to the user's available BTC balance.
func (l *Ledger) CreditBTC(user uuid.UUID, amount fixedpoint.BaseAmount) error {
	ub := l.GetOrCreate(user)
	next, err := ub.BTC.Add(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", bookerr.ErrOverflow, err)
	}
	ub.BTC = next
	return nil
}

// AddFunds is the deposit path used by the external "onramp" command
// (spec.md S6's AddFunds). It is an alias of credit, dispatched on the
// currency string carried by the command.
func (l *Ledger) AddFunds(user uuid.UUID, currency Currency, amountMantissa int64) (UserBalance, error) {
	switch currency {
	case USD:
		if err := l.CreditUSD(user, fixedpoint.NewPrice(amountMantissa)); err != nil {
			return UserBalance{}, err
		}
	case BTC:
		if err := l.CreditBTC(user, fixedpoint.NewQuantity(amountMantissa)); err != nil {
			return UserBalance{}, err
		}
	default:
		return UserBalance{}, bookerr.ErrInvalidArguments
	}
	return l.Snapshot(user), nil
}
