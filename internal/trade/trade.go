// Package trade defines the Trade record emitted by the matching
// engine. Grounded on the teacher's internal/common/trade.go, split
// into maker/taker order+user fields per spec.md S3's Trade row.
package trade

import (
	"fmt"
	"time"

	"fenrir/internal/fixedpoint"
	"fenrir/internal/order"

	"github.com/google/uuid"
)

// ID uniquely identifies a trade.
type ID uuid.UUID

func (id ID) String() string { return uuid.UUID(id).String() }

// NewID mints a fresh trade id.
func NewID() ID { return ID(uuid.New()) }

// Trade records one execution between a resting maker order and an
// aggressing taker order. Trades are not retained by the book; they
// are returned in command responses only.
type Trade struct {
	ID         ID
	MakerOrder order.ID
	TakerOrder order.ID
	MakerUser  uuid.UUID
	TakerUser  uuid.UUID
	Price      fixedpoint.Price
	Quantity   fixedpoint.Quantity
	Timestamp  time.Time
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{id=%s maker=%s taker=%s price=%s qty=%s ts=%s}",
		t.ID, t.MakerOrder, t.TakerOrder, t.Price, t.Quantity, t.Timestamp.Format(time.RFC3339Nano),
	)
}
