package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayeeTransaction is a settled service transaction attributed to a payee.
// PayoutID stays null until the transaction is consumed by a completed payout,
// so deferred windows are re-included in the next calculation.
type PayeeTransaction struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PayeeID uuid.UUID `gorm:"column:payee_id;type:uuid;not null;index"`

	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	OccurredAt time.Time       `gorm:"column:occurred_at;not null;index"`
	Settled    bool            `gorm:"column:settled;not null;default:false"`
	PayoutID   *uuid.UUID      `gorm:"column:payout_id;type:uuid;index"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
