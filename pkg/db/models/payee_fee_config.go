package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayeeFeeConfig carries payee-specific calculation inputs: an optional
// commission override rate that supersedes the tiered table, standing
// deductions (equipment rental, advances), and the rail account reference.
// A missing or inactive row is a terminal configuration error for the payee.
type PayeeFeeConfig struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PayeeID uuid.UUID `gorm:"column:payee_id;type:uuid;not null;uniqueIndex"`

	OverrideRate *decimal.Decimal `gorm:"column:override_rate;type:numeric(6,4)"`
	Deductions   decimal.Decimal  `gorm:"column:deductions;type:numeric(12,2);not null;default:0"`
	AccountRef   string           `gorm:"column:account_ref;not null"`
	IsActive     bool             `gorm:"column:is_active;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
