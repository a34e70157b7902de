package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// ScheduledPayout is one concrete disbursement attempt lineage for a schedule
// and a transaction window. Terminal rows are never deleted; they form the
// financial audit trail.
type ScheduledPayout struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ScheduleID uuid.UUID `gorm:"column:schedule_id;type:uuid;not null;index"`
	PayeeID    uuid.UUID `gorm:"column:payee_id;type:uuid;not null;index"`

	GrossAmount decimal.Decimal `gorm:"column:gross_amount;type:numeric(12,2);not null"`
	PlatformFee decimal.Decimal `gorm:"column:platform_fee;type:numeric(12,2);not null"`
	NetAmount   decimal.Decimal `gorm:"column:net_amount;type:numeric(12,2);not null"`
	Currency    enums.Currency  `gorm:"column:currency;not null;default:'USD'"`

	// Half-open transaction window [period_start, period_end) the amounts
	// were computed over.
	PeriodStart time.Time `gorm:"column:period_start;not null"`
	PeriodEnd   time.Time `gorm:"column:period_end;not null"`

	Status         enums.PayoutStatus   `gorm:"column:status;type:payout_status;not null;default:'pending';index"`
	TransferMethod enums.TransferMethod `gorm:"column:transfer_method;type:transfer_method;not null"`
	ExternalRef    *string              `gorm:"column:external_ref"`
	FailureReason  *string              `gorm:"column:failure_reason"`

	RetryCount  int        `gorm:"column:retry_count;not null;default:0"`
	MaxRetries  int        `gorm:"column:max_retries;not null;default:3"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at;index"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
