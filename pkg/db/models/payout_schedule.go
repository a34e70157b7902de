package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// PayoutSchedule is a payee's standing disbursement configuration.
//
// Exactly one anchor column is populated for the configured frequency:
// day_of_week for weekly, day_of_month for monthly, interval_days for custom.
type PayoutSchedule struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PayeeID uuid.UUID `gorm:"column:payee_id;type:uuid;not null;index"`

	Frequency    enums.PayoutFrequency `gorm:"column:frequency;type:payout_frequency;not null"`
	DayOfWeek    *int                  `gorm:"column:day_of_week"`
	DayOfMonth   *int                  `gorm:"column:day_of_month"`
	IntervalDays *int                  `gorm:"column:interval_days"`
	MinuteOfDay  int                   `gorm:"column:minute_of_day;not null;default:0"`

	MinimumAmount        decimal.Decimal       `gorm:"column:minimum_amount;type:numeric(12,2);not null;default:0"`
	Currency             enums.Currency        `gorm:"column:currency;not null;default:'USD'"`
	AutoDisburse         bool                  `gorm:"column:auto_disburse;not null;default:true"`
	TransferMethod       enums.TransferMethod  `gorm:"column:transfer_method;type:transfer_method;not null;default:'standard'"`
	BackupTransferMethod *enums.TransferMethod `gorm:"column:backup_transfer_method;type:transfer_method"`

	NotifyEmail       bool `gorm:"column:notify_email;not null;default:true"`
	NotifySMS         bool `gorm:"column:notify_sms;not null;default:false"`
	AdvanceNoticeDays int  `gorm:"column:advance_notice_days;not null;default:0"`

	LastPayoutAt     *time.Time      `gorm:"column:last_payout_at"`
	NextPayoutAt     *time.Time      `gorm:"column:next_payout_at;index"`
	TotalPayoutsSent int64           `gorm:"column:total_payouts_sent;not null;default:0"`
	TotalAmountPaid  decimal.Decimal `gorm:"column:total_amount_paid;type:numeric(14,2);not null;default:0"`
	IsActive         bool            `gorm:"column:is_active;not null;default:true;index"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// NotificationsEnabled reports whether the payee opted into at least one
// delivery channel.
func (s *PayoutSchedule) NotificationsEnabled() bool {
	return s.NotifyEmail || s.NotifySMS
}
