package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/internal/commission"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

const (
	methodTieredVolume = "tiered_volume"
	methodOverrideRate = "override_rate"

	DeferredReasonNoTransactions = "no transactions in window"
	DeferredReasonBelowMinimum   = "net amount below payable minimum"
)

// TransactionReader is the transaction-history collaborator boundary.
type TransactionReader interface {
	ListCompletedUnpaid(ctx context.Context, payeeID uuid.UUID, start, end time.Time) ([]models.PayeeTransaction, error)
}

// FeeConfigReader loads payee-specific calculation inputs.
type FeeConfigReader interface {
	FindByPayee(ctx context.Context, payeeID uuid.UUID) (*models.PayeeFeeConfig, error)
}

// CalculationResult is the transient outcome of one payout calculation.
// Amounts are rounded to currency precision; a deferred result must not
// produce a ScheduledPayout and leaves the window unconsumed.
type CalculationResult struct {
	Gross            decimal.Decimal
	Commission       decimal.Decimal
	Deductions       decimal.Decimal
	PlatformFee      decimal.Decimal
	Net              decimal.Decimal
	TransactionCount int
	Method           string
	PeriodStart      time.Time
	PeriodEnd        time.Time
	Deferred         bool
	DeferredReason   string
}

// CalculationServiceParams groups dependencies for the calculation service.
type CalculationServiceParams struct {
	Transactions TransactionReader
	FeeConfigs   FeeConfigReader
	Commission   *commission.Calculator
	Fees         config.FeeConfig
}

// CalculationService turns a schedule's raw transaction history over a window
// into a net disbursable amount.
type CalculationService struct {
	transactions TransactionReader
	feeConfigs   FeeConfigReader
	commission   *commission.Calculator
	fees         config.FeeConfig
}

// NewCalculationService builds a calculation service.
func NewCalculationService(params CalculationServiceParams) (*CalculationService, error) {
	if params.Transactions == nil {
		return nil, errors.New("transaction reader required")
	}
	if params.FeeConfigs == nil {
		return nil, errors.New("fee config reader required")
	}
	if params.Commission == nil {
		return nil, errors.New("commission calculator required")
	}
	return &CalculationService{
		transactions: params.Transactions,
		feeConfigs:   params.FeeConfigs,
		commission:   params.Commission,
		fees:         params.Fees,
	}, nil
}

// Calculate computes the disbursable amount for the schedule's open window
// ending at now. It is pure with respect to its transaction-history input:
// nothing is marked consumed here.
func (s *CalculationService) Calculate(ctx context.Context, schedule *models.PayoutSchedule, now time.Time) (*CalculationResult, error) {
	windowStart := schedule.CreatedAt
	if schedule.LastPayoutAt != nil {
		windowStart = *schedule.LastPayoutAt
	}
	windowEnd := now.UTC()

	result := &CalculationResult{
		PeriodStart: windowStart.UTC(),
		PeriodEnd:   windowEnd,
	}

	transactions, err := s.transactions.ListCompletedUnpaid(ctx, schedule.PayeeID, result.PeriodStart, windowEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	if len(transactions) == 0 {
		result.Deferred = true
		result.DeferredReason = DeferredReasonNoTransactions
		return result, nil
	}

	gross := decimal.Zero
	for _, txn := range transactions {
		gross = gross.Add(txn.Amount)
	}
	result.TransactionCount = len(transactions)

	feeConfig, err := s.feeConfigs.FindByPayee(ctx, schedule.PayeeID)
	if err != nil {
		return nil, err
	}
	if feeConfig == nil || !feeConfig.IsActive || feeConfig.AccountRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "payee fee configuration missing or inactive")
	}

	result.Method = methodTieredVolume
	if feeConfig.OverrideRate != nil {
		result.Method = methodOverrideRate
	}
	commissionAmount, err := s.commission.Calculate(gross, result.TransactionCount, feeConfig.OverrideRate)
	if err != nil {
		return nil, err
	}

	platformFee := s.platformFee(schedule.TransferMethod, gross)
	net := commissionAmount.Sub(feeConfig.Deductions).Sub(platformFee)

	// Rounding happens once, at the final outputs.
	precision := schedule.Currency.MinorUnits()
	result.Gross = gross.Round(precision)
	result.Commission = commissionAmount.Round(precision)
	result.Deductions = feeConfig.Deductions.Round(precision)
	result.PlatformFee = platformFee.Round(precision)
	result.Net = net.Round(precision)

	if result.Net.LessThan(schedule.MinimumAmount) || !result.Net.IsPositive() {
		result.Deferred = true
		result.DeferredReason = DeferredReasonBelowMinimum
	}
	return result, nil
}

func (s *CalculationService) platformFee(method enums.TransferMethod, gross decimal.Decimal) decimal.Decimal {
	switch method {
	case enums.TransferMethodExpedited:
		return gross.Mul(s.fees.ExpeditedRate()).Add(s.fees.ExpeditedFixedAmount())
	default:
		return gross.Mul(s.fees.StandardRate()).Add(s.fees.StandardFixedAmount())
	}
}
