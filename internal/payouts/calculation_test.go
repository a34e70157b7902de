package payouts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payflow-backend/internal/commission"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

type fakeTransactionReader struct {
	transactions []models.PayeeTransaction
	err          error

	gotStart time.Time
	gotEnd   time.Time
}

func (f *fakeTransactionReader) ListCompletedUnpaid(_ context.Context, _ uuid.UUID, start, end time.Time) ([]models.PayeeTransaction, error) {
	f.gotStart, f.gotEnd = start, end
	return f.transactions, f.err
}

type fakeFeeConfigReader struct {
	cfg *models.PayeeFeeConfig
	err error
}

func (f *fakeFeeConfigReader) FindByPayee(context.Context, uuid.UUID) (*models.PayeeFeeConfig, error) {
	return f.cfg, f.err
}

func testFeeSettings() config.FeeConfig {
	return config.FeeConfig{
		StandardPercent:  "0.25",
		StandardFixed:    "0.25",
		ExpeditedPercent: "1.0",
		ExpeditedFixed:   "0.25",
	}
}

func testCommission(t *testing.T) *commission.Calculator {
	t.Helper()
	calc, err := commission.NewCalculator(config.CommissionConfig{
		BaseRate:        "0.70",
		BonusRate:       "0.05",
		VolumeThreshold: 10,
	})
	require.NoError(t, err)
	return calc
}

func transactionsOf(payeeID uuid.UUID, amount string, count int, occurredAt time.Time) []models.PayeeTransaction {
	out := make([]models.PayeeTransaction, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, models.PayeeTransaction{
			ID:         uuid.New(),
			PayeeID:    payeeID,
			Amount:     decimal.RequireFromString(amount),
			OccurredAt: occurredAt,
			Settled:    true,
		})
	}
	return out
}

func newCalculationService(t *testing.T, txns TransactionReader, fees FeeConfigReader) *CalculationService {
	t.Helper()
	svc, err := NewCalculationService(CalculationServiceParams{
		Transactions: txns,
		FeeConfigs:   fees,
		Commission:   testCommission(t),
		Fees:         testFeeSettings(),
	})
	require.NoError(t, err)
	return svc
}

func TestCalculateHighVolumeStandardTransfer(t *testing.T) {
	payeeID := uuid.New()
	now := time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC)
	lastPayout := now.AddDate(0, 0, -7)

	reader := &fakeTransactionReader{
		transactions: transactionsOf(payeeID, "100.00", 12, now.AddDate(0, 0, -2)),
	}
	feeConfigs := &fakeFeeConfigReader{cfg: &models.PayeeFeeConfig{
		PayeeID:    payeeID,
		Deductions: decimal.Zero,
		AccountRef: "acct_001",
		IsActive:   true,
	}}
	svc := newCalculationService(t, reader, feeConfigs)

	schedule := &models.PayoutSchedule{
		PayeeID:        payeeID,
		Currency:       enums.CurrencyUSD,
		TransferMethod: enums.TransferMethodStandard,
		MinimumAmount:  decimal.RequireFromString("50.00"),
		LastPayoutAt:   &lastPayout,
	}

	result, err := svc.Calculate(context.Background(), schedule, now)
	require.NoError(t, err)
	require.False(t, result.Deferred)

	// 12 transactions puts the payee in the bonus tier: 75% of $1200.
	require.Equal(t, "1200.00", result.Gross.StringFixed(2))
	require.Equal(t, "900.00", result.Commission.StringFixed(2))
	require.Equal(t, "3.25", result.PlatformFee.StringFixed(2))
	require.Equal(t, "896.75", result.Net.StringFixed(2))
	require.Equal(t, 12, result.TransactionCount)
	require.Equal(t, "tiered_volume", result.Method)
	require.Equal(t, lastPayout.UTC(), result.PeriodStart)
	require.Equal(t, now, result.PeriodEnd)
	require.Equal(t, lastPayout.UTC(), reader.gotStart)
}

func TestCalculateBelowMinimumDefers(t *testing.T) {
	payeeID := uuid.New()
	now := time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC)
	lastPayout := now.AddDate(0, 0, -7)

	reader := &fakeTransactionReader{
		transactions: transactionsOf(payeeID, "100.00", 3, now.AddDate(0, 0, -1)),
	}
	deductions := decimal.RequireFromString("165.00")
	feeConfigs := &fakeFeeConfigReader{cfg: &models.PayeeFeeConfig{
		PayeeID:    payeeID,
		Deductions: deductions,
		AccountRef: "acct_001",
		IsActive:   true,
	}}
	svc := newCalculationService(t, reader, feeConfigs)

	schedule := &models.PayoutSchedule{
		PayeeID:        payeeID,
		Currency:       enums.CurrencyUSD,
		TransferMethod: enums.TransferMethodStandard,
		MinimumAmount:  decimal.RequireFromString("50.00"),
		LastPayoutAt:   &lastPayout,
	}

	result, err := svc.Calculate(context.Background(), schedule, now)
	require.NoError(t, err)

	// $300 at 70% is $210, minus $165 deductions and a $1.00 fee leaves
	// $44.00, under the $50 minimum. Deferred, never a zero payout.
	require.True(t, result.Deferred)
	require.Equal(t, DeferredReasonBelowMinimum, result.DeferredReason)
	require.Equal(t, "300.00", result.Gross.StringFixed(2))
	require.Equal(t, "44.00", result.Net.StringFixed(2))
	require.Equal(t, 3, result.TransactionCount)
}

func TestCalculateEmptyWindowDefers(t *testing.T) {
	payeeID := uuid.New()
	now := time.Now().UTC()

	svc := newCalculationService(t, &fakeTransactionReader{}, &fakeFeeConfigReader{})

	schedule := &models.PayoutSchedule{PayeeID: payeeID, Currency: enums.CurrencyUSD}
	result, err := svc.Calculate(context.Background(), schedule, now)
	require.NoError(t, err)
	require.True(t, result.Deferred)
	require.Equal(t, DeferredReasonNoTransactions, result.DeferredReason)
	require.Zero(t, result.TransactionCount)
}

func TestCalculateOverrideRateSupersedesTiers(t *testing.T) {
	payeeID := uuid.New()
	now := time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC)
	lastPayout := now.AddDate(0, 0, -7)

	override := decimal.RequireFromString("0.80")
	reader := &fakeTransactionReader{
		transactions: transactionsOf(payeeID, "100.00", 12, now.AddDate(0, 0, -2)),
	}
	feeConfigs := &fakeFeeConfigReader{cfg: &models.PayeeFeeConfig{
		PayeeID:      payeeID,
		OverrideRate: &override,
		Deductions:   decimal.Zero,
		AccountRef:   "acct_001",
		IsActive:     true,
	}}
	svc := newCalculationService(t, reader, feeConfigs)

	schedule := &models.PayoutSchedule{
		PayeeID:        payeeID,
		Currency:       enums.CurrencyUSD,
		TransferMethod: enums.TransferMethodStandard,
		LastPayoutAt:   &lastPayout,
	}

	result, err := svc.Calculate(context.Background(), schedule, now)
	require.NoError(t, err)
	require.Equal(t, "960.00", result.Commission.StringFixed(2))
	require.Equal(t, "override_rate", result.Method)
}

func TestCalculateExpeditedFee(t *testing.T) {
	payeeID := uuid.New()
	now := time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC)
	lastPayout := now.AddDate(0, 0, -7)

	reader := &fakeTransactionReader{
		transactions: transactionsOf(payeeID, "100.00", 12, now.AddDate(0, 0, -2)),
	}
	feeConfigs := &fakeFeeConfigReader{cfg: &models.PayeeFeeConfig{
		PayeeID:    payeeID,
		Deductions: decimal.Zero,
		AccountRef: "acct_001",
		IsActive:   true,
	}}
	svc := newCalculationService(t, reader, feeConfigs)

	schedule := &models.PayoutSchedule{
		PayeeID:        payeeID,
		Currency:       enums.CurrencyUSD,
		TransferMethod: enums.TransferMethodExpedited,
		LastPayoutAt:   &lastPayout,
	}

	result, err := svc.Calculate(context.Background(), schedule, now)
	require.NoError(t, err)

	// 1% of $1200 plus $0.25 fixed.
	require.Equal(t, "12.25", result.PlatformFee.StringFixed(2))
	require.Equal(t, "887.75", result.Net.StringFixed(2))
}

func TestCalculateMissingFeeConfigIsTerminal(t *testing.T) {
	payeeID := uuid.New()
	now := time.Now().UTC()

	reader := &fakeTransactionReader{
		transactions: transactionsOf(payeeID, "100.00", 1, now.Add(-time.Hour)),
	}

	for name, cfg := range map[string]*models.PayeeFeeConfig{
		"missing":    nil,
		"inactive":   {PayeeID: payeeID, AccountRef: "acct_001", IsActive: false},
		"no account": {PayeeID: payeeID, IsActive: true},
	} {
		t.Run(name, func(t *testing.T) {
			svc := newCalculationService(t, reader, &fakeFeeConfigReader{cfg: cfg})
			schedule := &models.PayoutSchedule{PayeeID: payeeID, Currency: enums.CurrencyUSD}

			_, err := svc.Calculate(context.Background(), schedule, now)
			require.Error(t, err)
			var appErr *pkgerrors.Error
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, pkgerrors.CodeConfiguration, appErr.Code())
		})
	}
}
