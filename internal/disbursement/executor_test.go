package disbursement

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/rail"
)

type fakeRail struct {
	eligible       bool
	eligibilityErr error

	transferResult *rail.TransferResult
	transferErr    error

	gotRequest       *rail.TransferRequest
	eligibilityCalls int
	transferCalls    int
}

func (f *fakeRail) SubmitTransfer(_ context.Context, req rail.TransferRequest) (*rail.TransferResult, error) {
	f.transferCalls++
	f.gotRequest = &req
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	return f.transferResult, nil
}

func (f *fakeRail) CheckAccountEligibility(context.Context, string) (bool, error) {
	f.eligibilityCalls++
	return f.eligible, f.eligibilityErr
}

func newExecutor(t *testing.T, r PaymentRail) *Executor {
	t.Helper()
	executor, err := NewExecutor(ExecutorParams{
		Rail:   r,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return executor
}

func testPayout() *models.ScheduledPayout {
	return &models.ScheduledPayout{
		ID:             uuid.New(),
		PayeeID:        uuid.New(),
		NetAmount:      decimal.RequireFromString("896.75"),
		Currency:       enums.CurrencyUSD,
		TransferMethod: enums.TransferMethodStandard,
		Status:         enums.PayoutStatusProcessing,
	}
}

func testFeeConfig() *models.PayeeFeeConfig {
	return &models.PayeeFeeConfig{AccountRef: "acct_001", IsActive: true}
}

func TestExecuteSuccessUsesPayoutIDAsIdempotencyKey(t *testing.T) {
	railFake := &fakeRail{
		eligible:       true,
		transferResult: &rail.TransferResult{ExternalRef: "tr_123"},
	}
	executor := newExecutor(t, railFake)
	payout := testPayout()

	result, err := executor.Execute(context.Background(), payout, testFeeConfig())
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "tr_123", result.ExternalRef)
	require.Equal(t, payout.ID.String(), railFake.gotRequest.IdempotencyKey)
	require.Equal(t, "896.75", railFake.gotRequest.Amount.StringFixed(2))
}

func TestExecuteMissingAccountIsTerminalWithoutSubmission(t *testing.T) {
	for name, cfg := range map[string]*models.PayeeFeeConfig{
		"nil config": nil,
		"empty ref":  {IsActive: true},
	} {
		t.Run(name, func(t *testing.T) {
			railFake := &fakeRail{}
			executor := newExecutor(t, railFake)

			result, err := executor.Execute(context.Background(), testPayout(), cfg)
			require.NoError(t, err)
			require.False(t, result.Success)
			require.Equal(t, ErrorCodeNoAccount, result.ErrorCode)
			require.False(t, result.RetryEligible)
			require.Zero(t, railFake.transferCalls)
			require.Zero(t, railFake.eligibilityCalls)
		})
	}
}

func TestExecuteIneligibleAccountIsTerminal(t *testing.T) {
	railFake := &fakeRail{eligible: false}
	executor := newExecutor(t, railFake)

	result, err := executor.Execute(context.Background(), testPayout(), testFeeConfig())
	require.NoError(t, err)
	require.Equal(t, ErrorCodeNoAccount, result.ErrorCode)
	require.False(t, result.RetryEligible)
	require.Zero(t, railFake.transferCalls)
}

func TestExecuteClassifiesRailErrors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      string
		wantRetryable bool
	}{
		{
			name:          "transient rail outage",
			err:           &rail.Error{Code: "http_503", Message: "unavailable", Retryable: true},
			wantCode:      "http_503",
			wantRetryable: true,
		},
		{
			name:          "permanent rejection",
			err:           &rail.Error{Code: "account_frozen", Message: "account frozen", Retryable: false},
			wantCode:      "account_frozen",
			wantRetryable: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			railFake := &fakeRail{eligible: true, transferErr: tt.err}
			executor := newExecutor(t, railFake)

			result, err := executor.Execute(context.Background(), testPayout(), testFeeConfig())
			require.NoError(t, err)
			require.False(t, result.Success)
			require.Equal(t, tt.wantCode, result.ErrorCode)
			require.Equal(t, tt.wantRetryable, result.RetryEligible)
		})
	}
}

func TestExecuteEligibilityProbeFailureIsRetryable(t *testing.T) {
	railFake := &fakeRail{
		eligibilityErr: &rail.Error{Code: "network_error", Message: "timeout", Retryable: true},
	}
	executor := newExecutor(t, railFake)

	result, err := executor.Execute(context.Background(), testPayout(), testFeeConfig())
	require.NoError(t, err)
	require.True(t, result.RetryEligible)
	require.Zero(t, railFake.transferCalls)
}
