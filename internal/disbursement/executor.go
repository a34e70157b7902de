package disbursement

import (
	"context"
	"errors"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/rail"
)

// ErrorCodeNoAccount marks a payee without a usable rail account. It is
// terminal and never consumes a retry slot.
const ErrorCodeNoAccount = "no_account_configured"

// PaymentRail is the consumer-side boundary to the external transfer system.
type PaymentRail interface {
	SubmitTransfer(ctx context.Context, req rail.TransferRequest) (*rail.TransferResult, error)
	CheckAccountEligibility(ctx context.Context, accountRef string) (bool, error)
}

// AttemptResult is the outcome of one disbursement attempt. RetryEligible
// distinguishes transient failures (worth a backoff retry) from permanent
// ones that should finalize immediately.
type AttemptResult struct {
	Success       bool
	ExternalRef   string
	ErrorCode     string
	ErrorMessage  string
	RetryEligible bool
}

// ExecutorParams groups dependencies for the executor.
type ExecutorParams struct {
	Rail   PaymentRail
	Logger *logger.Logger
}

// Executor submits payouts to the payment rail. The payout's own id is the
// idempotency key, so a retry of the same payout can never double-pay.
type Executor struct {
	rail   PaymentRail
	logger *logger.Logger
}

// NewExecutor builds a disbursement executor.
func NewExecutor(params ExecutorParams) (*Executor, error) {
	if params.Rail == nil {
		return nil, errors.New("payment rail required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Executor{rail: params.Rail, logger: params.Logger}, nil
}

// Execute runs the eligibility precheck and submits the transfer. It never
// mutates persistence; callers translate the AttemptResult into state
// transitions.
func (e *Executor) Execute(ctx context.Context, payout *models.ScheduledPayout, feeConfig *models.PayeeFeeConfig) (*AttemptResult, error) {
	ctx = e.logger.WithPayoutID(ctx, payout.ID.String())

	if feeConfig == nil || feeConfig.AccountRef == "" {
		return &AttemptResult{
			ErrorCode:    ErrorCodeNoAccount,
			ErrorMessage: "payee has no rail account configured",
		}, nil
	}

	eligible, err := e.rail.CheckAccountEligibility(ctx, feeConfig.AccountRef)
	if err != nil {
		// Eligibility probe failures are infrastructure trouble, not a
		// verdict on the account.
		return e.classify(ctx, err), nil
	}
	if !eligible {
		return &AttemptResult{
			ErrorCode:    ErrorCodeNoAccount,
			ErrorMessage: "rail account is not eligible to receive transfers",
		}, nil
	}

	result, err := e.rail.SubmitTransfer(ctx, rail.TransferRequest{
		IdempotencyKey: payout.ID.String(),
		AccountRef:     feeConfig.AccountRef,
		Amount:         payout.NetAmount,
		Currency:       payout.Currency,
		Method:         payout.TransferMethod,
	})
	if err != nil {
		return e.classify(ctx, err), nil
	}

	e.logger.Info(e.logger.WithField(ctx, "external_ref", result.ExternalRef), "transfer accepted by rail")
	return &AttemptResult{Success: true, ExternalRef: result.ExternalRef}, nil
}

// classify maps a rail failure onto an attempt outcome. Unknown error shapes
// are treated as retry-eligible so a transient outage cannot permanently
// fail a payout.
func (e *Executor) classify(ctx context.Context, err error) *AttemptResult {
	var railErr *rail.Error
	if errors.As(err, &railErr) {
		e.logger.Warn(e.logger.WithField(ctx, "rail_code", railErr.Code), "transfer attempt failed")
		return &AttemptResult{
			ErrorCode:     railErr.Code,
			ErrorMessage:  railErr.Message,
			RetryEligible: railErr.Retryable,
		}
	}

	e.logger.Error(ctx, "transfer attempt failed with unclassified error", err)
	return &AttemptResult{
		ErrorCode:     string(pkgerrors.CodeDependency),
		ErrorMessage:  err.Error(),
		RetryEligible: true,
	}
}
