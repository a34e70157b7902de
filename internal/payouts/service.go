package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/pagination"
)

// PayoutStore is the persistence surface the admin service needs.
type PayoutStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ScheduledPayout, error)
	ListByPayee(ctx context.Context, payeeID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ScheduledPayout, error)
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ScheduledPayout, error)
	UpdateWhereStatus(ctx context.Context, id uuid.UUID, fromStatus enums.PayoutStatus, updates map[string]any) error
	Aggregate(ctx context.Context, start, end time.Time) (*AnalyticsRow, error)
	FailureBreakdown(ctx context.Context, start, end time.Time) (map[string]int64, error)
}

// ServiceParams groups dependencies for the payout admin service.
type ServiceParams struct {
	Payouts PayoutStore
	Logger  *logger.Logger
	Now     func() time.Time
}

// Service exposes read and operator actions over payout records.
type Service struct {
	payouts PayoutStore
	logger  *logger.Logger
	now     func() time.Time
}

// NewService builds the payout admin service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Payouts == nil {
		return nil, errors.New("payout store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Service{payouts: params.Payouts, logger: params.Logger, now: params.Now}, nil
}

// Get returns a single payout by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.ScheduledPayout, error) {
	return s.payouts.FindByID(ctx, id)
}

// Page is one page of payout history plus the cursor for the next page.
type Page struct {
	Items      []models.ScheduledPayout
	NextCursor string
}

// ListByPayee pages through a payee's payout history, newest first.
func (s *Service) ListByPayee(ctx context.Context, payeeID uuid.UUID, cursorToken string, limit int) (*Page, error) {
	cursor, err := pagination.ParseCursor(cursorToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	items, err := s.payouts.ListByPayee(ctx, payeeID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return buildPage(items, limit), nil
}

// ListBySchedule pages through a schedule's payout history, newest first.
func (s *Service) ListBySchedule(ctx context.Context, scheduleID uuid.UUID, cursorToken string, limit int) (*Page, error) {
	cursor, err := pagination.ParseCursor(cursorToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	items, err := s.payouts.ListBySchedule(ctx, scheduleID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return buildPage(items, limit), nil
}

func buildPage(items []models.ScheduledPayout, limit int) *Page {
	normalized := pagination.NormalizeLimit(limit)
	page := &Page{Items: items}
	if len(items) > normalized {
		page.Items = items[:normalized]
		last := page.Items[len(page.Items)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page
}

// Cancel stops a payout before disbursement. Only pending and failed payouts
// are cancelable; a payout mid-submission or in a terminal state is not.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.ScheduledPayout, error) {
	payout, err := s.payouts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !payout.Status.IsCancelable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout cannot be canceled in status "+payout.Status.String())
	}

	updates := map[string]any{
		"status":        enums.PayoutStatusCanceled,
		"next_retry_at": nil,
	}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	if err := s.payouts.UpdateWhereStatus(ctx, id, payout.Status, updates); err != nil {
		return nil, err
	}

	ctx = s.logger.WithPayoutID(ctx, id.String())
	s.logger.Info(s.logger.WithField(ctx, "from", payout.Status.String()), "payout canceled")
	return s.payouts.FindByID(ctx, id)
}

// RetryFinal re-queues a payout that exhausted its retries. The retry count
// resets and the frozen amounts are kept; the next retry sweep picks it up.
func (s *Service) RetryFinal(ctx context.Context, id uuid.UUID) (*models.ScheduledPayout, error) {
	payout, err := s.payouts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payout.Status != enums.PayoutStatusFailedFinal {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only failed_final payouts can be manually retried")
	}

	now := s.now().UTC()
	err = s.payouts.UpdateWhereStatus(ctx, id, enums.PayoutStatusFailedFinal, map[string]any{
		"status":        enums.PayoutStatusFailed,
		"retry_count":   0,
		"next_retry_at": now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithPayoutID(ctx, id.String()), "payout re-queued by operator")
	return s.payouts.FindByID(ctx, id)
}

// AnalyticsReport summarizes payout outcomes over a reporting window.
type AnalyticsReport struct {
	WindowStart      time.Time        `json:"window_start"`
	WindowEnd        time.Time        `json:"window_end"`
	TotalPayouts     int64            `json:"total_payouts"`
	CompletedPayouts int64            `json:"completed_payouts"`
	FailedPayouts    int64            `json:"failed_payouts"`
	SuccessRate      float64          `json:"success_rate"`
	TotalPaid        decimal.Decimal  `json:"total_paid"`
	TotalFees        decimal.Decimal  `json:"total_fees"`
	FailureBreakdown map[string]int64 `json:"failure_breakdown"`
}

// Analytics aggregates payout outcomes between start and end. The success
// rate counts only terminal outcomes; in-flight payouts do not dilute it.
func (s *Service) Analytics(ctx context.Context, start, end time.Time) (*AnalyticsReport, error) {
	if !end.After(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "analytics window end must be after start")
	}

	row, err := s.payouts.Aggregate(ctx, start, end)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.payouts.FailureBreakdown(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := &AnalyticsReport{
		WindowStart:      start,
		WindowEnd:        end,
		TotalPayouts:     row.TotalPayouts,
		CompletedPayouts: row.CompletedPayouts,
		FailedPayouts:    row.FailedPayouts,
		TotalPaid:        row.TotalPaid,
		TotalFees:        row.TotalFees,
		FailureBreakdown: breakdown,
	}
	if terminal := row.CompletedPayouts + row.FailedPayouts; terminal > 0 {
		report.SuccessRate = float64(row.CompletedPayouts) / float64(terminal)
	}
	return report, nil
}
