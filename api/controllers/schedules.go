package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/api/responses"
	"github.com/angelmondragon/payflow-backend/api/validators"
	"github.com/angelmondragon/payflow-backend/internal/schedules"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/pagination"
)

type createScheduleRequest struct {
	PayeeID              string  `json:"payee_id" validate:"required,uuid"`
	Frequency            string  `json:"frequency" validate:"required,oneof=weekly monthly custom"`
	DayOfWeek            *int    `json:"day_of_week,omitempty"`
	DayOfMonth           *int    `json:"day_of_month,omitempty"`
	IntervalDays         *int    `json:"interval_days,omitempty"`
	MinuteOfDay          int     `json:"minute_of_day" validate:"min=0,max=1439"`
	MinimumAmount        string  `json:"minimum_amount,omitempty"`
	Currency             string  `json:"currency,omitempty"`
	AutoDisburse         *bool   `json:"auto_disburse,omitempty"`
	TransferMethod       string  `json:"transfer_method,omitempty"`
	BackupTransferMethod *string `json:"backup_transfer_method,omitempty"`
	NotifyEmail          *bool   `json:"notify_email,omitempty"`
	NotifySMS            *bool   `json:"notify_sms,omitempty"`
	AdvanceNoticeDays    int     `json:"advance_notice_days" validate:"min=0,max=7"`
}

// CreateSchedule registers a new payout schedule for a payee.
func CreateSchedule(svc *schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createScheduleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payeeID, err := validators.ParsePathUUID(req.PayeeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := schedules.CreateInput{
			PayeeID:           payeeID,
			Frequency:         enums.PayoutFrequency(req.Frequency),
			DayOfWeek:         req.DayOfWeek,
			DayOfMonth:        req.DayOfMonth,
			IntervalDays:      req.IntervalDays,
			MinuteOfDay:       req.MinuteOfDay,
			MinimumAmount:     decimal.Zero,
			Currency:          enums.CurrencyUSD,
			AutoDisburse:      true,
			TransferMethod:    enums.TransferMethodStandard,
			NotifyEmail:       true,
			AdvanceNoticeDays: req.AdvanceNoticeDays,
		}
		if req.MinimumAmount != "" {
			minimum, err := decimal.NewFromString(req.MinimumAmount)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid minimum amount"))
				return
			}
			input.MinimumAmount = minimum
		}
		if req.Currency != "" {
			input.Currency = enums.Currency(strings.ToUpper(req.Currency))
		}
		if req.AutoDisburse != nil {
			input.AutoDisburse = *req.AutoDisburse
		}
		if req.TransferMethod != "" {
			input.TransferMethod = enums.TransferMethod(req.TransferMethod)
		}
		if req.BackupTransferMethod != nil {
			method := enums.TransferMethod(*req.BackupTransferMethod)
			input.BackupTransferMethod = &method
		}
		if req.NotifyEmail != nil {
			input.NotifyEmail = *req.NotifyEmail
		}
		if req.NotifySMS != nil {
			input.NotifySMS = *req.NotifySMS
		}

		schedule, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, schedule)
	}
}

type updateScheduleRequest struct {
	Frequency            *string `json:"frequency,omitempty" validate:"omitempty,oneof=weekly monthly custom"`
	DayOfWeek            *int    `json:"day_of_week,omitempty"`
	DayOfMonth           *int    `json:"day_of_month,omitempty"`
	IntervalDays         *int    `json:"interval_days,omitempty"`
	MinuteOfDay          *int    `json:"minute_of_day,omitempty" validate:"omitempty,min=0,max=1439"`
	MinimumAmount        *string `json:"minimum_amount,omitempty"`
	AutoDisburse         *bool   `json:"auto_disburse,omitempty"`
	TransferMethod       *string `json:"transfer_method,omitempty"`
	BackupTransferMethod *string `json:"backup_transfer_method,omitempty"`
	NotifyEmail          *bool   `json:"notify_email,omitempty"`
	NotifySMS            *bool   `json:"notify_sms,omitempty"`
	AdvanceNoticeDays    *int    `json:"advance_notice_days,omitempty" validate:"omitempty,min=0,max=7"`
}

// UpdateSchedule applies partial changes to an existing schedule.
func UpdateSchedule(svc *schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "scheduleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateScheduleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := schedules.UpdateInput{
			DayOfWeek:         req.DayOfWeek,
			DayOfMonth:        req.DayOfMonth,
			IntervalDays:      req.IntervalDays,
			MinuteOfDay:       req.MinuteOfDay,
			AutoDisburse:      req.AutoDisburse,
			NotifyEmail:       req.NotifyEmail,
			NotifySMS:         req.NotifySMS,
			AdvanceNoticeDays: req.AdvanceNoticeDays,
		}
		if req.Frequency != nil {
			frequency := enums.PayoutFrequency(*req.Frequency)
			input.Frequency = &frequency
		}
		if req.MinimumAmount != nil {
			minimum, err := decimal.NewFromString(*req.MinimumAmount)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid minimum amount"))
				return
			}
			input.MinimumAmount = &minimum
		}
		if req.TransferMethod != nil {
			method := enums.TransferMethod(*req.TransferMethod)
			input.TransferMethod = &method
		}
		if req.BackupTransferMethod != nil {
			method := enums.TransferMethod(*req.BackupTransferMethod)
			input.BackupTransferMethod = &method
		}

		schedule, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, schedule)
	}
}

// GetSchedule returns a single schedule.
func GetSchedule(svc *schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "scheduleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		schedule, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, schedule)
	}
}

// ListSchedules pages through a payee's schedules.
func ListSchedules(svc *schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payeeID, err := validators.ParseQueryUUID(r, "payee_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByPayee(r.Context(), payeeID, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"items":       page.Items,
			"next_cursor": page.NextCursor,
		})
	}
}

// DeactivateSchedule soft-disables a schedule.
func DeactivateSchedule(svc *schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "scheduleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// ReactivateSchedule re-enables a schedule with a fresh trigger time.
func ReactivateSchedule(svc *schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "scheduleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		schedule, err := svc.Reactivate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, schedule)
	}
}

// TriggerSchedule marks a schedule due for the next tick.
func TriggerSchedule(svc *schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "scheduleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.TriggerNow(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "queued"})
	}
}
