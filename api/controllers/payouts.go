package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/payflow-backend/api/responses"
	"github.com/angelmondragon/payflow-backend/api/validators"
	"github.com/angelmondragon/payflow-backend/internal/payouts"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/pagination"
)

// GetPayout returns a single payout record.
func GetPayout(svc *payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "payoutID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payout, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// ListPayouts pages through a payee's payout history.
func ListPayouts(svc *payouts.Service, logg *logger.Logger) http.HandlerFunc {
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

// ListSchedulePayouts pages through payouts produced by a single schedule.
func ListSchedulePayouts(svc *payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheduleID, err := validators.ParsePathUUID(chi.URLParam(r, "scheduleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListBySchedule(r.Context(), scheduleID, r.URL.Query().Get("cursor"), limit)
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

type cancelPayoutRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// CancelPayout stops a pending or failed payout before disbursement.
func CancelPayout(svc *payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "payoutID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelPayoutRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		payout, err := svc.Cancel(r.Context(), id, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// RetryPayout re-queues a permanently failed payout. Operator action.
func RetryPayout(svc *payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "payoutID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payout, err := svc.RetryFinal(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, payout)
	}
}

// PayoutAnalytics summarizes payout outcomes over a reporting window.
// Defaults to the last 30 days.
func PayoutAnalytics(svc *payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		start, err := validators.ParseQueryTime(r, "start", now.AddDate(0, 0, -30))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		end, err := validators.ParseQueryTime(r, "end", now)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Analytics(r.Context(), start, end)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
