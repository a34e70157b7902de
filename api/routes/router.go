package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/payflow-backend/api/controllers"
	"github.com/angelmondragon/payflow-backend/api/middleware"
	"github.com/angelmondragon/payflow-backend/internal/health"
	payoutsvc "github.com/angelmondragon/payflow-backend/internal/payouts"
	schedulesvc "github.com/angelmondragon/payflow-backend/internal/schedules"
	"github.com/angelmondragon/payflow-backend/internal/scheduler"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

// NewRouter builds the public API surface: schedule management, payout
// reads and operator actions, and analytics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	scheduleService *schedulesvc.Service,
	payoutService *payoutsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/schedules", func(r chi.Router) {
		r.Post("/", controllers.CreateSchedule(scheduleService, logg))
		r.Get("/", controllers.ListSchedules(scheduleService, logg))
		r.Route("/{scheduleID}", func(r chi.Router) {
			r.Get("/", controllers.GetSchedule(scheduleService, logg))
			r.Patch("/", controllers.UpdateSchedule(scheduleService, logg))
			r.Post("/deactivate", controllers.DeactivateSchedule(scheduleService, logg))
			r.Post("/reactivate", controllers.ReactivateSchedule(scheduleService, logg))
			r.Post("/trigger", controllers.TriggerSchedule(scheduleService, logg))
			r.Get("/payouts", controllers.ListSchedulePayouts(payoutService, logg))
		})
	})

	r.Route("/api/v1/payouts", func(r chi.Router) {
		r.Get("/", controllers.ListPayouts(payoutService, logg))
		r.Route("/{payoutID}", func(r chi.Router) {
			r.Get("/", controllers.GetPayout(payoutService, logg))
			r.Post("/cancel", controllers.CancelPayout(payoutService, logg))
			r.Post("/retry", controllers.RetryPayout(payoutService, logg))
		})
	})

	r.Route("/api/v1/analytics", func(r chi.Router) {
		r.Get("/payouts", controllers.PayoutAnalytics(payoutService, logg))
	})

	return r
}

// NewWorkerRouter builds the status surface the payout worker serves
// alongside its processing loop: liveness, scheduler state, and metrics.
func NewWorkerRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	schedulerService *scheduler.Service,
	monitor *health.Monitor,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
		r.Get("/scheduler", controllers.SchedulerStatus(schedulerService, monitor, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
