package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/payflow-backend/api/responses"
	"github.com/angelmondragon/payflow-backend/internal/health"
	"github.com/angelmondragon/payflow-backend/internal/scheduler"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

// Pinger reports dependency reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PayFlow-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PayFlow-Env", cfg.App.Env)

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unreachable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

// SchedulerStatus exposes the engine's recent activity and any active
// pipeline alerts for operators.
func SchedulerStatus(svc *scheduler.Service, monitor *health.Monitor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scheduler unavailable"))
			return
		}

		payload := map[string]any{"scheduler": svc.State()}
		if monitor != nil {
			payload["alerts"] = monitor.ActiveAlerts()
		}
		responses.WriteSuccess(w, payload)
	}
}
