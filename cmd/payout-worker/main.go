package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/payflow-backend/api/controllers"
	"github.com/angelmondragon/payflow-backend/api/routes"
	"github.com/angelmondragon/payflow-backend/internal/commission"
	"github.com/angelmondragon/payflow-backend/internal/disbursement"
	"github.com/angelmondragon/payflow-backend/internal/health"
	"github.com/angelmondragon/payflow-backend/internal/notifier"
	"github.com/angelmondragon/payflow-backend/internal/payouts"
	"github.com/angelmondragon/payflow-backend/internal/retrier"
	"github.com/angelmondragon/payflow-backend/internal/scheduler"
	"github.com/angelmondragon/payflow-backend/internal/schedules"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/db"
	"github.com/angelmondragon/payflow-backend/pkg/instance"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
	"github.com/angelmondragon/payflow-backend/pkg/migrate"
	"github.com/angelmondragon/payflow-backend/pkg/rail"
	"github.com/angelmondragon/payflow-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "payout-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "payout-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	railClient, err := rail.NewClient(context.Background(), cfg.Rail, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment rail client", err)
		os.Exit(1)
	}

	payoutMetrics := metrics.NewPayoutMetrics(prometheus.DefaultRegisterer)
	monitor := health.NewMonitor(cfg.Health, payoutMetrics, logg)
	sink := notifier.NewLogSink(logg)

	payoutRepo := payouts.NewRepository(dbClient.DB())
	scheduleRepo := schedules.NewRepository(dbClient.DB())
	feeConfigRepo := payouts.NewFeeConfigRepository(dbClient.DB())

	commissionCalc, err := commission.NewCalculator(cfg.Commission)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission calculator", err)
		os.Exit(1)
	}

	calcService, err := payouts.NewCalculationService(payouts.CalculationServiceParams{
		Transactions: payouts.NewTransactionRepository(dbClient.DB()),
		FeeConfigs:   feeConfigRepo,
		Commission:   commissionCalc,
		Fees:         cfg.Fees,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create calculation service", err)
		os.Exit(1)
	}

	executor, err := disbursement.NewExecutor(disbursement.ExecutorParams{
		Rail:   railClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create disbursement executor", err)
		os.Exit(1)
	}

	retryCoordinator, err := retrier.NewCoordinator(retrier.CoordinatorParams{
		Payouts: payoutRepo,
		Metrics: payoutMetrics,
		Logger:  logg,
		Retry:   cfg.Retry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retry coordinator", err)
		os.Exit(1)
	}

	finalizer, err := scheduler.NewFinalizer(dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create finalizer", err)
		os.Exit(1)
	}

	pipeline, err := scheduler.NewPipeline(scheduler.PipelineParams{
		Schedules:   scheduleRepo,
		Payouts:     payoutRepo,
		FeeConfigs:  feeConfigRepo,
		Calculator:  calcService,
		Executor:    executor,
		Retrier:     retryCoordinator,
		Completions: finalizer,
		Notifier:    sink,
		Metrics:     payoutMetrics,
		Health:      monitor,
		Logger:      logg,
		Retry:       cfg.Retry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout pipeline", err)
		os.Exit(1)
	}

	lock, err := scheduler.NewRedisLock(redisClient, redis.LockKey("scheduler-tick"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler lock", err)
		os.Exit(1)
	}

	service, err := scheduler.NewService(scheduler.ServiceParams{
		Logger:    logg,
		Pipeline:  pipeline,
		Schedules: scheduleRepo,
		Payouts:   payoutRepo,
		Lock:      lock,
		Metrics:   payoutMetrics,
		Config:    cfg.Scheduler,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	statusServer := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewWorkerRouter(cfg, logg, map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		}, service, monitor),
	}
	go func() {
		if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "status server stopped unexpectedly", err)
		}
	}()

	logg.Info(ctx, "starting payout worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "payout worker stopped unexpectedly", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "error shutting down status server", err)
	}

	logg.Info(ctx, "payout worker shutting down gracefully")
}
