package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/lumicrm/payments-backend/api/controllers"
	"github.com/lumicrm/payments-backend/api/routes"
	"github.com/lumicrm/payments-backend/internal/alerts"
	"github.com/lumicrm/payments-backend/internal/calendar"
	"github.com/lumicrm/payments-backend/internal/emission"
	"github.com/lumicrm/payments-backend/internal/inbox"
	"github.com/lumicrm/payments-backend/internal/retry"
	"github.com/lumicrm/payments-backend/internal/schedules"
	"github.com/lumicrm/payments-backend/pkg/config"
	"github.com/lumicrm/payments-backend/pkg/db"
	"github.com/lumicrm/payments-backend/pkg/logger"
	"github.com/lumicrm/payments-backend/pkg/migrate"
	"github.com/lumicrm/payments-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	calendarService, err := calendar.NewService(calendar.ServiceParams{
		Repo:   calendar.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create calendar service", err)
		os.Exit(1)
	}

	scheduleRepo := schedules.NewRepository(dbClient.DB())
	scheduleService, err := schedules.NewService(schedules.ServiceParams{
		Repo:    scheduleRepo,
		Planner: calendarService,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create schedule service", err)
		os.Exit(1)
	}

	alertService, err := alerts.NewService(alerts.ServiceParams{
		Repo:   alerts.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create alert service", err)
		os.Exit(1)
	}

	retryEngine, err := retry.NewEngine(retry.EngineParams{
		Schedules: scheduleRepo,
		Alerts:    alertService,
		Backoff: retry.BackoffPolicy{
			Base:           cfg.Retry.BackoffBase,
			Cap:            cfg.Retry.BackoffCap,
			JitterFraction: cfg.Retry.JitterFraction,
		},
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retry engine", err)
		os.Exit(1)
	}

	inboxService, err := inbox.NewService(inbox.ServiceParams{
		Repo:         inbox.NewRepository(dbClient.DB()),
		Guard:        inbox.NewDuplicateGuard(redisClient, cfg.Webhook.DuplicateTTL),
		Intents:      emission.NewIntentRepository(dbClient.DB()),
		Schedules:    scheduleRepo,
		Advancer:     scheduleService,
		Retry:        retryEngine,
		Alerts:       alertService,
		SignatureKey: []byte(cfg.Webhook.SignatureKey),
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create inbox service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, readiness,
			calendarService, scheduleService, scheduleRepo, alertService, inboxService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
