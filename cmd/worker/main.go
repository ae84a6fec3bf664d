package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumicrm/payments-backend/internal/alerts"
	"github.com/lumicrm/payments-backend/internal/calendar"
	"github.com/lumicrm/payments-backend/internal/consumers/events"
	"github.com/lumicrm/payments-backend/internal/emission"
	"github.com/lumicrm/payments-backend/internal/inbox"
	"github.com/lumicrm/payments-backend/internal/psp"
	"github.com/lumicrm/payments-backend/internal/retry"
	"github.com/lumicrm/payments-backend/internal/schedules"
	"github.com/lumicrm/payments-backend/pkg/config"
	"github.com/lumicrm/payments-backend/pkg/db"
	"github.com/lumicrm/payments-backend/pkg/logger"
	"github.com/lumicrm/payments-backend/pkg/metrics"
	"github.com/lumicrm/payments-backend/pkg/migrate"
	"github.com/lumicrm/payments-backend/pkg/pubsub"
	"github.com/lumicrm/payments-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
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

	registry, err := buildExecutorRegistry(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build executor registry", err)
		os.Exit(1)
	}

	coordinator, err := emission.NewCoordinator(emission.CoordinatorParams{
		Schedules: scheduleRepo,
		Intents:   emission.NewIntentRepository(dbClient.DB()),
		Executors: registry,
		Retry:     retryEngine,
		Config:    cfg.Emission,
		Metrics:   metrics.NewEmissionMetrics(prometheus.DefaultRegisterer),
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create emission coordinator", err)
		os.Exit(1)
	}

	inboxRepo := inbox.NewRepository(dbClient.DB())
	inboxService, err := inbox.NewService(inbox.ServiceParams{
		Repo:         inboxRepo,
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

	consumer, err := events.NewConsumer(pubsubClient.DomainSubscription(), scheduleService, inboxService, inboxRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create event consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		PubSub:      pubsubClient,
		Coordinator: coordinator,
		Consumer:    consumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting payments worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

// buildExecutorRegistry wires every configured provider. The sandbox
// executor is feature-flagged so production deployments cannot accidentally
// route schedules to it.
func buildExecutorRegistry(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*psp.Registry, error) {
	var executors []psp.ChargeExecutor

	if cfg.FeatureFlags.SandboxPSP {
		executors = append(executors, psp.NewSandboxExecutor())
	}
	if cfg.Stripe.APIKey != "" {
		stripeExec, err := psp.NewStripeExecutor(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, err
		}
		executors = append(executors, stripeExec)
	}
	if cfg.Square.AccessToken != "" {
		squareExec, err := psp.NewSquareExecutor(ctx, cfg.Square, logg)
		if err != nil {
			return nil, err
		}
		executors = append(executors, squareExec)
	}

	return psp.NewRegistry(executors...), nil
}
