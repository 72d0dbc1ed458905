package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"catalog_ingest/internal/admin"
	"catalog_ingest/internal/config"
	"catalog_ingest/internal/publisher"
	"catalog_ingest/internal/quota"
	"catalog_ingest/internal/ratelimit"
	"catalog_ingest/internal/scheduler"
	"catalog_ingest/internal/service"
	"catalog_ingest/internal/source/youtube"
	"catalog_ingest/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	var events service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		events = rabbitMQ
	}

	itemStore := postgres.NewItemStore(db)
	categoryStore := postgres.NewCategoryStore(db)
	sourceStore := postgres.NewSourceStore(db)
	txManager := postgres.NewTransactionManager(db)

	// One budget and one limiter for every outbound call in the process.
	governor := quota.NewGovernor(quota.Config{
		DailyLimit:     cfg.Quota.DailyLimit,
		NearExhaustion: cfg.Quota.NearExhaustion,
	}, logger)
	limiter := ratelimit.New(cfg.RateLimit.MinInterval)

	client := youtube.NewClient(youtube.ClientConfig{
		BaseURL:         cfg.YouTube.BaseURL,
		APIKey:          cfg.YouTube.APIKey,
		Timeout:         cfg.YouTube.Timeout,
		MaxAttempts:     cfg.YouTube.Retry.MaxAttempts,
		InitialBackoff:  cfg.YouTube.Retry.InitialBackoff,
		MaxBackoff:      cfg.YouTube.Retry.MaxBackoff,
		BreakerFailures: cfg.YouTube.Breaker.ConsecutiveFailures,
		BreakerTimeout:  cfg.YouTube.Breaker.OpenTimeout,
		SearchCost:      cfg.Quota.SearchCost,
		DetailCost:      cfg.Quota.DetailCost,
	}, limiter, governor, logger)

	videoSource := youtube.New(client, governor, youtube.Config{
		SearchCost:     cfg.Quota.SearchCost,
		DetailCost:     cfg.Quota.DetailCost,
		MinVideoLength: cfg.Ingest.MinVideoLength,
	}, logger)

	reconciler := service.NewReconciler(itemStore, txManager)

	channelTargets := make([]service.Target, 0, len(cfg.Ingest.Channels))
	for _, handle := range cfg.Ingest.Channels {
		channelTargets = append(channelTargets, service.ChannelTarget{Handle: handle})
	}
	categoryTargets := make([]service.Target, 0, len(cfg.Ingest.Categories))
	for _, c := range cfg.Ingest.Categories {
		categoryTargets = append(categoryTargets, service.CategoryTarget{
			Title:      c.Title,
			Query:      c.Query,
			MaxResults: c.MaxResults,
		})
	}

	channels := service.NewIngester(
		service.IngesterConfig{Mode: "channels", MaxPagesPerSource: cfg.Ingest.MaxPagesPerSource},
		channelTargets,
		videoSource,
		governor,
		sourceStore,
		categoryStore,
		reconciler,
		events,
		logger,
	)
	categories := service.NewIngester(
		service.IngesterConfig{Mode: "categories"},
		categoryTargets,
		videoSource,
		governor,
		sourceStore,
		categoryStore,
		reconciler,
		events,
		logger,
	)

	sched := scheduler.NewScheduler([]scheduler.Job{
		{Name: "channels", Spec: cfg.Schedule.Channels, Runner: channels},
		{Name: "categories", Spec: cfg.Schedule.Categories, Runner: categories},
	}, scheduler.Config{
		RunOnStart: cfg.Schedule.RunOnStart,
		RunTimeout: cfg.Schedule.RunTimeout,
	}, logger)

	adminServer := admin.NewServer(admin.Config{
		Addr:       cfg.Admin.Addr,
		APIKey:     cfg.Admin.APIKey,
		RunTimeout: cfg.Schedule.RunTimeout,
	}, channels, categories, sourceStore, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	go func() {
		if err := governor.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("quota reset loop stopped", "error", err)
		}
	}()

	go func() {
		if err := adminServer.Start(ctx); err != nil {
			logger.Error("admin server error", "error", err)
			cancel()
		}
	}()

	logger.Info("starting catalog ingester",
		"channels", len(channelTargets),
		"categories", len(categoryTargets),
		"daily_quota", cfg.Quota.DailyLimit,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
