package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/paquetebot/paquetebot-backend/api/routes"
	"github.com/paquetebot/paquetebot-backend/internal/adminflow"
	"github.com/paquetebot/paquetebot-backend/internal/catalog"
	"github.com/paquetebot/paquetebot-backend/internal/channels/telegram"
	"github.com/paquetebot/paquetebot-backend/internal/channels/whatsapp"
	"github.com/paquetebot/paquetebot-backend/internal/conversation"
	"github.com/paquetebot/paquetebot-backend/internal/intake"
	"github.com/paquetebot/paquetebot-backend/internal/ledger"
	"github.com/paquetebot/paquetebot-backend/internal/notify"
	"github.com/paquetebot/paquetebot-backend/internal/orders"
	"github.com/paquetebot/paquetebot-backend/internal/sessions"
	"github.com/paquetebot/paquetebot-backend/internal/webhooks"
	"github.com/paquetebot/paquetebot-backend/pkg/config"
	"github.com/paquetebot/paquetebot-backend/pkg/db"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	"github.com/paquetebot/paquetebot-backend/pkg/logger"
	"github.com/paquetebot/paquetebot-backend/pkg/metrics"
	"github.com/paquetebot/paquetebot-backend/pkg/migrate"
	"github.com/paquetebot/paquetebot-backend/pkg/redis"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	botMetrics := metrics.NewBotMetrics(registry)

	telegramClient, err := telegram.NewClient(cfg.Telegram)
	if err != nil {
		logg.Error(ctx, "failed to create telegram client", err)
		os.Exit(1)
	}
	whatsappClient, err := whatsapp.NewClient(cfg.WhatsApp)
	if err != nil {
		logg.Error(ctx, "failed to create whatsapp client", err)
		os.Exit(1)
	}

	usersRepo := sessions.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())

	sessionsService, err := sessions.NewService(usersRepo, cfg.App)
	if err != nil {
		logg.Error(ctx, "failed to create sessions service", err)
		os.Exit(1)
	}

	dispatcher, err := notify.NewDispatcher(map[enums.Channel]notify.Channel{
		enums.ChannelTelegram: telegramClient,
		enums.ChannelWhatsApp: whatsappClient,
	}, usersRepo, logg, botMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create notification dispatcher", err)
		os.Exit(1)
	}
	orderEvents, err := notify.NewOrderEvents(dispatcher)
	if err != nil {
		logg.Error(ctx, "failed to create order events notifier", err)
		os.Exit(1)
	}

	var exporter orders.Exporter
	if cfg.Sheets.Enabled {
		sheetsExporter, err := ledger.NewSheetsExporter(ctx, cfg.Sheets, logg)
		if err != nil {
			logg.Error(ctx, "failed to create sheets exporter", err)
			os.Exit(1)
		}
		exporter = sheetsExporter
	} else {
		exporter = ledger.NewNoopExporter(logg)
	}

	ordersService, err := orders.NewService(ordersRepo, usersRepo, dbClient, exporter, orderEvents, logg, botMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	intakeMachine, err := intake.NewMachine(catalogRepo, ordersService)
	if err != nil {
		logg.Error(ctx, "failed to create intake machine", err)
		os.Exit(1)
	}
	adminMachine, err := adminflow.NewMachine(ordersService)
	if err != nil {
		logg.Error(ctx, "failed to create admin machine", err)
		os.Exit(1)
	}
	engine, err := conversation.NewEngine(sessionsService, intakeMachine, adminMachine, logg, botMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create conversation engine", err)
		os.Exit(1)
	}

	guard, err := webhooks.NewDeliveryGuard(redisClient, cfg.Webhooks.DedupTTL, logg, botMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create delivery guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, engine, guard, telegramClient, whatsappClient),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(startCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(startCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(startCtx, "graceful shutdown failed", err)
		}
	}
}
