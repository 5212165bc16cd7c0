package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/supportdesk/orderbot/internal/api/http"
	"github.com/supportdesk/orderbot/internal/api/http/handlers"
	"github.com/supportdesk/orderbot/internal/auth"
	"github.com/supportdesk/orderbot/internal/config"
	"github.com/supportdesk/orderbot/internal/events"
	"github.com/supportdesk/orderbot/internal/observability"
	"github.com/supportdesk/orderbot/internal/persistence"
	"github.com/supportdesk/orderbot/internal/repository"
	"github.com/supportdesk/orderbot/internal/service"
	"github.com/supportdesk/orderbot/internal/sweep"
	"github.com/supportdesk/orderbot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	partyRepo := repository.NewPartyRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	tariffRepo := repository.NewTariffRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewAuditService(dispatcher, logger, metrics).RegisterHandlers()

	settingsService := service.NewSettingsService(settingsRepo, logger)
	settingsService.StartRefresh(ctx, seconds(cfg.Sweep.SettingsRefreshSeconds, time.Minute))

	registryService := service.NewRegistryService(partyRepo, dispatcher)
	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		OrderRepo:  orderRepo,
		PartyRepo:  partyRepo,
		Settings:   settingsService,
		Dispatcher: dispatcher,
	})
	reservationService := service.NewReservationService(partyRepo, orderRepo, dispatcher)
	statsService := service.NewStatsService(orderRepo, settingsService, nil)

	bot, err := telegram.New(cfg.Telegram, telegram.Dependencies{
		Registry:    registryService,
		Lifecycle:   lifecycleService,
		Reservation: reservationService,
		Drafts:      telegram.NewDraftStore(redis.Client, time.Hour),
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("failed to build telegram bot", zap.Error(err))
	}

	sweeper := sweep.NewSweeper(sweep.Dependencies{
		Orders:   orderRepo,
		Parties:  partyRepo,
		Settings: settingsService,
		Gateway:  bot.Gateway(),
		Logger:   logger,
		Metrics:  metrics,
	})
	sweeper.Start(ctx, cfg.Sweep.Interval(), sweep.Offsets{
		Unassigned:   seconds(cfg.Sweep.UnassignedOffsetSeconds, 10*time.Second),
		Overdue:      seconds(cfg.Sweep.OverdueOffsetSeconds, 20*time.Second),
		Fanout:       seconds(cfg.Sweep.FanoutOffsetSeconds, 30*time.Second),
		ClientUpdate: seconds(cfg.Sweep.ClientUpdateOffsetSeconds, 40*time.Second),
	})

	tokens := auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	adminHandler := handlers.NewAdminHandler(
		cfg.Admin.PasswordHash, tokens, settingsService, statsService, tariffRepo, metrics)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Admin:          adminHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	go bot.Start()

	waitForShutdown(logger)

	cancel()
	bot.Stop()
	_ = app.Shutdown()
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
