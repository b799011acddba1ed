// Package main is the entrypoint for the RentDesk API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rentdesk/rentdesk/internal/api"
	"github.com/rentdesk/rentdesk/internal/api/handler"
	mw "github.com/rentdesk/rentdesk/internal/api/middleware"
	"github.com/rentdesk/rentdesk/internal/bankimport"
	"github.com/rentdesk/rentdesk/internal/cache"
	"github.com/rentdesk/rentdesk/internal/config"
	"github.com/rentdesk/rentdesk/internal/notify"
	"github.com/rentdesk/rentdesk/internal/scheduler"
	"github.com/rentdesk/rentdesk/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"email_provider", cfg.Notify.EmailProvider,
		"sms_provider", cfg.Notify.SMSProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and notification senders
	pgStore := store.NewPostgresStore(pool)

	emailSender, err := notify.NewEmailSender(cfg.Notify)
	if err != nil {
		return fmt.Errorf("create email sender: %w", err)
	}
	smsSender, err := notify.NewSMSSender(cfg.Notify)
	if err != nil {
		return fmt.Errorf("create sms sender: %w", err)
	}
	notifier := notify.NewService(pgStore, emailSender, smsSender)
	imports := bankimport.NewService(pgStore, redisCache, notifier, cfg.BankImport)

	// 6. Start background jobs
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		retention := time.Duration(cfg.Notify.RetentionDays) * 24 * time.Hour
		sched, err = scheduler.New(cfg.Scheduler, retention, pgStore, notifier)
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		sched.Start()
		slog.Info("scheduler started",
			"overdue_spec", cfg.Scheduler.OverdueSpec,
			"purge_spec", cfg.Scheduler.PurgeSpec,
		)
	}

	// 7. Build router with dependencies
	router := api.NewRouter(buildDependencies(cfg, pgStore, redisCache, notifier, imports))

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			slog.Warn("scheduler did not stop in time", "error", err)
		}
	}
	// Imports run detached from request contexts; let them finish writing.
	imports.Wait()

	slog.Info("server stopped gracefully")
	return nil
}

// buildDependencies wires every route to its handler.
func buildDependencies(
	cfg *config.Config,
	st store.Store,
	c cache.Cache,
	notifier *notify.Service,
	imports *bankimport.Service,
) api.Dependencies {
	var corsMW func(http.Handler) http.Handler
	// rs/cors treats an empty origin list as "*".
	if len(cfg.HTTP.CORSAllowedOrigins) > 0 {
		corsMW = mw.CORS(cfg.HTTP.CORSAllowedOrigins)
	}

	return api.Dependencies{
		Auth:      mw.NewAuth(st),
		RateLimit: mw.NewRateLimit(c, cfg.HTTP.RateLimitPerMinute),
		CORS:      corsMW,

		HealthHandler: handler.NewHealthHandler(st, c),

		ProrationHandler:     handler.NewProrationHandler(),
		UnitProrationHandler: handler.NewUnitProrationHandler(st),

		MatchingHandler:        handler.NewMatchingHandler(st),
		ProfileMatchingHandler: handler.NewProfileMatchingHandler(st, c),

		ImportNorma43Handler: handler.NewNorma43ImportHandler(imports, cfg.BankImport.MaxBytes),
		GetImportJobHandler:  handler.NewGetImportJobHandler(imports),
		ListMovementsHandler: handler.NewListMovementsHandler(st),

		CreateNotification:   handler.NewCreateNotificationHandler(notifier),
		ListNotifications:    handler.NewListNotificationsHandler(st),
		UnreadNotifications:  handler.NewUnreadCountHandler(st),
		GetNotification:      handler.NewGetNotificationHandler(st),
		MarkNotificationRead: handler.NewMarkNotificationReadHandler(notifier),
		MarkAllRead:          handler.NewMarkAllNotificationsReadHandler(notifier),
		DeleteNotification:   handler.NewDeleteNotificationHandler(st),

		CreateBuilding:   handler.NewCreateBuildingHandler(st),
		ListBuildings:    handler.NewListBuildingsHandler(st),
		GetBuilding:      handler.NewGetBuildingHandler(st),
		CreateUnit:       handler.NewCreateUnitHandler(st),
		ListUnits:        handler.NewListUnitsHandler(st),
		GetUnit:          handler.NewGetUnitHandler(st),
		CreateRoom:       handler.NewCreateRoomHandler(st, c),
		ListUnitRooms:    handler.NewListUnitRoomsHandler(st),
		GetRoom:          handler.NewGetRoomHandler(st),
		UpdateRoom:       handler.NewUpdateRoomHandler(st, c),
		ListRoomListings: handler.NewListRoomListingsHandler(st),
		CreateSeeker:     handler.NewCreateSeekerHandler(st),
		ListSeekers:      handler.NewListSeekersHandler(st),
		GetSeeker:        handler.NewGetSeekerHandler(st),

		CreateTenant:   handler.NewCreateTenantHandler(st),
		ListTenants:    handler.NewListTenantsHandler(st),
		GetTenant:      handler.NewGetTenantHandler(st),
		CreateContract: handler.NewCreateContractHandler(st),
		ListContracts:  handler.NewListContractsHandler(st),
		GetContract:    handler.NewGetContractHandler(st),
		CreatePayment:  handler.NewCreatePaymentHandler(st),
		ListPayments:   handler.NewListPaymentsHandler(st),

		CreateKeyHandler: handler.NewCreateKeyHandler(st),
		ListKeysHandler:  handler.NewListKeysHandler(st),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(st),
	}
}
