package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradeguard/escrow/internal/auth"
	"github.com/tradeguard/escrow/internal/config"
	"github.com/tradeguard/escrow/internal/infrastructure/notify"
	"github.com/tradeguard/escrow/internal/infrastructure/persistence"
	"github.com/tradeguard/escrow/internal/infrastructure/persistence/postgres"
	"github.com/tradeguard/escrow/internal/infrastructure/verify"
	"github.com/tradeguard/escrow/internal/interfaces/rest"
	"github.com/tradeguard/escrow/internal/metrics"
	"github.com/tradeguard/escrow/internal/ports"
	"github.com/tradeguard/escrow/internal/services"
	"github.com/tradeguard/escrow/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger(cfg.Primary.Env)
	slog.SetDefault(logger)

	logger.Info("starting escrow service",
		"port", cfg.Server.Port,
		"env", cfg.Primary.Env,
		"log_level", cfg.Logger.Level,
	)

	metrics.Init()

	pgxCfg, err := cfg.Database.PgxConfig()
	if err != nil {
		logger.Error("invalid database configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := persistence.Connect(ctx, pgxCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := postgres.NewStore(db)
	clock := ports.RealClock()

	var notifier ports.Notifier
	if cfg.Notifier.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Notifier.SendTimeout)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}
	gateway := services.NewGateway(notifier, cfg.Notifier.AdminIDList(), logger)

	verifier := verify.NewDigestVerifier(6)
	tokens := auth.NewTokenManager(cfg.Auth.AccessSecret, cfg.Auth.AccessTTL)

	listingService := services.NewListingService(store, gateway, clock, cfg.Limits.DomainLimits())
	eligibilityService := services.NewEligibilityService(store, gateway, clock)
	paymentService := services.NewPaymentService(store, gateway, clock, cfg.Limits.MinCardDetailsLen, cfg.Limits.MaxFileSize)
	transferService := services.NewTransferService(store, gateway, verifier, clock, cfg.Retry.MaxAttempts)
	buyerVerService := services.NewBuyerVerificationService(store, gateway, clock, cfg.Limits.MinIssueLen)
	finalVerService := services.NewFinalVerificationService(store, gateway, clock,
		cfg.Limits.MinVideoSeconds, cfg.Limits.MaxVideoSeconds, cfg.Limits.MaxFileSize)
	adminService := services.NewAdminService(store, gateway, clock)
	userService := services.NewUserService(store, clock, tokens)
	timeoutService := services.NewTimeoutService(store, gateway, clock,
		cfg.Timeouts.TimeoutPolicy(), cfg.Worker.BatchSize, logger)

	h := rest.NewHandler(
		listingService,
		eligibilityService,
		paymentService,
		transferService,
		buyerVerService,
		finalVerService,
		adminService,
		userService,
		logger,
	)

	router := rest.NewRouter(h, tokens, rest.RouterConfig{
		RequestTimeout:  cfg.Server.ReadTimeout,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: time.Minute,
	}, logger)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	timeoutWorker := worker.NewTimeoutWorker(timeoutService, cfg.Worker.SweepInterval, logger)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go timeoutWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
