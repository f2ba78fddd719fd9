package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfigueiredo/crypto-dca-backend/internal/adapter/cache"
	"github.com/mfigueiredo/crypto-dca-backend/internal/adapter/coingecko"
	"github.com/mfigueiredo/crypto-dca-backend/internal/adapter/httpapi"
	"github.com/mfigueiredo/crypto-dca-backend/internal/adapter/repository/postgres"
	smtpadapter "github.com/mfigueiredo/crypto-dca-backend/internal/adapter/smtp"
	"github.com/mfigueiredo/crypto-dca-backend/internal/config"
	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/alerting"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/analytics"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/export"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/ledger"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/pricing"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/simulation"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/valuation"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Debug {
		logger = logger.Level(zerolog.DebugLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Database
	db, err := postgres.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Redis spot cache
	spotCache := cache.NewSpotCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SpotCacheTTL)
	if err := spotCache.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer spotCache.Close()

	// Repositories
	priceRepo := postgres.NewPriceCacheRepository(db)
	txRepo := postgres.NewTransactionRepository(db)
	alertRepo := postgres.NewAlertRepository(db)

	// Services
	gecko := coingecko.NewClient(cfg.CoinGeckoBaseURL)
	pricingSvc := pricing.NewService(gecko, spotCache, priceRepo, logger)

	plan := domain.DefaultPlan()
	simulator := simulation.NewSimulator(pricingSvc, plan)
	valuator := valuation.NewService(simulator, txRepo, pricingSvc)
	ledgerSvc := ledger.NewService(txRepo, pricingSvc)
	engine := analytics.NewEngine(valuator, pricingSvc, plan, logger)
	exporter := export.NewService(valuator, txRepo)

	mailer := smtpadapter.NewMailer(smtpadapter.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if !mailer.Enabled() {
		logger.Warn().Msg("smtp not configured, alert emails disabled")
	}

	alertSvc := alerting.NewService(alertRepo, pricingSvc, mailer, logger).
		WithIntervals(cfg.AlertPollInterval, cfg.AlertErrorBackoff)
	go alertSvc.Monitor(ctx)

	// HTTP server
	handler := httpapi.NewHandler(pricingSvc, valuator, ledgerSvc, engine, alertSvc, exporter, logger)
	router := httpapi.NewRouter(handler, cfg.AllowedOrigins, logger, cfg.Debug)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
