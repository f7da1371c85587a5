package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ndewijer/portfolio-sync/internal/api"
	"github.com/ndewijer/portfolio-sync/internal/config"
	"github.com/ndewijer/portfolio-sync/internal/database"
	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/mfapi"
	"github.com/ndewijer/portfolio-sync/internal/navhistory"
	"github.com/ndewijer/portfolio-sync/internal/quote"
	"github.com/ndewijer/portfolio-sync/internal/repository"
	"github.com/ndewijer/portfolio-sync/internal/scheduler"
	"github.com/ndewijer/portfolio-sync/internal/secure"
	"github.com/ndewijer/portfolio-sync/internal/service"
	"github.com/ndewijer/portfolio-sync/internal/statement"
	"github.com/ndewijer/portfolio-sync/internal/valuation"
	"github.com/ndewijer/portfolio-sync/internal/version"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("info").Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.NewLogger(cfg.Logging.Level)
	logger.Info().Str("version", version.Version).Msg("starting portfolio sync")

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("connected to database")

	cipher, err := secure.New(cfg.Security.FolioKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid folio encryption key")
	}
	if _, ok := cipher.(secure.NoopCipher); ok {
		logger.Warn().Msg("FOLIO_ENCRYPTION_KEY not set, folio numbers are stored unencrypted")
	}

	policy, err := valuation.ParsePolicy(cfg.Valuation.CurrentMonth)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid valuation policy")
	}

	// Create repositories
	schemeRepo := repository.NewSchemeRepository(db)
	lotRepo := repository.NewLotRepository(db, cipher)
	navRepo := repository.NewNavRepository(db)

	// Market data
	navClient := mfapi.NewFinanceClient(
		mfapi.WithBaseURL(cfg.Nav.BaseURL),
		mfapi.WithRegistry(cfg.Nav.Registry),
		mfapi.WithTimeout(cfg.Sync.UpstreamTimeout.Duration),
		mfapi.WithLogger(logger.Component("mfapi")),
	)
	navs := navhistory.New(navClient,
		navhistory.WithStore(navRepo),
		navhistory.WithTTL(cfg.Nav.CacheTTL.Duration),
		navhistory.WithTimeout(cfg.Sync.UpstreamTimeout.Duration),
		navhistory.WithConcurrency(cfg.Sync.Concurrency),
		navhistory.WithLogger(logger.Component("navhistory")),
	)
	quoteClient := quote.NewGoogleFinanceClient(
		quote.WithBaseURL(cfg.Quotes.BaseURL),
		quote.WithRateLimit(cfg.Quotes.RateLimit),
		quote.WithTimeout(cfg.Sync.UpstreamTimeout.Duration),
		quote.WithDefaultExchange(cfg.Quotes.DefaultExchange),
		quote.WithLogger(logger.Component("quote")),
	)
	quotes := quote.NewCache(quoteClient,
		quote.WithTTL(cfg.Quotes.TTL.Duration),
		quote.WithConcurrency(cfg.Sync.Concurrency),
		quote.WithFetchTimeout(cfg.Sync.UpstreamTimeout.Duration),
		quote.WithCacheLogger(logger.Component("quote-cache")),
	)

	// Create services
	engine := valuation.NewEngine(policy)
	syncService := service.NewSyncService(lotRepo, schemeRepo, navs, engine, cfg.Sync.Concurrency, logger.Component("sync"))
	services := api.Services{
		System: service.NewSystemService(db, map[string]bool{
			"statement_import": true,
			"scheduled_sync":   cfg.Sync.Schedule != "",
			"folio_encryption": cfg.Security.FolioKey != "",
		}),
		Import:    service.NewImportService(db, statement.NewParser(), schemeRepo, lotRepo, logger.Component("import")),
		Scheme:    service.NewSchemeService(schemeRepo),
		Lot:       service.NewLotService(lotRepo, schemeRepo, syncService, logger.Component("lot")),
		Sync:      syncService,
		Portfolio: service.NewPortfolioService(lotRepo, schemeRepo, navs, quotes, logger.Component("portfolio")),
		Quotes:    quotes,
		Navs:      navs,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched, err := scheduler.New(cfg.Sync.Schedule, syncService, logger.Component("scheduler"))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid sync schedule")
	}
	sched.Start(ctx)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(services, cfg, logger.Component("http")),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	sched.Stop(shutdownCtx)

	logger.Info().Msg("server exited")
}
