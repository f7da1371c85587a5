package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ndewijer/portfolio-sync/internal/api/handlers"
	custommiddleware "github.com/ndewijer/portfolio-sync/internal/api/middleware"
	"github.com/ndewijer/portfolio-sync/internal/config"
	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/navhistory"
	"github.com/ndewijer/portfolio-sync/internal/quote"
	"github.com/ndewijer/portfolio-sync/internal/service"
)

// Services bundles everything the HTTP layer delegates to.
type Services struct {
	System    *service.SystemService
	Import    *service.ImportService
	Scheme    *service.SchemeService
	Lot       *service.LotService
	Sync      *service.SyncService
	Portfolio *service.PortfolioService
	Quotes    *quote.Cache
	Navs      *navhistory.Repository
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config, logger *logging.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/import", func(r chi.Router) {
			importHandler := handlers.NewImportHandler(svc.Import)
			r.Post("/parse", importHandler.Parse)
			r.Post("/confirm", importHandler.Confirm)
		})

		r.Route("/scheme", func(r chi.Router) {
			schemeHandler := handlers.NewSchemeHandler(svc.Scheme)
			r.Get("/", schemeHandler.Schemes)
			r.Post("/", schemeHandler.CreateScheme)
		})

		syncHandler := handlers.NewSyncHandler(svc.Sync)
		r.Post("/sync", syncHandler.SyncAll)

		r.Route("/lot", func(r chi.Router) {
			lotHandler := handlers.NewLotHandler(svc.Lot)
			r.Get("/", lotHandler.Lots)
			r.Post("/", lotHandler.CreateLot)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", lotHandler.GetLot)
				r.Delete("/", lotHandler.DeleteLot)
				r.Post("/sync", syncHandler.SyncLot)
			})
		})

		r.Route("/portfolio", func(r chi.Router) {
			portfolioHandler := handlers.NewPortfolioHandler(svc.Portfolio)
			r.Get("/snapshot", portfolioHandler.Snapshot)
		})

		marketHandler := handlers.NewMarketHandler(svc.Quotes, svc.Navs)
		r.Get("/quote", marketHandler.Quotes)
		r.Get("/nav/{fundId}/latest", marketHandler.LatestNav)
	})

	return r
}
