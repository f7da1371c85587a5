package handlers

import (
	"net/http"

	"github.com/ndewijer/portfolio-sync/internal/api/response"
	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/service"
)

// PortfolioHandler handles HTTP requests for portfolio endpoints.
type PortfolioHandler struct {
	portfolioService *service.PortfolioService
}

// NewPortfolioHandler creates a new PortfolioHandler with the provided service dependency.
func NewPortfolioHandler(portfolioService *service.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
	}
}

// Snapshot handles GET requests to value the whole portfolio at live prices.
// Positions without a live price are valued on cost and flagged.
//
// Endpoint: GET /api/portfolio/snapshot
// Response: 200 OK with PortfolioSnapshot
// Error: 500 Internal Server Error if lots cannot be loaded
func (h *PortfolioHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.portfolioService.Snapshot(r.Context())
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToGetSnapshot.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, snapshot)
}
