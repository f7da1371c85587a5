package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-sync/internal/api/response"
	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/navhistory"
	"github.com/ndewijer/portfolio-sync/internal/quote"
)

// MarketHandler serves live market data: equity quotes and fund NAVs.
type MarketHandler struct {
	quotes *quote.Cache
	navs   *navhistory.Repository
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(quotes *quote.Cache, navs *navhistory.Repository) *MarketHandler {
	return &MarketHandler{
		quotes: quotes,
		navs:   navs,
	}
}

// Quotes handles GET requests for live quotes of a comma separated ticker list.
// Tickers without a price are omitted from the result.
//
// Endpoint: GET /api/quote?tickers=INFY.NS,TCS.NS
// Response: 200 OK with map of ticker to Quote
// Error: 400 Bad Request if no ticker is given
func (h *MarketHandler) Quotes(w http.ResponseWriter, r *http.Request) {
	var tickers []string
	for _, t := range strings.Split(r.URL.Query().Get("tickers"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		respondServiceError(w, apperrors.ErrMissingTickers, "")
		return
	}

	response.RespondJSON(w, http.StatusOK, h.quotes.GetQuotes(r.Context(), tickers))
}

// LatestNav handles GET requests for the latest and previous NAV of a fund.
//
// Endpoint: GET /api/nav/{fundId}/latest
// Response: 200 OK with LiveNav
// Error: 404 Not Found if the fund has no history
// Error: 503 Service Unavailable if the NAV source timed out
func (h *MarketHandler) LatestNav(w http.ResponseWriter, r *http.Request) {
	fundID := chi.URLParam(r, "fundId")

	live, err := h.navs.LatestNav(r.Context(), fundID)
	if err != nil {
		respondServiceError(w, err, "failed to get NAV")
		return
	}

	response.RespondJSON(w, http.StatusOK, live)
}
