package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/portfolio-sync/internal/api"
	"github.com/ndewijer/portfolio-sync/internal/config"
	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/navhistory"
	"github.com/ndewijer/portfolio-sync/internal/quote"
	"github.com/ndewijer/portfolio-sync/internal/testutil"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db := testutil.SetupTestDB(t)
	client := testutil.NewMockNavClient().WithSeries("122639", testutil.Nav(2024, 1, 31, 81.25))
	fetcher := testutil.NewMockQuoteFetcher().WithQuote("INFY.NS", 1600, 1590)

	svc := api.Services{
		System:    testutil.NewTestSystemService(t, db),
		Import:    testutil.NewTestImportService(t, db),
		Scheme:    testutil.NewTestSchemeService(t, db),
		Lot:       testutil.NewTestLotService(t, db, client),
		Sync:      testutil.NewTestSyncService(t, db, client),
		Portfolio: testutil.NewTestPortfolioService(t, db, client, fetcher),
		Quotes:    quote.NewCache(fetcher),
		Navs:      navhistory.New(client),
	}
	cfg := &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}}

	return api.NewRouter(svc, cfg, logging.NewSilentLogger())
}

func TestNewRouter(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/system/health", http.StatusOK},
		{http.MethodGet, "/api/system/version", http.StatusOK},
		{http.MethodGet, "/api/scheme", http.StatusOK},
		{http.MethodGet, "/api/lot", http.StatusOK},
		{http.MethodGet, "/api/lot/not-a-uuid", http.StatusBadRequest},
		{http.MethodGet, "/api/lot/550e8400-e29b-41d4-a716-446655440000", http.StatusNotFound},
		{http.MethodPost, "/api/lot/550e8400-e29b-41d4-a716-446655440000/sync", http.StatusNotFound},
		{http.MethodPost, "/api/sync", http.StatusOK},
		{http.MethodGet, "/api/portfolio/snapshot", http.StatusOK},
		{http.MethodGet, "/api/quote?tickers=INFY.NS", http.StatusOK},
		{http.MethodGet, "/api/quote", http.StatusBadRequest},
		{http.MethodGet, "/api/nav/122639/latest", http.StatusOK},
		{http.MethodPut, "/api/lot", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}
