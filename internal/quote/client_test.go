package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
)

const attributePage = `<html>
<head><title>Tata Consultancy Services Ltd (TCS) Stock Price &amp; News - Google Finance</title></head>
<body>
<div class="zzDege">Tata Consultancy Services Ltd</div>
<div class="YMlKec fxKbKc" data-last-price="3900.5" data-currency-code="INR">₹3,900.50</div>
<script>AF_initDataCallback({data:[["TCS",["TCS","NSE"],"Tata Consultancy Services Ltd",0,"INR",[3900.5,25.5,0.658],null]]});</script>
</body>
</html>`

const embeddedArrayPage = `<html>
<head><title>Infosys Ltd - Google Finance</title></head>
<body>
<script>AF_initDataCallback({data:[["INFY",null,null,[1502.25,-12.75,-0.8416],"INR"]]});</script>
</body>
</html>`

const previousClosePage = `<html>
<body>
<div class="price">₹1,230.00</div>
<div class="stats">
  <div class="row"><span><div class="label">Previous close</div></span><div class="value">₹1,200.00</div></div>
  <div class="row"><span><div class="label">Day range</div></span><div class="value">₹1,190.00 - ₹1,240.00</div></div>
</div>
<div class="move">(+2.50%)</div>
</body>
</html>`

const textPage = `<html>
<body>
<p>HDFC Bank</p>
<p>Price ₹1,650.40 today (-1.20%)</p>
</body>
</html>`

const emptyPage = `<html><body><p>We couldn't find that symbol.</p></body></html>`

func newPageServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestGoogleFinanceClient_FetchQuote tests every step of the extractor chain.
//
// WHY: The quote page has no documented contract. Each extractor is a fallback
// for markup changes, so each must be able to price a quote on its own.
func TestGoogleFinanceClient_FetchQuote(t *testing.T) {
	srv := newPageServer(t, map[string]string{
		"/TCS:NSE":  attributePage,
		"/INFY:BOM": embeddedArrayPage,
		"/ITC:NSE":  previousClosePage,
		"/HDFC:NSE": textPage,
		"/GONE:NSE": emptyPage,
	})
	client := NewGoogleFinanceClient(WithBaseURL(srv.URL))

	t.Run("data attribute with anchored array", func(t *testing.T) {
		q, err := client.FetchQuote(context.Background(), "TCS.NS")

		require.NoError(t, err)
		assert.Equal(t, "TCS.NS", q.Ticker)
		assert.Equal(t, "Tata Consultancy Services Ltd", q.Name)
		assert.Equal(t, 3900.5, q.Price)
		assert.Equal(t, 25.5, q.Change)
		assert.Equal(t, 0.658, q.ChangePercent)
		assert.Equal(t, 3875.0, q.PreviousClose, "previous close should be price minus change")
		assert.False(t, q.FetchedAt.IsZero())
	})

	t.Run("embedded array", func(t *testing.T) {
		q, err := client.FetchQuote(context.Background(), "INFY.BO")

		require.NoError(t, err)
		assert.Equal(t, "Infosys Ltd", q.Name)
		assert.Equal(t, 1502.25, q.Price)
		assert.Equal(t, -12.75, q.Change)
		assert.Equal(t, -0.8416, q.ChangePercent)
		assert.Equal(t, 1515.0, q.PreviousClose)
	})

	t.Run("previous close label", func(t *testing.T) {
		q, err := client.FetchQuote(context.Background(), "ITC")

		require.NoError(t, err)
		assert.Equal(t, 1230.0, q.Price)
		assert.Equal(t, 1200.0, q.PreviousClose)
		assert.Equal(t, 30.0, q.Change)
		assert.Equal(t, 2.5, q.ChangePercent)
	})

	t.Run("currency text and percentage", func(t *testing.T) {
		q, err := client.FetchQuote(context.Background(), "hdfc")

		require.NoError(t, err)
		assert.Equal(t, "HDFC", q.Ticker)
		assert.Equal(t, 1650.4, q.Price)
		assert.Equal(t, -1.2, q.ChangePercent)
		assert.InDelta(t, -20.0453, q.Change, 0.0001)
		assert.InDelta(t, 1670.4453, q.PreviousClose, 0.0001)
	})

	t.Run("page without price", func(t *testing.T) {
		_, err := client.FetchQuote(context.Background(), "GONE")

		assert.ErrorIs(t, err, apperrors.ErrQuoteUnavailable)
	})

	t.Run("non-2xx response", func(t *testing.T) {
		_, err := client.FetchQuote(context.Background(), "MISSING")

		assert.ErrorIs(t, err, apperrors.ErrQuoteUnavailable)
	})
}

func TestGoogleFinanceClient_Options(t *testing.T) {
	t.Run("default exchange", func(t *testing.T) {
		srv := newPageServer(t, map[string]string{"/AAPL:NASDAQ": attributePage})
		client := NewGoogleFinanceClient(WithBaseURL(srv.URL), WithDefaultExchange("nasdaq"))

		_, err := client.FetchQuote(context.Background(), "AAPL")

		assert.NoError(t, err)
	})

	t.Run("custom extractor chain", func(t *testing.T) {
		srv := newPageServer(t, map[string]string{"/TCS:NSE": attributePage})
		client := NewGoogleFinanceClient(WithBaseURL(srv.URL), WithExtractors(TextExtractor{}))

		q, err := client.FetchQuote(context.Background(), "TCS")

		require.NoError(t, err)
		assert.Equal(t, 3900.5, q.Price)
		assert.Equal(t, "TCS", q.Name, "text extractor does not read names")
	})

	t.Run("slow upstream times out", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		client := NewGoogleFinanceClient(WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))

		_, err := client.FetchQuote(context.Background(), "TCS")

		assert.ErrorIs(t, err, apperrors.ErrUpstreamTimeout)
	})
}

func TestSymbol(t *testing.T) {
	tests := []struct {
		ticker   string
		exchange string
		want     string
	}{
		{"TCS.NS", "NSE", "TCS:NSE"},
		{"tcs.bo", "NSE", "TCS:BOM"},
		{"RELIANCE", "NSE", "RELIANCE:NSE"},
		{"AAPL:NASDAQ", "NSE", "AAPL:NASDAQ"},
		{"AAPL", "", "AAPL"},
		{"  ", "NSE", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			assert.Equal(t, tt.want, Symbol(tt.ticker, tt.exchange))
		})
	}
}

func TestBuild(t *testing.T) {
	price := 100.0
	prev := 90.0

	t.Run("no price", func(t *testing.T) {
		_, err := Build("X", Extraction{})
		assert.ErrorIs(t, err, apperrors.ErrQuoteUnavailable)
	})

	t.Run("percent derived from previous close", func(t *testing.T) {
		q, err := Build("X", Extraction{Price: &price, PreviousClose: &prev})

		require.NoError(t, err)
		assert.Equal(t, 10.0, q.Change)
		assert.InDelta(t, 11.1111, q.ChangePercent, 0.0001)
	})

	t.Run("price only", func(t *testing.T) {
		q, err := Build("X", Extraction{Price: &price})

		require.NoError(t, err)
		assert.Equal(t, 100.0, q.PreviousClose)
		assert.Equal(t, 0.0, q.Change)
	})
}
