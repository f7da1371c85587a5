// Package quote fetches live equity quotes by scraping a public quote page and
// caches them for a bounded time.
package quote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

const (
	DefaultBaseURL   = "https://www.google.com/finance/quote"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second
	DefaultExchange  = "NSE"

	maxPageSize = 4 << 20
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Fetcher fetches a single live quote.
type Fetcher interface {
	FetchQuote(ctx context.Context, ticker string) (model.Quote, error)
}

// GoogleFinanceClient scrapes quote pages.
type GoogleFinanceClient struct {
	baseURL         string
	defaultExchange string
	httpClient      *http.Client
	limiter         *rate.Limiter
	extractors      []Extractor
	logger          *logging.Logger
}

// ClientOption configures the client
type ClientOption func(*GoogleFinanceClient)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *GoogleFinanceClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *GoogleFinanceClient) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *GoogleFinanceClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithDefaultExchange sets the exchange appended to bare tickers
func WithDefaultExchange(exchange string) ClientOption {
	return func(c *GoogleFinanceClient) {
		c.defaultExchange = strings.ToUpper(strings.TrimSpace(exchange))
	}
}

// WithExtractors replaces the extractor chain
func WithExtractors(extractors ...Extractor) ClientOption {
	return func(c *GoogleFinanceClient) {
		c.extractors = extractors
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *GoogleFinanceClient) {
		c.logger = logger
	}
}

// NewGoogleFinanceClient creates a new quote page client.
func NewGoogleFinanceClient(opts ...ClientOption) *GoogleFinanceClient {
	c := &GoogleFinanceClient{
		baseURL:         DefaultBaseURL,
		defaultExchange: DefaultExchange,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		extractors: DefaultExtractors(),
		logger:     logging.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Symbol maps a ticker to the quote page's SYMBOL:EXCHANGE form.
// "TCS.NS" becomes "TCS:NSE", "TCS.BO" becomes "TCS:BOM" and bare tickers get
// the default exchange. Tickers that already name an exchange are kept.
func Symbol(ticker, defaultExchange string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	switch {
	case t == "" || strings.Contains(t, ":"):
		return t
	case strings.HasSuffix(t, ".NS"):
		return strings.TrimSuffix(t, ".NS") + ":NSE"
	case strings.HasSuffix(t, ".BO"):
		return strings.TrimSuffix(t, ".BO") + ":BOM"
	case defaultExchange == "":
		return t
	default:
		return t + ":" + defaultExchange
	}
}

// FetchQuote fetches and extracts a quote for the ticker.
//
// Returns:
//   - ErrUpstreamTimeout when the rate limiter wait or the request exceeds its deadline
//   - ErrQuoteUnavailable for non-2xx responses or pages without a resolvable price
func (c *GoogleFinanceClient) FetchQuote(ctx context.Context, ticker string) (model.Quote, error) {
	symbol := Symbol(ticker, c.defaultExchange)
	if symbol == "" {
		return model.Quote{}, apperrors.ErrMissingTickers
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if isTimeout(err) {
			return model.Quote{}, fmt.Errorf("%w: rate limit wait for %s", apperrors.ErrUpstreamTimeout, symbol)
		}
		return model.Quote{}, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return model.Quote{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	c.logger.Debug().Str("symbol", symbol).Msg("quote page request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn().Str("symbol", symbol).Dur("elapsed", elapsed).Msg("quote page request timed out")
			return model.Quote{}, fmt.Errorf("%w: quote %s", apperrors.ErrUpstreamTimeout, symbol)
		}
		c.logger.Error().Err(err).Str("symbol", symbol).Dur("elapsed", elapsed).Msg("quote page request failed")
		return model.Quote{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Str("symbol", symbol).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("quote page non-OK response")
		return model.Quote{}, fmt.Errorf("%w: status %d for %s", apperrors.ErrQuoteUnavailable, resp.StatusCode, symbol)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		if isTimeout(err) {
			return model.Quote{}, fmt.Errorf("%w: quote %s", apperrors.ErrUpstreamTimeout, symbol)
		}
		return model.Quote{}, fmt.Errorf("failed to read response: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return model.Quote{}, fmt.Errorf("%w: unreadable page for %s: %v", apperrors.ErrQuoteUnavailable, symbol, err)
	}

	ex := RunChain(&Page{Doc: doc, Raw: string(body)}, c.extractors)
	q, err := Build(ticker, ex)
	if err != nil {
		c.logger.Warn().Str("symbol", symbol).Msg("no price found on quote page")
		return model.Quote{}, fmt.Errorf("%w: %s", err, symbol)
	}
	q.FetchedAt = time.Now()
	return q, nil
}

// Build turns an extraction into a quote. A missing change is derived from the
// percentage, and a missing previous close from price minus change.
func Build(ticker string, ex Extraction) (model.Quote, error) {
	if ex.Price == nil || *ex.Price <= 0 {
		return model.Quote{}, apperrors.ErrQuoteUnavailable
	}
	price := *ex.Price

	var change, pct float64
	switch {
	case ex.Change != nil:
		change = *ex.Change
	case ex.PreviousClose != nil:
		change = price - *ex.PreviousClose
	case ex.ChangePercent != nil:
		prev := price / (1 + *ex.ChangePercent/100)
		change = price - prev
	}

	prevClose := price - change
	if ex.PreviousClose != nil && *ex.PreviousClose > 0 {
		prevClose = *ex.PreviousClose
	}

	switch {
	case ex.ChangePercent != nil:
		pct = *ex.ChangePercent
	case prevClose > 0:
		pct = change / prevClose * 100
	}

	name := ex.Name
	if name == "" {
		name = strings.ToUpper(strings.TrimSpace(ticker))
	}

	return model.Quote{
		Ticker:        strings.ToUpper(strings.TrimSpace(ticker)),
		Name:          name,
		Price:         price,
		PreviousClose: round(prevClose, 4),
		Change:        round(change, 4),
		ChangePercent: round(pct, 4),
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
