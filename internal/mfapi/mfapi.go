// Package mfapi is a client for the public mutual fund NAV history API
// (GET /{registry}/{fundId}).
package mfapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/valuation"
)

const (
	DefaultBaseURL  = "https://api.mfapi.in"
	DefaultRegistry = "mf"
	DefaultTimeout  = 10 * time.Second

	// maxBodySize bounds the response read; full histories are a few hundred KB.
	maxBodySize = 16 << 20
)

// Client is the interface the rest of the application uses to fetch NAV history.
type Client interface {
	QueryHistory(ctx context.Context, fundID string) (Response, error)
	ParseHistory(fundID string, resp Response) (History, error)
}

// FinanceClient fetches NAV history over HTTP.
type FinanceClient struct {
	baseURL    string
	registry   string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientOption configures the client
type ClientOption func(*FinanceClient)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *FinanceClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRegistry sets the registry path segment
func WithRegistry(registry string) ClientOption {
	return func(c *FinanceClient) {
		c.registry = strings.Trim(registry, "/")
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *FinanceClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *FinanceClient) {
		c.logger = logger
	}
}

// NewFinanceClient creates a new NAV history client.
func NewFinanceClient(opts ...ClientOption) *FinanceClient {
	c := &FinanceClient{
		baseURL:  DefaultBaseURL,
		registry: DefaultRegistry,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logging.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// QueryHistory fetches the full NAV history of a fund.
//
// Returns:
//   - ErrUpstreamTimeout when the request exceeds its deadline
//   - ErrNoHistoryAvailable for non-2xx responses and malformed JSON
//   - a wrapped transport error for anything else
func (c *FinanceClient) QueryHistory(ctx context.Context, fundID string) (Response, error) {
	reqURL := fmt.Sprintf("%s/%s/%s", c.baseURL, c.registry, url.PathEscape(fundID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("fund_id", fundID).Msg("NAV history request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn().Str("fund_id", fundID).Dur("elapsed", elapsed).Msg("NAV history request timed out")
			return Response{}, fmt.Errorf("%w: fund %s", apperrors.ErrUpstreamTimeout, fundID)
		}
		c.logger.Error().Err(err).Str("fund_id", fundID).Dur("elapsed", elapsed).Msg("NAV history request failed")
		return Response{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Str("fund_id", fundID).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("NAV history non-OK response")
		return Response{}, fmt.Errorf("%w: status %d for fund %s", apperrors.ErrNoHistoryAvailable, resp.StatusCode, fundID)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if isTimeout(err) {
			return Response{}, fmt.Errorf("%w: fund %s", apperrors.ErrUpstreamTimeout, fundID)
		}
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return Response{}, fmt.Errorf("%w: malformed response for fund %s: %v", apperrors.ErrNoHistoryAvailable, fundID, err)
	}

	return response, nil
}

// ParseHistory converts a raw response into a NAV series sorted newest first.
// Entries with an unparseable date or a non-positive NAV are skipped. A response
// without any usable entry yields ErrNoHistoryAvailable.
func (c *FinanceClient) ParseHistory(fundID string, resp Response) (History, error) {
	points := make([]model.NavPoint, 0, len(resp.Data))
	for _, d := range resp.Data {
		date, err := time.Parse("02-01-2006", strings.TrimSpace(d.Date))
		if err != nil {
			continue
		}
		nav, err := strconv.ParseFloat(strings.TrimSpace(d.Nav), 64)
		if err != nil || nav <= 0 {
			continue
		}
		points = append(points, model.NavPoint{Date: date, Price: nav})
	}

	if len(points) == 0 {
		return History{}, fmt.Errorf("%w: fund %s", apperrors.ErrNoHistoryAvailable, fundID)
	}

	return History{
		FundID:     fundID,
		SchemeName: resp.Meta.SchemeName,
		Category:   resp.Meta.SchemeCategory,
		Points:     valuation.SortDescending(points),
	}, nil
}

// FetchHistory queries and parses a fund's history in one call.
func FetchHistory(ctx context.Context, c Client, fundID string) (History, error) {
	raw, err := c.QueryHistory(ctx, fundID)
	if err != nil {
		return History{}, err
	}
	return c.ParseHistory(fundID, raw)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
