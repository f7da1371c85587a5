package quote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

const (
	DefaultTTL          = 5 * time.Minute
	DefaultConcurrency  = 4
	DefaultFetchTimeout = 15 * time.Second
)

// Cache is a time-boxed cache in front of a Fetcher.
// Construct one per process and share it by reference.
type Cache struct {
	fetcher     Fetcher
	ttl         time.Duration
	concurrency int
	timeout     time.Duration
	now         func() time.Time
	logger      *logging.Logger

	mu      sync.RWMutex
	entries map[string]model.Quote
	group   singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets how long a fetched quote is served from memory.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock injects the time source used to stamp and expire entries.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// WithConcurrency bounds the number of parallel upstream fetches per batch.
func WithConcurrency(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithFetchTimeout bounds a shared upstream fetch. The fetch is detached from
// the caller that started it, so this is its only deadline.
func WithFetchTimeout(timeout time.Duration) CacheOption {
	return func(c *Cache) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *logging.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates a quote cache in front of the fetcher.
func NewCache(fetcher Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher:     fetcher,
		ttl:         DefaultTTL,
		concurrency: DefaultConcurrency,
		timeout:     DefaultFetchTimeout,
		now:         time.Now,
		logger:      logging.NewSilentLogger(),
		entries:     make(map[string]model.Quote),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetQuotes returns a quote per ticker. Fresh entries are served from memory and
// misses are fetched concurrently. Tickers without a resolvable price are absent
// from the result; a missing key means the price is unavailable.
func (c *Cache) GetQuotes(ctx context.Context, tickers []string) map[string]model.Quote {
	result := make(map[string]model.Quote, len(tickers))
	var misses []string

	for _, ticker := range normalizeTickers(tickers) {
		if q, ok := c.fresh(ticker); ok {
			result[ticker] = q
			continue
		}
		misses = append(misses, ticker)
	}

	if len(misses) == 0 {
		return result
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, ticker := range misses {
		g.Go(func() error {
			q, err := c.load(gctx, ticker)
			if err != nil {
				c.logger.Warn().Err(err).Str("ticker", ticker).Msg("quote unavailable")
				return nil
			}
			mu.Lock()
			result[ticker] = q
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors.
	_ = g.Wait()

	c.logger.Debug().Int("requested", len(tickers)).Int("fetched", len(misses)).Int("resolved", len(result)).Msg("quotes served")
	return result
}

// GetQuote returns one quote, fetching it when not fresh.
func (c *Cache) GetQuote(ctx context.Context, ticker string) (model.Quote, error) {
	tickers := normalizeTickers([]string{ticker})
	if len(tickers) == 0 {
		return model.Quote{}, apperrors.ErrMissingTickers
	}
	if q, ok := c.fresh(tickers[0]); ok {
		return q, nil
	}
	return c.load(ctx, tickers[0])
}

// Invalidate drops the cached quote for a ticker.
func (c *Cache) Invalidate(ticker string) {
	c.mu.Lock()
	delete(c.entries, strings.ToUpper(strings.TrimSpace(ticker)))
	c.mu.Unlock()
}

// Purge drops every cached quote.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]model.Quote)
	c.mu.Unlock()
}

func (c *Cache) fresh(ticker string) (model.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.entries[ticker]
	if !ok || c.now().Sub(q.FetchedAt) >= c.ttl {
		return model.Quote{}, false
	}
	return q, true
}

// load fetches a ticker once for all concurrent callers and stores the result.
// A caller that gives up does not cancel the fetch for the others.
func (c *Cache) load(ctx context.Context, ticker string) (model.Quote, error) {
	ch := c.group.DoChan(ticker, func() (any, error) {
		// A flight that finished between the caller's check and now already stored it.
		if q, ok := c.fresh(ticker); ok {
			return q, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		q, err := c.fetcher.FetchQuote(fetchCtx, ticker)
		if err != nil {
			return nil, err
		}
		if q.Price <= 0 {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrQuoteUnavailable, ticker)
		}
		q.Ticker = ticker
		q.FetchedAt = c.now()

		c.mu.Lock()
		c.entries[ticker] = q
		c.mu.Unlock()
		return q, nil
	})

	select {
	case <-ctx.Done():
		return model.Quote{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.Quote{}, res.Err
		}
		return res.Val.(model.Quote), nil
	}
}

func normalizeTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
