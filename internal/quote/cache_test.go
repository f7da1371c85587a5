package quote_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/quote"
	"github.com/ndewijer/portfolio-sync/internal/testutil"
)

// TestCache_GetQuotes tests TTL handling and partial results of the quote cache.
//
// WHY: The quote source is scraped and rate limited. Serving fresh entries from
// memory keeps the upstream load bounded, and a ticker that cannot be priced
// must never fail the rest of the batch.
func TestCache_GetQuotes(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("two calls within TTL fetch once", func(t *testing.T) {
		// Setup
		fetcher := testutil.NewMockQuoteFetcher().WithQuote("TCS.NS", 3900, 3850)
		clock := testutil.NewClock(start)
		cache := quote.NewCache(fetcher, quote.WithClock(clock.Now))

		// Execute
		first := cache.GetQuotes(context.Background(), []string{"TCS.NS"})
		clock.Advance(4 * time.Minute)
		second := cache.GetQuotes(context.Background(), []string{"TCS.NS"})

		// Assert
		assert.Equal(t, 1, fetcher.Calls("TCS.NS"))
		assert.Equal(t, first["TCS.NS"], second["TCS.NS"])
		assert.Equal(t, start, second["TCS.NS"].FetchedAt)
	})

	t.Run("refetches once TTL elapsed", func(t *testing.T) {
		fetcher := testutil.NewMockQuoteFetcher().WithQuote("INFY", 1500, 1490)
		clock := testutil.NewClock(start)
		cache := quote.NewCache(fetcher, quote.WithClock(clock.Now), quote.WithTTL(5*time.Minute))

		cache.GetQuotes(context.Background(), []string{"INFY"})
		clock.Advance(5 * time.Minute)
		got := cache.GetQuotes(context.Background(), []string{"INFY"})

		assert.Equal(t, 2, fetcher.Calls("INFY"))
		assert.Equal(t, start.Add(5*time.Minute), got["INFY"].FetchedAt)
	})

	t.Run("unpriced tickers are omitted", func(t *testing.T) {
		fetcher := testutil.NewMockQuoteFetcher().WithQuote("TCS", 3900, 3850)
		cache := quote.NewCache(fetcher)

		got := cache.GetQuotes(context.Background(), []string{"TCS", "NOPE", " tcs "})

		assert.Len(t, got, 1)
		assert.Contains(t, got, "TCS")
		assert.NotContains(t, got, "NOPE")
		assert.Equal(t, 2, fetcher.TotalCalls(), "duplicate tickers should be fetched once")
	})

	t.Run("failures are not cached", func(t *testing.T) {
		fetcher := testutil.NewMockQuoteFetcher()
		cache := quote.NewCache(fetcher)

		cache.GetQuotes(context.Background(), []string{"NOPE"})
		cache.GetQuotes(context.Background(), []string{"NOPE"})

		assert.Equal(t, 2, fetcher.Calls("NOPE"))
	})

	t.Run("concurrent batches share fetches", func(t *testing.T) {
		fetcher := testutil.NewMockQuoteFetcher().
			WithQuote("A", 10, 9).
			WithQuote("B", 20, 19).
			WithDelay(30 * time.Millisecond)
		cache := quote.NewCache(fetcher, quote.WithConcurrency(2))

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got := cache.GetQuotes(context.Background(), []string{"A", "B"})
				assert.Len(t, got, 2)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, fetcher.Calls("A"))
		assert.Equal(t, 1, fetcher.Calls("B"))
	})

	t.Run("invalidate and purge force refetch", func(t *testing.T) {
		fetcher := testutil.NewMockQuoteFetcher().WithQuote("A", 10, 9).WithQuote("B", 20, 19)
		cache := quote.NewCache(fetcher)

		cache.GetQuotes(context.Background(), []string{"A", "B"})
		cache.Invalidate("a")
		cache.GetQuotes(context.Background(), []string{"A", "B"})
		assert.Equal(t, 2, fetcher.Calls("A"))
		assert.Equal(t, 1, fetcher.Calls("B"))

		cache.Purge()
		cache.GetQuotes(context.Background(), []string{"A", "B"})
		assert.Equal(t, 3, fetcher.Calls("A"))
		assert.Equal(t, 2, fetcher.Calls("B"))
	})
}

func TestCache_SharedFetch(t *testing.T) {
	t.Run("cancelled caller does not fail others", func(t *testing.T) {
		// Setup
		fetcher := testutil.NewMockQuoteFetcher().
			WithQuote("TCS", 3900, 3850).
			WithDelay(50 * time.Millisecond)
		cache := quote.NewCache(fetcher)

		ctx, cancel := context.WithCancel(context.Background())
		firstErr := make(chan error, 1)
		go func() {
			_, err := cache.GetQuote(ctx, "TCS")
			firstErr <- err
		}()
		time.Sleep(5 * time.Millisecond)

		// Execute
		second := make(chan map[string]float64, 1)
		go func() {
			got := cache.GetQuotes(context.Background(), []string{"TCS"})
			prices := make(map[string]float64, len(got))
			for k, q := range got {
				prices[k] = q.Price
			}
			second <- prices
		}()
		time.Sleep(5 * time.Millisecond)
		cancel()

		// Assert
		assert.ErrorIs(t, <-firstErr, context.Canceled)
		assert.Equal(t, map[string]float64{"TCS": 3900}, <-second)
		assert.Equal(t, 1, fetcher.Calls("TCS"))
	})

	t.Run("fetch is bounded by its own timeout", func(t *testing.T) {
		fetcher := testutil.NewMockQuoteFetcher().
			WithQuote("TCS", 3900, 3850).
			WithDelay(time.Second)
		cache := quote.NewCache(fetcher, quote.WithFetchTimeout(20*time.Millisecond))

		_, err := cache.GetQuote(context.Background(), "TCS")

		assert.ErrorIs(t, err, apperrors.ErrUpstreamTimeout)
	})
}

func TestCache_GetQuote(t *testing.T) {
	fetcher := testutil.NewMockQuoteFetcher().WithQuote("TCS", 3900, 3850)
	cache := quote.NewCache(fetcher)

	t.Run("returns quote", func(t *testing.T) {
		q, err := cache.GetQuote(context.Background(), "tcs")

		require.NoError(t, err)
		assert.Equal(t, "TCS", q.Ticker)
		assert.Equal(t, 3900.0, q.Price)
	})

	t.Run("unpriced ticker", func(t *testing.T) {
		_, err := cache.GetQuote(context.Background(), "NOPE")

		assert.ErrorIs(t, err, apperrors.ErrQuoteUnavailable)
	})

	t.Run("blank ticker", func(t *testing.T) {
		_, err := cache.GetQuote(context.Background(), "  ")

		assert.ErrorIs(t, err, apperrors.ErrMissingTickers)
	})
}
