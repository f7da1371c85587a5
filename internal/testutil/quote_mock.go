package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

// MockQuoteFetcher is a mock implementation of quote.Fetcher that counts calls.
// Tickers without a configured price answer with ErrQuoteUnavailable.
type MockQuoteFetcher struct {
	mu     sync.Mutex
	quotes map[string]model.Quote
	delay  time.Duration
	calls  map[string]int
}

// NewMockQuoteFetcher creates a new mock fetcher without any quotes.
func NewMockQuoteFetcher() *MockQuoteFetcher {
	return &MockQuoteFetcher{
		quotes: make(map[string]model.Quote),
		calls:  make(map[string]int),
	}
}

// WithQuote configures a price and previous close for a ticker.
func (m *MockQuoteFetcher) WithQuote(ticker string, price, previousClose float64) *MockQuoteFetcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticker = strings.ToUpper(ticker)
	m.quotes[ticker] = model.Quote{
		Ticker:        ticker,
		Price:         price,
		PreviousClose: previousClose,
		Change:        price - previousClose,
	}
	return m
}

// WithDelay makes every fetch wait before answering.
func (m *MockQuoteFetcher) WithDelay(d time.Duration) *MockQuoteFetcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Calls returns how many times a ticker was fetched.
func (m *MockQuoteFetcher) Calls(ticker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[strings.ToUpper(ticker)]
}

// TotalCalls returns the number of fetches across all tickers.
func (m *MockQuoteFetcher) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// FetchQuote returns the configured quote.
func (m *MockQuoteFetcher) FetchQuote(ctx context.Context, ticker string) (model.Quote, error) {
	ticker = strings.ToUpper(ticker)

	m.mu.Lock()
	m.calls[ticker]++
	q, ok := m.quotes[ticker]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.Quote{}, fmt.Errorf("%w: quote %s", apperrors.ErrUpstreamTimeout, ticker)
		}
	}

	if !ok {
		return model.Quote{}, fmt.Errorf("%w: %s", apperrors.ErrQuoteUnavailable, ticker)
	}
	return q, nil
}
