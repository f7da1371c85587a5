package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/mfapi"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

// MockNavClient is a mock implementation of mfapi.Client for testing.
// It serves configured series per fund instead of making API calls.
// Funds without a configured series answer with ErrNoHistoryAvailable.
type MockNavClient struct {
	mu     sync.Mutex
	series map[string][]model.NavPoint
	errs   map[string]error
	delay  time.Duration
	calls  map[string]int
}

// NewMockNavClient creates a new mock NAV client without any series.
func NewMockNavClient() *MockNavClient {
	return &MockNavClient{
		series: make(map[string][]model.NavPoint),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// WithSeries configures the points returned for a fund. Order does not matter.
func (m *MockNavClient) WithSeries(fundID string, points ...model.NavPoint) *MockNavClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[fundID] = points
	return m
}

// WithError configures the mock to fail every query for a fund.
func (m *MockNavClient) WithError(fundID string, err error) *MockNavClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[fundID] = err
	return m
}

// WithDelay makes every query wait before answering, honoring context cancellation.
func (m *MockNavClient) WithDelay(d time.Duration) *MockNavClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Calls returns how many times a fund was queried.
func (m *MockNavClient) Calls(fundID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[fundID]
}

// QueryHistory returns the configured series as a raw response.
func (m *MockNavClient) QueryHistory(ctx context.Context, fundID string) (mfapi.Response, error) {
	m.mu.Lock()
	m.calls[fundID]++
	delay := m.delay
	points, ok := m.series[fundID]
	err := m.errs[fundID]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return mfapi.Response{}, fmt.Errorf("%w: fund %s", apperrors.ErrUpstreamTimeout, fundID)
		}
	}

	if err != nil {
		return mfapi.Response{}, err
	}
	if !ok {
		return mfapi.Response{}, fmt.Errorf("%w: fund %s", apperrors.ErrNoHistoryAvailable, fundID)
	}

	return CreateNavResponse(fundID, points...), nil
}

// ParseHistory delegates to the real implementation since it's pure logic with no side effects.
func (m *MockNavClient) ParseHistory(fundID string, resp mfapi.Response) (mfapi.History, error) {
	return mfapi.NewFinanceClient().ParseHistory(fundID, resp)
}

// CreateNavResponse builds a raw history response from points.
func CreateNavResponse(fundID string, points ...model.NavPoint) mfapi.Response {
	resp := mfapi.Response{Status: "SUCCESS"}
	resp.Meta.SchemeName = "Test Scheme " + fundID
	resp.Meta.SchemeCategory = "Equity Scheme"
	for _, p := range points {
		resp.Data = append(resp.Data, mfapi.DataPoint{
			Date: p.Date.Format("02-01-2006"),
			Nav:  strconv.FormatFloat(p.Price, 'f', -1, 64),
		})
	}
	return resp
}

// Nav is shorthand for a NAV point on a calendar date.
func Nav(year int, month time.Month, day int, price float64) model.NavPoint {
	return model.NavPoint{Date: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Price: price}
}
