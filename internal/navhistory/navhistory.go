// Package navhistory fetches, holds and persists NAV series per fund.
package navhistory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/mfapi"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

const (
	DefaultTTL         = 6 * time.Hour
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 4
)

// Store is the persistence used as a fallback when the upstream is unavailable.
type Store interface {
	GetSeries(ctx context.Context, fundID string) ([]model.NavPoint, error)
	UpsertSeries(ctx context.Context, fundID string, series []model.NavPoint) error
}

type heldSeries struct {
	points    []model.NavPoint
	fetchedAt time.Time
}

// Repository serves NAV series for funds.
// Fetched series are held for the TTL and written to the store. Concurrent
// requests for the same fund share one upstream call.
type Repository struct {
	client      mfapi.Client
	store       Store
	ttl         time.Duration
	timeout     time.Duration
	concurrency int
	now         func() time.Time
	logger      *logging.Logger

	mu    sync.RWMutex
	held  map[string]heldSeries
	group singleflight.Group
}

// Option configures a Repository.
type Option func(*Repository)

// WithStore sets the persistent fallback store.
func WithStore(store Store) Option {
	return func(r *Repository) {
		r.store = store
	}
}

// WithTTL sets how long a fetched series is held in memory.
func WithTTL(ttl time.Duration) Option {
	return func(r *Repository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithTimeout bounds every upstream fetch.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Repository) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithConcurrency bounds the number of parallel fetches in batch calls.
func WithConcurrency(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithClock injects the time source used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// New creates a Repository backed by the given client.
func New(client mfapi.Client, opts ...Option) *Repository {
	r := &Repository{
		client:      client,
		ttl:         DefaultTTL,
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		logger:      logging.NewSilentLogger(),
		held:        make(map[string]heldSeries),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Series returns the NAV series of a fund, newest first.
//
// Returns:
//   - ErrInvalidFundID when fundID is empty
//   - ErrUpstreamTimeout when the fetch timed out and nothing is persisted
//   - ErrNoHistoryAvailable when the upstream has no usable data and nothing is persisted
func (r *Repository) Series(ctx context.Context, fundID string) ([]model.NavPoint, error) {
	if fundID == "" {
		return nil, apperrors.ErrInvalidFundID
	}

	if points, ok := r.lookup(fundID); ok {
		return points, nil
	}

	// The shared fetch outlives any single caller; it is bounded by its own timeout.
	ch := r.group.DoChan(fundID, func() (any, error) {
		if points, ok := r.lookup(fundID); ok {
			return points, nil
		}
		return r.fetch(context.WithoutCancel(ctx), fundID)
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: fund %s: %w", apperrors.ErrUpstreamTimeout, fundID, ctx.Err())
		}
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			r.logger.Debug().Str("fund_id", fundID).Msg("NAV fetch shared with concurrent caller")
		}
		return res.Val.([]model.NavPoint), nil
	}
}

func (r *Repository) lookup(fundID string) ([]model.NavPoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.held[fundID]
	if !ok || r.now().Sub(entry.fetchedAt) >= r.ttl {
		return nil, false
	}
	return entry.points, true
}

func (r *Repository) fetch(ctx context.Context, fundID string) ([]model.NavPoint, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	history, err := mfapi.FetchHistory(fetchCtx, r.client, fundID)
	if err != nil {
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, apperrors.ErrUpstreamTimeout) {
			err = fmt.Errorf("%w: fund %s: %v", apperrors.ErrUpstreamTimeout, fundID, err)
		}
		return r.fallback(ctx, fundID, err)
	}

	r.mu.Lock()
	r.held[fundID] = heldSeries{points: history.Points, fetchedAt: r.now()}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpsertSeries(ctx, fundID, history.Points); err != nil {
			r.logger.Warn().Err(err).Str("fund_id", fundID).Msg("failed to persist NAV series")
		}
	}

	r.logger.Debug().Str("fund_id", fundID).Int("points", len(history.Points)).Msg("NAV series fetched")
	return history.Points, nil
}

// fallback serves the persisted series when the upstream failed. The persisted
// copy is not held in memory so the next call retries the upstream.
func (r *Repository) fallback(ctx context.Context, fundID string, cause error) ([]model.NavPoint, error) {
	if r.store == nil {
		return nil, cause
	}

	points, err := r.store.GetSeries(ctx, fundID)
	if err != nil {
		r.logger.Error().Err(err).Str("fund_id", fundID).Msg("failed to read persisted NAV series")
		return nil, cause
	}
	if len(points) == 0 {
		return nil, cause
	}

	r.logger.Warn().Err(cause).Str("fund_id", fundID).Int("points", len(points)).Msg("serving persisted NAV series")
	return points, nil
}

// SeriesBatch fetches several funds concurrently.
// Funds that fail are absent from the result.
func (r *Repository) SeriesBatch(ctx context.Context, fundIDs []string) map[string][]model.NavPoint {
	result := make(map[string][]model.NavPoint, len(fundIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, fundID := range unique(fundIDs) {
		g.Go(func() error {
			points, err := r.Series(gctx, fundID)
			if err != nil {
				r.logger.Warn().Err(err).Str("fund_id", fundID).Msg("NAV series unavailable")
				return nil
			}
			mu.Lock()
			result[fundID] = points
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors.
	_ = g.Wait()
	return result
}

// Latest returns the newest and previous NAV for each fund.
// Funds without history are absent from the result.
func (r *Repository) Latest(ctx context.Context, fundIDs []string) map[string]model.LiveNav {
	series := r.SeriesBatch(ctx, fundIDs)

	result := make(map[string]model.LiveNav, len(series))
	for fundID, points := range series {
		if live, ok := LiveFromSeries(fundID, points); ok {
			result[fundID] = live
		}
	}
	return result
}

// LatestNav returns the newest and previous NAV of one fund.
func (r *Repository) LatestNav(ctx context.Context, fundID string) (model.LiveNav, error) {
	points, err := r.Series(ctx, fundID)
	if err != nil {
		return model.LiveNav{}, err
	}
	live, ok := LiveFromSeries(fundID, points)
	if !ok {
		return model.LiveNav{}, fmt.Errorf("%w: fund %s", apperrors.ErrNoHistoryAvailable, fundID)
	}
	return live, nil
}

// Invalidate drops the held series for a fund.
func (r *Repository) Invalidate(fundID string) {
	r.mu.Lock()
	delete(r.held, fundID)
	r.mu.Unlock()
}

// LiveFromSeries derives the live NAV from a newest-first series. With a single
// point the previous NAV equals the latest.
func LiveFromSeries(fundID string, points []model.NavPoint) (model.LiveNav, bool) {
	if len(points) == 0 {
		return model.LiveNav{}, false
	}
	live := model.LiveNav{
		FundID:      fundID,
		Nav:         points[0].Price,
		PreviousNav: points[0].Price,
		Date:        points[0].Date,
	}
	if len(points) > 1 {
		live.PreviousNav = points[1].Price
	}
	return live, true
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
