package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

type fakeSyncer struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeSyncer) SyncAll(ctx context.Context) ([]model.SyncOutcome, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return []model.SyncOutcome{{Status: model.SyncStatusSynced}, {Status: model.SyncStatusFailed}}, nil
}

func TestNew(t *testing.T) {
	t.Run("empty schedule disables", func(t *testing.T) {
		s, err := New("", &fakeSyncer{}, logging.NewSilentLogger())

		require.NoError(t, err)
		assert.False(t, s.Enabled())
		s.Start(context.Background())
		s.Stop(context.Background())
	})

	t.Run("invalid schedule", func(t *testing.T) {
		_, err := New("every night", &fakeSyncer{}, logging.NewSilentLogger())

		assert.Error(t, err)
	})

	t.Run("standard schedule", func(t *testing.T) {
		s, err := New("0 2 * * *", &fakeSyncer{}, logging.NewSilentLogger())
		require.NoError(t, err)
		assert.True(t, s.Enabled())

		s.Start(context.Background())
		defer s.Stop(context.Background())

		entries := s.cron.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, 2, entries[0].Next.UTC().Hour())
		assert.Equal(t, time.UTC, entries[0].Next.Location())
	})
}

// TestScheduler_Job tests the scheduled job.
//
// WHY: A nightly sync over a large portfolio may outlast the interval. A second
// run starting on top of the first would double the upstream load.
func TestScheduler_Job(t *testing.T) {
	t.Run("overlapping run is skipped", func(t *testing.T) {
		// Setup
		syncer := &fakeSyncer{release: make(chan struct{})}
		s, err := New("@every 1h", syncer, logging.NewSilentLogger())
		require.NoError(t, err)

		// Execute
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.job.Run()
		}()
		require.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		s.job.Run()
		close(syncer.release)
		wg.Wait()

		// Assert
		assert.Equal(t, int32(1), syncer.calls.Load())
	})

	t.Run("failed sync does not stop later runs", func(t *testing.T) {
		syncer := &fakeSyncer{err: errors.New("database is locked")}
		s, err := New("@every 1h", syncer, logging.NewSilentLogger())
		require.NoError(t, err)

		s.job.Run()
		s.job.Run()

		assert.Equal(t, int32(2), syncer.calls.Load())
	})
}
