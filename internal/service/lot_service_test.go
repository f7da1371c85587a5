package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-sync/internal/api/request"
	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/testutil"
)

func floatPtr(v float64) *float64 { return &v }

// TestLotService_CreateLot tests manual lot entry.
//
// WHY: A newly entered lot should show a valuation right away instead of
// waiting for the nightly sync.
func TestLotService_CreateLot(t *testing.T) {
	ctx := context.Background()

	t.Run("one-off lot is synced on creation", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		scheme := testutil.CreateFundScheme(t, db, "122639")
		client := testutil.NewMockNavClient().WithSeries("122639", testutil.Nav(2024, 1, 10, 25))
		svc := testutil.NewTestLotService(t, db, client)

		// Execute
		lot, err := svc.CreateLot(ctx, request.CreateLotRequest{
			SchemeID:  scheme.ID,
			Kind:      string(model.LotOneOff),
			Amount:    5000,
			StartDate: "2024-01-10",
			Folio:     "991/22",
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, model.SourceManual, lot.Source)
		assert.Equal(t, 200.0, lot.Units)
		assert.Equal(t, 5000.0, lot.InvestedCapital)
		assert.Equal(t, "991/22", lot.Folio)
		assert.NotNil(t, lot.LastSyncedAt)
		testutil.AssertRowCount(t, db, "lot", 1)
	})

	t.Run("pinned lot keeps manual units", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		scheme := testutil.CreateFundScheme(t, db, "122639")
		client := testutil.NewMockNavClient()
		svc := testutil.NewTestLotService(t, db, client)

		lot, err := svc.CreateLot(ctx, request.CreateLotRequest{
			SchemeID:    scheme.ID,
			Kind:        string(model.LotOneOff),
			Amount:      5000,
			StartDate:   "2024-01-10",
			ManualUnits: floatPtr(12.5),
		})

		require.NoError(t, err)
		assert.Equal(t, 12.5, lot.EffectiveUnits())
		assert.Nil(t, lot.LastSyncedAt)
		assert.Equal(t, 0, client.Calls("122639"))
	})

	t.Run("failed sync still creates the lot", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		scheme := testutil.CreateFundScheme(t, db, "122639")
		client := testutil.NewMockNavClient().WithError("122639", assert.AnError)
		svc := testutil.NewTestLotService(t, db, client)

		lot, err := svc.CreateLot(ctx, request.CreateLotRequest{
			SchemeID:  scheme.ID,
			Kind:      string(model.LotRecurring),
			Amount:    1000,
			StartDate: "2023-06-01",
		})

		require.NoError(t, err)
		assert.Equal(t, 0.0, lot.Units)
		assert.Nil(t, lot.LastSyncedAt)
		testutil.AssertRowCount(t, db, "lot", 1)
	})

	t.Run("unknown scheme", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestLotService(t, db, testutil.NewMockNavClient())

		_, err := svc.CreateLot(ctx, request.CreateLotRequest{
			SchemeID:  testutil.MakeID(),
			Kind:      string(model.LotOneOff),
			Amount:    100,
			StartDate: "2024-01-10",
		})

		assert.ErrorIs(t, err, apperrors.ErrSchemeNotFound)
		testutil.AssertRowCount(t, db, "lot", 0)
	})
}

func TestLotService_GetAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("lists lots by start date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		scheme := testutil.NewScheme().Build(t, db)
		later := testutil.NewLot(scheme.ID).WithStartDate(day(2024, 3, 1)).Build(t, db)
		earlier := testutil.NewLot(scheme.ID).WithStartDate(day(2023, 3, 1)).Build(t, db)
		svc := testutil.NewTestLotService(t, db, testutil.NewMockNavClient())

		lots, err := svc.GetLots(ctx)

		require.NoError(t, err)
		require.Len(t, lots, 2)
		assert.Equal(t, earlier.ID, lots[0].ID)
		assert.Equal(t, later.ID, lots[1].ID)
	})

	t.Run("delete removes the lot", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		scheme := testutil.NewScheme().Build(t, db)
		lot := testutil.NewLot(scheme.ID).Build(t, db)
		svc := testutil.NewTestLotService(t, db, testutil.NewMockNavClient())

		require.NoError(t, svc.DeleteLot(ctx, lot.ID))

		_, err := svc.GetLot(ctx, lot.ID)
		assert.ErrorIs(t, err, apperrors.ErrLotNotFound)
		assert.ErrorIs(t, svc.DeleteLot(ctx, lot.ID), apperrors.ErrLotNotFound)
	})
}
