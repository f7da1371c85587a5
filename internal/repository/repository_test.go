package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/repository"
	"github.com/ndewijer/portfolio-sync/internal/secure"
	"github.com/ndewijer/portfolio-sync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func importedLot(schemeID string, amount float64) *model.Lot {
	return &model.Lot{
		ID:              testutil.MakeID(),
		SchemeID:        schemeID,
		Kind:            model.LotOneOff,
		Amount:          amount,
		StartDate:       time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC),
		InvestedCapital: amount,
		Source:          model.SourceImport,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
}

func TestAmountCents(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{5000, 500000},
		{5000.004, 500000},
		{5000.005, 500001},
		{0.1 + 0.2, 30},
		{1234.56, 123456},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, repository.AmountCents(tt.amount), "amount %v", tt.amount)
	}
}

func TestLotRepository_InsertLot(t *testing.T) {
	ctx := context.Background()

	t.Run("imported triple is stored once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewLotRepository(db, secure.NoopCipher{})
		scheme := testutil.CreateFundScheme(t, db, "122639")

		inserted, err := repo.InsertLot(ctx, importedLot(scheme.ID, 5000))
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = repo.InsertLot(ctx, importedLot(scheme.ID, 5000.004))
		require.NoError(t, err)
		assert.False(t, inserted, "same amount in cents must be deduplicated")

		testutil.AssertRowCount(t, db, "lot", 1)
	})

	t.Run("manual lots are never deduplicated", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewLotRepository(db, secure.NoopCipher{})
		scheme := testutil.CreateFundScheme(t, db, "122639")

		for range 2 {
			lot := importedLot(scheme.ID, 5000)
			lot.Source = model.SourceManual
			inserted, err := repo.InsertLot(ctx, lot)
			require.NoError(t, err)
			assert.True(t, inserted)
		}

		testutil.AssertRowCount(t, db, "lot", 2)
	})

	t.Run("folio is encrypted at rest", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		var key fernet.Key
		require.NoError(t, key.Generate())
		cipher, err := secure.NewFernetCipher(key.Encode())
		require.NoError(t, err)

		repo := repository.NewLotRepository(db, cipher)
		scheme := testutil.CreateFundScheme(t, db, "122639")
		lot := importedLot(scheme.ID, 5000)
		lot.Folio = "1234567/89"

		_, err = repo.InsertLot(ctx, lot)
		require.NoError(t, err)

		var stored string
		require.NoError(t, db.QueryRow(`SELECT folio_enc FROM lot WHERE id = ?`, lot.ID).Scan(&stored))
		assert.NotEqual(t, "1234567/89", stored)

		got, err := repo.GetLot(ctx, lot.ID)
		require.NoError(t, err)
		assert.Equal(t, "1234567/89", got.Folio)
	})
}

func TestLotRepository_HasOneOffLot(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewLotRepository(db, secure.NoopCipher{})
	date := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		build func(t *testing.T, schemeID string)
		want  bool
	}{
		{
			name: "manual one-off lot",
			build: func(t *testing.T, schemeID string) {
				testutil.NewLot(schemeID).WithAmount(5000).WithStartDate(date).Build(t, db)
			},
			want: true,
		},
		{
			name: "imported one-off lot",
			build: func(t *testing.T, schemeID string) {
				testutil.NewLot(schemeID).WithAmount(5000).WithStartDate(date).Imported().Build(t, db)
			},
			want: true,
		},
		{
			name: "recurring lot",
			build: func(t *testing.T, schemeID string) {
				testutil.NewLot(schemeID).Recurring(5000).WithStartDate(date).Build(t, db)
			},
			want: false,
		},
		{
			name: "different amount",
			build: func(t *testing.T, schemeID string) {
				testutil.NewLot(schemeID).WithAmount(5000.01).WithStartDate(date).Build(t, db)
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.CleanDatabase(t, db)
			scheme := testutil.NewScheme().WithISIN("INF846K01EW2").Build(t, db)
			tt.build(t, scheme.ID)

			got, err := repo.HasOneOffLot(ctx, scheme.ID, date, 5000.004)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLotRepository_UpdateValuation(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewLotRepository(db, secure.NoopCipher{})
	scheme := testutil.CreateFundScheme(t, db, "122639")
	lot := testutil.NewLot(scheme.ID).Build(t, db)
	syncedAt := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	err := repo.UpdateValuation(ctx, lot.ID, model.ValuationResult{Units: 200, InvestedCapital: 10000}, syncedAt)
	require.NoError(t, err)

	got, err := repo.GetLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.InDelta(t, 200, got.Units, 1e-9)
	require.NotNil(t, got.LastSyncedAt)
	assert.True(t, got.LastSyncedAt.Equal(syncedAt))

	err = repo.UpdateValuation(ctx, testutil.MakeID(), model.ValuationResult{}, syncedAt)
	assert.ErrorIs(t, err, apperrors.ErrLotNotFound)
}

func TestNavRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewNavRepository(db)

	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, repo.UpsertSeries(ctx, "122639", []model.NavPoint{
		{Date: day(1), Price: 50},
		{Date: day(2), Price: 51},
	}))
	require.NoError(t, repo.UpsertSeries(ctx, "122639", []model.NavPoint{
		{Date: day(2), Price: 52},
		{Date: day(3), Price: 53},
	}))

	series, err := repo.GetSeries(ctx, "122639")
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.True(t, series[0].Date.Equal(day(3)), "series is newest first")
	assert.InDelta(t, 52, series[1].Price, 1e-9, "republished price overwrites")

	empty, err := repo.GetSeries(ctx, "999999")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
