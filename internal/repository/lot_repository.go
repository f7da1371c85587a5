package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/model"
	"github.com/ndewijer/portfolio-sync/internal/secure"
	"github.com/shopspring/decimal"
)

// LotRepository provides data access methods for the lot table.
// Folio numbers are encrypted with the configured cipher before they are stored.
type LotRepository struct {
	db     *sql.DB
	tx     *sql.Tx
	cipher secure.Cipher
}

// NewLotRepository creates a new LotRepository with the provided database connection and folio cipher.
func NewLotRepository(db *sql.DB, cipher secure.Cipher) *LotRepository {
	if cipher == nil {
		cipher = secure.NoopCipher{}
	}
	return &LotRepository{db: db, cipher: cipher}
}

// WithTx returns a new LotRepository scoped to the provided transaction.
func (r *LotRepository) WithTx(tx *sql.Tx) *LotRepository {
	return &LotRepository{
		db:     r.db,
		tx:     tx,
		cipher: r.cipher,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *LotRepository) getQuerier() interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const lotColumns = `id, scheme_id, kind, amount, start_date, step_up_percent, manual_units,
	units, invested_capital, last_synced_at, folio_enc, source, created_at`

// AmountCents converts an amount to whole cents, rounding half away from zero.
// Imported lots are de-duplicated on this value rather than on the float amount.
func AmountCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

// GetLot retrieves a single lot by its ID.
// Returns ErrLotNotFound if no lot with the given ID exists.
func (r *LotRepository) GetLot(ctx context.Context, id string) (model.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lot WHERE id = ?`

	l, err := r.scanLot(r.getQuerier().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lot{}, apperrors.ErrLotNotFound
	}
	if err != nil {
		return model.Lot{}, fmt.Errorf("failed to get lot: %w", err)
	}
	return l, nil
}

// GetLots retrieves all lots ordered by start date.
// Returns an empty slice if no lots exist.
func (r *LotRepository) GetLots(ctx context.Context) ([]model.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lot ORDER BY start_date ASC, created_at ASC`

	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lot table: %w", err)
	}
	defer rows.Close()

	lots := []model.Lot{}
	for rows.Next() {
		l, err := r.scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot table results: %w", err)
		}
		lots = append(lots, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lot table: %w", err)
	}

	return lots, nil
}

// HasOneOffLot reports whether a one-off lot with the same scheme, start date and
// amount in cents already exists, whichever way it was created.
func (r *LotRepository) HasOneOffLot(ctx context.Context, schemeID string, startDate time.Time, amount float64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM lot
			WHERE scheme_id = ? AND kind = 'ONE_OFF' AND start_date = ? AND amount_cents = ?
		)
	`

	var exists bool
	err := r.getQuerier().QueryRowContext(ctx, query,
		schemeID,
		startDate.UTC().Format("2006-01-02"),
		AmountCents(amount),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing lot: %w", err)
	}
	return exists, nil
}

// InsertLot stores a new lot.
//
// Imported lots are subject to the (scheme, start date, amount) uniqueness rule. When an
// identical imported lot already exists nothing is written and inserted is false.
// Manual lots are always inserted.
func (r *LotRepository) InsertLot(ctx context.Context, l *model.Lot) (inserted bool, err error) {
	folio, err := r.cipher.Encrypt(l.Folio)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt folio: %w", err)
	}

	query := `
		INSERT INTO lot (
			id, scheme_id, kind, amount, amount_cents, start_date, step_up_percent, manual_units,
			units, invested_capital, last_synced_at, folio_enc, source, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scheme_id, start_date, amount_cents) WHERE source = 'import' DO NOTHING
	`

	res, err := r.getQuerier().ExecContext(ctx, query,
		l.ID,
		l.SchemeID,
		string(l.Kind),
		l.Amount,
		AmountCents(l.Amount),
		l.StartDate.UTC().Format("2006-01-02"),
		nullFloat(l.StepUpPercent),
		nullFloat(l.ManualUnits),
		l.Units,
		l.InvestedCapital,
		nullTime(l.LastSyncedAt),
		nullString(folio),
		l.Source,
		l.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert lot: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n > 0, nil
}

// UpdateValuation writes back the cached valuation of a lot.
// Returns ErrLotNotFound if the lot was deleted in the meantime.
func (r *LotRepository) UpdateValuation(ctx context.Context, id string, result model.ValuationResult, syncedAt time.Time) error {
	query := `
		UPDATE lot
		SET units = ?, invested_capital = ?, last_synced_at = ?
		WHERE id = ?
	`

	res, err := r.getQuerier().ExecContext(ctx, query,
		result.Units,
		result.InvestedCapital,
		syncedAt.UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update lot valuation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return apperrors.ErrLotNotFound
	}
	return nil
}

// DeleteLot removes a lot.
// Returns ErrLotNotFound if no lot with the given ID exists.
func (r *LotRepository) DeleteLot(ctx context.Context, id string) error {
	res, err := r.getQuerier().ExecContext(ctx, `DELETE FROM lot WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lot: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if n == 0 {
		return apperrors.ErrLotNotFound
	}
	return nil
}

func (r *LotRepository) scanLot(row rowScanner) (model.Lot, error) {
	var l model.Lot
	var kind, startStr, source, createdStr string
	var stepUp, manualUnits sql.NullFloat64
	var syncedStr, folioEnc sql.NullString

	err := row.Scan(
		&l.ID,
		&l.SchemeID,
		&kind,
		&l.Amount,
		&startStr,
		&stepUp,
		&manualUnits,
		&l.Units,
		&l.InvestedCapital,
		&syncedStr,
		&folioEnc,
		&source,
		&createdStr,
	)
	if err != nil {
		return model.Lot{}, err
	}

	l.Kind = model.LotKind(kind)
	l.Source = source

	if stepUp.Valid {
		v := stepUp.Float64
		l.StepUpPercent = &v
	}
	if manualUnits.Valid {
		v := manualUnits.Float64
		l.ManualUnits = &v
	}

	if l.StartDate, err = ParseTime(startStr); err != nil {
		return model.Lot{}, err
	}
	if l.CreatedAt, err = ParseTime(createdStr); err != nil {
		return model.Lot{}, err
	}
	if syncedStr.Valid {
		t, err := ParseTime(syncedStr.String)
		if err != nil {
			return model.Lot{}, err
		}
		l.LastSyncedAt = &t
	}

	if folioEnc.Valid {
		if l.Folio, err = r.cipher.Decrypt(folioEnc.String); err != nil {
			return model.Lot{}, fmt.Errorf("failed to decrypt folio: %w", err)
		}
	}

	return l, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
