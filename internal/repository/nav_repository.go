package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/portfolio-sync/internal/model"
)

// NavRepository persists fetched NAV series so valuation can fall back to them
// when the upstream source is unavailable.
type NavRepository struct {
	db *sql.DB
}

// NewNavRepository creates a new NavRepository with the provided database connection.
func NewNavRepository(db *sql.DB) *NavRepository {
	return &NavRepository{db: db}
}

// GetSeries returns the stored series for a fund, newest first.
// Returns an empty slice if nothing is stored.
func (r *NavRepository) GetSeries(ctx context.Context, fundID string) ([]model.NavPoint, error) {
	query := `
		SELECT date, price
		FROM nav_price
		WHERE fund_id = ?
		ORDER BY date DESC
	`

	rows, err := r.db.QueryContext(ctx, query, fundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nav_price table: %w", err)
	}
	defer rows.Close()

	series := []model.NavPoint{}
	for rows.Next() {
		var dateStr string
		var p model.NavPoint
		if err := rows.Scan(&dateStr, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan nav_price table results: %w", err)
		}
		p.Date, err = ParseTime(dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}
		series = append(series, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nav_price table: %w", err)
	}

	return series, nil
}

// UpsertSeries stores every point of the series in one transaction.
// Existing dates are overwritten with the newly published price.
func (r *NavRepository) UpsertSeries(ctx context.Context, fundID string, series []model.NavPoint) error {
	if len(series) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nav_price (fund_id, date, price)
		VALUES (?, ?, ?)
		ON CONFLICT (fund_id, date) DO UPDATE SET price = excluded.price
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare nav_price insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range series {
		if _, err := stmt.ExecContext(ctx, fundID, p.Date.UTC().Format("2006-01-02"), p.Price); err != nil {
			return fmt.Errorf("failed to insert nav_price: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit nav_price: %w", err)
	}
	return nil
}
