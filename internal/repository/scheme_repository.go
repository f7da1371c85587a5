package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

// SchemeRepository provides data access methods for the scheme table.
type SchemeRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewSchemeRepository creates a new SchemeRepository with the provided database connection.
func NewSchemeRepository(db *sql.DB) *SchemeRepository {
	return &SchemeRepository{db: db}
}

// WithTx returns a new SchemeRepository scoped to the provided transaction.
func (r *SchemeRepository) WithTx(tx *sql.Tx) *SchemeRepository {
	return &SchemeRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *SchemeRepository) getQuerier() interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const schemeColumns = `id, name, fund_id, ticker, category, isin, created_at`

// GetScheme retrieves a single scheme by its ID.
// Returns ErrSchemeNotFound if no scheme with the given ID exists.
func (r *SchemeRepository) GetScheme(ctx context.Context, id string) (model.Scheme, error) {
	query := `SELECT ` + schemeColumns + ` FROM scheme WHERE id = ?`

	s, err := scanScheme(r.getQuerier().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Scheme{}, apperrors.ErrSchemeNotFound
	}
	if err != nil {
		return model.Scheme{}, fmt.Errorf("failed to get scheme: %w", err)
	}
	return s, nil
}

// GetSchemeByIdentity retrieves a scheme by its identity key.
// Returns ErrSchemeNotFound if no scheme carries the key.
func (r *SchemeRepository) GetSchemeByIdentity(ctx context.Context, identityKey string) (model.Scheme, error) {
	query := `SELECT ` + schemeColumns + ` FROM scheme WHERE identity_key = ?`

	s, err := scanScheme(r.getQuerier().QueryRowContext(ctx, query, identityKey))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Scheme{}, apperrors.ErrSchemeNotFound
	}
	if err != nil {
		return model.Scheme{}, fmt.Errorf("failed to get scheme by identity: %w", err)
	}
	return s, nil
}

// GetSchemes retrieves all schemes ordered by name.
// Returns an empty slice if no schemes exist.
func (r *SchemeRepository) GetSchemes(ctx context.Context) ([]model.Scheme, error) {
	query := `SELECT ` + schemeColumns + ` FROM scheme ORDER BY name ASC`

	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheme table: %w", err)
	}
	defer rows.Close()

	schemes := []model.Scheme{}
	for rows.Next() {
		s, err := scanScheme(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheme table results: %w", err)
		}
		schemes = append(schemes, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheme table: %w", err)
	}

	return schemes, nil
}

// GetSchemesByIDs retrieves the schemes for the given IDs keyed by ID.
func (r *SchemeRepository) GetSchemesByIDs(ctx context.Context, ids []string) (map[string]model.Scheme, error) {
	result := make(map[string]model.Scheme, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `SELECT ` + schemeColumns + ` FROM scheme WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheme table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanScheme(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheme table results: %w", err)
		}
		result[s.ID] = s
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheme table: %w", err)
	}

	return result, nil
}

// InsertScheme stores a new scheme.
// Returns ErrDuplicateEntry when a scheme with the same identity already exists.
func (r *SchemeRepository) InsertScheme(ctx context.Context, s *model.Scheme) error {
	query := `
		INSERT INTO scheme (id, name, fund_id, ticker, category, isin, identity_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identity_key) DO NOTHING
	`

	res, err := r.getQuerier().ExecContext(ctx, query,
		s.ID,
		s.Name,
		nullString(s.FundID),
		nullString(s.Ticker),
		nullString(s.Category),
		nullString(s.ISIN),
		s.IdentityKey(),
		s.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scheme: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if n == 0 {
		return apperrors.ErrDuplicateEntry
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheme(row rowScanner) (model.Scheme, error) {
	var s model.Scheme
	var fundID, ticker, category, isin sql.NullString
	var createdStr string

	err := row.Scan(
		&s.ID,
		&s.Name,
		&fundID,
		&ticker,
		&category,
		&isin,
		&createdStr,
	)
	if err != nil {
		return model.Scheme{}, err
	}

	s.FundID = fundID.String
	s.Ticker = ticker.String
	s.Category = category.String
	s.ISIN = isin.String

	s.CreatedAt, err = ParseTime(createdStr)
	if err != nil {
		return model.Scheme{}, err
	}
	return s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
