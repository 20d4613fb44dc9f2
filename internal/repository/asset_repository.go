package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/assetmap/internal/db"
	"github.com/rpattn/assetmap/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const uniqueViolation = "23505"

const assetColumns = `id, asset_id, name, asset_type, latitude, longitude, condition, last_inspected, created_at, updated_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// assetRepository implements AssetStore on PostgreSQL.
type assetRepository struct {
	conn *db.Connection
	q    querier
}

// NewAssetRepository creates an asset store backed by the connection pool.
func NewAssetRepository(conn *db.Connection) AssetStore {
	return &assetRepository{conn: conn, q: conn.Pool}
}

func (r *assetRepository) RunInTx(ctx context.Context, fn func(repo AssetRepository) error) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&assetRepository{conn: r.conn, q: tx})
	})
}

// FindByAssetID retrieves an asset by its caller-supplied key
func (r *assetRepository) FindByAssetID(ctx context.Context, assetID string) (domain.Asset, error) {
	row := r.q.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE asset_id = $1`, assetID)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Asset{}, ErrNotFound
		}
		return domain.Asset{}, fmt.Errorf("failed to get asset: %w", err)
	}
	return asset, nil
}

// Insert creates a new asset with a fresh created_at
func (r *assetRepository) Insert(ctx context.Context, record domain.AssetRecord) (domain.Asset, error) {
	asset := domain.NewAsset(record)

	_, err := r.q.Exec(
		ctx,
		`INSERT INTO assets (`+assetColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		asset.ID,
		asset.AssetID,
		asset.Name,
		asset.AssetType,
		asset.Latitude,
		asset.Longitude,
		string(asset.Condition),
		toPgDate(asset.LastInspected),
		asset.CreatedAt,
		asset.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Asset{}, fmt.Errorf("%w: %s", ErrDuplicateAssetID, record.AssetID)
		}
		return domain.Asset{}, fmt.Errorf("failed to create asset: %w", err)
	}
	return asset, nil
}

// ReplaceFields overwrites every mutable column of existing
func (r *assetRepository) ReplaceFields(ctx context.Context, existing domain.Asset, record domain.AssetRecord) (domain.Asset, error) {
	updated := existing.WithRecord(record)

	tag, err := r.q.Exec(
		ctx,
		`UPDATE assets
		 SET name = $2, asset_type = $3, latitude = $4, longitude = $5,
		     condition = $6, last_inspected = $7, updated_at = $8
		 WHERE id = $1`,
		updated.ID,
		updated.Name,
		updated.AssetType,
		updated.Latitude,
		updated.Longitude,
		string(updated.Condition),
		toPgDate(updated.LastInspected),
		updated.UpdatedAt,
	)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Asset{}, ErrNotFound
	}
	return updated, nil
}

// Query lists assets matching the filter ordered by asset_id
func (r *assetRepository) Query(ctx context.Context, filter domain.AssetFilter) ([]domain.Asset, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Condition != "" {
		args = append(args, string(filter.Condition))
		clauses = append(clauses, fmt.Sprintf("condition = $%d", len(args)))
	}
	if filter.AssetType != "" {
		args = append(args, filter.AssetType)
		clauses = append(clauses, fmt.Sprintf("asset_type = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR asset_id ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + assetColumns + ` FROM assets`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY asset_id"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := []domain.Asset{}
	for rows.Next() {
		asset, scanErr := scanAsset(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", scanErr)
		}
		assets = append(assets, asset)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate assets: %w", rowsErr)
	}
	return assets, nil
}

// ListTypes returns the distinct asset types in alphabetical order
func (r *assetRepository) ListTypes(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT DISTINCT asset_type FROM assets ORDER BY asset_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset types: %w", err)
	}
	types, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan asset types: %w", err)
	}
	return types, nil
}

func scanAsset(row pgx.Row) (domain.Asset, error) {
	var (
		asset         domain.Asset
		condition     string
		lastInspected pgtype.Date
		createdAt     pgtype.Timestamptz
		updatedAt     pgtype.Timestamptz
	)
	if err := row.Scan(
		&asset.ID,
		&asset.AssetID,
		&asset.Name,
		&asset.AssetType,
		&asset.Latitude,
		&asset.Longitude,
		&condition,
		&lastInspected,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Asset{}, err
	}

	asset.Condition = domain.Condition(condition)
	if lastInspected.Valid {
		d := domain.DateOf(lastInspected.Time)
		asset.LastInspected = &d
	}
	if createdAt.Valid {
		asset.CreatedAt = createdAt.Time.UTC()
	}
	if updatedAt.Valid {
		asset.UpdatedAt = updatedAt.Time.UTC()
	}
	return asset, nil
}

func toPgDate(d *domain.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time(), Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
