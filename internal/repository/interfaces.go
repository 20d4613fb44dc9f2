package repository

import (
	"context"
	"errors"

	"github.com/rpattn/assetmap/internal/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no asset carries the requested asset_id.
	ErrNotFound = errors.New("asset not found")
	// ErrDuplicateAssetID is returned when an insert collides with an existing asset_id.
	ErrDuplicateAssetID = errors.New("asset_id already exists")
)

// AssetRepository defines the keyed asset collection.
type AssetRepository interface {
	FindByAssetID(ctx context.Context, assetID string) (domain.Asset, error)
	Insert(ctx context.Context, record domain.AssetRecord) (domain.Asset, error)
	ReplaceFields(ctx context.Context, existing domain.Asset, record domain.AssetRecord) (domain.Asset, error)
	Query(ctx context.Context, filter domain.AssetFilter) ([]domain.Asset, error)
	ListTypes(ctx context.Context) ([]string, error)
}

// UnitOfWork runs fn against a repository bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(repo AssetRepository) error) error
}

// AssetStore is an asset repository that can also open transactions.
type AssetStore interface {
	AssetRepository
	UnitOfWork
}

// IngestionLogRepository stores ingestion diagnostics for later inspection.
type IngestionLogRepository interface {
	Record(ctx context.Context, entry domain.IngestionLogEntry) error
	List(ctx context.Context, ingestionID uuid.UUID) ([]domain.IngestionLogEntry, error)
}
