package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/assetmap/internal/domain"

	"gorm.io/gorm"
)

// gormAssetRepository implements AssetStore on any gorm dialect; the server
// uses it with the embedded SQLite driver.
type gormAssetRepository struct {
	db *gorm.DB
}

// NewGormAssetRepository creates an asset store backed by gorm.
func NewGormAssetRepository(db *gorm.DB) AssetStore {
	return &gormAssetRepository{db: db}
}

func (r *gormAssetRepository) RunInTx(ctx context.Context, fn func(repo AssetRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormAssetRepository{db: tx})
	})
}

func (r *gormAssetRepository) FindByAssetID(ctx context.Context, assetID string) (domain.Asset, error) {
	var row assetRow
	err := r.db.WithContext(ctx).Where("asset_id = ?", assetID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Asset{}, ErrNotFound
	}
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to get asset: %w", err)
	}
	return row.toDomain()
}

func (r *gormAssetRepository) Insert(ctx context.Context, record domain.AssetRecord) (domain.Asset, error) {
	asset := domain.NewAsset(record)
	row := newAssetRow(asset)

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateKey(err) {
			return domain.Asset{}, fmt.Errorf("%w: %s", ErrDuplicateAssetID, record.AssetID)
		}
		return domain.Asset{}, fmt.Errorf("failed to create asset: %w", err)
	}
	return asset, nil
}

func (r *gormAssetRepository) ReplaceFields(ctx context.Context, existing domain.Asset, record domain.AssetRecord) (domain.Asset, error) {
	updated := existing.WithRecord(record)

	result := r.db.WithContext(ctx).
		Model(&assetRow{}).
		Where("id = ?", updated.ID.String()).
		Updates(map[string]any{
			"name":           updated.Name,
			"asset_type":     updated.AssetType,
			"latitude":       updated.Latitude,
			"longitude":      updated.Longitude,
			"condition":      string(updated.Condition),
			"last_inspected": dateText(updated.LastInspected),
			"updated_at":     updated.UpdatedAt,
		})
	if result.Error != nil {
		return domain.Asset{}, fmt.Errorf("failed to update asset: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.Asset{}, ErrNotFound
	}
	return updated, nil
}

func (r *gormAssetRepository) Query(ctx context.Context, filter domain.AssetFilter) ([]domain.Asset, error) {
	query := r.db.WithContext(ctx).Model(&assetRow{})
	if filter.Condition != "" {
		query = query.Where("condition = ?", string(filter.Condition))
	}
	if filter.AssetType != "" {
		query = query.Where("asset_type = ?", filter.AssetType)
	}
	if filter.Search != "" {
		like := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
		query = query.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(asset_id) LIKE ? ESCAPE '\')`, like, like)
	}

	var rows []assetRow
	if err := query.Order("asset_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}

	assets := make([]domain.Asset, 0, len(rows))
	for _, row := range rows {
		asset, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func (r *gormAssetRepository) ListTypes(ctx context.Context) ([]string, error) {
	types := []string{}
	err := r.db.WithContext(ctx).
		Model(&assetRow{}).
		Distinct().
		Order("asset_type").
		Pluck("asset_type", &types).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list asset types: %w", err)
	}
	return types, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
