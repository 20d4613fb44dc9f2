package repository

import (
	"fmt"
	"time"

	"github.com/rpattn/assetmap/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assetRow is the gorm mapping of the assets table. Dates are kept as
// YYYY-MM-DD text so the SQLite driver never reinterprets them.
type assetRow struct {
	ID            string    `gorm:"primaryKey;size:36"`
	AssetID       string    `gorm:"size:100;not null;uniqueIndex"`
	Name          string    `gorm:"size:200;not null"`
	AssetType     string    `gorm:"size:100;not null;index"`
	Latitude      float64   `gorm:"not null"`
	Longitude     float64   `gorm:"not null"`
	Condition     string    `gorm:"size:20;not null;index"`
	LastInspected *string   `gorm:"size:10"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (assetRow) TableName() string { return "assets" }

type ingestionLogRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	IngestionID string `gorm:"size:36;not null;index"`
	FileName    string `gorm:"not null"`
	RowNumber   *int
	Severity    string    `gorm:"size:10;not null"`
	Message     string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (ingestionLogRow) TableName() string { return "ingestion_logs" }

// MigrateGorm creates or updates the tables used by the gorm repositories.
func MigrateGorm(db *gorm.DB) error {
	if err := db.AutoMigrate(&assetRow{}, &ingestionLogRow{}); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}

func newAssetRow(a domain.Asset) assetRow {
	row := assetRow{
		ID:        a.ID.String(),
		AssetID:   a.AssetID,
		Name:      a.Name,
		AssetType: a.AssetType,
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
		Condition: string(a.Condition),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	row.LastInspected = dateText(a.LastInspected)
	return row
}

func (r assetRow) toDomain() (domain.Asset, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("invalid asset id %q: %w", r.ID, err)
	}
	asset := domain.Asset{
		ID:        id,
		AssetID:   r.AssetID,
		Name:      r.Name,
		AssetType: r.AssetType,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Condition: domain.Condition(r.Condition),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.LastInspected != nil && *r.LastInspected != "" {
		d, err := domain.ParseDate(*r.LastInspected)
		if err != nil {
			return domain.Asset{}, fmt.Errorf("asset %s: %w", r.AssetID, err)
		}
		asset.LastInspected = &d
	}
	return asset, nil
}

func dateText(d *domain.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
