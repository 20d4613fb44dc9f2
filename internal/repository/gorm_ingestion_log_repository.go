package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/assetmap/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormIngestionLogRepository struct {
	db *gorm.DB
}

// NewGormIngestionLogRepository wires an ingestion log repository backed by gorm.
func NewGormIngestionLogRepository(db *gorm.DB) IngestionLogRepository {
	return &gormIngestionLogRepository{db: db}
}

func (r *gormIngestionLogRepository) Record(ctx context.Context, entry domain.IngestionLogEntry) error {
	row := ingestionLogRow{
		ID:          entry.ID.String(),
		IngestionID: entry.IngestionID.String(),
		FileName:    entry.FileName,
		RowNumber:   entry.RowNumber,
		Severity:    string(entry.Severity),
		Message:     entry.Message,
		CreatedAt:   entry.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record ingestion log: %w", err)
	}
	return nil
}

func (r *gormIngestionLogRepository) List(ctx context.Context, ingestionID uuid.UUID) ([]domain.IngestionLogEntry, error) {
	var rows []ingestionLogRow
	err := r.db.WithContext(ctx).
		Where("ingestion_id = ?", ingestionID.String()).
		Order(`"row_number" IS NOT NULL, "row_number", created_at`).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion logs: %w", err)
	}

	logs := make([]domain.IngestionLogEntry, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid ingestion log id %q: %w", row.ID, err)
		}
		logs = append(logs, domain.IngestionLogEntry{
			ID:          id,
			IngestionID: ingestionID,
			FileName:    row.FileName,
			RowNumber:   row.RowNumber,
			Severity:    domain.Severity(row.Severity),
			Message:     row.Message,
			CreatedAt:   row.CreatedAt,
		})
	}
	return logs, nil
}
