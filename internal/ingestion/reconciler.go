package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/assetmap/internal/domain"
	"github.com/rpattn/assetmap/internal/repository"
)

// ReconcileResult counts the records written by Reconcile.
type ReconcileResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Reconcile upserts records in order: an existing asset_id has its fields
// replaced, an unknown one is inserted. On failure the counts cover only the
// records handled before it.
func Reconcile(ctx context.Context, repo repository.AssetRepository, records []domain.AssetRecord) (ReconcileResult, error) {
	var result ReconcileResult

	for _, record := range records {
		existing, err := repo.FindByAssetID(ctx, record.AssetID)
		switch {
		case err == nil:
			if _, err := repo.ReplaceFields(ctx, existing, record); err != nil {
				return result, fmt.Errorf("failed to update asset %s: %w", record.AssetID, err)
			}
			result.Updated++
		case errors.Is(err, repository.ErrNotFound):
			if _, err := repo.Insert(ctx, record); err != nil {
				return result, fmt.Errorf("failed to insert asset %s: %w", record.AssetID, err)
			}
			result.Created++
		default:
			return result, fmt.Errorf("failed to look up asset %s: %w", record.AssetID, err)
		}
	}

	return result, nil
}
