package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/assetmap/internal/domain"
	"github.com/rpattn/assetmap/internal/repository"
)

// Service answers read queries over stored assets.
type Service struct {
	repo repository.AssetRepository
}

// NewService creates a query service backed by repo.
func NewService(repo repository.AssetRepository) *Service {
	return &Service{repo: repo}
}

// Query returns the assets matching filter ordered by asset_id. An unknown
// condition matches nothing rather than failing.
func (s *Service) Query(ctx context.Context, filter domain.AssetFilter) ([]domain.Asset, error) {
	if filter.Condition != "" && !filter.Condition.IsValid() {
		return []domain.Asset{}, nil
	}
	assets, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	if assets == nil {
		assets = []domain.Asset{}
	}
	return assets, nil
}

// Get returns the asset with the given asset_id or repository.ErrNotFound.
func (s *Service) Get(ctx context.Context, assetID string) (domain.Asset, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return domain.Asset{}, repository.ErrNotFound
	}
	return s.repo.FindByAssetID(ctx, assetID)
}

// Types lists the distinct asset types in storage, sorted.
func (s *Service) Types(ctx context.Context) ([]string, error) {
	types, err := s.repo.ListTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset types: %w", err)
	}
	if types == nil {
		types = []string{}
	}
	return types, nil
}
