package domain

import "strings"

// AssetFilter represents filtering options for listing assets. Empty fields
// do not filter.
type AssetFilter struct {
	Condition Condition
	AssetType string
	Search    string
}

// NewAssetFilter trims raw query values and lowercases the condition.
func NewAssetFilter(condition, assetType, search string) AssetFilter {
	return AssetFilter{
		Condition: Condition(strings.ToLower(strings.TrimSpace(condition))),
		AssetType: strings.TrimSpace(assetType),
		Search:    strings.TrimSpace(search),
	}
}

// Matches applies the filter to a single asset. Search is a case-insensitive
// substring match on Name or AssetID.
func (f AssetFilter) Matches(a Asset) bool {
	if f.Condition != "" && a.Condition != f.Condition {
		return false
	}
	if f.AssetType != "" && a.AssetType != f.AssetType {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(a.Name), needle) &&
			!strings.Contains(strings.ToLower(a.AssetID), needle) {
			return false
		}
	}
	return true
}
