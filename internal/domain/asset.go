package domain

import (
	"time"

	"github.com/google/uuid"
)

// Condition is the inspected state of an asset.
type Condition string

const (
	ConditionGood     Condition = "good"
	ConditionModerate Condition = "moderate"
	ConditionPoor     Condition = "poor"
)

// Conditions lists every accepted condition in display order.
var Conditions = []Condition{ConditionGood, ConditionModerate, ConditionPoor}

// IsValid reports whether c is one of the accepted conditions.
func (c Condition) IsValid() bool {
	switch c {
	case ConditionGood, ConditionModerate, ConditionPoor:
		return true
	}
	return false
}

// AssetRecord is a validated, normalized row produced by ingestion. It carries
// every mutable asset field but no identity or timestamps.
type AssetRecord struct {
	AssetID       string    `json:"asset_id"`
	Name          string    `json:"name"`
	AssetType     string    `json:"asset_type"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Condition     Condition `json:"condition"`
	LastInspected *Date     `json:"last_inspected"`
}

// Asset is a persisted infrastructure asset keyed by AssetID.
type Asset struct {
	ID            uuid.UUID `json:"-"`
	AssetID       string    `json:"asset_id"`
	Name          string    `json:"name"`
	AssetType     string    `json:"asset_type"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Condition     Condition `json:"condition"`
	LastInspected *Date     `json:"last_inspected"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewAsset creates a new asset from an ingested record.
func NewAsset(record AssetRecord) Asset {
	now := time.Now().UTC()
	return Asset{
		ID:            uuid.New(),
		AssetID:       record.AssetID,
		Name:          record.Name,
		AssetType:     record.AssetType,
		Latitude:      record.Latitude,
		Longitude:     record.Longitude,
		Condition:     record.Condition,
		LastInspected: copyDate(record.LastInspected),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// WithRecord returns a copy of the asset with every mutable field replaced by
// the record's values. ID, AssetID and CreatedAt are kept.
func (a Asset) WithRecord(record AssetRecord) Asset {
	return Asset{
		ID:            a.ID,
		AssetID:       a.AssetID,
		Name:          record.Name,
		AssetType:     record.AssetType,
		Latitude:      record.Latitude,
		Longitude:     record.Longitude,
		Condition:     record.Condition,
		LastInspected: copyDate(record.LastInspected),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     time.Now().UTC(),
	}
}

// Record returns the mutable portion of the asset.
func (a Asset) Record() AssetRecord {
	return AssetRecord{
		AssetID:       a.AssetID,
		Name:          a.Name,
		AssetType:     a.AssetType,
		Latitude:      a.Latitude,
		Longitude:     a.Longitude,
		Condition:     a.Condition,
		LastInspected: copyDate(a.LastInspected),
	}
}

func copyDate(d *Date) *Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
