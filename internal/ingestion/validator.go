package ingestion

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/rpattn/assetmap/internal/domain"
)

const outsideBoundsMessage = "Coordinates outside Scotland bounds (warning)"

// RowValidator turns one raw table row into a normalized asset record.
type RowValidator struct {
	fence domain.Geofence
}

// NewRowValidator creates a validator that warns about coordinates outside fence.
func NewRowValidator(fence domain.Geofence) *RowValidator {
	return &RowValidator{fence: fence}
}

// rowStep fills part of the record and returns a non-empty message when the
// row must be rejected.
type rowStep func(row map[string]string, rec *domain.AssetRecord) string

var rowSteps = []rowStep{
	parseCoordinates,
	parseCondition,
	parseIdentity,
	parseLastInspected,
}

// Validate runs the checks in order and stops at the first hard failure. An
// accepted row may still carry a geofence warning.
func (v *RowValidator) Validate(row map[string]string, rowNumber int) (*domain.AssetRecord, []domain.Diagnostic) {
	rec := domain.AssetRecord{
		AssetType: strings.TrimSpace(row["asset_type"]),
	}

	for _, step := range rowSteps {
		if msg := step(row, &rec); msg != "" {
			return nil, []domain.Diagnostic{domain.RowError(rowNumber, "%s", msg)}
		}
	}

	var diagnostics []domain.Diagnostic
	if !v.fence.Contains(rec.Latitude, rec.Longitude) {
		diagnostics = append(diagnostics, domain.RowWarning(rowNumber, "%s", outsideBoundsMessage))
	}
	return &rec, diagnostics
}

func parseCoordinates(row map[string]string, rec *domain.AssetRecord) string {
	lat, err := parseFloat(row["latitude"])
	if err != nil {
		return "Invalid coordinates"
	}
	lon, err := parseFloat(row["longitude"])
	if err != nil {
		return "Invalid coordinates"
	}
	rec.Latitude = lat
	rec.Longitude = lon
	return ""
}

func parseCondition(row map[string]string, rec *domain.AssetRecord) string {
	raw := row["condition"]
	condition := domain.Condition(strings.ToLower(strings.TrimSpace(raw)))
	if !condition.IsValid() {
		return `Invalid condition "` + raw + `"`
	}
	rec.Condition = condition
	return ""
}

func parseIdentity(row map[string]string, rec *domain.AssetRecord) string {
	assetID := strings.TrimSpace(row["asset_id"])
	name := strings.TrimSpace(row["name"])
	if assetID == "" || name == "" {
		return "asset_id and name are required"
	}
	rec.AssetID = assetID
	rec.Name = name
	return ""
}

func parseLastInspected(row map[string]string, rec *domain.AssetRecord) string {
	raw := strings.TrimSpace(row["last_inspected"])
	if raw == "" {
		rec.LastInspected = nil
		return ""
	}
	date, err := domain.ParseDate(raw)
	if err != nil {
		return "Invalid date format for last_inspected"
	}
	rec.LastInspected = &date
	return ""
}

var errNotFinite = errors.New("value is not a finite number")

// parseFloat accepts surrounding whitespace. NaN, infinities and values out of
// float64 range are rejected.
func parseFloat(raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errNotFinite
	}
	return value, nil
}
