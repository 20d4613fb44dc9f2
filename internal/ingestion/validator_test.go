package ingestion

import (
	"strings"
	"testing"

	"github.com/rpattn/assetmap/internal/domain"

	"github.com/google/go-cmp/cmp"
)

func validRow() map[string]string {
	return map[string]string{
		"asset_id":       " BR-001 ",
		"name":           " Forth Road Bridge ",
		"asset_type":     " Bridge ",
		"latitude":       " 56.0005",
		"longitude":      "-3.4053 ",
		"condition":      " GOOD ",
		"last_inspected": " 2024-01-15 ",
	}
}

func TestRowValidatorNormalizesValidRow(t *testing.T) {
	v := NewRowValidator(domain.ScotlandBounds)

	record, diagnostics := v.Validate(validRow(), 2)
	if len(diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diagnostics)
	}
	if record == nil {
		t.Fatalf("expected a record")
	}

	want := domain.AssetRecord{
		AssetID:       "BR-001",
		Name:          "Forth Road Bridge",
		AssetType:     "Bridge",
		Latitude:      56.0005,
		Longitude:     -3.4053,
		Condition:     domain.ConditionGood,
		LastInspected: &domain.Date{Year: 2024, Month: 1, Day: 15},
	}
	if diff := cmp.Diff(want, *record); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestRowValidatorEmptyLastInspected(t *testing.T) {
	row := validRow()
	row["last_inspected"] = "   "

	record, diagnostics := NewRowValidator(domain.ScotlandBounds).Validate(row, 2)
	if record == nil || len(diagnostics) != 0 {
		t.Fatalf("expected accepted row, got %v %v", record, diagnostics)
	}
	if record.LastInspected != nil {
		t.Fatalf("expected nil last_inspected, got %v", record.LastInspected)
	}

	delete(row, "last_inspected")
	record, _ = NewRowValidator(domain.ScotlandBounds).Validate(row, 2)
	if record == nil || record.LastInspected != nil {
		t.Fatalf("expected record without last_inspected, got %v", record)
	}
}

func TestRowValidatorHardFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(map[string]string)
		want   string
	}{
		{"bad latitude", func(r map[string]string) { r["latitude"] = "north" }, "Invalid coordinates"},
		{"empty longitude", func(r map[string]string) { r["longitude"] = "" }, "Invalid coordinates"},
		{"nan latitude", func(r map[string]string) { r["latitude"] = "NaN" }, "Invalid coordinates"},
		{"infinite longitude", func(r map[string]string) { r["longitude"] = "-inf" }, "Invalid coordinates"},
		{"infinity spelled out", func(r map[string]string) { r["latitude"] = "Infinity" }, "Invalid coordinates"},
		{"latitude out of float range", func(r map[string]string) { r["latitude"] = "1e400" }, "Invalid coordinates"},
		{"bad condition", func(r map[string]string) { r["condition"] = "excellent" }, `Invalid condition "excellent"`},
		{"empty condition", func(r map[string]string) { r["condition"] = "" }, "Invalid condition"},
		{"blank asset id", func(r map[string]string) { r["asset_id"] = "  " }, "asset_id and name are required"},
		{"blank name", func(r map[string]string) { r["name"] = "" }, "asset_id and name are required"},
		{"bad date", func(r map[string]string) { r["last_inspected"] = "15/01/2024" }, "Invalid date format for last_inspected"},
		{"impossible date", func(r map[string]string) { r["last_inspected"] = "2024-02-30" }, "Invalid date format for last_inspected"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := validRow()
			tc.mutate(row)

			record, diagnostics := NewRowValidator(domain.ScotlandBounds).Validate(row, 7)
			if record != nil {
				t.Fatalf("expected row to be rejected, got %+v", record)
			}
			if len(diagnostics) != 1 {
				t.Fatalf("expected one diagnostic, got %v", diagnostics)
			}
			d := diagnostics[0]
			if d.Row != 7 || d.Severity != domain.SeverityError {
				t.Fatalf("unexpected diagnostic %+v", d)
			}
			if !strings.Contains(d.Message, tc.want) {
				t.Fatalf("expected message containing %q, got %q", tc.want, d.Message)
			}
		})
	}
}

func TestRowValidatorFirstFailureWins(t *testing.T) {
	row := validRow()
	row["latitude"] = "x"
	row["condition"] = "excellent"
	row["asset_id"] = ""

	_, diagnostics := NewRowValidator(domain.ScotlandBounds).Validate(row, 3)
	if len(diagnostics) != 1 || !strings.Contains(diagnostics[0].Message, "Invalid coordinates") {
		t.Fatalf("expected coordinate failure only, got %v", diagnostics)
	}
}

func TestRowValidatorGeofenceWarning(t *testing.T) {
	row := validRow()
	row["latitude"] = "51.5"
	row["longitude"] = "-0.1"

	record, diagnostics := NewRowValidator(domain.ScotlandBounds).Validate(row, 4)
	if record == nil {
		t.Fatalf("expected record to be kept despite geofence")
	}
	if len(diagnostics) != 1 || !diagnostics[0].IsWarning() {
		t.Fatalf("expected a single warning, got %v", diagnostics)
	}
	if !strings.Contains(diagnostics[0].Message, "bounds") {
		t.Fatalf("expected bounds message, got %q", diagnostics[0].Message)
	}
}

func TestParseFloatRejectsNonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "nan", "inf", "+Inf", "-infinity", "1e400", "-1e400"} {
		if value, err := parseFloat(raw); err == nil {
			t.Fatalf("parseFloat(%q) = %v, expected error", raw, value)
		}
	}

	value, err := parseFloat(" -3.4053 ")
	if err != nil || value != -3.4053 {
		t.Fatalf("expected -3.4053, got %v (%v)", value, err)
	}
}
