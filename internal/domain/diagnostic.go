package domain

import "fmt"

// Severity separates rejected rows from accepted rows that carry a warning.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a row-relative ingestion message. Row is the 1-based line of
// the source table (the header is row 1); zero means the whole file.
type Diagnostic struct {
	Row      int      `json:"row,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// RowError builds a hard diagnostic for a rejected row.
func RowError(row int, format string, args ...any) Diagnostic {
	return Diagnostic{Row: row, Severity: SeverityError, Message: fmt.Sprintf(format, args...)}
}

// RowWarning builds a soft diagnostic for an accepted row.
func RowWarning(row int, format string, args ...any) Diagnostic {
	return Diagnostic{Row: row, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)}
}

// IsWarning reports whether the diagnostic leaves its row accepted.
func (d Diagnostic) IsWarning() bool {
	return d.Severity == SeverityWarning
}

func (d Diagnostic) String() string {
	if d.Row > 0 {
		return fmt.Sprintf("Row %d: %s", d.Row, d.Message)
	}
	return d.Message
}
