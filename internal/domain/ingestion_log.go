package domain

import (
	"time"

	"github.com/google/uuid"
)

// IngestionLogEntry captures a diagnostic raised while ingesting an upload.
type IngestionLogEntry struct {
	ID          uuid.UUID `json:"id"`
	IngestionID uuid.UUID `json:"ingestion_id"`
	FileName    string    `json:"file_name"`
	RowNumber   *int      `json:"row_number,omitempty"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewIngestionLogEntry converts a diagnostic into a log entry.
func NewIngestionLogEntry(ingestionID uuid.UUID, fileName string, d Diagnostic) IngestionLogEntry {
	entry := IngestionLogEntry{
		ID:          uuid.New(),
		IngestionID: ingestionID,
		FileName:    fileName,
		Severity:    d.Severity,
		Message:     d.Message,
		CreatedAt:   time.Now().UTC(),
	}
	if d.Row > 0 {
		row := d.Row
		entry.RowNumber = &row
	}
	return entry
}
