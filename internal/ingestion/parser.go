package ingestion

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rpattn/assetmap/internal/domain"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrInvalidEncoding is returned when a CSV upload is not UTF-8 text.
	ErrInvalidEncoding = errors.New("file is not valid UTF-8")
	// ErrMalformedFile is returned when an upload cannot be read as a table.
	ErrMalformedFile = errors.New("malformed file")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	// RequiredColumns must all be present in the header row.
	RequiredColumns = []string{"asset_id", "name", "asset_type", "latitude", "longitude", "condition"}
)

// ParseResult holds the validated records and every diagnostic raised while
// reading an upload, both in source row order.
type ParseResult struct {
	TotalRows   int
	Records     []domain.AssetRecord
	Diagnostics []domain.Diagnostic
}

// Rejected reports whether the upload produced diagnostics but nothing to store.
func (r ParseResult) Rejected() bool {
	return len(r.Records) == 0 && len(r.Diagnostics) > 0
}

// Pipeline parses uploads and runs each data row through a RowValidator. It
// never touches storage.
type Pipeline struct {
	validator *RowValidator
}

// NewPipeline creates a pipeline around validator.
func NewPipeline(validator *RowValidator) *Pipeline {
	return &Pipeline{validator: validator}
}

// Parse dispatches on the file extension. Files without an extension are
// read as CSV.
func (p *Pipeline) Parse(fileName string, r io.Reader) (ParseResult, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv", "":
		return p.ParseCSV(r)
	case ".xlsx":
		return p.ParseWorkbook(r)
	default:
		return ParseResult{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// ParseCSV reads comma-delimited UTF-8 text with a header row. A leading byte
// order mark is ignored.
func (p *Pipeline) ParseCSV(r io.Reader) (ParseResult, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to read upload: %w", err)
	}

	payload = bytes.TrimPrefix(payload, byteOrderMark)
	if !utf8.Valid(payload) {
		return ParseResult{}, ErrInvalidEncoding
	}

	csvReader := csv.NewReader(bytes.NewReader(payload))
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	records, err := csvReader.ReadAll()
	if err != nil {
		return ParseResult{}, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	return p.validateTable(records), nil
}

// ParseWorkbook reads the first sheet of an XLSX workbook with the same header
// and row rules as ParseCSV.
func (p *Pipeline) ParseWorkbook(r io.Reader) (ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ParseResult{}, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ParseResult{}, fmt.Errorf("%w: workbook has no sheets", ErrMalformedFile)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	// GetRows keeps interior empty rows; drop them the way the CSV reader
	// drops blank lines.
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		table = append(table, row)
	}
	return p.validateTable(table), nil
}

func (p *Pipeline) validateTable(records [][]string) ParseResult {
	result := ParseResult{
		Records:     []domain.AssetRecord{},
		Diagnostics: []domain.Diagnostic{},
	}

	var headers []string
	if len(records) > 0 {
		headers = sanitizeHeaders(records[0])
	}

	if missing := missingColumns(headers); len(missing) > 0 {
		result.Diagnostics = append(result.Diagnostics, domain.Diagnostic{
			Severity: domain.SeverityError,
			Message:  "Missing required columns: " + strings.Join(missing, ", "),
		})
		return result
	}

	for rowIdx, row := range records[1:] {
		rowNumber := rowIdx + 2 // header is row 1
		result.TotalRows++

		record, diagnostics := p.validator.Validate(rowValues(headers, row), rowNumber)
		if record != nil {
			result.Records = append(result.Records, *record)
		}
		result.Diagnostics = append(result.Diagnostics, diagnostics...)
	}

	return result
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for idx, value := range raw {
		headers[idx] = strings.TrimSpace(value)
	}
	return headers
}

func missingColumns(headers []string) []string {
	present := make(map[string]struct{}, len(headers))
	for _, header := range headers {
		present[header] = struct{}{}
	}

	var missing []string
	for _, column := range RequiredColumns {
		if _, ok := present[column]; !ok {
			missing = append(missing, column)
		}
	}
	sort.Strings(missing)
	return missing
}

// rowValues maps header names to cell values. Cells past the header are
// ignored and missing cells read as empty. A repeated header keeps its last
// value.
func rowValues(headers []string, row []string) map[string]string {
	values := make(map[string]string, len(headers))
	for colIdx, header := range headers {
		if colIdx < len(row) {
			values[header] = row[colIdx]
		} else {
			values[header] = ""
		}
	}
	return values
}
