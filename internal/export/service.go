package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rpattn/assetmap/internal/domain"
	"github.com/rpattn/assetmap/internal/repository"

	"github.com/sirupsen/logrus"
)

// Columns is the header written by the exporter. It is accepted unchanged by
// the upload pipeline.
var Columns = []string{"asset_id", "name", "asset_type", "latitude", "longitude", "condition", "last_inspected"}

// Result reports what an export wrote.
type Result struct {
	Rows  int
	Bytes int64
}

// Service streams stored assets as CSV.
type Service struct {
	repo repository.AssetRepository
	log  logrus.FieldLogger
}

// NewService creates an exporter backed by repo.
func NewService(repo repository.AssetRepository, log logrus.FieldLogger) *Service {
	return &Service{repo: repo, log: log}
}

// WriteCSV writes every asset matching filter to w, ordered by asset_id.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer, filter domain.AssetFilter) (Result, error) {
	assets, err := s.repo.Query(ctx, filter)
	if err != nil {
		return Result{}, fmt.Errorf("list assets: %w", err)
	}

	buffered := bufio.NewWriterSize(w, 64<<10)
	counter := &countingWriter{writer: buffered}
	csvWriter := csv.NewWriter(counter)

	if err := csvWriter.Write(Columns); err != nil {
		return Result{}, fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(Columns))
	result := Result{}
	for _, asset := range assets {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		fillRow(row, asset)
		if err := csvWriter.Write(row); err != nil {
			return result, fmt.Errorf("write asset %s: %w", asset.AssetID, err)
		}
		result.Rows++
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return result, fmt.Errorf("flush csv: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return result, fmt.Errorf("flush buffered output: %w", err)
	}
	result.Bytes = counter.count

	s.log.WithFields(logrus.Fields{"rows": result.Rows, "bytes": result.Bytes}).Debug("asset export written")
	return result, nil
}

func fillRow(row []string, asset domain.Asset) {
	row[0] = asset.AssetID
	row[1] = asset.Name
	row[2] = asset.AssetType
	row[3] = strconv.FormatFloat(asset.Latitude, 'f', -1, 64)
	row[4] = strconv.FormatFloat(asset.Longitude, 'f', -1, 64)
	row[5] = string(asset.Condition)
	row[6] = ""
	if asset.LastInspected != nil {
		row[6] = asset.LastInspected.String()
	}
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}
