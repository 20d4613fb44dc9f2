package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rpattn/assetmap/internal/domain"
	"github.com/rpattn/assetmap/internal/events"
	"github.com/rpattn/assetmap/internal/metrics"
	"github.com/rpattn/assetmap/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Service ingests asset uploads into the asset store.
type Service struct {
	pipeline  *Pipeline
	store     repository.AssetStore
	logRepo   repository.IngestionLogRepository
	publisher events.Publisher
	metrics   *metrics.Ingestion
	log       logrus.FieldLogger
}

// NewService creates a new ingestion service. logRepo, publisher and recorder
// may be nil.
func NewService(
	store repository.AssetStore,
	logRepo repository.IngestionLogRepository,
	publisher events.Publisher,
	recorder *metrics.Ingestion,
	log logrus.FieldLogger,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		pipeline:  NewPipeline(NewRowValidator(domain.ScotlandBounds)),
		store:     store,
		logRepo:   logRepo,
		publisher: publisher,
		metrics:   recorder,
		log:       log,
	}
}

// Request describes the ingestion input.
type Request struct {
	FileName string
	Data     io.Reader
}

// Summary reports the outcome of one upload.
type Summary struct {
	IngestionID uuid.UUID           `json:"ingestionId"`
	FileName    string              `json:"fileName"`
	TotalRows   int                 `json:"totalRows"`
	Created     int                 `json:"created"`
	Updated     int                 `json:"updated"`
	Rejected    int                 `json:"rejected"`
	Warnings    int                 `json:"warnings"`
	Committed   bool                `json:"committed"`
	Message     string              `json:"message,omitempty"`
	Diagnostics []domain.Diagnostic `json:"diagnostics"`
}

// Ingest parses and validates the upload and upserts every accepted record
// in a single transaction. Uploads that yield diagnostics but no records are
// not written at all.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	started := time.Now()
	summary := Summary{
		IngestionID: uuid.New(),
		FileName:    req.FileName,
		Diagnostics: []domain.Diagnostic{},
	}

	if req.Data == nil {
		return summary, errors.New("data reader is required")
	}

	entry := s.log.WithFields(logrus.Fields{
		"ingestion_id": summary.IngestionID,
		"file_name":    req.FileName,
	})

	parsed, err := s.pipeline.Parse(req.FileName, req.Data)
	if err != nil {
		s.metrics.ObserveUpload("failed", started)
		return summary, err
	}

	summary.TotalRows = parsed.TotalRows
	summary.Diagnostics = parsed.Diagnostics
	for _, d := range parsed.Diagnostics {
		if d.IsWarning() {
			summary.Warnings++
		} else if d.Row > 0 {
			summary.Rejected++
		}
		s.metrics.AddDiagnostic(string(d.Severity))
	}
	s.metrics.AddRows(len(parsed.Records), summary.Rejected)
	s.recordDiagnostics(ctx, summary.IngestionID, req.FileName, parsed.Diagnostics)

	if parsed.Rejected() {
		entry.WithField("diagnostics", len(parsed.Diagnostics)).Warn("upload rejected")
		s.metrics.ObserveUpload("rejected", started)
		return summary, nil
	}

	var result ReconcileResult
	err = s.store.RunInTx(ctx, func(repo repository.AssetRepository) error {
		var reconcileErr error
		result, reconcileErr = Reconcile(ctx, repo, parsed.Records)
		return reconcileErr
	})
	if err != nil {
		entry.WithError(err).Error("reconciliation failed")
		s.metrics.ObserveUpload("failed", started)
		return summary, fmt.Errorf("failed to store assets: %w", err)
	}

	summary.Created = result.Created
	summary.Updated = result.Updated
	summary.Committed = true
	summary.Message = fmt.Sprintf("Successfully imported %d new and updated %d existing assets.", result.Created, result.Updated)
	s.metrics.AddReconciled(result.Created, result.Updated)
	s.metrics.ObserveUpload("committed", started)

	entry.WithFields(logrus.Fields{
		"created":  result.Created,
		"updated":  result.Updated,
		"rejected": summary.Rejected,
		"warnings": summary.Warnings,
	}).Info("upload committed")

	s.publish(ctx, summary, parsed.Records)
	return summary, nil
}

// Logs returns the diagnostics recorded for an earlier upload.
func (s *Service) Logs(ctx context.Context, ingestionID uuid.UUID) ([]domain.IngestionLogEntry, error) {
	if s.logRepo == nil {
		return []domain.IngestionLogEntry{}, nil
	}
	return s.logRepo.List(ctx, ingestionID)
}

func (s *Service) recordDiagnostics(ctx context.Context, ingestionID uuid.UUID, fileName string, diagnostics []domain.Diagnostic) {
	if s.logRepo == nil {
		return
	}
	for _, d := range diagnostics {
		if err := s.logRepo.Record(ctx, domain.NewIngestionLogEntry(ingestionID, fileName, d)); err != nil {
			s.log.WithError(err).WithField("ingestion_id", ingestionID).Warn("failed to record ingestion diagnostic")
			return
		}
	}
}

func (s *Service) publish(ctx context.Context, summary Summary, records []domain.AssetRecord) {
	assetIDs := make([]string, 0, len(records))
	for _, record := range records {
		assetIDs = append(assetIDs, record.AssetID)
	}

	err := s.publisher.PublishAssetsIngested(ctx, events.AssetsIngested{
		IngestionID: summary.IngestionID,
		FileName:    summary.FileName,
		Created:     summary.Created,
		Updated:     summary.Updated,
		Warnings:    summary.Warnings,
		Rejected:    summary.Rejected,
		AssetIDs:    assetIDs,
	})
	if err != nil {
		s.log.WithError(err).WithField("ingestion_id", summary.IngestionID).Warn("failed to publish ingestion event")
	}
}
