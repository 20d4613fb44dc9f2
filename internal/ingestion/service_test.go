package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rpattn/assetmap/internal/db"
	"github.com/rpattn/assetmap/internal/domain"
	"github.com/rpattn/assetmap/internal/events"
	"github.com/rpattn/assetmap/internal/metrics"
	"github.com/rpattn/assetmap/internal/repository"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
)

const bridgeCSV = "asset_id,name,asset_type,latitude,longitude,condition,last_inspected\n" +
	"BR-001,Forth Road Bridge,Bridge,56.0005,-3.4053,good,2024-01-15\n"

type testEnv struct {
	service   *Service
	store     repository.AssetStore
	logs      repository.IngestionLogRepository
	publisher *capturePublisher
	registry  *prometheus.Registry
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.CloseSQLite(gdb) })
	if err := repository.MigrateGorm(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	log, _ := test.NewNullLogger()
	env := testEnv{
		store:     repository.NewGormAssetRepository(gdb),
		logs:      repository.NewGormIngestionLogRepository(gdb),
		publisher: &capturePublisher{},
		registry:  prometheus.NewRegistry(),
	}
	env.service = NewService(env.store, env.logs, env.publisher, metrics.NewIngestion(env.registry), log)
	return env
}

func ingest(t *testing.T, s *Service, fileName, data string) Summary {
	t.Helper()
	summary, err := s.Ingest(context.Background(), Request{FileName: fileName, Data: strings.NewReader(data)})
	if err != nil {
		t.Fatalf("ingest returned error: %v", err)
	}
	return summary
}

func TestServiceIngestEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	first := ingest(t, env.service, "assets.csv", bridgeCSV)
	if !first.Committed || first.Created != 1 || first.Updated != 0 || len(first.Diagnostics) != 0 {
		t.Fatalf("unexpected first summary: %+v", first)
	}
	if first.Message != "Successfully imported 1 new and updated 0 existing assets." {
		t.Fatalf("unexpected message %q", first.Message)
	}

	second := ingest(t, env.service, "assets.csv", bridgeCSV)
	if second.Created != 0 || second.Updated != 1 {
		t.Fatalf("unexpected second summary: %+v", second)
	}

	assets, err := env.store.Query(context.Background(), domain.AssetFilter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("expected a single stored asset, got %d", len(assets))
	}

	date := domain.Date{Year: 2024, Month: 1, Day: 15}
	want := domain.AssetRecord{
		AssetID:       "BR-001",
		Name:          "Forth Road Bridge",
		AssetType:     "Bridge",
		Latitude:      56.0005,
		Longitude:     -3.4053,
		Condition:     domain.ConditionGood,
		LastInspected: &date,
	}
	if diff := cmp.Diff(want, assets[0].Record()); diff != "" {
		t.Fatalf("stored asset mismatch (-want +got):\n%s", diff)
	}

	if len(env.publisher.events) != 2 {
		t.Fatalf("expected an event per committed upload, got %d", len(env.publisher.events))
	}
	if diff := cmp.Diff([]string{"BR-001"}, env.publisher.events[0].AssetIDs); diff != "" {
		t.Fatalf("event asset ids mismatch (-want +got):\n%s", diff)
	}
	if got := uploadCount(t, env.registry, "committed"); got != 2 {
		t.Fatalf("expected 2 committed uploads, got %v", got)
	}
}

func TestServiceIngestUpsertKeepsCreatedAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ingest(t, env.service, "assets.csv", bridgeCSV)
	before, err := env.store.FindByAssetID(ctx, "BR-001")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}

	updated := "asset_id,name,asset_type,latitude,longitude,condition\n" +
		"BR-001,Forth Bridge (old),Suspension Bridge,56.01,-3.41,Poor\n"
	summary := ingest(t, env.service, "assets.csv", updated)
	if summary.Updated != 1 {
		t.Fatalf("expected update, got %+v", summary)
	}

	after, err := env.store.FindByAssetID(ctx, "BR-001")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if after.ID != before.ID || !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("expected identity and created_at to be preserved")
	}
	if after.Name != "Forth Bridge (old)" || after.AssetType != "Suspension Bridge" || after.Condition != domain.ConditionPoor {
		t.Fatalf("expected mutable fields to be replaced, got %+v", after)
	}
	if after.LastInspected != nil {
		t.Fatalf("expected last_inspected to be cleared, got %v", after.LastInspected)
	}
}

func TestServiceIngestGeofenceWarningStillStores(t *testing.T) {
	env := newTestEnv(t)

	data := "asset_id,name,asset_type,latitude,longitude,condition\n" +
		"PS-900,Thames Barrier,Pump Station,51.5,-0.1,good\n"
	summary := ingest(t, env.service, "assets.csv", data)

	if summary.Created != 1 || summary.Warnings != 1 || summary.Rejected != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Diagnostics) != 1 || !strings.Contains(summary.Diagnostics[0].Message, "bounds") {
		t.Fatalf("expected bounds warning, got %v", summary.Diagnostics)
	}
	if _, err := env.store.FindByAssetID(context.Background(), "PS-900"); err != nil {
		t.Fatalf("expected asset to be stored: %v", err)
	}
}

func TestServiceIngestMissingColumnsWritesNothing(t *testing.T) {
	env := newTestEnv(t)

	summary := ingest(t, env.service, "assets.csv", "asset_id,name\nBR-001,Bridge\n")
	if summary.Committed || summary.Message != "" {
		t.Fatalf("expected nothing to be committed, got %+v", summary)
	}
	if len(summary.Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic, got %v", summary.Diagnostics)
	}
	want := "Missing required columns: asset_type, condition, latitude, longitude"
	if summary.Diagnostics[0].Message != want {
		t.Fatalf("expected %q, got %q", want, summary.Diagnostics[0].Message)
	}

	assets, err := env.store.Query(context.Background(), domain.AssetFilter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(assets) != 0 {
		t.Fatalf("expected empty store, got %d assets", len(assets))
	}
	if len(env.publisher.events) != 0 {
		t.Fatalf("expected no event for rejected upload")
	}

	entries, err := env.service.Logs(context.Background(), summary.IngestionID)
	if err != nil {
		t.Fatalf("logs failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Message != want {
		t.Fatalf("expected diagnostic to be logged, got %+v", entries)
	}
}

func TestServiceIngestAllRowsInvalidWritesNothing(t *testing.T) {
	env := newTestEnv(t)

	data := "asset_id,name,asset_type,latitude,longitude,condition\n" +
		"BR-001,Bridge,Bridge,north,-3.4,good\n" +
		"BR-002,Bridge,Bridge,56,-3.4,shiny\n"
	summary := ingest(t, env.service, "assets.csv", data)

	if summary.Committed || summary.Rejected != 2 || summary.TotalRows != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if got := uploadCount(t, env.registry, "rejected"); got != 1 {
		t.Fatalf("expected rejected upload to be counted, got %v", got)
	}
}

func TestServiceIngestPartialRowsCommitsValidOnes(t *testing.T) {
	env := newTestEnv(t)

	data := "asset_id,name,asset_type,latitude,longitude,condition\n" +
		"BR-001,Forth Road Bridge,Bridge,56.0005,-3.4053,good\n" +
		",Nameless,Road,56,-3.4,good\n"
	summary := ingest(t, env.service, "assets.csv", data)

	if !summary.Committed || summary.Created != 1 || summary.Rejected != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Diagnostics[0].String() != "Row 3: asset_id and name are required" {
		t.Fatalf("unexpected diagnostic %q", summary.Diagnostics[0].String())
	}
}

func TestServiceIngestNonFiniteCoordinatesRejectOnlyTheirRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	data := "asset_id,name,asset_type,latitude,longitude,condition\n" +
		"BR-001,Forth Road Bridge,Bridge,56.0005,-3.4053,good\n" +
		"X-1,Huge,Road,1e400,-3.0,good\n" +
		"X-2,Blank,Road,NaN,-3.0,good\n" +
		"X-3,Endless,Road,57.0,-Inf,good\n" +
		"RD-001,A9 Trunk Road,Road,57.1,-3.9,moderate\n"
	summary := ingest(t, env.service, "assets.csv", data)

	if !summary.Committed || summary.Created != 2 || summary.Rejected != 3 || summary.Warnings != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	got := make([]string, 0, len(summary.Diagnostics))
	for _, d := range summary.Diagnostics {
		got = append(got, d.String())
	}
	want := []string{
		"Row 3: Invalid coordinates",
		"Row 4: Invalid coordinates",
		"Row 5: Invalid coordinates",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}

	assets, err := env.store.Query(ctx, domain.AssetFilter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.AssetID)
	}
	if diff := cmp.Diff([]string{"BR-001", "RD-001"}, ids); diff != "" {
		t.Fatalf("stored assets mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceIngestQueryScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	data := "asset_id,name,asset_type,latitude,longitude,condition,last_inspected\n" +
		"BR-001,Forth Road Bridge,Bridge,56.0005,-3.4053,good,2024-01-15\n" +
		"RD-001,A9 Trunk Road,Road,57.1,-3.9,moderate,\n" +
		"PS-001,Glasgow Pump Station,Pump Station,55.86,-4.25,poor,2023-06-30\n"
	ingest(t, env.service, "assets.csv", data)

	good, err := env.store.Query(ctx, domain.NewAssetFilter("good", "", ""))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(good) != 1 || good[0].AssetID != "BR-001" {
		t.Fatalf("expected only the bridge, got %+v", good)
	}

	forth, err := env.store.Query(ctx, domain.NewAssetFilter("", "", "FORTH"))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(forth) != 1 || forth[0].AssetID != "BR-001" {
		t.Fatalf("expected search to find the bridge, got %+v", forth)
	}
}

func TestServiceIngestStorageFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	boom := errors.New("disk full")
	failing := &failingStore{AssetStore: env.store, failOn: "RD-001", err: boom}
	log, _ := test.NewNullLogger()
	service := NewService(failing, nil, nil, nil, log)

	data := "asset_id,name,asset_type,latitude,longitude,condition\n" +
		"BR-001,Forth Road Bridge,Bridge,56.0005,-3.4053,good\n" +
		"RD-001,A9,Road,57.1,-3.9,moderate\n"
	_, err := service.Ingest(context.Background(), Request{FileName: "assets.csv", Data: strings.NewReader(data)})
	if !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}

	if _, err := env.store.FindByAssetID(context.Background(), "BR-001"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected the upload to be rolled back, got %v", err)
	}
}

func TestServiceIngestUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Ingest(context.Background(), Request{FileName: "assets.json", Data: strings.NewReader("{}")})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func uploadCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "assetmap_ingestion_uploads_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

type capturePublisher struct {
	events []events.AssetsIngested
}

func (p *capturePublisher) PublishAssetsIngested(ctx context.Context, payload events.AssetsIngested) error {
	p.events = append(p.events, payload)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

// failingStore fails inserts for one asset_id inside transactions.
type failingStore struct {
	repository.AssetStore
	failOn string
	err    error
}

func (s *failingStore) RunInTx(ctx context.Context, fn func(repo repository.AssetRepository) error) error {
	return s.AssetStore.RunInTx(ctx, func(repo repository.AssetRepository) error {
		return fn(&failingRepo{AssetRepository: repo, failOn: s.failOn, err: s.err})
	})
}

type failingRepo struct {
	repository.AssetRepository
	failOn string
	err    error
}

func (r *failingRepo) Insert(ctx context.Context, record domain.AssetRecord) (domain.Asset, error) {
	if record.AssetID == r.failOn {
		return domain.Asset{}, r.err
	}
	return r.AssetRepository.Insert(ctx, record)
}
