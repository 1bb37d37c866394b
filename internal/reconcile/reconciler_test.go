package reconcile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/yt-audit/backend/internal/storage/models"
)

type fakeStore struct {
	videos    []models.Video
	analytics *models.AnalyticsTable
	stats     []models.StatsRow
	comments  []models.Comment

	saved *models.CanonicalTable
}

func (s *fakeStore) ListVideos() ([]models.Video, error)               { return s.videos, nil }
func (s *fakeStore) LoadAnalytics() (*models.AnalyticsTable, error)    { return s.analytics, nil }
func (s *fakeStore) LoadStats() ([]models.StatsRow, error)             { return s.stats, nil }
func (s *fakeStore) LoadMasterJoin() (*models.CanonicalTable, error)   { return s.saved, nil }
func (s *fakeStore) LoadComments() ([]models.Comment, error)           { return s.comments, nil }
func (s *fakeStore) SaveMasterJoin(t *models.CanonicalTable) error {
	s.saved = t
	return nil
}

func fptr(v float64) *float64 { return &v }
func iptr(v int64) *int64     { return &v }

func testVideos(n int) []models.Video {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	videos := make([]models.Video, n)
	for i := range videos {
		videos[i] = models.Video{
			VideoID:     string(rune('a' + i)),
			PublishedAt: base.AddDate(0, 0, i),
			Title:       "video " + string(rune('a'+i)),
		}
	}
	return videos
}

func newTestReconciler(store *fakeStore, dir string) *Reconciler {
	r := New(store, dir)
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r
}

func TestReconcilePrefersAnalytics(t *testing.T) {
	store := &fakeStore{
		videos: testVideos(3),
		analytics: &models.AnalyticsTable{
			Rows: []models.AnalyticsRow{
				{VideoID: "a", Views: fptr(100)},
				{VideoID: "b", Views: fptr(50)},
			},
			Columns: models.ColumnSet(models.ColViews),
		},
		stats: []models.StatsRow{{VideoID: "a", ViewCount: iptr(1)}},
	}

	result, err := newTestReconciler(store, t.TempDir()).Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if result.Provenance.Source != models.SourceAnalyticsPerVideo {
		t.Errorf("source = %s, want %s", result.Provenance.Source, models.SourceAnalyticsPerVideo)
	}
	if result.Provenance.Synthetic == nil || *result.Provenance.Synthetic {
		t.Errorf("synthetic = %v, want false", result.Provenance.Synthetic)
	}
	if len(result.Table.Rows) != 3 {
		t.Fatalf("rows = %d, want 3 (video rows are never dropped)", len(result.Table.Rows))
	}

	// Unmatched video keeps a row with nil metrics.
	var c *models.CanonicalRow
	for i := range result.Table.Rows {
		if result.Table.Rows[i].VideoID == "c" {
			c = &result.Table.Rows[i]
		}
	}
	if c == nil {
		t.Fatal("video c missing from canonical table")
	}
	if c.Views != nil {
		t.Errorf("unmatched video got views %v, want nil", *c.Views)
	}
}

func TestReconcileFallsBackToStats(t *testing.T) {
	store := &fakeStore{
		videos: testVideos(2),
		stats: []models.StatsRow{
			{VideoID: "a", ViewCount: iptr(10), LikeCount: iptr(2), CommentCount: iptr(1)},
		},
	}

	result, err := newTestReconciler(store, t.TempDir()).Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if result.Provenance.Source != models.SourceDataAPIVideoStats {
		t.Errorf("source = %s, want %s", result.Provenance.Source, models.SourceDataAPIVideoStats)
	}
	if result.Provenance.Synthetic == nil || *result.Provenance.Synthetic {
		t.Errorf("synthetic = %v, want false", result.Provenance.Synthetic)
	}
	if !result.Table.Columns.Has(models.ColViewCount) {
		t.Error("viewCount column not recorded")
	}
	if result.Table.Columns.Has(models.ColViews) {
		t.Error("views column recorded without an analytics source")
	}
}

func TestReconcileVideosOnly(t *testing.T) {
	store := &fakeStore{videos: testVideos(2)}

	result, err := newTestReconciler(store, t.TempDir()).Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if result.Provenance.Source != models.SourceVideosOnly {
		t.Errorf("source = %s, want %s", result.Provenance.Source, models.SourceVideosOnly)
	}
	if result.Provenance.Synthetic != nil {
		t.Errorf("synthetic = %v, want nil in the degraded path", *result.Provenance.Synthetic)
	}
	if !result.Provenance.Degraded() {
		t.Error("videos-only provenance must read as degraded")
	}
	if len(result.Table.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(result.Table.Rows))
	}
}

func TestReconcileEmptyAnalyticsIDsFallsBack(t *testing.T) {
	store := &fakeStore{
		videos: testVideos(1),
		analytics: &models.AnalyticsTable{
			Rows:    []models.AnalyticsRow{{VideoID: "", Views: fptr(5)}},
			Columns: models.ColumnSet(models.ColViews),
		},
	}

	result, err := newTestReconciler(store, t.TempDir()).Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.Provenance.Source != models.SourceVideosOnly {
		t.Errorf("source = %s, want videos_only when analytics has no usable ids", result.Provenance.Source)
	}
}

func TestReconcileDuplicateMetricsLastWriteWins(t *testing.T) {
	store := &fakeStore{
		videos: testVideos(1),
		analytics: &models.AnalyticsTable{
			Rows: []models.AnalyticsRow{
				{VideoID: "a", Views: fptr(10)},
				{VideoID: "a", Views: fptr(20)},
			},
			Columns: models.ColumnSet(models.ColViews),
		},
	}

	result, err := newTestReconciler(store, t.TempDir()).Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if got := *result.Table.Rows[0].Views; got != 20 {
		t.Errorf("views = %v, want 20 (last write wins)", got)
	}
	if len(result.Table.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(result.Table.Rows))
	}
}

func TestReconcileFallbackHints(t *testing.T) {
	statsStore := &fakeStore{
		videos: testVideos(1),
		stats:  []models.StatsRow{{VideoID: "a", ViewCount: iptr(10)}},
	}
	result, err := newTestReconciler(statsStore, t.TempDir()).Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.Provenance.Hint != "analytics_per_video_unavailable" {
		t.Errorf("stats fallback hint = %q, want analytics_per_video_unavailable", result.Provenance.Hint)
	}

	bareStore := &fakeStore{videos: testVideos(1)}
	result, err = newTestReconciler(bareStore, t.TempDir()).Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.Provenance.Hint != "no_per_video_metrics" {
		t.Errorf("videos-only hint = %q, want no_per_video_metrics", result.Provenance.Hint)
	}

	analyticsStore := &fakeStore{
		videos: testVideos(1),
		analytics: &models.AnalyticsTable{
			Rows:    []models.AnalyticsRow{{VideoID: "a", Views: fptr(5)}},
			Columns: models.ColumnSet(models.ColViews),
		},
	}
	result, err = newTestReconciler(analyticsStore, t.TempDir()).Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.Provenance.Hint != "" {
		t.Errorf("analytics hint = %q, want empty on the preferred source", result.Provenance.Hint)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := &fakeStore{
		videos: testVideos(3),
		analytics: &models.AnalyticsTable{
			Rows: []models.AnalyticsRow{
				{VideoID: "a", Views: fptr(100), AverageViewDuration: fptr(60)},
				{VideoID: "b", Views: fptr(50)},
			},
			Columns: models.ColumnSet(models.ColViews | models.ColAverageViewDuration),
		},
	}
	r := newTestReconciler(store, t.TempDir())

	first, err := r.Reconcile()
	if err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	second, err := r.Reconcile()
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}

	if !reflect.DeepEqual(first.Table, second.Table) {
		t.Error("reconciling unchanged inputs produced a different table")
	}
	fp, sp := first.Provenance, second.Provenance
	if fp.Source != sp.Source || fp.Hint != sp.Hint {
		t.Errorf("provenance changed across runs: %+v vs %+v", fp, sp)
	}
	if (fp.Synthetic == nil) != (sp.Synthetic == nil) ||
		(fp.Synthetic != nil && *fp.Synthetic != *sp.Synthetic) {
		t.Error("synthetic flag changed across runs")
	}
}

func TestReconcileEmptyVideosFails(t *testing.T) {
	store := &fakeStore{}
	if _, err := newTestReconciler(store, t.TempDir()).Reconcile(); err == nil {
		t.Fatal("expected error for empty videos table")
	}
}

func TestReconcileWritesProvenanceFile(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{videos: testVideos(1)}

	if _, err := newTestReconciler(store, dir).Reconcile(); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "data_provenance.json"))
	if err != nil {
		t.Fatalf("provenance file not written: %v", err)
	}

	var prov models.Provenance
	if err := json.Unmarshal(data, &prov); err != nil {
		t.Fatalf("provenance is not valid JSON: %v", err)
	}
	if prov.Source != models.SourceVideosOnly {
		t.Errorf("source = %s, want videos_only", prov.Source)
	}
	if prov.Synthetic != nil {
		t.Error("synthetic must serialize as null in the videos-only path")
	}
	if prov.TS != 1700000000 {
		t.Errorf("ts = %d, want 1700000000", prov.TS)
	}

	roundtrip, err := ReadProvenance(dir)
	if err != nil {
		t.Fatalf("ReadProvenance failed: %v", err)
	}
	if roundtrip.Source != prov.Source || roundtrip.TS != prov.TS {
		t.Error("ReadProvenance did not round-trip the record")
	}
}

func TestReadProvenanceMissingFile(t *testing.T) {
	prov, err := ReadProvenance(t.TempDir())
	if err != nil {
		t.Fatalf("ReadProvenance failed: %v", err)
	}
	if !prov.Degraded() {
		t.Error("missing provenance must read as degraded")
	}
}

func TestLoadCachedReturnsNilWithoutTable(t *testing.T) {
	store := &fakeStore{videos: testVideos(1)}
	r := newTestReconciler(store, t.TempDir())

	table, _, err := r.LoadCached()
	if err != nil {
		t.Fatalf("LoadCached failed: %v", err)
	}
	if table != nil {
		t.Fatal("expected nil table before any reconciliation")
	}

	if _, err := r.Reconcile(); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	table, _, err = r.LoadCached()
	if err != nil {
		t.Fatalf("LoadCached failed: %v", err)
	}
	if table == nil || len(table.Rows) != 1 {
		t.Fatal("expected cached table after reconciliation")
	}
}
