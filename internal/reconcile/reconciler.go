package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/storage/models"
	"github.com/yt-audit/backend/pkg/logger"
)

// Store is the slice of the record store the reconciler needs.
type Store interface {
	ListVideos() ([]models.Video, error)
	LoadAnalytics() (*models.AnalyticsTable, error)
	LoadStats() ([]models.StatsRow, error)
	SaveMasterJoin(table *models.CanonicalTable) error
	LoadMasterJoin() (*models.CanonicalTable, error)
	LoadComments() ([]models.Comment, error)
}

// Reconciler merges the independently collected source tables into one
// canonical per-video table and records why each choice was made.
type Reconciler struct {
	store        Store
	processedDir string
	now          func() time.Time
}

func New(store Store, processedDir string) *Reconciler {
	return &Reconciler{
		store:        store,
		processedDir: processedDir,
		now:          time.Now,
	}
}

// Result is the output of one reconciliation.
type Result struct {
	Table      *models.CanonicalTable
	Provenance models.Provenance
}

// Reconcile selects the best available metrics source, left-joins it onto the
// videos table and persists master_join plus the provenance record.
//
// Priority: per-video analytics, then Data API stats, then videos only.
// Video rows are never dropped; unmatched metrics rows are dropped. A
// duplicate videoId inside a metrics source is surfaced with a warning and
// collapsed last-write-wins.
func (r *Reconciler) Reconcile() (*Result, error) {
	videos, err := r.store.ListVideos()
	if err != nil {
		return nil, fmt.Errorf("failed to read videos table: %w", err)
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("videos table is empty: run the video fetch step before reconciling")
	}

	analytics, err := r.store.LoadAnalytics()
	if err != nil {
		return nil, fmt.Errorf("failed to read analytics table: %w", err)
	}
	if analytics != nil && !usableAnalytics(analytics) {
		logger.Warn("Analytics table present but has no usable video ids, falling back")
		analytics = nil
	}

	var result *Result
	if analytics != nil {
		result = r.joinAnalytics(videos, analytics)
	} else {
		stats, err := r.store.LoadStats()
		if err != nil {
			return nil, fmt.Errorf("failed to read video stats table: %w", err)
		}
		if len(stats) > 0 {
			result = r.joinStats(videos, stats)
		} else {
			result = r.videosOnly(videos)
		}
	}

	if err := r.store.SaveMasterJoin(result.Table); err != nil {
		return nil, fmt.Errorf("failed to persist canonical table: %w", err)
	}
	if err := r.writeProvenance(result.Provenance); err != nil {
		return nil, err
	}

	logger.Info("Reconciliation complete",
		zap.String("source", string(result.Provenance.Source)),
		zap.Int("rows", len(result.Table.Rows)),
	)

	return result, nil
}

// LoadCached returns the previously reconciled canonical table together with
// the stored comments, without re-merging. The second return value is nil
// when no canonical table exists yet; callers then fall back to Reconcile.
func (r *Reconciler) LoadCached() (*models.CanonicalTable, []models.Comment, error) {
	table, err := r.store.LoadMasterJoin()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read cached canonical table: %w", err)
	}
	if table == nil {
		return nil, nil, nil
	}

	comments, err := r.store.LoadComments()
	if err != nil {
		logger.Warn("Comments table unavailable", zap.Error(err))
		comments = nil
	}

	return table, comments, nil
}

func usableAnalytics(t *models.AnalyticsTable) bool {
	for _, row := range t.Rows {
		if row.VideoID != "" {
			return true
		}
	}
	return false
}

func (r *Reconciler) joinAnalytics(videos []models.Video, analytics *models.AnalyticsTable) *Result {
	byID := make(map[string]models.AnalyticsRow, len(analytics.Rows))
	for _, row := range analytics.Rows {
		if row.VideoID == "" {
			continue
		}
		if _, dup := byID[row.VideoID]; dup {
			logger.Warn("Duplicate videoId in analytics source, keeping last row",
				zap.String("video_id", row.VideoID))
		}
		byID[row.VideoID] = row
	}

	table := &models.CanonicalTable{Columns: analytics.Columns}
	for _, v := range videos {
		row := baseRow(v)
		if a, ok := byID[v.VideoID]; ok {
			row.Views = a.Views
			row.EstimatedMinutesWatched = a.EstimatedMinutesWatched
			row.AverageViewDuration = a.AverageViewDuration
			row.ClickThroughRate = a.ClickThroughRate
			row.Impressions = a.Impressions
			row.SubscribersGained = a.SubscribersGained
		}
		table.Rows = append(table.Rows, row)
	}
	addBaseColumns(table, videos)

	synthetic := false
	return &Result{
		Table: table,
		Provenance: models.Provenance{
			Source:    models.SourceAnalyticsPerVideo,
			Synthetic: &synthetic,
			TS:        r.now().Unix(),
		},
	}
}

func (r *Reconciler) joinStats(videos []models.Video, stats []models.StatsRow) *Result {
	byID := make(map[string]models.StatsRow, len(stats))
	for _, row := range stats {
		if _, dup := byID[row.VideoID]; dup {
			logger.Warn("Duplicate videoId in stats source, keeping last row",
				zap.String("video_id", row.VideoID))
		}
		byID[row.VideoID] = row
	}

	table := &models.CanonicalTable{}
	for _, v := range videos {
		row := baseRow(v)
		if s, ok := byID[v.VideoID]; ok {
			row.ViewCount = s.ViewCount
			row.LikeCount = s.LikeCount
			row.CommentCount = s.CommentCount
			if s.ViewCount != nil {
				table.Columns.Add(models.ColViewCount)
			}
			if s.LikeCount != nil {
				table.Columns.Add(models.ColLikeCount)
			}
			if s.CommentCount != nil {
				table.Columns.Add(models.ColCommentCount)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	addBaseColumns(table, videos)

	synthetic := false
	return &Result{
		Table: table,
		Provenance: models.Provenance{
			Source:    models.SourceDataAPIVideoStats,
			Synthetic: &synthetic,
			TS:        r.now().Unix(),
			Hint:      "analytics_per_video_unavailable",
		},
	}
}

func (r *Reconciler) videosOnly(videos []models.Video) *Result {
	table := &models.CanonicalTable{}
	for _, v := range videos {
		table.Rows = append(table.Rows, baseRow(v))
	}
	addBaseColumns(table, videos)

	// Synthetic stays nil: no metrics source joined, the table is real video
	// metadata but its metric columns are unmeasured, not zero.
	return &Result{
		Table: table,
		Provenance: models.Provenance{
			Source: models.SourceVideosOnly,
			TS:     r.now().Unix(),
			Hint:   "no_per_video_metrics",
		},
	}
}

func baseRow(v models.Video) models.CanonicalRow {
	return models.CanonicalRow{
		VideoID:     v.VideoID,
		PublishedAt: v.PublishedAt,
		Title:       v.Title,
		Description: v.Description,
		DurationSec: v.DurationSec,
	}
}

func addBaseColumns(table *models.CanonicalTable, videos []models.Video) {
	for _, v := range videos {
		if v.DurationSec != nil {
			table.Columns.Add(models.ColDurationSec)
			return
		}
	}
}

func (r *Reconciler) writeProvenance(prov models.Provenance) error {
	if err := os.MkdirAll(r.processedDir, 0o755); err != nil {
		return fmt.Errorf("failed to create processed dir: %w", err)
	}

	data, err := json.MarshalIndent(prov, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal provenance: %w", err)
	}

	path := filepath.Join(r.processedDir, "data_provenance.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write provenance file: %w", err)
	}
	return nil
}

// ReadProvenance loads the provenance record written by the last
// reconciliation. Missing file yields a videos_only-style unknown record so
// consumers always get a tri-state answer.
func ReadProvenance(processedDir string) (models.Provenance, error) {
	path := filepath.Join(processedDir, "data_provenance.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Provenance{Source: "unknown"}, nil
		}
		return models.Provenance{}, fmt.Errorf("failed to read provenance file: %w", err)
	}

	var prov models.Provenance
	if err := json.Unmarshal(data, &prov); err != nil {
		return models.Provenance{}, fmt.Errorf("failed to parse provenance file: %w", err)
	}
	return prov, nil
}
