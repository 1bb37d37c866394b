package sqlite

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/storage/models"
	"github.com/yt-audit/backend/pkg/logger"
)

// Client is the record store: one sqlite database holding every persisted
// table of the pipeline, from raw ingested rows to the reconciled
// master_join and the run history.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		video_id TEXT PRIMARY KEY,
		published_at INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		duration_sec REAL
	);
	CREATE INDEX IF NOT EXISTS idx_videos_published ON videos(published_at);

	CREATE TABLE IF NOT EXISTS analytics_365d (
		video_id TEXT PRIMARY KEY,
		views REAL,
		estimated_minutes_watched REAL,
		average_view_duration REAL,
		click_through_rate REAL,
		impressions REAL,
		subscribers_gained REAL
	);

	CREATE TABLE IF NOT EXISTS dataapi_video_stats (
		video_id TEXT PRIMARY KEY,
		view_count INTEGER,
		like_count INTEGER,
		comment_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS thumbnails (
		video_id TEXT PRIMARY KEY,
		url TEXT
	);

	CREATE TABLE IF NOT EXISTS thumbnail_features (
		video_id TEXT PRIMARY KEY,
		sharpness REAL NOT NULL,
		brightness REAL NOT NULL,
		contrast REAL NOT NULL,
		text_density REAL
	);

	CREATE TABLE IF NOT EXISTS captions_index (
		video_id TEXT NOT NULL,
		caption_id TEXT NOT NULL,
		lang TEXT,
		file TEXT,
		PRIMARY KEY (video_id, caption_id)
	);

	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id TEXT NOT NULL,
		type TEXT NOT NULL,
		text TEXT,
		like_count INTEGER DEFAULT 0,
		published_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_comments_video ON comments(video_id);

	CREATE TABLE IF NOT EXISTS master_join (
		video_id TEXT PRIMARY KEY,
		published_at INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		duration_sec REAL,
		views REAL,
		estimated_minutes_watched REAL,
		average_view_duration REAL,
		click_through_rate REAL,
		impressions REAL,
		subscribers_gained REAL,
		view_count INTEGER,
		like_count INTEGER,
		comment_count INTEGER,
		title_caption_sim REAL,
		sharpness REAL,
		brightness REAL,
		contrast REAL,
		text_density REAL
	);

	CREATE TABLE IF NOT EXISTS master_join_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		columns INTEGER NOT NULL,
		written_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		video_count INTEGER NOT NULL,
		insight_count INTEGER NOT NULL,
		action_count INTEGER NOT NULL,
		narrative_used INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) replaceAll(table string, insert func(tx *sql.Tx) error) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	if err := insert(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (c *Client) ReplaceVideos(videos []models.Video) error {
	err := c.replaceAll("videos", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO videos (video_id, published_at, title, description, duration_sec) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, v := range videos {
			if _, err := stmt.Exec(v.VideoID, v.PublishedAt.Unix(), v.Title, v.Description, v.DurationSec); err != nil {
				return fmt.Errorf("failed to insert video %s: %w", v.VideoID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Videos table replaced", zap.Int("rows", len(videos)))
	return nil
}

func (c *Client) ListVideos() ([]models.Video, error) {
	rows, err := c.db.Query(`SELECT video_id, published_at, title, description, duration_sec FROM videos ORDER BY published_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var v models.Video
		var publishedAt int64
		var desc sql.NullString
		var dur sql.NullFloat64

		if err := rows.Scan(&v.VideoID, &publishedAt, &v.Title, &desc, &dur); err != nil {
			return nil, fmt.Errorf("failed to scan video row: %w", err)
		}
		v.PublishedAt = time.Unix(publishedAt, 0).UTC()
		v.Description = desc.String
		if dur.Valid {
			d := dur.Float64
			v.DurationSec = &d
		}
		videos = append(videos, v)
	}

	return videos, rows.Err()
}

func (c *Client) ReplaceAnalytics(rows []models.AnalyticsRow) error {
	err := c.replaceAll("analytics_365d", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO analytics_365d
			(video_id, views, estimated_minutes_watched, average_view_duration, click_through_rate, impressions, subscribers_gained)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.Exec(r.VideoID, r.Views, r.EstimatedMinutesWatched, r.AverageViewDuration,
				r.ClickThroughRate, r.Impressions, r.SubscribersGained); err != nil {
				return fmt.Errorf("failed to insert analytics row %s: %w", r.VideoID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Analytics table replaced", zap.Int("rows", len(rows)))
	return nil
}

// LoadAnalytics returns nil when the analytics source has no rows, which
// downstream code treats as "artifact absent". The returned column set only
// includes metrics with at least one non-null value.
func (c *Client) LoadAnalytics() (*models.AnalyticsTable, error) {
	rows, err := c.db.Query(`SELECT video_id, views, estimated_minutes_watched, average_view_duration,
		click_through_rate, impressions, subscribers_gained FROM analytics_365d`)
	if err != nil {
		return nil, fmt.Errorf("failed to load analytics: %w", err)
	}
	defer rows.Close()

	table := &models.AnalyticsTable{}
	for rows.Next() {
		var r models.AnalyticsRow
		var views, emw, avd, ctr, imp, sub sql.NullFloat64

		if err := rows.Scan(&r.VideoID, &views, &emw, &avd, &ctr, &imp, &sub); err != nil {
			return nil, fmt.Errorf("failed to scan analytics row: %w", err)
		}
		r.Views = nullFloat(views, &table.Columns, models.ColViews)
		r.EstimatedMinutesWatched = nullFloat(emw, &table.Columns, models.ColEstimatedMinutesWatched)
		r.AverageViewDuration = nullFloat(avd, &table.Columns, models.ColAverageViewDuration)
		r.ClickThroughRate = nullFloat(ctr, &table.Columns, models.ColClickThroughRate)
		r.Impressions = nullFloat(imp, &table.Columns, models.ColImpressions)
		r.SubscribersGained = nullFloat(sub, &table.Columns, models.ColSubscribersGained)
		table.Rows = append(table.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(table.Rows) == 0 {
		return nil, nil
	}
	return table, nil
}

func (c *Client) ReplaceStats(rows []models.StatsRow) error {
	err := c.replaceAll("dataapi_video_stats", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO dataapi_video_stats (video_id, view_count, like_count, comment_count) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.Exec(r.VideoID, r.ViewCount, r.LikeCount, r.CommentCount); err != nil {
				return fmt.Errorf("failed to insert stats row %s: %w", r.VideoID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Video stats table replaced", zap.Int("rows", len(rows)))
	return nil
}

// LoadStats returns nil when the fallback stats table has no rows.
func (c *Client) LoadStats() ([]models.StatsRow, error) {
	rows, err := c.db.Query(`SELECT video_id, view_count, like_count, comment_count FROM dataapi_video_stats`)
	if err != nil {
		return nil, fmt.Errorf("failed to load video stats: %w", err)
	}
	defer rows.Close()

	var out []models.StatsRow
	for rows.Next() {
		var r models.StatsRow
		var vc, lc, cc sql.NullInt64

		if err := rows.Scan(&r.VideoID, &vc, &lc, &cc); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		r.ViewCount = nullInt(vc)
		r.LikeCount = nullInt(lc)
		r.CommentCount = nullInt(cc)
		out = append(out, r)
	}

	return out, rows.Err()
}

func (c *Client) ReplaceThumbnailURLs(refs []models.ThumbnailRef) error {
	return c.replaceAll("thumbnails", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO thumbnails (video_id, url) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range refs {
			if _, err := stmt.Exec(r.VideoID, r.URL); err != nil {
				return fmt.Errorf("failed to insert thumbnail ref %s: %w", r.VideoID, err)
			}
		}
		return nil
	})
}

func (c *Client) ListThumbnailURLs() ([]models.ThumbnailRef, error) {
	rows, err := c.db.Query(`SELECT video_id, url FROM thumbnails WHERE url IS NOT NULL AND url != ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to list thumbnails: %w", err)
	}
	defer rows.Close()

	var refs []models.ThumbnailRef
	for rows.Next() {
		var r models.ThumbnailRef
		if err := rows.Scan(&r.VideoID, &r.URL); err != nil {
			return nil, fmt.Errorf("failed to scan thumbnail row: %w", err)
		}
		refs = append(refs, r)
	}

	return refs, rows.Err()
}

func (c *Client) ReplaceThumbFeatures(rows []models.ThumbFeatures) error {
	err := c.replaceAll("thumbnail_features", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO thumbnail_features (video_id, sharpness, brightness, contrast, text_density) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			// NaN text density is stored as NULL
			var td interface{}
			if !math.IsNaN(r.TextDensity) {
				td = r.TextDensity
			}
			if _, err := stmt.Exec(r.VideoID, r.Sharpness, r.Brightness, r.Contrast, td); err != nil {
				return fmt.Errorf("failed to insert thumbnail features %s: %w", r.VideoID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Thumbnail features replaced", zap.Int("rows", len(rows)))
	return nil
}

func (c *Client) LoadThumbFeatures() ([]models.ThumbFeatures, error) {
	rows, err := c.db.Query(`SELECT video_id, sharpness, brightness, contrast, text_density FROM thumbnail_features`)
	if err != nil {
		return nil, fmt.Errorf("failed to load thumbnail features: %w", err)
	}
	defer rows.Close()

	var out []models.ThumbFeatures
	for rows.Next() {
		var r models.ThumbFeatures
		var td sql.NullFloat64

		if err := rows.Scan(&r.VideoID, &r.Sharpness, &r.Brightness, &r.Contrast, &td); err != nil {
			return nil, fmt.Errorf("failed to scan thumbnail features: %w", err)
		}
		if td.Valid {
			r.TextDensity = td.Float64
		} else {
			r.TextDensity = math.NaN()
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

func (c *Client) ReplaceCaptionsIndex(refs []models.CaptionRef) error {
	return c.replaceAll("captions_index", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO captions_index (video_id, caption_id, lang, file) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range refs {
			if _, err := stmt.Exec(r.VideoID, r.CaptionID, r.Lang, r.File); err != nil {
				return fmt.Errorf("failed to insert caption ref %s: %w", r.VideoID, err)
			}
		}
		return nil
	})
}

func (c *Client) LoadCaptionsIndex() ([]models.CaptionRef, error) {
	rows, err := c.db.Query(`SELECT video_id, caption_id, lang, file FROM captions_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to load captions index: %w", err)
	}
	defer rows.Close()

	var refs []models.CaptionRef
	for rows.Next() {
		var r models.CaptionRef
		var lang, file sql.NullString

		if err := rows.Scan(&r.VideoID, &r.CaptionID, &lang, &file); err != nil {
			return nil, fmt.Errorf("failed to scan caption ref: %w", err)
		}
		r.Lang = lang.String
		r.File = file.String
		refs = append(refs, r)
	}

	return refs, rows.Err()
}

func (c *Client) ReplaceComments(comments []models.Comment) error {
	err := c.replaceAll("comments", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO comments (video_id, type, text, like_count, published_at) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, cm := range comments {
			if _, err := stmt.Exec(cm.VideoID, cm.Type, cm.Text, cm.LikeCount, cm.PublishedAt.Unix()); err != nil {
				return fmt.Errorf("failed to insert comment for %s: %w", cm.VideoID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Comments table replaced", zap.Int("rows", len(comments)))
	return nil
}

func (c *Client) LoadComments() ([]models.Comment, error) {
	rows, err := c.db.Query(`SELECT video_id, type, text, like_count, published_at FROM comments`)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		var cm models.Comment
		var text sql.NullString
		var publishedAt sql.NullInt64

		if err := rows.Scan(&cm.VideoID, &cm.Type, &text, &cm.LikeCount, &publishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		cm.Text = text.String
		if publishedAt.Valid {
			cm.PublishedAt = time.Unix(publishedAt.Int64, 0).UTC()
		}
		out = append(out, cm)
	}

	return out, rows.Err()
}

func (c *Client) SaveMasterJoin(table *models.CanonicalTable) error {
	err := c.replaceAll("master_join", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO master_join
			(video_id, published_at, title, description, duration_sec,
			 views, estimated_minutes_watched, average_view_duration, click_through_rate, impressions, subscribers_gained,
			 view_count, like_count, comment_count, title_caption_sim,
			 sharpness, brightness, contrast, text_density)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range table.Rows {
			if _, err := stmt.Exec(r.VideoID, r.PublishedAt.Unix(), r.Title, r.Description, r.DurationSec,
				r.Views, r.EstimatedMinutesWatched, r.AverageViewDuration, r.ClickThroughRate, r.Impressions, r.SubscribersGained,
				r.ViewCount, r.LikeCount, r.CommentCount, floatOrNull(r.TitleCaptionSim),
				r.Sharpness, r.Brightness, r.Contrast, floatOrNull(r.TextDensity)); err != nil {
				return fmt.Errorf("failed to insert canonical row %s: %w", r.VideoID, err)
			}
		}

		if _, err := tx.Exec(`INSERT OR REPLACE INTO master_join_meta (id, columns, written_at) VALUES (1, ?, ?)`,
			uint32(table.Columns), time.Now().Unix()); err != nil {
			return fmt.Errorf("failed to write master_join meta: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Canonical table written", zap.Int("rows", len(table.Rows)))
	return nil
}

// LoadMasterJoin returns nil when no reconciled table has been written yet.
func (c *Client) LoadMasterJoin() (*models.CanonicalTable, error) {
	var columns uint32
	err := c.db.QueryRow(`SELECT columns FROM master_join_meta WHERE id = 1`).Scan(&columns)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read master_join meta: %w", err)
	}

	rows, err := c.db.Query(`SELECT video_id, published_at, title, description, duration_sec,
		views, estimated_minutes_watched, average_view_duration, click_through_rate, impressions, subscribers_gained,
		view_count, like_count, comment_count, title_caption_sim,
		sharpness, brightness, contrast, text_density
		FROM master_join ORDER BY published_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to load master_join: %w", err)
	}
	defer rows.Close()

	table := &models.CanonicalTable{Columns: models.ColumnSet(columns)}
	for rows.Next() {
		var r models.CanonicalRow
		var publishedAt int64
		var desc sql.NullString
		var dur, views, emw, avd, ctr, imp, sub, sim, sharp, bright, contrast, td sql.NullFloat64
		var vc, lc, cc sql.NullInt64

		if err := rows.Scan(&r.VideoID, &publishedAt, &r.Title, &desc, &dur,
			&views, &emw, &avd, &ctr, &imp, &sub,
			&vc, &lc, &cc, &sim,
			&sharp, &bright, &contrast, &td); err != nil {
			return nil, fmt.Errorf("failed to scan canonical row: %w", err)
		}
		r.PublishedAt = time.Unix(publishedAt, 0).UTC()
		r.Description = desc.String
		r.DurationSec = plainFloat(dur)
		r.Views = plainFloat(views)
		r.EstimatedMinutesWatched = plainFloat(emw)
		r.AverageViewDuration = plainFloat(avd)
		r.ClickThroughRate = plainFloat(ctr)
		r.Impressions = plainFloat(imp)
		r.SubscribersGained = plainFloat(sub)
		r.ViewCount = nullInt(vc)
		r.LikeCount = nullInt(lc)
		r.CommentCount = nullInt(cc)
		r.TitleCaptionSim = plainFloat(sim)
		r.Sharpness = plainFloat(sharp)
		r.Brightness = plainFloat(bright)
		r.Contrast = plainFloat(contrast)
		r.TextDensity = plainFloat(td)
		table.Rows = append(table.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return table, nil
}

func (c *Client) InsertRun(run *models.RunRecord) error {
	narrative := 0
	if run.NarrativeUsed {
		narrative = 1
	}

	_, err := c.db.Exec(`INSERT INTO runs (id, source, video_count, insight_count, action_count, narrative_used, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Source), run.VideoCount, run.InsightCount, run.ActionCount, narrative, run.LatencyMS, run.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	logger.Info("Run recorded",
		zap.String("run_id", run.ID),
		zap.String("source", string(run.Source)),
		zap.Int("actions", run.ActionCount),
	)
	return nil
}

func (c *Client) ListRuns(limit int) ([]models.RunRecord, error) {
	rows, err := c.db.Query(`SELECT id, source, video_count, insight_count, action_count, narrative_used, latency_ms, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		var source string
		var narrative int
		var createdAt int64

		if err := rows.Scan(&r.ID, &source, &r.VideoCount, &r.InsightCount, &r.ActionCount, &narrative, &r.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Source = models.ProvenanceSource(source)
		r.NarrativeUsed = narrative != 0
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

func (c *Client) SaveReport(runID string, payload []byte) error {
	_, err := c.db.Exec(`INSERT INTO reports (run_id, payload, created_at) VALUES (?, ?, ?)`,
		runID, string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// LatestReport returns nil when no report has been generated yet.
func (c *Client) LatestReport() ([]byte, error) {
	var payload string
	err := c.db.QueryRow(`SELECT payload FROM reports ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest report: %w", err)
	}
	return []byte(payload), nil
}

func nullFloat(v sql.NullFloat64, set *models.ColumnSet, col models.Column) *float64 {
	if !v.Valid {
		return nil
	}
	set.Add(col)
	f := v.Float64
	return &f
}

func plainFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func floatOrNull(v *float64) interface{} {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	return *v
}
