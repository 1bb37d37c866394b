package models

import "time"

// Column identifies one optional metric column that a loaded table may carry.
// Metric availability is tracked explicitly per table instead of probing
// struct fields row by row.
type Column uint32

const (
	ColViews Column = 1 << iota
	ColEstimatedMinutesWatched
	ColAverageViewDuration
	ColClickThroughRate
	ColImpressions
	ColSubscribersGained
	ColViewCount
	ColLikeCount
	ColCommentCount
	ColDurationSec
	ColTitleCaptionSim
	ColSharpness
	ColBrightness
	ColContrast
	ColTextDensity
)

type ColumnSet uint32

func (s ColumnSet) Has(c Column) bool { return uint32(s)&uint32(c) != 0 }

func (s *ColumnSet) Add(c Column) { *s = ColumnSet(uint32(*s) | uint32(c)) }

func (s ColumnSet) Union(o ColumnSet) ColumnSet { return ColumnSet(uint32(s) | uint32(o)) }

var columnNames = []struct {
	col  Column
	name string
}{
	{ColViews, "views"},
	{ColEstimatedMinutesWatched, "estimatedMinutesWatched"},
	{ColAverageViewDuration, "averageViewDuration"},
	{ColClickThroughRate, "clickThroughRate"},
	{ColImpressions, "impressions"},
	{ColSubscribersGained, "subscribersGained"},
	{ColViewCount, "viewCount"},
	{ColLikeCount, "likeCount"},
	{ColCommentCount, "commentCount"},
	{ColDurationSec, "durationSec"},
	{ColTitleCaptionSim, "title_caption_sim"},
	{ColSharpness, "sharpness"},
	{ColBrightness, "brightness"},
	{ColContrast, "contrast"},
	{ColTextDensity, "text_density"},
}

// Names lists the wire names of the columns in the set, in declaration order.
func (s ColumnSet) Names() []string {
	var out []string
	for _, cn := range columnNames {
		if s.Has(cn.col) {
			out = append(out, cn.name)
		}
	}
	return out
}

// Video is one published video; the videos table is the source of truth for
// which videos exist. Immutable once written.
type Video struct {
	VideoID     string    `json:"videoId"`
	PublishedAt time.Time `json:"publishedAt"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DurationSec *float64  `json:"durationSec,omitempty"`
}

// AnalyticsRow holds per-video Analytics API metrics for the trailing window.
type AnalyticsRow struct {
	VideoID                 string
	Views                   *float64
	EstimatedMinutesWatched *float64
	AverageViewDuration     *float64
	ClickThroughRate        *float64
	Impressions             *float64
	SubscribersGained       *float64
}

// AnalyticsTable carries its rows plus the set of metric columns the source
// actually reported.
type AnalyticsTable struct {
	Rows    []AnalyticsRow
	Columns ColumnSet
}

// StatsRow is the Data API fallback: coarse public counters only.
type StatsRow struct {
	VideoID      string
	ViewCount    *int64
	LikeCount    *int64
	CommentCount *int64
}

// ThumbFeatures are image-derived thumbnail scores. TextDensity is NaN when
// OCR was unavailable or failed for that image.
type ThumbFeatures struct {
	VideoID     string
	Sharpness   float64
	Brightness  float64
	Contrast    float64
	TextDensity float64
}

// ThumbnailRef is the chosen thumbnail URL for one video, downloaded later
// by the feature-extraction step.
type ThumbnailRef struct {
	VideoID string
	URL     string
}

// CaptionRef points at a downloaded subtitle file for one video.
type CaptionRef struct {
	VideoID   string
	CaptionID string
	Lang      string
	File      string
}

type Comment struct {
	VideoID     string
	Type        string // "top" or "reply"
	Text        string
	LikeCount   int64
	PublishedAt time.Time
}

// CanonicalRow is one row of the reconciled per-video table. Nil metric
// pointers mean "unmeasured", never "zero". TitleCaptionSim points at NaN
// when alignment ran but could not score that video.
type CanonicalRow struct {
	VideoID     string    `json:"videoId"`
	PublishedAt time.Time `json:"publishedAt"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DurationSec *float64  `json:"durationSec,omitempty"`

	Views                   *float64 `json:"views,omitempty"`
	EstimatedMinutesWatched *float64 `json:"estimatedMinutesWatched,omitempty"`
	AverageViewDuration     *float64 `json:"averageViewDuration,omitempty"`
	ClickThroughRate        *float64 `json:"clickThroughRate,omitempty"`
	Impressions             *float64 `json:"impressions,omitempty"`
	SubscribersGained       *float64 `json:"subscribersGained,omitempty"`

	ViewCount    *int64 `json:"viewCount,omitempty"`
	LikeCount    *int64 `json:"likeCount,omitempty"`
	CommentCount *int64 `json:"commentCount,omitempty"`

	TitleCaptionSim *float64 `json:"title_caption_sim,omitempty"`

	Sharpness   *float64 `json:"sharpness,omitempty"`
	Brightness  *float64 `json:"brightness,omitempty"`
	Contrast    *float64 `json:"contrast,omitempty"`
	TextDensity *float64 `json:"text_density,omitempty"`
}

// CanonicalTable is the single reconciled table every downstream consumer
// reads. Columns records which metric columns any source supplied.
type CanonicalTable struct {
	Rows    []CanonicalRow
	Columns ColumnSet
}

type ProvenanceSource string

const (
	SourceAnalyticsPerVideo ProvenanceSource = "analytics_per_video"
	SourceDataAPIVideoStats ProvenanceSource = "dataapi_video_stats"
	SourceVideosOnly        ProvenanceSource = "videos_only"
)

// Provenance records which source produced the canonical table. Synthetic is
// false whenever a real metrics source was joined and nil in the videos-only
// degraded path; it is never true on this reconciliation path.
type Provenance struct {
	Source    ProvenanceSource `json:"source"`
	Synthetic *bool            `json:"synthetic"`
	TS        int64            `json:"ts"`
	Hint      string           `json:"hint,omitempty"`
}

// Degraded reports whether consumers should show the honest-mode warning.
func (p Provenance) Degraded() bool {
	return p.Synthetic == nil || *p.Synthetic
}

type ActionItem struct {
	Type           string   `json:"type"`
	VideoID        string   `json:"videoId"`
	Title          string   `json:"title"`
	Why            string   `json:"why"`
	SuggestedTests []string `json:"suggested_tests"`
}

// ReportPayload is the full output of one insight run.
type ReportPayload struct {
	Provenance        Provenance   `json:"provenance"`
	InsightsHeuristic []string     `json:"insights_heuristic"`
	ActionsHeuristic  []ActionItem `json:"actions_heuristic"`
	NarrativeGPT      string       `json:"narrative_gpt"`
}

// RunRecord is one completed pipeline run, kept for the dashboard history.
type RunRecord struct {
	ID            string           `json:"id"`
	Source        ProvenanceSource `json:"source"`
	VideoCount    int              `json:"videoCount"`
	InsightCount  int              `json:"insightCount"`
	ActionCount   int              `json:"actionCount"`
	NarrativeUsed bool             `json:"narrativeUsed"`
	LatencyMS     int              `json:"latencyMs"`
	CreatedAt     time.Time        `json:"createdAt"`
}
