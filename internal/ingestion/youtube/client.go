package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
	youtubeanalytics "google.golang.org/api/youtubeanalytics/v2"

	"github.com/yt-audit/backend/internal/metrics"
	"github.com/yt-audit/backend/internal/storage/models"
	"github.com/yt-audit/backend/internal/storage/sqlite"
	"github.com/yt-audit/backend/pkg/config"
	"github.com/yt-audit/backend/pkg/logger"
)

const statsBatchSize = 50

// Client pulls channel data from the YouTube Data and Analytics APIs into the
// record store. Per-video failures are logged and skipped so one broken video
// never aborts a fetch.
type Client struct {
	data      *youtube.Service
	analytics *youtubeanalytics.Service
	db        *sqlite.Client
	channelID string
	rawDir    string
}

func NewClient(ctx context.Context, cfg *config.YouTubeConfig, db *sqlite.Client, rawDir string) (*Client, error) {
	oc := oauthConfig(cfg)

	token, err := getToken(oc, cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth token: %w", err)
	}

	httpClient := oauth2Client(ctx, &tokenSaver{config: oc, token: token, tokenFile: cfg.TokenFile})

	data, err := youtube.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube Data service: %w", err)
	}
	yta, err := youtubeanalytics.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube Analytics service: %w", err)
	}

	return &Client{
		data:      data,
		analytics: yta,
		db:        db,
		channelID: cfg.ChannelID,
		rawDir:    rawDir,
	}, nil
}

// FetchVideos walks the channel's uploads playlist, resolves full metadata in
// batches and replaces the videos and thumbnails tables.
func (c *Client) FetchVideos(ctx context.Context) ([]models.Video, error) {
	uploads, err := c.uploadsPlaylistID(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	pageToken := ""
	for {
		resp, err := c.data.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(uploads).
			MaxResults(50).
			PageToken(pageToken).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list uploads playlist: %w", err)
		}
		for _, it := range resp.Items {
			if it.ContentDetails != nil && it.ContentDetails.VideoId != "" {
				ids = append(ids, it.ContentDetails.VideoId)
			}
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	var videos []models.Video
	var thumbs []models.ThumbnailRef
	for _, batch := range batches(ids, statsBatchSize) {
		resp, err := c.data.Videos.List([]string{"snippet", "contentDetails"}).
			Id(strings.Join(batch, ",")).
			Context(ctx).
			Do()
		if err != nil {
			logger.Warn("Failed to resolve video batch, skipping", zap.Error(err))
			continue
		}
		for _, it := range resp.Items {
			v := models.Video{
				VideoID:     it.Id,
				Title:       it.Snippet.Title,
				Description: it.Snippet.Description,
			}
			if ts, err := time.Parse(time.RFC3339, it.Snippet.PublishedAt); err == nil {
				v.PublishedAt = ts
			}
			if it.ContentDetails != nil {
				if secs, ok := parseISODuration(it.ContentDetails.Duration); ok {
					v.DurationSec = &secs
				}
			}
			videos = append(videos, v)

			if url := pickThumbnail(it.Snippet.Thumbnails); url != "" {
				thumbs = append(thumbs, models.ThumbnailRef{VideoID: it.Id, URL: url})
			}
		}
	}

	if err := c.db.ReplaceVideos(videos); err != nil {
		return nil, fmt.Errorf("failed to store videos: %w", err)
	}
	if err := c.db.ReplaceThumbnailURLs(thumbs); err != nil {
		return nil, fmt.Errorf("failed to store thumbnail urls: %w", err)
	}

	metrics.VideosIngested.Add(float64(len(videos)))
	logger.Info("Videos fetched", zap.Int("videos", len(videos)), zap.Int("thumbnails", len(thumbs)))
	return videos, nil
}

func (c *Client) uploadsPlaylistID(ctx context.Context) (string, error) {
	resp, err := c.data.Channels.List([]string{"contentDetails"}).
		Id(c.channelID).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to resolve channel: %w", err)
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("channel %s not found or not accessible", c.channelID)
	}
	cd := resp.Items[0].ContentDetails
	if cd == nil || cd.RelatedPlaylists == nil || cd.RelatedPlaylists.Uploads == "" {
		return "", fmt.Errorf("channel %s has no uploads playlist", c.channelID)
	}
	return cd.RelatedPlaylists.Uploads, nil
}

// FetchStats replaces the public-counter fallback table from
// videos.list(statistics), batched 50 ids per call. A counter the API omits
// stays nil.
func (c *Client) FetchStats(ctx context.Context, ids []string) ([]models.StatsRow, error) {
	var rows []models.StatsRow
	for _, batch := range batches(ids, statsBatchSize) {
		resp, err := c.data.Videos.List([]string{"statistics"}).
			Id(strings.Join(batch, ",")).
			Context(ctx).
			Do()
		if err != nil {
			logger.Warn("Failed to fetch statistics batch, skipping", zap.Error(err))
			continue
		}
		for _, it := range resp.Items {
			row := models.StatsRow{VideoID: it.Id}
			if st := it.Statistics; st != nil {
				vc := int64(st.ViewCount)
				lc := int64(st.LikeCount)
				cc := int64(st.CommentCount)
				row.ViewCount = &vc
				row.LikeCount = &lc
				row.CommentCount = &cc
			}
			rows = append(rows, row)
		}
	}

	if err := c.db.ReplaceStats(rows); err != nil {
		return nil, fmt.Errorf("failed to store video stats: %w", err)
	}
	logger.Info("Video stats fetched", zap.Int("rows", len(rows)))
	return rows, nil
}

// FetchAnalytics runs the per-video Analytics report for the trailing window
// and replaces the analytics table. The report's video dimension becomes the
// videoId column.
func (c *Client) FetchAnalytics(ctx context.Context, windowDays int) (*models.AnalyticsTable, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -windowDays)

	resp, err := c.analytics.Reports.Query().
		Ids("channel==" + c.channelID).
		StartDate(start.Format("2006-01-02")).
		EndDate(end.Format("2006-01-02")).
		Metrics("views,estimatedMinutesWatched,averageViewDuration").
		Dimensions("video").
		MaxResults(1000).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics report: %w", err)
	}

	table := parseAnalyticsReport(resp)
	if err := c.db.ReplaceAnalytics(table.Rows); err != nil {
		return nil, fmt.Errorf("failed to store analytics: %w", err)
	}
	logger.Info("Analytics fetched", zap.Int("rows", len(table.Rows)))
	return table, nil
}

// parseAnalyticsReport maps report columns to analytics rows by header name,
// so added or reordered metrics never shift into the wrong field.
func parseAnalyticsReport(resp *youtubeanalytics.QueryResponse) *models.AnalyticsTable {
	type setter struct {
		col models.Column
		set func(*models.AnalyticsRow, float64)
	}
	setters := map[string]setter{
		"views":                   {models.ColViews, func(r *models.AnalyticsRow, v float64) { r.Views = &v }},
		"estimatedMinutesWatched": {models.ColEstimatedMinutesWatched, func(r *models.AnalyticsRow, v float64) { r.EstimatedMinutesWatched = &v }},
		"averageViewDuration":     {models.ColAverageViewDuration, func(r *models.AnalyticsRow, v float64) { r.AverageViewDuration = &v }},
		"clickThroughRate":        {models.ColClickThroughRate, func(r *models.AnalyticsRow, v float64) { r.ClickThroughRate = &v }},
		"impressions":             {models.ColImpressions, func(r *models.AnalyticsRow, v float64) { r.Impressions = &v }},
		"subscribersGained":       {models.ColSubscribersGained, func(r *models.AnalyticsRow, v float64) { r.SubscribersGained = &v }},
	}

	table := &models.AnalyticsTable{}
	videoIdx := -1
	for i, h := range resp.ColumnHeaders {
		if h.Name == "video" {
			videoIdx = i
		}
	}
	if videoIdx < 0 {
		return table
	}

	for _, raw := range resp.Rows {
		if videoIdx >= len(raw) {
			continue
		}
		row := models.AnalyticsRow{}
		if id, ok := raw[videoIdx].(string); ok {
			row.VideoID = id
		}
		for i, h := range resp.ColumnHeaders {
			s, ok := setters[h.Name]
			if !ok || i >= len(raw) {
				continue
			}
			if v, ok := toFloat(raw[i]); ok {
				s.set(&row, v)
				table.Columns.Add(s.col)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// FetchComments pulls top-level comments and replies for every video and
// replaces the comments table. Comment bodies arrive as HTML fragments and
// are stripped to plain text.
func (c *Client) FetchComments(ctx context.Context, ids []string) (int, error) {
	var comments []models.Comment
	for _, vid := range ids {
		rows, err := c.commentsForVideo(ctx, vid)
		if err != nil {
			logger.Warn("Failed to fetch comments, skipping video",
				zap.String("video_id", vid), zap.Error(err))
			continue
		}
		comments = append(comments, rows...)
	}

	if err := c.db.ReplaceComments(comments); err != nil {
		return 0, fmt.Errorf("failed to store comments: %w", err)
	}
	logger.Info("Comments fetched", zap.Int("comments", len(comments)))
	return len(comments), nil
}

func (c *Client) commentsForVideo(ctx context.Context, vid string) ([]models.Comment, error) {
	var rows []models.Comment
	pageToken := ""
	for {
		resp, err := c.data.CommentThreads.List([]string{"snippet", "replies"}).
			VideoId(vid).
			MaxResults(100).
			PageToken(pageToken).
			TextFormat("html").
			Context(ctx).
			Do()
		if err != nil {
			return nil, err
		}
		for _, it := range resp.Items {
			if it.Snippet == nil || it.Snippet.TopLevelComment == nil {
				continue
			}
			rows = append(rows, commentRow(vid, "top", it.Snippet.TopLevelComment.Snippet))
			if it.Replies != nil {
				for _, r := range it.Replies.Comments {
					rows = append(rows, commentRow(vid, "reply", r.Snippet))
				}
			}
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return rows, nil
}

func commentRow(vid, kind string, sn *youtube.CommentSnippet) models.Comment {
	row := models.Comment{VideoID: vid, Type: kind}
	if sn == nil {
		return row
	}
	row.Text = stripHTML(sn.TextDisplay)
	row.LikeCount = sn.LikeCount
	if ts, err := time.Parse(time.RFC3339, sn.PublishedAt); err == nil {
		row.PublishedAt = ts
	}
	return row
}

// FetchCaptions downloads each video's caption tracks as SRT into
// rawDir/captions and replaces the captions index. A track that cannot be
// downloaded is indexed with an empty file path.
func (c *Client) FetchCaptions(ctx context.Context, ids []string) ([]models.CaptionRef, error) {
	capDir := filepath.Join(c.rawDir, "captions")
	if err := os.MkdirAll(capDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create captions dir: %w", err)
	}

	var refs []models.CaptionRef
	for _, vid := range ids {
		resp, err := c.data.Captions.List([]string{"snippet"}, vid).Context(ctx).Do()
		if err != nil {
			logger.Warn("Failed to list captions, skipping video",
				zap.String("video_id", vid), zap.Error(err))
			continue
		}
		for _, it := range resp.Items {
			lang := ""
			if it.Snippet != nil {
				lang = it.Snippet.Language
			}
			ref := models.CaptionRef{VideoID: vid, CaptionID: it.Id, Lang: lang}

			name := fmt.Sprintf("%s_%s.srt", vid, orUnd(lang))
			path := filepath.Join(capDir, name)
			if err := c.downloadCaption(ctx, it.Id, path); err != nil {
				logger.Warn("Failed to download caption track",
					zap.String("video_id", vid), zap.String("caption_id", it.Id), zap.Error(err))
			} else {
				ref.File = path
			}
			refs = append(refs, ref)
		}
	}

	if err := c.db.ReplaceCaptionsIndex(refs); err != nil {
		return nil, fmt.Errorf("failed to store captions index: %w", err)
	}
	logger.Info("Captions fetched", zap.Int("tracks", len(refs)))
	return refs, nil
}

func (c *Client) downloadCaption(ctx context.Context, captionID, path string) error {
	resp, err := c.data.Captions.Download(captionID).Tfmt("srt").Context(ctx).Download()
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, resp.Body)
	return err
}

// pickThumbnail chooses the largest available rendition.
func pickThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, cand := range []*youtube.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if cand != nil && cand.Url != "" {
			return cand.Url
		}
	}
	return ""
}

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts an ISO 8601 duration like PT1H2M3S to seconds.
func parseISODuration(d string) (float64, bool) {
	m := isoDurationRe.FindStringSubmatch(d)
	if m == nil {
		return 0, false
	}
	var secs float64
	for i, mult := range []float64{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, false
		}
		secs += float64(n) * mult
	}
	return secs, true
}

// stripHTML flattens an HTML fragment to its text content.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func batches(ids []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[i:end])
	}
	return out
}

func orUnd(lang string) string {
	if lang == "" {
		return "und"
	}
	return lang
}
