package align

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/captions"
	"github.com/yt-audit/backend/internal/metrics"
	"github.com/yt-audit/backend/internal/storage/models"
	"github.com/yt-audit/backend/pkg/logger"
)

// captionTextLimit bounds how much concatenated caption text feeds the
// embedding, matching the alignment contract.
const captionTextLimit = 5000

// Embedder turns texts into vectors. The LLM client implements it; tests
// substitute a fake.
type Embedder interface {
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Score is an explicit maybe-value: Valid is false when alignment could not
// be computed for a video, which callers must treat as missing data, never
// as zero.
type Score struct {
	Value float64
	Valid bool
}

// Float returns the score or NaN, the sentinel used in the persisted table.
func (s Score) Float() float64 {
	if !s.Valid {
		return math.NaN()
	}
	return s.Value
}

// Scorer computes title/caption topical alignment per video.
type Scorer struct {
	embedder Embedder
}

func NewScorer(embedder Embedder) *Scorer {
	return &Scorer{embedder: embedder}
}

// ScoreTable computes title_caption_sim for every canonical row that has a
// caption reference and merges the result into the table (left join on video
// identity). A single video failing degrades only that video's score.
func (s *Scorer) ScoreTable(ctx context.Context, table *models.CanonicalTable, caps []models.CaptionRef) {
	if len(caps) == 0 {
		return
	}

	capByVideo := make(map[string]models.CaptionRef, len(caps))
	for _, c := range caps {
		if _, seen := capByVideo[c.VideoID]; !seen {
			capByVideo[c.VideoID] = c
		}
	}

	table.Columns.Add(models.ColTitleCaptionSim)
	for i := range table.Rows {
		row := &table.Rows[i]
		score := s.scoreVideo(ctx, row.Title, capByVideo[row.VideoID])
		if score.Valid {
			metrics.AlignmentScored.WithLabelValues("scored").Inc()
		} else {
			metrics.AlignmentScored.WithLabelValues("missing").Inc()
		}
		sim := score.Float()
		row.TitleCaptionSim = &sim
	}
}

func (s *Scorer) scoreVideo(ctx context.Context, title string, ref models.CaptionRef) Score {
	if ref.File == "" {
		return Score{}
	}

	segs, err := captions.ParseFile(ref.File)
	if err != nil {
		logger.Warn("Caption parse failed", zap.String("video_id", ref.VideoID), zap.Error(err))
		return Score{}
	}

	capText := captions.JoinText(segs, captionTextLimit)
	if title == "" || capText == "" {
		return Score{}
	}

	vecs, err := s.embedder.GenerateBatchEmbeddings(ctx, []string{title, capText})
	if err != nil || len(vecs) != 2 {
		logger.Warn("Embedding failed for alignment", zap.String("video_id", ref.VideoID), zap.Error(err))
		return Score{}
	}

	sim, ok := Cosine(vecs[0], vecs[1])
	if !ok {
		return Score{}
	}
	return Score{Value: sim, Valid: true}
}

// Cosine returns the cosine similarity of two vectors, or false when either
// is empty, zero, or the lengths differ.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
