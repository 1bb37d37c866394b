package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/metrics"
	"github.com/yt-audit/backend/internal/storage/models"
	"github.com/yt-audit/backend/pkg/logger"
)

// Character budgets for the narrative prompt. The table sample and the
// heuristic payloads are truncated so the request stays cheap on local
// models.
const (
	sampleCharBudget   = 8000
	insightsCharBudget = 2000
	actionsCharBudget  = 4000
	sampleRowLimit     = 20
)

const narrativeSystemPrompt = "You are a ruthless YouTube growth analyst. Summarize shifts, spot packaging mismatches, " +
	"and output prioritized, practical actions. No fluff."

// Summarizer is the external narrative collaborator. Failures never cross
// the engine boundary; they degrade to an empty narrative.
type Summarizer interface {
	Narrative(ctx context.Context, system, prompt string) (string, error)
}

// Engine derives insights and ranked actions from the canonical table. It is
// a pure function of the table's contents plus an optional best-effort
// narrative from the summarizer.
type Engine struct {
	summarizer Summarizer
}

func NewEngine(summarizer Summarizer) *Engine {
	return &Engine{summarizer: summarizer}
}

// Generate runs the heuristic rules, the optional comment-theme enrichment,
// and the optional narrative layer.
func (e *Engine) Generate(ctx context.Context, table *models.CanonicalTable, prov models.Provenance, comments []models.Comment) models.ReportPayload {
	insights, actions := heuristics(table)

	if theme, ok := commentThemes(comments); ok {
		insights = append(insights, theme)
	}

	narrative := e.narrative(ctx, table, insights, actions)

	return models.ReportPayload{
		Provenance:        prov,
		InsightsHeuristic: insights,
		ActionsHeuristic:  actions,
		NarrativeGPT:      narrative,
	}
}

func (e *Engine) narrative(ctx context.Context, table *models.CanonicalTable, insights []string, actions []models.ActionItem) string {
	if e.summarizer == nil {
		return ""
	}

	sample := truncate(sampleCSV(table), sampleCharBudget)
	insightsJSON := truncate(mustJSON(insights), insightsCharBudget)
	actionsJSON := truncate(mustJSON(actions), actionsCharBudget)

	prompt := fmt.Sprintf("Data sample (top %d rows):\n%s\n\nHeuristic insights: %s\nHeuristic actions: %s\n\n"+
		"Write: (1) a 4-6 bullet narrative of what changed and why; (2) the 6 highest-impact, low-effort actions with short rationale.",
		sampleRowLimit, sample, insightsJSON, actionsJSON)

	out, err := e.summarizer.Narrative(ctx, narrativeSystemPrompt, prompt)
	if err != nil {
		metrics.NarrativeFailures.Inc()
		logger.Warn("Narrative summarizer unavailable", zap.Error(err))
		return ""
	}
	return out
}

// sampleCol describes one optional column of the narrative table sample.
type sampleCol struct {
	name    string
	present func(models.ColumnSet) bool
	value   func(*models.CanonicalRow) (float64, bool)
}

var sampleCols = []sampleCol{
	{"impressions", has(models.ColImpressions), fval(func(r *models.CanonicalRow) *float64 { return r.Impressions })},
	{"clickThroughRate", has(models.ColClickThroughRate), fval(func(r *models.CanonicalRow) *float64 { return r.ClickThroughRate })},
	{"averageViewDuration", has(models.ColAverageViewDuration), fval(func(r *models.CanonicalRow) *float64 { return r.AverageViewDuration })},
	{"viewCount", has(models.ColViewCount), ival(func(r *models.CanonicalRow) *int64 { return r.ViewCount })},
	{"likeCount", has(models.ColLikeCount), ival(func(r *models.CanonicalRow) *int64 { return r.LikeCount })},
	{"commentCount", has(models.ColCommentCount), ival(func(r *models.CanonicalRow) *int64 { return r.CommentCount })},
}

func has(c models.Column) func(models.ColumnSet) bool {
	return func(s models.ColumnSet) bool { return s.Has(c) }
}

func fval(get func(*models.CanonicalRow) *float64) func(*models.CanonicalRow) (float64, bool) {
	return func(r *models.CanonicalRow) (float64, bool) {
		if v := get(r); v != nil {
			return *v, true
		}
		return 0, false
	}
}

func ival(get func(*models.CanonicalRow) *int64) func(*models.CanonicalRow) (float64, bool) {
	return func(r *models.CanonicalRow) (float64, bool) {
		if v := get(r); v != nil {
			return float64(*v), true
		}
		return 0, false
	}
}

// sampleCSV serializes the top rows by the first available metric column as
// a compact CSV block for the narrative prompt.
func sampleCSV(table *models.CanonicalTable) string {
	cols := make([]sampleCol, 0, len(sampleCols))
	for _, c := range sampleCols {
		if c.present(table.Columns) {
			cols = append(cols, c)
		}
	}

	rows := make([]*models.CanonicalRow, 0, len(table.Rows))
	for i := range table.Rows {
		rows = append(rows, &table.Rows[i])
	}
	if len(cols) > 0 {
		primary := cols[0]
		sortRowsDesc(rows, primary.value)
	}
	if len(rows) > sampleRowLimit {
		rows = rows[:sampleRowLimit]
	}

	var b strings.Builder
	b.WriteString("title,videoId")
	for _, c := range cols {
		b.WriteString(",")
		b.WriteString(c.name)
	}
	b.WriteString("\n")

	for _, r := range rows {
		b.WriteString(csvEscape(r.Title))
		b.WriteString(",")
		b.WriteString(r.VideoID)
		for _, c := range cols {
			b.WriteString(",")
			if v, ok := c.value(r); ok {
				b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

func sortRowsDesc(rows []*models.CanonicalRow, value func(*models.CanonicalRow) (float64, bool)) {
	// missing values sort to the end
	sort.SliceStable(rows, func(i, j int) bool {
		av, aok := value(rows[i])
		bv, bok := value(rows[j])
		if aok != bok {
			return aok
		}
		return av > bv
	})
}

func csvEscape(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}
