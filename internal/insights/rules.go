package insights

import (
	"sort"
	"unicode/utf8"

	"github.com/yt-audit/backend/internal/metrics"
	"github.com/yt-audit/backend/internal/storage/models"
)

const actionsPerRule = 5

// evergreenWindow is how many of the most recently published videos the
// evergreen rule considers.
const evergreenWindow = 200

// thinDescriptionLen is the description length below which metadata is
// considered too thin for search discovery.
const thinDescriptionLen = 60

// heuristics derives insight strings and ranked action items from the
// canonical table. Rules are independent and additive: every applicable rule
// fires, none suppresses another, and a rule whose required columns are
// absent is skipped outright.
func heuristics(table *models.CanonicalTable) ([]string, []models.ActionItem) {
	var insights []string
	var actions []models.ActionItem

	rules := []struct {
		kind string
		run  func(*models.CanonicalTable) (string, []models.ActionItem)
	}{
		{"Retitle/Thumb A/B", packagingMismatch},
		{"Rewrite cold open", coldOpenDrop},
		{"Resurface evergreen", evergreenResurfacing},
		{"Improve description", thinDescription},
	}
	for _, rule := range rules {
		if ins, acts := rule.run(table); ins != "" {
			metrics.RuleTriggered.WithLabelValues(rule.kind).Inc()
			insights = append(insights, ins)
			actions = append(actions, acts...)
		}
	}

	return insights, actions
}

// packagingMismatch: videos that hold attention (AVD at or above median) but
// fail to attract clicks (CTR below median).
func packagingMismatch(table *models.CanonicalTable) (string, []models.ActionItem) {
	if !table.Columns.Has(models.ColClickThroughRate) || !table.Columns.Has(models.ColAverageViewDuration) {
		return "", nil
	}

	ctrMed, ok := medianPtr(table.Rows, func(r *models.CanonicalRow) *float64 { return r.ClickThroughRate })
	if !ok {
		return "", nil
	}
	avdMed, ok := medianPtr(table.Rows, func(r *models.CanonicalRow) *float64 { return r.AverageViewDuration })
	if !ok {
		return "", nil
	}

	var keepers []*models.CanonicalRow
	for i := range table.Rows {
		r := &table.Rows[i]
		if r.ClickThroughRate == nil || r.AverageViewDuration == nil {
			continue
		}
		if *r.ClickThroughRate < ctrMed && *r.AverageViewDuration >= avdMed {
			keepers = append(keepers, r)
		}
	}
	if len(keepers) == 0 {
		return "", nil
	}

	sort.SliceStable(keepers, func(i, j int) bool {
		return *keepers[i].AverageViewDuration > *keepers[j].AverageViewDuration
	})

	var acts []models.ActionItem
	for _, r := range topK(keepers, actionsPerRule) {
		acts = append(acts, models.ActionItem{
			Type:    "Retitle/Thumb A/B",
			VideoID: r.VideoID,
			Title:   r.Title,
			Why:     "Strong AVD but below-median CTR → packaging mismatch",
			SuggestedTests: []string{
				"Shorter, benefit-first title",
				"Clearer subject isolation in thumbnail",
				"Reduce text density <10 words",
			},
		})
	}

	return "Several videos hold attention but fail to attract clicks → packaging (title/thumbnail) is the bottleneck.", acts
}

// coldOpenDrop: average view duration under a quarter of the video length.
func coldOpenDrop(table *models.CanonicalTable) (string, []models.ActionItem) {
	if !table.Columns.Has(models.ColAverageViewDuration) || !table.Columns.Has(models.ColDurationSec) {
		return "", nil
	}

	var cold []*models.CanonicalRow
	for i := range table.Rows {
		r := &table.Rows[i]
		if r.AverageViewDuration == nil || r.DurationSec == nil {
			continue
		}
		if *r.AverageViewDuration < *r.DurationSec*0.25 {
			cold = append(cold, r)
		}
	}
	if len(cold) == 0 {
		return "", nil
	}

	sort.SliceStable(cold, func(i, j int) bool {
		return *cold[i].AverageViewDuration < *cold[j].AverageViewDuration
	})

	var acts []models.ActionItem
	for _, r := range topK(cold, actionsPerRule) {
		acts = append(acts, models.ActionItem{
			Type:    "Rewrite cold open",
			VideoID: r.VideoID,
			Title:   r.Title,
			Why:     "Average view duration <25% of video length",
			SuggestedTests: []string{
				"Lead with result/controversy in first 5–10s",
				"Cut preamble; add kinetic b-roll",
				"Front-load a visual payoff",
			},
		})
	}

	return "Many viewers bounce in the first quarter → cold opens are too slow or off-target.", acts
}

// evergreenResurfacing: within the most recently published window, videos
// whose view count beats the window median.
func evergreenResurfacing(table *models.CanonicalTable) (string, []models.ActionItem) {
	if !table.Columns.Has(models.ColViewCount) {
		return "", nil
	}

	window := make([]*models.CanonicalRow, 0, len(table.Rows))
	for i := range table.Rows {
		window = append(window, &table.Rows[i])
	}
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].PublishedAt.Before(window[j].PublishedAt)
	})
	if len(window) > evergreenWindow {
		window = window[len(window)-evergreenWindow:]
	}

	med, ok := medianInt(window, func(r *models.CanonicalRow) *int64 { return r.ViewCount })
	if !ok {
		return "", nil
	}

	var hot []*models.CanonicalRow
	for _, r := range window {
		if r.ViewCount != nil && float64(*r.ViewCount) > med {
			hot = append(hot, r)
		}
	}
	if len(hot) == 0 {
		return "", nil
	}

	sort.SliceStable(hot, func(i, j int) bool {
		return *hot[i].ViewCount > *hot[j].ViewCount
	})

	var acts []models.ActionItem
	for _, r := range topK(hot, actionsPerRule) {
		acts = append(acts, models.ActionItem{
			Type:    "Resurface evergreen",
			VideoID: r.VideoID,
			Title:   r.Title,
			Why:     "High views despite age",
			SuggestedTests: []string{
				"Create 30–45s short with best moment",
				"Add end screen from new upload",
				"Minor title refresh (clarify benefit)",
			},
		})
	}

	return "Some older videos still pull views → resurface them via new short/clip or updated title.", acts
}

// thinDescription: descriptions too short to carry search intent. The
// insight fires on any thin row; action items additionally need a view count
// to rank by.
func thinDescription(table *models.CanonicalTable) (string, []models.ActionItem) {
	var thin []*models.CanonicalRow
	for i := range table.Rows {
		r := &table.Rows[i]
		if utf8.RuneCountInString(r.Description) < thinDescriptionLen {
			thin = append(thin, r)
		}
	}
	if len(thin) == 0 {
		return "", nil
	}

	var ranked []*models.CanonicalRow
	if table.Columns.Has(models.ColViewCount) {
		for _, r := range thin {
			if r.ViewCount != nil {
				ranked = append(ranked, r)
			}
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return *ranked[i].ViewCount > *ranked[j].ViewCount
		})
	}

	var acts []models.ActionItem
	for _, r := range topK(ranked, actionsPerRule) {
		acts = append(acts, models.ActionItem{
			Type:    "Improve description",
			VideoID: r.VideoID,
			Title:   r.Title,
			Why:     "Very short description",
			SuggestedTests: []string{
				"2–3 keyword-rich lines summarizing payoff",
				"Timestamps and resources",
				"Pin complementary comment",
			},
		})
	}

	return "Some videos have thin descriptions → hurts search intent and external discovery.", acts
}

func topK(rows []*models.CanonicalRow, k int) []*models.CanonicalRow {
	if len(rows) > k {
		return rows[:k]
	}
	return rows
}

// medianPtr computes the median of a float column, ignoring missing values.
// ok is false when every value is missing.
func medianPtr(rows []models.CanonicalRow, get func(*models.CanonicalRow) *float64) (float64, bool) {
	var vals []float64
	for i := range rows {
		if v := get(&rows[i]); v != nil {
			vals = append(vals, *v)
		}
	}
	return median(vals)
}

func medianInt(rows []*models.CanonicalRow, get func(*models.CanonicalRow) *int64) (float64, bool) {
	var vals []float64
	for _, r := range rows {
		if v := get(r); v != nil {
			vals = append(vals, float64(*v))
		}
	}
	return median(vals)
}

func median(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}
