package insights

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yt-audit/backend/internal/metrics"
	"github.com/yt-audit/backend/internal/storage/models"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int64) *int64     { return &v }

func row(id string, day int) models.CanonicalRow {
	return models.CanonicalRow{
		VideoID:     id,
		Title:       "video " + id,
		PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
	}
}

func TestPackagingMismatch(t *testing.T) {
	// Four rows; medians: CTR 0.045, AVD 135. Rows b and c are below-median
	// CTR with at-or-above-median AVD.
	table := &models.CanonicalTable{
		Columns: models.ColumnSet(models.ColClickThroughRate | models.ColAverageViewDuration),
	}
	specs := []struct {
		id  string
		ctr float64
		avd float64
	}{
		{"a", 0.08, 100},
		{"b", 0.02, 150},
		{"c", 0.03, 300},
		{"d", 0.06, 120},
	}
	for i, s := range specs {
		r := row(s.id, i)
		r.ClickThroughRate = fptr(s.ctr)
		r.AverageViewDuration = fptr(s.avd)
		table.Rows = append(table.Rows, r)
	}

	insights, actions := heuristics(table)

	if len(insights) != 1 {
		t.Fatalf("insights = %d, want exactly 1", len(insights))
	}
	if !strings.Contains(insights[0], "packaging") {
		t.Errorf("unexpected insight: %q", insights[0])
	}
	if len(actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(actions))
	}
	for _, a := range actions {
		if a.Type != "Retitle/Thumb A/B" {
			t.Errorf("action type = %q, want Retitle/Thumb A/B", a.Type)
		}
	}
	// Descending AVD: c (300) before b (150).
	if actions[0].VideoID != "c" || actions[1].VideoID != "b" {
		t.Errorf("action order = [%s %s], want [c b]", actions[0].VideoID, actions[1].VideoID)
	}
}

func TestPackagingMismatchSkippedWithoutColumns(t *testing.T) {
	table := &models.CanonicalTable{Columns: models.ColumnSet(models.ColViews)}
	r := row("a", 0)
	r.Views = fptr(100)
	table.Rows = append(table.Rows, r)

	if ins, acts := packagingMismatch(table); ins != "" || acts != nil {
		t.Error("rule fired without its required columns")
	}
}

func TestColdOpenDrop(t *testing.T) {
	table := &models.CanonicalTable{
		Columns: models.ColumnSet(models.ColAverageViewDuration | models.ColDurationSec),
	}
	a := row("a", 0)
	a.AverageViewDuration = fptr(30)
	a.DurationSec = fptr(600) // 5% retained
	b := row("b", 1)
	b.AverageViewDuration = fptr(400)
	b.DurationSec = fptr(600) // fine
	table.Rows = append(table.Rows, a, b)

	ins, acts := coldOpenDrop(table)
	if ins == "" {
		t.Fatal("rule did not fire")
	}
	if len(acts) != 1 || acts[0].VideoID != "a" || acts[0].Type != "Rewrite cold open" {
		t.Errorf("unexpected actions: %+v", acts)
	}
}

func TestEvergreenResurfacing(t *testing.T) {
	table := &models.CanonicalTable{Columns: models.ColumnSet(models.ColViewCount)}
	views := []int64{10, 20, 1000, 30, 5000}
	for i, v := range views {
		r := row(string(rune('a'+i)), i)
		r.ViewCount = iptr(v)
		table.Rows = append(table.Rows, r)
	}

	ins, acts := evergreenResurfacing(table)
	if ins == "" {
		t.Fatal("rule did not fire")
	}
	// Median 30: videos with 1000 and 5000 beat it, sorted descending.
	if len(acts) != 2 {
		t.Fatalf("actions = %d, want 2", len(acts))
	}
	if acts[0].VideoID != "e" || acts[1].VideoID != "c" {
		t.Errorf("action order = [%s %s], want [e c]", acts[0].VideoID, acts[1].VideoID)
	}
	if acts[0].Type != "Resurface evergreen" {
		t.Errorf("action type = %q", acts[0].Type)
	}
}

func TestThinDescription(t *testing.T) {
	table := &models.CanonicalTable{Columns: models.ColumnSet(models.ColViewCount)}

	thin := row("a", 0)
	thin.Description = ""
	thin.ViewCount = iptr(100)

	fine := row("b", 1)
	fine.Description = strings.Repeat("x", 100)
	fine.ViewCount = iptr(200)

	table.Rows = append(table.Rows, thin, fine)

	ins, acts := thinDescription(table)
	if ins == "" {
		t.Fatal("rule did not fire")
	}
	if len(acts) != 1 {
		t.Fatalf("actions = %d, want 1", len(acts))
	}
	if acts[0].VideoID != "a" || acts[0].Type != "Improve description" {
		t.Errorf("unexpected action: %+v", acts[0])
	}
}

func TestThinDescriptionInsightWithoutViewCount(t *testing.T) {
	// The insight still fires when no view count exists to rank actions by.
	table := &models.CanonicalTable{}
	r := row("a", 0)
	r.Description = "short"
	table.Rows = append(table.Rows, r)

	ins, acts := thinDescription(table)
	if ins == "" {
		t.Error("insight suppressed without viewCount column")
	}
	if len(acts) != 0 {
		t.Errorf("actions = %d, want 0 without a rankable view count", len(acts))
	}
}

func TestThinDescriptionCountsRunesNotBytes(t *testing.T) {
	table := &models.CanonicalTable{Columns: models.ColumnSet(models.ColViewCount)}

	// 30 runes but 90 bytes: thin.
	multi := row("a", 0)
	multi.Description = strings.Repeat("ありがとう", 6)
	multi.ViewCount = iptr(100)

	// 70 runes of ASCII: not thin.
	long := row("b", 1)
	long.Description = strings.Repeat("x", 70)
	long.ViewCount = iptr(200)

	table.Rows = append(table.Rows, multi, long)

	ins, acts := thinDescription(table)
	if ins == "" {
		t.Fatal("rule did not fire for a 30-rune description")
	}
	if len(acts) != 1 || acts[0].VideoID != "a" {
		t.Fatalf("actions = %+v, want only the non-ASCII thin row", acts)
	}
}

func TestHeuristicsCountRuleHits(t *testing.T) {
	counter := metrics.RuleTriggered.WithLabelValues("Improve description")
	before := testutil.ToFloat64(counter)

	table := &models.CanonicalTable{}
	r := row("a", 0)
	r.Description = "short"
	table.Rows = append(table.Rows, r)
	heuristics(table)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("rule hit counter moved by %v, want 1", got)
	}
}

func TestHeuristicsAdditive(t *testing.T) {
	// A table satisfying both the packaging and thin-description rules
	// produces both insights.
	table := &models.CanonicalTable{
		Columns: models.ColumnSet(models.ColClickThroughRate | models.ColAverageViewDuration),
	}
	specs := []struct {
		ctr, avd float64
	}{
		{0.08, 100}, {0.02, 150}, {0.03, 300}, {0.06, 120},
	}
	for i, s := range specs {
		r := row(string(rune('a'+i)), i)
		r.ClickThroughRate = fptr(s.ctr)
		r.AverageViewDuration = fptr(s.avd)
		r.Description = "" // thin
		table.Rows = append(table.Rows, r)
	}

	insights, _ := heuristics(table)
	if len(insights) != 2 {
		t.Fatalf("insights = %d, want 2 (rules are additive)", len(insights))
	}
}

func TestMedianIgnoresMissing(t *testing.T) {
	rows := []models.CanonicalRow{
		{ClickThroughRate: fptr(1)},
		{ClickThroughRate: nil},
		{ClickThroughRate: fptr(3)},
	}
	med, ok := medianPtr(rows, func(r *models.CanonicalRow) *float64 { return r.ClickThroughRate })
	if !ok || med != 2 {
		t.Errorf("median = %v ok=%v, want 2 true", med, ok)
	}

	none := []models.CanonicalRow{{}, {}}
	if _, ok := medianPtr(none, func(r *models.CanonicalRow) *float64 { return r.ClickThroughRate }); ok {
		t.Error("median of all-missing column reported ok")
	}
}
