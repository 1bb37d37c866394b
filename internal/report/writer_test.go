package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yt-audit/backend/internal/insights"
	"github.com/yt-audit/backend/internal/storage/models"
)

func testPayload() *models.ReportPayload {
	synthetic := false
	return &models.ReportPayload{
		Provenance: models.Provenance{
			Source:    models.SourceAnalyticsPerVideo,
			Synthetic: &synthetic,
			TS:        1700000000,
		},
		InsightsHeuristic: []string{"insight one", "insight two"},
		ActionsHeuristic: []models.ActionItem{
			{
				Type:           "Retitle/Thumb A/B",
				VideoID:        "abc",
				Title:          "a, title with commas",
				Why:            "Strong AVD but below-median CTR → packaging mismatch",
				SuggestedTests: []string{"test one", "test two"},
			},
		},
		NarrativeGPT: "the narrative",
	}
}

func TestWriteInsightsMarkdown(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	if err := w.Write(testPayload(), nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "insights.md"))
	if err != nil {
		t.Fatalf("insights.md not written: %v", err)
	}
	md := string(data)

	if !strings.HasPrefix(md, "# Weekly Insights\n") {
		t.Errorf("missing header: %q", md[:40])
	}
	if !strings.Contains(md, "_Source: analytics_per_video • synthetic=false • ts=1700000000_") {
		t.Error("provenance line missing or malformed")
	}
	if !strings.Contains(md, "## Narrative\n\nthe narrative") {
		t.Error("narrative section missing")
	}
	if !strings.Contains(md, "- insight one\n- insight two\n") {
		t.Error("heuristic insight bullets missing")
	}
}

func TestWriteInsightsDegraded(t *testing.T) {
	dir := t.TempDir()
	payload := testPayload()
	payload.Provenance.Synthetic = nil
	payload.Provenance.Source = models.SourceVideosOnly
	payload.NarrativeGPT = ""

	if err := NewWriter(dir).Write(payload, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "insights.md"))
	md := string(data)
	if !strings.Contains(md, "synthetic=null") {
		t.Error("nil synthetic must print as null")
	}
	if strings.Contains(md, "## Narrative") {
		t.Error("empty narrative must omit the section")
	}
}

func TestWriteActionsCSV(t *testing.T) {
	dir := t.TempDir()
	if err := NewWriter(dir).Write(testPayload(), nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "actions.csv"))
	if err != nil {
		t.Fatalf("actions.csv not written: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("actions.csv unreadable: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want header plus 1", len(records))
	}

	wantHeader := []string{"type", "videoId", "title", "why", "suggested_tests"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}
	if records[1][0] != "Retitle/Thumb A/B" {
		t.Errorf("type = %q", records[1][0])
	}
	if records[1][2] != "a, title with commas" {
		t.Errorf("title survived quoting = %q", records[1][2])
	}
	if records[1][4] != "test one; test two" {
		t.Errorf("suggested_tests = %q, want semicolon-joined", records[1][4])
	}
}

func TestWriteCorrelationsCSV(t *testing.T) {
	dir := t.TempDir()
	corr := &insights.CorrelationMatrix{
		Labels: []string{"clickThroughRate", "averageViewDuration"},
		Values: [][]float64{{1, 0.5}, {0.5, 1}},
	}

	if err := NewWriter(dir).Write(testPayload(), corr); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "correlations.csv"))
	if err != nil {
		t.Fatalf("correlations.csv not written: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("correlations.csv unreadable: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[0][1] != "clickThroughRate" {
		t.Errorf("column label = %q", records[0][1])
	}
	if records[1][0] != "clickThroughRate" {
		t.Errorf("row label = %q", records[1][0])
	}
	if records[1][2] != "0.5" {
		t.Errorf("value = %q, want 0.5", records[1][2])
	}
}

func TestWriteNoCorrelationsFile(t *testing.T) {
	dir := t.TempDir()
	if err := NewWriter(dir).Write(testPayload(), nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "correlations.csv")); !os.IsNotExist(err) {
		t.Error("correlations.csv written without a matrix")
	}
}
