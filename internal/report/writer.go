package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/insights"
	"github.com/yt-audit/backend/internal/storage/models"
	"github.com/yt-audit/backend/pkg/logger"
)

// Writer serializes an insight run into the persisted report artifacts:
// insights.md, actions.csv and correlations.csv under the reports dir.
type Writer struct {
	reportsDir string
}

func NewWriter(reportsDir string) *Writer {
	return &Writer{reportsDir: reportsDir}
}

func (w *Writer) Write(payload *models.ReportPayload, corr *insights.CorrelationMatrix) error {
	if err := os.MkdirAll(w.reportsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create reports dir: %w", err)
	}

	if err := w.writeInsights(payload); err != nil {
		return err
	}
	if err := w.writeActions(payload.ActionsHeuristic); err != nil {
		return err
	}
	if corr != nil {
		if err := w.writeCorrelations(corr); err != nil {
			return err
		}
	}

	logger.Info("Reports written",
		zap.String("dir", w.reportsDir),
		zap.Int("insights", len(payload.InsightsHeuristic)),
		zap.Int("actions", len(payload.ActionsHeuristic)),
	)
	return nil
}

func (w *Writer) writeInsights(payload *models.ReportPayload) error {
	var b strings.Builder
	b.WriteString("# Weekly Insights\n\n")

	prov := payload.Provenance
	b.WriteString(fmt.Sprintf("_Source: %s • synthetic=%s • ts=%d_\n\n",
		prov.Source, syntheticLabel(prov.Synthetic), prov.TS))

	if payload.NarrativeGPT != "" {
		b.WriteString("## Narrative\n\n")
		b.WriteString(payload.NarrativeGPT)
		b.WriteString("\n\n")
	}

	if len(payload.InsightsHeuristic) > 0 {
		b.WriteString("## Heuristic Insights\n\n")
		for _, ins := range payload.InsightsHeuristic {
			b.WriteString("- ")
			b.WriteString(ins)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	path := filepath.Join(w.reportsDir, "insights.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write insights report: %w", err)
	}
	return nil
}

// writeActions exports action items with the fixed column order consumers
// rely on. Suggested tests are joined with "; " inside one cell.
func (w *Writer) writeActions(actions []models.ActionItem) error {
	path := filepath.Join(w.reportsDir, "actions.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create actions report: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"type", "videoId", "title", "why", "suggested_tests"}); err != nil {
		return fmt.Errorf("failed to write actions header: %w", err)
	}
	for _, a := range actions {
		record := []string{a.Type, a.VideoID, a.Title, a.Why, strings.Join(a.SuggestedTests, "; ")}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write action row: %w", err)
		}
	}
	cw.Flush()

	return cw.Error()
}

func (w *Writer) writeCorrelations(corr *insights.CorrelationMatrix) error {
	path := filepath.Join(w.reportsDir, "correlations.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create correlations report: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := append([]string{""}, corr.Labels...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write correlations header: %w", err)
	}
	for i, label := range corr.Labels {
		record := make([]string, 0, len(corr.Labels)+1)
		record = append(record, label)
		for _, v := range corr.Values[i] {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write correlations row: %w", err)
		}
	}
	cw.Flush()

	return cw.Error()
}

func syntheticLabel(synthetic *bool) string {
	if synthetic == nil {
		return "null"
	}
	return strconv.FormatBool(*synthetic)
}
