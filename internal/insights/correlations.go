package insights

import (
	"math"

	"github.com/yt-audit/backend/internal/storage/models"
)

// CorrelationMatrix is a small labelled Pearson matrix over the whitelisted
// canonical columns.
type CorrelationMatrix struct {
	Labels []string
	Values [][]float64
}

type corrCol struct {
	label string
	col   models.Column
	get   func(*models.CanonicalRow) *float64
}

var corrWhitelist = []corrCol{
	{"clickThroughRate", models.ColClickThroughRate, func(r *models.CanonicalRow) *float64 { return r.ClickThroughRate }},
	{"averageViewDuration", models.ColAverageViewDuration, func(r *models.CanonicalRow) *float64 { return r.AverageViewDuration }},
	{"title_caption_sim", models.ColTitleCaptionSim, func(r *models.CanonicalRow) *float64 { return r.TitleCaptionSim }},
}

// Correlations computes pairwise-complete Pearson correlations over the
// whitelisted columns present in the table. Returns nil when no whitelisted
// column is present.
func Correlations(table *models.CanonicalTable) *CorrelationMatrix {
	var cols []corrCol
	for _, c := range corrWhitelist {
		if table.Columns.Has(c.col) {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil
	}

	m := &CorrelationMatrix{
		Labels: make([]string, len(cols)),
		Values: make([][]float64, len(cols)),
	}
	for i, c := range cols {
		m.Labels[i] = c.label
		m.Values[i] = make([]float64, len(cols))
	}

	for i := range cols {
		for j := range cols {
			if i == j {
				m.Values[i][j] = 1
				continue
			}
			m.Values[i][j] = pearson(table.Rows, cols[i].get, cols[j].get)
		}
	}

	return m
}

// pearson uses only rows where both values are present and finite. NaN when
// fewer than two complete pairs exist or a column is constant.
func pearson(rows []models.CanonicalRow, getX, getY func(*models.CanonicalRow) *float64) float64 {
	var xs, ys []float64
	for i := range rows {
		x := getX(&rows[i])
		y := getY(&rows[i])
		if x == nil || y == nil || math.IsNaN(*x) || math.IsNaN(*y) {
			continue
		}
		xs = append(xs, *x)
		ys = append(ys, *y)
	}
	n := float64(len(xs))
	if n < 2 {
		return math.NaN()
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return math.NaN()
	}

	return cov / math.Sqrt(varX*varY)
}
