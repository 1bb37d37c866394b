package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/align"
	"github.com/yt-audit/backend/internal/cache/redis"
	"github.com/yt-audit/backend/internal/insights"
	"github.com/yt-audit/backend/internal/metrics"
	"github.com/yt-audit/backend/internal/reconcile"
	"github.com/yt-audit/backend/internal/report"
	"github.com/yt-audit/backend/internal/storage/models"
	"github.com/yt-audit/backend/internal/storage/sqlite"
	"github.com/yt-audit/backend/internal/thumbs"
	"github.com/yt-audit/backend/pkg/logger"
)

// Stage identifies one step of a pipeline run, in execution order.
type Stage string

const (
	StageReconcile Stage = "reconcile"
	StageAlign     Stage = "align"
	StageThumbs    Stage = "thumbs"
	StageInsights  Stage = "insights"
	StageReport    Stage = "report"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Event is one progress update emitted during a run. The CLI logs them; the
// websocket handler streams them to the dashboard.
type Event struct {
	RunID   string `json:"runId"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
	TS      int64  `json:"ts"`
}

// Listener receives progress events. Listeners must not block.
type Listener func(Event)

// ErrRunInProgress is returned by Run when another run holds the pipeline.
var ErrRunInProgress = fmt.Errorf("a pipeline run is already in progress")

// Pipeline drives one full analysis pass: reconcile the sources into the
// canonical table, enrich it with alignment and thumbnail features, generate
// insights and write the report artifacts. At most one run executes at a time.
type Pipeline struct {
	db         *sqlite.Client
	reconciler *reconcile.Reconciler
	scorer     *align.Scorer
	extractor  *thumbs.Extractor
	engine     *insights.Engine
	writer     *report.Writer
	cache      *redis.Client

	processedDir string

	mu        sync.Mutex
	running   bool
	listeners map[int]Listener
	nextID    int
}

func New(db *sqlite.Client, reconciler *reconcile.Reconciler, scorer *align.Scorer,
	extractor *thumbs.Extractor, engine *insights.Engine, writer *report.Writer,
	cache *redis.Client, processedDir string) *Pipeline {
	return &Pipeline{
		db:           db,
		reconciler:   reconciler,
		scorer:       scorer,
		extractor:    extractor,
		engine:       engine,
		writer:       writer,
		cache:        cache,
		processedDir: processedDir,
		listeners:    make(map[int]Listener),
	}
}

// Subscribe registers a progress listener and returns its remove function.
func (p *Pipeline) Subscribe(fn Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Running reports whether a run is currently executing.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) emit(runID string, stage Stage, msg string) {
	ev := Event{RunID: runID, Stage: stage, Message: msg, TS: time.Now().Unix()}
	p.mu.Lock()
	for _, fn := range p.listeners {
		fn(ev)
	}
	p.mu.Unlock()
}

// Options control a single run.
type Options struct {
	// UseCache skips reconciliation when a canonical table already exists,
	// regenerating insights from the stored table instead.
	UseCache bool
}

// Result is the outcome of one completed run.
type Result struct {
	RunID      string
	Payload    *models.ReportPayload
	Provenance models.Provenance
	VideoCount int
	Duration   time.Duration
}

// tryAcquire claims the single run slot. Callers that get true must release.
func (p *Pipeline) tryAcquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.running = true
	return true
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// Run executes the full pipeline once. Concurrent calls beyond the first
// return ErrRunInProgress.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if !p.tryAcquire() {
		return nil, ErrRunInProgress
	}
	defer p.release()
	return p.execute(ctx, opts)
}

// StartRun claims the run slot synchronously, then executes the run in the
// background. Callers can therefore reject a concurrent trigger before
// detaching; the run's own failures are logged, not returned.
func (p *Pipeline) StartRun(ctx context.Context, opts Options) error {
	if !p.tryAcquire() {
		return ErrRunInProgress
	}
	go func() {
		defer p.release()
		p.execute(ctx, opts)
	}()
	return nil
}

func (p *Pipeline) execute(ctx context.Context, opts Options) (*Result, error) {
	runID := uuid.New().String()
	start := time.Now()
	logger.Info("Pipeline run started", zap.String("run_id", runID), zap.Bool("use_cache", opts.UseCache))

	res, err := p.run(ctx, runID, opts, start)
	elapsed := time.Since(start)

	if err != nil {
		metrics.PipelineRunDuration.WithLabelValues("error").Observe(elapsed.Seconds())
		p.emit(runID, StageFailed, err.Error())
		logger.Error("Pipeline run failed", zap.String("run_id", runID), zap.Error(err))
		return nil, err
	}

	metrics.PipelineRunDuration.WithLabelValues("ok").Observe(elapsed.Seconds())
	res.RunID = runID
	res.Duration = elapsed
	p.emit(runID, StageDone, fmt.Sprintf("run complete in %s", elapsed.Round(time.Millisecond)))
	logger.Info("Pipeline run complete",
		zap.String("run_id", runID),
		zap.String("source", string(res.Provenance.Source)),
		zap.Int("videos", res.VideoCount),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, opts Options, start time.Time) (*Result, error) {
	table, comments, prov, err := p.canonical(runID, opts)
	if err != nil {
		return nil, err
	}

	p.enrichAlignment(ctx, runID, table)
	p.enrichThumbnails(ctx, runID, table)

	// Persist the enriched table so cached reruns see the same columns.
	if err := p.db.SaveMasterJoin(table); err != nil {
		return nil, fmt.Errorf("failed to persist enriched canonical table: %w", err)
	}

	p.emit(runID, StageInsights, "generating insights")
	payload := p.engine.Generate(ctx, table, prov, comments)
	corr := insights.Correlations(table)

	p.emit(runID, StageReport, "writing report artifacts")
	if err := p.writer.Write(&payload, corr); err != nil {
		return nil, err
	}

	if err := p.record(ctx, runID, &payload, len(table.Rows), start); err != nil {
		logger.Warn("Failed to record run", zap.String("run_id", runID), zap.Error(err))
	}

	return &Result{
		Payload:    &payload,
		Provenance: prov,
		VideoCount: len(table.Rows),
	}, nil
}

// canonical returns the table to analyze, either freshly reconciled or loaded
// from the previous run when the caller asked for the cached path.
func (p *Pipeline) canonical(runID string, opts Options) (*models.CanonicalTable, []models.Comment, models.Provenance, error) {
	if opts.UseCache {
		table, comments, err := p.reconciler.LoadCached()
		if err != nil {
			return nil, nil, models.Provenance{}, err
		}
		if table != nil {
			prov, err := reconcile.ReadProvenance(p.processedDir)
			if err != nil {
				logger.Warn("Provenance record unreadable, treating run as degraded", zap.Error(err))
				prov = models.Provenance{Source: models.SourceVideosOnly}
			}
			p.emit(runID, StageReconcile, fmt.Sprintf("loaded cached table (%d rows)", len(table.Rows)))
			return table, comments, prov, nil
		}
		logger.Info("No cached canonical table, reconciling from sources")
	}

	p.emit(runID, StageReconcile, "reconciling metric sources")
	result, err := p.reconciler.Reconcile()
	if err != nil {
		return nil, nil, models.Provenance{}, err
	}
	metrics.ReconcileSource.WithLabelValues(string(result.Provenance.Source)).Inc()

	comments, err := p.db.LoadComments()
	if err != nil {
		logger.Warn("Comments table unavailable", zap.Error(err))
		comments = nil
	}
	return result.Table, comments, result.Provenance, nil
}

func (p *Pipeline) enrichAlignment(ctx context.Context, runID string, table *models.CanonicalTable) {
	if p.scorer == nil {
		return
	}
	caps, err := p.db.LoadCaptionsIndex()
	if err != nil {
		logger.Warn("Captions index unavailable, skipping alignment", zap.Error(err))
		return
	}
	if len(caps) == 0 {
		return
	}
	p.emit(runID, StageAlign, fmt.Sprintf("scoring title/caption alignment (%d captions)", len(caps)))
	p.scorer.ScoreTable(ctx, table, caps)
}

// enrichThumbnails merges thumbnail features into the table, extracting them
// from stored thumbnail URLs when no features exist yet. Failures degrade to
// an unenriched table.
func (p *Pipeline) enrichThumbnails(ctx context.Context, runID string, table *models.CanonicalTable) {
	features, err := p.db.LoadThumbFeatures()
	if err != nil {
		logger.Warn("Thumbnail features unavailable", zap.Error(err))
		return
	}

	if len(features) == 0 && p.extractor != nil {
		refs, err := p.db.ListThumbnailURLs()
		if err != nil || len(refs) == 0 {
			return
		}
		p.emit(runID, StageThumbs, fmt.Sprintf("extracting thumbnail features (%d images)", len(refs)))
		features, err = p.extractor.ExtractAll(ctx, refs)
		if err != nil {
			logger.Warn("Thumbnail feature extraction failed", zap.Error(err))
			return
		}
		if err := p.db.ReplaceThumbFeatures(features); err != nil {
			logger.Warn("Failed to persist thumbnail features", zap.Error(err))
		}
	}
	if len(features) == 0 {
		return
	}

	MergeThumbFeatures(table, features)
}

// MergeThumbFeatures left-joins extracted thumbnail features onto the
// canonical table. TextDensity is joined as a column only when at least one
// image produced a real density; NaN-only extractions leave it absent.
func MergeThumbFeatures(table *models.CanonicalTable, features []models.ThumbFeatures) {
	if len(features) == 0 {
		return
	}
	byID := make(map[string]models.ThumbFeatures, len(features))
	anyDensity := false
	for _, f := range features {
		byID[f.VideoID] = f
		if f.TextDensity == f.TextDensity { // not NaN
			anyDensity = true
		}
	}

	table.Columns.Add(models.ColSharpness)
	table.Columns.Add(models.ColBrightness)
	table.Columns.Add(models.ColContrast)
	if anyDensity {
		table.Columns.Add(models.ColTextDensity)
	}

	for i := range table.Rows {
		f, ok := byID[table.Rows[i].VideoID]
		if !ok {
			continue
		}
		sharp, bright, contrast := f.Sharpness, f.Brightness, f.Contrast
		table.Rows[i].Sharpness = &sharp
		table.Rows[i].Brightness = &bright
		table.Rows[i].Contrast = &contrast
		if anyDensity {
			density := f.TextDensity
			table.Rows[i].TextDensity = &density
		}
	}
}

// record persists the run in history, stores the report payload and refreshes
// the report cache.
func (p *Pipeline) record(ctx context.Context, runID string, payload *models.ReportPayload, videoCount int, start time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal report payload: %w", err)
	}
	if err := p.db.SaveReport(runID, data); err != nil {
		return err
	}

	metrics.ActionsGenerated.Observe(float64(len(payload.ActionsHeuristic)))

	run := &models.RunRecord{
		ID:            runID,
		Source:        payload.Provenance.Source,
		VideoCount:    videoCount,
		InsightCount:  len(payload.InsightsHeuristic),
		ActionCount:   len(payload.ActionsHeuristic),
		NarrativeUsed: payload.NarrativeGPT != "",
		LatencyMS:     int(time.Since(start).Milliseconds()),
		CreatedAt:     time.Now(),
	}
	if err := p.db.InsertRun(run); err != nil {
		return err
	}

	if p.cache != nil {
		if err := p.cache.SetReport(ctx, payload, 24*time.Hour); err != nil {
			logger.Warn("Failed to cache report", zap.Error(err))
		}
	}
	return nil
}
