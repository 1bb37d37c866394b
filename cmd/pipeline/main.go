package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/align"
	"github.com/yt-audit/backend/internal/cache/redis"
	"github.com/yt-audit/backend/internal/ingestion/youtube"
	"github.com/yt-audit/backend/internal/insights"
	"github.com/yt-audit/backend/internal/llm"
	"github.com/yt-audit/backend/internal/metrics"
	"github.com/yt-audit/backend/internal/pipeline"
	"github.com/yt-audit/backend/internal/reconcile"
	"github.com/yt-audit/backend/internal/report"
	"github.com/yt-audit/backend/internal/storage/sqlite"
	"github.com/yt-audit/backend/internal/thumbs"
	"github.com/yt-audit/backend/pkg/config"
	appLogger "github.com/yt-audit/backend/pkg/logger"
)

// app bundles everything a subcommand may need, built once per invocation.
type app struct {
	cfg        *config.Config
	db         *sqlite.Client
	cache      *redis.Client
	reconciler *reconcile.Reconciler
	pipe       *pipeline.Pipeline
}

var useCache bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Creator analytics pipeline",
		Long: `Fetches channel data from the YouTube Data and Analytics APIs,
reconciles it into one canonical per-video table, and generates
heuristic insights plus report artifacts.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(fetchCmd(), reconcileCmd(), enrichCmd(), reportCmd(), runCmd(), scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	metrics.Init()

	db, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			cache = nil
		}
	}

	var embCache llm.EmbeddingCache
	if cache != nil {
		embCache = cache
	}
	llmClient := llm.NewClient(&cfg.LLM, embCache)
	reconciler := reconcile.New(db, cfg.Storage.ProcessedDir)

	pipe := pipeline.New(
		db,
		reconciler,
		align.NewScorer(llmClient),
		thumbs.NewExtractor(cfg.Storage.RawDir, nil),
		insights.NewEngine(llmClient),
		report.NewWriter(cfg.Storage.ReportsDir),
		cache,
		cfg.Storage.ProcessedDir,
	)

	// Log each stage transition so unattended runs leave a trail.
	pipe.Subscribe(func(ev pipeline.Event) {
		appLogger.Info("Pipeline progress",
			zap.String("run_id", ev.RunID),
			zap.String("stage", string(ev.Stage)),
			zap.String("message", ev.Message),
		)
	})

	return &app{
		cfg:        cfg,
		db:         db,
		cache:      cache,
		reconciler: reconciler,
		pipe:       pipe,
	}, nil
}

func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
	a.db.Close()
	appLogger.Sync()
}

func (a *app) ingestionClient(ctx context.Context) (*youtube.Client, error) {
	return youtube.NewClient(ctx, &a.cfg.YouTube, a.db, a.cfg.Storage.RawDir)
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch videos, stats, analytics, comments and captions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			yt, err := a.ingestionClient(ctx)
			if err != nil {
				return err
			}

			videos, err := yt.FetchVideos(ctx)
			if err != nil {
				return err
			}
			ids := make([]string, len(videos))
			for i, v := range videos {
				ids[i] = v.VideoID
			}

			if _, err := yt.FetchStats(ctx, ids); err != nil {
				appLogger.Warn("Stats fetch failed", zap.Error(err))
			}
			if _, err := yt.FetchAnalytics(ctx, a.cfg.Report.AnalyticsWindowDays); err != nil {
				appLogger.Warn("Analytics fetch failed", zap.Error(err))
			}
			if _, err := yt.FetchComments(ctx, ids); err != nil {
				appLogger.Warn("Comments fetch failed", zap.Error(err))
			}
			if _, err := yt.FetchCaptions(ctx, ids); err != nil {
				appLogger.Warn("Captions fetch failed", zap.Error(err))
			}
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Merge fetched sources into the canonical table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.reconciler.Reconcile()
			if err != nil {
				return err
			}
			fmt.Printf("Reconciled %d videos from %s\n", len(result.Table.Rows), result.Provenance.Source)
			return nil
		},
	}
}

func enrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Extract thumbnail features for stored thumbnail URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			refs, err := a.db.ListThumbnailURLs()
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				fmt.Println("No thumbnail URLs stored, run fetch first")
				return nil
			}

			extractor := thumbs.NewExtractor(a.cfg.Storage.RawDir, nil)
			features, err := extractor.ExtractAll(cmd.Context(), refs)
			if err != nil {
				return err
			}
			if err := a.db.ReplaceThumbFeatures(features); err != nil {
				return err
			}
			fmt.Printf("Extracted features for %d of %d thumbnails\n", len(features), len(refs))
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate insights and report artifacts from stored data",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.pipe.Run(cmd.Context(), pipeline.Options{UseCache: useCache})
			if err != nil {
				return err
			}
			fmt.Printf("Run %s: %d videos, %d insights, %d actions (source %s)\n",
				res.RunID, res.VideoCount,
				len(res.Payload.InsightsHeuristic), len(res.Payload.ActionsHeuristic),
				res.Provenance.Source)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useCache, "use-cache", true, "reuse the stored canonical table when present")
	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch everything, then reconcile and report in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := fullRun(cmd.Context(), a); err != nil {
				return err
			}
			return nil
		},
	}
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the full pipeline on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
			_, err = c.AddFunc(a.cfg.Report.Schedule, func() {
				if err := fullRun(ctx, a); err != nil {
					appLogger.Error("Scheduled run failed", zap.Error(err))
				}
			})
			if err != nil {
				return fmt.Errorf("invalid schedule %q: %w", a.cfg.Report.Schedule, err)
			}

			appLogger.Info("Scheduler started", zap.String("schedule", a.cfg.Report.Schedule))
			c.Start()
			<-ctx.Done()
			c.Stop()
			appLogger.Info("Scheduler stopped")
			return nil
		},
	}
}

// fullRun refreshes every source and then reconciles and reports from the
// fresh data. Individual fetch failures degrade the run instead of aborting
// it; the reconciler works with whatever landed.
func fullRun(ctx context.Context, a *app) error {
	yt, err := a.ingestionClient(ctx)
	if err != nil {
		return err
	}

	videos, err := yt.FetchVideos(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.VideoID
	}

	if _, err := yt.FetchStats(ctx, ids); err != nil {
		appLogger.Warn("Stats fetch failed", zap.Error(err))
	}
	if _, err := yt.FetchAnalytics(ctx, a.cfg.Report.AnalyticsWindowDays); err != nil {
		appLogger.Warn("Analytics fetch failed", zap.Error(err))
	}
	if _, err := yt.FetchComments(ctx, ids); err != nil {
		appLogger.Warn("Comments fetch failed", zap.Error(err))
	}
	if _, err := yt.FetchCaptions(ctx, ids); err != nil {
		appLogger.Warn("Captions fetch failed", zap.Error(err))
	}

	_, err = a.pipe.Run(ctx, pipeline.Options{UseCache: false})
	return err
}
