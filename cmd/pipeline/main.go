// Package main runs one consolidation batch: snapshot the branch tables,
// unify, sanitize, derive categories, label branches, persist and report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"salesbi/internal/config"
	"salesbi/internal/core/apperror"
	"salesbi/internal/domain/branch"
	"salesbi/internal/domain/feature"
	"salesbi/internal/domain/pipeline"
	"salesbi/internal/domain/reports"
	"salesbi/internal/infrastructure/metrics"
	"salesbi/internal/infrastructure/spreadsheet"
	"salesbi/internal/infrastructure/storage/postgres"
	"salesbi/internal/infrastructure/storage/postgres/artifact_repo"
	"salesbi/internal/infrastructure/storage/postgres/run_repo"
	"salesbi/internal/infrastructure/storage/postgres/source_repo"
	"salesbi/pkg/logger"
)

// exitHalted signals that the run stopped on unparsable values.
const exitHalted = 2

type flags struct {
	configPath   string
	dryRun       bool
	purgeSources bool
	exportDir    string
	top          int
	withLines    bool
	metricsFile  string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", os.Getenv("SALESBI_CONFIG"), "path to the YAML configuration file")
	flag.BoolVar(&f.dryRun, "dry-run", false, "compute everything, write nothing")
	flag.BoolVar(&f.purgeSources, "purge-sources", false, "delete non-transactional rows from the branch tables")
	flag.StringVar(&f.exportDir, "export-dir", "", "directory for the xlsx/csv export (default from config, \"-\" disables)")
	flag.IntVar(&f.top, "top", 0, "invoice ranking size (default from config)")
	flag.BoolVar(&f.withLines, "with-lines", false, "also export the labeled lines")
	flag.StringVar(&f.metricsFile, "metrics-file", "", "write run metrics in the Prometheus text format")
	flag.Parse()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log.WithComponent("pipeline"))

	if err := run(ctx, cfg, f); err != nil {
		if apperror.HasCode(err, apperror.CodeUnparsableValue) {
			log.Errorw("run halted for review", "error", err)
			stop()
			os.Exit(exitHalted)
		}
		log.Errorw("pipeline failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, f flags) error {
	pool, err := postgres.NewPool(ctx, cfg.Database.PoolConfig())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	defer postgres.LogPoolStats(ctx, pool.Pool)
	logger.Info(ctx, "connected to database")

	if !f.dryRun {
		if err := postgres.CreateSchema(ctx, pool); err != nil {
			return err
		}
	}

	txManager := postgres.NewTxManager(pool)
	codec, err := postgres.NewPayloadCodec(postgres.DefaultCompressThreshold)
	if err != nil {
		return err
	}

	san, err := cfg.Pipeline.Sanitizer()
	if err != nil {
		return fmt.Errorf("build sanitizer: %w", err)
	}
	classifier, err := feature.NewClassifier(cfg.Pipeline.CategoryRules)
	if err != nil {
		return fmt.Errorf("build classifier: %w", err)
	}
	edges, err := cfg.Pipeline.Edges()
	if err != nil {
		return err
	}

	m := metrics.New()
	svc := pipeline.NewService(cfg.Pipeline.Sources, pipeline.Deps{
		TxManager:   txManager,
		Sources:     source_repo.NewSourceRepo(txManager),
		Artifacts:   artifact_repo.NewArtifactRepo(txManager),
		Runs:        run_repo.NewRunRepo(txManager, codec),
		Sanitizer:   san,
		Classifier:  classifier,
		Labeler:     branch.NewLabeler(cfg.Pipeline.BranchSentinel),
		Metrics:     m,
		BucketEdges: edges,
	})

	top := f.top
	if top == 0 {
		top = cfg.Pipeline.TopN
	}

	res, runErr := svc.Run(ctx, pipeline.Options{
		DryRun:       f.dryRun,
		PurgeSources: f.purgeSources,
		Filter:       reports.Filter{TopN: top},
	})

	if f.metricsFile != "" {
		if err := prometheus.WriteToTextfile(f.metricsFile, m.Registry()); err != nil {
			logger.Warn(ctx, "failed to write metrics file", "path", f.metricsFile, "error", err)
		}
	}

	if runErr != nil {
		if res != nil && res.Sanitize != nil {
			for _, a := range res.Sanitize.Anomalies {
				logger.Warn(ctx, "unparsable value",
					"source", a.Source,
					"line", a.LineNo,
					"column", a.Column,
					"reason", a.Reason,
				)
			}
		}
		return runErr
	}

	logSummary(ctx, res)

	dir := f.exportDir
	if dir == "" {
		dir = cfg.Pipeline.ExportDir
	}
	if dir == "-" || dir == "" {
		return nil
	}

	sets := res.Report.ResultSets()
	if f.withLines {
		sets = append(sets, reports.LinesResultSet(res.Labeled))
	}
	paths, err := spreadsheet.WriteDir(dir, sets)
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	logger.Info(ctx, "report exported", "dir", dir, "files", len(paths))
	return nil
}

func logSummary(ctx context.Context, res *pipeline.Result) {
	if res == nil || res.Report == nil {
		return
	}
	t := res.Report.Totals
	logger.Info(ctx, "report totals",
		"invoices", t.Invoices,
		"lines", t.Lines,
		"revenue", t.Revenue.StringFixed(2),
	)
	for _, b := range res.Report.Branches {
		logger.Info(ctx, "branch revenue", "branch", b.Key, "revenue", b.Revenue.StringFixed(2), "invoices", b.Invoices)
	}
	for _, c := range res.Report.Categories {
		logger.Info(ctx, "category revenue", "category", c.Key, "revenue", c.Revenue.StringFixed(2))
	}
}
