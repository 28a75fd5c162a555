package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"rio-pipeline/config"
	"rio-pipeline/models"
	"rio-pipeline/refiner"
	"rio-pipeline/scraper/aste"
	"rio-pipeline/scraper/perizia"
	"rio-pipeline/services"
	"rio-pipeline/storage"
	"rio-pipeline/utils"
)

// Summary is what a run hands back to its caller.
type Summary struct {
	Report    *models.RunReport
	KPI       services.KPIResult
	RowErrors []models.RowError
}

// Pipeline runs one batch: read, normalize, compute, refine, enforce, write.
type Pipeline struct {
	cfg     *config.Config
	logger  *utils.Logger
	source  RowSource
	refiner *refiner.Refiner
	output  *storage.CSVWriter
	sinks   []storage.AuctionWriter
	runID   string
	report  io.Writer
}

// New assembles a pipeline from its parts. ref may be nil to skip refinement;
// sinks are written after the CSV output, and their failures are logged only.
func New(cfg *config.Config, logger *utils.Logger, source RowSource, ref *refiner.Refiner,
	output *storage.CSVWriter, sinks ...storage.AuctionWriter) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		refiner: ref,
		output:  output,
		sinks:   sinks,
		runID:   uuid.NewString(),
		report:  os.Stdout,
	}
}

// SetReportWriter redirects the printed run summary.
func (p *Pipeline) SetReportWriter(w io.Writer) { p.report = w }

// RunID identifies this run in logs and in the database sink.
func (p *Pipeline) RunID() string { return p.runID }

// Build wires a pipeline from configuration. The returned cleanup closes
// every resource Build opened.
func Build(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var source RowSource
	switch cfg.InputSource {
	case "api":
		source = APISource{Client: aste.New(cfg, logger), Query: aste.DefaultQuery(cfg, time.Now())}
	case "csv", "":
		source = CSVSource{Path: cfg.InputPath}
	default:
		return nil, cleanup, fmt.Errorf("pipeline: unknown input source %q", cfg.InputSource)
	}

	var ref *refiner.Refiner
	if cfg.RefineEnabled {
		client, err := refiner.NewClient(ctx, cfg, logger)
		if err != nil {
			return nil, cleanup, err
		}
		docs := perizia.ChainSource{perizia.NewFileSource(cfg.PerizieDir, cfg.DocChunkChars)}
		if cfg.BrowserFallback {
			browser := perizia.NewBrowserSource(cfg.ChromeBin, cfg.DocChunkChars, &utils.RetryConfig{
				MaxAttempts: cfg.MaxRetries,
				BaseDelay:   cfg.RetryDelay,
				Logger:      logger,
			}, logger)
			closers = append(closers, browser.Close)
			docs = append(docs, browser)
		}
		ref = refiner.New(client, docs, refiner.Options{
			Timeout:        cfg.LLMTimeout,
			MaxRetries:     cfg.MaxRetries,
			RetryDelay:     cfg.RetryDelay,
			MaxConcurrency: cfg.MaxConcurrency,
			RateLimitMs:    cfg.RateLimitMs,
		}, logger)
	}

	p := New(cfg, logger, source, ref, storage.NewCSVWriter(cfg.OutputPath, cfg.LabelLocale))

	if cfg.PostgresEnabled {
		pg, err := storage.NewPostgresWriter(cfg.DSN(), p.runID, cfg.LabelLocale)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, func() { pg.Close() })
		p.sinks = append(p.sinks, pg)
	}

	return p, cleanup, nil
}

// Run executes the batch. It returns ErrNoSuccessfulRows, without writing
// anything, when no record survives to the output stage.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	log := p.logger.With("run_id", p.runID)
	start := time.Now()
	kpi := p.cfg.KPI
	summary := &Summary{}

	rows, readErrs, err := p.source.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read input: %w", err)
	}
	summary.RowErrors = append(summary.RowErrors, readErrs...)
	log.Info("[pipeline] Read %d raw rows", len(rows))

	records, normErrs := services.NewNormalizer(p.logger).NormalizeAll(rows)
	summary.RowErrors = append(summary.RowErrors, normErrs...)
	if err := services.CheckUniqueIDs(records); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	calc := services.NewCalculator(kpi, p.logger)
	dropped := 0
	if p.cfg.MarginFilter {
		var droppedIDs []string
		records, droppedIDs = calc.FilterMargin(records)
		dropped += len(droppedIDs)
	}
	records = calc.Apply(records)

	refined := 0
	if p.refiner != nil && len(records) > 0 {
		refs, refErrs := p.refiner.Refine(ctx, records)
		summary.RowErrors = append(summary.RowErrors, refErrs...)
		if len(refs) == 0 {
			log.Error("[pipeline] All %d refinements failed", len(records))
			return summary, ErrNoSuccessfulRows
		}

		merged, stats, err := services.NewMerger(p.logger).Merge(records, refs)
		if err != nil {
			return summary, fmt.Errorf("pipeline: %w", err)
		}
		records = merged
		refined = stats.Matched
	}

	if len(records) == 0 {
		log.Error("[pipeline] No records left to write")
		return summary, ErrNoSuccessfulRows
	}

	final, enforceStats := services.NewEnforcer(kpi, p.logger).Enforce(records)

	written, err := p.output.Write(final)
	if err != nil {
		return summary, fmt.Errorf("pipeline: write output: %w", err)
	}
	log.Info("[pipeline] Wrote %d rows to %s", written, p.output.Path())

	for _, sink := range p.sinks {
		if n, err := sink.Write(final); err != nil {
			log.Error("[pipeline] Sink write failed after %d rows: %v", n, err)
		} else {
			log.Info("[pipeline] Stored %d rows in sink", n)
		}
	}

	res, err := services.CheckKPI(final, kpi)
	summary.KPI = res
	if err != nil {
		return summary, fmt.Errorf("pipeline: enforced table fails the kpi: %w", err)
	}

	failed := make([]string, 0, len(summary.RowErrors))
	for _, re := range summary.RowErrors {
		failed = append(failed, re.ID)
	}

	reportSvc := services.NewReportService(kpi, p.logger)
	summary.Report = reportSvc.Generate(final, services.RunCounts{
		RunID:       p.runID,
		RowsRead:    len(rows),
		RowsDropped: dropped,
		Refined:     refined,
		FailedIDs:   failed,
		Enforce:     enforceStats,
		OutputPath:  p.output.Path(),
		RowsWritten: written,
	})
	reportSvc.Print(p.report, summary.Report)

	log.Info("[pipeline] Done in %v: %s", time.Since(start).Round(time.Millisecond), res)
	return summary, nil
}
