package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"rio-pipeline/pipeline"
)

var (
	runSource   string
	runInput    string
	runOutput   string
	runRefine   bool
	runProvider string
	runLocale   string
	runPostgres bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and write the output table",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("source") {
			cfg.InputSource = strings.ToLower(runSource)
		}
		if flags.Changed("input") {
			cfg.InputPath = runInput
		}
		if flags.Changed("output") {
			cfg.OutputPath = runOutput
		}
		if flags.Changed("refine") {
			cfg.RefineEnabled = runRefine
		}
		if flags.Changed("provider") {
			cfg.LLMProvider = strings.ToLower(runProvider)
		}
		if flags.Changed("locale") {
			cfg.LabelLocale = runLocale
		}
		if flags.Changed("postgres") {
			cfg.PostgresEnabled = runPostgres
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("=== Auction KPI pipeline starting ===")
		logger.Info("Config: source=%s | refine=%t | concurrency=%d | rate=%dms | kpi: ROI >= %.2f, label %s, ratio %.2f",
			cfg.InputSource, cfg.RefineEnabled, cfg.MaxConcurrency, cfg.RateLimitMs,
			cfg.KPI.ROIThreshold, cfg.KPI.TargetLabel, cfg.KPI.PassRatio)

		p, cleanup, err := pipeline.Build(ctx, cfg, logger)
		defer cleanup()
		if err != nil {
			return err
		}

		summary, err := p.Run(ctx)
		if summary != nil && len(summary.RowErrors) > 0 {
			logger.Warn("%d records were not processed cleanly", len(summary.RowErrors))
		}
		return err
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runSource, "source", "csv", "input source: csv or api")
	f.StringVarP(&runInput, "input", "i", "", "input CSV path")
	f.StringVarP(&runOutput, "output", "o", "", "output CSV path")
	f.BoolVar(&runRefine, "refine", false, "refine each record with a language model")
	f.StringVar(&runProvider, "provider", "openai", "language model provider: openai or gemini")
	f.StringVar(&runLocale, "locale", "en", "risk label language in the output: en or it")
	f.BoolVar(&runPostgres, "postgres", false, "also store the table in PostgreSQL")
}
