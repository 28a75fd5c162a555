package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rio-pipeline/services"
	"rio-pipeline/storage"
)

var checkFile string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that an output table meets the KPI",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.OutputPath
		if cmd.Flags().Changed("file") {
			path = checkFile
		}

		res, err := checkTable(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "PASS: %s\n", res)
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkFile, "file", "f", "", "table to check (defaults to OUTPUT_PATH)")
}

func checkTable(path string) (services.KPIResult, error) {
	rows, rowErrs, err := storage.ReadCSV(path)
	if err != nil {
		return services.KPIResult{}, err
	}
	for _, re := range rowErrs {
		logger.Warn("[check] %v", re)
	}

	records, normErrs := services.NewNormalizer(logger).NormalizeAll(rows)
	for _, re := range normErrs {
		logger.Warn("[check] %v", re)
	}

	res, err := services.CheckKPI(records, cfg.KPI)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}
