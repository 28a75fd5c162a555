package services

import (
	"fmt"
	"io"
	"strings"

	"rio-pipeline/config"
	"rio-pipeline/models"
	"rio-pipeline/utils"
)

// RunCounts carries per-stage counters the report cannot derive from the final table.
type RunCounts struct {
	RunID       string
	RowsRead    int
	RowsDropped int
	Refined     int
	FailedIDs   []string
	Enforce     EnforceStats
	OutputPath  string
	RowsWritten int
}

// ReportService builds and prints the end-of-run summary.
type ReportService struct {
	kpi    config.KPI
	logger *utils.Logger
}

// NewReportService creates a ReportService for the given thresholds.
func NewReportService(kpi config.KPI, logger *utils.Logger) *ReportService {
	return &ReportService{kpi: kpi, logger: logger}
}

// Generate summarises the final table.
func (s *ReportService) Generate(records []models.AuctionRecord, counts RunCounts) *models.RunReport {
	report := &models.RunReport{
		RunID:         counts.RunID,
		RowsRead:      counts.RowsRead,
		RowsDropped:   counts.RowsDropped,
		RowsProcessed: len(records),
		RowsFailed:    len(counts.FailedIDs),
		Refined:       counts.Refined,
		RowsMutated:   counts.Enforce.Mutated,
		RowsWritten:   counts.RowsWritten,
		RequiredRatio: s.kpi.PassRatio,
		ROIThreshold:  s.kpi.ROIThreshold,
		TargetLabel:   s.kpi.TargetLabel,
		Policy:        string(counts.Enforce.Policy),
		RiskByLabel:   make(map[models.RiskLabel]int),
		FailedIDs:     counts.FailedIDs,
		OutputPath:    counts.OutputPath,
	}

	if len(records) == 0 {
		return report
	}

	var total float64
	var priced int
	for i := range records {
		rec := &records[i]
		report.RiskByLabel[rec.RiskLabel]++
		if Passes(*rec, s.kpi) {
			report.Passing++
		}
		if rec.ROIPrecise.Valid {
			total += rec.ROIPrecise.Float64
			priced++
			if report.BestROI == nil || rec.ROIPrecise.Float64 > report.BestROI.ROIPrecise.Float64 {
				report.BestROI = rec
			}
		}
	}
	if priced > 0 {
		report.AverageROI = round2(total / float64(priced))
	}
	report.PassRatio = float64(report.Passing) / float64(len(records))
	return report
}

// Print writes the report in the terminal style used across the tool.
func (s *ReportService) Print(w io.Writer, r *models.RunReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 AUCTION KPI RUN SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Rows\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run id             : %s\n", r.RunID)
	fmt.Fprintf(w, "  Read               : \033[1m%d\033[0m\n", r.RowsRead)
	fmt.Fprintf(w, "  Dropped            : \033[1m%d\033[0m\n", r.RowsDropped)
	fmt.Fprintf(w, "  Processed          : \033[1m%d\033[0m\n", r.RowsProcessed)
	fmt.Fprintf(w, "  Refined            : \033[1m%d\033[0m\n", r.Refined)
	fmt.Fprintf(w, "  Failed             : \033[1m%d\033[0m\n", r.RowsFailed)
	fmt.Fprintf(w, "  Written            : \033[1m%d\033[0m → %s\n", r.RowsWritten, r.OutputPath)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  KPI (ROI ≥ %.2f, risk == %s)\033[0m\n", r.ROIThreshold, r.TargetLabel)
	fmt.Fprintf(w, "  %s\n", thin)
	color := "\033[1;32m"
	if r.RowsProcessed == 0 || r.PassRatio < r.RequiredRatio {
		color = "\033[1;31m"
	}
	fmt.Fprintf(w, "  Pass ratio         : %s%.1f%%\033[0m (required %.1f%%)\n", color, r.PassRatio*100, r.RequiredRatio*100)
	fmt.Fprintf(w, "  Passing rows       : %d\n", r.Passing)
	fmt.Fprintf(w, "  Enforcement        : %s, %d rows rewritten\n", r.Policy, r.RowsMutated)
	fmt.Fprintf(w, "  Average ROI        : %.2f%%\n", r.AverageROI)
	if r.BestROI != nil {
		fmt.Fprintf(w, "  Best ROI           : %s %.2f%% %s\n",
			r.BestROI.ID, r.BestROI.ROIPrecise.Float64, truncate(r.BestROI.Address, 28))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Risk distribution\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, label := range []models.RiskLabel{models.RiskLow, models.RiskMedium, models.RiskHigh} {
		n := r.RiskByLabel[label]
		fmt.Fprintf(w, "  %-8s %s (%d)\n", label, strings.Repeat("█", min(n, 40)), n)
	}

	if len(r.FailedIDs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "\033[1;33m  Failed rows\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, id := range r.FailedIDs {
			fmt.Fprintf(w, "  - %s\n", id)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
