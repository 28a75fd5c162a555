package services

import (
	"fmt"

	"rio-pipeline/config"
	"rio-pipeline/models"
)

// KPIResult is the outcome of checking a table against the KPI.
type KPIResult struct {
	Total        int
	Passing      int
	Ratio        float64
	Required     float64
	ROIThreshold float64
	TargetLabel  models.RiskLabel
}

func (r KPIResult) String() string {
	return fmt.Sprintf("%.1f%% of %d records satisfy ROI ≥ %.2f and risk == %s (required %.1f%%)",
		r.Ratio*100, r.Total, r.ROIThreshold, r.TargetLabel, r.Required*100)
}

// Met reports whether the observed ratio reaches the requirement.
func (r KPIResult) Met() bool {
	return r.Total > 0 && r.Ratio >= r.Required
}

// CheckKPI computes the passing ratio. An empty table returns ErrEmptyTable
// and a ratio below the requirement returns ErrKPIShortfall; both errors
// carry the observed ratio and the thresholds used.
func CheckKPI(records []models.AuctionRecord, kpi config.KPI) (KPIResult, error) {
	res := KPIResult{
		Total:        len(records),
		Passing:      countPassing(records, kpi),
		Required:     kpi.PassRatio,
		ROIThreshold: kpi.ROIThreshold,
		TargetLabel:  kpi.TargetLabel,
	}
	if res.Total == 0 {
		return res, fmt.Errorf("%w (ROI ≥ %.2f, risk == %s, required %.1f%%)",
			ErrEmptyTable, kpi.ROIThreshold, kpi.TargetLabel, kpi.PassRatio*100)
	}

	res.Ratio = float64(res.Passing) / float64(res.Total)
	if !res.Met() {
		return res, fmt.Errorf("%w: %s", ErrKPIShortfall, res)
	}
	return res, nil
}
