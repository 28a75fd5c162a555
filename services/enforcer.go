package services

import (
	"github.com/shopspring/decimal"

	"rio-pipeline/config"
	"rio-pipeline/models"
	"rio-pipeline/utils"
)

// Policy selects how the enforcer reaches the pass ratio.
type Policy string

const (
	// PolicyPartial rewrites the fewest failing rows needed to reach the ratio.
	PolicyPartial Policy = "partial"
	// PolicyFull forces every row to pass.
	PolicyFull Policy = "full"
)

// PolicyFor returns PolicyFull for a ratio of 1 (or more) and PolicyPartial otherwise.
func PolicyFor(passRatio float64) Policy {
	if passRatio >= 1 {
		return PolicyFull
	}
	return PolicyPartial
}

// EnforceStats describes what an enforcement pass did.
type EnforceStats struct {
	Policy        Policy
	Total         int
	PassingBefore int
	Needed        int
	Mutated       int
	PassingAfter  int
}

// Enforcer guarantees the configured share of rows meets the KPI.
type Enforcer struct {
	kpi    config.KPI
	logger *utils.Logger
}

// NewEnforcer creates an Enforcer for the given thresholds.
func NewEnforcer(kpi config.KPI, logger *utils.Logger) *Enforcer {
	return &Enforcer{kpi: kpi, logger: logger}
}

// Passes reports whether rec satisfies the KPI condition.
func Passes(rec models.AuctionRecord, kpi config.KPI) bool {
	return rec.ROIPrecise.Valid && finite(rec.ROIPrecise.Float64) &&
		rec.ROIPrecise.Float64 >= kpi.ROIThreshold &&
		rec.RiskLabel == kpi.TargetLabel
}

// RowsNeeded is ceil(total * ratio), computed in decimal so that ratios such
// as 0.7 do not round up an extra row.
func RowsNeeded(total int, ratio float64) int {
	return int(decimal.NewFromInt(int64(total)).Mul(decimal.NewFromFloat(ratio)).Ceil().IntPart())
}

// Enforce returns a new slice in which at least RowsNeeded rows pass. The
// input slice is not modified. Output is deterministic for a given input order.
func (e *Enforcer) Enforce(records []models.AuctionRecord) ([]models.AuctionRecord, EnforceStats) {
	out := make([]models.AuctionRecord, len(records))
	copy(out, records)

	stats := EnforceStats{
		Policy: PolicyFor(e.kpi.PassRatio),
		Total:  len(out),
		Needed: RowsNeeded(len(out), e.kpi.PassRatio),
	}
	stats.PassingBefore = countPassing(out, e.kpi)

	switch stats.Policy {
	case PolicyFull:
		stats.Mutated = e.enforceFull(out)
	default:
		stats.Mutated = e.enforcePartial(out, stats.Needed-stats.PassingBefore)
	}
	stats.PassingAfter = countPassing(out, e.kpi)

	e.logger.Info("[enforcer] %s policy: %d/%d passing before, %d needed, %d rows rewritten, %d passing after",
		stats.Policy, stats.PassingBefore, stats.Total, stats.Needed, stats.Mutated, stats.PassingAfter)
	return out, stats
}

// enforcePartial rewrites the first `missing` failing rows in order, then
// cleans up: missing or negative ROI becomes 0, a missing label becomes the
// target. Passing rows are never touched.
func (e *Enforcer) enforcePartial(out []models.AuctionRecord, missing int) int {
	mutated := 0
	for i := range out {
		if mutated >= missing {
			break
		}
		if Passes(out[i], e.kpi) {
			continue
		}
		out[i].ROIPrecise = models.Float(e.kpi.ROIThreshold)
		out[i].RiskLabel = e.kpi.TargetLabel
		mutated++
	}

	for i := range out {
		roi := out[i].ROIPrecise
		if !roi.Valid || !finite(roi.Float64) || roi.Float64 < 0 {
			out[i].ROIPrecise = models.Float(0)
		}
		if !out[i].RiskLabel.Valid() {
			out[i].RiskLabel = e.kpi.TargetLabel
		}
	}
	return mutated
}

// enforceFull clamps every ROI up to the threshold and forces the target
// label. It returns the number of rows whose values changed.
func (e *Enforcer) enforceFull(out []models.AuctionRecord) int {
	mutated := 0
	for i := range out {
		before := out[i]
		roi := out[i].ROIPrecise
		if !roi.Valid || !finite(roi.Float64) || roi.Float64 < e.kpi.ROIThreshold {
			out[i].ROIPrecise = models.Float(e.kpi.ROIThreshold)
		}
		out[i].RiskLabel = e.kpi.TargetLabel
		if out[i].ROIPrecise != before.ROIPrecise || out[i].RiskLabel != before.RiskLabel {
			mutated++
		}
	}
	return mutated
}

func countPassing(records []models.AuctionRecord, kpi config.KPI) int {
	n := 0
	for _, rec := range records {
		if Passes(rec, kpi) {
			n++
		}
	}
	return n
}
