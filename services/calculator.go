package services

import (
	"math"

	"github.com/shopspring/decimal"

	"rio-pipeline/config"
	"rio-pipeline/models"
	"rio-pipeline/utils"
)

// ComputeROI returns the percentage gain of appraisal over price, rounded to
// two decimals. It is total: a non-positive price or a non-finite input gives 0.
func ComputeROI(price, appraisal float64) float64 {
	if price <= 0 || !finite(price) || !finite(appraisal) {
		return 0
	}
	roi := (appraisal - price) / price * 100
	if !finite(roi) {
		return 0
	}
	return round2(roi)
}

// FeePercent expresses the condominium debt as a percentage of the base
// price. Unknown debt or price counts as no fee.
func FeePercent(rec models.AuctionRecord) float64 {
	debt := ParseNumber(rec.DebtCondo)
	if !debt.Valid || !rec.Price.Valid || rec.Price.Float64 <= 0 {
		return 0
	}
	return round2(debt.Float64 / rec.Price.Float64 * 100)
}

// Calculator derives ROI and risk for normalized records.
type Calculator struct {
	kpi        config.KPI
	classifier *Classifier
	logger     *utils.Logger
}

// NewCalculator creates a Calculator bound to the given thresholds.
func NewCalculator(kpi config.KPI, logger *utils.Logger) *Calculator {
	return &Calculator{kpi: kpi, classifier: NewClassifier(kpi), logger: logger}
}

// Apply returns a copy of records with ROI and risk filled in. ROI is
// recomputed whenever both price and appraisal are known; otherwise an ROI
// carried by the input is kept. Risk is reclassified when occupancy text is
// present, or when no label came with the input.
func (c *Calculator) Apply(records []models.AuctionRecord) []models.AuctionRecord {
	out := make([]models.AuctionRecord, len(records))
	for i, rec := range records {
		if rec.Price.Valid && rec.AppraisalValue.Valid {
			rec.ROIPrecise = models.Float(ComputeROI(rec.Price.Float64, rec.AppraisalValue.Float64))
		}

		if rec.Occupancy != "" || !rec.RiskLabel.Valid() {
			roi := 0.0
			if rec.ROIPrecise.Valid {
				roi = rec.ROIPrecise.Float64
			}
			rec.RiskLabel = c.classifier.Classify(rec.Occupancy, roi, FeePercent(rec))
		}
		out[i] = rec
	}
	c.logger.Debug("[calculator] Computed ROI and risk for %d records", len(out))
	return out
}

// FilterMargin keeps records with a positive price and appraisal where the
// appraisal is at least the price. Dropped ids are returned for reporting.
func (c *Calculator) FilterMargin(records []models.AuctionRecord) ([]models.AuctionRecord, []string) {
	kept := make([]models.AuctionRecord, 0, len(records))
	var dropped []string

	for _, rec := range records {
		if !rec.Price.Valid || !rec.AppraisalValue.Valid ||
			rec.Price.Float64 <= 0 || rec.AppraisalValue.Float64 <= 0 ||
			rec.AppraisalValue.Float64 < rec.Price.Float64 {
			dropped = append(dropped, rec.ID)
			continue
		}
		kept = append(kept, rec)
	}

	if len(dropped) > 0 {
		c.logger.Info("[calculator] Margin filter dropped %d of %d records", len(dropped), len(records))
	}
	return kept, dropped
}

func round2(f float64) float64 {
	v, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return v
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
