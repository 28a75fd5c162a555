package services

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"rio-pipeline/models"
	"rio-pipeline/utils"
)

// MergeStats counts how refinements related to the base table.
type MergeStats struct {
	Matched int
	Orphans int
}

// Merger overlays refinements onto base records.
type Merger struct {
	logger *utils.Logger
}

// NewMerger creates a Merger with the given logger.
func NewMerger(logger *utils.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge left-joins refinements onto base by id. A refined field replaces the
// base value only when it is present; base order and row set are preserved,
// and refinements whose id is not in base are dropped. Duplicate ids on
// either side are an error because the join would be ambiguous.
func (m *Merger) Merge(base []models.AuctionRecord, refinements []models.Refinement) ([]models.AuctionRecord, MergeStats, error) {
	var stats MergeStats

	baseIDs, err := uniqueIDs(base)
	if err != nil {
		return nil, stats, fmt.Errorf("merge: base table: %w", err)
	}

	seen := utils.NewKeySet()
	byID := make(map[string]models.Refinement, len(refinements))
	for _, ref := range refinements {
		if !seen.Add(ref.ID) {
			return nil, stats, fmt.Errorf("merge: refinement table: %w: %s", ErrDuplicateID, ref.ID)
		}
		if !baseIDs.Contains(ref.ID) {
			stats.Orphans++
			m.logger.Warn("[merge] Dropping refinement for unknown id %s", ref.ID)
			continue
		}
		byID[ref.ID] = ref
	}

	out := make([]models.AuctionRecord, len(base))
	for i, rec := range base {
		if ref, ok := byID[rec.ID]; ok {
			rec = applyRefinement(rec, ref)
			stats.Matched++
		}
		out[i] = rec
	}

	m.logger.Info("[merge] Merged %d refinements into %d records (orphans %d)",
		stats.Matched, baseIDs.Size(), stats.Orphans)
	return out, stats, nil
}

func applyRefinement(rec models.AuctionRecord, ref models.Refinement) models.AuctionRecord {
	rec.AppraisalValue = preferFloat(ref.AppraisalValue, rec.AppraisalValue)
	rec.ROIPrecise = preferFloat(ref.ROIPrecise, rec.ROIPrecise)
	if ref.RiskLabel.Valid() {
		rec.RiskLabel = ref.RiskLabel
	}
	if ref.DebtCondo.Valid && finite(ref.DebtCondo.Float64) {
		rec.DebtCondo = decimal.NewFromFloat(ref.DebtCondo.Float64).String()
	}
	rec.ZoneDescription = preferText(ref.ZoneDescription, rec.ZoneDescription)
	rec.Occupancy = preferText(ref.OccupancyDetail, rec.Occupancy)
	rec.ConditionNotes = preferText(ref.ConditionNotes, rec.ConditionNotes)
	rec.UrbanNotes = preferText(ref.UrbanNotes, rec.UrbanNotes)
	return rec
}

func preferFloat(refined, base sql.NullFloat64) sql.NullFloat64 {
	if refined.Valid && finite(refined.Float64) {
		return refined
	}
	return base
}

func preferText(refined, base string) string {
	if t := normaliseText(refined); t != "" {
		return t
	}
	return base
}

// CheckUniqueIDs returns ErrDuplicateID naming the first repeated id.
func CheckUniqueIDs(records []models.AuctionRecord) error {
	_, err := uniqueIDs(records)
	return err
}

func uniqueIDs(records []models.AuctionRecord) (*utils.KeySet, error) {
	seen := utils.NewKeySet()
	for _, rec := range records {
		if !seen.Add(rec.ID) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
	}
	return seen, nil
}
