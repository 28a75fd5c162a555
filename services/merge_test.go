package services

import (
	"database/sql"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rio-pipeline/models"
)

func baseTable() []models.AuctionRecord {
	return []models.AuctionRecord{
		{ID: "1", Price: models.Float(100), AppraisalValue: models.Float(130), ROIPrecise: models.Float(30), RiskLabel: models.RiskLow, Occupancy: "libero", ZoneDescription: "centro"},
		{ID: "2", Price: models.Float(100), AppraisalValue: models.Float(110), ROIPrecise: models.Float(10), RiskLabel: models.RiskMedium, Occupancy: "libero"},
		{ID: "3", Price: models.Float(100), AppraisalValue: models.Float(105), ROIPrecise: models.Float(5), RiskLabel: models.RiskHigh, Occupancy: "occupato"},
	}
}

func TestMergePrefersRefinedValues(t *testing.T) {
	m := NewMerger(newTestLogger())
	merged, stats, err := m.Merge(baseTable(), []models.Refinement{
		{
			ID:              "2",
			AppraisalValue:  models.Float(125),
			ROIPrecise:      models.Float(25),
			RiskLabel:       models.RiskLow,
			DebtCondo:       models.Float(1200.5),
			ZoneDescription: "semicentrale",
			OccupancyDetail: "libero da persone",
			ConditionNotes:  "buone",
			UrbanNotes:      "conforme",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, MergeStats{Matched: 1}, stats)

	got := merged[1]
	assert.Equal(t, models.Float(125), got.AppraisalValue)
	assert.Equal(t, models.Float(25), got.ROIPrecise)
	assert.Equal(t, models.RiskLow, got.RiskLabel)
	assert.Equal(t, "1200.5", got.DebtCondo)
	assert.Equal(t, "semicentrale", got.ZoneDescription)
	assert.Equal(t, "libero da persone", got.Occupancy)
	assert.Equal(t, "buone", got.ConditionNotes)
	assert.Equal(t, "conforme", got.UrbanNotes)
	assert.Equal(t, models.Float(100), got.Price, "price is not refinable")
}

func TestMergeFallsBackToBase(t *testing.T) {
	base := baseTable()
	m := NewMerger(newTestLogger())
	merged, _, err := m.Merge(base, []models.Refinement{
		{ID: "1"},
		{ID: "3", ROIPrecise: sql.NullFloat64{Float64: math.NaN(), Valid: true}, RiskLabel: models.RiskUnknown, ZoneDescription: "   "},
	})
	require.NoError(t, err)

	// row 1: empty refinement, row 2: no refinement, row 3: only unusable values
	assert.Equal(t, base, merged)
}

func TestMergeKeepsBaseRowSetAndOrder(t *testing.T) {
	m := NewMerger(newTestLogger())
	merged, stats, err := m.Merge(baseTable(), []models.Refinement{
		{ID: "3", ROIPrecise: models.Float(18)},
		{ID: "99", ROIPrecise: models.Float(50)},
		{ID: "1", ROIPrecise: models.Float(31)},
	})
	require.NoError(t, err)
	assert.Equal(t, MergeStats{Matched: 2, Orphans: 1}, stats)

	require.Len(t, merged, 3)
	ids := []string{merged[0].ID, merged[1].ID, merged[2].ID}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
	assert.Equal(t, models.Float(31), merged[0].ROIPrecise)
	assert.Equal(t, models.Float(18), merged[2].ROIPrecise)
}

func TestMergeCountsOnlyUnknownIDsAsOrphans(t *testing.T) {
	m := NewMerger(newTestLogger())
	merged, stats, err := m.Merge(baseTable(), []models.Refinement{
		{ID: "x"},
		{ID: "2", ROIPrecise: models.Float(40)},
		{ID: "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, MergeStats{Matched: 1, Orphans: 2}, stats)
	assert.Equal(t, models.Float(40), merged[1].ROIPrecise)

	_, _, err = m.Merge(baseTable(), []models.Refinement{{ID: "x"}, {ID: "x"}})
	assert.ErrorIs(t, err, ErrDuplicateID, "repeated orphan ids are still ambiguous")
}

func TestMergeDoesNotAliasInput(t *testing.T) {
	base := baseTable()
	m := NewMerger(newTestLogger())
	_, _, err := m.Merge(base, []models.Refinement{{ID: "1", ROIPrecise: models.Float(99)}})
	require.NoError(t, err)
	assert.Equal(t, models.Float(30), base[0].ROIPrecise)
}

func TestMergeRejectsDuplicateIDs(t *testing.T) {
	m := NewMerger(newTestLogger())

	dupBase := append(baseTable(), models.AuctionRecord{ID: "2"})
	_, _, err := m.Merge(dupBase, nil)
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, _, err = m.Merge(baseTable(), []models.Refinement{{ID: "1"}, {ID: "1"}})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestMergeWithoutRefinements(t *testing.T) {
	m := NewMerger(newTestLogger())
	merged, stats, err := m.Merge(baseTable(), nil)
	require.NoError(t, err)
	assert.Equal(t, baseTable(), merged)
	assert.Zero(t, stats.Matched)
}
