package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rio-pipeline/config"
	"rio-pipeline/models"
)

func TestComputeROI(t *testing.T) {
	tests := []struct {
		price, appraisal float64
		want             float64
	}{
		{100000, 130000, 30.0},
		{90000, 120000, 33.33},
		{3, 4, 33.33},
		{3, 5, 66.67},
		{100000, 100000, 0},
		{200, 100, -50},
	}
	for _, tt := range tests {
		got := ComputeROI(tt.price, tt.appraisal)
		if got != tt.want {
			t.Errorf("ComputeROI(%v, %v) = %v; want %v", tt.price, tt.appraisal, got, tt.want)
		}
	}
}

func TestComputeROIIsTotal(t *testing.T) {
	prices := []float64{0, -1, -100000, math.Inf(-1), math.NaN(), math.Inf(1)}
	appraisals := []float64{0, 1, 130000, math.Inf(1), math.NaN()}
	for _, p := range prices {
		for _, a := range appraisals {
			got := ComputeROI(p, a)
			assert.False(t, math.IsNaN(got) || math.IsInf(got, 0), "ComputeROI(%v, %v) = %v", p, a, got)
			if p <= 0 {
				assert.Zero(t, got, "ComputeROI(%v, %v)", p, a)
			}
		}
	}
}

func TestClassifyRisk(t *testing.T) {
	c := NewClassifier(config.DefaultKPI())

	tests := []struct {
		occupancy string
		roi, fee  float64
		want      models.RiskLabel
	}{
		{"Libero", 20, 0, models.RiskLow},
		{"LIBERO da persone e cose", 15, 5, models.RiskLow},
		{"libero", 20, 6, models.RiskMedium},
		{"libero", 9, 0, models.RiskHigh},
		{"libero", 12, 0, models.RiskMedium},
		{"Occupato dal debitore", 80, 0, models.RiskHigh},
		{"locato con contratto opponibile", 50, 0, models.RiskHigh},
		{"Occupato; libero al decreto di trasferimento", 40, 0, models.RiskHigh},
		{"non occupato", 20, 0, models.RiskHigh},
		{"libero, non occupato", 30, 0, models.RiskHigh},
		{"non libero", 30, 0, models.RiskMedium},
		{"Not vacant", 30, 0, models.RiskMedium},
		{"non libero", 5, 0, models.RiskHigh},
		{"Unoccupied", 20, 0, models.RiskLow},
		{"sgombro", 25, 0, models.RiskLow},
		{"", 12, 0, models.RiskMedium},
		{"", 30, 0, models.RiskMedium},
		{"", 5, 0, models.RiskHigh},
		{"Libèro, già sgomberato.", 20, 0, models.RiskLow},
	}
	for _, tt := range tests {
		got := c.Classify(tt.occupancy, tt.roi, tt.fee)
		if got != tt.want {
			t.Errorf("Classify(%q, %v, %v) = %s; want %s", tt.occupancy, tt.roi, tt.fee, got, tt.want)
		}
	}
}

func TestClassifyBeingVacatedIsHigh(t *testing.T) {
	c := NewClassifier(config.DefaultKPI())
	for _, roi := range []float64{-10, 0, 15, 99} {
		assert.Equal(t, models.RiskHigh, c.Classify("in corso di liberazione", roi, 0))
		assert.Equal(t, models.RiskHigh, c.Classify("Immobile in corso di liberazione", roi, 0))
	}
}

func TestClassifyRiskMarkerBeatsFreeMarker(t *testing.T) {
	c := NewClassifier(config.DefaultKPI())
	mixed := []string{
		"libero ma occupato",
		"sgombro, locato a terzi",
		"vacant but leased",
		"libero da liberare",
		"libero - abusivo",
	}
	for _, occ := range mixed {
		assert.Equal(t, models.RiskHigh, c.Classify(occ, 100, 0), occ)
	}
}

func TestClassifyNegatedFreeMarkerIsNotFree(t *testing.T) {
	c := NewClassifier(config.DefaultKPI())
	for _, occ := range []string{"non libero", "not vacant", "NON LIBERO", "non sgombro"} {
		assert.NotEqual(t, models.RiskLow, c.Classify(occ, 100, 0), occ)
	}
	assert.Equal(t, models.RiskLow, c.Classify("non libero al momento, ora sgombro", 100, 0),
		"an un-negated free marker still counts")
}

func TestClassifyWithoutFeeCheck(t *testing.T) {
	kpi := config.DefaultKPI()
	kpi.FeeCheck = false
	c := NewClassifier(kpi)
	assert.Equal(t, models.RiskLow, c.Classify("libero", 20, 40))
}

func TestFoldOccupancy(t *testing.T) {
	assert.Equal(t, "liberta gia sgomberato", FoldOccupancy("  Libertà, GIÀ   sgomberato. "))
}

func TestCalculatorApply(t *testing.T) {
	calc := NewCalculator(config.DefaultKPI(), newTestLogger())
	in := []models.AuctionRecord{
		{ID: "a", Price: models.Float(100000), AppraisalValue: models.Float(130000), Occupancy: "libero"},
		{ID: "b", Price: models.Float(100000), AppraisalValue: models.Float(130000), Occupancy: "occupato"},
		{ID: "c", ROIPrecise: models.Float(22), RiskLabel: models.RiskLow},
		{ID: "d", Price: models.Float(100000), AppraisalValue: models.Float(130000), Occupancy: "libero", DebtCondo: "10000"},
	}
	out := calc.Apply(in)
	require.Len(t, out, 4)

	assert.Equal(t, models.Float(30), out[0].ROIPrecise)
	assert.Equal(t, models.RiskLow, out[0].RiskLabel)
	assert.Equal(t, models.RiskHigh, out[1].RiskLabel)
	assert.Equal(t, models.Float(22), out[2].ROIPrecise, "ROI carried by the input is kept")
	assert.Equal(t, models.RiskLow, out[2].RiskLabel, "label kept when there is no occupancy text")
	assert.Equal(t, models.RiskMedium, out[3].RiskLabel, "10% fee is above the ceiling")

	assert.False(t, in[0].ROIPrecise.Valid, "input must not be modified")
}

func TestCalculatorFilterMargin(t *testing.T) {
	calc := NewCalculator(config.DefaultKPI(), newTestLogger())
	kept, dropped := calc.FilterMargin([]models.AuctionRecord{
		{ID: "ok", Price: models.Float(100), AppraisalValue: models.Float(150)},
		{ID: "equal", Price: models.Float(100), AppraisalValue: models.Float(100)},
		{ID: "loss", Price: models.Float(100), AppraisalValue: models.Float(90)},
		{ID: "noprice", AppraisalValue: models.Float(90)},
		{ID: "zero", Price: models.Float(0), AppraisalValue: models.Float(90)},
	})
	require.Len(t, kept, 2)
	assert.Equal(t, "ok", kept[0].ID)
	assert.Equal(t, "equal", kept[1].ID)
	assert.Equal(t, []string{"loss", "noprice", "zero"}, dropped)
}

func TestFeePercent(t *testing.T) {
	assert.Equal(t, 2.5, FeePercent(models.AuctionRecord{Price: models.Float(100000), DebtCondo: "2500"}))
	assert.Zero(t, FeePercent(models.AuctionRecord{Price: models.Float(100000)}))
	assert.Zero(t, FeePercent(models.AuctionRecord{DebtCondo: "2500"}))
}
