package models

import (
	"database/sql"
	"strings"
)

// RiskLabel is the coarse acquisition-risk classification of an auction.
type RiskLabel string

const (
	RiskUnknown RiskLabel = ""
	RiskLow     RiskLabel = "Low"
	RiskMedium  RiskLabel = "Medium"
	RiskHigh    RiskLabel = "High"
)

var italianLabels = map[RiskLabel]string{
	RiskLow:    "Basso",
	RiskMedium: "Medio",
	RiskHigh:   "Alto",
}

// ParseRiskLabel accepts English or Italian labels in any casing.
// Anything else yields RiskUnknown and false.
func ParseRiskLabel(s string) (RiskLabel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "basso":
		return RiskLow, true
	case "medium", "medio":
		return RiskMedium, true
	case "high", "alto":
		return RiskHigh, true
	}
	return RiskUnknown, false
}

// Valid reports whether l is one of the three enumerated labels.
func (l RiskLabel) Valid() bool {
	return l == RiskLow || l == RiskMedium || l == RiskHigh
}

// Localized renders the label for the given locale ("it" or anything else for English).
func (l RiskLabel) Localized(locale string) string {
	if strings.EqualFold(locale, "it") {
		return italianLabels[l]
	}
	return string(l)
}

// AuctionRecord is one auction listing flowing through the pipeline.
// Numeric fields use sql.NullFloat64: Valid=false means the value is missing.
type AuctionRecord struct {
	ID             string
	Address        string
	Price          sql.NullFloat64
	AppraisalValue sql.NullFloat64
	Occupancy      string
	ROIPrecise     sql.NullFloat64
	RiskLabel      RiskLabel
	Description    string
	URL            string
	PropertyType   string

	DebtCondo       string
	ZoneDescription string
	ConditionNotes  string
	UrbanNotes      string
}

// Row returns the record keyed by canonical column names, the same shape the
// output CSV carries. Missing numbers map to nil.
func (r AuctionRecord) Row() map[string]any {
	return map[string]any{
		"id":               r.ID,
		"address":          r.Address,
		"price":            nullable(r.Price),
		"appraisal_value":  nullable(r.AppraisalValue),
		"occupancy":        r.Occupancy,
		"roi_precise":      nullable(r.ROIPrecise),
		"risk_label":       string(r.RiskLabel),
		"description":      r.Description,
		"url":              r.URL,
		"property_type":    r.PropertyType,
		"debt_condo":       r.DebtCondo,
		"zone_description": r.ZoneDescription,
		"condition_notes":  r.ConditionNotes,
		"urban_notes":      r.UrbanNotes,
	}
}

func nullable(n sql.NullFloat64) any {
	if !n.Valid {
		return nil
	}
	return n.Float64
}

// Refinement is an externally produced, per-row correction keyed by ID.
// Zero-value fields mean "not refined" and never overwrite base values.
type Refinement struct {
	ID              string
	AppraisalValue  sql.NullFloat64
	ROIPrecise      sql.NullFloat64
	DebtCondo       sql.NullFloat64
	RiskLabel       RiskLabel
	ZoneDescription string
	OccupancyDetail string
	ConditionNotes  string
	UrbanNotes      string
}

// RowError records a per-row failure that did not abort the run.
type RowError struct {
	ID    string
	Stage string
	Err   error
}

func (e RowError) Error() string {
	return e.Stage + " " + e.ID + ": " + e.Err.Error()
}

func (e RowError) Unwrap() error { return e.Err }

// Float wraps a known value.
func Float(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}
