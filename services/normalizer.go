package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"rio-pipeline/models"
	"rio-pipeline/utils"
)

// numberRegexp captures the first signed numeric chunk, with either separator.
var numberRegexp = regexp.MustCompile(`-?\d[\d.,]*`)

// Column synonyms, most specific first. Matching is case-insensitive.
var (
	idColumns          = []string{"id", "id_asta"}
	addressColumns     = []string{"address", "indirizzo"}
	priceColumns       = []string{"price", "price_base", "prezzo_base", "prezzo"}
	appraisalColumns   = []string{"appraisal_value", "valore_stima", "valore_commerciale", "prezzo_perizia"}
	occupancyColumns   = []string{"occupancy", "occupancy_status", "occupazione", "occupazione_det"}
	roiColumns         = []string{"roi_precise", "roi_preciso"}
	riskColumns        = []string{"risk_label", "rischio"}
	descriptionColumns = []string{"description", "descrizione"}
	urlColumns         = []string{"url"}
	typeColumns        = []string{"property_type", "tipologia"}
	debtColumns        = []string{"debt_condo", "debito_condominiale"}
	zoneColumns        = []string{"zone_description", "descrizione_zona"}
	conditionColumns   = []string{"condition_notes", "condizioni_det"}
	urbanColumns       = []string{"urban_notes", "urbanistica_det"}
)

// Normalizer turns heterogeneous input rows into AuctionRecords.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// NormalizeAll normalizes every row, skipping (and reporting) rows that
// cannot be keyed. Input order is preserved.
func (n *Normalizer) NormalizeAll(rows []map[string]any) ([]models.AuctionRecord, []models.RowError) {
	result := make([]models.AuctionRecord, 0, len(rows))
	var rowErrs []models.RowError

	for i, raw := range rows {
		rec, err := n.Normalize(raw)
		if err != nil {
			n.logger.Warn("[normalizer] Skipping row %d: %v", i+1, err)
			rowErrs = append(rowErrs, models.RowError{ID: fmt.Sprintf("row-%d", i+1), Stage: "normalize", Err: err})
			continue
		}
		result = append(result, rec)
	}

	n.logger.Info("[normalizer] Normalized %d → %d records (skipped %d)",
		len(rows), len(result), len(rows)-len(result))
	return result, rowErrs
}

// Normalize maps one raw row onto an AuctionRecord. Unparseable numbers
// become missing values; only a missing id is an error.
func (n *Normalizer) Normalize(raw map[string]any) (models.AuctionRecord, error) {
	cols := make(map[string]any, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, taken := cols[key]; taken && isBlank(v) {
			continue
		}
		cols[key] = v
	}

	rec := models.AuctionRecord{
		ID:              parseID(lookup(cols, idColumns)),
		Address:         normaliseText(toString(lookup(cols, addressColumns))),
		Price:           ParseNumber(lookup(cols, priceColumns)),
		AppraisalValue:  ParseNumber(lookup(cols, appraisalColumns)),
		Occupancy:       normaliseText(toString(lookup(cols, occupancyColumns))),
		ROIPrecise:      ParseNumber(lookup(cols, roiColumns)),
		Description:     normaliseText(toString(lookup(cols, descriptionColumns))),
		URL:             strings.TrimSpace(toString(lookup(cols, urlColumns))),
		PropertyType:    normaliseText(toString(lookup(cols, typeColumns))),
		DebtCondo:       normaliseText(toString(lookup(cols, debtColumns))),
		ZoneDescription: normaliseText(toString(lookup(cols, zoneColumns))),
		ConditionNotes:  normaliseText(toString(lookup(cols, conditionColumns))),
		UrbanNotes:      normaliseText(toString(lookup(cols, urbanColumns))),
	}
	rec.RiskLabel, _ = models.ParseRiskLabel(toString(lookup(cols, riskColumns)))

	if rec.ID == "" {
		return rec, ErrMissingID
	}
	return rec, nil
}

// lookup returns the first non-blank value among the synonym columns.
func lookup(cols map[string]any, names []string) any {
	for _, name := range names {
		if v, ok := cols[name]; ok && !isBlank(v) {
			return v
		}
	}
	return nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func parseID(v any) string {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(toString(v))
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// ParseNumber coerces v to a float. It never fails: anything it cannot
// read, including NaN and infinities, is reported as missing.
func ParseNumber(v any) sql.NullFloat64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return sql.NullFloat64{}
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return sql.NullFloat64{}
		}
		f = parsed
	case string:
		parsed, ok := parseNumericString(x)
		if !ok {
			return sql.NullFloat64{}
		}
		f = parsed
	default:
		return sql.NullFloat64{}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return models.Float(f)
}

// parseNumericString reads amounts such as "130000", "130.000,50",
// "€ 130,000.50" or "12.5". When both separators appear the last one is the
// decimal mark; a single kind of separator repeated is a thousands mark. A lone
// separator followed by exactly three digits is a thousands mark too, unless
// the integer part is zero.
//
//	"€ 130.000,50" → 130000.5
//	"1,250,000"    → 1250000
//	"250.000"      → 250000
//	"0.125"        → 0.125
//	"12,5"         → 12.5
func parseNumericString(raw string) (float64, bool) {
	match := numberRegexp.FindString(strings.TrimSpace(raw))
	if match == "" {
		return 0, false
	}
	match = strings.TrimRight(match, ".,")

	dots := strings.Count(match, ".")
	commas := strings.Count(match, ",")
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(match, ",") > strings.LastIndex(match, ".") {
			match = strings.ReplaceAll(match, ".", "")
			match = strings.Replace(match, ",", ".", 1)
		} else {
			match = strings.ReplaceAll(match, ",", "")
		}
	case commas > 1:
		match = strings.ReplaceAll(match, ",", "")
	case commas == 1 && groupedThousands(match, ","):
		match = strings.Replace(match, ",", "", 1)
	case commas == 1:
		match = strings.Replace(match, ",", ".", 1)
	case dots > 1:
		match = strings.ReplaceAll(match, ".", "")
	case dots == 1 && groupedThousands(match, "."):
		match = strings.Replace(match, ".", "", 1)
	}

	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// groupedThousands reports whether the single sep in s splits a non-zero
// integer part from exactly three digits.
func groupedThousands(s, sep string) bool {
	intPart, frac, _ := strings.Cut(s, sep)
	intPart = strings.TrimLeft(intPart, "+-")
	if len(frac) != 3 || intPart == "" || strings.Trim(intPart, "0") == "" {
		return false
	}
	return true
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
