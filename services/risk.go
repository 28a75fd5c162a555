package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"rio-pipeline/config"
	"rio-pipeline/models"
)

// Occupancy markers are matched against folded text (lower case, no accents,
// punctuation turned into spaces) at word starts, so stems such as "occupat"
// cover occupato/occupata/occupati.
var (
	highRiskMarkers = []string{
		"occupat", "locat", "affittat", "condutt", "abusiv",
		"in corso di liberazione", "liberazione in corso", "in liberazione",
		"in corso di sgombero", "sgombero in corso", "da liberare", "da sgomberare",
		"occupied", "leased", "tenant", "encumbered", "unlawful", "squatted",
		"being vacated",
	}
	freeMarkers = []string{
		"libero", "sgombro",
		"vacant", "unoccupied", "free",
	}
	// A free marker directly preceded by one of these does not count as free.
	negations = []string{"non", "not"}
)

type riskInput struct {
	text string
	roi  float64
	fee  float64
}

// riskRule is one row of the ordered classification table. The first rule
// whose markers and condition both hold decides the label.
type riskRule struct {
	name      string
	markers   []string
	negatable bool
	cond      func(k config.KPI, in riskInput) bool
	label     models.RiskLabel
}

func always(config.KPI, riskInput) bool { return true }

var riskRules = []riskRule{
	{
		name:    "occupancy-risk",
		markers: highRiskMarkers,
		cond:    always,
		label:   models.RiskHigh,
	},
	{
		name:      "free-and-profitable",
		markers:   freeMarkers,
		negatable: true,
		cond: func(k config.KPI, in riskInput) bool {
			return in.roi >= k.ROIThreshold && (!k.FeeCheck || in.fee <= k.FeeCeiling)
		},
		label: models.RiskLow,
	},
	{
		name: "medium-roi",
		cond: func(k config.KPI, in riskInput) bool {
			return in.roi >= k.MediumThreshold
		},
		label: models.RiskMedium,
	},
	{
		name:  "default",
		cond:  always,
		label: models.RiskHigh,
	},
}

// Classifier assigns a risk label from occupancy text, ROI and fee percentage.
type Classifier struct {
	kpi   config.KPI
	rules []riskRule
}

// NewClassifier creates a Classifier using the standard rule table.
func NewClassifier(kpi config.KPI) *Classifier {
	return &Classifier{kpi: kpi, rules: riskRules}
}

// Classify evaluates the rule table in order and returns the first match.
func (c *Classifier) Classify(occupancy string, roi, feePct float64) models.RiskLabel {
	in := riskInput{text: FoldOccupancy(occupancy), roi: roi, fee: feePct}
	for _, rule := range c.rules {
		if len(rule.markers) > 0 && !containsAny(in.text, rule.markers, rule.negatable) {
			continue
		}
		if rule.cond(c.kpi, in) {
			return rule.label
		}
	}
	return models.RiskHigh
}

// FoldOccupancy lower-cases, strips accents and replaces punctuation with
// spaces, collapsing runs of whitespace.
func FoldOccupancy(s string) string {
	// chained transformers carry state, so build one per call
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}
	folded = cases.Fold().String(folded)
	folded = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

func containsAny(text string, markers []string, negatable bool) bool {
	for _, m := range markers {
		if containsMarker(text, m, negatable) {
			return true
		}
	}
	return false
}

// containsMarker reports whether marker occurs in text starting at a word
// boundary. With negatable set, occurrences preceded by a negation word are ignored.
func containsMarker(text, marker string, negatable bool) bool {
	from := 0
	for {
		idx := strings.Index(text[from:], marker)
		if idx < 0 {
			return false
		}
		pos := from + idx
		if pos == 0 || text[pos-1] == ' ' {
			if !negatable || !negatedAt(text, pos) {
				return true
			}
		}
		from = pos + 1
	}
}

func negatedAt(text string, pos int) bool {
	before := strings.Fields(text[:pos])
	if len(before) == 0 {
		return false
	}
	last := before[len(before)-1]
	for _, n := range negations {
		if last == n {
			return true
		}
	}
	return false
}
