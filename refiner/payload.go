package refiner

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"rio-pipeline/models"
	"rio-pipeline/services"
)

var (
	// ErrInvalidPayload means the model answered with something that is not
	// a usable JSON object, even after repair.
	ErrInvalidPayload = errors.New("invalid refinement payload")
	// ErrDiscarded means the payload parsed but too many required values were
	// missing to trust it.
	ErrDiscarded = errors.New("refinement discarded")
)

// maxMissingRequired is how many required values may be missing before a
// refinement is discarded.
const maxMissingRequired = 1

// ParsePayload turns the model's raw function arguments into a Refinement
// for the record with the given id. Unparseable values become missing and
// are described in the returned notes. The refinement always carries id,
// whatever the model echoed back.
func ParsePayload(raw, id string) (models.Refinement, []string, error) {
	v, err := decodeLenient(raw)
	if err != nil {
		return models.Refinement{}, nil, err
	}
	if err := validatePayload(v); err != nil {
		return models.Refinement{}, nil, err
	}
	m := v.(map[string]any)

	var notes []string
	number := func(key string) sql.NullFloat64 {
		val, ok := m[key]
		if !ok || val == nil {
			return sql.NullFloat64{}
		}
		n := services.ParseNumber(val)
		if !n.Valid {
			notes = append(notes, fmt.Sprintf("%s: cannot parse %v", key, val))
		}
		return n
	}
	text := func(key string) string {
		s, _ := m[key].(string)
		return strings.TrimSpace(s)
	}

	ref := models.Refinement{
		ID:              id,
		AppraisalValue:  number("prezzo_perizia"),
		ROIPrecise:      number("ROI_preciso"),
		DebtCondo:       number("debito_condominiale"),
		ZoneDescription: text("descrizione_zona"),
		OccupancyDetail: text("occupazione_det"),
		ConditionNotes:  text("condizioni_det"),
		UrbanNotes:      text("urbanistica_det"),
	}
	if ref.ROIPrecise.Valid {
		ref.ROIPrecise.Float64 = decimal.NewFromFloat(ref.ROIPrecise.Float64).Round(2).InexactFloat64()
	}
	if risk := text("rischio"); risk != "" {
		label, ok := models.ParseRiskLabel(risk)
		if !ok {
			notes = append(notes, fmt.Sprintf("rischio: unknown label %q", risk))
		}
		ref.RiskLabel = label
	}

	echoed := payloadID(m["id"])
	if echoed != "" && echoed != id {
		notes = append(notes, fmt.Sprintf("id: model answered %q", echoed))
	}

	var missing []string
	if echoed == "" {
		missing = append(missing, "id")
	}
	if !ref.AppraisalValue.Valid {
		missing = append(missing, "prezzo_perizia")
	}
	if !ref.ROIPrecise.Valid {
		missing = append(missing, "ROI_preciso")
	}
	if ref.RiskLabel == models.RiskUnknown {
		missing = append(missing, "rischio")
	}
	if len(missing) > maxMissingRequired {
		return models.Refinement{}, notes, fmt.Errorf("%w: missing %s", ErrDiscarded, strings.Join(missing, ", "))
	}
	if len(missing) == 1 {
		notes = append(notes, "missing "+missing[0])
	}
	return ref, notes, nil
}

func payloadID(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	}
	return ""
}

// decodeLenient parses raw as JSON, repairing the usual model mistakes:
// single-quoted JSON, raw newlines inside strings, and prose or code fences
// around the object.
func decodeLenient(raw string) (any, error) {
	candidates := []string{raw}
	if !strings.Contains(raw, `"`) && strings.Contains(raw, "'") {
		candidates = append(candidates, strings.ReplaceAll(raw, "'", `"`))
	}

	var firstErr error
	for _, c := range candidates {
		escaped := escapeStringControls(c)
		for _, attempt := range []string{c, escaped, extractObject(escaped)} {
			if attempt == "" {
				continue
			}
			v, err := decodeJSON(attempt)
			if err == nil {
				return v, nil
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr == nil {
		firstErr = errors.New("empty response")
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, firstErr)
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// escapeStringControls escapes raw newlines, carriage returns and tabs that
// appear inside string literals.
func escapeStringControls(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n':
				b.WriteString(`\n`)
				continue
			case r == '\r':
				b.WriteString(`\r`)
				continue
			case r == '\t':
				b.WriteString(`\t`)
				continue
			}
		} else if r == '"' {
			inString = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
