package refiner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rio-pipeline/models"
)

func TestParsePayloadComplete(t *testing.T) {
	raw := `{"id":"7","prezzo_perizia":180000,"ROI_preciso":"21,4567","rischio":"basso",
		"debito_condominiale":"1.200,00","descrizione_zona":" Centro ","occupazione_det":"libero"}`

	ref, notes, err := ParsePayload(raw, "7")
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Equal(t, models.Refinement{
		ID:              "7",
		AppraisalValue:  models.Float(180000),
		ROIPrecise:      models.Float(21.46),
		DebtCondo:       models.Float(1200),
		RiskLabel:       models.RiskLow,
		ZoneDescription: "Centro",
		OccupancyDetail: "libero",
	}, ref)
}

func TestParsePayloadCoercionFallsBackToMissing(t *testing.T) {
	raw := `{"id":"7","prezzo_perizia":180000,"ROI_preciso":22,"rischio":"Alto","debito_condominiale":"n/d"}`

	ref, notes, err := ParsePayload(raw, "7")
	require.NoError(t, err)
	assert.False(t, ref.DebtCondo.Valid)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], "debito_condominiale")
}

func TestParsePayloadOneMissingRequiredIsKept(t *testing.T) {
	ref, notes, err := ParsePayload(`{"id":7,"ROI_preciso":18.5,"rischio":"Medio"}`, "7")
	require.NoError(t, err)
	assert.Equal(t, models.Float(18.5), ref.ROIPrecise)
	assert.Equal(t, models.RiskMedium, ref.RiskLabel)
	assert.False(t, ref.AppraisalValue.Valid)
	assert.Contains(t, notes, "missing prezzo_perizia")
}

func TestParsePayloadDiscardsWhenSeveralRequiredMissing(t *testing.T) {
	tests := []string{
		`{"id":"7","prezzo_perizia":"boh","ROI_preciso":"??","rischio":"Basso"}`,
		`{"id":"7","prezzo_perizia":100000,"rischio":"sconosciuto"}`,
		`{"descrizione_zona":"Prati"}`,
	}
	for _, raw := range tests {
		_, _, err := ParsePayload(raw, "7")
		assert.ErrorIs(t, err, ErrDiscarded, raw)
	}
}

func TestParsePayloadForcesRecordID(t *testing.T) {
	ref, notes, err := ParsePayload(`{"id":"99","prezzo_perizia":1,"ROI_preciso":2,"rischio":"Alto"}`, "7")
	require.NoError(t, err)
	assert.Equal(t, "7", ref.ID)
	assert.Contains(t, strings.Join(notes, "|"), `"99"`)
}

func TestParsePayloadRejectsWrongShapes(t *testing.T) {
	tests := []string{
		``,
		`not json at all`,
		`[1,2,3]`,
		`{"id":"7","ROI_preciso":true,"rischio":"Basso","prezzo_perizia":1}`,
		`{"id":"7","rischio":["Basso"]}`,
	}
	for _, raw := range tests {
		_, _, err := ParsePayload(raw, "7")
		assert.ErrorIs(t, err, ErrInvalidPayload, raw)
	}
}

func TestDecodeLenientRepairs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain", `{"id": "1"}`},
		{"single quotes", `{'id': '1'}`},
		{"raw newline in string", "{\"id\": \"1\", \"note\": \"riga uno\nriga due\"}"},
		{"code fence", "```json\n{\"id\": \"1\"}\n```"},
		{"prose around", `Ecco la valutazione: {"id": "1"} spero sia utile`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := decodeLenient(tt.raw)
			require.NoError(t, err)
			m, ok := v.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "1", m["id"])
		})
	}
}

func TestDecodeLenientKeepsApostrophes(t *testing.T) {
	v, err := decodeLenient(`{"id": "1", "descrizione_zona": "zona dell'Appio"}`)
	require.NoError(t, err)
	assert.Equal(t, "zona dell'Appio", v.(map[string]any)["descrizione_zona"])
}

func TestEscapeStringControls(t *testing.T) {
	in := "{\"a\": \"x\ny\t\\\"z\"}\n"
	assert.Equal(t, "{\"a\": \"x\\ny\\t\\\"z\"}\n", escapeStringControls(in))
}
