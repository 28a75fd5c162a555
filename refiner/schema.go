package refiner

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FunctionName is the function the model is asked to call.
const FunctionName = "valuta_opportunita"

const functionDescription = "Valutazione di precisione di una singola asta immobiliare"

//go:embed schemas/valuta_opportunita.json
var functionSchema []byte

//go:embed schemas/refinement_response.json
var responseSchemaJSON string

var responseSchema = jsonschema.MustCompileString("refinement_response.json", responseSchemaJSON)

// validatePayload checks a decoded model response against the response schema.
func validatePayload(v any) error {
	if err := responseSchema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// functionParameters returns the parameters schema sent with the function
// declaration.
func functionParameters() json.RawMessage {
	return json.RawMessage(functionSchema)
}
