package refiner

import (
	"context"
	"encoding/json"
	"fmt"

	"rio-pipeline/config"
	"rio-pipeline/utils"
)

const systemPrompt = "Sei un analista immobiliare esperto. " +
	"Leggi i metadati dell'asta e il testo della perizia e compila i campi richiesti " +
	"con precisione e coerenza, usando solo le informazioni presenti nei documenti. " +
	"Il campo 'rischio' vale Basso, Medio o Alto. " +
	"Rispondi SOLO con la chiamata alla funzione, senza testo aggiuntivo."

// Request is the input of one evaluation: the record's metadata and the
// appraisal text that supports it.
type Request struct {
	ID       string
	Meta     map[string]any
	Document string
}

// Client asks a language model to evaluate one auction and returns the raw
// JSON arguments it produced.
type Client interface {
	Evaluate(ctx context.Context, req Request) (string, error)
}

// userMessage renders the request the way both providers receive it.
func userMessage(req Request) (string, error) {
	b, err := json.Marshal(struct {
		Meta    map[string]any `json:"meta"`
		Perizia string         `json:"perizia"`
	}{req.Meta, req.Document})
	if err != nil {
		return "", fmt.Errorf("encode request %s: %w", req.ID, err)
	}
	return string(b), nil
}

// NewClient builds the client selected by LLM_PROVIDER.
func NewClient(ctx context.Context, cfg *config.Config, logger *utils.Logger) (Client, error) {
	switch cfg.LLMProvider {
	case "openai", "":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("refiner: OPENAI_API_KEY is not set")
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		}, logger), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("refiner: GEMINI_API_KEY is not set")
		}
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel, logger)
	default:
		return nil, fmt.Errorf("refiner: unknown provider %q", cfg.LLMProvider)
	}
}
