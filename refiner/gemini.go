package refiner

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"rio-pipeline/utils"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient asks Gemini for a JSON object shaped like the
// valuta_opportunita arguments.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *utils.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, logger *utils.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if model == "" || !strings.HasPrefix(model, "gemini") {
		model = defaultGeminiModel
	}
	return &GeminiClient{client: client, model: model, logger: logger}, nil
}

func (g *GeminiClient) Evaluate(ctx context.Context, req Request) (string, error) {
	user, err := userMessage(req)
	if err != nil {
		return "", err
	}

	instruction := systemPrompt + "\nRestituisci un oggetto JSON conforme a questo schema:\n" + string(functionSchema)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: %w: empty response", ErrInvalidPayload)
	}
	g.logger.Debug("[gemini] %s answered %d bytes", req.ID, len(text))
	return text, nil
}
