package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/PollyDrive/estate/internal/config"
)

// geminiClient uses the official Gemini SDK. Like the HTTP clients it makes
// one call per Classify; retry and fallback live in the gateway.
type geminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	logger    *zap.Logger
}

func newGeminiClient(apiKey string, pc config.Provider, system string, logger *zap.Logger) (*geminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	modelName := pc.Model
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.1),
		MaxOutputTokens: genai.Ptr[int32](20),
	}

	return &geminiClient{
		client:    client,
		model:     model,
		modelName: modelName,
		logger:    logger,
	}, nil
}

func (c *geminiClient) Name() string { return "gemini/" + c.modelName }

func (c *geminiClient) Close() error { return c.client.Close() }

func (c *geminiClient) Classify(ctx context.Context, title, description string) (Decision, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(BuildPrompt(title, description)))
	if err != nil {
		return Decision{}, fmt.Errorf("gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Decision{}, fmt.Errorf("empty response from gemini")
	}
	textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected response type from gemini")
	}

	code, err := ParseCode(string(textPart))
	if err != nil {
		c.logger.Error("Malformed Gemini reply", zap.String("reply", string(textPart)))
		return Decision{}, err
	}
	return Decision{Code: code, Model: c.Name()}, nil
}
