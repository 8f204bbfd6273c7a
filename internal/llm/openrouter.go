package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/config"
)

// openRouterClient talks to the OpenRouter chat completions API. The wire
// format is OpenAI-compatible so it shares the groq transport.
type openRouterClient struct {
	apiKey     string
	baseURL    string
	modelName  string
	system     string
	httpClient *http.Client
	logger     *zap.Logger
}

func newOpenRouterClient(apiKey string, pc config.Provider, system string, logger *zap.Logger) (*openRouterClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}
	model := pc.Model
	if model == "" {
		model = "meta-llama/llama-3.3-70b-instruct:free"
	}
	timeout := pc.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &openRouterClient{
		apiKey:     apiKey,
		baseURL:    "https://openrouter.ai/api/v1",
		modelName:  model,
		system:     system,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (c *openRouterClient) Name() string { return "openrouter/" + c.modelName }

func (c *openRouterClient) Classify(ctx context.Context, title, description string) (Decision, error) {
	headers := map[string]string{
		"HTTP-Referer": "https://github.com/PollyDrive/estate",
		"X-Title":      "estate-pipeline",
	}
	content, err := chatComplete(ctx, c.httpClient, c.baseURL, c.apiKey, headers, chatRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: c.system},
			{Role: "user", Content: BuildPrompt(title, description)},
		},
		Stream:      false,
		Temperature: 0.1,
		MaxTokens:   20,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("openrouter API error: %w", err)
	}

	code, err := ParseCode(content)
	if err != nil {
		c.logger.Error("Malformed OpenRouter reply", zap.String("reply", content))
		return Decision{}, err
	}
	return Decision{Code: code, Model: c.Name()}, nil
}
