package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/config"
)

// groqClient talks to the Groq OpenAI-compatible chat completions API.
// It performs a single request per call; retries and fallback are the
// gateway's job.
type groqClient struct {
	apiKey     string
	baseURL    string
	modelName  string
	system     string
	httpClient *http.Client
	logger     *zap.Logger
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func newGroqClient(apiKey string, pc config.Provider, system string, logger *zap.Logger) (*groqClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	model := pc.Model
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	timeout := pc.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &groqClient{
		apiKey:     apiKey,
		baseURL:    "https://api.groq.com/openai/v1",
		modelName:  model,
		system:     system,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (c *groqClient) Name() string { return "groq/" + c.modelName }

func (c *groqClient) Classify(ctx context.Context, title, description string) (Decision, error) {
	content, err := chatComplete(ctx, c.httpClient, c.baseURL, c.apiKey, nil, chatRequest{
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
		return Decision{}, fmt.Errorf("groq API error: %w", err)
	}

	code, err := ParseCode(content)
	if err != nil {
		c.logger.Error("Malformed Groq reply", zap.String("reply", content))
		return Decision{}, err
	}
	return Decision{Code: code, Model: c.Name()}, nil
}

// chatComplete posts an OpenAI-style chat completion request and returns the
// first choice's content. Shared by the groq and openrouter clients.
func chatComplete(ctx context.Context, client *http.Client, baseURL, apiKey string, extraHeaders map[string]string, reqBody chatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return parsed.Choices[0].Message.Content, nil
}
