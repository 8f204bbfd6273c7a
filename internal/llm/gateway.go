// Package llm is the classification gateway: a stateless request/response
// wrapper around remote text-classification providers with a fallback chain.
// Transport failures and malformed replies are transient and surface as
// errors; a well-formed rejection code is a terminal business decision.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/config"
	"github.com/PollyDrive/estate/internal/retry"
)

// Decision is a terminal classification outcome.
type Decision struct {
	Code  string // one of the Code* constants
	Model string // provider/model identifier that produced it
}

// Provider is a single remote classification backend.
type Provider interface {
	Classify(ctx context.Context, title, description string) (Decision, error)
	Name() string
}

// Gateway routes classification calls through a chain of rate-limited
// providers, retrying transient failures and falling back to the next
// provider after repeated failures.
type Gateway struct {
	providers []*rateLimitedProvider
	policy    retry.Policy
	logger    *zap.Logger

	mu           sync.Mutex
	currentIndex int
	failures     map[int]int
	maxFailures  int
}

type rateLimitedProvider struct {
	provider Provider
	limiter  *rateLimiter
}

// NewGateway builds the provider chain from configuration. Providers whose
// API key environment variable is unset are skipped with a warning; at
// least one usable provider is required.
func NewGateway(cfg *config.Config, logger *zap.Logger) (*Gateway, error) {
	providers := make([]*rateLimitedProvider, 0, len(cfg.LLM.Providers))
	system := SystemPrompt(cfg.Filters.PriceMax)

	for _, pc := range cfg.LLM.Providers {
		apiKey := os.Getenv(pc.APIKeyEnv)
		if apiKey == "" {
			logger.Warn("Provider API key not set, skipping",
				zap.String("type", pc.Type),
				zap.String("env", pc.APIKeyEnv))
			continue
		}

		var provider Provider
		var err error
		switch strings.ToLower(pc.Type) {
		case "groq":
			provider, err = newGroqClient(apiKey, pc, system, logger)
		case "openrouter":
			provider, err = newOpenRouterClient(apiKey, pc, system, logger)
		case "gemini":
			provider, err = newGeminiClient(apiKey, pc, system, logger)
		default:
			logger.Warn("Unknown provider type, skipping", zap.String("type", pc.Type))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create %s provider: %w", pc.Type, err)
		}

		rpm := pc.RequestsPerMinute
		if rpm == 0 {
			rpm = 8
		}
		providers = append(providers, &rateLimitedProvider{
			provider: provider,
			limiter:  newRateLimiter(rpm),
		})
		logger.Info("Provider initialized",
			zap.String("type", pc.Type),
			zap.String("model", pc.Model),
			zap.Int("rate_limit", rpm))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no classification providers could be initialized")
	}

	return &Gateway{
		providers: providers,
		policy: retry.Policy{
			MaxAttempts: cfg.LLM.MaxRetries,
			BaseDelay:   cfg.LLM.RetryDelay,
			Logger:      logger,
		},
		logger:      logger,
		failures:    make(map[int]int),
		maxFailures: cfg.LLM.MaxFailures,
	}, nil
}

// Classify runs the listing text through the current provider, retrying
// transient failures with backoff and falling back down the chain. An error
// means every provider was exhausted — the caller must leave the listing's
// status unchanged so a future run retries it.
func (g *Gateway) Classify(ctx context.Context, title, description string) (Decision, error) {
	_, start := g.current()

	var lastErr error
	for attempt := 0; attempt < len(g.providers); attempt++ {
		index := (start + attempt) % len(g.providers)
		rlp := g.providers[index]

		var decision Decision
		err := g.policy.Do(ctx, "classify/"+rlp.provider.Name(), func(ctx context.Context) error {
			if err := rlp.limiter.wait(ctx); err != nil {
				return err
			}
			var callErr error
			decision, callErr = rlp.provider.Classify(ctx, title, description)
			return callErr
		})
		if err == nil {
			g.resetFailures(index)
			return decision, nil
		}

		lastErr = err
		g.logger.Error("Provider failed",
			zap.String("provider", rlp.provider.Name()),
			zap.Error(err))
		g.recordFailureAndSwitch(index)

		if ctx.Err() != nil {
			return Decision{}, ctx.Err()
		}
	}
	return Decision{}, fmt.Errorf("all classification providers failed: %w", lastErr)
}

func (g *Gateway) current() (*rateLimitedProvider, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.providers[g.currentIndex], g.currentIndex
}

func (g *Gateway) resetFailures(index int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[index] = 0
}

// recordFailureAndSwitch advances to the next provider once the current one
// reaches the failure cap. The cap lets a provider ride out a single bad
// reply without losing its place at the head of the chain.
func (g *Gateway) recordFailureAndSwitch(index int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures[index]++
	if g.failures[index] >= g.maxFailures {
		from := g.currentIndex
		g.currentIndex = (g.currentIndex + 1) % len(g.providers)
		g.logger.Info("Switching provider",
			zap.Int("from_index", from),
			zap.Int("to_index", g.currentIndex))
	}
}

// Close shuts down all providers.
func (g *Gateway) Close() error {
	var lastErr error
	for _, rlp := range g.providers {
		if closer, ok := rlp.provider.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}
