package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/pose-match/internal/ai"
	"github.com/kozaktomas/pose-match/internal/config"
)

const providerUsage = "Extraction backend to use: openai, gemini, ollama"

// newExtractor creates the keypoint extraction backend named by provider.
func newExtractor(ctx context.Context, cfg *config.Config, provider string, minConf float64) (ai.Extractor, error) {
	switch provider {
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, errors.New("OPENAI_TOKEN environment variable is required")
		}
		pricing := cfg.GetModelPricing(cfg.OpenAI.Model)
		return ai.NewOpenAIExtractor(cfg.OpenAI.Token, minConf,
			ai.RequestPricing{Input: pricing.Input, Output: pricing.Output},
			ai.WithOpenAIModel(cfg.OpenAI.Model),
		), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required")
		}
		pricing := cfg.GetModelPricing(cfg.Gemini.Model)
		ex, err := ai.NewGeminiExtractor(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, minConf,
			ai.RequestPricing{Input: pricing.Input, Output: pricing.Output},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini extractor: %w", err)
		}
		return ex, nil
	case "ollama":
		return ai.NewOllamaExtractor(cfg.Ollama.URL, cfg.Ollama.Model, minConf), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: openai, gemini, ollama)", provider)
	}
}

// printUsage prints token usage and cost of an extractor.
func printUsage(ex ai.Extractor) {
	usage := ex.GetUsage()
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		return
	}
	fmt.Printf("Token usage: %d input, %d output (estimated cost $%.4f)\n",
		usage.InputTokens, usage.OutputTokens, usage.TotalCost)
}
