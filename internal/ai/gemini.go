package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type GeminiExtractor struct {
	client  *genai.Client
	model   string
	minConf float64
	usageTracker
}

func NewGeminiExtractor(ctx context.Context, apiKey, model string, minConf float64, pricing RequestPricing) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiExtractor{
		client:       client,
		model:        model,
		minConf:      minConf,
		usageTracker: usageTracker{pricing: pricing},
	}, nil
}

func (p *GeminiExtractor) Name() string {
	return p.model
}

func (p *GeminiExtractor) Extract(ctx context.Context, imageData []byte) (*Extraction, error) {
	size, resized, err := prepareImage(imageData)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: poseKeypointsPrompt + "\n\n" + buildUserMessage(size)},
				{InlineData: &genai.Blob{Data: resized, MIMEType: "image/jpeg"}},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
		if err != nil {
			return nil, fmt.Errorf("gemini API error: %w", err)
		}

		if result.UsageMetadata != nil {
			p.trackUsage(int(result.UsageMetadata.PromptTokenCount), int(result.UsageMetadata.CandidatesTokenCount))
		}

		content := result.Text()
		if content == "" {
			return nil, errors.New("no response from Gemini")
		}
		lastResponse = content

		records, err := parseResponse(content, size, p.minConf)
		if err != nil {
			lastError = err

			// Add model response and error feedback to contents for retry
			contents = append(contents,
				&genai.Content{
					Role:  "model",
					Parts: []*genai.Part{{Text: content}},
				},
				&genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: retryMessage(err)}},
				},
			)
			continue
		}

		return finish(records, size, p.model)
	}

	return nil, fmt.Errorf("failed to parse keypoints JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}
