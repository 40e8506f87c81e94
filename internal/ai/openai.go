package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = openai.ChatModelGPT4_1Mini

type OpenAIExtractor struct {
	client  *openai.Client
	model   string
	minConf float64
	usageTracker
}

// OpenAIOption configures an OpenAIExtractor.
type OpenAIOption func(*OpenAIExtractor, *[]option.RequestOption)

// WithOpenAIBaseURL points the client at a compatible API, e.g. a test server.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(_ *OpenAIExtractor, opts *[]option.RequestOption) {
		*opts = append(*opts, option.WithBaseURL(url))
	}
}

// WithOpenAIModel overrides the chat model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIExtractor, _ *[]option.RequestOption) {
		if model != "" {
			p.model = model
		}
	}
}

func NewOpenAIExtractor(apiKey string, minConf float64, pricing RequestPricing, opts ...OpenAIOption) *OpenAIExtractor {
	p := &OpenAIExtractor{model: defaultOpenAIModel, minConf: minConf}
	p.pricing = pricing
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(p, &reqOpts)
	}
	client := openai.NewClient(reqOpts...)
	p.client = &client
	return p
}

func (p *OpenAIExtractor) Name() string {
	return p.model
}

func (p *OpenAIExtractor) Extract(ctx context.Context, imageData []byte) (*Extraction, error) {
	size, resized, err := prepareImage(imageData)
	if err != nil {
		return nil, err
	}

	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(resized)

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(poseKeypointsPrompt),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart(buildUserMessage(size)),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "high",
						}),
					},
				},
			},
		},
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    p.model,
			Messages: messages,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
			MaxTokens: openai.Int(2000),
		})
		if err != nil {
			return nil, fmt.Errorf("OpenAI API error: %w", err)
		}

		if len(resp.Choices) == 0 {
			return nil, errors.New("no response from OpenAI")
		}

		if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
			p.trackUsage(int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens))
		}

		content := resp.Choices[0].Message.Content
		lastResponse = content

		records, err := parseResponse(content, size, p.minConf)
		if err != nil {
			lastError = err

			// Add assistant response and error feedback to messages for retry
			messages = append(messages,
				openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Content: openai.ChatCompletionAssistantMessageParamContentUnion{
							OfString: openai.String(content),
						},
					},
				},
				openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfString: openai.String(retryMessage(err)),
						},
					},
				},
			)
			continue
		}

		return finish(records, size, p.model)
	}

	return nil, fmt.Errorf("failed to parse keypoints JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}
