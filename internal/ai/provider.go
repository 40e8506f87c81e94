// Package ai extracts body keypoints from images with vision language models.
package ai

import (
	"context"
	"sync"

	"github.com/kozaktomas/pose-match/internal/pose"
)

// Extractor defines the interface for keypoint extraction backends.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, imageData []byte) (*Extraction, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// RequestPricing holds input/output prices per 1M tokens
type RequestPricing struct {
	Input  float64
	Output float64
}

// usageTracker accumulates usage across concurrent Extract calls.
type usageTracker struct {
	mu      sync.Mutex
	usage   Usage
	pricing RequestPricing
}

// GetUsage returns a snapshot of the accumulated usage.
func (u *usageTracker) GetUsage() *Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	snapshot := u.usage
	return &snapshot
}

func (u *usageTracker) ResetUsage() {
	u.mu.Lock()
	u.usage = Usage{}
	u.mu.Unlock()
}

func (u *usageTracker) trackUsage(inputTokens, outputTokens int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage.InputTokens += inputTokens
	u.usage.OutputTokens += outputTokens
	u.usage.TotalCost += float64(inputTokens) / 1_000_000 * u.pricing.Input
	u.usage.TotalCost += float64(outputTokens) / 1_000_000 * u.pricing.Output
}

// Extraction is the result of running an extractor over one image.
type Extraction struct {
	Size   pose.Size           // source image size in pixels
	People []pose.PersonRecord // ordered left to right, slots assigned
	Model  string
}

// Persons returns the extracted people in pixel coordinates.
func (e *Extraction) Persons() []pose.Person {
	out := make([]pose.Person, len(e.People))
	for i := range e.People {
		out[i] = e.People[i].KeypointsPx
	}
	return out
}

// modelResponse is the JSON shape requested from every backend.
type modelResponse struct {
	People []modelPerson `json:"people"`
}

type modelPerson struct {
	Score     float64         `json:"score"`
	Keypoints []pose.Keypoint `json:"keypoints"`
}
