package ai

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/pose-match/internal/pose"
)

//go:embed prompts/pose_keypoints.txt
var poseKeypointsPrompt string

// maxRetries bounds how often a backend is asked to fix invalid JSON.
const maxRetries = 5

// uploadMaxSize is the longest image edge sent to a model.
const uploadMaxSize = 800

// DefaultMinConfidence is the person score below which detections are dropped.
const DefaultMinConfidence = 0.3

// ErrNoPeople is returned when a backend finds nobody in the image.
var ErrNoPeople = errors.New("no people detected")

// buildUserMessage tells the model the image size so it can sanity check the
// relative coordinates it returns.
func buildUserMessage(size pose.Size) string {
	return fmt.Sprintf("Detect the people in this %dx%d image.", size.W, size.H)
}

func retryMessage(err error) string {
	return fmt.Sprintf("JSON parse error: %v. Please fix the JSON and try again. Output ONLY valid JSON, no other text.", err)
}

// parseResponse decodes a model response into slotted pixel-space records.
// Keypoints with unknown names are dropped, coordinates outside [0,1] are
// clamped to the image and people below minConf are skipped.
func parseResponse(content string, size pose.Size, minConf float64) ([]pose.PersonRecord, error) {
	var resp modelResponse
	if err := json.Unmarshal([]byte(extractJSON(content)), &resp); err != nil {
		return nil, err
	}

	records := make([]pose.PersonRecord, 0, len(resp.People))
	for _, mp := range resp.People {
		if mp.Score < minConf {
			continue
		}
		person := make(pose.Person, 0, len(mp.Keypoints))
		for _, kp := range mp.Keypoints {
			l, ok := pose.LookupLandmark(kp.Name)
			if !ok {
				continue
			}
			person = append(person, pose.Keypoint{
				Name:  l.String(),
				X:     relToPx(kp.X, size.W),
				Y:     relToPx(kp.Y, size.H),
				Score: kp.Score,
			})
		}
		if len(person) == 0 {
			continue
		}
		records = append(records, pose.NewPersonRecord(person, mp.Score, size))
	}
	pose.SortBySlot(records)
	return records, nil
}

func relToPx(v float64, extent int) float64 {
	v = max(0, min(1, v))
	return v * float64(extent)
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return content
	}

	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	// If no matching brace found, return from start
	return content[start:]
}

// finish wraps parsed records into an Extraction, failing when nobody was found.
func finish(records []pose.PersonRecord, size pose.Size, model string) (*Extraction, error) {
	if len(records) == 0 {
		return nil, ErrNoPeople
	}
	return &Extraction{Size: size, People: records, Model: model}, nil
}

// IsNoPeople reports whether err means the image contained nobody.
func IsNoPeople(err error) bool {
	return errors.Is(err, ErrNoPeople)
}
