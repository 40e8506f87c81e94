// Package posematch scores how closely observed poses match target poses.
package posematch

import (
	"math"

	"github.com/kozaktomas/pose-match/internal/pose"
)

// minNorm floors the cosine denominator so an all-zero vector yields 0.
const minNorm = 1e-6

// Similarity computes cosine similarity over the shared prefix of a and b and
// maps it from [-1, 1] to [0, 1]. A nil input scores 0.
func Similarity(a, b []float64) float64 {
	if a == nil || b == nil {
		return 0
	}

	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := range n {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		denom = minNorm
	}

	cos := dot / denom
	// Clamp to [-1, 1] to handle floating point errors
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}

// VectorSimilarity is Similarity for feature vectors; a nil vector means the
// person could not be normalized and scores 0.
func VectorSimilarity(a, b *pose.FeatureVector) float64 {
	if a == nil || b == nil {
		return 0
	}
	return Similarity(a.Slice(), b.Slice())
}

// ScoreSingle compares one observed person against one target person.
func ScoreSingle(observed, target pose.Person) float64 {
	a, okA := pose.Normalize(observed)
	b, okB := pose.Normalize(target)
	if !okA || !okB {
		return 0
	}
	return VectorSimilarity(&a, &b)
}

// Percent converts a score in [0, 1] to a whole percentage.
func Percent(score float64) int {
	return int(math.Round(score * 100))
}
