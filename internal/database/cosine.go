package database

import "math"

// minNorm floors the cosine denominator, matching the live scorer so a
// degenerate pose gets the same score in search and in play.
const minNorm = 1e-6

// CosineDistance computes the cosine distance between two pose vectors over
// their shared prefix. Returns a value between 0 (same pose) and 2 (mirrored
// pose). An all-zero vector is at distance 1 from anything, and a nil vector
// at distance 2.
func CosineDistance(a, b []float32) float64 {
	if a == nil || b == nil {
		return 2.0
	}

	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := range n {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		denom = minNorm
	}

	cos := dot / denom
	return 1 - max(-1, min(1, cos))
}

// DistanceToScore converts a cosine distance to the [0, 1] pose score used by
// the game, where 1 is an identical pose.
func DistanceToScore(d float64) float64 {
	if math.IsNaN(d) {
		return 0
	}
	return max(0, min(1, 1-d/2))
}
