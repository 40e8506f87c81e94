package posematch

import "github.com/kozaktomas/pose-match/internal/pose"

// Assignment pairs person A of one set with person B of the other.
// Indices refer to the caller's original slices.
type Assignment struct {
	A     int     `json:"a"`
	B     int     `json:"b"`
	Score float64 `json:"score"`
}

// Result is the outcome of matching two sets of people.
type Result struct {
	Score       float64      `json:"score"`
	Assignments []Assignment `json:"assignments"`

	// People that could not be normalized are removed before matching, so
	// positions in the matched sets no longer line up with input positions.
	// These list the removed input indices per side.
	DroppedA []int `json:"dropped_a,omitempty"`
	DroppedB []int `json:"dropped_b,omitempty"`
}

// Percent returns the result score as a whole percentage.
func (r *Result) Percent() int {
	return Percent(r.Score)
}

// MatchAll scores two sets of people against each other and returns the mean
// similarity over the greedy pairing. It returns 0 when either set has no
// person that can be normalized.
func MatchAll(peopleA, peopleB []pose.Person) float64 {
	r := Match(peopleA, peopleB)
	return r.Score
}

// Match pairs people greedily. People of A are visited in input order and each
// takes the still unused person of B with the strictly highest similarity, so
// on ties the earlier person of B wins. The pairing is not guaranteed to be the
// maximum-weight assignment.
func Match(peopleA, peopleB []pose.Person) Result {
	vecA, keptA := pose.NormalizeAll(peopleA)
	vecB, keptB := pose.NormalizeAll(peopleB)

	r := Result{
		Assignments: []Assignment{},
		DroppedA:    dropped(len(peopleA), keptA),
		DroppedB:    dropped(len(peopleB), keptB),
	}
	if len(vecA) == 0 || len(vecB) == 0 {
		return r
	}

	scores := make([][]float64, len(vecA))
	for i := range vecA {
		scores[i] = make([]float64, len(vecB))
		for j := range vecB {
			scores[i][j] = VectorSimilarity(&vecA[i], &vecB[j])
		}
	}

	pairs, mean := greedy(scores)
	for _, p := range pairs {
		r.Assignments = append(r.Assignments, Assignment{
			A:     keptA[p.A],
			B:     keptB[p.B],
			Score: p.Score,
		})
	}
	r.Score = mean
	return r
}

// greedy assigns rows to columns of a similarity matrix and returns the pairs
// made together with their mean score.
func greedy(scores [][]float64) ([]Assignment, float64) {
	if len(scores) == 0 {
		return nil, 0
	}

	used := make([]bool, len(scores[0]))
	var pairs []Assignment
	var sum float64
	for i, row := range scores {
		bestJ, best := -1, -1.0
		for j, s := range row {
			if used[j] {
				continue
			}
			if s > best {
				best, bestJ = s, j
			}
		}
		if bestJ < 0 {
			continue
		}
		used[bestJ] = true
		sum += best
		pairs = append(pairs, Assignment{A: i, B: bestJ, Score: best})
	}

	if len(pairs) == 0 {
		return nil, 0
	}
	return pairs, sum / float64(len(pairs))
}

func dropped(n int, kept []int) []int {
	if len(kept) == n {
		return nil
	}
	out := make([]int, 0, n-len(kept))
	k := 0
	for i := range n {
		if k < len(kept) && kept[k] == i {
			k++
			continue
		}
		out = append(out, i)
	}
	return out
}
