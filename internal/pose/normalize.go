package pose

import "math"

// VectorLen is the length of a FeatureVector: one (x, y) pair per landmark.
const VectorLen = 2 * int(NumLandmarks)

// Keypoint is a single named landmark in the pixel space of its source frame.
type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score,omitempty"`
}

// Person is the ordered keypoint list of one individual in one frame.
type Person []Keypoint

// Point is a 2-D coordinate.
type Point struct {
	X, Y float64
}

func midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// FeatureVector holds the normalized coordinates of all landmarks in canonical
// order, centered on the hip midpoint and scaled by torso length.
type FeatureVector [VectorLen]float64

// Slice returns the vector as a slice backed by v.
func (v *FeatureVector) Slice() []float64 {
	return v[:]
}

// Float32 converts the vector for pgvector and HNSW storage.
func (v *FeatureVector) Float32() []float32 {
	out := make([]float32, VectorLen)
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// FeatureVectorFromFloat32 is the inverse of Float32. Short input is zero-padded.
func FeatureVectorFromFloat32(vals []float32) FeatureVector {
	var v FeatureVector
	for i := 0; i < len(vals) && i < VectorLen; i++ {
		v[i] = float64(vals[i])
	}
	return v
}

// Skeleton is a person indexed by landmark. Duplicate names keep the last one.
type Skeleton struct {
	points  [NumLandmarks]Point
	present [NumLandmarks]bool
}

// NewSkeleton indexes the keypoints of p. Names outside the vocabulary are ignored.
func NewSkeleton(p Person) Skeleton {
	var s Skeleton
	for _, kp := range p {
		l, ok := ParseLandmark(kp.Name)
		if !ok {
			continue
		}
		s.points[l] = Point{X: kp.X, Y: kp.Y}
		s.present[l] = true
	}
	return s
}

// Get returns the landmark position and whether it was detected.
func (s *Skeleton) Get(l Landmark) (Point, bool) {
	if !l.Valid() {
		return Point{}, false
	}
	return s.points[l], s.present[l]
}

// HasTorso reports whether both hips and both shoulders are present.
func (s *Skeleton) HasTorso() bool {
	return s.present[LeftHip] && s.present[RightHip] &&
		s.present[LeftShoulder] && s.present[RightShoulder]
}

// Normalize converts a person to its feature vector. It returns false when one of
// the four torso landmarks is missing, since no reference frame exists then.
// Missing optional landmarks contribute (0, 0).
func Normalize(p Person) (FeatureVector, bool) {
	s := NewSkeleton(p)
	return s.Normalize()
}

// Normalize is the Skeleton form of Normalize.
func (s *Skeleton) Normalize() (FeatureVector, bool) {
	var v FeatureVector
	if !s.HasTorso() {
		return v, false
	}

	c := midpoint(s.points[LeftHip], s.points[RightHip])
	sh := midpoint(s.points[LeftShoulder], s.points[RightShoulder])
	torso := math.Hypot(sh.X-c.X, sh.Y-c.Y)
	if torso == 0 {
		torso = 1
	}

	for l := range NumLandmarks {
		if !s.present[l] {
			continue
		}
		v[2*l] = (s.points[l].X - c.X) / torso
		v[2*l+1] = (s.points[l].Y - c.Y) / torso
	}
	return v, true
}

// NormalizeAll normalizes every person and drops the ones without a vector.
// kept holds the input index of each returned vector.
func NormalizeAll(people []Person) (vectors []FeatureVector, kept []int) {
	vectors = make([]FeatureVector, 0, len(people))
	kept = make([]int, 0, len(people))
	for i, p := range people {
		v, ok := Normalize(p)
		if !ok {
			continue
		}
		vectors = append(vectors, v)
		kept = append(kept, i)
	}
	return vectors, kept
}
