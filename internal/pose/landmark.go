// Package pose defines skeletal keypoints and converts a detected person into a
// translation- and scale-invariant feature vector.
package pose

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Landmark is one anatomical point of the fixed keypoint vocabulary.
// The numeric order is the canonical feature vector order.
type Landmark int

const (
	Nose Landmark = iota
	LeftEye
	RightEye
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	// NumLandmarks is the size of the vocabulary.
	NumLandmarks
)

var landmarkNames = [NumLandmarks]string{
	"nose",
	"left_eye",
	"right_eye",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

var landmarkByName = func() map[string]Landmark {
	m := make(map[string]Landmark, NumLandmarks)
	for i, name := range landmarkNames {
		m[name] = Landmark(i)
	}
	return m
}()

// String returns the detector name of the landmark (e.g. "left_hip").
func (l Landmark) String() string {
	if !l.Valid() {
		return "unknown"
	}
	return landmarkNames[l]
}

// Valid reports whether l is part of the vocabulary.
func (l Landmark) Valid() bool {
	return l >= 0 && l < NumLandmarks
}

// Landmarks returns all landmarks in canonical order.
func Landmarks() []Landmark {
	out := make([]Landmark, NumLandmarks)
	for i := range out {
		out[i] = Landmark(i)
	}
	return out
}

// ParseLandmark looks up an exact detector name. Names outside the vocabulary
// (left_ear, left_eye_inner, ...) are reported as not found.
func ParseLandmark(name string) (Landmark, bool) {
	l, ok := landmarkByName[name]
	return l, ok
}

// CanonicalName folds a landmark name coming from another tool into detector form:
// "Left Shoulder", "LEFT-SHOULDER" and "left_shoulder" all become "left_shoulder".
func CanonicalName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("-", "_", " ", "_").Replace(name)
	return name
}

// LookupLandmark resolves a possibly non-canonical name.
func LookupLandmark(name string) (Landmark, bool) {
	if l, ok := landmarkByName[name]; ok {
		return l, true
	}
	return ParseLandmark(CanonicalName(name))
}
