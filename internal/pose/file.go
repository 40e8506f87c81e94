package pose

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"
)

// FileVersion is written into generated pose files.
const FileVersion = "1.1"

// ErrNoPeople is returned when a pose file holds no usable person.
var ErrNoPeople = errors.New("pose file contains no people")

// Size is an image size in pixels.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// BBox is a box in [x, y, w, h] form, either in pixels or relative (0-1).
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// PersonRecord is one person as stored in a pose file.
type PersonRecord struct {
	Slot        int        `json:"slot"`
	BBoxPx      *BBox      `json:"bbox_px,omitempty"`
	BBox        *BBox      `json:"bbox,omitempty"`
	KeypointsPx []Keypoint `json:"keypoints_px,omitempty"`
	Keypoints   []Keypoint `json:"keypoints,omitempty"`
	Score       float64    `json:"score"`
}

// FileMeta is the metadata block written by single-person extractors.
type FileMeta struct {
	Model   string `json:"model,omitempty"`
	ImageW  int    `json:"image_w,omitempty"`
	ImageH  int    `json:"image_h,omitempty"`
	Created string `json:"created,omitempty"`
	Failed  bool   `json:"failed,omitempty"`
}

// File is a decoded pose file. Both the single-person layout (keypoints at the
// top level) and the multi-person layout (people array) decode into it.
type File struct {
	PersonRecord

	Version    string         `json:"version,omitempty"`
	CreatedAt  string         `json:"created_at,omitempty"`
	SourceSize *Size          `json:"source_size,omitempty"`
	People     []PersonRecord `json:"people,omitempty"`
	Meta       *FileMeta      `json:"meta,omitempty"`
}

// Decode reads a pose file from r.
func Decode(r io.Reader) (*File, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding pose file: %w", err)
	}
	return &f, nil
}

// ReadFile reads and decodes the pose file at path.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("opening pose file: %w", err)
	}
	defer fh.Close()

	f, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Size returns the source image size if the file records one.
func (f *File) Size() (Size, bool) {
	if f.SourceSize != nil && f.SourceSize.W > 0 && f.SourceSize.H > 0 {
		return *f.SourceSize, true
	}
	if f.Meta != nil && f.Meta.ImageW > 0 && f.Meta.ImageH > 0 {
		return Size{W: f.Meta.ImageW, H: f.Meta.ImageH}, true
	}
	return Size{}, false
}

// Failed reports whether the extractor marked this file as a failed detection.
func (f *File) Failed() bool {
	return f.Meta != nil && f.Meta.Failed
}

// Records returns the person records, whichever layout the file used.
func (f *File) Records() []PersonRecord {
	if len(f.People) > 0 {
		return f.People
	}
	if len(f.PersonRecord.KeypointsPx) > 0 || len(f.PersonRecord.Keypoints) > 0 {
		return []PersonRecord{f.PersonRecord}
	}
	return nil
}

// Persons returns every person in pixel coordinates with canonical landmark names.
// Relative keypoints are scaled back to pixels when the source size is known, so
// aspect ratio is preserved for normalization.
func (f *File) Persons() []Person {
	size, hasSize := f.Size()
	records := f.Records()
	out := make([]Person, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Person(size, hasSize))
	}
	return out
}

// Person converts a record to pixel space.
func (rec *PersonRecord) Person(size Size, hasSize bool) Person {
	if len(rec.KeypointsPx) > 0 {
		return canonicalize(rec.KeypointsPx, 1, 1)
	}
	if hasSize && isRelative(rec.Keypoints) {
		return canonicalize(rec.Keypoints, float64(size.W), float64(size.H))
	}
	return canonicalize(rec.Keypoints, 1, 1)
}

func canonicalize(kps []Keypoint, sx, sy float64) Person {
	p := make(Person, 0, len(kps))
	for _, kp := range kps {
		name := kp.Name
		if l, ok := LookupLandmark(name); ok {
			name = l.String()
		}
		p = append(p, Keypoint{Name: name, X: kp.X * sx, Y: kp.Y * sy, Score: kp.Score})
	}
	return p
}

func isRelative(kps []Keypoint) bool {
	if len(kps) == 0 {
		return false
	}
	for _, kp := range kps {
		if kp.X < 0 || kp.X > 1 || kp.Y < 0 || kp.Y > 1 {
			return false
		}
	}
	return true
}

// NewPersonRecord builds the stored form of a pixel-space person: keypoints are
// clamped to the image, and pixel and relative boxes are derived from them.
func NewPersonRecord(p Person, score float64, size Size) PersonRecord {
	w, h := float64(size.W), float64(size.H)
	px := make([]Keypoint, 0, len(p))
	rel := make([]Keypoint, 0, len(p))
	for _, kp := range p {
		x := math.Max(0, math.Min(w-1, kp.X))
		y := math.Max(0, math.Min(h-1, kp.Y))
		px = append(px, Keypoint{Name: kp.Name, X: x, Y: y, Score: kp.Score})
		rel = append(rel, Keypoint{Name: kp.Name, X: x / w, Y: y / h})
	}

	bboxPx := BBox{X: 0, Y: 0, W: w, H: h}
	if minPt, maxPt, ok := Person(px).Bounds(); ok {
		bboxPx = BBox{
			X: math.Round(minPt.X),
			Y: math.Round(minPt.Y),
			W: math.Max(1, math.Round(maxPt.X-minPt.X)),
			H: math.Max(1, math.Round(maxPt.Y-minPt.Y)),
		}
	}
	bbox := BBox{X: bboxPx.X / w, Y: bboxPx.Y / h, W: bboxPx.W / w, H: bboxPx.H / h}

	return PersonRecord{
		BBoxPx:      &bboxPx,
		BBox:        &bbox,
		KeypointsPx: px,
		Keypoints:   rel,
		Score:       score,
	}
}

// SortBySlot orders records left to right by keypoint x-center and assigns slots.
func SortBySlot(records []PersonRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return Person(records[i].KeypointsPx).XCenter() < Person(records[j].KeypointsPx).XCenter()
	})
	for i := range records {
		records[i].Slot = i
	}
}

type singleFile struct {
	Version     string     `json:"version"`
	CreatedAt   string     `json:"created_at"`
	SourceSize  Size       `json:"source_size"`
	BBoxPx      *BBox      `json:"bbox_px"`
	BBox        *BBox      `json:"bbox"`
	KeypointsPx []Keypoint `json:"keypoints_px"`
	Keypoints   []Keypoint `json:"keypoints"`
	Slot        int        `json:"slot"`
	Score       float64    `json:"score"`
}

type multiFile struct {
	Version    string         `json:"version"`
	CreatedAt  string         `json:"created_at"`
	SourceSize Size           `json:"source_size"`
	People     []PersonRecord `json:"people"`
}

// WriteFiles writes base+".json" (best scoring person) and base+".multi.json"
// (all people). Existing files are kept unless overwrite is set; the returned
// slice lists the files actually written.
func WriteFiles(base string, size Size, records []PersonRecord, overwrite bool) ([]string, error) {
	if len(records) == 0 {
		return nil, ErrNoPeople
	}

	best := records[0]
	for _, rec := range records[1:] {
		if rec.Score > best.Score {
			best = rec
		}
	}

	createdAt := time.Now().Format("2006-01-02 15:04:05")
	single := singleFile{
		Version:     FileVersion,
		CreatedAt:   createdAt,
		SourceSize:  size,
		BBoxPx:      best.BBoxPx,
		BBox:        best.BBox,
		KeypointsPx: best.KeypointsPx,
		Keypoints:   best.Keypoints,
		Slot:        best.Slot,
		Score:       best.Score,
	}
	multi := multiFile{
		Version:    FileVersion,
		CreatedAt:  createdAt,
		SourceSize: size,
		People:     records,
	}

	var written []string
	for path, data := range map[string]any{base + ".json": single, base + ".multi.json": multi} {
		ok, err := writeJSON(path, data, overwrite)
		if err != nil {
			return written, err
		}
		if ok {
			written = append(written, path)
		}
	}
	sort.Strings(written)
	return written, nil
}

func writeJSON(path string, data any, overwrite bool) (bool, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil { //nolint:gosec // pose files are public assets
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}
