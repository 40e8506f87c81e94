// Package targets manages the folder of target images players imitate.
//
// Images live at <root>/<players>/<index>.<ext>, each next to its pose files
// <index>.json (best person) and <index>.multi.json (everyone). Images the
// extractor could not read are moved to <root>/failed.
package targets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kozaktomas/pose-match/internal/ai"
	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/kozaktomas/pose-match/internal/pose"
)

// FailedDir is the folder under the root that collects failed images.
const FailedDir = "failed"

var (
	ErrNoPoseFile = errors.New("no pose file")
	ErrPoseExists = errors.New("pose files already exist")
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true}

// Image is one target image found under the root.
type Image struct {
	Path    string // full path
	Rel     string // path relative to the root, slash separated
	Players int
	Index   int
}

// Name returns the target name, e.g. "2/7".
func (img Image) Name() string {
	return database.TargetName(img.Players, img.Index)
}

// Base is the path without extension; pose files are Base+".json" and Base+".multi.json".
func (img Image) Base() string {
	return strings.TrimSuffix(img.Path, filepath.Ext(img.Path))
}

// Scan lists target images under root ordered by players and index. Files that
// do not follow the <players>/<index> layout and the failed folder are skipped.
func Scan(root string) ([]Image, error) {
	var images []Image
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.EqualFold(d.Name(), FailedDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if !imageExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 2 {
			return nil
		}
		players, err1 := strconv.Atoi(parts[0])
		index, err2 := strconv.Atoi(strings.TrimSuffix(parts[1], filepath.Ext(parts[1])))
		if err1 != nil || err2 != nil || players <= 0 || index <= 0 {
			return nil
		}

		images = append(images, Image{Path: path, Rel: filepath.ToSlash(rel), Players: players, Index: index})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	sort.Slice(images, func(i, j int) bool {
		if images[i].Players != images[j].Players {
			return images[i].Players < images[j].Players
		}
		return images[i].Index < images[j].Index
	})
	return images, nil
}

// ReadPose reads the pose file of an image, preferring the multi-person file.
func ReadPose(img Image) (*pose.File, error) {
	for _, suffix := range []string{".multi.json", ".json"} {
		path := img.Base() + suffix
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return pose.ReadFile(path)
	}
	return nil, fmt.Errorf("%s: %w", img.Rel, ErrNoPoseFile)
}

// Load builds the stored form of a target from its pose file. People whose
// torso is incomplete cannot be normalized and are left out; skipped reports
// how many.
func Load(img Image) (t *database.StoredTarget, skipped int, err error) {
	f, err := ReadPose(img)
	if err != nil {
		return nil, 0, err
	}
	if f.Failed() {
		return nil, 0, fmt.Errorf("%s: %w", img.Rel, pose.ErrNoPeople)
	}

	size, hasSize := f.Size()
	if !hasSize {
		if data, err := os.ReadFile(img.Path); err == nil {
			if s, err := ai.ImageSize(data); err == nil {
				size, hasSize = s, true
			}
		}
	}

	t = &database.StoredTarget{
		Name:         img.Name(),
		Players:      img.Players,
		Index:        img.Index,
		ImagePath:    img.Rel,
		PosePath:     filepath.ToSlash(strings.TrimSuffix(img.Rel, filepath.Ext(img.Rel))) + ".multi.json",
		SourceWidth:  size.W,
		SourceHeight: size.H,
	}

	records := f.Records()
	for i := range records {
		person := records[i].Person(size, hasSize)
		vec, ok := pose.Normalize(person)
		if !ok {
			skipped++
			continue
		}
		t.People = append(t.People, database.TargetPerson{
			Slot:      records[i].Slot,
			Keypoints: person,
			Vector:    vec.Float32(),
			Score:     records[i].Score,
		})
	}
	if len(t.People) == 0 {
		return nil, skipped, fmt.Errorf("%s: %w", img.Rel, pose.ErrNoPeople)
	}
	return t, skipped, nil
}

// Extract runs ex over an image and writes its pose files. Without overwrite,
// images that already have pose files are left alone and ErrPoseExists is
// returned. Images without people are moved to failedDir.
func Extract(ctx context.Context, ex ai.Extractor, img Image, failedDir string, overwrite bool) ([]string, error) {
	if !overwrite {
		if _, err := os.Stat(img.Base() + ".json"); err == nil {
			return nil, ErrPoseExists
		}
	}

	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	result, err := ex.Extract(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if moveErr := MoveToFailed(img, failedDir, overwrite); moveErr != nil {
			return nil, errors.Join(err, moveErr)
		}
		return nil, fmt.Errorf("%s: %w", img.Rel, err)
	}

	written, err := pose.WriteFiles(img.Base(), result.Size, result.People, overwrite)
	if err != nil {
		return written, fmt.Errorf("writing pose files: %w", err)
	}
	return written, nil
}

// MoveToFailed moves an image and its pose files into failedDir.
func MoveToFailed(img Image, failedDir string, overwrite bool) error {
	if err := os.MkdirAll(failedDir, 0o755); err != nil {
		return fmt.Errorf("creating failed dir: %w", err)
	}

	base := img.Base()
	for _, src := range []string{img.Path, base + ".json", base + ".multi.json"} {
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(failedDir, filepath.Base(src))
		if _, err := os.Stat(dst); err == nil && !overwrite {
			dst = filepath.Join(failedDir, fmt.Sprintf("%d_%s", img.Players, filepath.Base(src)))
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("moving %s to failed: %w", src, err)
		}
	}
	return nil
}
