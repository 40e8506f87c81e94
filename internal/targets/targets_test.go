package targets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/pose-match/internal/ai"
	"github.com/kozaktomas/pose-match/internal/pose"
)

func standing() pose.Person {
	return pose.Person{
		{Name: "nose", X: 100, Y: 40},
		{Name: "left_shoulder", X: 120, Y: 80},
		{Name: "right_shoulder", X: 80, Y: 80},
		{Name: "left_elbow", X: 130, Y: 120},
		{Name: "right_elbow", X: 70, Y: 120},
		{Name: "left_hip", X: 115, Y: 180},
		{Name: "right_hip", X: 85, Y: 180},
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"1/2.jpg", "1/10.jpg", "2/1.PNG", "1/1.webp",
		"failed/1.jpg", "1/cover.jpg", "1/3.txt", "top.jpg", "2/sub/4.jpg",
	} {
		writeFile(t, filepath.Join(root, filepath.FromSlash(rel)))
	}

	images, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []string{"1/1", "1/2", "1/10", "2/1"}
	if len(images) != len(want) {
		t.Fatalf("Scan() found %d images, want %d: %+v", len(images), len(want), images)
	}
	for i, name := range want {
		if images[i].Name() != name {
			t.Errorf("images[%d].Name() = %q, want %q", i, images[i].Name(), name)
		}
	}
	if images[0].Rel != "1/1.webp" {
		t.Errorf("images[0].Rel = %q", images[0].Rel)
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	img := Image{Path: filepath.Join(root, "2", "5.jpg"), Rel: "2/5.jpg", Players: 2, Index: 5}
	writeFile(t, img.Path)

	size := pose.Size{W: 400, H: 300}
	shifted := standing()
	for i := range shifted {
		shifted[i].X += 150
	}
	headless := pose.Person{{Name: "nose", X: 50, Y: 50}, {Name: "left_shoulder", X: 60, Y: 80}}
	records := []pose.PersonRecord{
		pose.NewPersonRecord(standing(), 0.9, size),
		pose.NewPersonRecord(shifted, 0.8, size),
		pose.NewPersonRecord(headless, 0.7, size),
	}
	// headless is leftmost and takes slot 0
	pose.SortBySlot(records)
	if _, err := pose.WriteFiles(img.Base(), size, records, false); err != nil {
		t.Fatal(err)
	}

	target, skipped, err := Load(img)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if target.Name != "2/5" || target.Players != 2 || target.Index != 5 {
		t.Errorf("target = %+v", target)
	}
	if target.SourceWidth != 400 || target.SourceHeight != 300 {
		t.Errorf("source size = %dx%d", target.SourceWidth, target.SourceHeight)
	}
	if target.PosePath != "2/5.multi.json" {
		t.Errorf("PosePath = %q", target.PosePath)
	}
	if len(target.People) != 2 {
		t.Fatalf("len(People) = %d, want 2", len(target.People))
	}
	for i, p := range target.People {
		if p.Slot != i+1 {
			t.Errorf("People[%d].Slot = %d", i, p.Slot)
		}
		if len(p.Vector) != pose.VectorLen {
			t.Errorf("People[%d] vector length = %d", i, len(p.Vector))
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	root := t.TempDir()
	img := Image{Path: filepath.Join(root, "1", "1.jpg"), Rel: "1/1.jpg", Players: 1, Index: 1}
	writeFile(t, img.Path)

	if _, _, err := Load(img); !errors.Is(err, ErrNoPoseFile) {
		t.Errorf("Load() without pose file error = %v, want ErrNoPoseFile", err)
	}

	size := pose.Size{W: 100, H: 100}
	noTorso := pose.Person{{Name: "nose", X: 50, Y: 50}}
	if _, err := pose.WriteFiles(img.Base(), size, []pose.PersonRecord{pose.NewPersonRecord(noTorso, 0.9, size)}, false); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(img); !errors.Is(err, pose.ErrNoPeople) {
		t.Errorf("Load() without torso error = %v, want ErrNoPeople", err)
	}
}

type stubExtractor struct {
	result *ai.Extraction
	err    error
	calls  int
}

func (s *stubExtractor) Name() string { return "stub" }

func (s *stubExtractor) Extract(ctx context.Context, imageData []byte) (*ai.Extraction, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubExtractor) GetUsage() *ai.Usage { return &ai.Usage{} }

func (s *stubExtractor) ResetUsage() {}

func TestExtract(t *testing.T) {
	root := t.TempDir()
	failed := filepath.Join(root, FailedDir)
	img := Image{Path: filepath.Join(root, "1", "3.jpg"), Rel: "1/3.jpg", Players: 1, Index: 3}
	writeFile(t, img.Path)

	size := pose.Size{W: 200, H: 320}
	ex := &stubExtractor{result: &ai.Extraction{
		Size:   size,
		People: []pose.PersonRecord{pose.NewPersonRecord(standing(), 0.9, size)},
	}}

	written, err := Extract(context.Background(), ex, img, failed, false)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(written) != 2 {
		t.Errorf("written = %v, want two pose files", written)
	}

	if _, err := Extract(context.Background(), ex, img, failed, false); !errors.Is(err, ErrPoseExists) {
		t.Errorf("second Extract() error = %v, want ErrPoseExists", err)
	}
	if ex.calls != 1 {
		t.Errorf("extractor called %d times, want 1", ex.calls)
	}

	if _, _, err := Load(img); err != nil {
		t.Errorf("Load() after Extract error = %v", err)
	}
}

func TestExtract_MovesFailures(t *testing.T) {
	root := t.TempDir()
	failed := filepath.Join(root, FailedDir)
	img := Image{Path: filepath.Join(root, "2", "4.jpg"), Rel: "2/4.jpg", Players: 2, Index: 4}
	writeFile(t, img.Path)

	ex := &stubExtractor{err: errors.New("no people detected")}
	if _, err := Extract(context.Background(), ex, img, failed, false); err == nil {
		t.Fatal("Extract() should fail")
	}

	if _, err := os.Stat(img.Path); !os.IsNotExist(err) {
		t.Error("image should have been moved away")
	}
	if _, err := os.Stat(filepath.Join(failed, "4.jpg")); err != nil {
		t.Errorf("image not in failed dir: %v", err)
	}
}
