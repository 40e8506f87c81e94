package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/kozaktomas/pose-match/internal/pose"
)

func person(dx float64) pose.Person {
	return pose.Person{
		{Name: "left_shoulder", X: 30 + dx, Y: 20},
		{Name: "right_shoulder", X: 10 + dx, Y: 20},
		{Name: "left_hip", X: 28 + dx, Y: 60},
		{Name: "right_hip", X: 12 + dx, Y: 60},
	}
}

func TestColorFor(t *testing.T) {
	if ColorFor(0) != Palette[0] || ColorFor(4) != Palette[0] || ColorFor(5) != Palette[1] {
		t.Error("palette should repeat every four people")
	}
	green := ColorFor(0)
	if green.G <= green.R || green.G <= green.B {
		t.Errorf("first person should be green, got %+v", green)
	}
}

func TestBlank_DrawsBonesAndJoints(t *testing.T) {
	img := Blank(pose.Size{W: 100, H: 80}, []pose.Person{person(0), person(50)})

	tests := []struct {
		name  string
		x, y  int
		color color.NRGBA
		drawn bool
	}{
		{"first person joint", 30, 20, Palette[0], true},
		{"first person shoulder bone", 20, 20, Palette[0], true},
		{"first person hip bone", 20, 60, Palette[0], true},
		{"second person joint", 80, 20, Palette[1], true},
		{"empty background", 5, 75, color.NRGBA{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := color.NRGBAModel.Convert(img.At(tt.x, tt.y)).(color.NRGBA)
			if !tt.drawn {
				if got.A != 0 {
					t.Errorf("pixel (%d,%d) = %+v, want transparent", tt.x, tt.y, got)
				}
				return
			}
			if got.A == 0 {
				t.Fatalf("pixel (%d,%d) not drawn", tt.x, tt.y)
			}
			if absDiff(got.R, tt.color.R) > 8 || absDiff(got.G, tt.color.G) > 8 || absDiff(got.B, tt.color.B) > 8 {
				t.Errorf("pixel (%d,%d) = %+v, want close to %+v", tt.x, tt.y, got, tt.color)
			}
		})
	}
}

func TestDrawSkeleton_SkipsBonesWithMissingEnds(t *testing.T) {
	p := pose.Person{
		{Name: "left_shoulder", X: 10, Y: 10},
		{Name: "left_wrist", X: 90, Y: 10},
	}
	img := Blank(pose.Size{W: 100, H: 20}, []pose.Person{p})

	// No elbow, so no line between shoulder and wrist.
	if a := img.RGBAAt(50, 10).A; a != 0 {
		t.Errorf("pixel between unconnected joints has alpha %d", a)
	}
	if a := img.RGBAAt(10, 10).A; a == 0 {
		t.Error("joint dot missing")
	}
}

func TestOverlay(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, nil); err != nil {
		t.Fatal(err)
	}

	img, err := Overlay(buf.Bytes(), []pose.Person{person(0)})
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 80 {
		t.Errorf("bounds = %v", img.Bounds())
	}
	if c := img.RGBAAt(90, 70); c.R < 240 || c.G < 240 || c.B < 240 {
		t.Errorf("background should stay white, got %+v", c)
	}
	if c := img.RGBAAt(30, 20); c.R > 200 {
		t.Errorf("joint should be drawn in green, got %+v", c)
	}

	if _, err := Overlay([]byte("nope"), nil); err == nil {
		t.Error("expected decode error")
	}
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, Blank(pose.Size{W: 4, H: 4}, nil)); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("output is not a PNG: %v", err)
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
