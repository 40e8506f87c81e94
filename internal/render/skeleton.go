// Package render draws pose skeletons onto images.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/kozaktomas/pose-match/internal/pose"
	"golang.org/x/image/vector"
)

const (
	lineWidth   = 3
	jointRadius = 4
)

// Palette colors people by their position in the people slice: green, blue,
// pink, then yellow, repeating for more people.
var Palette = []color.NRGBA{
	{R: 34, G: 197, B: 94, A: 242},
	{R: 59, G: 130, B: 246, A: 242},
	{R: 244, G: 114, B: 182, A: 242},
	{R: 250, G: 204, B: 21, A: 242},
}

// ColorFor returns the palette color of the i-th person.
func ColorFor(i int) color.NRGBA {
	return Palette[i%len(Palette)]
}

// DrawPeople draws every person onto dst. Coordinates are in dst pixels.
func DrawPeople(dst draw.Image, people []pose.Person) {
	for i, p := range people {
		DrawSkeleton(dst, p, ColorFor(i))
	}
}

// DrawSkeleton draws the bones whose both ends are present and a dot for
// every keypoint.
func DrawSkeleton(dst draw.Image, p pose.Person, c color.Color) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	off := b.Min

	s := pose.NewSkeleton(p)
	for _, bone := range pose.Bones {
		from, ok1 := s.Get(bone.From)
		to, ok2 := s.Get(bone.To)
		if !ok1 || !ok2 {
			continue
		}
		addLine(z, from.X-float64(off.X), from.Y-float64(off.Y), to.X-float64(off.X), to.Y-float64(off.Y), lineWidth)
	}
	for _, kp := range p {
		addCircle(z, kp.X-float64(off.X), kp.Y-float64(off.Y), jointRadius)
	}

	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

// addLine adds a line of width w as a filled quad.
func addLine(z *vector.Rasterizer, x1, y1, x2, y2, w float64) {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*w/2, dx/length*w/2

	z.MoveTo(float32(x1+nx), float32(y1+ny))
	z.LineTo(float32(x2+nx), float32(y2+ny))
	z.LineTo(float32(x2-nx), float32(y2-ny))
	z.LineTo(float32(x1-nx), float32(y1-ny))
	z.ClosePath()
}

// addCircle adds a filled circle approximated by four cubic arcs.
func addCircle(z *vector.Rasterizer, cx, cy, r float64) {
	const k = 0.5522847498 // control point distance for a quarter circle
	kr := k * r
	f := func(v float64) float32 { return float32(v) }

	z.MoveTo(f(cx+r), f(cy))
	z.CubeTo(f(cx+r), f(cy+kr), f(cx+kr), f(cy+r), f(cx), f(cy+r))
	z.CubeTo(f(cx-kr), f(cy+r), f(cx-r), f(cy+kr), f(cx-r), f(cy))
	z.CubeTo(f(cx-r), f(cy-kr), f(cx-kr), f(cy-r), f(cx), f(cy-r))
	z.CubeTo(f(cx+kr), f(cy-r), f(cx+r), f(cy-kr), f(cx+r), f(cy))
	z.ClosePath()
}

// Overlay decodes an image, draws people on a copy of it and returns the copy.
func Overlay(imageData []byte, people []pose.Person) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	DrawPeople(dst, people)
	return dst, nil
}

// Blank draws people on a transparent canvas of the given size.
func Blank(size pose.Size, people []pose.Person) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, max(size.W, 1), max(size.H, 1)))
	DrawPeople(dst, people)
	return dst
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}
