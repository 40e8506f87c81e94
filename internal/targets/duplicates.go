package targets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"os"

	"golang.org/x/image/draw"
)

// DefaultDuplicateThreshold is the largest hash distance reported as a duplicate.
const DefaultDuplicateThreshold = 6

// Duplicate is a pair of target images that look nearly the same.
type Duplicate struct {
	A, B     Image
	Distance int
}

// DifferenceHash computes a 64-bit difference hash: the image is scaled to
// 9x8 gray pixels and each bit records whether a pixel is brighter than its
// right neighbour.
func DifferenceHash(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}

	small := image.NewGray(image.Rect(0, 0, 9, 8))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var hash uint64
	for y := range 8 {
		for x := range 8 {
			hash <<= 1
			if small.GrayAt(x, y).Y > small.GrayAt(x+1, y).Y {
				hash |= 1
			}
		}
	}
	return hash, nil
}

// HashDistance is the number of differing bits of two hashes.
func HashDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// FindDuplicates hashes every image and returns the pairs within threshold of
// each other. Only images of the same player count are compared since only
// those can be drawn in the same game. Unreadable images are returned as
// errors next to the pairs found among the rest.
func FindDuplicates(images []Image, threshold int) ([]Duplicate, []error) {
	type hashed struct {
		img  Image
		hash uint64
	}
	var all []hashed
	var errs []error
	for _, img := range images {
		data, err := os.ReadFile(img.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", img.Rel, err))
			continue
		}
		h, err := DifferenceHash(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", img.Rel, err))
			continue
		}
		all = append(all, hashed{img, h})
	}

	var dups []Duplicate
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if all[i].img.Players != all[j].img.Players {
				continue
			}
			if d := HashDistance(all[i].hash, all[j].hash); d <= threshold {
				dups = append(dups, Duplicate{A: all[i].img, B: all[j].img, Distance: d})
			}
		}
	}
	return dups, errs
}
