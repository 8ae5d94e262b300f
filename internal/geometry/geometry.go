// Package geometry converts caption boxes between coordinate spaces.
//
// The source page exposes geometry two ways depending on rendering mode: a
// CSS preview width (one scalar ratio for both axes) or a canvas element's
// intrinsic width/height (independent per-axis ratios). Callers pick the
// operation matching what the page exposed.
package geometry

import (
	"errors"
	"math"

	"github.com/meme-metadata/harvester/internal/meme"
)

// ErrInvalidGeometry indicates a missing or non-positive source dimension.
var ErrInvalidGeometry = errors.New("invalid geometry: dimension must be positive")

// RawBox is a box measured in rendered-preview or canvas space. Values come
// from CSS pixel lengths and may be fractional.
type RawBox struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// ScaleBox maps b into original-image pixel space with independent per-axis
// scale factors, rounding half away from zero. A non-positive scale on
// either axis degrades to rounding b unscaled rather than failing: the page
// simply did not expose that dimension.
func ScaleBox(b RawBox, scaleX, scaleY float64) meme.Box {
	if scaleX <= 0 || scaleY <= 0 {
		scaleX, scaleY = 1, 1
	}
	return meme.Box{
		Left:   int(math.Round(b.Left * scaleX)),
		Top:    int(math.Round(b.Top * scaleY)),
		Width:  int(math.Round(b.Width * scaleX)),
		Height: int(math.Round(b.Height * scaleY)),
	}
}

// UniformRatio computes the scalar ratio mapping preview space to original
// space when only a preview width is known.
func UniformRatio(originalDim int, previewDim float64) (float64, error) {
	if previewDim <= 0 {
		return 0, ErrInvalidGeometry
	}
	return float64(originalDim) / previewDim, nil
}

// ScaleBoxesUniform applies a single scalar ratio to both axes of every box.
func ScaleBoxesUniform(boxes []RawBox, ratio float64) ([]meme.Box, error) {
	if ratio <= 0 || math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return nil, ErrInvalidGeometry
	}
	scaled := make([]meme.Box, len(boxes))
	for i, b := range boxes {
		scaled[i] = ScaleBox(b, ratio, ratio)
	}
	return scaled, nil
}
