// Package imaging turns digit feature vectors into pixel buffers.
//
// A feature vector is a row-major list of 784 grayscale intensities in [0,1].
// Decode always produces a 28x28 RGBA buffer; scaling that buffer to a display
// size is done separately with nearest-neighbor filtering so the digit keeps
// its blocky look.
package imaging

import (
	"image"
	"image/color"
)

const (
	// Side is the width and height of a digit image in pixels.
	Side = 28
	// Pixels is the number of intensities in a full feature vector.
	Pixels = Side * Side
)

// Blank is the value of every pixel not covered by the input vector.
var Blank = color.RGBA{}

// Decode renders vec into a fresh 28x28 RGBA image.
//
// Only the first min(len(vec), Pixels) entries are used. Each intensity is
// clamped to [0,1], scaled to 0..255 and written to R, G and B with A = 255.
// Pixels past the end of vec keep the Blank (transparent black) value.
func Decode(vec []float32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Side, Side))

	n := min(len(vec), Pixels)
	for i := 0; i < n; i++ {
		v := intensity(vec[i])
		off := i * 4
		img.Pix[off] = v
		img.Pix[off+1] = v
		img.Pix[off+2] = v
		img.Pix[off+3] = 255
	}
	return img
}

// intensity maps a raw value to a channel byte. NaN is treated as 0.
func intensity(v float32) uint8 {
	switch {
	case v != v, v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
