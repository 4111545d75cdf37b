package imaging

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// MaxScale bounds the upscale factor accepted by Scale and EncodePNG.
const MaxScale = 32

// Scale enlarges img by an integer factor using nearest-neighbor sampling.
// A factor of 1 returns img unchanged.
func Scale(img *image.RGBA, factor int) (*image.RGBA, error) {
	if factor < 1 || factor > MaxScale {
		return nil, fmt.Errorf("scale factor %d out of range [1, %d]", factor, MaxScale)
	}
	if factor == 1 {
		return img, nil
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// EncodePNG decodes vec, scales it by factor and writes it to w as a PNG.
func EncodePNG(w io.Writer, vec []float32, factor int) error {
	img, err := Scale(Decode(vec), factor)
	if err != nil {
		return err
	}
	return WritePNG(w, img)
}

// WritePNG writes an already rendered image to w.
func WritePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}
