package imaging

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(n int, v float32) []float32 {
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = v
	}
	return vec
}

func TestDecodeAllZero(t *testing.T) {
	img := Decode(filled(Pixels, 0))
	require.Equal(t, Side, img.Bounds().Dx())
	require.Equal(t, Side, img.Bounds().Dy())

	for i := 0; i < Pixels; i++ {
		px := img.Pix[i*4 : i*4+4]
		assert.Equal(t, []uint8{0, 0, 0, 255}, []uint8(px), "pixel %d", i)
	}
}

func TestDecodeAllOne(t *testing.T) {
	img := Decode(filled(Pixels, 1))
	for i := 0; i < Pixels; i++ {
		px := img.Pix[i*4 : i*4+4]
		assert.Equal(t, []uint8{255, 255, 255, 255}, []uint8(px), "pixel %d", i)
	}
}

func TestDecodeClampsOutOfRange(t *testing.T) {
	vec := []float32{-3, 0.5, 7}
	img := Decode(vec)

	assert.Equal(t, uint8(0), img.Pix[0])
	assert.Equal(t, uint8(128), img.Pix[4])
	assert.Equal(t, uint8(255), img.Pix[8])
	for i := 0; i < len(vec); i++ {
		assert.Equal(t, uint8(255), img.Pix[i*4+3])
	}
}

func TestDecodeShortVectorLeavesBlank(t *testing.T) {
	img := Decode(filled(10, 1))
	require.Len(t, img.Pix, Pixels*4)

	for i := 10; i < Pixels; i++ {
		px := img.Pix[i*4 : i*4+4]
		assert.Equal(t, []uint8{Blank.R, Blank.G, Blank.B, Blank.A}, []uint8(px), "pixel %d", i)
	}
}

func TestDecodeIgnoresExtraValues(t *testing.T) {
	img := Decode(filled(Pixels+50, 1))
	assert.Len(t, img.Pix, Pixels*4)
}

func TestDecodeIsDeterministic(t *testing.T) {
	vec := make([]float32, Pixels)
	for i := range vec {
		vec[i] = float32(i%17) / 16
	}
	assert.Equal(t, Decode(vec).Pix, Decode(vec).Pix)
}

func TestScaleNearestNeighbor(t *testing.T) {
	vec := make([]float32, Pixels)
	vec[0] = 1

	big, err := Scale(Decode(vec), 4)
	require.NoError(t, err)
	require.Equal(t, Side*4, big.Bounds().Dx())

	// The top-left source pixel becomes a solid 4x4 block with no smoothing.
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, uint8(255), big.RGBAAt(x, y).R)
		}
	}
	assert.Equal(t, uint8(0), big.RGBAAt(4, 0).R)
	assert.Equal(t, uint8(255), big.RGBAAt(4, 0).A)
}

func TestScaleRejectsBadFactor(t *testing.T) {
	_, err := Scale(Decode(nil), 0)
	assert.Error(t, err)
	_, err = Scale(Decode(nil), MaxScale+1)
	assert.Error(t, err)
}

func TestEncodePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, filled(Pixels, 1), 2))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, Side*2, img.Bounds().Dx())
	r, g, b, a := img.At(3, 3).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff, 0xffff}, []uint32{r, g, b, a})
}
