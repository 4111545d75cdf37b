package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEuclidean(t *testing.T) {
	fn, err := GetFunc(Euclidean)
	require.NoError(t, err)

	d, err := fn([]float32{1, 2, 3}, []float32{4, 6, 3})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-6)

	sq, err := squaredEuclidean([]float32{1, 2, 3}, []float32{4, 6, 3})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, sq, 1e-6)

	d, err = fn(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = fn([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestSquaredEuclideanLongVector(t *testing.T) {
	// Longer than the pooled workspace.
	a := make([]float32, 2000)
	b := make([]float32, 2000)
	for i := range a {
		a[i] = 1
	}
	d, err := squaredEuclidean(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 2000.0, d, 1e-3)
}

func TestCosine(t *testing.T) {
	fn, err := GetFunc(Cosine)
	require.NoError(t, err)

	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{2, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := fn(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, d, 1e-6)
		})
	}
}

func TestGetFuncUnknownMetric(t *testing.T) {
	_, err := GetFunc("manhattan")
	assert.Error(t, err)
}

func TestParsePrecision(t *testing.T) {
	p, err := ParsePrecision("")
	require.NoError(t, err)
	assert.Equal(t, Float32, p)

	p, err = ParsePrecision("float16")
	require.NoError(t, err)
	assert.Equal(t, Float16, p)

	_, err = ParsePrecision("int8")
	assert.Error(t, err)
}

func TestFloat16RoundTrip(t *testing.T) {
	in := []float32{0, 0.25, 0.5, 1, 0.333}
	out := FromFloat16(ToFloat16(in))
	require.Len(t, out, len(in))
	for i := range in {
		assert.InDelta(t, in[i], out[i], 1e-3)
	}
	// Exactly representable values survive unchanged.
	assert.Equal(t, float32(0.25), out[1])
}
