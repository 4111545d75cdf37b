// Package distance provides vector distance functions and precision helpers.
//
// Distances are computed with the Gonum BLAS implementation, which handles
// SIMD dispatch internally. Vectors stored at half precision are widened back
// to float32 before any arithmetic.
package distance

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/blas/gonum"
)

// Metric defines the type of distance calculation to perform.
type Metric string

// Precision defines the data type used for vector storage.
type Precision string

const (
	// Euclidean is the L2 distance.
	Euclidean Metric = "euclidean"
	// Cosine is 1 - cosine similarity. Zero vectors are at distance 1.
	Cosine Metric = "cosine"

	Float32 Precision = "float32"
	Float16 Precision = "float16"
)

// Func computes the distance between two vectors of equal length.
type Func func(v1, v2 []float32) (float64, error)

// ErrLengthMismatch is returned when two vectors differ in length.
var ErrLengthMismatch = errors.New("vectors must have the same length")

var gonumEngine = gonum.Implementation{}

// diffWorkspace holds scratch slices for the Euclidean difference vector.
var diffWorkspace = sync.Pool{
	New: func() interface{} {
		s := make([]float32, 784)
		return &s
	},
}

func squaredEuclidean(v1, v2 []float32) (float64, error) {
	n := len(v1)
	if n != len(v2) {
		return 0, ErrLengthMismatch
	}
	if n == 0 {
		return 0, nil
	}

	diffPtr := diffWorkspace.Get().(*[]float32)
	defer diffWorkspace.Put(diffPtr)
	if cap(*diffPtr) < n {
		*diffPtr = make([]float32, n)
	}
	diff := (*diffPtr)[:n]

	copy(diff, v1)
	gonumEngine.Saxpy(n, -1, v2, 1, diff, 1)
	return float64(gonumEngine.Sdot(n, diff, 1, diff, 1)), nil
}

func euclidean(v1, v2 []float32) (float64, error) {
	sq, err := squaredEuclidean(v1, v2)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(sq), nil
}

func cosine(v1, v2 []float32) (float64, error) {
	n := len(v1)
	if n != len(v2) {
		return 0, ErrLengthMismatch
	}
	if n == 0 {
		return 1, nil
	}

	norm := float64(gonumEngine.Snrm2(n, v1, 1)) * float64(gonumEngine.Snrm2(n, v2, 1))
	if norm == 0 {
		return 1, nil
	}
	dot := float64(gonumEngine.Sdot(n, v1, 1, v2, 1))
	return 1 - math.Max(-1, math.Min(1, dot/norm)), nil
}

var funcs = map[Metric]Func{
	Euclidean: euclidean,
	Cosine:    cosine,
}

// GetFunc returns the distance function for metric.
func GetFunc(metric Metric) (Func, error) {
	fn, ok := funcs[metric]
	if !ok {
		return nil, fmt.Errorf("metric '%s' not supported", metric)
	}
	return fn, nil
}

// ParsePrecision validates a precision name. The empty string means Float32.
func ParsePrecision(s string) (Precision, error) {
	switch Precision(s) {
	case "", Float32:
		return Float32, nil
	case Float16:
		return Float16, nil
	}
	return "", fmt.Errorf("precision '%s' not supported", s)
}
