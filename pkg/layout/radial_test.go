package layout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRadialEmpty(t *testing.T) {
	assert.Empty(t, Radial(0, DefaultRadius))
	assert.Empty(t, Radial(-1, DefaultRadius))
}

func TestRadialFourPoints(t *testing.T) {
	got := Radial(4, DefaultRadius)
	want := []Position{
		{Top: 8, Left: 50},
		{Top: 50, Left: 92},
		{Top: 92, Left: 50},
		{Top: 50, Left: 8},
	}
	require.Len(t, got, 4)
	for i := range want {
		assert.InDelta(t, want[i].Top, got[i].Top, 1e-9, "top of %d", i)
		assert.InDelta(t, want[i].Left, got[i].Left, 1e-9, "left of %d", i)
	}
}

func TestRadialSinglePointAtTop(t *testing.T) {
	got := Radial(1, DefaultRadius)
	require.Len(t, got, 1)
	assert.InDelta(t, 8, got[0].Top, 1e-9)
	assert.InDelta(t, 50, got[0].Left, 1e-9)
}

func TestRadialEvenSpacing(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 16} {
		got := Radial(n, DefaultRadius)
		require.Len(t, got, n)

		for i, p := range got {
			dy := 50 - p.Top
			dx := p.Left - 50
			assert.InDelta(t, DefaultRadius, math.Hypot(dx, dy), 1e-9, "n=%d i=%d off the ring", n, i)

			// Angle measured clockwise from the top.
			angle := math.Atan2(dx, dy)
			if angle < 0 {
				angle += 2 * math.Pi
			}
			want := 2 * math.Pi * float64(i) / float64(n)
			assert.InDelta(t, want, angle, 1e-9, "n=%d i=%d", n, i)
		}
	}
}

func TestRadialIsPure(t *testing.T) {
	assert.Equal(t, Radial(16, DefaultRadius), Radial(16, DefaultRadius))
}

func TestRadialCustomRadius(t *testing.T) {
	got := Radial(2, 30)
	assert.InDelta(t, 20, got[0].Top, 1e-9)
	assert.InDelta(t, 80, got[1].Top, 1e-9)
}
