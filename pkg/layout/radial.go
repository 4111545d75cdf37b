// Package layout places neighbor thumbnails around the focal image.
package layout

import "math"

// DefaultRadius is the ring radius, in percent of the square viewport.
const DefaultRadius = 42.0

// Position is the center of an item, as percentages of the viewport.
type Position struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

// Radial returns n evenly spaced positions on a circle centered at 50/50.
// Item 0 sits at the top and the rest follow clockwise.
func Radial(n int, radius float64) []Position {
	if n <= 0 {
		return []Position{}
	}

	positions := make([]Position, n)
	angleStep := 2 * math.Pi / float64(n)
	for i := range positions {
		angle := float64(i) * angleStep
		positions[i] = Position{
			Top:  50 - radius*math.Cos(angle),
			Left: 50 + radius*math.Sin(angle),
		}
	}
	return positions
}
