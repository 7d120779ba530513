// Package gesture turns multi-touch pointer input into the drag/zoom transform
// of a single overlay image.
package gesture

import "math"

// Vector2 is a 2D point or displacement in screen pixels.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vector2) Sub(o Vector2) Vector2 {
	return Vector2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Dist returns the Euclidean distance between v and o.
func (v Vector2) Dist(o Vector2) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Touch is one active pointer in screen coordinates.
type Touch struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pos returns the touch position as a vector.
func (t Touch) Pos() Vector2 {
	return Vector2{X: t.X, Y: t.Y}
}

// clamp restricts a value to a given range.
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
