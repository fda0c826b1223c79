package domain

import "math"

// Position is the last known 2D location of a user inside a room.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Valid rejects NaN/Inf coordinates; JSON decoding already rejects
// non-numeric input, this catches the values JSON cannot express anyway
// arriving through other paths.
func (p Position) Valid() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
