package geometry

import "math"

// Position is a point in absolute pixel units relative to a container's top-left corner
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Fraction is a position expressed as a fraction (0..1) of the container width/height.
// Fractions survive container resizes unchanged.
type Fraction struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a width/height pair in pixels
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Valid reports whether both dimensions are positive
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Center returns the midpoint of a container of this size
func (s Size) Center() Position {
	return Position{X: s.Width / 2, Y: s.Height / 2}
}

// Clamp limits both components to [0,1]
func (f Fraction) Clamp() Fraction {
	return Fraction{X: clamp01(f.X), Y: clamp01(f.Y)}
}

// ToFraction converts an absolute position into container-relative fractions.
// A degenerate container yields the zero fraction.
func ToFraction(p Position, s Size) Fraction {
	if !s.Valid() {
		return Fraction{}
	}
	return Fraction{X: p.X / s.Width, Y: p.Y / s.Height}
}

// ToAbsolute converts fractions back to pixels for the given container.
// A degenerate container yields the zero position.
func ToAbsolute(f Fraction, s Size) Position {
	if !s.Valid() {
		return Position{}
	}
	return Position{X: f.X * s.Width, Y: f.Y * s.Height}
}

// Rescale maps a position recorded against one container onto another
func Rescale(p Position, from, to Size) Position {
	return ToAbsolute(ToFraction(p, from), to)
}

// RescaleSize maps a size recorded against one container onto another
func RescaleSize(sz, from, to Size) Size {
	if !from.Valid() || !to.Valid() {
		return Size{}
	}
	return Size{
		Width:  sz.Width / from.Width * to.Width,
		Height: sz.Height / from.Height * to.Height,
	}
}

// Round returns the position rounded to whole pixels
func (p Position) Round() Position {
	return Position{X: math.Round(p.X), Y: math.Round(p.Y)}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
