package geometry

// Surface tracks the preview container size across resizes. Conversions always use
// the last known non-degenerate size, so a collapsed container (0x0 while hidden or
// mid-layout) never produces a division by zero.
type Surface struct {
	size Size
}

// NewSurface creates a surface with an initial size
func NewSurface(initial Size) *Surface {
	s := &Surface{}
	s.Resize(initial)
	return s
}

// Resize records a new container size. Degenerate sizes are ignored.
func (s *Surface) Resize(sz Size) bool {
	if !sz.Valid() {
		return false
	}
	s.size = sz
	return true
}

// Size returns the last known valid size
func (s *Surface) Size() Size {
	return s.size
}

// ToFraction converts pixels to clamped fractions using the last known size
func (s *Surface) ToFraction(p Position) Fraction {
	return ToFraction(p, s.size).Clamp()
}

// ToAbsolute converts fractions to pixels using the last known size
func (s *Surface) ToAbsolute(f Fraction) Position {
	return ToAbsolute(f, s.size)
}
