package timeline

import (
	"math"
	"testing"
)

func TestRulerMarkers(t *testing.T) {
	m := RulerMarkers(8)
	if len(m.Major) != 4 {
		t.Fatalf("major = %v", m.Major)
	}
	for _, v := range append(append(m.Major, m.Minor...), m.Micro...) {
		if v < 0.02*8 || v > 0.98*8 {
			t.Errorf("marker %v outside 2-98%%", v)
		}
	}
	for _, minor := range m.Minor {
		for _, major := range m.Major {
			if math.Abs(minor-major) < 8*0.02 {
				t.Errorf("minor %v too close to major %v", minor, major)
			}
		}
	}

	if m := RulerMarkers(0); len(m.Major) != 0 {
		t.Errorf("zero duration markers = %+v", m)
	}
}

func TestFormatClock(t *testing.T) {
	tests := map[float64]string{
		0:     "0:00",
		9.9:   "0:09",
		75:    "1:15",
		600.5: "10:00",
		-3:    "0:00",
	}
	for in, want := range tests {
		if got := FormatClock(in); got != want {
			t.Errorf("FormatClock(%v) = %q, want %q", in, got, want)
		}
	}
}
