package timeline

import (
	"fmt"
	"math"
)

// Markers are ruler tick positions in seconds
type Markers struct {
	Major []float64 `json:"major"`
	Minor []float64 `json:"minor"`
	Micro []float64 `json:"micro"`
}

// RulerMarkers spreads major, minor and micro ticks across 2-98% of the
// duration. Smaller ticks too close to a larger one are dropped.
func RulerMarkers(duration float64) Markers {
	if duration <= 0 {
		return Markers{}
	}

	major := 6
	switch {
	case duration <= 10:
		major = 4
	case duration <= 60:
		major = 6
	case duration <= 300:
		major = 5
	}

	spread := func(count int) []float64 {
		out := make([]float64, count)
		for i := range out {
			out[i] = (0.02 + 0.96*float64(i+1)/float64(count+1)) * duration
		}
		return out
	}

	m := Markers{Major: spread(major)}
	m.Minor = without(spread(major*2), m.Major, duration*0.02)
	m.Micro = without(spread(major*4), append(append([]float64{}, m.Major...), m.Minor...), duration*0.01)
	return m
}

func without(ticks, larger []float64, minDist float64) []float64 {
	out := ticks[:0]
	for _, t := range ticks {
		keep := true
		for _, l := range larger {
			if math.Abs(t-l) < minDist {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, t)
		}
	}
	return out
}

// FormatClock formats seconds as m:ss for timeline labels
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
