package guides

import (
	"math"

	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/overlays"
)

// Defaults used by the editor
const (
	DefaultThreshold = 5.0
	DefaultCellSize  = 20.0
)

// Element is anything on the preview surface that other elements can align to
type Element struct {
	ID       string
	Position geometry.Position
	Size     geometry.Size // zero for unsized elements such as text
}

// Lines holds guide coordinates in priority order: container center, edges,
// then element guides
type Lines struct {
	Vertical   []float64 `json:"vertical"`
	Horizontal []float64 `json:"horizontal"`
}

// Hit reports which guide (index into Lines) captured each axis, -1 for none
type Hit struct {
	Vertical   int `json:"vertical"`
	Horizontal int `json:"horizontal"`
}

// Snapped reports whether either axis snapped
func (h Hit) Snapped() bool {
	return h.Vertical >= 0 || h.Horizontal >= 0
}

// Engine computes alignment guides and snaps positions to them. It holds no
// overlay state.
type Engine struct {
	Threshold float64
	CellSize  float64
}

// NewEngine creates an engine with the given threshold and grid cell; values
// that are not positive fall back to the defaults
func NewEngine(threshold, cellSize float64) Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return Engine{Threshold: threshold, CellSize: cellSize}
}

// Guides returns the candidate lines for a container and the other elements
func (e Engine) Guides(others []Element, container geometry.Size) Lines {
	l := Lines{
		Vertical:   make([]float64, 0, 3+2*len(others)),
		Horizontal: make([]float64, 0, 3+2*len(others)),
	}

	l.Vertical = append(l.Vertical, container.Width/2, 0, container.Width)
	l.Horizontal = append(l.Horizontal, container.Height/2, 0, container.Height)

	for _, el := range others {
		l.Vertical = append(l.Vertical, el.Position.X)
		l.Horizontal = append(l.Horizontal, el.Position.Y)
		if el.Size.Valid() {
			l.Vertical = append(l.Vertical, el.Position.X+el.Size.Width)
			l.Horizontal = append(l.Horizontal, el.Position.Y+el.Size.Height)
		}
	}
	return l
}

// Snap moves each axis of p onto the nearest guide closer than the threshold.
// Ties go to the guide listed first.
func (e Engine) Snap(p geometry.Position, l Lines) (geometry.Position, Hit) {
	hit := Hit{
		Vertical:   nearest(p.X, l.Vertical, e.Threshold),
		Horizontal: nearest(p.Y, l.Horizontal, e.Threshold),
	}
	if hit.Vertical >= 0 {
		p.X = l.Vertical[hit.Vertical]
	}
	if hit.Horizontal >= 0 {
		p.Y = l.Horizontal[hit.Horizontal]
	}
	return p, hit
}

// SnapToGrid rounds each axis to the nearest grid intersection when it lies
// within the threshold
func (e Engine) SnapToGrid(p geometry.Position) geometry.Position {
	if e.CellSize <= 0 {
		return p
	}
	gx := math.Round(p.X/e.CellSize) * e.CellSize
	gy := math.Round(p.Y/e.CellSize) * e.CellSize
	if math.Abs(p.X-gx) < e.Threshold {
		p.X = gx
	}
	if math.Abs(p.Y-gy) < e.Threshold {
		p.Y = gy
	}
	return p
}

func nearest(v float64, lines []float64, threshold float64) int {
	best := -1
	bestDist := threshold
	for i, line := range lines {
		d := math.Abs(v - line)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// Elements converts a snapshot into alignment elements, skipping excludeID.
// Text overlays are unsized.
func Elements(s overlays.Snapshot, excludeID string) []Element {
	out := make([]Element, 0, s.Len())
	for _, img := range s.Image {
		if img.ID == excludeID {
			continue
		}
		out = append(out, Element{ID: img.ID, Position: img.Position, Size: img.Size})
	}
	for _, txt := range s.Text {
		if txt.ID == excludeID {
			continue
		}
		out = append(out, Element{ID: txt.ID, Position: txt.Position})
	}
	return out
}
