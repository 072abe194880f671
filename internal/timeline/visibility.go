package timeline

import (
	"sort"

	"github.com/kikiluvv/overlaycut/internal/overlays"
)

// IsVisible reports whether an overlay is shown at time t. Both ends of the
// window are inclusive.
func IsVisible(b overlays.Base, t float64) bool {
	return t >= b.Timestamp && t <= b.Timestamp+b.Duration
}

// Visible returns the overlays shown at time t. Each kind is filtered on its own
// and ordered by most recent update first, so index 0 is the top layer.
func Visible(s overlays.Snapshot, t float64) overlays.Snapshot {
	var out overlays.Snapshot
	for _, txt := range s.Text {
		if IsVisible(txt.Base, t) {
			out.Text = append(out.Text, txt)
		}
	}
	for _, img := range s.Image {
		if IsVisible(img.Base, t) {
			out.Image = append(out.Image, img)
		}
	}
	sort.SliceStable(out.Text, func(i, j int) bool { return out.Text[i].Touched > out.Text[j].Touched })
	sort.SliceStable(out.Image, func(i, j int) bool { return out.Image[i].Touched > out.Image[j].Touched })
	return out
}
