package session

import (
	"time"

	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/overlays"
	"github.com/kikiluvv/overlaycut/internal/timeline"
)

// State is a saved editing session: the media being edited, its overlays and
// the timeline selection. Overlay positions are relative to PreviewSize.
type State struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	Timeline    timeline.State    `json:"timeline"`
	Overlays    overlays.Snapshot `json:"overlays"`
	PreviewSize geometry.Size     `json:"previewSize"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Repair returns a copy of s with invalid data fixed the same way the editor
// would fix it: bad trim windows become the full range, overlay durations,
// timestamps, colors and fonts are repaired, and duplicate ids replaced.
func (s State) Repair() State {
	clock := timeline.NewClock(s.Timeline.Duration, timeline.DefaultMinTrimGap)
	clock.Restore(s.Timeline)
	s.Timeline = clock.State()

	reg := overlays.NewRegistry(nil)
	reg.Load(s.Overlays)
	s.Overlays = reg.List()
	return s
}
