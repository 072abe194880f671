package timeline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kikiluvv/overlaycut/internal/overlays"
)

var (
	// ErrWrongMode is returned when an operation is attempted outside the mode that owns it
	ErrWrongMode = errors.New("operation not allowed in current mode")
	// ErrUnknownOverlay is returned by track edits on an id the registry does not hold
	ErrUnknownOverlay = errors.New("unknown overlay")
)

// DefaultMinTrimGap is the shortest trim window the clock allows, in seconds
const DefaultMinTrimGap = 1.0

// Mode is the exclusive editing mode of the timeline
type Mode int

const (
	ModeScrub Mode = iota
	ModeTrim
	ModeOverlay
)

func (m Mode) String() string {
	switch m {
	case ModeScrub:
		return "scrub"
	case ModeTrim:
		return "trim"
	case ModeOverlay:
		return "overlay"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a mode name
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scrub":
		return ModeScrub, nil
	case "trim":
		return ModeTrim, nil
	case "overlay", "overlays":
		return ModeOverlay, nil
	}
	return ModeScrub, fmt.Errorf("unknown timeline mode %q", s)
}

// Range is a trim selection. It only restricts playback; nothing is cut until a
// Commit is produced by ApplyTrim.
type Range struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Length returns End-Start
func (r Range) Length() float64 {
	return r.End - r.Start
}

// Commit describes a destructive trim: the media between Start and End becomes
// the whole media, NewDuration seconds long
type Commit struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	NewDuration float64 `json:"newDuration"`
}

// State is the persistable part of a clock
type State struct {
	Duration  float64 `json:"duration" yaml:"duration"`
	Current   float64 `json:"current" yaml:"current"`
	TrimStart float64 `json:"trimStart" yaml:"trim_start"`
	TrimEnd   float64 `json:"trimEnd" yaml:"trim_end"`
	Mode      Mode    `json:"mode" yaml:"mode"`
}

// Tracks is the slice of the overlay registry the clock needs to edit overlay
// timing in Overlay mode
type Tracks interface {
	Get(id string) (overlays.Base, overlays.Kind, bool)
	Update(id string, p overlays.Patch) (overlays.Kind, bool)
}

// Clock owns playback time, the trim selection and the editing mode. It is not
// safe for concurrent use; the editor serializes access.
type Clock struct {
	duration float64
	current  float64
	trim     Range
	mode     Mode
	playing  bool
	minGap   float64
	history  *History
}

// NewClock creates a clock for media of the given duration, in Scrub mode with
// the full range selected
func NewClock(duration, minGap float64) *Clock {
	if minGap <= 0 {
		minGap = DefaultMinTrimGap
	}
	c := &Clock{minGap: minGap}
	c.reset(duration)
	return c
}

func (c *Clock) reset(duration float64) {
	if math.IsNaN(duration) || duration < 0 {
		duration = 0
	}
	c.duration = duration
	c.current = 0
	c.trim = Range{Start: 0, End: duration}
	c.mode = ModeScrub
	c.playing = false
	c.history = NewHistory(c.trim)
}

// Duration returns the media duration in seconds
func (c *Clock) Duration() float64 { return c.duration }

// Current returns the playhead position in seconds
func (c *Clock) Current() float64 { return c.current }

// Trim returns the current trim selection
func (c *Clock) Trim() Range { return c.trim }

// Mode returns the active editing mode
func (c *Clock) Mode() Mode { return c.mode }

// Playing reports whether playback is running
func (c *Clock) Playing() bool { return c.playing }

// History returns the trim selection history
func (c *Clock) History() *History { return c.history }

// Bounds returns the interval the playhead is confined to in the active mode
func (c *Clock) Bounds() Range {
	if c.mode == ModeTrim {
		return c.trim
	}
	return Range{Start: 0, End: c.duration}
}

// SetMode switches the editing mode. Entering Trim pulls the playhead into the
// trim window.
func (c *Clock) SetMode(m Mode) {
	c.mode = m
	c.current = clamp(c.current, c.Bounds())
}

// Seek moves the playhead, clamped to the active bounds
func (c *Clock) Seek(t float64) float64 {
	c.current = clamp(t, c.Bounds())
	return c.current
}

// Play starts playback. Starting at the end of the bounds rewinds first.
func (c *Clock) Play() {
	b := c.Bounds()
	if c.current >= b.End {
		c.current = b.Start
	}
	c.playing = true
}

// Pause stops playback without moving the playhead
func (c *Clock) Pause() {
	c.playing = false
}

// Tick applies a playback time update. Reaching the end of the bounds stops
// playback: Scrub and Overlay rewind to 0, Trim loops back to the trim start.
// It reports whether playback stopped.
func (c *Clock) Tick(t float64) bool {
	b := c.Bounds()
	if math.IsNaN(t) {
		t = b.Start
	}
	if t >= b.End {
		c.playing = false
		c.current = b.Start
		if c.mode != ModeTrim {
			c.current = 0
		}
		return true
	}
	c.current = clamp(t, b)
	return false
}

func (c *Clock) gap() float64 {
	return math.Min(c.minGap, c.duration)
}

// SetTrim sets both trim handles. Out-of-range values are clamped toward a
// window of at least the minimum gap; start and end are never swapped.
func (c *Clock) SetTrim(start, end float64) Range {
	r := c.clampRange(start, end)
	c.applyRange(r)
	c.history.Push(r)
	return r
}

// SetTrimStart moves the start handle, keeping the end fixed
func (c *Clock) SetTrimStart(start float64) Range {
	r := Range{Start: c.clampStart(start, c.trim.End), End: c.trim.End}
	c.applyRange(r)
	c.history.Push(r)
	return r
}

// SetTrimEnd moves the end handle, keeping the start fixed
func (c *Clock) SetTrimEnd(end float64) Range {
	r := Range{Start: c.trim.Start, End: c.clampEnd(c.trim.Start, end)}
	c.applyRange(r)
	c.history.Push(r)
	return r
}

// UndoTrim restores the previous trim selection
func (c *Clock) UndoTrim() (Range, bool) {
	r, ok := c.history.Undo()
	if ok {
		c.applyRange(r)
	}
	return c.trim, ok
}

// RedoTrim re-applies an undone trim selection
func (c *Clock) RedoTrim() (Range, bool) {
	r, ok := c.history.Redo()
	if ok {
		c.applyRange(r)
	}
	return c.trim, ok
}

func (c *Clock) applyRange(r Range) {
	c.trim = r
	if c.mode == ModeTrim {
		c.current = clamp(c.current, c.trim)
	}
}

func (c *Clock) clampRange(start, end float64) Range {
	s := c.clampStart(start, c.duration)
	return Range{Start: s, End: c.clampEnd(s, end)}
}

func (c *Clock) clampStart(start, end float64) float64 {
	if math.IsNaN(start) {
		start = 0
	}
	return math.Max(0, math.Min(start, end-c.gap()))
}

func (c *Clock) clampEnd(start, end float64) float64 {
	if math.IsNaN(end) {
		end = c.duration
	}
	return math.Min(c.duration, math.Max(end, start+c.gap()))
}

// ApplyTrim commits the trim selection. The selected window becomes the whole
// media, the playhead returns to 0, the mode returns to Scrub and the trim
// selection resets to the new full range.
func (c *Clock) ApplyTrim() (Commit, error) {
	if c.mode != ModeTrim {
		return Commit{}, fmt.Errorf("apply trim in %s mode: %w", c.mode, ErrWrongMode)
	}
	commit := Commit{
		Start:       c.trim.Start,
		End:         c.trim.End,
		NewDuration: c.trim.Length(),
	}
	c.reset(commit.NewDuration)
	return commit, nil
}

// MoveTrack changes an overlay's start time in Overlay mode, keeping its whole
// window inside the media
func (c *Clock) MoveTrack(t Tracks, id string, timestamp float64) (float64, error) {
	if c.mode != ModeOverlay {
		return 0, fmt.Errorf("move track in %s mode: %w", c.mode, ErrWrongMode)
	}
	base, _, ok := t.Get(id)
	if !ok {
		return 0, fmt.Errorf("move track %q: %w", id, ErrUnknownOverlay)
	}
	maxStart := math.Max(0, c.duration-base.Duration)
	ts := math.Max(0, math.Min(timestamp, maxStart))
	if math.IsNaN(timestamp) {
		ts = base.Timestamp
	}
	t.Update(id, overlays.Patch{Timestamp: &ts})
	return ts, nil
}

// ResizeTrack changes an overlay's duration in Overlay mode, never past the end
// of the media
func (c *Clock) ResizeTrack(t Tracks, id string, duration float64) (float64, error) {
	if c.mode != ModeOverlay {
		return 0, fmt.Errorf("resize track in %s mode: %w", c.mode, ErrWrongMode)
	}
	base, _, ok := t.Get(id)
	if !ok {
		return 0, fmt.Errorf("resize track %q: %w", id, ErrUnknownOverlay)
	}
	maxDur := math.Max(overlays.MinDuration, c.duration-base.Timestamp)
	d := math.Max(overlays.MinDuration, math.Min(duration, maxDur))
	if math.IsNaN(duration) {
		d = base.Duration
	}
	t.Update(id, overlays.Patch{Duration: &d})
	return d, nil
}

// State returns the persistable clock state
func (c *Clock) State() State {
	return State{
		Duration:  c.duration,
		Current:   c.current,
		TrimStart: c.trim.Start,
		TrimEnd:   c.trim.End,
		Mode:      c.mode,
	}
}

// Restore loads persisted state. An invalid trim window is repaired to the full
// range rather than rejected.
func (c *Clock) Restore(s State) {
	c.reset(s.Duration)

	valid := !math.IsNaN(s.TrimStart) && !math.IsNaN(s.TrimEnd) &&
		s.TrimStart >= 0 && s.TrimStart < s.TrimEnd && s.TrimEnd <= c.duration
	if valid {
		c.trim = Range{Start: s.TrimStart, End: s.TrimEnd}
		c.history = NewHistory(c.trim)
	}
	if s.Mode >= ModeScrub && s.Mode <= ModeOverlay {
		c.mode = s.Mode
	}
	c.current = clamp(s.Current, c.Bounds())
}

func clamp(t float64, r Range) float64 {
	if math.IsNaN(t) || t < r.Start {
		return r.Start
	}
	if t > r.End {
		return r.End
	}
	return t
}
