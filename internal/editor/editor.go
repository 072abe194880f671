package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/overlaycut/internal/compose"
	"github.com/kikiluvv/overlaycut/internal/ffmpeg"
	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/guides"
	"github.com/kikiluvv/overlaycut/internal/overlays"
	"github.com/kikiluvv/overlaycut/internal/render"
	"github.com/kikiluvv/overlaycut/internal/session"
	"github.com/kikiluvv/overlaycut/internal/timeline"
	"github.com/kikiluvv/overlaycut/pkg/util"
)

var (
	// ErrNoMedia is returned by operations that need a loaded video
	ErrNoMedia = errors.New("no media loaded")
	// ErrTrimChanged is returned when the selection moved while a trim was cut
	ErrTrimChanged = errors.New("trim selection changed during commit")
)

// Media is the external tool the editor uses to inspect and cut video
type Media interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	Trim(ctx context.Context, input string, opts ffmpeg.TrimOptions) error
}

// Deps are the collaborators an Editor is built from. Zero values are replaced
// with defaults.
type Deps struct {
	Logger   zerolog.Logger
	Registry *overlays.Registry
	Clock    *timeline.Clock
	Guides   guides.Engine
	Surface  *geometry.Surface
	Media    Media
	// WorkDir receives destructively trimmed copies of the source
	WorkDir    string
	MinTrimGap float64
	// GridSnap snaps to the grid when no guide captured an axis
	GridSnap bool
}

// Editor is the state container for one editing session. All methods are safe
// for concurrent use.
type Editor struct {
	mu sync.Mutex

	logger   zerolog.Logger
	registry *overlays.Registry
	clock    *timeline.Clock
	guides   guides.Engine
	surface  *geometry.Surface
	media    Media
	workDir  string
	gridSnap bool

	sessionID string
	source    string
	info      *ffmpeg.VideoInfo
}

// New builds an editor from its dependencies
func New(deps Deps) *Editor {
	if deps.Registry == nil {
		deps.Registry = overlays.NewRegistry(nil)
	}
	if deps.MinTrimGap <= 0 {
		deps.MinTrimGap = timeline.DefaultMinTrimGap
	}
	if deps.Clock == nil {
		deps.Clock = timeline.NewClock(0, deps.MinTrimGap)
	}
	if deps.Guides == (guides.Engine{}) {
		deps.Guides = guides.NewEngine(0, 0)
	}
	if deps.Surface == nil {
		deps.Surface = geometry.NewSurface(geometry.Size{})
	}
	return &Editor{
		logger:    deps.Logger.With().Str("component", "editor").Logger(),
		registry:  deps.Registry,
		clock:     deps.Clock,
		guides:    deps.Guides,
		surface:   deps.Surface,
		media:     deps.Media,
		workDir:   deps.WorkDir,
		gridSnap:  deps.GridSnap,
		sessionID: uuid.New().String(),
	}
}

// Open loads a video, replacing the current session
func (e *Editor) Open(ctx context.Context, path string) (*ffmpeg.VideoInfo, error) {
	if e.media == nil {
		return nil, fmt.Errorf("open %s: no media tool configured", path)
	}
	info, err := e.media.ProbeVideo(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.source = path
	e.info = info
	e.sessionID = uuid.New().String()
	e.registry.Clear()
	e.clock.Restore(timeline.State{Duration: info.Seconds(), TrimEnd: info.Seconds()})

	e.logger.Info().
		Str("path", path).
		Float64("duration", info.Seconds()).
		Int("width", info.Width).
		Int("height", info.Height).
		Msg("media opened")
	return info, nil
}

// Source returns the path of the video being edited
func (e *Editor) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

// Info returns the probe result of the current video, or nil
func (e *Editor) Info() *ffmpeg.VideoInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info
}

// SessionID identifies the current session for persistence
func (e *Editor) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Resize records the preview surface size and rescales every overlay so it
// keeps its place relative to the frame. Zero sizes are ignored.
func (e *Editor) Resize(size geometry.Size) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.surface.Size()
	if !e.surface.Resize(size) {
		return false
	}
	e.registry.Rescale(old, size)
	return true
}

// PreviewSize returns the last known preview surface size
func (e *Editor) PreviewSize() geometry.Size {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.surface.Size()
}

// AddText creates a text overlay at the playhead, centered on the preview
func (e *Editor) AddText(text string) (overlays.Text, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := overlays.NewText(text, e.surface.Size())
	t.Base = e.placeAtPlayhead(t.Base)
	return e.registry.AddText(t)
}

// AddImage creates an image overlay at the playhead, centered on the preview
func (e *Editor) AddImage(asset overlays.AssetRef) (overlays.Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	img := overlays.NewImage(asset, e.surface.Size())
	img.Base = e.placeAtPlayhead(img.Base)
	return e.registry.AddImage(img)
}

func (e *Editor) placeAtPlayhead(b overlays.Base) overlays.Base {
	b.Timestamp = e.clock.Current()
	if remaining := e.clock.Duration() - b.Timestamp; remaining > 0 && b.Duration > remaining {
		b.Duration = math.Max(overlays.MinDuration, remaining)
	}
	return b
}

// Update applies a partial update to an overlay
func (e *Editor) Update(id string, p overlays.Patch) (overlays.Kind, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Update(id, p)
}

// Remove deletes an overlay
func (e *Editor) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Remove(id)
}

// Overlays returns a snapshot of every overlay
func (e *Editor) Overlays() overlays.Snapshot {
	return e.registry.List()
}

// Drag is the result of moving an overlay on the preview
type Drag struct {
	Position geometry.Position `json:"position"`
	Guides   guides.Lines      `json:"guides"`
	Hit      guides.Hit        `json:"hit"`
}

// DragOverlay moves an overlay to p, keeping it inside the preview and
// snapping it to nearby guides
func (e *Editor) DragOverlay(id string, p geometry.Position) (Drag, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, _, ok := e.registry.Get(id); !ok {
		return Drag{}, fmt.Errorf("drag %q: %w", id, timeline.ErrUnknownOverlay)
	}

	container := e.surface.Size()
	if container.Valid() {
		p = e.surface.ToAbsolute(e.surface.ToFraction(p))
	}

	lines := e.guides.Guides(guides.Elements(e.registry.List(), id), container)
	snapped, hit := e.guides.Snap(p, lines)
	if e.gridSnap {
		grid := e.guides.SnapToGrid(snapped)
		if hit.Vertical < 0 {
			snapped.X = grid.X
		}
		if hit.Horizontal < 0 {
			snapped.Y = grid.Y
		}
	}

	e.registry.Update(id, overlays.Patch{Position: &snapped})
	return Drag{Position: snapped, Guides: lines, Hit: hit}, nil
}

// Visible returns the overlays shown at time t, top-most first
func (e *Editor) Visible(t float64) overlays.Snapshot {
	return timeline.Visible(e.registry.List(), t)
}

// VisibleNow returns the overlays shown at the playhead
func (e *Editor) VisibleNow() overlays.Snapshot {
	e.mu.Lock()
	t := e.clock.Current()
	e.mu.Unlock()
	return e.Visible(t)
}

// Timeline returns the clock state
func (e *Editor) Timeline() timeline.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.State()
}

// Playing reports whether playback is running
func (e *Editor) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Playing()
}

// SetMode switches the timeline mode
func (e *Editor) SetMode(m timeline.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.SetMode(m)
}

// Seek moves the playhead, clamped into the active bounds
func (e *Editor) Seek(t float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Seek(t)
}

// Play starts playback
func (e *Editor) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Play()
}

// Pause stops playback
func (e *Editor) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Pause()
}

// Tick advances playback to t. It returns false once playback stopped.
func (e *Editor) Tick(t float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Tick(t)
}

// SetTrim restricts playback to [start, end]
func (e *Editor) SetTrim(start, end float64) timeline.Range {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.SetTrim(start, end)
}

// SetTrimStart moves the start handle
func (e *Editor) SetTrimStart(start float64) timeline.Range {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.SetTrimStart(start)
}

// SetTrimEnd moves the end handle
func (e *Editor) SetTrimEnd(end float64) timeline.Range {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.SetTrimEnd(end)
}

// UndoTrim restores the previous trim selection
func (e *Editor) UndoTrim() (timeline.Range, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.UndoTrim()
}

// RedoTrim reapplies an undone trim selection
func (e *Editor) RedoTrim() (timeline.Range, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.RedoTrim()
}

// MoveTrack changes an overlay's start time in Overlay mode
func (e *Editor) MoveTrack(id string, ts float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.MoveTrack(e.registry, id, ts)
}

// ResizeTrack changes an overlay's duration in Overlay mode
func (e *Editor) ResizeTrack(id string, dur float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.ResizeTrack(e.registry, id, dur)
}

// TrimResult describes a committed trim
type TrimResult struct {
	Commit  timeline.Commit `json:"commit"`
	Output  string          `json:"output"`
	Dropped []string        `json:"dropped,omitempty"`
}

// CommitTrim cuts the selected range out of the source with the media tool,
// makes the cut file the new source and shifts overlays onto the new time
// base. Overlays left entirely outside the kept range are removed.
func (e *Editor) CommitTrim(ctx context.Context) (TrimResult, error) {
	e.mu.Lock()
	if e.source == "" || e.media == nil {
		e.mu.Unlock()
		return TrimResult{}, ErrNoMedia
	}
	if e.clock.Mode() != timeline.ModeTrim {
		mode := e.clock.Mode()
		e.mu.Unlock()
		return TrimResult{}, fmt.Errorf("commit trim in %s mode: %w", mode, timeline.ErrWrongMode)
	}
	source := e.source
	selection := e.clock.Trim()
	e.mu.Unlock()

	output := e.trimmedPath(source)
	log := e.logger.With().
		Str("source", source).
		Float64("start", selection.Start).
		Float64("end", selection.End).
		Logger()
	log.Info().Msg("cutting trim selection")

	err := e.media.Trim(ctx, source, ffmpeg.TrimOptions{
		Start:  selection.Start,
		End:    selection.End,
		Output: output,
	})
	if err != nil {
		util.CleanupFiles(output)
		return TrimResult{}, fmt.Errorf("commit trim: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.source != source || e.clock.Trim() != selection || e.clock.Mode() != timeline.ModeTrim {
		util.CleanupFiles(output)
		return TrimResult{}, ErrTrimChanged
	}

	commit, err := e.clock.ApplyTrim()
	if err != nil {
		util.CleanupFiles(output)
		return TrimResult{}, err
	}
	dropped := e.registry.Rebase(commit.Start, commit.NewDuration)
	e.source = output
	if e.info != nil {
		info := *e.info
		info.FilePath = output
		info.Duration = time.Duration(commit.NewDuration * float64(time.Second))
		e.info = &info
	}

	log.Info().
		Str("output", output).
		Float64("duration", commit.NewDuration).
		Int("dropped", len(dropped)).
		Msg("trim committed")
	return TrimResult{Commit: commit, Output: output, Dropped: dropped}, nil
}

func (e *Editor) trimmedPath(source string) string {
	dir := e.workDir
	if dir == "" {
		dir = filepath.Dir(source)
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(dir, fmt.Sprintf("%s-trim-%s%s", base, uuid.New().String()[:8], filepath.Ext(source)))
}

// ExportRequest builds an export request from the current state
func (e *Editor) ExportRequest(q render.Quality, c render.Container, output geometry.Size) (compose.Request, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.source == "" {
		return compose.Request{}, ErrNoMedia
	}
	if !output.Valid() && e.info != nil {
		output = geometry.Size{Width: float64(e.info.Width), Height: float64(e.info.Height)}
	}

	trim := e.clock.Trim()
	return compose.Request{
		Source:        e.source,
		MediaDuration: e.clock.Duration(),
		Overlays:      e.registry.List(),
		TrimStart:     trim.Start,
		TrimEnd:       trim.End,
		Quality:       q,
		Container:     c,
		PreviewSize:   e.surface.Size(),
		OutputSize:    output,
	}, nil
}

// Session captures the editor state for persistence
func (e *Editor) Session() session.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return session.State{
		ID:          e.sessionID,
		Source:      e.source,
		Timeline:    e.clock.State(),
		Overlays:    e.registry.List(),
		PreviewSize: e.surface.Size(),
	}
}

// Restore replaces the editor state with a saved session. Invalid data is
// repaired on the way in.
func (e *Editor) Restore(st session.State) {
	st = st.Repair()

	e.mu.Lock()
	defer e.mu.Unlock()

	if st.ID != "" {
		e.sessionID = st.ID
	}
	e.source = st.Source
	e.info = nil
	e.clock.Restore(st.Timeline)
	e.registry.Load(st.Overlays)
	// positions were saved against the session's preview size
	e.registry.Rescale(st.PreviewSize, e.surface.Size())
}
