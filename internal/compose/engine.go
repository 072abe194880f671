package compose

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/overlays"
	"github.com/kikiluvv/overlaycut/internal/render"
	"github.com/kikiluvv/overlaycut/internal/timeline"
	"github.com/kikiluvv/overlaycut/pkg/util"
)

// ErrInvalidRequest is returned for requests that cannot be repaired
var ErrInvalidRequest = errors.New("invalid export request")

// Progress milestones
const (
	progressStart     = 0
	progressLoaded    = 5
	progressScratch   = 10
	progressAssets    = 25
	progressEncodeEnd = 99
	progressDone      = 100
)

// Backend is the external encoder. Load must fail before anything is written
// when the backend cannot run.
type Backend interface {
	Load(ctx context.Context) error
	Render(ctx context.Context, job render.Job) (render.Output, error)
}

// Request is one export
type Request struct {
	Source        string            `json:"source" yaml:"source"`
	MediaDuration float64           `json:"mediaDuration" yaml:"media_duration"`
	Overlays      overlays.Snapshot `json:"overlays" yaml:"overlays"`
	TrimStart     float64           `json:"trimStart" yaml:"trim_start"`
	TrimEnd       float64           `json:"trimEnd" yaml:"trim_end"`
	Quality       render.Quality    `json:"quality" yaml:"quality"`
	Container     render.Container  `json:"container" yaml:"container"`
	PreviewSize   geometry.Size     `json:"previewSize" yaml:"preview_size"`
	OutputSize    geometry.Size     `json:"outputSize" yaml:"output_size"`
}

// Trim returns the requested trim window, repaired to the full range when it
// is not a valid sub-range of the media
func (r Request) Trim() timeline.Range {
	full := timeline.Range{Start: 0, End: r.MediaDuration}
	start := math.Max(0, r.TrimStart)
	end := math.Min(r.MediaDuration, r.TrimEnd)
	if math.IsNaN(start) || math.IsNaN(end) || start >= end {
		return full
	}
	return timeline.Range{Start: start, End: end}
}

// Validate rejects requests that cannot be exported
func (r Request) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidRequest)
	}
	if !(r.MediaDuration > 0) {
		return fmt.Errorf("%w: media duration must be positive", ErrInvalidRequest)
	}
	if !r.OutputSize.Valid() {
		return fmt.Errorf("%w: output size must be positive", ErrInvalidRequest)
	}
	if _, err := render.Candidates(r.Quality, r.Container); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Blob is a finished export
type Blob struct {
	Data     []byte
	MimeType string
	Codec    render.Codec
	Notes    []Note
}

// ExportConfig is the configuration an export attempted, reported with failures
type ExportConfig struct {
	Quality    render.Quality   `json:"quality"`
	Container  render.Container `json:"container"`
	Trim       timeline.Range   `json:"trim"`
	OutputSize geometry.Size    `json:"outputSize"`
	Tried      []render.Codec   `json:"tried,omitempty"`
}

// ExportError is a fatal export failure
type ExportError struct {
	Config ExportConfig
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s/%s failed: %v", e.Config.Container, e.Config.Quality, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ProgressFunc receives export progress in percent
type ProgressFunc func(percent int)

// Options configures an Engine
type Options struct {
	// ScratchDir is where per-export temporary directories are created
	ScratchDir string
	FontFile   string
}

// Engine remaps overlays into the trimmed output and drives the backend
type Engine struct {
	logger     zerolog.Logger
	backend    Backend
	opts       Options
	httpClient *http.Client
}

// NewEngine creates an engine
func NewEngine(logger zerolog.Logger, backend Backend, opts Options) *Engine {
	return &Engine{
		logger:     logger.With().Str("component", "compose").Logger(),
		backend:    backend,
		opts:       opts,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Export renders req and returns the encoded bytes. progress, when set, sees a
// non-decreasing sequence ending in 100 only after the output has been read
// back. All scratch files are removed before Export returns.
func (e *Engine) Export(ctx context.Context, req Request, progress ProgressFunc) (Blob, error) {
	if err := req.Validate(); err != nil {
		return Blob{}, err
	}

	trim := req.Trim()
	cfg := ExportConfig{
		Quality:    req.Quality,
		Container:  req.Container,
		Trim:       trim,
		OutputSize: req.OutputSize,
	}
	fail := func(err error) (Blob, error) {
		if ctx.Err() != nil {
			return Blob{}, ctx.Err()
		}
		return Blob{}, &ExportError{Config: cfg, Err: err}
	}

	track := newTracker(progress)
	track.report(progressStart)

	log := e.logger.With().
		Str("source", req.Source).
		Float64("trim_start", trim.Start).
		Float64("trim_end", trim.End).
		Str("quality", req.Quality.String()).
		Str("container", req.Container.String()).
		Logger()
	log.Info().Msg("starting export")

	if err := e.backend.Load(ctx); err != nil {
		return fail(err)
	}
	track.report(progressLoaded)

	scratch, err := util.ScratchDir(e.opts.ScratchDir, "overlaycut-export-*")
	if err != nil {
		return fail(fmt.Errorf("create scratch dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn().Err(err).Str("dir", scratch).Msg("failed to remove scratch dir")
		}
	}()
	track.report(progressScratch)

	// fonts are checked before the registry repairs them to the default
	snap, fontNotes := DropUnsupportedFonts(req.Overlays)
	for _, n := range fontNotes {
		log.Warn().Str("overlay", n.OverlayID).Msg(n.Reason)
	}
	reg := overlays.NewRegistry(nil)
	reg.Load(snap)

	plan := BuildPlan(reg.List(), trim, req.PreviewSize, req.OutputSize)
	instructions, notes, err := e.prepareAssets(ctx, plan.Instructions, scratch)
	if err != nil {
		return fail(err)
	}
	notes = append(append(fontNotes, plan.Notes...), notes...)
	track.report(progressAssets)

	candidates, _ := render.Candidates(req.Quality, req.Container)
	outPath := filepath.Join(scratch, "output"+req.Container.Extension())

	var out render.Output
	for i, settings := range candidates {
		cfg.Tried = append(cfg.Tried, settings.Codec)
		out, err = e.backend.Render(ctx, render.Job{
			Source:       req.Source,
			Start:        trim.Start,
			Duration:     trim.Length(),
			OutputSize:   req.OutputSize,
			OutputPath:   outPath,
			Instructions: instructions,
			Settings:     settings,
			FontFile:     e.opts.FontFile,
			Progress: func(f float64) {
				track.report(progressAssets + int(f*float64(progressEncodeEnd-progressAssets-1)))
			},
		})
		if err == nil {
			break
		}
		if !errors.Is(err, render.ErrUnsupportedCodec) || i == len(candidates)-1 {
			return fail(err)
		}
		log.Warn().Err(err).Str("codec", settings.Codec.String()).Msg("codec rejected, trying fallback")
		util.CleanupFiles(outPath)
	}
	track.report(progressEncodeEnd)

	data, err := os.ReadFile(out.Path)
	if err != nil {
		return fail(fmt.Errorf("read output: %w", err))
	}
	if len(data) == 0 {
		return fail(errors.New("backend produced an empty file"))
	}

	blob := Blob{
		Data:     data,
		MimeType: out.MimeType,
		Codec:    out.Codec,
		Notes:    notes,
	}
	if blob.MimeType == "" {
		blob.MimeType = req.Container.MimeType()
	}
	track.report(progressDone)

	log.Info().
		Int("bytes", len(data)).
		Str("codec", out.Codec.String()).
		Int("notes", len(notes)).
		Msg("export complete")
	return blob, nil
}

// tracker forwards only increasing progress values
type tracker struct {
	mu   sync.Mutex
	last int
	fn   ProgressFunc
}

func newTracker(fn ProgressFunc) *tracker {
	return &tracker{last: -1, fn: fn}
}

func (t *tracker) report(p int) {
	if p > progressDone {
		p = progressDone
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if p <= t.last {
		return
	}
	t.last = p
	if t.fn != nil {
		t.fn(p)
	}
}
