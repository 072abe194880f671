package gui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/pkg/util"
)

// FrameGrabber extracts a still of the source video for the preview background
type FrameGrabber interface {
	Frame(ctx context.Context, input, output string, at float64, width, height int) error
}

type frameRequest struct {
	source string
	at     float64
}

// frameLoader keeps at most one grab in flight. Requests made while busy
// collapse into the latest one.
type frameLoader struct {
	grab    FrameGrabber
	dir     string
	size    geometry.Size
	logger  zerolog.Logger
	onFrame func(path string)

	mu      sync.Mutex
	busy    bool
	pending *frameRequest
	last    frameRequest
	seq     int
	// written frames, newest last; the two newest may still be on screen
	written []string
}

func newFrameLoader(grab FrameGrabber, tempDir string, size geometry.Size, logger zerolog.Logger, onFrame func(string)) (*frameLoader, error) {
	dir, err := util.ScratchDir(tempDir, "overlaycut-frames-*")
	if err != nil {
		return nil, err
	}
	return &frameLoader{grab: grab, dir: dir, size: size, logger: logger, onFrame: onFrame}, nil
}

func (f *frameLoader) request(source string, at float64) {
	req := frameRequest{source: source, at: at}

	f.mu.Lock()
	defer f.mu.Unlock()
	if req == f.last {
		return
	}
	f.last = req
	if f.busy {
		f.pending = &req
		return
	}
	f.busy = true
	go f.run(req)
}

func (f *frameLoader) run(req frameRequest) {
	for {
		f.mu.Lock()
		f.seq++
		out := filepath.Join(f.dir, fmt.Sprintf("frame-%d.png", f.seq))
		f.mu.Unlock()

		err := f.grab.Frame(context.Background(), req.source, out, req.at, int(f.size.Width), int(f.size.Height))
		if err != nil {
			f.logger.Debug().Err(err).Float64("at", req.at).Msg("preview frame failed")
		} else {
			f.onFrame(out)
		}

		f.mu.Lock()
		if err == nil {
			f.written = append(f.written, out)
			if n := len(f.written); n > 2 {
				util.CleanupFiles(f.written[:n-2]...)
				f.written = append(f.written[:0], f.written[n-2:]...)
			}
		}
		if f.pending == nil {
			f.busy = false
			f.mu.Unlock()
			return
		}
		req = *f.pending
		f.pending = nil
		f.mu.Unlock()
	}
}

func (f *frameLoader) close() {
	os.RemoveAll(f.dir)
}
