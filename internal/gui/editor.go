package gui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/overlaycut/internal/editor"
	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/overlays"
	"github.com/kikiluvv/overlaycut/internal/pipeline"
	"github.com/kikiluvv/overlaycut/internal/render"
	"github.com/kikiluvv/overlaycut/internal/session"
	"github.com/kikiluvv/overlaycut/internal/timeline"
)

const playbackStep = 100 * time.Millisecond

// SessionSaver persists the session when the window closes
type SessionSaver interface {
	Save(ctx context.Context, st session.State) error
}

// Options configures the editor window
type Options struct {
	Logger      zerolog.Logger
	PreviewSize geometry.Size
	OutputSize  geometry.Size
	Quality     render.Quality
	Container   render.Container
	Sessions    SessionSaver
	// Frames, when set, paints the video under the overlays
	Frames      FrameGrabber
	TempDir     string
}

type window struct {
	ed      *editor.Editor
	exports *pipeline.Manager
	opts    Options
	logger  zerolog.Logger

	win      fyne.Window
	preview  *preview
	slider   *widget.Slider
	clock    *widget.Label
	trim     *widget.Label
	ruler    *widget.Label
	mode     *widget.Select
	overlays *widget.List
	rows     []overlayRow
	progress *widget.ProgressBar
	status   *widget.Label
	frames   *frameLoader

	syncing bool
	stop    chan struct{}
}

type overlayRow struct {
	id    string
	label string
}

// RunGUI opens the editor window and blocks until it is closed
func RunGUI(ed *editor.Editor, exports *pipeline.Manager, opts Options) {
	myApp := app.NewWithID("overlaycut")
	w := &window{
		ed:      ed,
		exports: exports,
		opts:    opts,
		logger:  opts.Logger.With().Str("component", "gui").Logger(),
		win:     myApp.NewWindow("overlaycut"),
	}
	w.win.Resize(fyne.NewSize(float32(opts.PreviewSize.Width)+360, float32(opts.PreviewSize.Height)+260))
	w.win.SetContent(w.build())
	w.win.SetOnClosed(w.closed)
	w.sync()
	w.win.ShowAndRun()
}

func (w *window) build() fyne.CanvasObject {
	w.preview = newPreview(w.ed, w.opts.PreviewSize, w.sync)
	if w.opts.Frames != nil {
		loader, err := newFrameLoader(w.opts.Frames, w.opts.TempDir, w.opts.PreviewSize, w.logger, func(path string) {
			fyne.Do(func() { w.preview.setFrame(path) })
		})
		if err != nil {
			w.logger.Warn().Err(err).Msg("preview frames disabled")
		} else {
			w.frames = loader
		}
	}

	w.clock = widget.NewLabel("0:00 / 0:00")
	w.trim = widget.NewLabel("")
	w.ruler = widget.NewLabel("")
	w.status = widget.NewLabel("No video loaded")
	w.progress = widget.NewProgressBar()

	w.slider = widget.NewSlider(0, 1)
	w.slider.Step = 0.01
	w.slider.OnChanged = func(v float64) {
		if w.syncing {
			return
		}
		w.ed.Seek(v)
		w.sync()
	}

	w.mode = widget.NewSelect([]string{"scrub", "trim", "overlay"}, func(s string) {
		if w.syncing {
			return
		}
		m, err := timeline.ParseMode(s)
		if err != nil {
			return
		}
		w.ed.SetMode(m)
		w.sync()
	})

	transport := container.NewHBox(
		widget.NewButton("Open", w.openVideo),
		widget.NewButton("Play", w.play),
		widget.NewButton("Pause", w.pause),
		w.mode,
		w.clock,
	)

	trimBar := container.NewHBox(
		widget.NewButton("Mark Start", func() {
			w.ed.SetTrimStart(w.ed.Timeline().Current)
			w.sync()
		}),
		widget.NewButton("Mark End", func() {
			w.ed.SetTrimEnd(w.ed.Timeline().Current)
			w.sync()
		}),
		widget.NewButton("Undo", func() {
			w.ed.UndoTrim()
			w.sync()
		}),
		widget.NewButton("Redo", func() {
			w.ed.RedoTrim()
			w.sync()
		}),
		widget.NewButton("Apply Trim", w.applyTrim),
		w.trim,
	)

	return container.NewBorder(
		container.NewVBox(transport, w.slider, w.ruler, trimBar),
		container.NewVBox(w.exportBar(), w.progress, w.status),
		nil,
		w.sidebar(),
		w.preview.object(),
	)
}

func (w *window) sidebar() fyne.CanvasObject {
	text := widget.NewEntry()
	text.SetPlaceHolder(overlays.DefaultText)

	w.overlays = widget.NewList(
		func() int { return len(w.rows) },
		func() fyne.CanvasObject {
			return container.NewBorder(nil, nil, nil, widget.NewButton("Remove", nil), widget.NewLabel(""))
		},
		func(i widget.ListItemID, obj fyne.CanvasObject) {
			row := w.rows[i]
			c := obj.(*fyne.Container)
			c.Objects[0].(*widget.Label).SetText(row.label)
			c.Objects[1].(*widget.Button).OnTapped = func() {
				w.ed.Remove(row.id)
				w.sync()
			}
		},
	)

	addText := widget.NewButton("Add Text", func() {
		if _, err := w.ed.AddText(text.Text); err != nil {
			dialog.ShowError(err, w.win)
			return
		}
		text.SetText("")
		w.sync()
	})
	addImage := widget.NewButton("Add Image", w.openImage)

	return container.NewBorder(
		container.NewVBox(text, container.NewGridWithColumns(2, addText, addImage)),
		nil, nil, nil,
		w.overlays,
	)
}

func (w *window) exportBar() fyne.CanvasObject {
	quality := widget.NewSelect([]string{"low", "medium", "high"}, func(s string) {
		if q, err := render.ParseQuality(s); err == nil {
			w.opts.Quality = q
		}
	})
	quality.SetSelected(w.opts.Quality.String())

	format := widget.NewSelect([]string{"mp4", "webm"}, func(s string) {
		if c, err := render.ParseContainer(s); err == nil {
			w.opts.Container = c
		}
	})
	format.SetSelected(w.opts.Container.String())

	return container.NewHBox(
		widget.NewLabel("Quality"), quality,
		widget.NewLabel("Format"), format,
		widget.NewButton("Export", w.export),
		widget.NewButton("Cancel", func() {
			if job := w.exports.Active(); job != nil {
				go job.Cancel()
			}
		}),
	)
}

// sync copies editor state into the widgets
func (w *window) sync() {
	w.syncing = true
	defer func() { w.syncing = false }()

	st := w.ed.Timeline()
	w.slider.Max = max(st.Duration, 0.01)
	w.slider.SetValue(st.Current)
	w.mode.SetSelected(st.Mode.String())
	w.clock.SetText(fmt.Sprintf("%s / %s", timeline.FormatClock(st.Current), timeline.FormatClock(st.Duration)))
	w.trim.SetText(fmt.Sprintf("Trim %s - %s", timeline.FormatClock(st.TrimStart), timeline.FormatClock(st.TrimEnd)))
	w.ruler.SetText(rulerText(timeline.RulerMarkers(st.Duration)))

	all := w.ed.Overlays()
	w.rows = w.rows[:0]
	for _, t := range all.Text {
		w.rows = append(w.rows, overlayRow{id: t.ID, label: fmt.Sprintf("T %q %s+%.1fs", t.Text, timeline.FormatClock(t.Timestamp), t.Duration)})
	}
	for _, img := range all.Image {
		w.rows = append(w.rows, overlayRow{id: img.ID, label: fmt.Sprintf("I %s %s+%.1fs", shortName(img.Asset.URI), timeline.FormatClock(img.Timestamp), img.Duration)})
	}
	w.overlays.Refresh()
	w.preview.refresh()

	if src := w.ed.Source(); w.frames != nil && src != "" {
		w.frames.request(src, st.Current)
	}
}

func rulerText(m timeline.Markers) string {
	labels := make([]string, 0, len(m.Major))
	for _, t := range m.Major {
		labels = append(labels, timeline.FormatClock(t))
	}
	return strings.Join(labels, "   ")
}

func shortName(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 && i < len(uri)-1 {
		return uri[i+1:]
	}
	if len(uri) > 24 {
		return uri[:24] + "..."
	}
	return uri
}

func (w *window) openVideo() {
	fd := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, w.win)
			return
		}
		if ur == nil {
			return
		}
		path := ur.URI().Path()
		ur.Close()

		w.status.SetText("Probing " + path)
		go func() {
			info, err := w.ed.Open(context.Background(), path)
			fyne.Do(func() {
				if err != nil {
					w.status.SetText("Failed to open video")
					dialog.ShowError(err, w.win)
					return
				}
				w.status.SetText(fmt.Sprintf("Loaded %s (%dx%d, %.1fs)", path, info.Width, info.Height, info.Seconds()))
				w.sync()
			})
		}()
	}, w.win)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".mp4", ".mov", ".mkv", ".webm"}))
	fd.Show()
}

func (w *window) openImage() {
	fd := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
		if err != nil || ur == nil {
			return
		}
		uri := ur.URI().String()
		ur.Close()
		if _, err := w.ed.AddImage(overlays.AssetRef{URI: uri}); err != nil {
			dialog.ShowError(err, w.win)
			return
		}
		w.sync()
	}, w.win)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}))
	fd.Show()
}

func (w *window) play() {
	if w.stop != nil {
		return
	}
	w.ed.Play()
	stop := make(chan struct{})
	w.stop = stop

	go func() {
		ticker := time.NewTicker(playbackStep)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st := w.ed.Timeline()
				stopped := w.ed.Tick(st.Current + playbackStep.Seconds())
				fyne.Do(func() {
					if stopped {
						w.pause()
					}
					w.sync()
				})
				if stopped {
					return
				}
			}
		}
	}()
}

func (w *window) pause() {
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
	w.ed.Pause()
	w.sync()
}

func (w *window) applyTrim() {
	w.status.SetText("Cutting trim selection...")
	go func() {
		res, err := w.ed.CommitTrim(context.Background())
		fyne.Do(func() {
			if err != nil {
				w.status.SetText("Trim failed")
				dialog.ShowError(err, w.win)
				return
			}
			msg := fmt.Sprintf("Trimmed to %.1fs", res.Commit.NewDuration)
			if len(res.Dropped) > 0 {
				msg += fmt.Sprintf(", removed %d overlays outside the selection", len(res.Dropped))
			}
			w.status.SetText(msg)
			w.sync()
		})
	}()
}

func (w *window) export() {
	req, err := w.ed.ExportRequest(w.opts.Quality, w.opts.Container, w.opts.OutputSize)
	if err != nil {
		dialog.ShowError(err, w.win)
		return
	}
	job, err := w.exports.Start(context.Background(), pipeline.StartRequest{Export: req})
	if err != nil {
		dialog.ShowError(err, w.win)
		return
	}

	w.progress.SetValue(0)
	w.status.SetText("Exporting...")
	job.Subscribe(func(ev pipeline.Event) {
		fyne.Do(func() { w.handleEvent(job, ev) })
	})
}

func (w *window) handleEvent(job *pipeline.Job, ev pipeline.Event) {
	switch e := ev.(type) {
	case pipeline.ProgressEvent:
		w.progress.SetValue(float64(e.Percent) / 100)
	case pipeline.CompleteEvent:
		w.progress.SetValue(1)
		msg := fmt.Sprintf("Export finished (%d KB)", e.Size/1024)
		for _, n := range e.Notes {
			msg += fmt.Sprintf("\n%s: %s", n.OverlayID, n.Reason)
		}
		w.status.SetText(msg)
		w.saveExport(job)
	case pipeline.ErrorEvent:
		w.status.SetText("Export failed")
		dialog.ShowError(fmt.Errorf("%s", e.Reason), w.win)
	case pipeline.CancelledEvent:
		w.progress.SetValue(0)
		w.status.SetText("Export cancelled")
	}
}

func (w *window) saveExport(job *pipeline.Job) {
	blob, err, done := job.Result()
	if !done || err != nil {
		return
	}
	fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, w.win)
			return
		}
		if uc == nil {
			return
		}
		defer uc.Close()
		if _, err := uc.Write(blob.Data); err != nil {
			dialog.ShowError(err, w.win)
			return
		}
		w.logger.Info().Str("path", uc.URI().Path()).Int("bytes", len(blob.Data)).Msg("export saved")
	}, w.win)
	fd.SetFileName("export" + job.Request.Container.Extension())
	fd.Show()
}

func (w *window) closed() {
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
	w.exports.Close()
	if w.frames != nil {
		w.frames.close()
	}

	if w.opts.Sessions == nil || w.ed.Source() == "" {
		return
	}
	st := w.ed.Session()
	if err := w.opts.Sessions.Save(context.Background(), st); err != nil {
		w.logger.Warn().Err(err).Msg("failed to save session")
		return
	}
	w.logger.Info().Str("session", st.ID).Msg("session saved")
}
