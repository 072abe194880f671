package editor

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/overlaycut/internal/compose"
	"github.com/kikiluvv/overlaycut/internal/ffmpeg"
	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/overlays"
	"github.com/kikiluvv/overlaycut/internal/render"
	"github.com/kikiluvv/overlaycut/internal/timeline"
)

type fakeMedia struct {
	duration time.Duration
	trims    []ffmpeg.TrimOptions
	trimErr  error
}

func (f *fakeMedia) ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error) {
	return &ffmpeg.VideoInfo{FilePath: path, Duration: f.duration, Width: 1920, Height: 1080}, nil
}

func (f *fakeMedia) Trim(ctx context.Context, input string, opts ffmpeg.TrimOptions) error {
	f.trims = append(f.trims, opts)
	if f.trimErr != nil {
		return f.trimErr
	}
	return os.WriteFile(opts.Output, []byte("cut"), 0644)
}

func newTestEditor(t *testing.T, media *fakeMedia) *Editor {
	t.Helper()
	e := New(Deps{
		Logger:  zerolog.Nop(),
		Media:   media,
		WorkDir: t.TempDir(),
	})
	e.Resize(geometry.Size{Width: 640, Height: 360})
	if _, err := e.Open(context.Background(), "/videos/in.mp4"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return e
}

func TestOpenResetsState(t *testing.T) {
	media := &fakeMedia{duration: 20 * time.Second}
	e := newTestEditor(t, media)

	if _, err := e.AddText("hello"); err != nil {
		t.Fatalf("AddText failed: %v", err)
	}
	e.SetMode(timeline.ModeTrim)
	e.SetTrim(2, 8)

	if _, err := e.Open(context.Background(), "/videos/other.mp4"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if e.Overlays().Len() != 0 {
		t.Error("overlays not cleared on open")
	}
	st := e.Timeline()
	if st.Duration != 20 || st.TrimStart != 0 || st.TrimEnd != 20 || st.Mode != timeline.ModeScrub {
		t.Errorf("timeline after open = %+v", st)
	}
}

func TestAddTextAtPlayhead(t *testing.T) {
	e := newTestEditor(t, &fakeMedia{duration: 10 * time.Second})
	e.Seek(8)

	txt, err := e.AddText("")
	if err != nil {
		t.Fatalf("AddText failed: %v", err)
	}
	if txt.Timestamp != 8 {
		t.Errorf("Timestamp = %v, want 8", txt.Timestamp)
	}
	if txt.Duration != 2 {
		t.Errorf("Duration = %v, want 2 (clipped to media end)", txt.Duration)
	}
	if txt.Text != overlays.DefaultText {
		t.Errorf("Text = %q", txt.Text)
	}
	if txt.Position != (geometry.Position{X: 320, Y: 180}) {
		t.Errorf("Position = %+v, want preview center", txt.Position)
	}
}

func TestDragOverlaySnapsAndClamps(t *testing.T) {
	e := newTestEditor(t, &fakeMedia{duration: 10 * time.Second})

	img, err := e.AddImage(overlays.AssetRef{URI: "logo.png"})
	if err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}

	// 4px from the left edge snaps to it, 10px from the top does not
	drag, err := e.DragOverlay(img.ID, geometry.Position{X: 4, Y: 10})
	if err != nil {
		t.Fatalf("DragOverlay failed: %v", err)
	}
	if drag.Position != (geometry.Position{X: 0, Y: 10}) {
		t.Errorf("Position = %+v, want {0 10}", drag.Position)
	}
	if drag.Hit.Vertical < 0 || drag.Hit.Horizontal >= 0 {
		t.Errorf("Hit = %+v", drag.Hit)
	}

	// dragged outside the preview stays inside it
	drag, err = e.DragOverlay(img.ID, geometry.Position{X: -50, Y: 1000})
	if err != nil {
		t.Fatalf("DragOverlay failed: %v", err)
	}
	if drag.Position.X != 0 || drag.Position.Y != 360 {
		t.Errorf("Position = %+v, want clamped to {0 360}", drag.Position)
	}

	got, _ := e.registry.Image(img.ID)
	if got.Position != drag.Position {
		t.Errorf("registry position = %+v, want %+v", got.Position, drag.Position)
	}

	if _, err := e.DragOverlay("missing", geometry.Position{}); !errors.Is(err, timeline.ErrUnknownOverlay) {
		t.Errorf("drag missing error = %v", err)
	}
}

func TestCommitTrimRequiresTrimMode(t *testing.T) {
	media := &fakeMedia{duration: 20 * time.Second}
	e := newTestEditor(t, media)

	if _, err := e.CommitTrim(context.Background()); !errors.Is(err, timeline.ErrWrongMode) {
		t.Fatalf("CommitTrim error = %v, want ErrWrongMode", err)
	}
	if len(media.trims) != 0 {
		t.Error("media tool ran outside trim mode")
	}
}

func TestCommitTrimRebasesOverlays(t *testing.T) {
	media := &fakeMedia{duration: 30 * time.Second}
	e := newTestEditor(t, media)

	before, _ := e.AddText("before")
	e.Update(before.ID, overlays.Patch{Timestamp: ptr(1.0), Duration: ptr(2.0)})
	inside, _ := e.AddText("inside")
	e.Update(inside.ID, overlays.Patch{Timestamp: ptr(10.0), Duration: ptr(3.0)})
	straddle, _ := e.AddText("straddle")
	e.Update(straddle.ID, overlays.Patch{Timestamp: ptr(6.0), Duration: ptr(4.0)})

	e.SetMode(timeline.ModeTrim)
	e.SetTrim(8, 20)

	res, err := e.CommitTrim(context.Background())
	if err != nil {
		t.Fatalf("CommitTrim failed: %v", err)
	}

	if len(media.trims) != 1 || media.trims[0].Start != 8 || media.trims[0].End != 20 {
		t.Fatalf("trims = %+v", media.trims)
	}
	if res.Commit.NewDuration != 12 {
		t.Errorf("NewDuration = %v, want 12", res.Commit.NewDuration)
	}
	if len(res.Dropped) != 1 || res.Dropped[0] != before.ID {
		t.Errorf("Dropped = %v, want [%s]", res.Dropped, before.ID)
	}
	if e.Source() != res.Output {
		t.Errorf("Source = %q, want %q", e.Source(), res.Output)
	}
	if filepath.Dir(res.Output) != e.workDir {
		t.Errorf("output %q not in work dir", res.Output)
	}

	st := e.Timeline()
	if st.Duration != 12 || st.Current != 0 || st.Mode != timeline.ModeScrub || st.TrimStart != 0 || st.TrimEnd != 12 {
		t.Errorf("timeline after commit = %+v", st)
	}

	got, _ := e.registry.Text(inside.ID)
	if got.Timestamp != 2 || got.Duration != 3 {
		t.Errorf("inside overlay = [%v +%v], want [2 +3]", got.Timestamp, got.Duration)
	}
	got, _ = e.registry.Text(straddle.ID)
	if got.Timestamp != 0 || got.Duration != 2 {
		t.Errorf("straddling overlay = [%v +%v], want [0 +2]", got.Timestamp, got.Duration)
	}
	if info := e.Info(); info == nil || info.Seconds() != 12 {
		t.Errorf("Info after commit = %+v", info)
	}
}

func TestCommitTrimFailureKeepsState(t *testing.T) {
	media := &fakeMedia{duration: 30 * time.Second, trimErr: errors.New("boom")}
	e := newTestEditor(t, media)

	e.SetMode(timeline.ModeTrim)
	e.SetTrim(5, 10)

	if _, err := e.CommitTrim(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	st := e.Timeline()
	if st.Duration != 30 || st.TrimStart != 5 || st.TrimEnd != 10 || st.Mode != timeline.ModeTrim {
		t.Errorf("timeline changed after failed commit: %+v", st)
	}
	if e.Source() != "/videos/in.mp4" {
		t.Errorf("Source changed to %q", e.Source())
	}
}

func TestExportRequest(t *testing.T) {
	e := newTestEditor(t, &fakeMedia{duration: 10 * time.Second})
	e.AddText("hi")
	e.SetTrim(2, 7)

	req, err := e.ExportRequest(render.QualityHigh, render.ContainerWebM, geometry.Size{})
	if err != nil {
		t.Fatalf("ExportRequest failed: %v", err)
	}
	if req.OutputSize != (geometry.Size{Width: 1920, Height: 1080}) {
		t.Errorf("OutputSize = %+v, want source size", req.OutputSize)
	}
	if req.PreviewSize != (geometry.Size{Width: 640, Height: 360}) {
		t.Errorf("PreviewSize = %+v", req.PreviewSize)
	}
	if req.TrimStart != 2 || req.TrimEnd != 7 || req.MediaDuration != 10 {
		t.Errorf("request trim = [%v, %v] of %v", req.TrimStart, req.TrimEnd, req.MediaDuration)
	}
	if len(req.Overlays.Text) != 1 {
		t.Errorf("overlays = %+v", req.Overlays)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("request invalid: %v", err)
	}

	empty := New(Deps{Logger: zerolog.Nop()})
	if _, err := empty.ExportRequest(render.QualityLow, render.ContainerMP4, geometry.Size{Width: 1, Height: 1}); !errors.Is(err, ErrNoMedia) {
		t.Errorf("ExportRequest without media error = %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	e := newTestEditor(t, &fakeMedia{duration: 10 * time.Second})
	txt, _ := e.AddText("keep")
	e.SetTrim(1, 9)

	st := e.Session()

	other := New(Deps{Logger: zerolog.Nop()})
	other.Restore(st)

	if other.Source() != "/videos/in.mp4" || other.SessionID() != st.ID {
		t.Errorf("restored source %q id %q", other.Source(), other.SessionID())
	}
	if got, ok := other.registry.Text(txt.ID); !ok || got.Text != "keep" {
		t.Errorf("restored overlay = %+v, %v", got, ok)
	}
	if tl := other.Timeline(); tl.TrimStart != 1 || tl.TrimEnd != 9 {
		t.Errorf("restored trim = [%v, %v]", tl.TrimStart, tl.TrimEnd)
	}
}

func TestResizeKeepsExportPosition(t *testing.T) {
	e := newTestEditor(t, &fakeMedia{duration: 10 * time.Second})
	txt, err := e.AddText("centered")
	if err != nil {
		t.Fatalf("AddText failed: %v", err)
	}
	img, _ := e.AddImage(overlays.AssetRef{URI: "/tmp/logo.png"})

	if !e.Resize(geometry.Size{Width: 1280, Height: 720}) {
		t.Fatal("Resize rejected a valid size")
	}
	if got, _ := e.registry.Text(txt.ID); got.Position != (geometry.Position{X: 640, Y: 360}) {
		t.Errorf("text after resize at %v, want preview center", got.Position)
	}
	if e.Resize(geometry.Size{}) {
		t.Error("Resize accepted a zero size")
	}

	output := geometry.Size{Width: 1920, Height: 1080}
	req, err := e.ExportRequest(render.QualityHigh, render.ContainerMP4, output)
	if err != nil {
		t.Fatalf("ExportRequest failed: %v", err)
	}
	plan := compose.BuildPlan(req.Overlays, timeline.Range{Start: 0, End: 10}, req.PreviewSize, req.OutputSize)

	var sawText, sawImage bool
	for _, in := range plan.Instructions {
		switch in.OverlayID {
		case txt.ID:
			sawText = true
			if in.Text.Position != (geometry.Position{X: 960, Y: 540}) {
				t.Errorf("exported text at %v, want {960 540}", in.Text.Position)
			}
			if in.Text.FontSize != overlays.DefaultFontSize*3 {
				t.Errorf("exported font size = %v", in.Text.FontSize)
			}
		case img.ID:
			sawImage = true
			pos, size := in.Image.Position, in.Image.Size
			if !near(pos.X, 660) || !near(pos.Y, 240) || !near(size.Width, 600) || !near(size.Height, 600) {
				t.Errorf("exported image at %v size %v", in.Image.Position, in.Image.Size)
			}
		}
	}
	if !sawText || !sawImage {
		t.Fatalf("plan instructions = %+v", plan.Instructions)
	}
}

func TestRestoreRescalesToCurrentPreview(t *testing.T) {
	e := newTestEditor(t, &fakeMedia{duration: 10 * time.Second})
	txt, _ := e.AddText("moved")

	st := e.Session()
	if st.PreviewSize != (geometry.Size{Width: 640, Height: 360}) {
		t.Fatalf("session preview size = %+v", st.PreviewSize)
	}

	other := New(Deps{Logger: zerolog.Nop(), Surface: geometry.NewSurface(geometry.Size{Width: 320, Height: 180})})
	other.Restore(st)

	got, ok := other.registry.Text(txt.ID)
	if !ok {
		t.Fatal("overlay not restored")
	}
	if got.Position != (geometry.Position{X: 160, Y: 90}) || got.FontSize != overlays.DefaultFontSize/2 {
		t.Errorf("restored text at %v size %v", got.Position, got.FontSize)
	}
}

func ptr[T any](v T) *T { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
