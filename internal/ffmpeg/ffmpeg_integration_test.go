package ffmpeg_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/overlaycut/internal/ffmpeg"
	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/render"
)

// local helper (cannot use unexported ones from ffmpeg package)
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

// generateClip writes a short test pattern with a sine tone
func generateClip(t *testing.T, seconds int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mp4")
	cmd := exec.Command("ffmpeg", "-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration="+strconv.Itoa(seconds)+":size=320x240:rate=25",
		"-f", "lavfi", "-i", "sine=frequency=1000:duration="+strconv.Itoa(seconds),
		"-pix_fmt", "yuv420p", "-shortest", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not generate test clip: %v: %s", err, out)
	}
	return path
}

// writePNG writes a small solid square to overlay on the clip
func writePNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 255, A: 255}}, image.Point{}, draw.Src)

	path := filepath.Join(t.TempDir(), "square.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIntegration_BackendRender(t *testing.T) {
	skipIfNoFFmpeg(t)

	source := generateClip(t, 4)
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).With().Str("test", "integration_backend").Logger()

	backend := ffmpeg.NewBackend(logger, ffmpeg.Options{Threads: 2})
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := backend.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	info, err := backend.Executor().ProbeVideo(ctx, source)
	if err != nil {
		t.Fatalf("ProbeVideo: %v", err)
	}
	if info.Width != 320 || info.Height != 240 {
		t.Errorf("probe = %dx%d", info.Width, info.Height)
	}

	candidates, _ := render.Candidates(render.QualityLow, render.ContainerMP4)
	out := filepath.Join(t.TempDir(), "out.mp4")
	square := writePNG(t)

	var last float64
	for _, settings := range candidates {
		_, err = backend.Render(ctx, render.Job{
			Source:     source,
			Start:      1,
			Duration:   2,
			OutputSize: geometry.Size{Width: 320, Height: 240},
			OutputPath: out,
			Settings:   settings,
			Instructions: []render.Instruction{{
				Kind:   render.KindImage,
				Enable: render.Window{Start: 0.5, End: 1.5},
				Image: &render.ImageParams{
					Source:   square,
					Position: geometry.Position{X: 10, Y: 10},
					Size:     geometry.Size{Width: 32, Height: 32},
				},
			}},
			Progress: func(f float64) { last = f },
		})
		if !errors.Is(err, render.ErrUnsupportedCodec) {
			break
		}
	}
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if last != 1 {
		t.Errorf("final progress = %v", last)
	}

	rendered, err := backend.Executor().ProbeVideo(ctx, out)
	if err != nil {
		t.Fatalf("probe output: %v", err)
	}
	if d := rendered.Seconds(); d < 1.8 || d > 2.2 {
		t.Errorf("output duration = %v", d)
	}
}

func TestIntegration_Trim(t *testing.T) {
	skipIfNoFFmpeg(t)

	source := generateClip(t, 4)
	exe, err := ffmpeg.New(zerolog.Nop(), ffmpeg.Options{})
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "trimmed.mp4")
	ctx := context.Background()
	if err := exe.Trim(ctx, source, ffmpeg.TrimOptions{Start: 1, End: 3, Output: out, Reencode: true}); err != nil {
		t.Fatalf("Trim: %v", err)
	}

	info, err := exe.ProbeVideo(ctx, out)
	if err != nil {
		t.Fatal(err)
	}
	if d := info.Seconds(); d < 1.8 || d > 2.2 {
		t.Errorf("trimmed duration = %v", d)
	}
}

func TestIntegration_MissingBinary(t *testing.T) {
	backend := ffmpeg.NewBackend(zerolog.Nop(), ffmpeg.Options{BinaryPath: "/nonexistent/ffmpeg"})
	if err := backend.Load(context.Background()); !errors.Is(err, render.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}
