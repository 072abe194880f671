package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kikiluvv/overlaycut/internal/render"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Export.DefaultQuality != render.QualityMedium || cfg.Export.DefaultContainer != render.ContainerMP4 {
		t.Errorf("export defaults = %+v", cfg.Export)
	}
	if cfg.Editor.SnapThreshold != 5 || cfg.Editor.GridCell != 20 || cfg.Editor.MinTrimGap != 1 {
		t.Errorf("editor defaults = %+v", cfg.Editor)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
ffmpeg:
  binary_path: /opt/ffmpeg/bin/ffmpeg
  font_file: /usr/share/fonts/DejaVuSans.ttf
export:
  default_quality: high
  default_container: webm
  output_width: 1280
  output_height: 720
editor:
  snap_threshold: 8
server:
  addr: ":9000"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FFmpeg.BinaryPath != "/opt/ffmpeg/bin/ffmpeg" || cfg.FFmpeg.ProbePath != "ffprobe" {
		t.Errorf("ffmpeg = %+v", cfg.FFmpeg)
	}
	if cfg.Export.DefaultQuality != render.QualityHigh || cfg.Export.DefaultContainer != render.ContainerWebM {
		t.Errorf("export = %+v", cfg.Export)
	}
	if size := cfg.Export.OutputSize(); size.Width != 1280 || size.Height != 720 {
		t.Errorf("OutputSize() = %+v", size)
	}
	if cfg.Editor.SnapThreshold != 8 || cfg.Editor.GridCell != 20 {
		t.Errorf("editor = %+v", cfg.Editor)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
}

func TestLoadRejectsUnknownEnum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("export:\n  default_container: avi\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown container")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Export.DefaultQuality = render.QualityLow
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Export.DefaultQuality != render.QualityLow {
		t.Errorf("quality = %q, want low", loaded.Export.DefaultQuality)
	}
}

func TestContext(t *testing.T) {
	cfg := Default()
	cfg.WorkDir = "/tmp/x"
	ctx := WithConfig(context.Background(), cfg)
	if FromContext(ctx).WorkDir != "/tmp/x" {
		t.Error("config not stored in context")
	}
	if FromContext(context.Background()) == nil {
		t.Error("FromContext without config returned nil")
	}
}
