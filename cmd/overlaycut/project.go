package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/overlaycut/internal/compose"
	"github.com/kikiluvv/overlaycut/internal/config"
	"github.com/kikiluvv/overlaycut/internal/ffmpeg"
	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/overlays"
)

// loadProject reads a YAML export project. Relative source and image paths
// are resolved against the project file; unset settings come from cfg.
func loadProject(path string, cfg *config.Config) (compose.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return compose.Request{}, err
	}

	var req compose.Request
	if err := yaml.Unmarshal(data, &req); err != nil {
		return compose.Request{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if req.Source == "" {
		return compose.Request{}, fmt.Errorf("%s: source is required", path)
	}

	dir := filepath.Dir(path)
	req.Source = resolvePath(dir, req.Source)
	for i := range req.Overlays.Image {
		req.Overlays.Image[i].Asset.URI = resolveAsset(dir, req.Overlays.Image[i].Asset.URI)
	}

	if req.Quality == "" {
		req.Quality = cfg.Export.DefaultQuality
	}
	if req.Container == "" {
		req.Container = cfg.Export.DefaultContainer
	}
	if !req.PreviewSize.Valid() {
		req.PreviewSize = geometry.Size{Width: float64(cfg.Editor.PreviewWidth), Height: float64(cfg.Editor.PreviewHeight)}
	}
	if !req.OutputSize.Valid() {
		req.OutputSize = cfg.Export.OutputSize()
	}
	// a project without a trim exports everything
	if req.TrimStart == 0 && req.TrimEnd == 0 {
		req.TrimEnd = req.MediaDuration
	}

	// run through a registry so missing ids and bad values are repaired
	reg := overlays.NewRegistry(nil)
	reg.Load(req.Overlays)
	req.Overlays = reg.List()

	return req, nil
}

// fillFromProbe completes a project with the media's real duration and size
func fillFromProbe(req *compose.Request, info *ffmpeg.VideoInfo) {
	if req.MediaDuration <= 0 {
		req.MediaDuration = info.Seconds()
		if req.TrimEnd == 0 {
			req.TrimEnd = req.MediaDuration
		}
	}
	if !req.OutputSize.Valid() {
		req.OutputSize = geometry.Size{Width: float64(info.Width), Height: float64(info.Height)}
	}
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func resolveAsset(dir, uri string) string {
	if uri == "" || strings.HasPrefix(uri, "data:") || strings.Contains(uri, "://") {
		return uri
	}
	return resolvePath(dir, uri)
}

type probeInfo struct {
	Path       string  `yaml:"path"`
	Duration   float64 `yaml:"duration"`
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	FPS        float64 `yaml:"fps"`
	VideoCodec string  `yaml:"video_codec"`
	HasAudio   bool    `yaml:"has_audio"`
	AudioCodec string  `yaml:"audio_codec,omitempty"`
}

func probeSummary(info *ffmpeg.VideoInfo) probeInfo {
	return probeInfo{
		Path:       info.FilePath,
		Duration:   info.Seconds(),
		Width:      info.Width,
		Height:     info.Height,
		FPS:        info.FPS,
		VideoCodec: info.VideoCodec,
		HasAudio:   info.HasAudio,
		AudioCodec: info.AudioCodec,
	}
}
