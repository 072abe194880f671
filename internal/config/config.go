package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/guides"
	"github.com/kikiluvv/overlaycut/internal/render"
	"github.com/kikiluvv/overlaycut/internal/timeline"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	WorkDir string `yaml:"work_dir"`
	TempDir string `yaml:"temp_dir"`

	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Export  ExportConfig  `yaml:"export"`
	Editor  EditorConfig  `yaml:"editor"`
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
	// FontFile is handed to drawtext; empty lets fontconfig pick by family
	FontFile string `yaml:"font_file"`
}

type ExportConfig struct {
	DefaultQuality   render.Quality   `yaml:"default_quality"`
	DefaultContainer render.Container `yaml:"default_container"`
	OutputWidth      int              `yaml:"output_width"`
	OutputHeight     int              `yaml:"output_height"`
}

// OutputSize returns the configured output size, zero when unset
func (e ExportConfig) OutputSize() geometry.Size {
	return geometry.Size{Width: float64(e.OutputWidth), Height: float64(e.OutputHeight)}
}

type EditorConfig struct {
	SnapThreshold float64 `yaml:"snap_threshold"`
	GridCell      float64 `yaml:"grid_cell"`
	GridSnap      bool    `yaml:"grid_snap"`
	MinTrimGap    float64 `yaml:"min_trim_gap"`
	PreviewWidth  int     `yaml:"preview_width"`
	PreviewHeight int     `yaml:"preview_height"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type SessionConfig struct {
	DBPath string `yaml:"db_path"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that cannot be repaired
func (c *Config) Validate() error {
	if _, err := render.Candidates(c.Export.DefaultQuality, c.Export.DefaultContainer); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if c.Export.OutputWidth < 0 || c.Export.OutputHeight < 0 {
		return fmt.Errorf("export: output size must not be negative")
	}
	if c.FFmpeg.Threads < 0 {
		return fmt.Errorf("ffmpeg: threads must not be negative")
	}
	return nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns the built-in configuration
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		WorkDir: "./work",
		TempDir: os.TempDir(),
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
		Export: ExportConfig{
			DefaultQuality:   render.QualityMedium,
			DefaultContainer: render.ContainerMP4,
		},
		Editor: EditorConfig{
			SnapThreshold: guides.DefaultThreshold,
			GridCell:      guides.DefaultCellSize,
			MinTrimGap:    timeline.DefaultMinTrimGap,
			PreviewWidth:  960,
			PreviewHeight: 540,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Session: SessionConfig{
			DBPath: filepath.Join(os.Getenv("HOME"), ".overlaycut", "sessions.db"),
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".overlaycut", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
