package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/overlaycut/internal/render"
)

// stderr fragments that mean the requested encoder is missing or unusable
var codecErrors = []string{
	"Unknown encoder",
	"Encoder not found",
	"Error selecting an encoder",
	"Unrecognized option 'crf'",
}

// Backend renders export jobs with the ffmpeg CLI
type Backend struct {
	logger zerolog.Logger
	opts   Options

	mu   sync.Mutex
	exec *Executor
}

// NewBackend creates a backend. Binaries are located lazily by Load.
func NewBackend(logger zerolog.Logger, opts Options) *Backend {
	return &Backend{
		logger: logger.With().Str("component", "ffmpeg-backend").Logger(),
		opts:   opts,
	}
}

// Load locates ffmpeg and checks that it runs
func (b *Backend) Load(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exec != nil {
		return nil
	}

	exec, err := New(b.logger, b.opts)
	if err != nil {
		return fmt.Errorf("%w: %v", render.ErrBackendUnavailable, err)
	}
	version, err := exec.Version(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", render.ErrBackendUnavailable, err)
	}

	b.logger.Debug().Str("version", version).Msg("ffmpeg backend loaded")
	b.exec = exec
	return nil
}

// Executor returns the loaded executor, or nil before Load succeeds
func (b *Backend) Executor() *Executor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exec
}

// Render encodes one job. A rejected encoder is reported as
// render.ErrUnsupportedCodec so the caller can try the next fallback.
func (b *Backend) Render(ctx context.Context, job render.Job) (render.Output, error) {
	exec := b.Executor()
	if exec == nil {
		return render.Output{}, render.ErrBackendUnavailable
	}

	args, err := BuildRenderArgs(job)
	if err != nil {
		return render.Output{}, err
	}

	b.logger.Info().
		Str("source", job.Source).
		Str("output", job.OutputPath).
		Int("instructions", len(job.Instructions)).
		Str("settings", job.Settings.String()).
		Msg("starting render")

	var (
		codecMu    sync.Mutex
		codecError string
	)

	runOpts := RunOptions{
		Args: args,
		ProgressHandler: func(p *Progress) {
			if job.Progress == nil || job.Duration <= 0 {
				return
			}
			frac := p.OutTime.Seconds() / job.Duration
			if p.Done {
				frac = 1
			}
			job.Progress(clamp01(frac))
		},
		LogHandler: func(line string) {
			for _, marker := range codecErrors {
				if strings.Contains(line, marker) {
					codecMu.Lock()
					codecError = line
					codecMu.Unlock()
				}
			}
			b.logger.Debug().Str("ffmpeg", line).Msg("render output")
		},
	}

	if err := exec.Run(ctx, runOpts); err != nil {
		if ctx.Err() != nil {
			return render.Output{}, ctx.Err()
		}
		codecMu.Lock()
		defer codecMu.Unlock()
		if codecError != "" {
			return render.Output{}, fmt.Errorf("%w %s: %s", render.ErrUnsupportedCodec, job.Settings.Codec, codecError)
		}
		return render.Output{}, fmt.Errorf("render failed: %w", err)
	}

	b.logger.Info().Str("output", job.OutputPath).Msg("render completed")
	return render.Output{
		Path:     job.OutputPath,
		MimeType: job.Settings.Container.MimeType(),
		Codec:    job.Settings.Codec,
	}, nil
}

// BuildRenderArgs turns a job into ffmpeg arguments (without the executor's
// global flags)
func BuildRenderArgs(job render.Job) ([]string, error) {
	if job.Source == "" {
		return nil, fmt.Errorf("source path is required")
	}
	if job.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if job.Duration <= 0 {
		return nil, fmt.Errorf("invalid duration %v", job.Duration)
	}

	graph, err := BuildFilterGraph(job.Instructions, GraphOptions{
		OutputSize:      job.OutputSize,
		FontFile:        job.FontFile,
		FirstImageInput: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("build filtergraph: %w", err)
	}

	// input seeking makes output timestamps start at the trim start
	args := []string{
		"-ss", formatFloat(job.Start),
		"-t", formatFloat(job.Duration),
		"-i", job.Source,
	}
	for _, img := range graph.Images {
		args = append(args, "-i", img)
	}

	args = append(args,
		"-filter_complex", graph.Filter,
		"-map", "["+VideoOut+"]",
		"-map", "0:a?",
	)
	args = append(args, codecArgs(job.Settings)...)
	if job.Settings.Container == render.ContainerMP4 {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, "-f", string(job.Settings.Container), job.OutputPath)
	return args, nil
}

func codecArgs(s render.Settings) []string {
	crf := s.Preset.CRF
	args := []string{"-c:v", s.Codec.Video}

	switch s.Codec.Video {
	case "libx264":
		args = append(args, "-crf", strconv.Itoa(crf), "-preset", s.Preset.Speed)
	case "libopenh264":
		args = append(args, "-b:v", bitrateFor(crf))
	case "mpeg4":
		args = append(args, "-q:v", strconv.Itoa(max(2, (crf-13)/2)))
	case "libvpx-vp9":
		args = append(args, "-crf", strconv.Itoa(crf+10), "-b:v", "0", "-deadline", vpxDeadline(s.Preset.Speed))
	case "libvpx":
		args = append(args, "-crf", strconv.Itoa(crf-6), "-b:v", bitrateFor(crf))
	}
	args = append(args, "-pix_fmt", "yuv420p")

	args = append(args, "-c:a", s.Codec.Audio)
	switch s.Codec.Audio {
	case "libopus", "libvorbis":
		args = append(args, "-b:a", "128k")
	case "aac":
		args = append(args, "-b:a", "160k")
	}
	return args
}

// bitrateFor approximates a target bitrate for encoders without CRF support
func bitrateFor(crf int) string {
	switch {
	case crf <= 18:
		return "6M"
	case crf <= 23:
		return "3M"
	default:
		return "1500k"
	}
}

func vpxDeadline(speed string) string {
	switch speed {
	case "veryfast", "ultrafast", "superfast", "faster", "fast":
		return "realtime"
	case "slow", "slower", "veryslow":
		return "best"
	default:
		return "good"
	}
}

func clamp01(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
