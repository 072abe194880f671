package ffmpeg

import (
	"context"
	"fmt"

	"github.com/kikiluvv/overlaycut/pkg/util"
)

// TrimOptions defines a destructive trim of a media file. Times are seconds.
type TrimOptions struct {
	Start  float64
	End    float64
	Output string
	// Reencode cuts frame-accurately at the cost of a full encode; the default
	// stream copy snaps to keyframes
	Reencode     bool
	ProgressFunc ProgressFunc
}

// TrimArgs builds the ffmpeg arguments for a trim
func TrimArgs(input string, opts TrimOptions) ([]string, error) {
	duration := opts.End - opts.Start
	if duration <= 0 {
		return nil, fmt.Errorf("invalid trim: end must be after start")
	}
	if opts.Start < 0 {
		return nil, fmt.Errorf("invalid trim: negative start")
	}
	if opts.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}

	args := []string{
		"-ss", util.FormatSeconds(opts.Start),
		"-t", util.FormatSeconds(duration),
		"-i", input,
	}

	if opts.Reencode {
		args = append(args, "-c:v", "libx264", "-crf", "18", "-preset", "fast", "-c:a", "aac")
	} else {
		args = append(args, "-c", "copy", "-avoid_negative_ts", "make_zero")
	}

	return append(args, opts.Output), nil
}

// Trim writes the [Start, End] range of input to opts.Output
func (e *Executor) Trim(ctx context.Context, input string, opts TrimOptions) error {
	args, err := TrimArgs(input, opts)
	if err != nil {
		return err
	}

	e.logger.Info().
		Str("input", input).
		Str("output", opts.Output).
		Float64("start", opts.Start).
		Float64("end", opts.End).
		Bool("reencode", opts.Reencode).
		Msg("trimming media")

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("trim output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("trim failed: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("trim complete")
	return nil
}
