package ffmpeg

import (
	"context"
	"fmt"

	"github.com/kikiluvv/overlaycut/pkg/util"
)

// FrameArgs builds the arguments that write the frame at `at` seconds to
// output, scaled to width x height
func FrameArgs(input, output string, at float64, width, height int) ([]string, error) {
	if input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if output == "" {
		return nil, fmt.Errorf("output path is required")
	}

	args := []string{
		"-ss", util.FormatSeconds(at),
		"-i", input,
		"-frames:v", "1",
	}
	if width > 0 && height > 0 {
		args = append(args, "-vf", NewFilterBuilder().Scale(width, height).SAR(1, 1).Build())
	}
	return append(args, "-an", output), nil
}

// Frame grabs a single frame for the editor preview
func (e *Executor) Frame(ctx context.Context, input, output string, at float64, width, height int) error {
	args, err := FrameArgs(input, output, at, width, height)
	if err != nil {
		return err
	}

	e.logger.Debug().
		Str("input", input).
		Float64("at", at).
		Msg("grabbing preview frame")

	return e.Run(ctx, RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("frame")
		},
	})
}
