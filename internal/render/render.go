package render

import (
	"errors"
	"fmt"

	"github.com/kikiluvv/overlaycut/internal/geometry"
)

var (
	// ErrBackendUnavailable is returned when the rendering backend cannot be loaded
	ErrBackendUnavailable = errors.New("rendering backend unavailable")
	// ErrUnsupportedCodec is returned when the backend rejects a codec; callers
	// may retry with the next fallback
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// Kind is the type of a draw instruction
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Window is an enable window in output-relative seconds, both ends inclusive
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Empty reports whether the window covers no time
func (w Window) Empty() bool {
	return w.End <= w.Start
}

// TextParams describes a text draw in output pixels
type TextParams struct {
	Text       string            `json:"text"`
	Position   geometry.Position `json:"position"`
	FontSize   float64           `json:"fontSize"`
	FontFamily string            `json:"fontFamily"`
	Color      string            `json:"color"`
}

// ImageParams describes an image draw in output pixels. Source is a local file
// the backend can read.
type ImageParams struct {
	Source   string            `json:"source"`
	Position geometry.Position `json:"position"`
	Size     geometry.Size     `json:"size"`
}

// Instruction is one timed draw. Exactly one of Text or Image is set, matching Kind.
type Instruction struct {
	OverlayID string       `json:"overlayId"`
	Kind      Kind         `json:"kind"`
	Enable    Window       `json:"enable"`
	Text      *TextParams  `json:"text,omitempty"`
	Image     *ImageParams `json:"image,omitempty"`
}

// Validate checks that the payload matches the kind
func (in Instruction) Validate() error {
	switch in.Kind {
	case KindText:
		if in.Text == nil || in.Image != nil {
			return fmt.Errorf("text instruction %q: payload mismatch", in.OverlayID)
		}
	case KindImage:
		if in.Image == nil || in.Text != nil {
			return fmt.Errorf("image instruction %q: payload mismatch", in.OverlayID)
		}
	default:
		return fmt.Errorf("instruction %q: unknown kind %q", in.OverlayID, in.Kind)
	}
	if in.Enable.Empty() {
		return fmt.Errorf("instruction %q: empty enable window", in.OverlayID)
	}
	return nil
}

// Job is everything the backend needs for one encode
type Job struct {
	// Source media and the input range to read from it
	Source   string
	Start    float64
	Duration float64

	OutputSize   geometry.Size
	OutputPath   string
	Instructions []Instruction
	Settings     Settings
	FontFile     string

	// Progress receives the encode fraction in [0,1]
	Progress func(fraction float64)
}

// Output is the result of a successful encode
type Output struct {
	Path     string
	MimeType string
	Codec    Codec
}
