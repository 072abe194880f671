package ffmpeg

import (
	"fmt"
	"math"
	"strings"

	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/render"
)

// Output pad of the composed video stream
const VideoOut = "vout"

// Background box drawn behind text
const textBox = "black@0.5"

// EscapeFilterValue escapes a literal for use as an option value inside a
// -filter_complex graph. ffmpeg unescapes twice: once when splitting the graph
// into filters and once when splitting a filter's options, so the value is
// escaped for the option level first and the graph level second.
func EscapeFilterValue(s string) string {
	return escapeWith(escapeWith(s, `\':`), `\'[],;`)
}

func escapeWith(s, special string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GraphOptions controls filtergraph construction
type GraphOptions struct {
	OutputSize geometry.Size
	// FontFile, when set, is used for every text draw instead of a font family
	// lookup
	FontFile string
	// FirstImageInput is the ffmpeg input index of the first image source
	FirstImageInput int
}

// Graph is a serialized filtergraph plus the extra inputs it references, in
// input-index order
type Graph struct {
	Filter string
	Images []string
}

// BuildFilterGraph serializes draw instructions into a -filter_complex graph.
// The source video (input 0) is scaled to the output size, then instructions
// are drawn in order so later instructions land on top.
func BuildFilterGraph(instructions []render.Instruction, opts GraphOptions) (Graph, error) {
	w, h := int(math.Round(opts.OutputSize.Width)), int(math.Round(opts.OutputSize.Height))
	if w <= 0 || h <= 0 {
		return Graph{}, fmt.Errorf("invalid output size %vx%v", opts.OutputSize.Width, opts.OutputSize.Height)
	}
	if opts.FirstImageInput <= 0 {
		opts.FirstImageInput = 1
	}

	var (
		g      Graph
		chains []string
		last   = "base"
	)

	base := NewFilterBuilder().Scale(evenDim(w), evenDim(h)).SAR(1, 1).Build()
	chains = append(chains, fmt.Sprintf("[0:v]%s[%s]", base, last))

	for i, in := range instructions {
		if err := in.Validate(); err != nil {
			return Graph{}, err
		}
		next := fmt.Sprintf("v%d", i+1)

		switch in.Kind {
		case render.KindImage:
			input := opts.FirstImageInput + len(g.Images)
			g.Images = append(g.Images, in.Image.Source)
			scaled := fmt.Sprintf("img%d", len(g.Images))

			sw, sh := int(math.Round(in.Image.Size.Width)), int(math.Round(in.Image.Size.Height))
			chains = append(chains, fmt.Sprintf("[%d:v]%s[%s]",
				input, NewFilterBuilder().Scale(max(sw, 1), max(sh, 1)).Format("rgba").Build(), scaled))

			overlay := NewFilterBuilder().Filter("overlay",
				OptFloat("x", in.Image.Position.X),
				OptFloat("y", in.Image.Position.Y),
				Opt("enable", enableExpr(in.Enable)),
				Opt("eof_action", "repeat"),
			).Build()
			chains = append(chains, fmt.Sprintf("[%s][%s]%s[%s]", last, scaled, overlay, next))

		case render.KindText:
			chains = append(chains, fmt.Sprintf("[%s]%s[%s]", last, drawtext(in, opts.FontFile), next))
		}
		last = next
	}

	// rename the final pad so callers can map a fixed label
	chains = append(chains, fmt.Sprintf("[%s]null[%s]", last, VideoOut))
	g.Filter = strings.Join(chains, ";")
	return g, nil
}

func drawtext(in render.Instruction, fontFile string) string {
	t := in.Text
	opts := []Option{
		Opt("expansion", "none"),
		Opt("text", t.Text),
	}
	if fontFile != "" {
		opts = append(opts, Opt("fontfile", fontFile))
	} else if t.FontFamily != "" {
		opts = append(opts, Opt("font", t.FontFamily))
	}
	opts = append(opts,
		OptFloat("fontsize", t.FontSize),
		Opt("fontcolor", ffmpegColor(t.Color)),
		OptFloat("x", t.Position.X),
		OptFloat("y", t.Position.Y),
		Opt("box", "1"),
		Opt("boxcolor", textBox),
		Opt("enable", enableExpr(in.Enable)),
	)
	return NewFilterBuilder().Filter("drawtext", opts...).Build()
}

func enableExpr(w render.Window) string {
	return fmt.Sprintf("between(t,%s,%s)", formatFloat(w.Start), formatFloat(w.End))
}

// ffmpegColor turns #RRGGBB into the 0xRRGGBB form ffmpeg parses everywhere
func ffmpegColor(c string) string {
	if strings.HasPrefix(c, "#") {
		return "0x" + c[1:]
	}
	if c == "" {
		return "white"
	}
	return c
}

// evenDim rounds up to an even number; yuv420p encoders reject odd sizes
func evenDim(v int) int {
	return v + v%2
}
