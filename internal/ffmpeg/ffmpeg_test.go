package ffmpeg

import (
	"os/exec"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/render"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

func TestEscapeFilterValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"a'b:c", `a\\\'b\\:c`},
		{"[x],y;z", `\[x\]\,y\;z`},
		{`a\b`, `a\\\\b`},
		{"100%", "100%"},
		{"héllo: wörld", `héllo\\: wörld`},
	}
	for _, tt := range tests {
		if got := EscapeFilterValue(tt.in); got != tt.want {
			t.Errorf("EscapeFilterValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilterBuilder(t *testing.T) {
	got := NewFilterBuilder().Scale(1920, 1080).SAR(1, 1).Format("rgba").Build()
	want := "scale=1920:1080,setsar=1/1,format=rgba"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFilterBuilderEmpty(t *testing.T) {
	fb := NewFilterBuilder().Scale(0, 1080).Format("")
	if fb.Build() != "" || fb.Len() != 0 {
		t.Errorf("expected empty chain, got %q", fb.Build())
	}
}

func TestFilterBuilderEscapesOptions(t *testing.T) {
	got := NewFilterBuilder().Filter("drawtext", Opt("text", "it's 5:00"), OptFloat("x", 12.5)).Build()
	want := `drawtext=text=it\\\'s 5\\:00:x=12.500`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBuildFilterGraph(t *testing.T) {
	instructions := []render.Instruction{
		{
			OverlayID: "img",
			Kind:      render.KindImage,
			Enable:    render.Window{Start: 2, End: 7},
			Image: &render.ImageParams{
				Source:   "/tmp/scratch/asset-0.png",
				Position: geometry.Position{X: 960, Y: 270},
				Size:     geometry.Size{Width: 192, Height: 108},
			},
		},
		{
			OverlayID: "txt",
			Kind:      render.KindText,
			Enable:    render.Window{Start: 0, End: 3},
			Text: &render.TextParams{
				Text:       "Hi",
				Position:   geometry.Position{X: 10, Y: 20},
				FontSize:   72,
				FontFamily: "Arial",
				Color:      "#FFFFFF",
			},
		},
	}

	g, err := BuildFilterGraph(instructions, GraphOptions{OutputSize: geometry.Size{Width: 1920, Height: 1080}})
	if err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"[0:v]scale=1920:1080,setsar=1/1[base]",
		"[1:v]scale=192:108,format=rgba[img1]",
		`[base][img1]overlay=x=960.000:y=270.000:enable=between(t\,2.000\,7.000):eof_action=repeat[v1]`,
		`[v1]drawtext=expansion=none:text=Hi:font=Arial:fontsize=72.000:fontcolor=0xFFFFFF:x=10.000:y=20.000:box=1:boxcolor=black@0.5:enable=between(t\,0.000\,3.000)[v2]`,
		"[v2]null[vout]",
	}, ";")
	if g.Filter != want {
		t.Errorf("filter mismatch\n got: %s\nwant: %s", g.Filter, want)
	}
	if len(g.Images) != 1 || g.Images[0] != "/tmp/scratch/asset-0.png" {
		t.Errorf("images = %v", g.Images)
	}
}

func TestBuildFilterGraphFontFile(t *testing.T) {
	g, err := BuildFilterGraph([]render.Instruction{{
		Kind:   render.KindText,
		Enable: render.Window{Start: 0, End: 1},
		Text:   &render.TextParams{Text: "x", FontSize: 10, FontFamily: "Arial", Color: "#000000"},
	}}, GraphOptions{OutputSize: geometry.Size{Width: 641, Height: 361}, FontFile: "C:/Fonts/a b.ttf"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(g.Filter, `fontfile=C\\:/Fonts/a b.ttf`) {
		t.Errorf("fontfile not escaped: %s", g.Filter)
	}
	if strings.Contains(g.Filter, "font=Arial") {
		t.Errorf("font family should not be used with a font file: %s", g.Filter)
	}
	if !strings.HasPrefix(g.Filter, "[0:v]scale=642:362") {
		t.Errorf("odd output size not rounded up: %s", g.Filter)
	}
}

func TestBuildFilterGraphRejectsBadInput(t *testing.T) {
	if _, err := BuildFilterGraph(nil, GraphOptions{}); err == nil {
		t.Error("expected error for zero output size")
	}
	_, err := BuildFilterGraph([]render.Instruction{{Kind: render.KindText, Enable: render.Window{End: 1}}},
		GraphOptions{OutputSize: geometry.Size{Width: 10, Height: 10}})
	if err == nil {
		t.Error("expected error for text instruction without payload")
	}
}

func TestBuildRenderArgs(t *testing.T) {
	settings, _ := render.Candidates(render.QualityLow, render.ContainerMP4)
	job := render.Job{
		Source:     "in.mov",
		Start:      8,
		Duration:   12,
		OutputSize: geometry.Size{Width: 1280, Height: 720},
		OutputPath: "/tmp/out.mp4",
		Settings:   settings[0],
	}
	args, err := BuildRenderArgs(job)
	if err != nil {
		t.Fatal(err)
	}

	joined := strings.Join(args, " ")
	if !strings.HasPrefix(joined, "-ss 8.000 -t 12.000 -i in.mov -filter_complex") {
		t.Errorf("input seeking must precede the input: %s", joined)
	}
	for _, want := range []string{"-map [vout]", "-map 0:a?", "-c:v libx264", "-crf 28", "-preset veryfast", "-c:a aac", "-movflags +faststart"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %s", want, joined)
		}
	}
	if args[len(args)-1] != "/tmp/out.mp4" {
		t.Errorf("output must be last: %v", args)
	}

	job.Duration = 0
	if _, err := BuildRenderArgs(job); err == nil {
		t.Error("expected error for zero duration")
	}
}

func TestCodecArgsFallbacks(t *testing.T) {
	webm, _ := render.Candidates(render.QualityHigh, render.ContainerWebM)
	args := codecArgs(webm[0])
	if !slices.Contains(args, "libvpx-vp9") || !slices.Contains(args, "libopus") || !slices.Contains(args, "best") {
		t.Errorf("vp9 args = %v", args)
	}

	mp4, _ := render.Candidates(render.QualityMedium, render.ContainerMP4)
	args = codecArgs(mp4[2])
	if !slices.Contains(args, "-q:v") || slices.Contains(args, "-crf") {
		t.Errorf("mpeg4 args = %v", args)
	}
}

func TestStreamOutput(t *testing.T) {
	input := strings.Join([]string{
		"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':",
		"frame=12",
		"fps=24.0",
		"out_time_us=500000",
		"out_time=00:00:00.500000",
		"speed=2.0x",
		"progress=continue",
		"[libx264 @ 0x1] frame I:1 Avg QP:20",
		"frame=48",
		"out_time_ms=2000000",
		"progress=end",
	}, "\n")

	var got []Progress
	var logs []string
	streamOutput(strings.NewReader(input), func(p *Progress) { got = append(got, *p) }, func(l string) { logs = append(logs, l) })

	if len(got) != 2 {
		t.Fatalf("got %d progress blocks", len(got))
	}
	if got[0].Frame != 12 || got[0].OutTime != 500*time.Millisecond || got[0].Done {
		t.Errorf("first block = %+v", got[0])
	}
	if got[1].OutTime != 2*time.Second || !got[1].Done {
		t.Errorf("second block = %+v", got[1])
	}
	if len(logs) != 2 {
		t.Errorf("logs = %v", logs)
	}
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"format": {"duration": "30.500000", "bit_rate": "1200000"},
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "r_frame_rate": "30/1"},
			{"codec_type": "audio", "codec_name": "aac"}
		]
	}`)
	info, err := parseProbe(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Seconds() != 30.5 || info.Width != 1920 || info.FPS != 30 || !info.HasAudio {
		t.Errorf("info = %+v", info)
	}

	if _, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio"}]}`)); err == nil {
		t.Error("expected error without a video stream")
	}
}

func TestTrimArgs(t *testing.T) {
	args, err := TrimArgs("in.mp4", TrimOptions{Start: 8, End: 20, Output: "out.mp4"})
	if err != nil {
		t.Fatal(err)
	}
	want := "-ss 00:00:08.000 -t 00:00:12.000 -i in.mp4 -c copy -avoid_negative_ts make_zero out.mp4"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if _, err := TrimArgs("in.mp4", TrimOptions{Start: 5, End: 5, Output: "o"}); err == nil {
		t.Error("expected error for empty range")
	}
}

func TestFrameArgs(t *testing.T) {
	args, err := FrameArgs("in.mp4", "frame.png", 61.5, 960, 540)
	if err != nil {
		t.Fatal(err)
	}
	want := "-ss 00:01:01.500 -i in.mp4 -frames:v 1 -vf scale=960:540,setsar=1/1 -an frame.png"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	args, err = FrameArgs("in.mp4", "frame.png", 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if slices.Contains(args, "-vf") {
		t.Errorf("unsized frame should not scale: %v", args)
	}

	if _, err := FrameArgs("in.mp4", "", 1, 10, 10); err == nil {
		t.Error("expected error without output")
	}
}
