package gui

import (
	"image/color"
	"testing"

	"github.com/kikiluvv/overlaycut/internal/timeline"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.Color
	}{
		{"#FF8000", color.NRGBA{R: 0xff, G: 0x80, B: 0x00, A: 0xff}},
		{"#00ff7f", color.NRGBA{R: 0x00, G: 0xff, B: 0x7f, A: 0xff}},
		{"red", color.White},
		{"#FFF", color.White},
		{"", color.White},
	}

	for _, tt := range tests {
		if got := parseHexColor(tt.in); got != tt.want {
			t.Errorf("parseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		uri  string
		path string
		ok   bool
	}{
		{"file:///tmp/logo.png", "/tmp/logo.png", true},
		{"/tmp/logo.png", "/tmp/logo.png", true},
		{"https://example.com/logo.png", "", false},
		{"data:image/png;base64,AAAA", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		path, ok := localPath(tt.uri)
		if path != tt.path || ok != tt.ok {
			t.Errorf("localPath(%q) = %q, %v; want %q, %v", tt.uri, path, ok, tt.path, tt.ok)
		}
	}
}

func TestShortName(t *testing.T) {
	if got := shortName("file:///home/me/logo.png"); got != "logo.png" {
		t.Errorf("shortName = %q", got)
	}
	if got := shortName("abcdefghijklmnopqrstuvwxyz"); got != "abcdefghijklmnopqrstuvwx..." {
		t.Errorf("shortName = %q", got)
	}
}

func TestRulerText(t *testing.T) {
	got := rulerText(timeline.Markers{Major: []float64{0, 65}})
	if got != "0:00   1:05" {
		t.Errorf("rulerText = %q", got)
	}
}
