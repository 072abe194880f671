package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFormatSeconds(t *testing.T) {
	tests := map[float64]string{
		0:       "00:00:00.000",
		8:       "00:00:08.000",
		61.5:    "00:01:01.500",
		3725.25: "01:02:05.250",
		59.9996: "00:01:00.000",
		-1:      "00:00:00.000",
	}
	for in, want := range tests {
		if got := FormatSeconds(in); got != want {
			t.Errorf("FormatSeconds(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"45.5", 45.5, false},
		{"1:30", 90, false},
		{"01:02:05.25", 3725.25, false},
		{"", 0, true},
		{"1:2:3:4", 0, true},
		{"abc", 0, true},
		{"-5", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFrameRate(t *testing.T) {
	if got := ParseFrameRate("30000/1001"); got < 29.97 || got > 29.98 {
		t.Errorf("ParseFrameRate = %v", got)
	}
	if got := ParseFrameRate("25/0"); got != 0 {
		t.Errorf("ParseFrameRate(25/0) = %v", got)
	}
}

func TestScratchDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested")
	dir, err := ScratchDir(root, "job-*")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(dir) != root {
		t.Errorf("scratch dir %s not under %s", dir, root)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Error(err)
	}
}

func TestReplaceExtension(t *testing.T) {
	if got := ReplaceExtension("/a/b/clip.mov", ".mp4"); got != "/a/b/clip.mp4" {
		t.Errorf("got %s", got)
	}
}
