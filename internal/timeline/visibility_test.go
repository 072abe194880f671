package timeline

import (
	"testing"

	"github.com/kikiluvv/overlaycut/internal/overlays"
)

func TestIsVisibleInclusive(t *testing.T) {
	b := overlays.Base{Timestamp: 10, Duration: 5}
	tests := []struct {
		t    float64
		want bool
	}{
		{9.999, false},
		{10, true},
		{12, true},
		{15, true},
		{15.001, false},
	}
	for _, tt := range tests {
		if got := IsVisible(b, tt.t); got != tt.want {
			t.Errorf("IsVisible(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestVisibleOrdersByRecency(t *testing.T) {
	reg := overlays.NewRegistry(nil)
	a, _ := reg.AddText(overlays.Text{Base: overlays.Base{ID: "a", Duration: 10}, Text: "a"})
	reg.AddText(overlays.Text{Base: overlays.Base{ID: "b", Duration: 10}, Text: "b"})
	reg.AddText(overlays.Text{Base: overlays.Base{ID: "late", Timestamp: 20, Duration: 1}, Text: "c"})
	reg.AddImage(overlays.Image{Base: overlays.Base{ID: "img", Timestamp: 5, Duration: 1}})

	text := "a2"
	reg.Update(a.ID, overlays.Patch{Text: &text})

	vis := Visible(reg.List(), 5)
	if len(vis.Text) != 2 || vis.Text[0].ID != "a" || vis.Text[1].ID != "b" {
		t.Errorf("text order = %+v", vis.Text)
	}
	if len(vis.Image) != 1 {
		t.Errorf("images = %+v", vis.Image)
	}

	if vis := Visible(reg.List(), 20.5); len(vis.Text) != 1 || vis.Text[0].ID != "late" || len(vis.Image) != 0 {
		t.Errorf("at 20.5: %+v", vis)
	}
}
