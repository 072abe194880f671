package compose

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/overlays"
	"github.com/kikiluvv/overlaycut/internal/render"
	"github.com/kikiluvv/overlaycut/internal/timeline"
)

// Note records an overlay that was left out of, or altered in, an export
type Note struct {
	OverlayID string `json:"overlayId"`
	Reason    string `json:"reason"`
}

// Plan is the ordered, remapped draw list for one export. Image instructions
// still point at the overlay's asset URI until assets are prepared.
type Plan struct {
	Trim         timeline.Range
	Duration     float64
	OutputSize   geometry.Size
	Instructions []render.Instruction
	Notes        []Note
}

// DropUnsupportedFonts removes text overlays that name a font the renderer
// does not offer. Unset fonts are kept and get the default.
func DropUnsupportedFonts(snap overlays.Snapshot) (overlays.Snapshot, []Note) {
	var notes []Note
	kept := make([]overlays.Text, 0, len(snap.Text))
	for _, txt := range snap.Text {
		if txt.FontFamily != "" && !txt.FontFamily.Valid() {
			notes = append(notes, unsupportedFont(txt))
			continue
		}
		kept = append(kept, txt)
	}
	snap.Text = kept
	return snap, notes
}

func unsupportedFont(txt overlays.Text) Note {
	return Note{OverlayID: txt.ID, Reason: "unsupported font " + string(txt.FontFamily)}
}

// RemapWindow moves an overlay window into the time domain of a trim. The
// second result is false when nothing of the overlay is visible inside it.
func RemapWindow(b overlays.Base, trim timeline.Range) (render.Window, bool) {
	length := trim.Length()
	start := b.Timestamp - trim.Start
	end := start + b.Duration

	w := render.Window{
		Start: math.Max(0, start),
		End:   math.Min(length, end),
	}
	if w.End <= 0 || w.Empty() {
		return render.Window{}, false
	}
	return w, true
}

// BuildPlan turns a snapshot into draw instructions for the trimmed output.
// Images come first in insertion order, then text in insertion order, so text
// always lands above images. Positions recorded against preview are rescaled
// to output.
func BuildPlan(snap overlays.Snapshot, trim timeline.Range, preview, output geometry.Size) Plan {
	if !preview.Valid() {
		preview = output
	}
	scale := output.Height / preview.Height

	p := Plan{
		Trim:       trim,
		Duration:   trim.Length(),
		OutputSize: output,
	}

	images := append([]overlays.Image(nil), snap.Image...)
	slices.SortStableFunc(images, func(a, b overlays.Image) int { return cmp.Compare(a.Seq, b.Seq) })
	for _, img := range images {
		w, ok := RemapWindow(img.Base, trim)
		if !ok {
			continue
		}
		if img.Asset.URI == "" {
			p.Notes = append(p.Notes, Note{OverlayID: img.ID, Reason: "image has no asset"})
			continue
		}
		p.Instructions = append(p.Instructions, render.Instruction{
			OverlayID: img.ID,
			Kind:      render.KindImage,
			Enable:    w,
			Image: &render.ImageParams{
				Source:   img.Asset.URI,
				Position: geometry.Rescale(img.Position, preview, output),
				Size:     geometry.RescaleSize(img.Size, preview, output),
			},
		})
	}

	texts := append([]overlays.Text(nil), snap.Text...)
	slices.SortStableFunc(texts, func(a, b overlays.Text) int { return cmp.Compare(a.Seq, b.Seq) })
	for _, txt := range texts {
		w, ok := RemapWindow(txt.Base, trim)
		if !ok {
			continue
		}
		if strings.TrimSpace(txt.Text) == "" {
			p.Notes = append(p.Notes, Note{OverlayID: txt.ID, Reason: "empty text"})
			continue
		}
		family := txt.FontFamily
		if family == "" {
			family = overlays.DefaultFontFamily
		}
		if !family.Valid() {
			p.Notes = append(p.Notes, unsupportedFont(txt))
			continue
		}
		p.Instructions = append(p.Instructions, render.Instruction{
			OverlayID: txt.ID,
			Kind:      render.KindText,
			Enable:    w,
			Text: &render.TextParams{
				Text:       txt.Text,
				Position:   geometry.Rescale(txt.Position, preview, output),
				FontSize:   txt.FontSize * scale,
				FontFamily: string(family),
				Color:      txt.Color,
			},
		})
	}

	return p
}
