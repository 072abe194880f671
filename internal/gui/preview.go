package gui

import (
	"image/color"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/kikiluvv/overlaycut/internal/editor"
	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/overlays"
)

var (
	previewBackground = color.NRGBA{R: 0x18, G: 0x18, B: 0x18, A: 0xff}
	guideColor        = color.NRGBA{R: 0xff, G: 0x40, B: 0x80, A: 0xcc}
	placeholderColor  = color.NRGBA{R: 0x60, G: 0x60, B: 0x90, A: 0xaa}
)

// preview draws the overlays visible at the playhead on a fixed-size surface
// and lets the user drag them
type preview struct {
	ed      *editor.Editor
	size    fyne.Size
	root    *fyne.Container
	onMoved func()
	// still of the source at the playhead, empty until one is grabbed
	frame string
	// guide lines currently appended to root
	guides int
}

func newPreview(ed *editor.Editor, size geometry.Size, onMoved func()) *preview {
	p := &preview{
		ed:      ed,
		size:    fyne.NewSize(float32(size.Width), float32(size.Height)),
		root:    container.NewWithoutLayout(),
		onMoved: onMoved,
	}
	ed.Resize(size)
	p.refresh()
	return p
}

func (p *preview) object() fyne.CanvasObject {
	return container.NewCenter(container.NewGridWrap(p.size, p.root))
}

// refresh rebuilds the layer stack for the current playhead. Lower layers are
// added first so fyne paints them underneath.
func (p *preview) refresh() {
	bg := canvas.NewRectangle(previewBackground)
	bg.Resize(p.size)
	objects := []fyne.CanvasObject{bg}
	if p.frame != "" {
		still := canvas.NewImageFromFile(p.frame)
		still.FillMode = canvas.ImageFillStretch
		still.Resize(p.size)
		objects = append(objects, still)
	}

	visible := p.ed.VisibleNow()
	for i := len(visible.Image) - 1; i >= 0; i-- {
		objects = append(objects, p.imageHandle(visible.Image[i]))
	}
	for i := len(visible.Text) - 1; i >= 0; i-- {
		objects = append(objects, p.textHandle(visible.Text[i]))
	}

	p.root.Objects = objects
	p.guides = 0
	p.root.Refresh()
}

func (p *preview) setFrame(path string) {
	p.frame = path
	p.refresh()
}

func (p *preview) showGuides(d editor.Drag) {
	p.root.Objects = p.root.Objects[:len(p.root.Objects)-p.guides]

	var lines []fyne.CanvasObject
	if d.Hit.Vertical >= 0 {
		x := float32(d.Guides.Vertical[d.Hit.Vertical])
		l := canvas.NewLine(guideColor)
		l.Position1 = fyne.NewPos(x, 0)
		l.Position2 = fyne.NewPos(x, p.size.Height)
		lines = append(lines, l)
	}
	if d.Hit.Horizontal >= 0 {
		y := float32(d.Guides.Horizontal[d.Hit.Horizontal])
		l := canvas.NewLine(guideColor)
		l.Position1 = fyne.NewPos(0, y)
		l.Position2 = fyne.NewPos(p.size.Width, y)
		lines = append(lines, l)
	}
	p.guides = len(lines)
	p.root.Objects = append(p.root.Objects, lines...)
	p.root.Refresh()
}

func (p *preview) textHandle(t overlays.Text) fyne.CanvasObject {
	txt := canvas.NewText(t.Text, parseHexColor(t.Color))
	txt.TextSize = float32(t.FontSize)
	txt.TextStyle = fyne.TextStyle{Bold: t.FontFamily == overlays.FontImpact}
	return p.handle(t.ID, t.Position, txt, txt.MinSize())
}

func (p *preview) imageHandle(img overlays.Image) fyne.CanvasObject {
	size := fyne.NewSize(float32(img.Size.Width), float32(img.Size.Height))

	var obj fyne.CanvasObject
	if path, ok := localPath(img.Asset.URI); ok {
		im := canvas.NewImageFromFile(path)
		im.FillMode = canvas.ImageFillStretch
		obj = im
	} else {
		obj = canvas.NewRectangle(placeholderColor)
	}
	return p.handle(img.ID, img.Position, obj, size)
}

func (p *preview) handle(id string, pos geometry.Position, obj fyne.CanvasObject, size fyne.Size) *overlayHandle {
	h := &overlayHandle{id: id, obj: obj, preview: p}
	h.ExtendBaseWidget(h)
	h.Resize(size)
	h.Move(fyne.NewPos(float32(pos.X), float32(pos.Y)))
	return h
}

// overlayHandle is a draggable overlay on the preview
type overlayHandle struct {
	widget.BaseWidget

	id      string
	obj     fyne.CanvasObject
	preview *preview

	dragging bool
	raw      fyne.Position
}

func (h *overlayHandle) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(h.obj)
}

// Dragged follows the pointer. Snapping is applied to the unsnapped pointer
// path so an element can be pulled off a guide.
func (h *overlayHandle) Dragged(e *fyne.DragEvent) {
	if !h.dragging {
		h.dragging = true
		h.raw = h.Position()
	}
	h.raw = fyne.NewPos(h.raw.X+e.Dragged.DX, h.raw.Y+e.Dragged.DY)

	drag, err := h.preview.ed.DragOverlay(h.id, geometry.Position{X: float64(h.raw.X), Y: float64(h.raw.Y)})
	if err != nil {
		return
	}
	h.Move(fyne.NewPos(float32(drag.Position.X), float32(drag.Position.Y)))
	h.preview.showGuides(drag)
}

func (h *overlayHandle) DragEnd() {
	h.dragging = false
	h.preview.refresh()
	if h.preview.onMoved != nil {
		h.preview.onMoved()
	}
}

func localPath(uri string) (string, bool) {
	switch {
	case strings.HasPrefix(uri, "file://"):
		return strings.TrimPrefix(uri, "file://"), true
	case strings.Contains(uri, "://"), strings.HasPrefix(uri, "data:"):
		return "", false
	case uri == "":
		return "", false
	}
	return uri, true
}

// parseHexColor converts #RRGGBB, falling back to white
func parseHexColor(s string) color.Color {
	if !overlays.ValidColor(s) {
		return color.White
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil {
		return color.White
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
