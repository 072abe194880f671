package overlays

import (
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/kikiluvv/overlaycut/internal/geometry"
)

// Kind distinguishes the two overlay types sharing one id space
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// FontFamily is one of the fonts the editor offers
type FontFamily string

// Supported font families
const (
	FontArial          FontFamily = "Arial"
	FontTimesNewRoman  FontFamily = "Times New Roman"
	FontHelvetica      FontFamily = "Helvetica"
	FontCourierNew     FontFamily = "Courier New"
	FontGeorgia        FontFamily = "Georgia"
	FontVerdana        FontFamily = "Verdana"
	FontImpact         FontFamily = "Impact"
	DefaultFontFamily             = FontArial
)

// FontFamilies lists the supported fonts in menu order
var FontFamilies = []FontFamily{
	FontArial,
	FontTimesNewRoman,
	FontHelvetica,
	FontCourierNew,
	FontGeorgia,
	FontVerdana,
	FontImpact,
}

// Valid reports whether f is a supported font
func (f FontFamily) Valid() bool {
	for _, known := range FontFamilies {
		if f == known {
			return true
		}
	}
	return false
}

// Defaults for newly created overlays
const (
	DefaultDuration  = 5.0
	DefaultFontSize  = 24.0
	DefaultColor     = "#FFFFFF"
	DefaultText      = "New Text"
	DefaultImageSide = 200.0

	// MinDuration is the shortest visibility window an overlay can have
	MinDuration = 0.1
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidColor reports whether c is a #RRGGBB hex color
func ValidColor(c string) bool {
	return hexColor.MatchString(c)
}

// Base holds the fields shared by every overlay
type Base struct {
	ID        string            `json:"id" yaml:"id"`
	Timestamp float64           `json:"timestamp" yaml:"timestamp"`
	Duration  float64           `json:"duration" yaml:"duration"`
	Position  geometry.Position `json:"position" yaml:"position"`

	// Seq is the registry insertion order, Touched the last-update counter.
	Seq     uint64 `json:"-" yaml:"-"`
	Touched uint64 `json:"-" yaml:"-"`
}

// End returns the end of the visibility window in seconds
func (b Base) End() float64 {
	return b.Timestamp + b.Duration
}

func (b *Base) repair() {
	if math.IsNaN(b.Timestamp) || b.Timestamp < 0 {
		b.Timestamp = 0
	}
	if math.IsNaN(b.Duration) || b.Duration < MinDuration {
		b.Duration = MinDuration
	}
}

// Text is a text overlay
type Text struct {
	Base       `yaml:",inline"`
	Text       string     `json:"text" yaml:"text"`
	FontSize   float64    `json:"fontSize" yaml:"font_size"`
	FontFamily FontFamily `json:"fontFamily" yaml:"font_family"`
	Color      string     `json:"color" yaml:"color"`
}

func (t *Text) repair() {
	t.Base.repair()
	if t.FontSize <= 0 || math.IsNaN(t.FontSize) {
		t.FontSize = DefaultFontSize
	}
	if !t.FontFamily.Valid() {
		t.FontFamily = DefaultFontFamily
	}
	if !ValidColor(t.Color) {
		t.Color = DefaultColor
	}
	t.Color = strings.ToUpper(t.Color)
}

// AssetRef points at an image asset owned by the registry. Overlays carry the
// reference, never the decoded bytes.
type AssetRef struct {
	URI string `json:"uri" yaml:"uri"`
}

// Image is an image overlay
type Image struct {
	Base  `yaml:",inline"`
	Asset AssetRef      `json:"asset" yaml:"asset"`
	Size  geometry.Size `json:"size" yaml:"size"`
}

func (img *Image) repair() {
	img.Base.repair()
	if !img.Size.Valid() {
		img.Size = geometry.Size{Width: DefaultImageSide, Height: DefaultImageSide}
	}
}

// NewID returns a fresh overlay id
func NewID() string {
	return uuid.New().String()
}

// NewText creates a text overlay centered in the container, visible from t=0
func NewText(text string, container geometry.Size) Text {
	if text == "" {
		text = DefaultText
	}
	return Text{
		Base: Base{
			ID:       NewID(),
			Duration: DefaultDuration,
			Position: container.Center(),
		},
		Text:       text,
		FontSize:   DefaultFontSize,
		FontFamily: DefaultFontFamily,
		Color:      DefaultColor,
	}
}

// NewImage creates an image overlay whose box is centered in the container
func NewImage(asset AssetRef, container geometry.Size) Image {
	return Image{
		Base: Base{
			ID:       NewID(),
			Duration: DefaultDuration,
			Position: geometry.Position{
				X: math.Max(0, (container.Width-DefaultImageSide)/2),
				Y: math.Max(0, (container.Height-DefaultImageSide)/2),
			},
		},
		Asset: asset,
		Size:  geometry.Size{Width: DefaultImageSide, Height: DefaultImageSide},
	}
}

// Patch is a partial update. Nil fields are left untouched; fields that do not
// apply to the target kind are ignored.
type Patch struct {
	Timestamp *float64           `json:"timestamp,omitempty"`
	Duration  *float64           `json:"duration,omitempty"`
	Position  *geometry.Position `json:"position,omitempty"`

	Text       *string     `json:"text,omitempty"`
	FontSize   *float64    `json:"fontSize,omitempty"`
	FontFamily *FontFamily `json:"fontFamily,omitempty"`
	Color      *string     `json:"color,omitempty"`

	Asset *AssetRef      `json:"asset,omitempty"`
	Size  *geometry.Size `json:"size,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return p == Patch{}
}

func (p Patch) applyBase(b *Base) {
	if p.Timestamp != nil {
		b.Timestamp = *p.Timestamp
	}
	if p.Duration != nil {
		b.Duration = *p.Duration
	}
	if p.Position != nil {
		b.Position = *p.Position
	}
}

func (p Patch) applyText(t *Text) {
	p.applyBase(&t.Base)
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.FontSize != nil {
		t.FontSize = *p.FontSize
	}
	if p.FontFamily != nil {
		t.FontFamily = *p.FontFamily
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	t.repair()
}

func (p Patch) applyImage(img *Image) {
	p.applyBase(&img.Base)
	if p.Asset != nil {
		img.Asset = *p.Asset
	}
	if p.Size != nil {
		img.Size = *p.Size
	}
	img.repair()
}

// Snapshot is an immutable copy of the registry contents, each kind in ascending
// insertion order
type Snapshot struct {
	Text  []Text  `json:"text" yaml:"text"`
	Image []Image `json:"image" yaml:"image"`
}

// Len returns the number of overlays in the snapshot
func (s Snapshot) Len() int {
	return len(s.Text) + len(s.Image)
}

// Clone returns a deep copy
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Text:  append([]Text(nil), s.Text...),
		Image: append([]Image(nil), s.Image...),
	}
}
