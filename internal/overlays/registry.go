package overlays

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kikiluvv/overlaycut/internal/geometry"
)

// ErrDuplicateID is returned when an added overlay reuses an id of either kind
var ErrDuplicateID = errors.New("duplicate overlay id")

// AssetReleaser frees whatever temporary handle backs an asset once no overlay
// references it anymore
type AssetReleaser interface {
	Release(ref AssetRef)
}

// ReleaseFunc adapts a function to AssetReleaser
type ReleaseFunc func(ref AssetRef)

// Release calls f(ref)
func (f ReleaseFunc) Release(ref AssetRef) {
	f(ref)
}

type entry struct {
	kind  Kind
	text  *Text
	image *Image
}

func (e *entry) base() *Base {
	if e.kind == KindText {
		return &e.text.Base
	}
	return &e.image.Base
}

// Registry is the authoritative set of overlays. It owns overlay identity and
// the asset handles referenced by image overlays.
type Registry struct {
	mu       sync.RWMutex
	items    map[string]*entry
	assets   map[string]int
	seq      uint64
	touch    uint64
	releaser AssetReleaser
}

// NewRegistry creates an empty registry. releaser may be nil.
func NewRegistry(releaser AssetReleaser) *Registry {
	return &Registry{
		items:    make(map[string]*entry),
		assets:   make(map[string]int),
		releaser: releaser,
	}
}

// AddText inserts a text overlay. An empty id is replaced with a fresh one.
func (r *Registry) AddText(t Text) (Text, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[t.ID]; exists && t.ID != "" {
		return Text{}, fmt.Errorf("add text %q: %w", t.ID, ErrDuplicateID)
	}
	return r.insertTextLocked(t), nil
}

// insertTextLocked stores t, replacing an empty or taken id with a fresh one
func (r *Registry) insertTextLocked(t Text) Text {
	if _, taken := r.items[t.ID]; taken || t.ID == "" {
		t.ID = NewID()
	}
	t.repair()
	r.stamp(&t.Base, true)
	r.items[t.ID] = &entry{kind: KindText, text: &t}
	return t
}

// AddImage inserts an image overlay. An empty id is replaced with a fresh one.
func (r *Registry) AddImage(img Image) (Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[img.ID]; exists && img.ID != "" {
		return Image{}, fmt.Errorf("add image %q: %w", img.ID, ErrDuplicateID)
	}
	return r.insertImageLocked(img), nil
}

func (r *Registry) insertImageLocked(img Image) Image {
	if _, taken := r.items[img.ID]; taken || img.ID == "" {
		img.ID = NewID()
	}
	img.repair()
	r.stamp(&img.Base, true)
	r.retain(img.Asset)
	r.items[img.ID] = &entry{kind: KindImage, image: &img}
	return img
}

// Update applies a partial update. Missing ids and empty patches are no-ops; the
// returned bool reports whether anything was applied.
func (r *Registry) Update(id string, p Patch) (Kind, bool) {
	if p.Empty() {
		return r.kindOf(id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok {
		return "", false
	}

	switch e.kind {
	case KindText:
		p.applyText(e.text)
	case KindImage:
		prev := e.image.Asset
		p.applyImage(e.image)
		if e.image.Asset != prev {
			r.retain(e.image.Asset)
			r.release(prev)
		}
	}
	r.stamp(e.base(), false)
	return e.kind, true
}

// Remove deletes an overlay. Removing an unknown id is safe.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) bool {
	e, ok := r.items[id]
	if !ok {
		return false
	}
	delete(r.items, id)
	if e.kind == KindImage {
		r.release(e.image.Asset)
	}
	return true
}

// Get returns the shared fields of an overlay and its kind
func (r *Registry) Get(id string) (Base, Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok {
		return Base{}, "", false
	}
	return *e.base(), e.kind, true
}

// Text returns a copy of a text overlay
func (r *Registry) Text(id string) (Text, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok || e.kind != KindText {
		return Text{}, false
	}
	return *e.text, true
}

// Image returns a copy of an image overlay
func (r *Registry) Image(id string) (Image, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok || e.kind != KindImage {
		return Image{}, false
	}
	return *e.image, true
}

// Len returns the number of overlays
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// List returns a snapshot with each kind in ascending insertion order
func (r *Registry) List() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var snap Snapshot
	for _, e := range r.items {
		switch e.kind {
		case KindText:
			snap.Text = append(snap.Text, *e.text)
		case KindImage:
			snap.Image = append(snap.Image, *e.image)
		}
	}
	sort.Slice(snap.Text, func(i, j int) bool { return snap.Text[i].Seq < snap.Text[j].Seq })
	sort.Slice(snap.Image, func(i, j int) bool { return snap.Image[i].Seq < snap.Image[j].Seq })
	return snap
}

// Rebase moves every overlay into the time domain of a trimmed media whose new
// origin was at offset and which now lasts newDuration seconds. Overlays that
// end at or before the new origin, or start at or after the new end, are
// removed and their ids returned. The rest are clipped to [0, newDuration].
func (r *Registry) Rebase(offset, newDuration float64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []string
	for id, e := range r.items {
		b := e.base()
		start := b.Timestamp - offset
		end := start + b.Duration
		if end <= 0 || start >= newDuration {
			dropped = append(dropped, id)
			continue
		}
		start = max(start, 0)
		end = min(end, newDuration)
		b.Timestamp = start
		b.Duration = end - start
		b.repair()
	}
	for _, id := range dropped {
		r.removeLocked(id)
	}
	sort.Strings(dropped)
	return dropped
}

// Load replaces the registry contents with a snapshot, repairing invalid fields.
// Overlays with missing or duplicate ids are given fresh ones. Readers see
// either the old contents or the new, never a mix.
func (r *Registry) Load(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearLocked()
	for _, t := range s.Text {
		r.insertTextLocked(t)
	}
	for _, img := range s.Image {
		r.insertImageLocked(img)
	}
}

// Rescale maps every position, image size and font size recorded against one
// container size onto another. Degenerate or unchanged sizes are a no-op.
func (r *Registry) Rescale(from, to geometry.Size) {
	if !from.Valid() || !to.Valid() || from == to {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.items {
		b := e.base()
		b.Position = geometry.Rescale(b.Position, from, to)
		switch e.kind {
		case KindText:
			e.text.FontSize *= to.Height / from.Height
		case KindImage:
			e.image.Size = geometry.RescaleSize(e.image.Size, from, to)
		}
	}
}

// Clear removes every overlay and releases all assets
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
}

func (r *Registry) clearLocked() {
	for id := range r.items {
		r.removeLocked(id)
	}
}

func (r *Registry) kindOf(id string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.items[id]; ok {
		return e.kind, false
	}
	return "", false
}

func (r *Registry) stamp(b *Base, inserted bool) {
	r.touch++
	b.Touched = r.touch
	if inserted {
		r.seq++
		b.Seq = r.seq
	}
}

func (r *Registry) retain(ref AssetRef) {
	if ref.URI == "" {
		return
	}
	r.assets[ref.URI]++
}

func (r *Registry) release(ref AssetRef) {
	if ref.URI == "" {
		return
	}
	r.assets[ref.URI]--
	if r.assets[ref.URI] > 0 {
		return
	}
	delete(r.assets, ref.URI)
	if r.releaser != nil {
		r.releaser.Release(ref)
	}
}
