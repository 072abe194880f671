package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/overlays"
	"github.com/kikiluvv/overlaycut/internal/timeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	s1, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	s1.Close()

	s2, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.conn.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("migrations recorded = %d, want 2", count)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	st := State{
		ID:     "s1",
		Source: "/media/clip.mp4",
		Timeline: timeline.State{
			Duration: 20, Current: 4, TrimStart: 2, TrimEnd: 12, Mode: timeline.ModeTrim,
		},
		Overlays: overlays.Snapshot{
			Text: []overlays.Text{{
				Base:       overlays.Base{ID: "t1", Timestamp: 1, Duration: 3, Position: geometry.Position{X: 10, Y: 20}},
				Text:       "hello",
				FontSize:   32,
				FontFamily: overlays.FontImpact,
				Color:      "#FF0000",
			}},
			Image: []overlays.Image{{
				Base:  overlays.Base{ID: "i1", Timestamp: 0, Duration: 5},
				Asset: overlays.AssetRef{URI: "file:///tmp/logo.png"},
				Size:  geometry.Size{Width: 100, Height: 50},
			}},
		},
		PreviewSize: geometry.Size{Width: 640, Height: 360},
	}
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Source != st.Source {
		t.Errorf("Source = %q, want %q", got.Source, st.Source)
	}
	if got.Timeline.TrimStart != 2 || got.Timeline.TrimEnd != 12 || got.Timeline.Mode != timeline.ModeTrim {
		t.Errorf("Timeline = %+v", got.Timeline)
	}
	if got.PreviewSize != st.PreviewSize {
		t.Errorf("PreviewSize = %+v, want %+v", got.PreviewSize, st.PreviewSize)
	}
	if got.Timeline.Current != 4 {
		t.Errorf("Current = %v, want 4", got.Timeline.Current)
	}
	if len(got.Overlays.Text) != 1 || got.Overlays.Text[0].Text != "hello" || got.Overlays.Text[0].FontFamily != overlays.FontImpact {
		t.Errorf("text overlays = %+v", got.Overlays.Text)
	}
	if len(got.Overlays.Image) != 1 || got.Overlays.Image[0].Asset.URI != "file:///tmp/logo.png" {
		t.Errorf("image overlays = %+v", got.Overlays.Image)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestLoadRepairsInvalidData(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	st := State{
		ID:       "bad",
		Source:   "a.mp4",
		Timeline: timeline.State{Duration: 10, TrimStart: 8, TrimEnd: 3},
		Overlays: overlays.Snapshot{
			Text: []overlays.Text{
				{Base: overlays.Base{ID: "dup", Timestamp: -4, Duration: 0}, Text: "x", Color: "red", FontFamily: "Comic Sans"},
				{Base: overlays.Base{ID: "dup", Timestamp: 1, Duration: 2}, Text: "y"},
			},
		},
	}
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "bad")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Timeline.TrimStart != 0 || got.Timeline.TrimEnd != 10 {
		t.Errorf("trim = [%v, %v], want full range [0, 10]", got.Timeline.TrimStart, got.Timeline.TrimEnd)
	}
	if len(got.Overlays.Text) != 2 {
		t.Fatalf("text overlays = %d, want 2", len(got.Overlays.Text))
	}
	first := got.Overlays.Text[0]
	if first.Timestamp != 0 || first.Duration != overlays.MinDuration {
		t.Errorf("timing not repaired: %+v", first.Base)
	}
	if first.Color != overlays.DefaultColor || first.FontFamily != overlays.FontArial {
		t.Errorf("style not repaired: color %q font %q", first.Color, first.FontFamily)
	}
	if got.Overlays.Text[1].ID == "dup" {
		t.Error("duplicate id was kept")
	}
}

func TestLoadMissing(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestListAndDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := store.Save(ctx, State{ID: id, Source: id + ".mp4", Timeline: timeline.State{Duration: 5, TrimEnd: 5}}); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() = %d sessions, want 2", len(list))
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete error = %v", err)
	}
}

func TestSaveRequiresID(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(context.Background(), State{Source: "x"}); err == nil {
		t.Error("expected error for missing id")
	}
}
