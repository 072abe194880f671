package compose

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/kikiluvv/overlaycut/internal/render"
)

const (
	maxAssetBytes  = 64 << 20
	maxAssetPixels = 8192 * 8192
	assetWorkers   = 4
)

var errAssetTooLarge = errors.New("asset too large")

// prepareAssets decodes every image referenced by the plan, scales it to its
// draw size and writes it as PNG into dir. Images that cannot be loaded are
// dropped and reported as notes; only cancellation fails the whole step.
func (e *Engine) prepareAssets(ctx context.Context, instructions []render.Instruction, dir string) ([]render.Instruction, []Note, error) {
	paths := make([]string, len(instructions))
	failures := make([]error, len(instructions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(assetWorkers)

	for i, in := range instructions {
		if in.Kind != render.KindImage {
			continue
		}
		i, in := i, in
		g.Go(func() error {
			out := filepath.Join(dir, fmt.Sprintf("asset-%d.png", i))
			err := e.prepareAsset(gctx, in.Image.Source, in.Image.Size.Width, in.Image.Size.Height, out)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failures[i] = err
				return nil
			}
			paths[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		kept  = make([]render.Instruction, 0, len(instructions))
		notes []Note
	)
	for i, in := range instructions {
		if in.Kind != render.KindImage {
			kept = append(kept, in)
			continue
		}
		if failures[i] != nil {
			e.logger.Warn().
				Err(failures[i]).
				Str("overlay", in.OverlayID).
				Str("asset", in.Image.Source).
				Msg("dropping image overlay")
			notes = append(notes, Note{OverlayID: in.OverlayID, Reason: "asset unavailable: " + failures[i].Error()})
			continue
		}
		img := *in.Image
		img.Source = paths[i]
		in.Image = &img
		kept = append(kept, in)
	}
	return kept, notes, nil
}

func (e *Engine) prepareAsset(ctx context.Context, uri string, width, height float64, out string) error {
	data, err := e.fetchAsset(ctx, uri)
	if err != nil {
		return err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if cfg.Width*cfg.Height > maxAssetPixels {
		return fmt.Errorf("%w: %dx%d", errAssetTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	w, h := uint(math.Max(1, math.Round(width))), uint(math.Max(1, math.Round(height)))
	b := img.Bounds()
	if uint(b.Dx()) != w || uint(b.Dy()) != h {
		img = resize.Resize(w, h, img, resize.Lanczos3)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create asset file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

// fetchAsset reads an asset from a file path, file:// URL, http(s) URL or
// base64 data URI
func (e *Engine) fetchAsset(ctx context.Context, uri string) ([]byte, error) {
	switch {
	case strings.HasPrefix(uri, "data:"):
		return decodeDataURI(uri)

	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		resp, err := e.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)
		}
		return readLimited(resp.Body)

	case strings.HasPrefix(uri, "file://"):
		u, err := url.Parse(uri)
		if err != nil {
			return nil, err
		}
		return readFile(u.Path)

	default:
		return readFile(uri)
	}
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxAssetBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxAssetBytes {
		return nil, errAssetTooLarge
	}
	return data, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data uri")
	}
	if !strings.HasSuffix(meta, ";base64") {
		s, err := url.PathUnescape(payload)
		return []byte(s), err
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxAssetBytes {
		return nil, errAssetTooLarge
	}
	return base64.StdEncoding.DecodeString(payload)
}
