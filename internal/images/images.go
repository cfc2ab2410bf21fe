// Package images packs figure source files into archives and renders
// figure images at presentation size.
package images

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"xplorer/internal/apperr"
	"xplorer/internal/paper"
)

// Rendered figure widths are clamped to this range. Anything narrower is
// unreadable in a viewer; anything wider wastes storage.
const (
	MinWidth = 500
	MaxWidth = 1600
)

// PackZip archives the given files under their base names and returns the
// zip bytes. Duplicate base names keep the first occurrence.
func PackZip(paths []string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	seen := map[string]bool{}

	for _, p := range paths {
		name := filepath.Base(p)
		if seen[name] {
			continue
		}
		seen[name] = true

		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", p, err)
		}
		entry, err := w.Create(name)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("pack %s: %w", p, err)
		}
		if _, err := io.Copy(entry, f); err != nil {
			f.Close()
			return nil, fmt.Errorf("pack %s: %w", p, err)
		}
		f.Close()
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// FromZip extracts one file from a zip archive by name.
func FromZip(archive []byte, name string) ([]byte, error) {
	const op = "images.FromZip"
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, apperr.Wrap(apperr.ParseFailure, op, err)
	}
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in archive: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s from archive: %w", name, err)
		}
		return data, nil
	}
	return nil, apperr.New(apperr.NotFound, op, "%s not in archive", name)
}

// Render decodes a figure image, resizes it to its presentation width, and
// re-encodes it as PNG. The target width starts from the size hint (scale
// fraction or explicit pixel width/height), falls back to the source width,
// and is clamped to [MinWidth, MaxWidth] without upscaling past the source.
func Render(data []byte, hint paper.SizeHint) ([]byte, error) {
	const op = "images.Render"
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.ParseFailure, op, err)
	}

	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, apperr.New(apperr.ParseFailure, op, "empty image")
	}

	width := targetWidth(srcW, srcH, hint)
	if width == srcW {
		var buf bytes.Buffer
		if err := png.Encode(&buf, src); err != nil {
			return nil, fmt.Errorf("encode image: %w", err)
		}
		return buf.Bytes(), nil
	}

	height := srcH * width / srcW
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func targetWidth(srcW, srcH int, hint paper.SizeHint) int {
	width := srcW
	switch {
	case hint.Width > 0:
		width = hint.Width
	case hint.Height > 0:
		width = hint.Height * srcW / srcH
	case hint.Scale > 0:
		width = int(float64(srcW) * hint.Scale)
	}

	if width < MinWidth {
		width = MinWidth
	}
	if width > MaxWidth {
		width = MaxWidth
	}
	// Never upscale past the source.
	if width > srcW {
		width = srcW
	}
	if width < 1 {
		width = 1
	}
	return width
}
