package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"xplorer/internal/apperr"
	"xplorer/internal/paper"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode rendered image: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestPackZipAndFromZip(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "sub", "one.png")
	if err := os.MkdirAll(filepath.Dir(a), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(a, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	b := filepath.Join(dir, "two.png")
	if err := os.WriteFile(b, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	archive, err := PackZip([]string{a, b})
	if err != nil {
		t.Fatalf("PackZip failed: %v", err)
	}

	// Entries are stored under base names, directories dropped.
	data, err := FromZip(archive, "one.png")
	if err != nil {
		t.Fatalf("FromZip failed: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("expected %q, got %q", "first", data)
	}

	if _, err := FromZip(archive, "missing.png"); !apperr.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestRender_DownscalesWideImages(t *testing.T) {
	data, err := Render(pngBytes(t, 2000, 1000), paper.SizeHint{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	w, h := decodeSize(t, data)
	if w != MaxWidth {
		t.Errorf("expected width %d, got %d", MaxWidth, w)
	}
	if h != MaxWidth/2 {
		t.Errorf("expected height %d, got %d", MaxWidth/2, h)
	}
}

func TestRender_NeverUpscalesSmallImages(t *testing.T) {
	data, err := Render(pngBytes(t, 300, 200), paper.SizeHint{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	w, _ := decodeSize(t, data)
	if w != 300 {
		t.Errorf("expected width 300 (no upscaling), got %d", w)
	}
}

func TestRender_ScaleHintClampedToMinimum(t *testing.T) {
	// 0.25 of 1200 is 300, below the readable minimum.
	data, err := Render(pngBytes(t, 1200, 600), paper.SizeHint{Scale: 0.25})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	w, _ := decodeSize(t, data)
	if w != MinWidth {
		t.Errorf("expected width %d, got %d", MinWidth, w)
	}
}

func TestRender_WidthHint(t *testing.T) {
	data, err := Render(pngBytes(t, 1200, 600), paper.SizeHint{Width: 600})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	w, h := decodeSize(t, data)
	if w != 600 || h != 300 {
		t.Errorf("expected 600x300, got %dx%d", w, h)
	}
}

func TestRender_RejectsGarbage(t *testing.T) {
	if _, err := Render([]byte("not an image"), paper.SizeHint{}); !apperr.IsParseFailure(err) {
		t.Errorf("expected parse-failure error, got %v", err)
	}
}
