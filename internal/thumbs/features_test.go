package thumbs

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/yt-audit/backend/internal/storage/models"
)

func uniformImage(w, h int, v uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func checkerImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestFeaturesUniform(t *testing.T) {
	g := grayscale(uniformImage(16, 16, 128))
	feats := Features(g)

	if math.Abs(feats.Brightness-128) > 1 {
		t.Errorf("brightness = %v, want ~128", feats.Brightness)
	}
	if feats.Contrast > 0.01 {
		t.Errorf("contrast = %v, want 0 for a flat image", feats.Contrast)
	}
	if feats.Sharpness > 0.01 {
		t.Errorf("sharpness = %v, want 0 for a flat image", feats.Sharpness)
	}
}

func TestFeaturesCheckerboard(t *testing.T) {
	flat := Features(grayscale(uniformImage(16, 16, 128)))
	busy := Features(grayscale(checkerImage(16, 16)))

	if busy.Contrast <= flat.Contrast {
		t.Errorf("checkerboard contrast = %v, flat = %v", busy.Contrast, flat.Contrast)
	}
	if busy.Sharpness <= flat.Sharpness {
		t.Errorf("checkerboard sharpness = %v, flat = %v", busy.Sharpness, flat.Sharpness)
	}
}

func TestGrayscaleDimensions(t *testing.T) {
	g := grayscale(uniformImage(8, 4, 10))
	if g.w != 8 || g.h != 4 || len(g.pix) != 32 {
		t.Errorf("gray image = %dx%d, %d pixels", g.w, g.h, len(g.pix))
	}
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return path
}

func TestExtractFileTextDensity(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", uniformImage(10, 10, 200))

	// Without OCR the density degrades to NaN.
	e := NewExtractor(dir, nil)
	feats, err := e.extractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("extractFile failed: %v", err)
	}
	if !math.IsNaN(feats.TextDensity) {
		t.Errorf("density without OCR = %v, want NaN", feats.TextDensity)
	}
	if math.Abs(feats.Brightness-200) > 1 {
		t.Errorf("brightness = %v, want ~200", feats.Brightness)
	}

	// With OCR it is recognized characters per pixel.
	e = NewExtractor(dir, func(context.Context, string) (string, error) {
		return "  BIG TEXT ", nil
	})
	feats, err = e.extractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("extractFile failed: %v", err)
	}
	want := 8.0 / 100.0
	if math.Abs(feats.TextDensity-want) > 1e-9 {
		t.Errorf("density = %v, want %v", feats.TextDensity, want)
	}

	// A failing OCR degrades to NaN instead of erroring.
	e = NewExtractor(dir, func(context.Context, string) (string, error) {
		return "", fmt.Errorf("ocr binary missing")
	})
	feats, err = e.extractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("extractFile failed: %v", err)
	}
	if !math.IsNaN(feats.TextDensity) {
		t.Errorf("density after OCR failure = %v, want NaN", feats.TextDensity)
	}
}

func TestExtractAllSkipsFailures(t *testing.T) {
	dir := t.TempDir()
	dlDir := filepath.Join(dir, "thumb_dl")
	if err := os.MkdirAll(dlDir, 0o755); err != nil {
		t.Fatal(err)
	}

	// Pre-seed a downloaded image for one video; the other has no file and an
	// unreachable URL, so it is skipped.
	writePNG(t, dlDir, "good.jpg", checkerImage(12, 12))
	if err := os.WriteFile(filepath.Join(dlDir, "corrupt.jpg"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor(dir, nil)
	refs := []models.ThumbnailRef{
		{VideoID: "good", URL: "http://localhost/present"},
		{VideoID: "corrupt", URL: "http://localhost/present"},
		{VideoID: "skipped", URL: ""},
	}
	out, err := e.ExtractAll(context.Background(), refs)
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	if len(out) != 1 || out[0].VideoID != "good" {
		t.Fatalf("features = %+v, want only the decodable image", out)
	}
	if out[0].Sharpness <= 0 {
		t.Errorf("sharpness = %v, want > 0 for a checkerboard", out[0].Sharpness)
	}
}
