package thumbs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/storage/models"
	"github.com/yt-audit/backend/pkg/logger"
)

// OCRFunc is the external OCR collaborator: it returns the recognized text
// for an image file. When nil or failing, text density degrades to NaN for
// that image.
type OCRFunc func(ctx context.Context, imagePath string) (string, error)

// Extractor downloads thumbnails and computes image features: variance of
// Laplacian (sharpness), mean intensity (brightness), intensity stddev
// (contrast) and OCR character count per pixel (text density).
type Extractor struct {
	rawDir     string
	httpClient *http.Client
	ocr        OCRFunc
}

func NewExtractor(rawDir string, ocr OCRFunc) *Extractor {
	return &Extractor{
		rawDir:     rawDir,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		ocr:        ocr,
	}
}

// ExtractAll processes every thumbnail reference. A failing video is skipped
// silently (it is simply missing from the features table), matching the
// per-row recoverable error policy.
func (e *Extractor) ExtractAll(ctx context.Context, refs []models.ThumbnailRef) ([]models.ThumbFeatures, error) {
	dlDir := filepath.Join(e.rawDir, "thumb_dl")
	if err := os.MkdirAll(dlDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail dir: %w", err)
	}

	var out []models.ThumbFeatures
	for _, ref := range refs {
		if ref.URL == "" {
			continue
		}

		path := filepath.Join(dlDir, ref.VideoID+".jpg")
		if _, err := os.Stat(path); err != nil {
			if err := e.download(ctx, ref.URL, path); err != nil {
				logger.Debug("Thumbnail download failed", zap.String("video_id", ref.VideoID), zap.Error(err))
				continue
			}
		}

		feats, err := e.extractFile(ctx, path)
		if err != nil {
			logger.Debug("Thumbnail feature extraction failed", zap.String("video_id", ref.VideoID), zap.Error(err))
			continue
		}
		feats.VideoID = ref.VideoID
		out = append(out, feats)
	}

	logger.Info("Thumbnail features extracted", zap.Int("processed", len(out)), zap.Int("refs", len(refs)))
	return out, nil
}

func (e *Extractor) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected thumbnail status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("failed to read thumbnail body: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func (e *Extractor) extractFile(ctx context.Context, path string) (models.ThumbFeatures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ThumbFeatures{}, fmt.Errorf("failed to read image: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return models.ThumbFeatures{}, fmt.Errorf("failed to decode image: %w", err)
	}

	gray := grayscale(img)
	feats := Features(gray)
	feats.TextDensity = e.textDensity(ctx, path, gray)
	return feats, nil
}

func (e *Extractor) textDensity(ctx context.Context, path string, gray *grayImage) float64 {
	if e.ocr == nil {
		return math.NaN()
	}
	text, err := e.ocr(ctx, path)
	if err != nil {
		logger.Debug("OCR failed", zap.String("path", path), zap.Error(err))
		return math.NaN()
	}
	area := gray.w * gray.h
	if area == 0 {
		return math.NaN()
	}
	return float64(len([]rune(strings.TrimSpace(text)))) / float64(area)
}

type grayImage struct {
	w, h int
	pix  []float64
}

func (g *grayImage) at(x, y int) float64 { return g.pix[y*g.w+x] }

func grayscale(img image.Image) *grayImage {
	b := img.Bounds()
	g := &grayImage{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, gr, bl, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, scaled back to 0-255
			g.pix[i] = (0.299*float64(r) + 0.587*float64(gr) + 0.114*float64(bl)) / 257.0
			i++
		}
	}
	return g
}

// Features computes sharpness, brightness and contrast from a grayscale
// image. Sharpness is the variance of a 3x3 Laplacian over a lightly
// blurred image, brightness the mean intensity, contrast the stddev.
func Features(g *grayImage) models.ThumbFeatures {
	var sum, sumSq float64
	n := float64(len(g.pix))
	for _, v := range g.pix {
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}

	blurred := gaussianBlur3(g)

	var lapSum, lapSumSq float64
	var lapN float64
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			lap := blurred.at(x-1, y) + blurred.at(x+1, y) + blurred.at(x, y-1) + blurred.at(x, y+1) - 4*blurred.at(x, y)
			lapSum += lap
			lapSumSq += lap * lap
			lapN++
		}
	}
	var sharpness float64
	if lapN > 0 {
		lapMean := lapSum / lapN
		sharpness = lapSumSq/lapN - lapMean*lapMean
		if sharpness < 0 {
			sharpness = 0
		}
	}

	return models.ThumbFeatures{
		Sharpness:  sharpness,
		Brightness: mean,
		Contrast:   math.Sqrt(variance),
	}
}

var gaussKernel = [3][3]float64{
	{1, 2, 1},
	{2, 4, 2},
	{1, 2, 1},
}

func gaussianBlur3(g *grayImage) *grayImage {
	out := &grayImage{w: g.w, h: g.h, pix: make([]float64, len(g.pix))}
	copy(out.pix, g.pix)
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			var acc float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					acc += g.at(x+kx, y+ky) * gaussKernel[ky+1][kx+1]
				}
			}
			out.pix[y*g.w+x] = acc / 16
		}
	}
	return out
}
