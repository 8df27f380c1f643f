package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// maxSourcePixels bounds decoded image size so a small file cannot expand into gigabytes
const maxSourcePixels = 50_000_000

// ImageOptimizer normalizes images for storage: EXIF orientation applied,
// fit inside MaxDimension x MaxDimension without upscaling, lossy WebP.
type ImageOptimizer struct {
	MaxDimension int
	Quality      float32
}

// OptimizedImage is the encoded output of Optimize
type OptimizedImage struct {
	Data   []byte
	Width  int
	Height int
}

// NewImageOptimizer returns an optimizer with the given bounds, defaulting to 1600px at quality 80
func NewImageOptimizer(maxDimension int, quality float32) *ImageOptimizer {
	if maxDimension <= 0 {
		maxDimension = 1600
	}
	if quality <= 0 {
		quality = 80
	}
	return &ImageOptimizer{MaxDimension: maxDimension, Quality: quality}
}

// Optimize decodes jpeg, png, gif or webp bytes and re-encodes them as WebP.
// The same input always yields the same output.
func (o *ImageOptimizer) Optimize(data []byte) (*OptimizedImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width*cfg.Height > maxSourcePixels {
		return nil, fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > o.MaxDimension || b.Dy() > o.MaxDimension {
		// Fit never upscales and keeps the aspect ratio
		img = imaging.Fit(img, o.MaxDimension, o.MaxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: o.Quality}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}

	out := img.Bounds()
	return &OptimizedImage{Data: buf.Bytes(), Width: out.Dx(), Height: out.Dy()}, nil
}
