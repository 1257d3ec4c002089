// Package avatar turns uploaded profile pictures into small PNG thumbnails.
package avatar

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxSide bounds both thumbnail dimensions.
	MaxSide = 200
	// MaxUploadBytes is the largest accepted upload.
	MaxUploadBytes = 5 << 20
	// MaxDimension and MaxPixels bound the decoded size of an upload.
	MaxDimension = 8000
	MaxPixels    = 40_000_000
)

// ErrTooLarge is returned when the upload exceeds MaxUploadBytes or its
// declared dimensions exceed MaxDimension or MaxPixels.
var ErrTooLarge = errors.New("avatar too large")

// ErrUnsupported is returned when the upload is not a decodable image.
var ErrUnsupported = errors.New("unsupported image format")

// Process reads an image, shrinks it to fit within MaxSide x MaxSide keeping its
// aspect ratio and returns the PNG encoding as standard base64.
func Process(r io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}
	if len(raw) > MaxUploadBytes {
		return "", ErrTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension || cfg.Width*cfg.Height > MaxPixels {
		return "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Thumbnail(img)); err != nil {
		return "", fmt.Errorf("encode avatar: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Thumbnail scales img down to fit within MaxSide x MaxSide. Smaller images
// are returned unchanged.
func Thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= MaxSide && h <= MaxSide {
		return img
	}

	tw, th := MaxSide, MaxSide
	if w > h {
		th = max(1, h*MaxSide/w)
	} else {
		tw = max(1, w*MaxSide/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
