package avatar

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func decodeResult(t *testing.T, encoded string) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	return img
}

func TestProcessBoundsSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 800, 400, 200, 100},
		{"portrait", 300, 600, 100, 200},
		{"square", 1000, 1000, 200, 200},
		{"small stays", 64, 32, 64, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, png.Encode(&buf, solid(tt.w, tt.h)))

			out, err := Process(&buf)
			require.NoError(t, err)
			assert.False(t, strings.HasPrefix(out, "data:"))

			b := decodeResult(t, out).Bounds()
			assert.Equal(t, tt.wantW, b.Dx())
			assert.Equal(t, tt.wantH, b.Dy())
		})
	}
}

func TestProcessJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(400, 300), nil))

	out, err := Process(&buf)
	require.NoError(t, err)
	b := decodeResult(t, out).Bounds()
	assert.LessOrEqual(t, b.Dx(), MaxSide)
	assert.LessOrEqual(t, b.Dy(), MaxSide)
}

func TestProcessRejectsGarbage(t *testing.T) {
	_, err := Process(strings.NewReader("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestProcessRejectsLargeUpload(t *testing.T) {
	_, err := Process(bytes.NewReader(make([]byte, MaxUploadBytes+10)))
	assert.ErrorIs(t, err, ErrTooLarge)
}

// withDimensions rewrites the IHDR chunk of a PNG to declare w x h pixels.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	require.Equal(t, "IHDR", string(data[12:16]))
	out := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestProcessRejectsHugeDimensions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))

	tests := []struct {
		name string
		w, h uint32
	}{
		{"square bomb", 20000, 20000},
		{"wide strip", 9000, 1},
		{"too many pixels", 7000, 7000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Process(bytes.NewReader(withDimensions(t, buf.Bytes(), tt.w, tt.h)))
			assert.ErrorIs(t, err, ErrTooLarge)
		})
	}
}
