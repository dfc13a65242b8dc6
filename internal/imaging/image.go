// Package imaging decodes, crops, resizes and encodes rasters for the face pipelines.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrEmptyImage is returned when a payload decodes to an image without pixels.
var ErrEmptyImage = errors.New("empty image")

// Decode decodes JPEG, PNG or BMP data.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}

// Open reads and decodes an image file.
func Open(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return Decode(data)
}

// DecodeDataURL decodes a "data:image/...;base64,..." payload. A bare base64
// string without the data URL header is accepted as well.
func DecodeDataURL(s string) (image.Image, error) {
	encoded := s
	if strings.HasPrefix(s, "data:") {
		_, after, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("malformed data URL")
		}
		encoded = after
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 payload: %w", err)
	}
	return Decode(data)
}

// Crop copies the region r of img into a new RGBA image whose bounds start at (0,0).
// The region is intersected with the image bounds; an empty intersection yields an
// empty image.
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	r = r.Add(img.Bounds().Min).Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	if r.Empty() {
		return dst
	}
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// Resize scales img to exactly width x height.
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Fit scales img down to fit within maxSize (width or height) while keeping aspect
// ratio. Images already within bounds are returned unchanged.
func Fit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePNG writes img losslessly to path, replacing any existing file atomically.
func WritePNG(path string, img image.Image) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".crop-*.png")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// IsPhoto reports whether name has one of the supported photo extensions.
func IsPhoto(name string) bool {
	return slices.Contains(constants.PhotoExtensions, strings.ToLower(filepath.Ext(name)))
}
