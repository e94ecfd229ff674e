// Package vision prepares guide images for conditioning and inspects
// generated images.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Image preprocessing errors
var (
	ErrInvalidImage      = errors.New("vision: invalid image data")
	ErrUnsupportedFormat = errors.New("vision: unsupported image format")
	ErrInvalidDimensions = errors.New("vision: invalid dimensions")
	ErrEmptyImage        = errors.New("vision: empty image data")
)

const (
	// MaxDecodeSide is the largest side kept after decoding; bigger inputs
	// are scaled down to it first.
	MaxDecodeSide = 2048
	// GuideMaxSide bounds the longest side of a guide image.
	GuideMaxSide = 1024
	// MaxDecodePixels is the largest width*height accepted from an image
	// header. Anything bigger is rejected before its pixels are decoded.
	MaxDecodePixels = 8192 * 8192
)

var supportedFormats = map[string]bool{"png": true, "jpeg": true, "webp": true}

// SupportedExtensions lists the accepted guide image file extensions.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// IsSupportedExtension reports whether name has a guide image extension.
func IsSupportedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// DecodeImage decodes PNG, JPEG or WebP data. Images larger than
// MaxDecodeSide are scaled down so their longest side equals it. Headers
// declaring more than MaxDecodePixels fail with ErrInvalidDimensions.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if !supportedFormats[format] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrInvalidDimensions)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxDecodePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidDimensions, cfg.Width, cfg.Height, MaxDecodePixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrInvalidDimensions)
	}

	return FitLongestSide(img, MaxDecodeSide), nil
}

// ConvertToRGB returns an opaque copy of img. Alpha is dropped without
// blending, so transparent pixels keep their colour.
func ConvertToRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			rgba.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
	return rgba
}

// FitLongestSide scales img down, preserving aspect ratio, so that its
// longest side is at most maxSide. Smaller images are returned unchanged.
func FitLongestSide(img image.Image, maxSide int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	longest := max(width, height)
	if maxSide <= 0 || longest <= maxSide {
		return img
	}

	scale := float64(maxSide) / float64(longest)
	newWidth := max(1, int(float64(width)*scale+0.5))
	newHeight := max(1, int(float64(height)*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// ResizeExact converts img to RGB and scales it to exactly width x height,
// as ControlNet inputs require.
func ResizeExact(img image.Image, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	rgb := ConvertToRGB(img)
	if rgb.Bounds().Dx() == width && rgb.Bounds().Dy() == height {
		return rgb, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), rgb, rgb.Bounds(), draw.Src, nil)
	return dst, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("vision: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// PrepareGuide decodes a guide image, converts it to RGB, bounds its longest
// side by GuideMaxSide and re-encodes it as PNG.
func PrepareGuide(data []byte) ([]byte, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return EncodePNG(FitLongestSide(ConvertToRGB(img), GuideMaxSide))
}
