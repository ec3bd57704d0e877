// Package imageio decodes uploaded images and encodes annotated output.
package imageio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage is returned for bytes that do not decode as an image.
var ErrInvalidImage = errors.New("invalid image")

const (
	FormatJPEG = "jpeg"
	FormatWebP = "webp"

	DefaultQuality = 90
)

// Decode decodes JPEG, PNG, GIF, BMP, TIFF or WebP bytes.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload: %w", ErrInvalidImage)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return img, nil
	}
	return nil, fmt.Errorf("%v: %w", err, ErrInvalidImage)
}

// StripDataURL removes a "data:<mime>;base64," prefix if present.
func StripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

// DecodeBase64 decodes a plain or data-URL base64 payload into an image.
// Malformed base64 is reported as ErrInvalidImage.
func DecodeBase64(s string) (image.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(StripDataURL(s))
	if err != nil {
		return nil, fmt.Errorf("malformed base64: %v: %w", err, ErrInvalidImage)
	}
	return Decode(raw)
}

// Encode writes img as JPEG or WebP.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	if quality <= 0 {
		quality = DefaultQuality
	}
	switch strings.ToLower(format) {
	case FormatWebP:
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	case FormatJPEG, "jpg", "":
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// ContentType returns the MIME type for an Encode format.
func ContentType(format string) string {
	if strings.ToLower(format) == FormatWebP {
		return "image/webp"
	}
	return "image/jpeg"
}
