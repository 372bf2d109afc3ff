package raster

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

// DefaultQuality is the JPEG encode quality used when the caller does not
// configure one.
const DefaultQuality = 90

// Decode parses raster bytes into an image. The MIME type is advisory; the
// registered decoders sniff the actual format.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode raster: %w", err)
	}
	return img, format, nil
}

// Encode serializes an image for the given MIME type and returns the bytes
// together with the MIME type actually produced. WebP input is written back
// as PNG since no WebP encoder is available.
func Encode(img image.Image, mimeType string, quality int) ([]byte, string, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png", "image/webp":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}
