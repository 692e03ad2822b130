// Package media removes embedded metadata from uploaded photos.
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

const jpegQuality = 92

// maxPixels bounds the decoded size of an image so a small file cannot
// expand into gigabytes of pixels.
var maxPixels = 50_000_000

type stripper struct {
	decodeConfig func([]byte) (image.Config, error)
	reencode     func([]byte) ([]byte, error)
}

var strippers = map[string]stripper{
	"image/jpeg": {
		decodeConfig: func(b []byte) (image.Config, error) { return jpeg.DecodeConfig(bytes.NewReader(b)) },
		reencode:     stripJPEG,
	},
	"image/png": {
		decodeConfig: func(b []byte) (image.Config, error) { return png.DecodeConfig(bytes.NewReader(b)) },
		reencode:     stripPNG,
	},
}

// Supported reports whether StripMetadata re-encodes contentType.
func Supported(contentType string) bool {
	_, ok := strippers[contentType]
	return ok
}

// StripMetadata re-encodes images to remove EXIF, GPS, and other metadata.
// For unsupported types data is returned unchanged.
func StripMetadata(data []byte, contentType string) ([]byte, error) {
	s, ok := strippers[contentType]
	if !ok {
		return data, nil
	}

	cfg, err := s.decodeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", contentType, err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("image is %dx%d, larger than %d pixels", cfg.Width, cfg.Height, maxPixels)
	}
	return s.reencode(data)
}

func stripJPEG(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding jpeg: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func stripPNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
