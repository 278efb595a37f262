package gaze

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// MaxDimension caps the width and height of a decoded image. Headers
// are checked before any pixel memory is allocated.
const MaxDimension = 8192

// DecodeImage decodes PNG, JPEG, GIF, BMP or WEBP bytes.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrInvalidImage, cfg.Width, cfg.Height, MaxDimension, MaxDimension)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, format, nil
}

// DecodeBase64 decodes an image given as raw base64 or as a
// data:image/...;base64, URL.
func DecodeBase64(s string) (image.Image, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", ErrEmptyImage
	}
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.Contains(s[:i], ";base64") {
			return nil, "", fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		s = s[i+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some clients drop the padding.
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}
	return DecodeImage(raw)
}

// EncodeDataURL encodes img as a PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
