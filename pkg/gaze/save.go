package gaze

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// Saver writes crops to disk as PNG.
type Saver struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewSaver returns a saver that auto-names files under dir.
func NewSaver(dir string, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{dir: dir, now: time.Now, logger: logger.With("component", "gaze")}
}

// Name returns the file name used for a crop at p.
func (s *Saver) Name(p Point) string {
	return fmt.Sprintf("gaze_crop_%s_%.3f_%.3f.png", s.now().Format("20060102_150405.000"), p.X, p.Y)
}

// Save encodes img and writes it to path, or to an auto-named file in the
// saver's directory when path is empty. It returns the written path.
func (s *Saver) Save(img image.Image, p Point, path string) (string, error) {
	if img == nil {
		return "", ErrEmptyImage
	}
	if path == "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return "", fmt.Errorf("create crop dir: %w", err)
		}
		path = filepath.Join(s.dir, s.Name(p))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode crop: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write crop: %w", err)
	}

	b := img.Bounds()
	s.logger.Info("saved gaze crop", "path", path, "width", b.Dx(), "height", b.Dy(),
		"size", humanize.Bytes(uint64(buf.Len())))
	return path, nil
}
