package gaze

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-xeo/internal/log"
)

func TestCropBox(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		p      Point
		radius float64
		want   Box
	}{
		{"center", 800, 600, Point{0.5, 0.5}, 0.1, Box{340, 240, 460, 360}},
		{"top left clamps", 800, 600, Point{0, 0}, 0.1, Box{0, 0, 60, 60}},
		{"bottom right clamps", 800, 600, Point{1, 1}, 0.1, Box{740, 540, 800, 600}},
		{"portrait uses width", 400, 1000, Point{0.5, 0.5}, 0.25, Box{100, 400, 300, 600}},
		{"zero radius", 100, 100, Point{0.3, 0.3}, 0, Box{30, 30, 30, 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CropBox(tt.w, tt.h, tt.p, tt.radius)
			if err != nil {
				t.Fatalf("CropBox failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want.Array(), got.Array())
			}
		})
	}
}

func TestCropBoxErrors(t *testing.T) {
	if _, err := CropBox(800, 600, Point{1.2, 0.5}, 0.1); !errors.Is(err, ErrInvalidPoint) {
		t.Errorf("Expected ErrInvalidPoint, got %v", err)
	}
	if _, err := CropBox(800, 600, Point{0.5, -0.1}, 0.1); !errors.Is(err, ErrInvalidPoint) {
		t.Errorf("Expected ErrInvalidPoint, got %v", err)
	}
	if _, err := CropBox(0, 600, Point{0.5, 0.5}, 0.1); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Expected ErrEmptyImage, got %v", err)
	}
	if _, err := CropBox(800, 600, Point{0.5, 0.5}, -1); !errors.Is(err, ErrInvalidRadius) {
		t.Errorf("Expected ErrInvalidRadius, got %v", err)
	}
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	return img
}

func TestCrop(t *testing.T) {
	img := testImage(800, 600)

	out, box, err := Crop(img, Point{0.5, 0.5}, 0.1)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if box != (Box{340, 240, 460, 360}) {
		t.Errorf("Unexpected box %v", box.Array())
	}
	b := out.Bounds()
	if b.Dx() != 120 || b.Dy() != 120 {
		t.Errorf("Expected 120x120 crop, got %dx%d", b.Dx(), b.Dy())
	}
	if got := out.At(b.Min.X, b.Min.Y); got != img.At(340, 240) {
		t.Errorf("Expected crop origin to match source pixel, got %v", got)
	}
}

func TestCropErrors(t *testing.T) {
	if _, _, err := Crop(nil, Point{0.5, 0.5}, 0.1); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Expected ErrEmptyImage, got %v", err)
	}
	if _, _, err := Crop(image.NewRGBA(image.Rect(0, 0, 0, 0)), Point{0.5, 0.5}, 0.1); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Expected ErrEmptyImage for zero-sized image, got %v", err)
	}
	if _, _, err := Crop(testImage(10, 10), Point{2, 0}, 0.1); !errors.Is(err, ErrInvalidPoint) {
		t.Errorf("Expected ErrInvalidPoint, got %v", err)
	}
	if _, _, err := Crop(testImage(10, 10), Point{0.5, 0.5}, 0); !errors.Is(err, ErrInvalidRadius) {
		t.Errorf("Expected empty region error, got %v", err)
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeBase64(t *testing.T) {
	raw := encodePNG(t, testImage(16, 8))
	b64 := base64.StdEncoding.EncodeToString(raw)

	for name, in := range map[string]string{
		"raw":      b64,
		"data url": "data:image/png;base64," + b64,
		"unpadded": strings.TrimRight(b64, "="),
	} {
		t.Run(name, func(t *testing.T) {
			img, format, err := DecodeBase64(in)
			if err != nil {
				t.Fatalf("DecodeBase64 failed: %v", err)
			}
			if format != "png" {
				t.Errorf("Expected png, got %s", format)
			}
			if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
				t.Errorf("Unexpected bounds %v", img.Bounds())
			}
		})
	}
}

func TestDecodeBase64Invalid(t *testing.T) {
	for _, in := range []string{"!!!not base64", "data:image/png,abc", base64.StdEncoding.EncodeToString([]byte("plain text"))} {
		if _, _, err := DecodeBase64(in); !errors.Is(err, ErrInvalidImage) {
			t.Errorf("DecodeBase64(%q): expected ErrInvalidImage, got %v", in, err)
		}
	}
	if _, _, err := DecodeBase64("  "); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Expected ErrEmptyImage, got %v", err)
	}
}

// oversizedPNG encodes a 1x1 PNG and rewrites its IHDR to claim w x h.
func oversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	// 8-byte signature, then length(4) "IHDR"(4) width(4) height(4) ... crc.
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeImageRejectsOversized(t *testing.T) {
	for _, dims := range [][2]uint32{{100000, 100000}, {MaxDimension + 1, 1}, {1, MaxDimension + 1}} {
		_, _, err := DecodeImage(oversizedPNG(t, dims[0], dims[1]))
		if !errors.Is(err, ErrInvalidImage) {
			t.Errorf("Expected ErrInvalidImage for %dx%d, got %v", dims[0], dims[1], err)
		}
	}

	img, _, err := DecodeImage(oversizedPNG(t, 1, 1))
	if err != nil {
		t.Fatalf("Expected 1x1 PNG to decode, got %v", err)
	}
	if img.Bounds().Dx() != 1 {
		t.Errorf("Expected width 1, got %d", img.Bounds().Dx())
	}

	encoded := base64.StdEncoding.EncodeToString(oversizedPNG(t, 50000, 50000))
	if _, _, err := DecodeBase64(encoded); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Expected DecodeBase64 to reject oversized image, got %v", err)
	}
}

func TestSaverAutoName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "crops")
	s := NewSaver(dir, log.Discard())
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	path, err := s.Save(testImage(20, 20), Point{0.25, 0.75}, "")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	want := filepath.Join(dir, "gaze_crop_20260102_030405.000_0.250_0.750.png")
	if path != want {
		t.Errorf("Expected %s, got %s", want, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	img, format, err := DecodeImage(data)
	if err != nil || format != "png" || img.Bounds().Dx() != 20 {
		t.Errorf("Saved file did not round trip: %v %s", err, format)
	}
}

func TestSaverExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.png")
	got, err := NewSaver("unused", log.Discard()).Save(testImage(4, 4), Point{}, path)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got != path {
		t.Errorf("Expected %s, got %s", path, got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected file at %s: %v", path, err)
	}
}

func TestEncodeDataURLRoundTrip(t *testing.T) {
	url, err := EncodeDataURL(testImage(6, 3))
	if err != nil {
		t.Fatalf("EncodeDataURL failed: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("Unexpected prefix in %q", url[:30])
	}
	img, _, err := DecodeBase64(url)
	if err != nil {
		t.Fatalf("DecodeBase64 failed: %v", err)
	}
	if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 3 {
		t.Errorf("Unexpected bounds %v", img.Bounds())
	}
}
