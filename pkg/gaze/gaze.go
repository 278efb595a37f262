// Package gaze extracts the region of a screenshot around a gaze point.
package gaze

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrInvalidPoint is returned for gaze coordinates outside [0, 1].
	ErrInvalidPoint = errors.New("gaze point outside [0, 1]")

	// ErrInvalidRadius is returned for a negative or non-finite radius.
	ErrInvalidRadius = errors.New("invalid crop radius")

	// ErrEmptyImage is returned for a nil or zero-sized image.
	ErrEmptyImage = errors.New("empty image")

	// ErrInvalidImage is returned when image bytes cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")
)

// DefaultRadius is the crop radius as a fraction of the shorter image side.
const DefaultRadius = 0.1

// Point is a normalized gaze position; (0,0) is top left, (1,1) bottom right.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Valid reports whether both coordinates are within [0, 1].
func (p Point) Valid() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// Box is a pixel rectangle, right and bottom exclusive.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Rect converts b to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Dx is the box width.
func (b Box) Dx() int { return b.Right - b.Left }

// Dy is the box height.
func (b Box) Dy() int { return b.Bottom - b.Top }

// Array returns the box as [left, top, right, bottom].
func (b Box) Array() [4]int {
	return [4]int{b.Left, b.Top, b.Right, b.Bottom}
}

// CropBox computes the square around p for a width x height image. The
// half side is radius times the shorter side, truncated, and the box is
// clamped to the image bounds.
func CropBox(width, height int, p Point, radius float64) (Box, error) {
	if width <= 0 || height <= 0 {
		return Box{}, ErrEmptyImage
	}
	if !p.Valid() {
		return Box{}, fmt.Errorf("%w: (%g, %g)", ErrInvalidPoint, p.X, p.Y)
	}
	if radius < 0 || radius != radius || radius > 1 {
		return Box{}, fmt.Errorf("%w: %g", ErrInvalidRadius, radius)
	}

	r := int(radius * float64(min(width, height)))
	cx := int(p.X * float64(width))
	cy := int(p.Y * float64(height))

	return Box{
		Left:   max(0, cx-r),
		Top:    max(0, cy-r),
		Right:  min(width, cx+r),
		Bottom: min(height, cy+r),
	}, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the region of img around p along with its box. The result
// shares pixels with img when the image type supports SubImage, otherwise
// the region is copied.
func Crop(img image.Image, p Point, radius float64) (image.Image, Box, error) {
	if img == nil {
		return nil, Box{}, ErrEmptyImage
	}
	b := img.Bounds()
	box, err := CropBox(b.Dx(), b.Dy(), p, radius)
	if err != nil {
		return nil, Box{}, err
	}
	if box.Dx() <= 0 || box.Dy() <= 0 {
		return nil, box, fmt.Errorf("%w: crop region is empty", ErrInvalidRadius)
	}

	rect := box.Rect().Add(b.Min)
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect), box, nil
	}

	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out, box, nil
}
