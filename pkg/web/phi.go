package web

import (
	"errors"
	"image"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-xeo/pkg/gaze"
	"github.com/teslashibe/go-xeo/pkg/intent"
)

type analyzeRequest struct {
	Image string `json:"image"`
}

type intentRequest struct {
	Image      string            `json:"image"`
	Gesture    string            `json:"gesture"`
	Confidence *float64          `json:"confidence"`
	Gaze       *intent.GazeInput `json:"gaze"`
}

type cropRequest struct {
	Image  string   `json:"image"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Radius *float64 `json:"radius"`
	Save   bool     `json:"save"`
}

// decodeImage parses the request's base64 image or writes a 400.
func decodeImage(c *fiber.Ctx, data string) (image.Image, error) {
	if strings.TrimSpace(data) == "" {
		return nil, fail(c, fiber.StatusBadRequest, "No image provided")
	}
	img, _, err := gaze.DecodeBase64(data)
	if err != nil {
		return nil, fail(c, fiber.StatusBadRequest, "Unable to process image: %v", err)
	}
	return img, nil
}

// modelError maps processor errors to status codes.
func modelError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, intent.ErrNoModel):
		return fail(c, fiber.StatusServiceUnavailable, "Model not configured")
	case errors.Is(err, gaze.ErrInvalidPoint), errors.Is(err, gaze.ErrEmptyImage), errors.Is(err, gaze.ErrInvalidRadius):
		return fail(c, fiber.StatusBadRequest, "%v", err)
	default:
		return fail(c, fiber.StatusInternalServerError, "%v", err)
	}
}

func (s *Server) handleAnalyzeUI(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "No image provided")
	}
	img, err := decodeImage(c, req.Image)
	if img == nil {
		return err
	}

	a, err := s.processor.AnalyzeUI(c.UserContext(), img)
	if err != nil {
		return modelError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":       true,
		"analysis":      a.Text,
		"cached":        a.Cached,
		"response_time": a.Seconds(),
	})
}

func (s *Server) handleIntent(c *fiber.Ctx) error {
	var req intentRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "No image provided")
	}
	img, err := decodeImage(c, req.Image)
	if img == nil {
		return err
	}

	res, err := s.processor.InferIntent(c.UserContext(), intent.IntentRequest{
		Image:      img,
		Gesture:    req.Gesture,
		Confidence: req.Confidence,
		Gaze:       req.Gaze,
		SaveCrop:   s.cfg.SaveCrops,
	})
	if err != nil {
		return modelError(c, err)
	}
	return c.JSON(struct {
		Success bool `json:"success"`
		*intent.IntentResult
	}{true, res})
}

// handleCrop cuts the region around a gaze point and returns it as a PNG
// data URL.
func (s *Server) handleCrop(c *fiber.Ctx) error {
	var req cropRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "No image provided")
	}
	if req.X == nil || req.Y == nil {
		return fail(c, fiber.StatusBadRequest, "Coordinates x and y are required")
	}
	img, err := decodeImage(c, req.Image)
	if img == nil {
		return err
	}

	radius := gaze.DefaultRadius
	if req.Radius != nil {
		radius = *req.Radius
	}
	pt := gaze.Point{X: *req.X, Y: *req.Y}
	crop, box, err := gaze.Crop(img, pt, radius)
	if err != nil {
		return modelError(c, err)
	}

	url, err := gaze.EncodeDataURL(crop)
	if err != nil {
		return err
	}
	resp := fiber.Map{
		"box":    box.Array(),
		"width":  box.Dx(),
		"height": box.Dy(),
		"image":  url,
	}
	if req.Save && s.saver != nil {
		path, err := s.saver.Save(crop, pt, "")
		if err != nil {
			return err
		}
		resp["path"] = path
	}
	return c.JSON(resp)
}
