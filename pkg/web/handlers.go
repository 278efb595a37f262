package web

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-xeo/pkg/inference"
	"github.com/teslashibe/go-xeo/pkg/intent"
	"github.com/teslashibe/go-xeo/pkg/state"
	"github.com/teslashibe/go-xeo/pkg/tools"
)

// restTool labels mutations made through the REST API in logs and metrics.
const restTool = "rest"

func (s *Server) handleListDevices(c *fiber.Ctx) error {
	return c.JSON(s.store.Devices())
}

func (s *Server) handleGetDevice(c *fiber.Ctx) error {
	dev, err := s.store.Device(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusNotFound, "Device not found")
	}
	return c.JSON(dev)
}

// handleConnectDevice toggles a device's connection state.
func (s *Server) handleConnectDevice(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.store.Device(id); err != nil {
		return fail(c, fiber.StatusNotFound, "Device not found")
	}

	res := s.direct.Dispatch(c.UserContext(), tools.ToggleDevice{Tool: restTool, DeviceID: id})
	if !res.Success {
		return fail(c, fiber.StatusConflict, "%s", res.Message)
	}
	dev, _ := s.store.Device(id)
	return c.JSON(fiber.Map{
		"status": res.Status,
		"device": state.Device{ID: id, Name: dev.Name, Connected: *res.Connected},
	})
}

func (s *Server) handleListSettings(c *fiber.Ctx) error {
	return c.JSON(s.store.Settings())
}

func (s *Server) handleGetSetting(c *fiber.Ctx) error {
	st, err := s.store.Setting(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusNotFound, "Setting not found")
	}
	return c.JSON(st)
}

// handleUpdateSetting sets a setting from {"value": int}.
func (s *Server) handleUpdateSetting(c *fiber.Ctx) error {
	id := c.Params("id")
	st, err := s.store.Setting(id)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "Setting not found")
	}

	var body map[string]any
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	raw, ok := body["value"]
	if !ok || raw == nil {
		return fail(c, fiber.StatusBadRequest, "Value is required")
	}
	value, ok := intValue(raw)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Value must be a number")
	}
	if !st.InRange(value) {
		return fail(c, fiber.StatusBadRequest, "Invalid value range")
	}

	res := s.direct.Dispatch(c.UserContext(), tools.AdjustSetting{Tool: restTool, SettingID: id, Value: value})
	if !res.Success {
		if strings.Contains(res.Message, state.ErrOutOfRange.Error()) {
			return fail(c, fiber.StatusBadRequest, "Invalid value range")
		}
		return fail(c, fiber.StatusConflict, "%s", res.Message)
	}
	return c.JSON(fiber.Map{
		"setting_id": id,
		"value":      *res.NewValue,
		"old_value":  *res.OldValue,
	})
}

// intValue accepts JSON numbers with no fractional part and numeric strings.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func (s *Server) handleListTools(c *fiber.Ctx) error {
	return c.JSON(s.processor.Registry().Catalog())
}

type parseRequest struct {
	Text    string `json:"text"`
	Execute bool   `json:"execute"`
}

// handleParseTools extracts and validates tool calls from raw model text,
// optionally dispatching the valid ones.
func (s *Server) handleParseTools(c *fiber.Ctx) error {
	var req parseRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return fail(c, fiber.StatusBadRequest, "Text is required")
	}

	candidates := s.processor.Extractor().Extract(req.Text)
	if candidates == nil {
		candidates = []tools.Candidate{}
	}
	calls, errs := tools.Parse(s.processor.Extractor(), s.processor.Registry(), req.Text)
	if calls == nil {
		calls = []tools.Call{}
	}

	rejected := make([]string, 0, len(errs))
	for _, err := range errs {
		rejected = append(rejected, err.Error())
	}
	resp := fiber.Map{
		"candidates": candidates,
		"calls":      calls,
		"rejected":   rejected,
		"text":       s.processor.Extractor().Strip(req.Text),
	}
	if req.Execute {
		resp["results"] = s.calls.DispatchAll(c.UserContext(), calls)
	}
	return c.JSON(resp)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Message is required")
	}
	resp, err := s.processor.Chat(c.UserContext(), req.Message)
	if errors.Is(err, intent.ErrEmptyMessage) {
		return fail(c, fiber.StatusBadRequest, "Message is required")
	}
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	return c.JSON(s.processor.Transcript())
}

// handleHealth reports liveness and, when the model supports health checks, its
// availability.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok"}
	if s.hub != nil {
		resp["clients"] = s.hub.ClientCount()
	}

	m := s.processor.Model()
	if m == nil {
		resp["model"] = "none"
		return c.JSON(resp)
	}
	resp["model"] = m.Name()
	if hc, ok := m.(inference.HealthChecker); ok {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := hc.Health(ctx); err != nil {
			resp["status"] = "degraded"
			resp["model_error"] = err.Error()
		}
	}
	return c.JSON(resp)
}
