// Package web serves the panel's REST API and event socket.
package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-xeo/pkg/dispatch"
	"github.com/teslashibe/go-xeo/pkg/gaze"
	"github.com/teslashibe/go-xeo/pkg/hub"
	"github.com/teslashibe/go-xeo/pkg/intent"
	"github.com/teslashibe/go-xeo/pkg/metrics"
	"github.com/teslashibe/go-xeo/pkg/state"
)

// DefaultBodyLimit fits a base64 encoded full-HD screenshot.
const DefaultBodyLimit = 16 * 1024 * 1024

// Config holds HTTP settings.
type Config struct {
	// StaticDir is served at / when set.
	StaticDir string

	BodyLimit int

	// SaveCrops persists gaze crops taken by /api/phi/intent.
	SaveCrops bool
}

// Deps are the components behind the API.
type Deps struct {
	Store state.Store

	// Dispatcher applies model tool calls, with confirmation if configured.
	Dispatcher *dispatch.Dispatcher

	Processor *intent.Processor
	Hub       *hub.Hub
	Saver     *gaze.Saver
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Server is the panel HTTP server.
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	store     state.Store
	calls     *dispatch.Dispatcher
	direct    *dispatch.Dispatcher
	processor *intent.Processor
	hub       *hub.Hub
	saver     *gaze.Saver
	metrics   *metrics.Metrics
}

// NewServer builds the fiber app and registers all routes.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		store:     deps.Store,
		calls:     deps.Dispatcher,
		processor: deps.Processor,
		hub:       deps.Hub,
		saver:     deps.Saver,
		metrics:   deps.Metrics,
	}

	// Direct REST mutations are authoritative: no remote confirmation.
	opts := []dispatch.Option{dispatch.WithMetrics(deps.Metrics), dispatch.WithLogger(logger)}
	if deps.Hub != nil {
		opts = append(opts, dispatch.WithNotifier(deps.Hub))
	}
	s.direct = dispatch.New(deps.Store, opts...)
	if s.calls == nil {
		s.calls = s.direct
	}
	if deps.Hub != nil && deps.Metrics != nil {
		deps.Hub.OnClientCount = deps.Metrics.WSClients
	}

	app := fiber.New(fiber.Config{
		AppName:               "XEO Panel",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(cors.New())
	app.Use(s.logRequests)

	api := app.Group("/api")
	api.Get("/devices", s.handleListDevices)
	api.Get("/devices/:id", s.handleGetDevice)
	api.Post("/devices/:id/connect", s.handleConnectDevice)
	api.Get("/settings", s.handleListSettings)
	api.Get("/settings/:id", s.handleGetSetting)
	api.Put("/settings/:id", s.handleUpdateSetting)
	api.Get("/tools", s.handleListTools)
	api.Post("/tools/parse", s.handleParseTools)
	api.Post("/mcp/chat", s.handleChat)
	api.Get("/history", s.handleHistory)
	api.Post("/phi/analyze_ui", s.handleAnalyzeUI)
	api.Post("/phi/intent", s.handleIntent)
	api.Post("/phi/crop", s.handleCrop)

	app.Get("/healthz", s.handleHealth)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	if deps.Hub != nil {
		app.Get("/ws", websocket.New(deps.Hub.Serve))
	}

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops the server, waiting up to timeout for open requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", time.Since(start),
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
	)
	return err
}

// handleError renders every error as {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func fail(c *fiber.Ctx, code int, format string, args ...any) error {
	return c.Status(code).JSON(fiber.Map{"error": fmt.Sprintf(format, args...)})
}
