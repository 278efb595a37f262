package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-xeo/internal/config"
	"github.com/teslashibe/go-xeo/internal/httpc"
	"github.com/teslashibe/go-xeo/internal/log"
	"github.com/teslashibe/go-xeo/internal/telemetry"
	"github.com/teslashibe/go-xeo/pkg/confirm"
	"github.com/teslashibe/go-xeo/pkg/dispatch"
	"github.com/teslashibe/go-xeo/pkg/gaze"
	"github.com/teslashibe/go-xeo/pkg/history"
	"github.com/teslashibe/go-xeo/pkg/hub"
	"github.com/teslashibe/go-xeo/pkg/inference"
	"github.com/teslashibe/go-xeo/pkg/intent"
	"github.com/teslashibe/go-xeo/pkg/metrics"
	"github.com/teslashibe/go-xeo/pkg/state"
	"github.com/teslashibe/go-xeo/pkg/tools"
	"github.com/teslashibe/go-xeo/pkg/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port int
		mode string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the panel HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("mode") {
				cfg.Model.Mode = mode
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	cmd.Flags().StringVar(&mode, "mode", "", "model mode: remote, simulated, off (overrides model.mode)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := log.L()

	if cfg.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracer(telemetry.ServiceName, os.Stderr, logger)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	var m *metrics.Metrics
	if cfg.Telemetry.Metrics {
		m = metrics.New()
	}

	store := state.NewDefaultStore()
	events := hub.New("events", logger)

	d, err := buildDispatcher(ctx, cfg.Confirm, store, events, m, logger)
	if err != nil {
		return err
	}

	model, err := buildModel(cfg.Model, logger)
	if err != nil {
		return err
	}

	saver := gaze.NewSaver(cfg.Crop.Dir, logger)
	intentOpts := []intent.Option{
		intent.WithHistory(history.New(cfg.History.MaxTurns)),
		intent.WithNotifier(events),
		intent.WithSaver(saver),
		intent.WithMetrics(m),
		intent.WithLogger(logger),
		intent.WithCacheSize(cfg.Cache.UISize),
		intent.WithCropRadius(cfg.Crop.Radius),
		intent.WithNativeTools(cfg.Model.NativeTools),
		intent.WithLimits(intent.Limits{
			Analyze: cfg.Model.AnalyzeMaxTokens,
			Intent:  cfg.Model.IntentMaxTokens,
			Chat:    cfg.Model.ChatMaxTokens,
		}),
	}
	if model != nil {
		intentOpts = append(intentOpts, intent.WithModel(model))
	}
	processor, err := intent.New(tools.DefaultRegistry(), d, intentOpts...)
	if err != nil {
		return err
	}

	srv := web.NewServer(web.Config{
		StaticDir: cfg.Server.StaticDir,
		BodyLimit: cfg.Server.BodyLimit,
		SaveCrops: cfg.Crop.Save,
	}, web.Deps{
		Store:      store,
		Dispatcher: d,
		Processor:  processor,
		Hub:        events,
		Saver:      saver,
		Metrics:    m,
		Logger:     logger,
	})

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go events.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	modelName := "none"
	if model != nil {
		modelName = model.Name()
	}
	logger.Info("xeo panel started", "port", cfg.Server.Port, "mode", cfg.Model.Mode, "model", modelName)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return srv.Shutdown(10 * time.Second)
}

// buildDispatcher wires remote confirmation when an authority is configured.
func buildDispatcher(ctx context.Context, cfg config.ConfirmConfig, store state.Store, events *hub.Hub, m *metrics.Metrics, logger *slog.Logger) (*dispatch.Dispatcher, error) {
	opts := []dispatch.Option{
		dispatch.WithNotifier(events),
		dispatch.WithMetrics(m),
		dispatch.WithLogger(logger),
	}
	if cfg.BaseURL != "" {
		c, err := confirm.NewHTTP(ctx, confirm.HTTPConfig{
			BaseURL:      cfg.BaseURL,
			Token:        cfg.Token,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}, httpc.NewTracedClient(cfg.Timeout, "confirm"), logger)
		if err != nil {
			return nil, fmt.Errorf("confirmation client: %w", err)
		}
		opts = append(opts, dispatch.WithConfirmer(c))
		logger.Info("remote confirmation enabled", "authority", cfg.BaseURL)
	}
	return dispatch.New(store, opts...), nil
}

// buildModel returns the model for the configured mode, or nil when the
// model is off.
func buildModel(cfg config.ModelConfig, logger *slog.Logger) (inference.Model, error) {
	switch cfg.Mode {
	case config.ModeOff:
		return nil, nil
	case config.ModeSimulated:
		return inference.NewSimulator(cfg.Latency), nil
	}

	client, err := inference.NewClient(
		inference.WithBaseURL(cfg.BaseURL),
		inference.WithAPIKey(cfg.APIKey),
		inference.WithModel(cfg.Name),
		inference.WithMaxTokens(cfg.MaxTokens),
		inference.WithRetry(cfg.Retries, time.Second),
		inference.WithHTTPClient(httpc.NewTracedClient(cfg.Timeout, "inference")),
		inference.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("model client: %w", err)
	}
	if !cfg.Fallback {
		return client, nil
	}
	return inference.NewChain(logger, client, inference.NewSimulator(0))
}
