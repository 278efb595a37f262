package inference

import (
	"context"
	"log/slog"
	"strings"
)

// Chain tries multiple models in order until one succeeds. The usual setup
// is the remote client first and the simulator as a last resort.
type Chain struct {
	models []Model
	logger *slog.Logger
}

// NewChain creates a model chain. At least one model is required.
func NewChain(logger *slog.Logger, models ...Model) (*Chain, error) {
	if len(models) == 0 {
		return nil, ErrModelUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		models: models,
		logger: logger.With("component", "inference.chain"),
	}, nil
}

// Name implements Model.
func (c *Chain) Name() string {
	names := make([]string, len(c.models))
	for i, m := range c.models {
		names[i] = m.Name()
	}
	return strings.Join(names, ">")
}

// Generate tries each model until one succeeds.
func (c *Chain) Generate(ctx context.Context, req *GenerateRequest) (*Generation, error) {
	var failed []Failure

	for i, m := range c.models {
		gen, err := m.Generate(ctx, req)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback model succeeded", "model", m.Name(), "index", i)
			}
			return gen, nil
		}

		failed = append(failed, Failure{Model: m.Name(), Err: err})
		c.logger.Warn("model failed, trying next", "model", m.Name(), "error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &ChainError{Failures: failed}
}

// Health reports healthy when any model that can check health is healthy.
// Models without a health check count as healthy.
func (c *Chain) Health(ctx context.Context) error {
	var failed []Failure
	for _, m := range c.models {
		hc, ok := m.(HealthChecker)
		if !ok {
			return nil
		}
		if err := hc.Health(ctx); err != nil {
			failed = append(failed, Failure{Model: m.Name(), Err: err})
			continue
		}
		return nil
	}
	return &ChainError{Failures: failed}
}

// Models returns the models in the chain.
func (c *Chain) Models() []Model {
	return c.models
}

// Verify Chain implements Model at compile time.
var (
	_ Model         = (*Chain)(nil)
	_ HealthChecker = (*Chain)(nil)
)
