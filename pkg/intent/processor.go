// Package intent turns screenshots, gestures and chat messages into tool
// calls against the panel.
//
// A Processor owns the model, the tool registry and the dispatcher. It
// offers three flows:
//
//   - AnalyzeUI describes a screenshot, cached by pixel fingerprint.
//   - InferIntent combines the description with a gesture and an optional
//     gaze point and reports the tool calls the model proposes.
//   - Chat runs a tool-mode conversation turn and executes the calls.
package intent

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/teslashibe/go-xeo/internal/telemetry"
	"github.com/teslashibe/go-xeo/pkg/dispatch"
	"github.com/teslashibe/go-xeo/pkg/gaze"
	"github.com/teslashibe/go-xeo/pkg/history"
	"github.com/teslashibe/go-xeo/pkg/inference"
	"github.com/teslashibe/go-xeo/pkg/metrics"
	"github.com/teslashibe/go-xeo/pkg/prompt"
	"github.com/teslashibe/go-xeo/pkg/tools"
)

// ErrNoModel is returned by model-backed flows when no model is configured.
var ErrNoModel = errors.New("no model configured")

// Token limits per task.
const (
	DefaultAnalyzeMaxTokens = 256
	DefaultIntentMaxTokens  = 400
	DefaultChatMaxTokens    = 250
	DefaultCacheSize        = 32
)

// Limits caps generation length per task.
type Limits struct {
	Analyze int
	Intent  int
	Chat    int
}

// Processor runs the model-backed flows of the panel.
type Processor struct {
	model      inference.Model
	registry   *tools.Registry
	extractor  *tools.Extractor
	assembler  *prompt.Assembler
	dispatcher *dispatch.Dispatcher
	history    *history.History
	notifier   dispatch.Notifier
	saver      *gaze.Saver
	metrics    *metrics.Metrics
	logger     *slog.Logger

	cache        *lru.Cache[[sha256.Size]byte, Analysis]
	cacheSize    int
	limits       Limits
	cropRadius   float64
	nativeTools  bool
	catalogTools []inference.Tool
}

// Option configures a Processor.
type Option func(*Processor)

// WithModel sets the model. Without one, AnalyzeUI and InferIntent fail
// with ErrNoModel and Chat answers with canned help text.
func WithModel(m inference.Model) Option {
	return func(p *Processor) { p.model = m }
}

// WithHistory sets the shared chat transcript.
func WithHistory(h *history.History) Option {
	return func(p *Processor) { p.history = h }
}

// WithNotifier publishes intent and chat events.
func WithNotifier(n dispatch.Notifier) Option {
	return func(p *Processor) { p.notifier = n }
}

// WithSaver persists gaze crops.
func WithSaver(s *gaze.Saver) Option {
	return func(p *Processor) { p.saver = s }
}

// WithMetrics records cache lookups, model latency and candidates.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithExtractor overrides the tool-call extractor.
func WithExtractor(e *tools.Extractor) Option {
	return func(p *Processor) { p.extractor = e }
}

// WithLimits overrides the per-task token limits. Zero fields keep the
// defaults.
func WithLimits(l Limits) Option {
	return func(p *Processor) {
		if l.Analyze > 0 {
			p.limits.Analyze = l.Analyze
		}
		if l.Intent > 0 {
			p.limits.Intent = l.Intent
		}
		if l.Chat > 0 {
			p.limits.Chat = l.Chat
		}
	}
}

// WithCacheSize sets the number of cached UI analyses.
func WithCacheSize(n int) Option {
	return func(p *Processor) { p.cacheSize = n }
}

// WithCropRadius sets the default gaze crop radius.
func WithCropRadius(r float64) Option {
	return func(p *Processor) { p.cropRadius = r }
}

// WithNativeTools also offers the catalog as native function tools, for
// backends that support OpenAI tool calling.
func WithNativeTools(enabled bool) Option {
	return func(p *Processor) { p.nativeTools = enabled }
}

// New creates a processor over reg and d.
func New(reg *tools.Registry, d *dispatch.Dispatcher, opts ...Option) (*Processor, error) {
	p := &Processor{
		registry:   reg,
		dispatcher: d,
		logger:     slog.Default(),
		cacheSize:  DefaultCacheSize,
		cropRadius: gaze.DefaultRadius,
		limits: Limits{
			Analyze: DefaultAnalyzeMaxTokens,
			Intent:  DefaultIntentMaxTokens,
			Chat:    DefaultChatMaxTokens,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "intent")

	if p.extractor == nil {
		p.extractor = tools.NewExtractor(tools.WithLogger(p.logger))
	}
	if p.history == nil {
		p.history = history.New(history.DefaultMaxTurns)
	}

	catalog, err := reg.CatalogJSON()
	if err != nil {
		return nil, fmt.Errorf("render tool catalog: %w", err)
	}
	p.assembler = prompt.New(catalog)

	if p.nativeTools {
		for _, def := range reg.List() {
			p.catalogTools = append(p.catalogTools, inference.NewTool(def.Name, def.Description, def.JSONSchema()))
		}
	}

	if p.cacheSize > 0 {
		cache, err := lru.New[[sha256.Size]byte, Analysis](p.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create ui cache: %w", err)
		}
		p.cache = cache
	}
	return p, nil
}

// Registry returns the tool registry.
func (p *Processor) Registry() *tools.Registry { return p.registry }

// Extractor returns the tool-call extractor.
func (p *Processor) Extractor() *tools.Extractor { return p.extractor }

// History returns the chat transcript.
func (p *Processor) History() *history.History { return p.history }

// Model returns the configured model, or nil.
func (p *Processor) Model() inference.Model { return p.model }

// Analysis is a UI description.
type Analysis struct {
	Text    string        `json:"analysis"`
	Elapsed time.Duration `json:"-"`
	Cached  bool          `json:"cached"`
}

// Seconds is the model time in seconds.
func (a Analysis) Seconds() float64 { return a.Elapsed.Seconds() }

// AnalyzeUI describes the screenshot. Results are cached by a fingerprint
// of the image pixels.
func (p *Processor) AnalyzeUI(ctx context.Context, img image.Image) (Analysis, error) {
	if img == nil || img.Bounds().Empty() {
		return Analysis{}, gaze.ErrEmptyImage
	}
	if p.model == nil {
		return Analysis{}, ErrNoModel
	}

	key := fingerprint(img)
	if p.cache != nil {
		if a, ok := p.cache.Get(key); ok {
			p.metrics.CacheLookup(true)
			p.logger.Debug("ui analysis cache hit")
			a.Cached = true
			return a, nil
		}
		p.metrics.CacheLookup(false)
	}

	pr := p.assembler.AnalyzeUI()
	gen, err := p.generate(ctx, "analyze_ui", &inference.GenerateRequest{
		System:    pr.System,
		Prompt:    pr.User,
		Image:     img,
		MaxTokens: p.limits.Analyze,
	})
	if err != nil {
		return Analysis{}, err
	}

	a := Analysis{Text: gen.Text, Elapsed: gen.Elapsed}
	if p.cache != nil {
		p.cache.Add(key, a)
	}
	return a, nil
}

// generate invokes the model under a span and records latency.
func (p *Processor) generate(ctx context.Context, task string, req *inference.GenerateRequest) (*inference.Generation, error) {
	ctx, span := telemetry.Tracer("intent").Start(ctx, "generate "+task)
	defer span.End()
	span.SetAttributes(
		attribute.String("xeo.model", p.model.Name()),
		attribute.Bool("xeo.tool_mode", req.ToolMode),
		attribute.Bool("xeo.image", req.Image != nil),
	)

	start := time.Now()
	gen, err := p.model.Generate(ctx, req)
	elapsed := time.Since(start)
	p.metrics.ModelLatency(task, elapsed, err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("generation failed", "task", task, "model", p.model.Name(), "error", err)
		return nil, fmt.Errorf("%s: %w", task, err)
	}
	if gen.Elapsed == 0 {
		gen.Elapsed = elapsed
	}
	p.logger.Debug("generation complete", "task", task, "elapsed", gen.Elapsed, "tokens", gen.Usage.TotalTokens)
	return gen, nil
}

// candidates collects text and native tool calls of a generation.
func (p *Processor) candidates(gen *inference.Generation) []tools.Candidate {
	fromText := p.extractor.Extract(gen.Text)
	native := tools.FromNative(gen.ToolCalls)
	p.metrics.Candidates("text", len(fromText))
	p.metrics.Candidates("native", len(native))
	return append(fromText, native...)
}

func (p *Processor) publish(event string, data any) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Publish(event, data); err != nil {
		p.logger.Warn("publish failed", "event", event, "error", err)
	}
}

// fingerprint hashes the bounds and pixels of img.
func fingerprint(img image.Image) [sha256.Size]byte {
	h := sha256.New()
	b := img.Bounds()
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(b.Min.X))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(b.Min.Y))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(b.Dx()))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(b.Dy()))
	h.Write(hdr[:])

	switch m := img.(type) {
	case *image.RGBA:
		h.Write(m.Pix)
	case *image.NRGBA:
		h.Write(m.Pix)
	case *image.Gray:
		h.Write(m.Pix)
	case *image.YCbCr:
		h.Write(m.Y)
		h.Write(m.Cb)
		h.Write(m.Cr)
	default:
		var px [8]byte
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, a := img.At(x, y).RGBA()
				binary.LittleEndian.PutUint16(px[0:], uint16(r))
				binary.LittleEndian.PutUint16(px[2:], uint16(g))
				binary.LittleEndian.PutUint16(px[4:], uint16(bl))
				binary.LittleEndian.PutUint16(px[6:], uint16(a))
				h.Write(px[:])
			}
		}
	}

	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
