package intent

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/teslashibe/go-xeo/internal/telemetry"
	"github.com/teslashibe/go-xeo/pkg/gaze"
	"github.com/teslashibe/go-xeo/pkg/hub"
	"github.com/teslashibe/go-xeo/pkg/inference"
	"github.com/teslashibe/go-xeo/pkg/prompt"
	"github.com/teslashibe/go-xeo/pkg/tools"
)

// UnknownGesture is used when the request names no gesture.
const UnknownGesture = "unknown"

// GazeInput is a gaze point with an optional crop radius.
type GazeInput struct {
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Radius *float64 `json:"radius,omitempty"`
}

// IntentRequest is one multimodal intent query.
type IntentRequest struct {
	Image      image.Image
	Gesture    string
	Confidence *float64
	Gaze       *GazeInput

	// SaveCrop persists the gaze crop when a saver is configured.
	SaveCrop bool
}

// CropInfo describes the gaze crop taken for a request.
type CropInfo struct {
	Box  [4]int `json:"box"`
	Path string `json:"path,omitempty"`
}

// Timing reports the model time of each stage in seconds.
type Timing struct {
	UIAnalysis float64 `json:"ui_analysis"`
	Intent     float64 `json:"intent"`
	Total      float64 `json:"total"`
}

// IntentResult is the outcome of InferIntent. Calls are proposals and
// have not been applied.
type IntentResult struct {
	UIAnalysis        string            `json:"ui_analysis"`
	Gesture           string            `json:"gesture"`
	Gaze              *GazeInput        `json:"gaze_data,omitempty"`
	Crop              *CropInfo         `json:"crop,omitempty"`
	IntentDescription string            `json:"intent_description"`
	ToolCalls         []tools.Candidate `json:"tool_calls"`
	Rejected          []string          `json:"rejected,omitempty"`
	Timing            Timing            `json:"response_time"`

	Calls []tools.Call `json:"-"`
}

// InferIntent analyzes the screenshot, then asks the model in tool mode
// what the gesture (and gaze) mean on that screen. The proposed calls are
// validated and returned but not dispatched.
func (p *Processor) InferIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	if p.model == nil {
		return nil, ErrNoModel
	}
	if req.Image == nil || req.Image.Bounds().Empty() {
		return nil, gaze.ErrEmptyImage
	}
	if req.Gaze != nil && !(gaze.Point{X: req.Gaze.X, Y: req.Gaze.Y}).Valid() {
		return nil, fmt.Errorf("%w: (%g, %g)", gaze.ErrInvalidPoint, req.Gaze.X, req.Gaze.Y)
	}

	ctx, span := telemetry.Tracer("intent").Start(ctx, "infer_intent")
	defer span.End()

	start := time.Now()
	gesture := strings.TrimSpace(req.Gesture)
	if gesture == "" {
		gesture = UnknownGesture
	}
	p.logger.Info("inferring intent", "gesture", gesture, "gaze", req.Gaze != nil)

	ui, err := p.AnalyzeUI(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	res := &IntentResult{
		UIAnalysis: ui.Text,
		Gesture:    gesture,
		Gaze:       req.Gaze,
		ToolCalls:  []tools.Candidate{},
	}
	res.Timing.UIAnalysis = ui.Seconds()

	ic := prompt.IntentContext{
		UIAnalysis: ui.Text,
		Gesture:    gesture,
		Confidence: req.Confidence,
	}
	if req.Gaze != nil {
		ic.Gaze = &prompt.Gaze{X: req.Gaze.X, Y: req.Gaze.Y}
		crop, err := p.cropAtGaze(req)
		if err != nil {
			p.logger.Warn("gaze crop failed", "error", err)
		}
		res.Crop = crop
		if crop != nil {
			ic.Note = describeRegion(crop.Box)
		}
	}

	pr := p.assembler.WithTools(p.assembler.Intent(ic))
	gen, err := p.generate(ctx, "intent", &inference.GenerateRequest{
		System:    pr.System,
		Prompt:    pr.User,
		Image:     req.Image,
		MaxTokens: p.limits.Intent,
		ToolMode:  true,
		Tools:     p.catalogTools,
	})
	if err != nil {
		return nil, err
	}
	res.Timing.Intent = gen.Elapsed.Seconds()

	for _, c := range p.candidates(gen) {
		call, err := p.registry.Validate(c)
		if err != nil {
			res.Rejected = append(res.Rejected, err.Error())
			continue
		}
		res.Calls = append(res.Calls, call)
		res.ToolCalls = append(res.ToolCalls, c)
	}
	res.IntentDescription = p.extractor.Strip(gen.Text)
	res.Timing.Total = time.Since(start).Seconds()

	p.logger.Info("intent inferred", "gesture", gesture, "calls", len(res.Calls), "rejected", len(res.Rejected))
	p.publish(hub.EventIntent, res)
	return res, nil
}

// describeRegion tells the model which pixels the user is looking at.
func describeRegion(box [4]int) string {
	return fmt.Sprintf("Gaze region in pixels (left, top, right, bottom): [%d, %d, %d, %d]",
		box[0], box[1], box[2], box[3])
}

func (p *Processor) cropAtGaze(req IntentRequest) (*CropInfo, error) {
	radius := p.cropRadius
	if req.Gaze.Radius != nil {
		radius = *req.Gaze.Radius
	}
	pt := gaze.Point{X: req.Gaze.X, Y: req.Gaze.Y}
	img, box, err := gaze.Crop(req.Image, pt, radius)
	if err != nil {
		return nil, err
	}
	info := &CropInfo{Box: box.Array()}
	if req.SaveCrop && p.saver != nil {
		path, err := p.saver.Save(img, pt, "")
		if err != nil {
			return info, fmt.Errorf("save crop: %w", err)
		}
		info.Path = path
	}
	return info, nil
}
