// Package dispatch applies validated tool calls to panel state.
//
// Each call is applied with compare-and-swap against the state store and
// announced to subscribers while the entry lock is held, then optionally
// confirmed with a remote authority. Dispatch reports every outcome as a Result and never panics
// or returns an error to the caller.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/teslashibe/go-xeo/internal/telemetry"
	"github.com/teslashibe/go-xeo/pkg/confirm"
	"github.com/teslashibe/go-xeo/pkg/hub"
	"github.com/teslashibe/go-xeo/pkg/metrics"
	"github.com/teslashibe/go-xeo/pkg/state"
	"github.com/teslashibe/go-xeo/pkg/tools"
)

// maxSwapAttempts bounds the CAS retry loop under contention.
const maxSwapAttempts = 64

// ErrContention is reported when a swap keeps losing to other writers.
var ErrContention = errors.New("state contention")

// Notifier receives state change events. *hub.Hub satisfies it.
type Notifier interface {
	Publish(event string, data any) error
}

// Result is the outcome of one dispatched call.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Tool    string `json:"tool,omitempty"`

	// Device toggles
	DeviceID  string `json:"device_id,omitempty"`
	Connected *bool  `json:"connected,omitempty"`
	Status    string `json:"status,omitempty"`

	// Setting adjustments
	SettingID string `json:"setting_id,omitempty"`
	OldValue  *int   `json:"old_value,omitempty"`
	NewValue  *int   `json:"new_value,omitempty"`
	Unit      string `json:"unit,omitempty"`

	// RolledBack is set when the authority refused and the change was undone.
	RolledBack bool `json:"rolled_back,omitempty"`
}

// DeviceEvent is the payload of device_status_change.
type DeviceEvent struct {
	DeviceID  string `json:"device_id"`
	Connected bool   `json:"connected"`
}

// SettingEvent is the payload of setting_change.
type SettingEvent struct {
	SettingID string `json:"setting_id"`
	Value     int    `json:"value"`
	OldValue  int    `json:"old_value"`
	NewValue  int    `json:"new_value"`
}

// Dispatcher applies calls to a state store.
type Dispatcher struct {
	store     state.Store
	notifier  Notifier
	confirmer confirm.Confirmer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithNotifier sets the event sink.
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithConfirmer enables remote confirmation.
func WithConfirmer(c confirm.Confirmer) Option {
	return func(d *Dispatcher) { d.confirmer = c }
}

// WithMetrics records outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a dispatcher over store.
func New(store state.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.store = store
	d.logger = d.logger.With("component", "dispatch")
	return d
}

// Store returns the underlying state store.
func (d *Dispatcher) Store() state.Store {
	return d.store
}

// Dispatch applies one validated call.
func (d *Dispatcher) Dispatch(ctx context.Context, call tools.Call) (res Result) {
	if call == nil {
		return failure("", "no call")
	}
	ctx, span := telemetry.Tracer("dispatch").Start(ctx, "dispatch "+call.ToolName())
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch panicked", "tool", call.ToolName(), "panic", r)
			res = failure(call.ToolName(), fmt.Sprintf("internal error: %v", r))
		}
		outcome := metrics.OutcomeApplied
		if !res.Success {
			outcome = metrics.OutcomeFailed
			span.SetStatus(codes.Error, res.Message)
		}
		if res.RolledBack {
			outcome = metrics.OutcomeRolledBack
		}
		d.metrics.ToolCall(call.ToolName(), outcome)
		span.SetAttributes(attribute.Bool("xeo.success", res.Success))
	}()

	switch c := call.(type) {
	case tools.ToggleDevice:
		span.SetAttributes(attribute.String("xeo.device_id", c.DeviceID))
		return d.toggle(ctx, c)
	case tools.AdjustSetting:
		span.SetAttributes(attribute.String("xeo.setting_id", c.SettingID), attribute.Int("xeo.value", c.Value))
		return d.adjust(ctx, c)
	default:
		return failure(call.ToolName(), fmt.Sprintf("unsupported call %T", call))
	}
}

// DispatchAll applies calls in order and returns one result per call.
func (d *Dispatcher) DispatchAll(ctx context.Context, calls []tools.Call) []Result {
	out := make([]Result, 0, len(calls))
	for _, c := range calls {
		out = append(out, d.Dispatch(ctx, c))
	}
	return out
}

// Execute validates a candidate against reg and dispatches it. A rejected
// candidate becomes a failed Result and leaves state untouched.
func (d *Dispatcher) Execute(ctx context.Context, reg *tools.Registry, c tools.Candidate) Result {
	call, err := reg.Validate(c)
	if err != nil {
		d.metrics.ToolCall(c.Name, metrics.OutcomeRejected)
		d.logger.Info("tool call rejected", "tool", c.Name, "error", err)
		return failure(c.Name, err.Error())
	}
	return d.Dispatch(ctx, call)
}

func (d *Dispatcher) toggle(ctx context.Context, c tools.ToggleDevice) Result {
	dev, err := d.flipDevice(c.DeviceID)
	if err != nil {
		return failure(c.Tool, err.Error())
	}
	prev, next := dev.Connected, !dev.Connected

	if err := d.confirmDevice(ctx, c.DeviceID, next); err != nil {
		held, reverted := d.revertDevice(c.DeviceID, next, prev)
		dev.Connected = held
		res := failure(c.Tool, err.Error())
		res.DeviceID = c.DeviceID
		res.Connected = &held
		res.Status = dev.Status()
		res.RolledBack = reverted
		return res
	}

	dev.Connected = next
	d.logger.Info("device toggled", "device", c.DeviceID, "connected", next)
	return Result{
		Success:   true,
		Message:   fmt.Sprintf("%s %s", dev.Name, dev.Status()),
		Tool:      c.Tool,
		DeviceID:  c.DeviceID,
		Connected: &next,
		Status:    dev.Status(),
	}
}

// flipDevice toggles a device and announces the change under the entry
// lock. It returns the device as it was before the flip.
func (d *Dispatcher) flipDevice(id string) (state.Device, error) {
	unlock := d.store.LockDevice(id)
	defer unlock()

	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		dev, err := d.store.Device(id)
		if err != nil {
			return state.Device{}, err
		}
		swapped, err := d.store.SwapConnected(id, dev.Connected, !dev.Connected)
		if err != nil {
			return state.Device{}, err
		}
		if swapped {
			d.notify(hub.EventDeviceStatusChange, DeviceEvent{DeviceID: id, Connected: !dev.Connected})
			return dev, nil
		}
	}
	return state.Device{}, fmt.Errorf("%w: %s", ErrContention, id)
}

// revertDevice undoes a rejected toggle. When another writer changed the
// device in between, the newer state is kept and announced as is. It
// returns the state the store holds and whether the undo happened.
func (d *Dispatcher) revertDevice(id string, from, to bool) (held, reverted bool) {
	unlock := d.store.LockDevice(id)
	defer unlock()

	ok, err := d.store.SwapConnected(id, from, to)
	if err == nil && ok {
		d.notify(hub.EventDeviceStatusChange, DeviceEvent{DeviceID: id, Connected: to})
		return to, true
	}
	cur, rerr := d.store.Device(id)
	if rerr != nil {
		d.logger.Error("rollback failed", "device", id, "error", errors.Join(err, rerr))
		return from, false
	}
	d.logger.Warn("rollback skipped, device changed concurrently", "device", id, "connected", cur.Connected)
	d.notify(hub.EventDeviceStatusChange, DeviceEvent{DeviceID: id, Connected: cur.Connected})
	return cur.Connected, false
}

func (d *Dispatcher) adjust(ctx context.Context, c tools.AdjustSetting) Result {
	st, err := d.setValue(c.SettingID, c.Value)
	if err != nil {
		return failure(c.Tool, err.Error())
	}
	old, next := st.Value, c.Value

	if err := d.confirmSetting(ctx, c.SettingID, next); err != nil {
		held, reverted := d.revertSetting(c.SettingID, next, old)
		res := failure(c.Tool, err.Error())
		res.SettingID = c.SettingID
		res.OldValue = &old
		res.NewValue = &held
		res.Unit = st.Unit
		res.RolledBack = reverted
		return res
	}

	d.logger.Info("setting adjusted", "setting", c.SettingID, "old", old, "new", next)
	return Result{
		Success:   true,
		Message:   fmt.Sprintf("%s changed from %s to %s", c.SettingID, st.Format(old), st.Format(next)),
		Tool:      c.Tool,
		SettingID: c.SettingID,
		OldValue:  &old,
		NewValue:  &next,
		Unit:      st.Unit,
	}
}

// setValue range-checks, swaps and announces a setting under the entry
// lock. It returns the setting as it was before the change.
func (d *Dispatcher) setValue(id string, value int) (state.Setting, error) {
	unlock := d.store.LockSetting(id)
	defer unlock()

	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		st, err := d.store.Setting(id)
		if err != nil {
			return state.Setting{}, err
		}
		if !st.InRange(value) {
			return state.Setting{}, fmt.Errorf("%w: %s=%d not in [%d, %d]", state.ErrOutOfRange, id, value, st.Min, st.Max)
		}
		swapped, err := d.store.SwapValue(id, st.Value, value)
		if err != nil {
			return state.Setting{}, err
		}
		if swapped {
			d.notify(hub.EventSettingChange, SettingEvent{SettingID: id, Value: value, OldValue: st.Value, NewValue: value})
			return st, nil
		}
	}
	return state.Setting{}, fmt.Errorf("%w: %s", ErrContention, id)
}

// revertSetting undoes a rejected adjustment, or announces the current
// value when another writer got there first. It returns the value the
// store holds and whether the undo happened.
func (d *Dispatcher) revertSetting(id string, from, to int) (held int, reverted bool) {
	unlock := d.store.LockSetting(id)
	defer unlock()

	ok, err := d.store.SwapValue(id, from, to)
	if err == nil && ok {
		d.notify(hub.EventSettingChange, SettingEvent{SettingID: id, Value: to, OldValue: from, NewValue: to})
		return to, true
	}
	cur, rerr := d.store.Setting(id)
	if rerr != nil {
		d.logger.Error("rollback failed", "setting", id, "error", errors.Join(err, rerr))
		return from, false
	}
	d.logger.Warn("rollback skipped, setting changed concurrently", "setting", id, "value", cur.Value)
	d.notify(hub.EventSettingChange, SettingEvent{SettingID: id, Value: cur.Value, OldValue: from, NewValue: cur.Value})
	return cur.Value, false
}

// confirmDevice returns a non-nil error only for an explicit rejection.
func (d *Dispatcher) confirmDevice(ctx context.Context, id string, connected bool) error {
	if d.confirmer == nil {
		return nil
	}
	return d.verdict(d.confirmer.ConfirmDevice(ctx, id, connected), "device", id)
}

// confirmSetting returns a non-nil error only for an explicit rejection.
func (d *Dispatcher) confirmSetting(ctx context.Context, id string, value int) error {
	if d.confirmer == nil {
		return nil
	}
	return d.verdict(d.confirmer.ConfirmSetting(ctx, id, value), "setting", id)
}

func (d *Dispatcher) verdict(err error, kind, id string) error {
	switch {
	case err == nil:
		d.metrics.Confirmation("accepted")
		return nil
	case confirm.IsRejected(err):
		d.metrics.Confirmation("rejected")
		d.logger.Warn("change rejected by authority, rolling back", kind, id, "error", err)
		return err
	default:
		d.metrics.Confirmation("unreachable")
		d.logger.Warn("authority unreachable, keeping local change", kind, id, "error", err)
		return nil
	}
}

func (d *Dispatcher) notify(event string, data any) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Publish(event, data); err != nil {
		d.logger.Warn("notify failed", "event", event, "error", err)
	}
}

func failure(tool, msg string) Result {
	return Result{Success: false, Tool: tool, Message: msg}
}
