// Package confirm reports local state changes to the remote device
// authority and relays its verdict.
//
// Outcomes are asymmetric: an explicit rejection (non-2xx) makes the
// caller roll back, while an unreachable authority leaves the local change
// in place.
package confirm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnreachable marks transport failures: the authority gave no verdict.
var ErrUnreachable = errors.New("confirmation authority unreachable")

// RejectedError is an explicit refusal by the authority.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("confirmation rejected: %d", e.StatusCode)
	}
	return fmt.Sprintf("confirmation rejected: %d: %s", e.StatusCode, e.Message)
}

// IsRejected reports whether err carries an explicit refusal.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// Confirmer pushes a change to the authority. It returns nil when accepted,
// a *RejectedError when refused, and an error wrapping ErrUnreachable when
// no verdict could be obtained.
type Confirmer interface {
	ConfirmDevice(ctx context.Context, deviceID string, connected bool) error
	ConfirmSetting(ctx context.Context, settingID string, value int) error
}

// Noop accepts everything. It is used when the server itself is the
// authority.
type Noop struct{}

func (Noop) ConfirmDevice(context.Context, string, bool) error { return nil }
func (Noop) ConfirmSetting(context.Context, string, int) error { return nil }

// Func adapts plain functions to Confirmer. Nil fields accept.
type Func struct {
	Device  func(ctx context.Context, deviceID string, connected bool) error
	Setting func(ctx context.Context, settingID string, value int) error
}

func (f Func) ConfirmDevice(ctx context.Context, deviceID string, connected bool) error {
	if f.Device == nil {
		return nil
	}
	return f.Device(ctx, deviceID, connected)
}

func (f Func) ConfirmSetting(ctx context.Context, settingID string, value int) error {
	if f.Setting == nil {
		return nil
	}
	return f.Setting(ctx, settingID, value)
}

var (
	_ Confirmer = Noop{}
	_ Confirmer = Func{}
)
