// Package state holds the device and setting state of the control panel.
//
// Mutation happens only through compare-and-swap so that concurrent writers
// never lose an update: a writer reads the current value, computes the new
// one and swaps, retrying when another writer got there first.
package state

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDevice is returned for a device id outside the fixed set.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrUnknownSetting is returned for a setting id outside the fixed set.
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrOutOfRange is returned when a setting value is outside [min, max].
	ErrOutOfRange = errors.New("value out of range")
)

// Device is a connectable peripheral.
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// Status renders the connection state as the UI shows it.
func (d Device) Status() string {
	if d.Connected {
		return "connected"
	}
	return "disconnected"
}

// Setting is a bounded integer control.
type Setting struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Unit  string `json:"unit"`
}

// InRange reports whether v is an acceptable value for s.
func (s Setting) InRange(v int) bool {
	return v >= s.Min && v <= s.Max
}

// Format renders v with the setting's unit, e.g. "75%" or "62mm".
func (s Setting) Format(v int) string {
	return fmt.Sprintf("%d%s", v, s.Unit)
}

// Store is the state authority used by the dispatcher.
type Store interface {
	// Devices returns a snapshot of all devices in declaration order.
	Devices() []Device

	// Device returns one device or ErrUnknownDevice.
	Device(id string) (Device, error)

	// Settings returns a snapshot of all settings in declaration order.
	Settings() []Setting

	// Setting returns one setting or ErrUnknownSetting.
	Setting(id string) (Setting, error)

	// SwapConnected sets the connection flag to new only if it currently
	// equals old. It reports whether the swap happened.
	SwapConnected(id string, old, new bool) (bool, error)

	// SwapValue sets the value to new only if it currently equals old.
	// It returns ErrOutOfRange without swapping when new is outside range.
	SwapValue(id string, old, new int) (bool, error)

	// LockDevice and LockSetting serialize writers of one entry. A writer
	// holds the lock from reading the current value until its change has
	// been announced, so announcements follow the order of writes. The
	// returned func releases the lock.
	LockDevice(id string) (unlock func())
	LockSetting(id string) (unlock func())
}

// DefaultDevices is the fixed device set of the XEO panel.
func DefaultDevices() []Device {
	return []Device{
		{ID: "about-xeo", Name: "About XEO"},
		{ID: "apple-tv", Name: "Apple TV"},
		{ID: "playstation", Name: "Play Station 5"},
		{ID: "nintendo", Name: "Nintendo Switch"},
	}
}

// DefaultSettings is the fixed setting set with factory values.
func DefaultSettings() []Setting {
	return []Setting{
		{ID: "volume", Value: 80, Min: 0, Max: 100, Unit: "%"},
		{ID: "ipd", Value: 65, Min: 50, Max: 80, Unit: "mm"},
		{ID: "magic", Value: 80, Min: 0, Max: 100, Unit: "%"},
		{ID: "seat", Value: 50, Min: 0, Max: 100, Unit: ""},
		{ID: "ventilation", Value: 100, Min: 0, Max: 100, Unit: "%"},
	}
}
