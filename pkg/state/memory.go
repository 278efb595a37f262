package state

import (
	"fmt"
	"sync"
)

// MemoryStore is a mutex-guarded in-process Store.
type MemoryStore struct {
	mu sync.RWMutex

	devices     map[string]*Device
	deviceOrder []string

	settings     map[string]*Setting
	settingOrder []string

	// Entry locks are created once at construction; the id set is fixed.
	deviceLocks  map[string]*sync.Mutex
	settingLocks map[string]*sync.Mutex
}

// NewMemoryStore seeds a store. Settings whose value is outside their range
// are clamped.
func NewMemoryStore(devices []Device, settings []Setting) *MemoryStore {
	s := &MemoryStore{
		devices:      make(map[string]*Device, len(devices)),
		settings:     make(map[string]*Setting, len(settings)),
		deviceLocks:  make(map[string]*sync.Mutex, len(devices)),
		settingLocks: make(map[string]*sync.Mutex, len(settings)),
	}
	for _, d := range devices {
		d := d
		if _, dup := s.devices[d.ID]; !dup {
			s.deviceOrder = append(s.deviceOrder, d.ID)
			s.deviceLocks[d.ID] = &sync.Mutex{}
		}
		s.devices[d.ID] = &d
	}
	for _, st := range settings {
		st := st
		st.Value = min(max(st.Value, st.Min), st.Max)
		if _, dup := s.settings[st.ID]; !dup {
			s.settingOrder = append(s.settingOrder, st.ID)
			s.settingLocks[st.ID] = &sync.Mutex{}
		}
		s.settings[st.ID] = &st
	}
	return s
}

// NewDefaultStore returns a store seeded with the factory devices and settings.
func NewDefaultStore() *MemoryStore {
	return NewMemoryStore(DefaultDevices(), DefaultSettings())
}

// Devices implements Store.
func (s *MemoryStore) Devices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Device, 0, len(s.deviceOrder))
	for _, id := range s.deviceOrder {
		out = append(out, *s.devices[id])
	}
	return out
}

// Device implements Store.
func (s *MemoryStore) Device(id string) (Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return *d, nil
}

// Settings implements Store.
func (s *MemoryStore) Settings() []Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Setting, 0, len(s.settingOrder))
	for _, id := range s.settingOrder {
		out = append(out, *s.settings[id])
	}
	return out
}

// Setting implements Store.
func (s *MemoryStore) Setting(id string) (Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.settings[id]
	if !ok {
		return Setting{}, fmt.Errorf("%w: %s", ErrUnknownSetting, id)
	}
	return *st, nil
}

// SwapConnected implements Store.
func (s *MemoryStore) SwapConnected(id string, old, new bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	if d.Connected != old {
		return false, nil
	}
	d.Connected = new
	return true, nil
}

// SwapValue implements Store.
func (s *MemoryStore) SwapValue(id string, old, new int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.settings[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSetting, id)
	}
	if !st.InRange(new) {
		return false, fmt.Errorf("%w: %s=%d not in [%d, %d]", ErrOutOfRange, id, new, st.Min, st.Max)
	}
	if st.Value != old {
		return false, nil
	}
	st.Value = new
	return true, nil
}

// LockDevice implements Store. Unknown ids get a no-op lock.
func (s *MemoryStore) LockDevice(id string) func() {
	return lockEntry(s.deviceLocks[id])
}

// LockSetting implements Store. Unknown ids get a no-op lock.
func (s *MemoryStore) LockSetting(id string) func() {
	return lockEntry(s.settingLocks[id])
}

func lockEntry(m *sync.Mutex) func() {
	if m == nil {
		return func() {}
	}
	m.Lock()
	return m.Unlock
}

// Verify MemoryStore implements Store at compile time.
var _ Store = (*MemoryStore)(nil)
