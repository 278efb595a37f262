package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultStoreSeed(t *testing.T) {
	s := NewDefaultStore()

	devices := s.Devices()
	if len(devices) != 4 {
		t.Fatalf("Expected 4 devices, got %d", len(devices))
	}
	for _, d := range devices {
		if d.Connected {
			t.Errorf("Expected %s disconnected at start", d.ID)
		}
	}

	want := []Setting{
		{ID: "volume", Value: 80, Min: 0, Max: 100, Unit: "%"},
		{ID: "ipd", Value: 65, Min: 50, Max: 80, Unit: "mm"},
		{ID: "magic", Value: 80, Min: 0, Max: 100, Unit: "%"},
		{ID: "seat", Value: 50, Min: 0, Max: 100, Unit: ""},
		{ID: "ventilation", Value: 100, Min: 0, Max: 100, Unit: "%"},
	}
	if diff := cmp.Diff(want, s.Settings()); diff != "" {
		t.Errorf("Settings mismatch (-want +got):\n%s", diff)
	}
}

func TestSeedClampsValue(t *testing.T) {
	s := NewMemoryStore(nil, []Setting{{ID: "ipd", Value: 10, Min: 50, Max: 80}})
	st, err := s.Setting("ipd")
	if err != nil {
		t.Fatal(err)
	}
	if st.Value != 50 {
		t.Errorf("Expected clamped value 50, got %d", st.Value)
	}
}

func TestUnknownIDs(t *testing.T) {
	s := NewDefaultStore()

	if _, err := s.Device("xbox"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Expected ErrUnknownDevice, got %v", err)
	}
	if _, err := s.Setting("brightness"); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("Expected ErrUnknownSetting, got %v", err)
	}
	if _, err := s.SwapConnected("xbox", false, true); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Expected ErrUnknownDevice, got %v", err)
	}
	if _, err := s.SwapValue("brightness", 0, 1); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("Expected ErrUnknownSetting, got %v", err)
	}
}

func TestSwapValue(t *testing.T) {
	s := NewDefaultStore()

	ok, err := s.SwapValue("volume", 80, 75)
	if err != nil || !ok {
		t.Fatalf("Expected swap, got ok=%v err=%v", ok, err)
	}

	// Stale expectation loses.
	ok, err = s.SwapValue("volume", 80, 10)
	if err != nil || ok {
		t.Errorf("Expected stale swap to fail, got ok=%v err=%v", ok, err)
	}

	_, err = s.SwapValue("volume", 75, 150)
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange, got %v", err)
	}

	st, _ := s.Setting("volume")
	if st.Value != 75 {
		t.Errorf("Expected 75, got %d", st.Value)
	}
}

func TestSwapConnected(t *testing.T) {
	s := NewDefaultStore()

	ok, err := s.SwapConnected("apple-tv", false, true)
	if err != nil || !ok {
		t.Fatalf("Expected swap, got ok=%v err=%v", ok, err)
	}
	ok, _ = s.SwapConnected("apple-tv", false, true)
	if ok {
		t.Error("Expected stale swap to fail")
	}
	d, _ := s.Device("apple-tv")
	if !d.Connected || d.Status() != "connected" {
		t.Errorf("Expected connected, got %+v", d)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := NewDefaultStore()
	settings := s.Settings()
	settings[0].Value = 1

	st, _ := s.Setting("volume")
	if st.Value != 80 {
		t.Errorf("Expected store untouched by snapshot mutation, got %d", st.Value)
	}
}

func TestConcurrentSwaps(t *testing.T) {
	s := NewDefaultStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				cur, _ := s.Setting("seat")
				next := (cur.Value + 1) % 101
				if ok, _ := s.SwapValue("seat", cur.Value, next); ok {
					return
				}
			}
		}()
	}
	wg.Wait()

	st, _ := s.Setting("seat")
	if st.Value != 100 {
		t.Errorf("Expected 50 increments from 50 to land on 100, got %d", st.Value)
	}
}

func TestEntryLocks(t *testing.T) {
	s := NewDefaultStore()

	unlock := s.LockSetting("volume")
	acquired := make(chan struct{})
	go func() {
		release := s.LockSetting("volume")
		close(acquired)
		release()
	}()

	// Other entries stay available while volume is held.
	s.LockSetting("ipd")()
	s.LockDevice("about-xeo")()

	select {
	case <-acquired:
		t.Fatal("Expected second volume writer to wait for the lock")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Expected lock to be acquired after release")
	}

	// Unknown ids must not block or panic.
	s.LockDevice("toaster")()
	s.LockSetting("warp")()
}

func TestFormat(t *testing.T) {
	st := Setting{ID: "ipd", Unit: "mm"}
	if got := st.Format(62); got != "62mm" {
		t.Errorf("Expected 62mm, got %s", got)
	}
}
