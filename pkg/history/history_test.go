package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHistoryBounded(t *testing.T) {
	h := New(2)
	for i := 1; i <= 3; i++ {
		h.AddTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	want := []Entry{
		{RoleUser, "q2"}, {RoleAssistant, "a2"},
		{RoleUser, "q3"}, {RoleAssistant, "a3"},
	}
	if diff := cmp.Diff(want, h.Entries()); diff != "" {
		t.Errorf("Entries mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryStaysPaired(t *testing.T) {
	h := New(3)
	for i := 0; i < 10; i++ {
		h.AddTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		got := h.Entries()
		if len(got)%2 != 0 {
			t.Fatalf("Expected even entry count, got %d", len(got))
		}
		for j, e := range got {
			want := RoleUser
			if j%2 == 1 {
				want = RoleAssistant
			}
			if e.Role != want {
				t.Fatalf("Entry %d: expected role %s, got %s", j, want, e.Role)
			}
		}
	}
}

func TestHistoryDefaults(t *testing.T) {
	h := New(0)
	if h.MaxTurns() != DefaultMaxTurns {
		t.Errorf("Expected %d turns, got %d", DefaultMaxTurns, h.MaxTurns())
	}
	for i := 0; i < 25; i++ {
		h.AddTurn("q", "a")
	}
	if h.Len() != 20 {
		t.Errorf("Expected 20 entries, got %d", h.Len())
	}
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Expected empty history after Clear, got %d", h.Len())
	}
}

func TestHistoryEntriesIsCopy(t *testing.T) {
	h := New(5)
	h.AddTurn("q", "a")
	got := h.Entries()
	got[0].Content = "mutated"
	if h.Entries()[0].Content != "q" {
		t.Error("Expected Entries to return a copy")
	}
}

func TestHistoryConcurrent(t *testing.T) {
	h := New(10)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.AddTurn("q", "a")
			_ = h.Entries()
		}()
	}
	wg.Wait()
	if h.Len() != 20 {
		t.Errorf("Expected 20 entries, got %d", h.Len())
	}
	for i, e := range h.Entries() {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if e.Role != want {
			t.Fatalf("Entry %d: expected role %s, got %s", i, want, e.Role)
		}
	}
}
