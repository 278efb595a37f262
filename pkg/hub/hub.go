package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Hub owns the subscriber set. Only the Run loop mutates it; mu lets
// ClientCount read it from other goroutines.
type Hub struct {
	name   string
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}

	frames chan Frame
	join   chan *subscriber
	leave  chan *subscriber

	running atomic.Bool
	done    chan struct{}

	// OnClientCount is called from the run loop whenever the count changes.
	OnClientCount func(n int)
}

// New creates a hub. Call Run before serving subscribers.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:   name,
		logger: logger.With("component", "hub", "hub", name),
		subs:   make(map[*subscriber]struct{}),
		frames: make(chan Frame, 256),
		join:   make(chan *subscriber),
		leave:  make(chan *subscriber),
		done:   make(chan struct{}),
	}
}

// Run delivers frames until ctx is done, then closes every subscriber
// queue. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subs {
				h.drop(s)
			}
			h.mu.Unlock()
			h.countChanged(0)
			return

		case s := <-h.join:
			h.mu.Lock()
			h.subs[s] = struct{}{}
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Debug("subscriber joined", "total", n, "filtered", s.topics != nil)
			h.countChanged(n)

		case s := <-h.leave:
			h.mu.Lock()
			if _, ok := h.subs[s]; ok {
				h.drop(s)
			}
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Debug("subscriber left", "remaining", n)
			h.countChanged(n)

		case f := <-h.frames:
			h.fanOut(f)
		}
	}
}

// fanOut queues f for every interested subscriber. A subscriber whose
// queue is full is dropped so one slow reader cannot stall the panel.
func (h *Hub) fanOut(f Frame) {
	h.mu.Lock()
	slow := 0
	for s := range h.subs {
		if !s.accepts(f.Event) {
			continue
		}
		select {
		case s.queue <- f:
		default:
			h.drop(s)
			slow++
		}
	}
	n := len(h.subs)
	h.mu.Unlock()

	if slow > 0 {
		h.logger.Warn("dropped slow subscribers", "event", f.Event, "dropped", slow)
		h.countChanged(n)
	}
}

// drop removes s and closes its queue. Callers hold mu.
func (h *Hub) drop(s *subscriber) {
	delete(h.subs, s)
	close(s.queue)
}

func (h *Hub) countChanged(n int) {
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}
}

// Publish encodes an event and queues it for delivery. It never blocks:
// when the hub is backlogged the event is dropped and logged.
func (h *Hub) Publish(event string, data any) error {
	f, err := Encode(event, data)
	if err != nil {
		return fmt.Errorf("hub %s: encode %s: %w", h.name, event, err)
	}
	select {
	case h.frames <- f:
	default:
		h.logger.Warn("event backlog full, dropping", "event", event)
	}
	return nil
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
