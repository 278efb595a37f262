package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	keepalive    = idleTimeout * 9 / 10

	// Subscribers only ever send pongs and close frames.
	maxInbound = 4 * 1024

	queueSize = 64
)

type subscriber struct {
	conn   *websocket.Conn
	queue  chan Frame
	topics map[string]struct{}
}

// accepts reports whether the subscriber asked for event.
func (s *subscriber) accepts(event string) bool {
	if s.topics == nil {
		return true
	}
	_, ok := s.topics[event]
	return ok
}

// Serve is the fiber websocket handler for h. It blocks until the
// subscriber goes away or the hub stops.
func (h *Hub) Serve(conn *websocket.Conn) {
	s := &subscriber{
		conn:   conn,
		queue:  make(chan Frame, queueSize),
		topics: parseTopics(conn.Query("events")),
	}
	select {
	case h.join <- s:
	case <-h.done:
		conn.Close()
		return
	}

	go s.deliver()
	s.awaitClose()

	select {
	case h.leave <- s:
	case <-h.done:
	}
	conn.Close()
}

// awaitClose reads until the peer disconnects or stops answering pings.
func (s *subscriber) awaitClose() {
	s.conn.SetReadLimit(maxInbound)
	s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// deliver is the only writer on the connection. It exits when the queue is
// closed by the hub or a write fails.
func (s *subscriber) deliver() {
	ping := time.NewTicker(keepalive)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case f, ok := <-s.queue:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "panel shutting down"))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, f.Data); err != nil {
				return
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
