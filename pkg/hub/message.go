// Package hub fans panel events out to websocket subscribers.
//
// Every event is encoded once into a Frame and handed to each subscriber's
// queue by a single run loop. A subscriber can narrow the stream to some
// event names with ?events=a,b on the upgrade request.
package hub

import (
	"encoding/json"
	"strings"
	"time"
)

// Event names published to panel subscribers.
const (
	EventDeviceStatusChange = "device_status_change"
	EventSettingChange      = "setting_change"
	EventIntent             = "intent"
	EventChat               = "chat"
)

// Event is the JSON envelope sent to subscribers.
type Event struct {
	Event string    `json:"event"`
	Data  any       `json:"data"`
	Time  time.Time `json:"time"`
}

// Frame is an encoded event ready for delivery.
type Frame struct {
	Event string
	Data  []byte
}

// Encode builds the frame for one event.
func Encode(event string, data any) (Frame, error) {
	b, err := json.Marshal(Event{Event: event, Data: data, Time: time.Now().UTC()})
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: b}, nil
}

// parseTopics reads a comma separated event filter. Empty means all events.
func parseTopics(raw string) map[string]struct{} {
	var topics map[string]struct{}
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if topics == nil {
			topics = make(map[string]struct{})
		}
		topics[name] = struct{}{}
	}
	return topics
}
