package realtime

import (
	"encoding/json"
	"fmt"
)

// Event names on the wire.
const (
	EventSetup    = "setup"
	EventJoin     = "join chat"
	EventLeave    = "leave chat"
	EventMessage  = "message"
	EventReaction = "reaction"
	EventRecall   = "recall"
	EventPin      = "pin"
	EventUnpin    = "unpin"

	// EventDisconnect is local only: dispatched when the connection drops
	// without Disconnect being called.
	EventDisconnect = "disconnect"

	// AnyEvent subscribes a handler to every event.
	AnyEvent = "*"
)

// Frame is one JSON text frame: {"event": "...", "data": [...]}.
type Frame struct {
	Event string            `json:"event"`
	Data  []json.RawMessage `json:"data,omitempty"`
}

// Event is an inbound notification handed to handlers.
type Event struct {
	Name   string
	RoomID string
	Data   []json.RawMessage
}

// encodeFrame builds a frame from plain string arguments.
func encodeFrame(event string, args ...string) ([]byte, error) {
	f := Frame{Event: event}
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		f.Data = append(f.Data, raw)
	}
	return json.Marshal(f)
}

// decodeFrame parses an inbound frame. joined is the room the channel is
// in, used when the event does not name one.
func decodeFrame(data []byte, joined string) (Event, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event == "" {
		return Event{}, fmt.Errorf("decode frame: missing event name")
	}
	ev := Event{Name: f.Event, RoomID: joined, Data: f.Data}
	if len(f.Data) > 0 {
		if room := roomOf(f.Data[0]); room != "" {
			ev.RoomID = room
		}
	}
	return ev, nil
}

// roomOf accepts either a bare room id or an object carrying one.
func roomOf(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		ChatRoomID string `json:"chatRoomId"`
		RoomID     string `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.ChatRoomID != "" {
			return obj.ChatRoomID
		}
		return obj.RoomID
	}
	return ""
}
