package chat

import (
	"github.com/gofiber/contrib/websocket"
)

const subscriberBuffer = 8

// Subscriber is one UI socket watching a room.
type Subscriber struct {
	ID     string
	RoomID string
	Conn   ConnLike
	Send   chan []byte
	hub    *Hub
}

type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

func (h *Hub) NewSubscriber(id, roomID string, conn ConnLike) *Subscriber {
	return &Subscriber{
		ID:     id,
		RoomID: roomID,
		Conn:   conn,
		Send:   make(chan []byte, subscriberBuffer),
		hub:    h,
	}
}

// ReadPump drains the socket until it closes. UIs send nothing the hub
// acts on.
func (s *Subscriber) ReadPump() {
	for {
		if _, _, err := s.Conn.ReadMessage(); err != nil {
			s.hub.Unregister(s)
			return
		}
	}
}

func (s *Subscriber) WritePump() {
	for data := range s.Send {
		if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.hub.log.Debug().Err(err).Str("subscriber", s.ID).Msg("write failed")
		}
	}
}
