package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Hub fans room signals out to UI subscribers. Registration goes through
// Start's loop; signals are pushed directly.
type Hub struct {
	mu sync.RWMutex

	subscribers map[string]*Subscriber            // id -> subscriber
	rooms       map[string]map[string]*Subscriber // room -> id -> subscriber

	RegisterChan   chan *Subscriber
	UnregisterChan chan *Subscriber

	done chan struct{}
	log  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subscribers:    map[string]*Subscriber{},
		rooms:          map[string]map[string]*Subscriber{},
		RegisterChan:   make(chan *Subscriber),
		UnregisterChan: make(chan *Subscriber),
		done:           make(chan struct{}),
		log:            logger.With().Str("component", "hub").Logger(),
	}
}

type SubscriberInfo struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`
}

// ListSubscribers returns the subscribers of roomID, or all when empty.
func (h *Hub) ListSubscribers(roomID string) []SubscriberInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]SubscriberInfo, 0, len(h.subscribers))
	for id, s := range h.subscribers {
		if roomID != "" && s.RoomID != roomID {
			continue
		}
		out = append(out, SubscriberInfo{ID: id, RoomID: s.RoomID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Start runs the registration loop until ctx is done, then closes every
// subscriber's send channel.
func (h *Hub) Start(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case s := <-h.RegisterChan:
			h.mu.Lock()
			h.subscribers[s.ID] = s
			h.subscribe(s)
			h.mu.Unlock()
			h.log.Debug().Str("subscriber", s.ID).Str("room", s.RoomID).Msg("ui subscribed")

		case s := <-h.UnregisterChan:
			h.mu.Lock()
			if _, ok := h.subscribers[s.ID]; ok {
				delete(h.subscribers, s.ID)
				h.unsubscribe(s)
				close(s.Send)
			}
			h.mu.Unlock()
			h.log.Debug().Str("subscriber", s.ID).Msg("ui unsubscribed")

		case <-ctx.Done():
			h.mu.Lock()
			for id, s := range h.subscribers {
				close(s.Send)
				delete(h.subscribers, id)
			}
			h.rooms = map[string]map[string]*Subscriber{}
			h.mu.Unlock()
			return
		}
	}
}

// Register hands s to the loop. It returns false once the hub stopped.
func (h *Hub) Register(s *Subscriber) bool {
	select {
	case h.RegisterChan <- s:
		return true
	case <-h.done:
		return false
	}
}

// Unregister hands s to the loop unless the hub stopped.
func (h *Hub) Unregister(s *Subscriber) {
	select {
	case h.UnregisterChan <- s:
	case <-h.done:
	}
}
