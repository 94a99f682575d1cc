package chat

import "strings"

func normalizeRoom(room string) string {
	return strings.TrimSpace(room)
}

// subscribe indexes s under its room. Caller holds h.mu.
func (h *Hub) subscribe(s *Subscriber) {
	r := normalizeRoom(s.RoomID)
	if r == "" {
		return
	}
	if _, ok := h.rooms[r]; !ok {
		h.rooms[r] = map[string]*Subscriber{}
	}
	h.rooms[r][s.ID] = s
}

// unsubscribe removes s from its room index. Caller holds h.mu.
func (h *Hub) unsubscribe(s *Subscriber) {
	r := normalizeRoom(s.RoomID)
	if subs, ok := h.rooms[r]; ok {
		delete(subs, s.ID)
		if len(subs) == 0 {
			delete(h.rooms, r)
		}
	}
}

// RoomCount is the number of rooms with at least one subscriber.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
