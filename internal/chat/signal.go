package chat

import "encoding/json"

// Notify pushes a room_update signal to the room's subscribers. It carries
// no message body; UIs re-read the room. A subscriber whose buffer is full
// already has a pending signal and is skipped.
func (h *Hub) Notify(roomID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := h.rooms[normalizeRoom(roomID)]
	if len(subs) == 0 {
		return
	}
	b, _ := json.Marshal(&RoomSignal{Kind: SignalRoomUpdate, RoomID: roomID})
	for _, s := range subs {
		select {
		case s.Send <- b:
		default:
		}
	}
}
