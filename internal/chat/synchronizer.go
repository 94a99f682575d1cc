package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
	"github.com/pelusa-v/pelusa-chat-client/internal/metrics"
	"github.com/pelusa-v/pelusa-chat-client/internal/realtime"
)

// MessageFetcher loads a room's full message list.
type MessageFetcher interface {
	Messages(ctx context.Context, roomID string) ([]api.MessageDTO, error)
}

// changeEvents are the realtime notifications that invalidate a room.
var changeEvents = map[string]bool{
	realtime.EventMessage:  true,
	realtime.EventReaction: true,
	realtime.EventRecall:   true,
	realtime.EventPin:      true,
	realtime.EventUnpin:    true,
}

type roomState struct {
	messages []Message
	loaded   bool
	issued   uint64 // last ticket handed to a reload
	applied  uint64 // ticket whose result is cached
}

// Synchronizer keeps each open room's message list equal to the server's.
// Every change, local or remote, is applied by refetching the whole list;
// a response older than the one already cached is dropped.
type Synchronizer struct {
	fetch MessageFetcher
	log   zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]*roomState

	omu       sync.RWMutex
	observers map[uint64]func(roomID string)
	nextObs   uint64
}

func NewSynchronizer(fetch MessageFetcher, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		fetch:     fetch,
		log:       logger.With().Str("component", "sync").Logger(),
		rooms:     make(map[string]*roomState),
		observers: make(map[uint64]func(string)),
	}
}

// LoadRoom starts tracking roomID and fetches its list.
func (s *Synchronizer) LoadRoom(ctx context.Context, roomID string) ([]Message, error) {
	if roomID == "" {
		return nil, api.Validation("load room", "room is required")
	}
	s.mu.Lock()
	st, ok := s.rooms[roomID]
	if !ok {
		st = &roomState{}
		s.rooms[roomID] = st
	}
	s.mu.Unlock()
	return s.reload(ctx, roomID, st)
}

// Reload refetches a tracked room. Untracked rooms are ignored.
func (s *Synchronizer) Reload(ctx context.Context, roomID string) error {
	s.mu.RLock()
	st, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	_, err := s.reload(ctx, roomID, st)
	return err
}

func (s *Synchronizer) reload(ctx context.Context, roomID string, st *roomState) ([]Message, error) {
	s.mu.Lock()
	st.issued++
	ticket := st.issued
	s.mu.Unlock()

	dtos, err := s.fetch.Messages(ctx, roomID)
	if err != nil {
		metrics.RoomReloads.WithLabelValues("failed").Inc()
		s.log.Warn().Err(err).Str("room", roomID).Msg("reload failed, keeping cached list")
		return nil, err
	}
	msgs := make([]Message, 0, len(dtos))
	for _, d := range dtos {
		msgs = append(msgs, messageFromDTO(d, roomID))
	}

	s.mu.Lock()
	if s.rooms[roomID] != st {
		s.mu.Unlock()
		metrics.RoomReloads.WithLabelValues("discarded").Inc()
		s.log.Debug().Str("room", roomID).Msg("room released during reload")
		return msgs, nil
	}
	if ticket <= st.applied {
		cached := cloneMessages(st.messages)
		s.mu.Unlock()
		metrics.RoomReloads.WithLabelValues("stale").Inc()
		return cached, nil
	}
	st.messages = msgs
	st.applied = ticket
	st.loaded = true
	s.mu.Unlock()

	metrics.RoomReloads.WithLabelValues("applied").Inc()
	s.notify(roomID)
	return cloneMessages(msgs), nil
}

// ApplyRemoteEvent reloads the room named by a change notification. An
// event without a room reloads every tracked room.
func (s *Synchronizer) ApplyRemoteEvent(ctx context.Context, ev realtime.Event) error {
	if !changeEvents[ev.Name] {
		return nil
	}
	if ev.RoomID != "" {
		return s.Reload(ctx, ev.RoomID)
	}
	var firstErr error
	for _, id := range s.Tracked() {
		if err := s.Reload(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Messages returns the cached list in server order.
func (s *Synchronizer) Messages(roomID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.rooms[roomID]; ok {
		return cloneMessages(st.messages)
	}
	return nil
}

// Loaded reports whether roomID has a list from the server.
func (s *Synchronizer) Loaded(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.rooms[roomID]
	return ok && st.loaded
}

// Pinned returns the room's pinned message. With several pinned, the last
// one in server order wins.
func (s *Synchronizer) Pinned(roomID string) (Message, bool) {
	return PinnedOf(s.Messages(roomID))
}

// Visible is the list minus the pinned message, which is shown apart.
func (s *Synchronizer) Visible(roomID string) []Message {
	return VisibleOf(s.Messages(roomID))
}

func PinnedOf(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsPinned {
			return msgs[i], true
		}
	}
	return Message{}, false
}

func VisibleOf(msgs []Message) []Message {
	pinned, ok := PinnedOf(msgs)
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if ok && m.ID == pinned.ID {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Tracked lists the rooms currently held.
func (s *Synchronizer) Tracked() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Release stops tracking roomID. In-flight reloads for it are discarded.
func (s *Synchronizer) Release(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
}

// Reset drops every room, e.g. on logout.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.rooms = make(map[string]*roomState)
	s.mu.Unlock()
}

// Subscribe registers fn to run after a room's list is replaced.
func (s *Synchronizer) Subscribe(fn func(roomID string)) func() {
	s.omu.Lock()
	defer s.omu.Unlock()
	s.nextObs++
	id := s.nextObs
	s.observers[id] = fn
	return func() {
		s.omu.Lock()
		defer s.omu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Synchronizer) notify(roomID string) {
	s.omu.RLock()
	fns := make([]func(string), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.omu.RUnlock()
	for _, fn := range fns {
		fn(roomID)
	}
}

func cloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
