package chat

import (
	"context"
	"sync"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
)

type staticIdentity struct {
	token string
	user  string
}

func (s staticIdentity) Token() string  { return s.token }
func (s staticIdentity) UserID() string { return s.user }

// fakeFetcher serves per-room message lists.
type fakeFetcher struct {
	mu    sync.Mutex
	lists map[string][]api.MessageDTO
	err   error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{lists: map[string][]api.MessageDTO{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Messages(ctx context.Context, roomID string) ([]api.MessageDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[roomID]++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]api.MessageDTO, len(f.lists[roomID]))
	copy(out, f.lists[roomID])
	return out, nil
}

func (f *fakeFetcher) set(roomID string, msgs ...api.MessageDTO) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[roomID] = msgs
}

func (f *fakeFetcher) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) count(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[roomID]
}

func text(id, roomID, sender, content string) api.MessageDTO {
	return api.MessageDTO{ID: id, ChatRoomID: roomID, SenderID: sender, Type: "text", Content: content}
}

func pinned(m api.MessageDTO) api.MessageDTO {
	m.IsPinned = true
	return m
}

type mutation struct {
	name      string
	messageID string
	body      interface{}
}

// fakeMutator records calls and answers with err.
type fakeMutator struct {
	mu        sync.Mutex
	err       error
	sent      []api.SendMessageData
	uploads   []api.FormFile
	mutations []mutation
	deleted   []string
}

func (f *fakeMutator) SendMessage(ctx context.Context, data api.SendMessageData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return f.err
}

func (f *fakeMutator) SendMedia(ctx context.Context, roomID string, file api.FormFile) ([]api.MessageDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, file)
	return nil, f.err
}

func (f *fakeMutator) MutateMessage(ctx context.Context, name, messageID string, body interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, mutation{name: name, messageID: messageID, body: body})
	return f.err
}

func (f *fakeMutator) DeleteMessage(ctx context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return f.err
}

func (f *fakeMutator) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent) + len(f.uploads) + len(f.mutations) + len(f.deleted)
}
