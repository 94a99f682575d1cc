package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
	"github.com/pelusa-v/pelusa-chat-client/internal/realtime"
)

func TestLoadRoomKeepsServerOrder(t *testing.T) {
	f := newFakeFetcher()
	f.set("r-1", text("m-3", "r-1", "u-1", "c"), text("m-1", "r-1", "u-2", "a"), text("m-2", "r-1", "u-1", "b"))
	s := NewSynchronizer(f, zerolog.Nop())

	msgs, err := s.LoadRoom(context.Background(), "r-1")
	require.NoError(t, err)
	ids := []string{}
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m-3", "m-1", "m-2"}, ids)
	assert.True(t, s.Loaded("r-1"))
}

func TestVisibleNeverContainsPinned(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		n := rng.Intn(8)
		msgs := make([]Message, n)
		for i := range msgs {
			msgs[i] = Message{ID: fmt.Sprintf("m-%d", i), IsPinned: rng.Intn(3) == 0}
		}
		p, ok := PinnedOf(msgs)
		visible := VisibleOf(msgs)
		if !ok {
			assert.Len(t, visible, n)
			continue
		}
		assert.Len(t, visible, n-1)
		for _, m := range visible {
			assert.NotEqual(t, p.ID, m.ID)
		}
	}
}

func TestPinnedPicksLastInServerOrder(t *testing.T) {
	f := newFakeFetcher()
	f.set("r-1",
		pinned(text("m-1", "r-1", "u-1", "old pin")),
		text("m-2", "r-1", "u-1", "x"),
		pinned(text("m-3", "r-1", "u-1", "new pin")))
	s := NewSynchronizer(f, zerolog.Nop())
	_, err := s.LoadRoom(context.Background(), "r-1")
	require.NoError(t, err)

	p, ok := s.Pinned("r-1")
	require.True(t, ok)
	assert.Equal(t, "m-3", p.ID)
	assert.Len(t, s.Visible("r-1"), 2)
}

func TestFailedReloadKeepsCache(t *testing.T) {
	f := newFakeFetcher()
	f.set("r-1", text("m-1", "r-1", "u-1", "hello"))
	s := NewSynchronizer(f, zerolog.Nop())
	_, err := s.LoadRoom(context.Background(), "r-1")
	require.NoError(t, err)
	before := s.Messages("r-1")

	f.set("r-1")
	f.fail(&api.Error{Kind: api.KindNetwork})
	err = s.Reload(context.Background(), "r-1")
	assert.True(t, errors.Is(err, api.ErrNetwork))
	assert.Equal(t, before, s.Messages("r-1"))
}

func TestReloadOfUntrackedRoomIsIgnored(t *testing.T) {
	f := newFakeFetcher()
	s := NewSynchronizer(f, zerolog.Nop())
	require.NoError(t, s.Reload(context.Background(), "r-9"))
	assert.Zero(t, f.count("r-9"))
}

// gatedFetcher blocks call i until gates[i] is closed and then returns results[i].
type gatedFetcher struct {
	mu      sync.Mutex
	n       int
	results [][]api.MessageDTO
	gates   []chan struct{}
	started chan int
}

func (g *gatedFetcher) Messages(ctx context.Context, roomID string) ([]api.MessageDTO, error) {
	g.mu.Lock()
	i := g.n
	g.n++
	g.mu.Unlock()
	g.started <- i
	<-g.gates[i]
	return g.results[i], nil
}

func newGated(results ...[]api.MessageDTO) *gatedFetcher {
	g := &gatedFetcher{results: results, started: make(chan int, len(results))}
	for range results {
		g.gates = append(g.gates, make(chan struct{}))
	}
	return g
}

func TestOlderResponseDoesNotOverwriteNewer(t *testing.T) {
	older := []api.MessageDTO{text("m-1", "r-1", "u-1", "a")}
	newer := []api.MessageDTO{text("m-1", "r-1", "u-1", "a"), text("m-2", "r-1", "u-2", "b")}
	g := newGated(nil, older, newer)
	s := NewSynchronizer(g, zerolog.Nop())

	close(g.gates[0])
	loaded := make(chan error, 1)
	go func() { _, err := s.LoadRoom(context.Background(), "r-1"); loaded <- err }()
	<-g.started
	require.NoError(t, <-loaded)

	errs := make(chan error, 2)
	go func() { errs <- s.Reload(context.Background(), "r-1") }()
	require.Equal(t, 1, <-g.started)
	go func() { errs <- s.Reload(context.Background(), "r-1") }()
	require.Equal(t, 2, <-g.started)

	close(g.gates[2])
	require.NoError(t, <-errs)
	close(g.gates[1])
	require.NoError(t, <-errs)

	msgs := s.Messages("r-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m-2", msgs[1].ID)
}

func TestReleaseDiscardsInFlightReload(t *testing.T) {
	g := newGated([]api.MessageDTO{text("m-1", "r-1", "u-1", "late")})
	s := NewSynchronizer(g, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		_, _ = s.LoadRoom(context.Background(), "r-1")
		close(done)
	}()
	<-g.started
	s.Release("r-1")
	close(g.gates[0])
	<-done

	assert.False(t, s.Loaded("r-1"))
	assert.Nil(t, s.Messages("r-1"))
	assert.Empty(t, s.Tracked())
}

func TestApplyRemoteEvent(t *testing.T) {
	f := newFakeFetcher()
	s := NewSynchronizer(f, zerolog.Nop())
	ctx := context.Background()
	_, err := s.LoadRoom(ctx, "r-1")
	require.NoError(t, err)
	_, err = s.LoadRoom(ctx, "r-2")
	require.NoError(t, err)

	require.NoError(t, s.ApplyRemoteEvent(ctx, realtime.Event{Name: realtime.EventSetup, RoomID: "r-1"}))
	assert.Equal(t, 1, f.count("r-1"), "non-change events do not reload")

	f.set("r-1", text("m-1", "r-1", "u-2", "new"))
	require.NoError(t, s.ApplyRemoteEvent(ctx, realtime.Event{Name: realtime.EventMessage, RoomID: "r-1"}))
	assert.Equal(t, 2, f.count("r-1"))
	assert.Equal(t, 1, f.count("r-2"))
	assert.Len(t, s.Messages("r-1"), 1)

	require.NoError(t, s.ApplyRemoteEvent(ctx, realtime.Event{Name: realtime.EventPin}))
	assert.Equal(t, 3, f.count("r-1"))
	assert.Equal(t, 2, f.count("r-2"))

	require.NoError(t, s.ApplyRemoteEvent(ctx, realtime.Event{Name: realtime.EventMessage, RoomID: "r-other"}))
	assert.Zero(t, f.count("r-other"))
}

func TestObserversRunAfterApply(t *testing.T) {
	f := newFakeFetcher()
	s := NewSynchronizer(f, zerolog.Nop())
	updated := make(chan string, 4)
	off := s.Subscribe(func(roomID string) { updated <- roomID })

	_, err := s.LoadRoom(context.Background(), "r-1")
	require.NoError(t, err)
	select {
	case id := <-updated:
		assert.Equal(t, "r-1", id)
	case <-time.After(time.Second):
		t.Fatal("observer not called")
	}

	off()
	require.NoError(t, s.Reload(context.Background(), "r-1"))
	assert.Len(t, updated, 0)
}

func TestResetDropsEverything(t *testing.T) {
	f := newFakeFetcher()
	f.set("r-1", text("m-1", "r-1", "u-1", "a"))
	s := NewSynchronizer(f, zerolog.Nop())
	_, err := s.LoadRoom(context.Background(), "r-1")
	require.NoError(t, err)

	s.Reset()
	assert.Empty(t, s.Tracked())
	assert.Nil(t, s.Messages("r-1"))
}

func TestMessageConversion(t *testing.T) {
	media := api.MessageDTO{ID: "m-1", Type: "IMAGE", Media: &api.MediaDTO{URL: "/m/1.png"}, Content: "ignored"}
	m := messageFromDTO(media, "r-1")
	assert.Equal(t, TypeImage, m.Type)
	assert.Equal(t, "/m/1.png", m.MediaRef)
	assert.Empty(t, m.Content)
	assert.Equal(t, "r-1", m.RoomID)

	recalled := messageFromDTO(api.MessageDTO{ID: "m-2", Type: "text", Content: "secret", IsRecalled: true}, "r-1")
	assert.Equal(t, RecalledPlaceholder, recalled.DisplayText())

	hidden := messageFromDTO(api.MessageDTO{ID: "m-3", Type: "text", Content: "secret", IsHidden: true}, "r-1")
	assert.Equal(t, "", hidden.DisplayText())
	assert.Equal(t, "m-3", hidden.ID)

	audio := messageFromDTO(api.MessageDTO{ID: "m-4", Type: "audio", Content: "/m/4.m4a"}, "r-1")
	assert.Equal(t, "/m/4.m4a", audio.DisplayText())
}
