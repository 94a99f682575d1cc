package chat_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
	"github.com/pelusa-v/pelusa-chat-client/internal/chat"
	"github.com/pelusa-v/pelusa-chat-client/internal/fakebackend"
	"github.com/pelusa-v/pelusa-chat-client/internal/session"
)

func TestFriendRequests(t *testing.T) {
	b, err := fakebackend.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	me := b.AddUser("an@example.com", "secret", "An")
	binh := b.AddUser("binh@example.com", "secret", "Bình")
	chi := b.AddUser("chi@example.com", "secret", "Chi")
	b.Request(binh.ID, me.ID)
	b.Request(me.ID, chi.ID)

	store := session.NewStore(zerolog.Nop())
	store.Set(session.Session{UserID: me.ID, AuthToken: me.Token})
	friends := chat.NewFriends(api.NewClient(b.URL(), store, zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	received, err := friends.Received(ctx)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "Bình", received[0].DisplayName)

	sent, err := friends.Sent(ctx)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, chi.ID, sent[0].ID)

	require.NoError(t, friends.Accept(ctx, binh.ID))
	list, err := friends.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, binh.ID, list[0].ID)

	err = friends.Accept(ctx, binh.ID)
	assert.ErrorIs(t, err, api.ErrActionFailed, "request already answered")

	require.NoError(t, friends.Cancel(ctx, chi.ID))
	sent, err = friends.Sent(ctx)
	require.NoError(t, err)
	assert.Empty(t, sent)

	assert.ErrorIs(t, friends.Cancel(ctx, ""), api.ErrValidation)
}

func TestFilterFriends(t *testing.T) {
	list := []chat.Friend{
		{DisplayName: "Bình", Email: "binh@example.com"},
		{DisplayName: "Chi", Email: "chi@work.vn"},
	}
	assert.Len(t, chat.FilterFriends(list, ""), 2)
	assert.Len(t, chat.FilterFriends(list, "WORK"), 1)
	assert.Len(t, chat.FilterFriends(list, "bình"), 1)
	assert.Empty(t, chat.FilterFriends(list, "zed"))
}
