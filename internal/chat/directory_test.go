package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
)

type fakeLister struct {
	rooms   []api.RoomDTO
	err     error
	created []struct {
		name    string
		members []string
	}
	listCalls int
}

func (f *fakeLister) Rooms(ctx context.Context) ([]api.RoomDTO, error) {
	f.listCalls++
	return f.rooms, f.err
}

func (f *fakeLister) CreateGroup(ctx context.Context, name string, members []string) error {
	f.created = append(f.created, struct {
		name    string
		members []string
	}{name, members})
	return f.err
}

func members(n int) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(`"u"`)
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func TestDeriveIsGroup(t *testing.T) {
	markers := []string{DefaultGroupMarker}
	tests := []struct {
		name   string
		dto    api.RoomDTO
		group  bool
		source GroupSource
	}{
		{"name heuristic with three members", api.RoomDTO{Name: "Nhóm Lập Trình", Members: members(3)}, true, GroupByMembers},
		{"name heuristic alone", api.RoomDTO{Name: "Nhóm Lập Trình", Members: members(2)}, true, GroupByName},
		{"private type with many members", api.RoomDTO{Type: "private", Name: "Nhóm Lập Trình", Members: members(3)}, true, GroupByMembers},
		{"private type with marker", api.RoomDTO{Type: "private", Name: "Nhóm A", Members: members(2)}, true, GroupByName},
		{"private type alone", api.RoomDTO{Type: "private", Name: "An", Members: members(2)}, false, GroupByNone},
		{"type group", api.RoomDTO{Type: "group", Name: "An"}, true, GroupByType},
		{"type reported before flag", api.RoomDTO{Type: "group", IsGroup: boolPtr(true), Members: members(5)}, true, GroupByType},
		{"false flag with many members", api.RoomDTO{IsGroup: boolPtr(false), Members: members(4)}, true, GroupByMembers},
		{"false flag alone", api.RoomDTO{IsGroup: boolPtr(false), Name: "Minh", Members: members(2)}, false, GroupByNone},
		{"flag true", api.RoomDTO{IsGroup: boolPtr(true), Name: "x"}, true, GroupByFlag},
		{"member count", api.RoomDTO{Name: "Friends", Members: members(3)}, true, GroupByMembers},
		{"direct chat", api.RoomDTO{Name: "Minh", Members: members(2)}, false, GroupByNone},
		{"marker is case sensitive", api.RoomDTO{Name: "nhóm nhỏ"}, false, GroupByNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group, src := DeriveIsGroup(tt.dto, markers)
			assert.Equal(t, tt.group, group)
			assert.Equal(t, tt.source, src)
		})
	}
}

// Three members, no type, no flag, group-looking name.
func TestDirectoryScenarioNhomLapTrinh(t *testing.T) {
	f := &fakeLister{rooms: []api.RoomDTO{{ID: "r-1", Name: "Nhóm Lập Trình", Members: members(3)}}}
	d := NewDirectory(f, nil, zerolog.Nop())
	rooms, err := d.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.True(t, rooms[0].IsGroup)

	// Without the member count the name alone still flags it.
	f.rooms[0].Members = nil
	rooms, err = d.ListRooms(context.Background())
	require.NoError(t, err)
	assert.True(t, rooms[0].IsGroup)
	assert.Equal(t, GroupByName, rooms[0].GroupSource)
}

func TestListRoomsKeepsServerOrderAndMetadata(t *testing.T) {
	f := &fakeLister{rooms: []api.RoomDTO{
		{ID: "r-2", Name: "Zed", PhotoURL: "/z.png", LastMessage: &api.LastMessageDTO{Text: "yo"}, UnreadCount: 3},
		{ID: "r-1", Name: "Anh"},
	}}
	d := NewDirectory(f, nil, zerolog.Nop())
	rooms, err := d.ListRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r-2", rooms[0].ID)
	assert.Equal(t, "/z.png", rooms[0].AvatarRef)
	assert.Equal(t, "yo", rooms[0].LastMessagePreview)
	assert.Equal(t, 3, rooms[0].UnreadCount)

	r, ok := d.Room("r-1")
	assert.True(t, ok)
	assert.Equal(t, "Anh", r.DisplayName)
}

func TestListRoomsFailureKeepsCache(t *testing.T) {
	f := &fakeLister{rooms: []api.RoomDTO{{ID: "r-1", Name: "Anh"}}}
	d := NewDirectory(f, nil, zerolog.Nop())
	_, err := d.ListRooms(context.Background())
	require.NoError(t, err)

	f.err = &api.Error{Kind: api.KindNetwork}
	_, err = d.ListRooms(context.Background())
	assert.True(t, errors.Is(err, api.ErrNetwork))
	assert.Len(t, d.Rooms(), 1)
}

func TestFilterRooms(t *testing.T) {
	rooms := []ChatRoom{{DisplayName: "Nhóm Lập Trình"}, {DisplayName: "Minh"}, {DisplayName: "nhóm bạn"}}
	assert.Len(t, FilterRooms(rooms, ""), 3)
	assert.Len(t, FilterRooms(rooms, "NHÓM"), 2)
	assert.Len(t, FilterRooms(rooms, "inh"), 1)
	assert.Empty(t, FilterRooms(rooms, "xyz"))
}

func TestCreateGroup(t *testing.T) {
	f := &fakeLister{}
	d := NewDirectory(f, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := d.CreateGroup(ctx, "  ", []string{"u-2", "u-3"})
	assert.True(t, errors.Is(err, api.ErrValidation))
	_, err = d.CreateGroup(ctx, "Study", []string{"u-2", "u-2", ""})
	assert.True(t, errors.Is(err, api.ErrValidation), "duplicates do not count")
	assert.Empty(t, f.created)

	name, err := d.CreateGroup(ctx, "Study", []string{"u-2", "u-3"})
	require.NoError(t, err)
	assert.Equal(t, "Nhóm Study", name)
	assert.Equal(t, 1, f.listCalls, "directory reloads after create")

	name, err = d.CreateGroup(ctx, "nhóm Bạn", []string{"u-2", "u-3"})
	require.NoError(t, err)
	assert.Equal(t, "nhóm Bạn", name)
	assert.Equal(t, []string{"u-2", "u-3"}, f.created[1].members)
}
