package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
)

// DefaultGroupMarker is the substring that flags a group by name.
const DefaultGroupMarker = "Nhóm"

// groupNamePrefix is prepended to new group names.
const groupNamePrefix = "Nhóm "

// minGroupMembers is how many members besides the creator a new group needs.
const minGroupMembers = 2

// GroupSource names the signal that decided ChatRoom.IsGroup.
type GroupSource string

const (
	GroupByType    GroupSource = "type"
	GroupByFlag    GroupSource = "flag"
	GroupByMembers GroupSource = "members"
	GroupByName    GroupSource = "name"
	GroupByNone    GroupSource = "none"
)

// RoomLister is the backend surface used by Directory.
type RoomLister interface {
	Rooms(ctx context.Context) ([]api.RoomDTO, error)
	CreateGroup(ctx context.Context, name string, members []string) error
}

// Directory holds the signed-in user's room list.
type Directory struct {
	api     RoomLister
	markers []string
	log     zerolog.Logger

	mu    sync.RWMutex
	rooms []ChatRoom
	byID  map[string]ChatRoom
}

// NewDirectory creates a directory. Without markers the default group
// marker is used.
func NewDirectory(lister RoomLister, markers []string, logger zerolog.Logger) *Directory {
	if len(markers) == 0 {
		markers = []string{DefaultGroupMarker}
	}
	return &Directory{
		api:     lister,
		markers: markers,
		log:     logger.With().Str("component", "directory").Logger(),
		byID:    make(map[string]ChatRoom),
	}
}

// ListRooms fetches the room list in server order and caches it. On
// failure the cached list is left as it was.
func (d *Directory) ListRooms(ctx context.Context) ([]ChatRoom, error) {
	dtos, err := d.api.Rooms(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("list rooms failed")
		return nil, err
	}
	rooms := make([]ChatRoom, 0, len(dtos))
	byID := make(map[string]ChatRoom, len(dtos))
	for _, dto := range dtos {
		r := d.roomFromDTO(dto)
		rooms = append(rooms, r)
		byID[r.ID] = r
	}

	d.mu.Lock()
	d.rooms = rooms
	d.byID = byID
	d.mu.Unlock()

	out := make([]ChatRoom, len(rooms))
	copy(out, rooms)
	return out, nil
}

func (d *Directory) roomFromDTO(dto api.RoomDTO) ChatRoom {
	isGroup, src := DeriveIsGroup(dto, d.markers)
	r := ChatRoom{
		ID:          dto.ID,
		DisplayName: dto.Name,
		AvatarRef:   dto.PhotoURL,
		IsGroup:     isGroup,
		GroupSource: src,
		UnreadCount: dto.UnreadCount,
		MemberCount: len(dto.Members),
	}
	if dto.LastMessage != nil {
		r.LastMessagePreview = dto.LastMessage.Text
	}
	return r
}

// DeriveIsGroup decides whether a room is a group. Any one signal is
// enough: explicit type "group", then the isGroup flag, then more than two
// members, then a marker in the name. The source reports the first
// positive signal in that order. A negative type or flag does not rule a
// group out.
func DeriveIsGroup(dto api.RoomDTO, markers []string) (bool, GroupSource) {
	if strings.TrimSpace(dto.Type) == "group" {
		return true, GroupByType
	}
	if dto.IsGroup != nil && *dto.IsGroup {
		return true, GroupByFlag
	}
	if len(dto.Members) > 2 {
		return true, GroupByMembers
	}
	for _, m := range markers {
		if m != "" && strings.Contains(dto.Name, m) {
			return true, GroupByName
		}
	}
	return false, GroupByNone
}

// Rooms returns the cached list.
func (d *Directory) Rooms() []ChatRoom {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ChatRoom, len(d.rooms))
	copy(out, d.rooms)
	return out
}

// Room looks up a cached room.
func (d *Directory) Room(roomID string) (ChatRoom, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.byID[roomID]
	return r, ok
}

// Filter applies FilterRooms to the cached list.
func (d *Directory) Filter(query string) []ChatRoom {
	return FilterRooms(d.Rooms(), query)
}

// FilterRooms keeps rooms whose display name contains query, ignoring
// case. An empty query keeps everything.
func FilterRooms(rooms []ChatRoom, query string) []ChatRoom {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]ChatRoom, 0, len(rooms))
	for _, r := range rooms {
		if q == "" || strings.Contains(strings.ToLower(r.DisplayName), q) {
			out = append(out, r)
		}
	}
	return out
}

// GroupName returns name with the group prefix applied.
func GroupName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(strings.ToLower(name), strings.ToLower(groupNamePrefix)) {
		return name
	}
	return groupNamePrefix + name
}

// CreateGroup creates a group with members and reloads the directory. It
// returns the name the group was created with.
func (d *Directory) CreateGroup(ctx context.Context, name string, members []string) (string, error) {
	const op = "create group"
	if strings.TrimSpace(name) == "" {
		return "", api.Validation(op, "group name is required")
	}
	seen := make(map[string]bool, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		ids = append(ids, m)
	}
	if len(ids) < minGroupMembers {
		return "", api.Validation(op, "select at least 2 members")
	}

	final := GroupName(name)
	if err := d.api.CreateGroup(ctx, final, ids); err != nil {
		d.log.Warn().Err(err).Str("name", final).Msg("create group failed")
		return "", api.Reclassify(err, api.KindActionFailed, op)
	}
	d.log.Info().Str("name", final).Int("members", len(ids)).Msg("group created")
	if _, err := d.ListRooms(ctx); err != nil {
		d.log.Warn().Err(err).Msg("reload after create group failed")
	}
	return final, nil
}

// Reset clears the cache.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.rooms = nil
	d.byID = make(map[string]ChatRoom)
	d.mu.Unlock()
}
