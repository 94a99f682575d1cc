package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
	"github.com/pelusa-v/pelusa-chat-client/internal/metrics"
)

// UnknownMemberName is shown when a member's profile cannot be fetched.
const UnknownMemberName = "Unknown"

const profileFetchLimit = 8

// GroupAPI is the backend surface used by Authority.
type GroupAPI interface {
	GroupInfo(ctx context.Context, roomID string) (*api.GroupInfoDTO, error)
	User(ctx context.Context, userID string) (*api.UserDTO, error)
	GroupAdmin(ctx context.Context, roomID, op, memberID string) error
}

// RoomResolver looks up directory metadata.
type RoomResolver interface {
	Room(roomID string) (ChatRoom, bool)
}

// Identity yields the signed-in user.
type Identity interface {
	api.TokenSource
	UserID() string
}

// Authority resolves roles in group rooms and gates privileged actions.
// The gate is advisory; the server decides.
type Authority struct {
	api   GroupAPI
	rooms RoomResolver
	me    Identity
	log   zerolog.Logger

	mu     sync.RWMutex
	groups map[string]*Group
}

func NewAuthority(g GroupAPI, rooms RoomResolver, me Identity, logger zerolog.Logger) *Authority {
	return &Authority{
		api:    g,
		rooms:  rooms,
		me:     me,
		log:    logger.With().Str("component", "membership").Logger(),
		groups: make(map[string]*Group),
	}
}

// Load fetches a group's owner and members plus each member's profile.
// Profiles are fetched concurrently; a failed one falls back to
// UnknownMemberName.
func (a *Authority) Load(ctx context.Context, roomID string) (*Group, error) {
	const op = "load members"
	if roomID == "" {
		return nil, api.Validation(op, "room is required")
	}
	if a.rooms != nil {
		if room, ok := a.rooms.Room(roomID); ok && !room.IsGroup {
			return nil, api.Validation(op, "not a group room")
		}
	}
	info, err := a.api.GroupInfo(ctx, roomID)
	if err != nil {
		a.log.Warn().Err(err).Str("room", roomID).Msg("load group failed")
		return nil, err
	}

	members := make([]GroupMember, len(info.Members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileFetchLimit)
	for i, m := range info.Members {
		i, m := i, m
		members[i] = GroupMember{
			UserID:        m.UserID,
			RoomID:        roomID,
			DisplayName:   UnknownMemberName,
			Roles:         m.Roles,
			IsOwner:       m.UserID == info.OwnerID,
			AddedByUserID: m.AddByUserID,
			AddedAt:       m.AddAt,
		}
		g.Go(func() error {
			u, err := a.api.User(gctx, m.UserID)
			if err != nil {
				a.log.Debug().Err(err).Str("user", m.UserID).Msg("member profile unavailable")
				return nil
			}
			if name := u.Label(); name != "" {
				members[i].DisplayName = name
			}
			members[i].PhotoURL = u.Photo()
			return nil
		})
	}
	_ = g.Wait()

	group := &Group{RoomID: roomID, Name: info.Name, OwnerID: info.OwnerID, Members: members}
	a.mu.Lock()
	a.groups[roomID] = group
	a.mu.Unlock()
	return cloneGroup(group), nil
}

// Group returns the cached group.
func (a *Authority) Group(roomID string) (*Group, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	g, ok := a.groups[roomID]
	if !ok {
		return nil, false
	}
	return cloneGroup(g), true
}

// ResolveRole returns userID's role in a loaded group; MEMBER otherwise.
func (a *Authority) ResolveRole(roomID, userID string) Role {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.groups[roomID].RoleOf(userID)
}

// RoleOf derives a user's role. OWNER wins over any ADMIN role.
func (g *Group) RoleOf(userID string) Role {
	if g == nil || userID == "" {
		return RoleMember
	}
	if userID == g.OwnerID {
		return RoleOwner
	}
	if m, ok := g.Member(userID); ok && m.IsAdmin() {
		return RoleAdmin
	}
	return RoleMember
}

// Member finds userID among the group's members.
func (g *Group) Member(userID string) (GroupMember, bool) {
	if g == nil {
		return GroupMember{}, false
	}
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return GroupMember{}, false
}

func (g *Group) privileged(actorID, targetID string) bool {
	if actorID == "" || targetID == "" || actorID == targetID {
		return false
	}
	if r := g.RoleOf(actorID); r != RoleOwner && r != RoleAdmin {
		return false
	}
	if _, ok := g.Member(targetID); !ok {
		return false
	}
	return g.RoleOf(targetID) != RoleOwner
}

// CanKick reports whether actor may remove target.
func (g *Group) CanKick(actorID, targetID string) bool {
	return g.privileged(actorID, targetID)
}

// CanPromote reports whether actor may make target an ADMIN.
func (g *Group) CanPromote(actorID, targetID string) bool {
	return g.privileged(actorID, targetID) && g.RoleOf(targetID) != RoleAdmin
}

// CanDemote reports whether actor may take ADMIN away from target.
func (g *Group) CanDemote(actorID, targetID string) bool {
	return g.privileged(actorID, targetID) && g.RoleOf(targetID) == RoleAdmin
}

// Kick removes targetID from the group.
func (a *Authority) Kick(ctx context.Context, roomID, targetID string) error {
	return a.privilegedAction(ctx, "kick", roomID, targetID, api.GroupKick, (*Group).CanKick)
}

// Promote grants targetID the ADMIN role.
func (a *Authority) Promote(ctx context.Context, roomID, targetID string) error {
	return a.privilegedAction(ctx, "promote", roomID, targetID, api.GroupSetAdmin, (*Group).CanPromote)
}

// Demote removes targetID's ADMIN role.
func (a *Authority) Demote(ctx context.Context, roomID, targetID string) error {
	return a.privilegedAction(ctx, "demote", roomID, targetID, api.GroupRemoveAdmin, (*Group).CanDemote)
}

func (a *Authority) privilegedAction(ctx context.Context, action, roomID, targetID, op string, allowed func(*Group, string, string) bool) (err error) {
	defer func() { metrics.Actions.WithLabelValues(action, metrics.Outcome(err)).Inc() }()

	if a.me == nil || a.me.Token() == "" {
		return &api.Error{Kind: api.KindAuth, Op: action, Message: "no session token"}
	}
	actorID := a.me.UserID()

	a.mu.RLock()
	g := a.groups[roomID]
	ok := g != nil && allowed(g, actorID, targetID)
	a.mu.RUnlock()
	if !ok {
		a.log.Info().Str("room", roomID).Str("action", action).Str("target", targetID).Msg("not permitted, request not sent")
		return &api.Error{Kind: api.KindNotPermitted, Op: action, Message: "no action taken"}
	}

	if err := a.api.GroupAdmin(ctx, roomID, op, targetID); err != nil {
		a.log.Warn().Err(err).Str("room", roomID).Str("action", action).Msg("group action failed")
		return api.Reclassify(err, api.KindActionFailed, action)
	}
	if _, err := a.Load(ctx, roomID); err != nil {
		a.log.Warn().Err(err).Str("room", roomID).Msg("reload members failed")
	}
	return nil
}

// Forget drops a cached group.
func (a *Authority) Forget(roomID string) {
	a.mu.Lock()
	delete(a.groups, roomID)
	a.mu.Unlock()
}

// Reset drops every cached group.
func (a *Authority) Reset() {
	a.mu.Lock()
	a.groups = make(map[string]*Group)
	a.mu.Unlock()
}

func cloneGroup(g *Group) *Group {
	out := *g
	out.Members = make([]GroupMember, len(g.Members))
	copy(out.Members, g.Members)
	return &out
}
