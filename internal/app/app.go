// Package app wires the chat core for one signed-in session: directory,
// synchronizer, realtime channel, actions and membership.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
	"github.com/pelusa-v/pelusa-chat-client/internal/chat"
	"github.com/pelusa-v/pelusa-chat-client/internal/config"
	"github.com/pelusa-v/pelusa-chat-client/internal/realtime"
	"github.com/pelusa-v/pelusa-chat-client/internal/session"
)

// eventReloadTimeout bounds a reload triggered by a realtime event.
const eventReloadTimeout = 15 * time.Second

// App is the session-scoped composition root.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Session   *session.Store
	API       *api.Client
	Directory *chat.Directory
	Sync      *chat.Synchronizer
	Actions   *chat.Coordinator
	Authority *chat.Authority
	Friends   *chat.Friends
	Channel   *realtime.Channel
	Hub       *chat.Hub

	mu     sync.Mutex
	active string
}

// Option adjusts how App builds its parts.
type Option func(*options)

type options struct {
	apiOpts     []api.Option
	channelOpts []realtime.Option
	perms       chat.PermissionChecker
}

// WithAPIOptions passes options to the backend client.
func WithAPIOptions(opts ...api.Option) Option {
	return func(o *options) { o.apiOpts = append(o.apiOpts, opts...) }
}

// WithChannelOptions passes options to the realtime channel.
func WithChannelOptions(opts ...realtime.Option) Option {
	return func(o *options) { o.channelOpts = append(o.channelOpts, opts...) }
}

// WithPermissions sets the device permission checker used for media.
func WithPermissions(p chat.PermissionChecker) Option {
	return func(o *options) { o.perms = p }
}

// New builds an App. If cfg carries a pre-issued token it is installed.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) *App {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := session.NewStore(logger)
	client := api.NewClient(cfg.BaseURL, store, logger,
		append([]api.Option{api.WithTimeout(cfg.RequestTimeout)}, o.apiOpts...)...)
	dir := chat.NewDirectory(client, cfg.GroupNameMarkers, logger)
	syn := chat.NewSynchronizer(client, logger)

	a := &App{
		Config:    cfg,
		Log:       logger.With().Str("component", "app").Logger(),
		Session:   store,
		API:       client,
		Directory: dir,
		Sync:      syn,
		Actions:   chat.NewCoordinator(client, syn, store, o.perms, logger),
		Authority: chat.NewAuthority(client, dir, store, logger),
		Friends:   chat.NewFriends(client, logger),
		Channel:   realtime.NewChannel(cfg.SocketURL, store, logger, o.channelOpts...),
		Hub:       chat.NewHub(logger),
	}

	a.Channel.On(realtime.AnyEvent, a.onRealtimeEvent)
	syn.Subscribe(a.Hub.Notify)
	store.OnInvalidate(a.invalidate)

	if cfg.Token != "" {
		store.Set(session.Session{UserID: cfg.UserID, AuthToken: cfg.Token})
	}
	return a
}

func (a *App) onRealtimeEvent(ev realtime.Event) {
	if ev.Name == realtime.EventDisconnect {
		a.Log.Warn().Str("room", ev.RoomID).Msg("realtime connection lost")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventReloadTimeout)
	defer cancel()
	if err := a.Sync.ApplyRemoteEvent(ctx, ev); err != nil {
		a.Log.Warn().Err(err).Str("room", ev.RoomID).Str("event", ev.Name).Msg("reload on event failed")
	}
}

// invalidate runs when the session changes hands.
func (a *App) invalidate() {
	a.Channel.Disconnect()
	a.Sync.Reset()
	a.Directory.Reset()
	a.Authority.Reset()
	a.Actions.ClearDrafts()
	a.mu.Lock()
	a.active = ""
	a.mu.Unlock()
}

// Login signs in with email and password.
func (a *App) Login(ctx context.Context, email, password string) (session.Session, error) {
	return a.Session.Login(ctx, a.API, email, password)
}

// Logout ends the session; every cache is dropped.
func (a *App) Logout() {
	a.Session.Logout()
}

// RoomView is what a room screen renders.
type RoomView struct {
	RoomID  string         `json:"room_id"`
	Pinned  *chat.Message  `json:"pinned"`
	Visible []chat.Message `json:"visible"`
	Draft   string         `json:"draft,omitempty"`
	Live    bool           `json:"live"`
}

// View projects the cached state of roomID.
func (a *App) View(roomID string) RoomView {
	msgs := a.Sync.Messages(roomID)
	v := RoomView{
		RoomID:  roomID,
		Visible: chat.VisibleOf(msgs),
		Draft:   a.Actions.Draft(roomID),
		Live:    a.Channel.Room() == roomID,
	}
	if p, ok := chat.PinnedOf(msgs); ok {
		v.Pinned = &p
	}
	return v
}

// EnterRoom loads roomID and joins its realtime channel. The room is
// usable even if the channel could not be opened; View reports Live=false.
// If the room is left while loading or joining, EnterRoom returns
// realtime.ErrCancelled and leaves the channel disconnected from it.
func (a *App) EnterRoom(ctx context.Context, roomID string) (RoomView, error) {
	sess, err := a.Session.Require("enter room")
	if err != nil {
		return RoomView{}, err
	}
	if sess.UserID == "" {
		return RoomView{}, &api.Error{Kind: api.KindAuth, Op: "enter room", Message: "user id unknown, sign in again"}
	}

	a.mu.Lock()
	prev := a.active
	a.active = roomID
	a.mu.Unlock()
	if prev != "" && prev != roomID {
		a.Sync.Release(prev)
	}

	if _, err := a.Sync.LoadRoom(ctx, roomID); err != nil {
		a.Sync.Release(roomID)
		a.mu.Lock()
		if a.active == roomID {
			a.active = ""
		}
		a.mu.Unlock()
		return RoomView{}, err
	}
	if !a.isActive(roomID) {
		return RoomView{}, realtime.ErrCancelled
	}

	err = a.Channel.Connect(ctx, roomID, sess.UserID)
	if !a.isActive(roomID) {
		if a.Channel.Room() == roomID {
			a.Channel.Disconnect()
		}
		return RoomView{}, realtime.ErrCancelled
	}
	if err != nil && !errors.Is(err, realtime.ErrCancelled) {
		a.Log.Warn().Err(err).Str("room", roomID).Msg("realtime unavailable, room will not update live")
	}
	return a.View(roomID), nil
}

func (a *App) isActive(roomID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active == roomID
}

// LeaveRoom disconnects the channel and drops the room's cache. In-flight
// reloads for it are discarded when they land.
func (a *App) LeaveRoom(roomID string) {
	a.mu.Lock()
	if a.active == roomID {
		a.active = ""
	}
	a.mu.Unlock()
	if a.Channel.Room() == roomID || a.Channel.State() == realtime.StateConnecting {
		a.Channel.Disconnect()
	}
	a.Sync.Release(roomID)
	a.Authority.Forget(roomID)
}

// ActiveRoom is the room currently entered, or "".
func (a *App) ActiveRoom() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Close tears the session-scoped resources down.
func (a *App) Close() {
	a.Channel.Disconnect()
}
