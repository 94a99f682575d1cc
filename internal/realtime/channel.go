// Package realtime is the room-scoped websocket channel that delivers
// change notifications and carries presence announcements.
package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
	"github.com/pelusa-v/pelusa-chat-client/internal/metrics"
)

// State of the channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	}
	return "disconnected"
}

// ErrCancelled is returned by Connect when Disconnect ran while dialing.
var ErrCancelled = errors.New("realtime: connect cancelled")

const (
	sendBuffer  = 32
	closeGrace  = time.Second
	dialTimeout = 10 * time.Second
)

// Conn is the socket the channel talks over.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// DialFunc opens a Conn.
type DialFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

// Handler receives dispatched events. Handlers run one at a time on the
// channel's dispatch goroutine.
type Handler func(Event)

// Channel is a session-scoped realtime connection. It is joined to at most
// one room at a time.
type Channel struct {
	url    string
	tokens api.TokenSource
	dial   DialFunc
	log    zerolog.Logger

	mu         sync.Mutex
	state      State
	gen        uint64
	roomID     string
	userID     string
	send       chan []byte
	cancelDial context.CancelFunc

	hmu      sync.RWMutex
	handlers map[string]map[uint64]Handler
	nextID   uint64
}

// Option configures a Channel.
type Option func(*Channel)

// WithDialer replaces the websocket dialer.
func WithDialer(d DialFunc) Option {
	return func(c *Channel) { c.dial = d }
}

// NewChannel creates a disconnected channel for url.
func NewChannel(url string, tokens api.TokenSource, logger zerolog.Logger, opts ...Option) *Channel {
	c := &Channel{
		url:      url,
		tokens:   tokens,
		dial:     dialWebsocket,
		log:      logger.With().Str("component", "realtime").Logger(),
		handlers: make(map[string]map[uint64]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func dialWebsocket(ctx context.Context, url string, header http.Header) (Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := d.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Room returns the joined room, or "".
func (c *Channel) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateJoined {
		return ""
	}
	return c.roomID
}

// On registers h for event (or AnyEvent). The returned func removes it.
func (c *Channel) On(event string, h Handler) func() {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[uint64]Handler)
	}
	c.handlers[event][id] = h
	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		delete(c.handlers[event], id)
	}
}

func (c *Channel) setState(s State) {
	c.state = s
	metrics.RealtimeState.Set(float64(s))
}

// Connect opens the channel and joins roomID as userID. Setup and join are
// announced without waiting for an acknowledgment. A previous connection
// is torn down first.
func (c *Channel) Connect(ctx context.Context, roomID, userID string) error {
	if roomID == "" || userID == "" {
		return api.Validation("realtime connect", "room and user are required")
	}
	c.Disconnect()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	dialCtx, cancel := context.WithCancel(ctx)
	c.cancelDial = cancel
	c.roomID, c.userID = roomID, userID
	c.setState(StateConnecting)
	c.mu.Unlock()

	header := http.Header{}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			header.Set("Authorization", tok)
		}
	}

	c.log.Debug().Str("room", roomID).Msg("connecting")
	conn, err := c.dial(dialCtx, c.url, header)
	cancel()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return ErrCancelled
	}
	c.cancelDial = nil
	if err != nil {
		c.setState(StateDisconnected)
		c.mu.Unlock()
		c.log.Warn().Err(err).Str("room", roomID).Msg("connect failed")
		return &api.Error{Kind: api.KindNetwork, Op: "realtime connect", Err: err}
	}
	send := make(chan []byte, sendBuffer)
	c.send = send
	c.setState(StateJoined)
	c.mu.Unlock()

	events := make(chan Event, sendBuffer)
	go c.writePump(conn, send)
	go c.readPump(gen, conn, roomID, events)
	go c.dispatch(events)

	c.emit(EventSetup, userID)
	c.emit(EventJoin, roomID, userID)
	c.log.Info().Str("room", roomID).Msg("joined")
	return nil
}

// Disconnect leaves the room and closes the connection. It never blocks
// on the network and is safe to call in any state.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateDisconnected:
		return
	case StateConnecting:
		if c.cancelDial != nil {
			c.cancelDial()
			c.cancelDial = nil
		}
	case StateJoined:
		c.emitLocked(EventLeave, c.roomID, c.userID)
		close(c.send)
		c.send = nil
	}
	c.gen++
	c.log.Info().Str("room", c.roomID).Msg("disconnected")
	c.roomID, c.userID = "", ""
	c.setState(StateDisconnected)
}

// Emit sends an application event while joined. Best effort: dropped when
// not joined or when the send buffer is full.
func (c *Channel) Emit(event string, args ...string) bool {
	return c.emit(event, args...)
}

func (c *Channel) emit(event string, args ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emitLocked(event, args...)
}

func (c *Channel) emitLocked(event string, args ...string) bool {
	if c.state != StateJoined || c.send == nil {
		return false
	}
	data, err := encodeFrame(event, args...)
	if err != nil {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.log.Warn().Str("event", event).Msg("send buffer full, dropping announcement")
		return false
	}
}

func (c *Channel) writePump(conn Conn, send <-chan []byte) {
	for data := range send {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.log.Debug().Err(err).Msg("write failed")
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.AfterFunc(closeGrace, func() { conn.Close() })
}

func (c *Channel) readPump(gen uint64, conn Conn, roomID string, events chan<- Event) {
	defer close(events)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			unexpected := c.gen == gen
			if unexpected {
				c.gen++
				close(c.send)
				c.send = nil
				c.roomID, c.userID = "", ""
				c.setState(StateDisconnected)
			}
			c.mu.Unlock()
			conn.Close()
			if unexpected {
				c.log.Warn().Err(err).Str("room", roomID).Msg("connection lost")
				events <- Event{Name: EventDisconnect, RoomID: roomID}
			}
			return
		}
		ev, err := decodeFrame(data, roomID)
		if err != nil {
			c.log.Debug().Err(err).Msg("ignoring malformed frame")
			continue
		}
		if !c.current(gen) {
			// Left the room; late frames are not delivered.
			continue
		}
		metrics.RealtimeEvents.WithLabelValues(ev.Name).Inc()
		events <- ev
	}
}

func (c *Channel) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// dispatch delivers events to handlers in arrival order.
func (c *Channel) dispatch(events <-chan Event) {
	for ev := range events {
		for _, h := range c.handlersFor(ev.Name) {
			h(ev)
		}
	}
}

func (c *Channel) handlersFor(event string) []Handler {
	c.hmu.RLock()
	defer c.hmu.RUnlock()
	out := make([]Handler, 0, len(c.handlers[event])+len(c.handlers[AnyEvent]))
	for _, h := range c.handlers[event] {
		out = append(out, h)
	}
	for _, h := range c.handlers[AnyEvent] {
		out = append(out, h)
	}
	return out
}
