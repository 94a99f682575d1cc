// Package fakebackend is an in-memory chat backend speaking the same HTTP
// and websocket protocol as the real one. Tests run the client against it.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
)

// ValidOTP is the only registration code the backend accepts.
const ValidOTP = "123456"

type User struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
	Token       string
}

type Room struct {
	ID      string
	Name    string
	Type    string
	IsGroup *bool
	OwnerID string
	Members []string
	Admins  map[string]bool
}

type failure struct {
	status  int
	message string
}

// Backend is a running fake server.
type Backend struct {
	mu       sync.Mutex
	users    map[string]*User
	tokens   map[string]string // token -> user id
	rooms    []*Room
	messages map[string][]*api.MessageDTO
	friends  map[string][]string
	requests map[string][]string // receiver -> senders
	hits     map[string]int
	fail     map[string]failure
	frames   []Frame
	sockets  map[*socket]bool
	clock    time.Time

	app *fiber.App
	ln  net.Listener
}

// Frame is an event a client sent over the socket.
type Frame struct {
	UserID string
	Event  string            `json:"event"`
	Data   []json.RawMessage `json:"data"`
}

type socket struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	userID string
	room   string
}

func (s *socket) write(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(websocket.TextMessage, b)
}

// Start serves a new backend on 127.0.0.1 with an ephemeral port.
func Start() (*Backend, error) {
	b := &Backend{
		users:    map[string]*User{},
		tokens:   map[string]string{},
		messages: map[string][]*api.MessageDTO{},
		friends:  map[string][]string{},
		requests: map[string][]string{},
		hits:     map[string]int{},
		fail:     map[string]failure{},
		sockets:  map[*socket]bool{},
		clock:    time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	b.ln = ln
	b.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	b.routes()
	go func() { _ = b.app.Listener(ln) }()
	return b, nil
}

// URL is the HTTP root.
func (b *Backend) URL() string { return "http://" + b.ln.Addr().String() }

// SocketURL is the realtime endpoint.
func (b *Backend) SocketURL() string { return "ws://" + b.ln.Addr().String() + "/socket" }

func (b *Backend) Close() error { return b.app.Shutdown() }

func (b *Backend) routes() {
	a := b.app
	a.Post("/api/login", b.handle(b.login))
	a.Post("/api/users/send-otp", b.handle(b.sendOTP))
	a.Post("/api/users/register", b.handle(b.register))

	a.Get("/socket", func(c *fiber.Ctx) error {
		uid, ok := b.userFor(c.Get("Authorization"))
		if !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		c.Locals("user", uid)
		return c.Next()
	}, websocket.New(b.serveSocket))

	auth := a.Group("", b.requireAuth)
	auth.Get("/api/profile", b.handle(b.profile))
	auth.Get("/api/user/:userId", b.handle(b.user))
	auth.Get("/api/info-chat-item", b.handle(b.listRooms))
	auth.Get("/api/messages/:roomId", b.handle(b.listMessages))
	auth.Post("/api/send-message", b.handle(b.sendMessage))
	auth.Post("/api/send-media", b.handle(b.sendMedia))
	auth.Post("/api/creategroup", b.handle(b.createGroup))
	auth.Get("/api/info-user/:roomId", b.handle(b.groupInfo))
	auth.Post("/api/groups/:roomId/:op", b.handle(b.groupAdmin))
	auth.Get("/api/getAllFriend", b.handle(b.listFriends))
	auth.Get("/api/getAllFriendRequest", b.handle(b.receivedRequests))
	auth.Get("/api/getAllCancelFriendRequest", b.handle(b.sentRequests))
	auth.Post("/api/accept-friend", b.handle(b.acceptFriend))
	auth.Post("/api/cancel-friend-request", b.handle(b.cancelRequest))
	auth.Delete("/message/:messageId", b.handle(b.deleteMessage))
	auth.Patch("/:mutation/:messageId", b.handle(b.mutate))
}

// handle counts the hit and applies a queued failure before h runs.
func (b *Backend) handle(h fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Method() + " " + c.Route().Path
		b.mu.Lock()
		b.hits[key]++
		f, failing := b.fail[key]
		delete(b.fail, key)
		b.mu.Unlock()
		if failing {
			return c.Status(f.status).JSON(fiber.Map{"message": f.message})
		}
		return h(c)
	}
}

func (b *Backend) requireAuth(c *fiber.Ctx) error {
	uid, ok := b.userFor(c.Get("Authorization"))
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid token"})
	}
	c.Locals("user", uid)
	return c.Next()
}

func (b *Backend) userFor(token string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	uid, ok := b.tokens[token]
	return uid, ok
}

func currentUser(c *fiber.Ctx) string {
	uid, _ := c.Locals("user").(string)
	return uid
}

func reject(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}

// Hits is how many requests reached route, e.g. "POST /api/groups/:roomId/:op".
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// FailNext makes the next request to route answer status with msg.
func (b *Backend) FailNext(route string, status int, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[route] = failure{status: status, message: msg}
}

// Frames returns the events clients sent over the socket, in order.
func (b *Backend) Frames() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

// AddUser registers a user and returns it with an issued token.
func (b *Backend) AddUser(email, password, name string) *User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(email, password, name)
}

func (b *Backend) addUserLocked(email, password, name string) *User {
	u := &User{
		ID:          "u-" + uuid.NewString()[:8],
		Email:       email,
		Password:    password,
		DisplayName: name,
		Token:       uuid.NewString(),
	}
	b.users[u.ID] = u
	b.tokens[u.Token] = u.ID
	return u
}

// AddRoom stores r, assigning an id when empty.
func (b *Backend) AddRoom(r Room) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.ID == "" {
		r.ID = "r-" + uuid.NewString()[:8]
	}
	if r.Admins == nil {
		r.Admins = map[string]bool{}
	}
	b.rooms = append(b.rooms, &r)
	return r.ID
}

// AddMessage appends a text message and returns its id.
func (b *Backend) AddMessage(roomID, senderID, content string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appendLocked(roomID, senderID, "text", content, nil, "").Key()
}

// Pinned returns the ids of pinned messages in roomID.
func (b *Backend) Pinned(roomID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for _, m := range b.messages[roomID] {
		if m.IsPinned {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Befriend makes two users friends.
func (b *Backend) Befriend(a, c string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.friends[a] = append(b.friends[a], c)
	b.friends[c] = append(b.friends[c], a)
}

// Request records a friend request from sender to receiver.
func (b *Backend) Request(sender, receiver string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests[receiver] = append(b.requests[receiver], sender)
}

func (b *Backend) appendLocked(roomID, senderID, typ, content string, media *api.MediaDTO, reply string) *api.MessageDTO {
	b.clock = b.clock.Add(time.Minute)
	name := ""
	if u := b.users[senderID]; u != nil {
		name = u.DisplayName
	}
	m := &api.MessageDTO{
		ID:         "m-" + uuid.NewString()[:8],
		ChatRoomID: roomID,
		SenderID:   senderID,
		SenderName: name,
		Type:       typ,
		Content:    content,
		Media:      media,
		Reply:      reply,
		CreatedAt:  b.clock,
	}
	b.messages[roomID] = append(b.messages[roomID], m)
	return m
}

func (b *Backend) roomLocked(id string) *Room {
	for _, r := range b.rooms {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (b *Backend) findMessageLocked(id string) (*api.MessageDTO, string) {
	for roomID, list := range b.messages {
		for _, m := range list {
			if m.ID == id {
				return m, roomID
			}
		}
	}
	return nil, ""
}

// Broadcast sends event to every socket joined to roomID.
func (b *Backend) Broadcast(roomID, event string) {
	frame, _ := json.Marshal(map[string]interface{}{"event": event, "data": []string{roomID}})
	b.mu.Lock()
	targets := make([]*socket, 0, len(b.sockets))
	for s := range b.sockets {
		if s.room == roomID {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()
	for _, s := range targets {
		s.write(frame)
	}
}

// Joined lists the user ids whose sockets are joined to roomID.
func (b *Backend) Joined(roomID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for s := range b.sockets {
		if s.room == roomID {
			ids = append(ids, s.userID)
		}
	}
	sort.Strings(ids)
	return ids
}

// DropSockets closes every realtime connection from the server side.
func (b *Backend) DropSockets() {
	b.mu.Lock()
	targets := make([]*socket, 0, len(b.sockets))
	for s := range b.sockets {
		targets = append(targets, s)
	}
	b.mu.Unlock()
	for _, s := range targets {
		_ = s.conn.Close()
	}
}

func (b *Backend) serveSocket(conn *websocket.Conn) {
	s := &socket{conn: conn}
	s.userID, _ = conn.Locals("user").(string)
	b.mu.Lock()
	b.sockets[s] = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.sockets, s)
		b.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		f.UserID = s.userID
		var args []string
		for _, raw := range f.Data {
			var v string
			_ = json.Unmarshal(raw, &v)
			args = append(args, v)
		}
		b.mu.Lock()
		b.frames = append(b.frames, f)
		switch f.Event {
		case "join chat":
			if len(args) > 0 {
				s.room = args[0]
			}
		case "leave chat":
			s.room = ""
		}
		b.mu.Unlock()
	}
}

func (b *Backend) isMember(r *Room, uid string) bool {
	for _, m := range r.Members {
		if m == uid {
			return true
		}
	}
	return false
}
