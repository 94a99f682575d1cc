package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-chat-client/internal/app"
	"github.com/pelusa-v/pelusa-chat-client/internal/chat"
	"github.com/pelusa-v/pelusa-chat-client/internal/config"
	"github.com/pelusa-v/pelusa-chat-client/internal/fakebackend"
	"github.com/pelusa-v/pelusa-chat-client/internal/realtime"
)

type bridge struct {
	app     *app.App
	backend *fakebackend.Backend
	router  *fiber.App
	perms   *DevicePermissions
	owner   *fakebackend.User
	me      *fakebackend.User
	third   *fakebackend.User
	direct  string
	group   string
}

func newBridge(t *testing.T) *bridge {
	t.Helper()
	b, err := fakebackend.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	owner := b.AddUser("owner@example.com", "secret", "Chủ")
	me := b.AddUser("an@example.com", "secret", "An")
	third := b.AddUser("binh@example.com", "secret", "Bình")
	direct := b.AddRoom(fakebackend.Room{Name: "Chủ", Members: []string{owner.ID, me.ID}})
	group := b.AddRoom(fakebackend.Room{
		Name:    "Nhóm Lập Trình",
		Type:    "group",
		OwnerID: owner.ID,
		Members: []string{owner.ID, me.ID, third.ID},
	})

	cfg := config.Default()
	cfg.BaseURL = b.URL()
	cfg.SocketURL = b.SocketURL()
	perms := NewDevicePermissions()
	a := app.New(cfg, zerolog.Nop(), app.WithPermissions(perms))
	t.Cleanup(a.Close)

	return &bridge{
		app:     a,
		backend: b,
		router:  NewRouter(New(a, perms, zerolog.Nop())),
		perms:   perms,
		owner:   owner,
		me:      me,
		third:   third,
		direct:  direct,
		group:   group,
	}
}

func (br *bridge) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return br.send(t, req)
}

func (br *bridge) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := br.router.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func (br *bridge) login(t *testing.T) {
	t.Helper()
	resp, body := br.do(t, http.MethodPost, "/api/session/login", map[string]string{
		"email": br.me.Email, "password": br.me.Password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func TestSignedOutIsUnauthorized(t *testing.T) {
	br := newBridge(t)
	resp, body := br.do(t, http.MethodGet, "/api/rooms", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "auth_error", e.Error)
	assert.Zero(t, br.backend.Hits("GET /api/info-chat-item"))
}

func TestWrongPasswordIsUnauthorized(t *testing.T) {
	br := newBridge(t)
	resp, _ := br.do(t, http.MethodPost, "/api/session/login", map[string]string{
		"email": br.me.Email, "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoomsFilter(t *testing.T) {
	br := newBridge(t)
	br.login(t)

	resp, body := br.do(t, http.MethodGet, "/api/rooms?q=nh%C3%B3m", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rooms []chat.ChatRoom
	require.NoError(t, json.Unmarshal(body, &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, br.group, rooms[0].ID)
	assert.True(t, rooms[0].IsGroup)

	_, body = br.do(t, http.MethodGet, "/api/rooms", nil)
	require.NoError(t, json.Unmarshal(body, &rooms))
	assert.Len(t, rooms, 2)
}

func TestMessageFlow(t *testing.T) {
	br := newBridge(t)
	br.login(t)

	resp, body := br.do(t, http.MethodPost, "/api/rooms/"+br.direct+"/enter", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = br.do(t, http.MethodPost, "/api/rooms/"+br.direct+"/messages", map[string]string{"content": "xin chào"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var view app.RoomView
	require.NoError(t, json.Unmarshal(body, &view))
	require.Len(t, view.Visible, 1)
	msgID := view.Visible[0].ID

	resp, body = br.do(t, http.MethodPost, "/api/rooms/"+br.direct+"/messages/"+msgID+"/pin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &view))
	require.NotNil(t, view.Pinned)
	assert.Equal(t, msgID, view.Pinned.ID)
	assert.Empty(t, view.Visible)

	resp, _ = br.do(t, http.MethodPost, "/api/rooms/"+br.direct+"/messages/"+msgID+"/shout", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = br.do(t, http.MethodPost, "/api/rooms/"+br.direct+"/messages", map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "validation_error", e.Error)

	resp, _ = br.do(t, http.MethodPost, "/api/rooms/"+br.direct+"/leave", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestMemberCannotKick(t *testing.T) {
	br := newBridge(t)
	br.login(t)

	resp, body := br.do(t, http.MethodGet, "/api/rooms/"+br.group+"/members", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var v membersView
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, "MEMBER", v.MyRole)
	assert.False(t, v.CanManage)
	assert.Empty(t, v.Kickable)

	resp, body = br.do(t, http.MethodPost, "/api/rooms/"+br.group+"/members/"+br.third.ID+"/kick", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "not_permitted", e.Error)
	assert.Zero(t, br.backend.Hits("POST /api/groups/:roomId/:op"))
}

func TestMembersOfDirectRoomIsBadRequest(t *testing.T) {
	br := newBridge(t)
	br.login(t)
	resp, _ := br.do(t, http.MethodGet, "/api/rooms/"+br.direct+"/members", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func mediaRequest(t *testing.T, path, source string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="media"; filename="cat.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("source", source))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestMediaRespectsDevicePermission(t *testing.T) {
	br := newBridge(t)
	br.login(t)

	resp, _ := br.do(t, http.MethodPost, "/api/device/permissions", map[string]interface{}{
		"capability": "camera", "granted": false,
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := br.send(t, mediaRequest(t, "/api/rooms/"+br.direct+"/media", "camera"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "permission_denied", e.Error)
	assert.Zero(t, br.backend.Hits("POST /api/send-media"))

	resp, body = br.send(t, mediaRequest(t, "/api/rooms/"+br.direct+"/media", "media_library"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var view app.RoomView
	require.NoError(t, json.Unmarshal(body, &view))
	require.Len(t, view.Visible, 1)
	assert.Equal(t, chat.TypeImage, view.Visible[0].Type)
	assert.True(t, strings.HasSuffix(view.Visible[0].MediaRef, "/cat.png"))
}

func TestMetricsEndpoint(t *testing.T) {
	br := newBridge(t)
	resp, body := br.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestWebsocketRouteRequiresUpgrade(t *testing.T) {
	br := newBridge(t)
	resp, _ := br.do(t, http.MethodGet, "/api/ws/rooms/"+br.direct, nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

type idleConn struct {
	once   sync.Once
	closed chan struct{}
}

func (c *idleConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *idleConn) WriteMessage(int, []byte) error { return nil }

func (c *idleConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestSubscribersListing(t *testing.T) {
	br := newBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go br.app.Hub.Start(ctx)

	for _, s := range []struct{ id, room string }{{"s-1", "r-1"}, {"s-2", "r-1"}, {"s-3", "r-2"}} {
		sub := br.app.Hub.NewSubscriber(s.id, s.room, &idleConn{closed: make(chan struct{})})
		require.True(t, br.app.Hub.Register(sub))
	}

	type listing struct {
		Rooms       int                   `json:"rooms"`
		Subscribers []chat.SubscriberInfo `json:"subscribers"`
	}
	var all listing
	require.Eventually(t, func() bool {
		_, body := br.do(t, http.MethodGet, "/api/subscribers", nil)
		return json.Unmarshal(body, &all) == nil && len(all.Subscribers) == 3
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, all.Rooms)

	resp, body := br.do(t, http.MethodGet, "/api/subscribers?room=r-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var one listing
	require.NoError(t, json.Unmarshal(body, &one))
	assert.Equal(t, []chat.SubscriberInfo{{ID: "s-1", RoomID: "r-1"}, {ID: "s-2", RoomID: "r-1"}}, one.Subscribers)
}

func TestCancelledEnterIsConflict(t *testing.T) {
	r := fiber.New()
	r.Get("/", func(c *fiber.Ctx) error { return respondError(c, realtime.ErrCancelled) })
	resp, err := r.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var e errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "cancelled", e.Error)
}
