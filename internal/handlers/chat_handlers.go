package handlers

import (
	"io"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
	"github.com/pelusa-v/pelusa-chat-client/internal/app"
	"github.com/pelusa-v/pelusa-chat-client/internal/chat"
)

// Handler exposes the chat core to a local UI shell.
type Handler struct {
	app   *app.App
	perms *DevicePermissions
	log   zerolog.Logger
}

func New(a *app.App, perms *DevicePermissions, logger zerolog.Logger) *Handler {
	if perms == nil {
		perms = NewDevicePermissions()
	}
	return &Handler{app: a, perms: perms, log: logger.With().Str("component", "bridge").Logger()}
}

// RoomSocketHandler GET /api/ws/rooms/:id
func (h *Handler) RoomSocketHandler(c *websocket.Conn) {
	sub := h.app.Hub.NewSubscriber(uuid.NewString(), c.Params("id"), c)
	if !h.app.Hub.Register(sub) {
		return
	}
	defer h.app.Hub.Unregister(sub)
	go sub.WritePump()
	sub.ReadPump()
}

// SubscribersHandler GET /api/subscribers?room=
func (h *Handler) SubscribersHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"rooms":       h.app.Hub.RoomCount(),
		"subscribers": h.app.Hub.ListSubscribers(c.Query("room")),
	})
}

// RoomsHandler GET /api/rooms?q=
func (h *Handler) RoomsHandler(c *fiber.Ctx) error {
	if _, err := h.app.Directory.ListRooms(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.app.Directory.Filter(c.Query("q")))
}

// CreateGroupHandler POST /api/rooms/group {name, members}
func (h *Handler) CreateGroupHandler(c *fiber.Ctx) error {
	var in struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, fiber.ErrBadRequest)
	}
	name, err := h.app.Directory.CreateGroup(c.UserContext(), in.Name, in.Members)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"name": name})
}

// EnterRoomHandler POST /api/rooms/:id/enter
func (h *Handler) EnterRoomHandler(c *fiber.Ctx) error {
	view, err := h.app.EnterRoom(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// LeaveRoomHandler POST /api/rooms/:id/leave
func (h *Handler) LeaveRoomHandler(c *fiber.Ctx) error {
	h.app.LeaveRoom(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

// MessagesHandler GET /api/rooms/:id/messages
func (h *Handler) MessagesHandler(c *fiber.Ctx) error {
	return c.JSON(h.app.View(c.Params("id")))
}

// SendMessageHandler POST /api/rooms/:id/messages {content, reply}
func (h *Handler) SendMessageHandler(c *fiber.Ctx) error {
	var in struct {
		Content string `json:"content"`
		Reply   string `json:"reply"`
	}
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, fiber.ErrBadRequest)
	}
	roomID := c.Params("id")
	if err := h.app.Actions.SendText(c.UserContext(), roomID, in.Content, in.Reply); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.app.View(roomID))
}

// SendMediaHandler POST /api/rooms/:id/media (multipart: media, source)
func (h *Handler) SendMediaHandler(c *fiber.Ctx) error {
	fh, err := c.FormFile("media")
	if err != nil {
		return respondError(c, api.Validation("send media", "no file selected"))
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(c, api.Validation("send media", "unreadable file"))
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return respondError(c, api.Validation("send media", "unreadable file"))
	}

	roomID := c.Params("id")
	m := chat.Media{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
		Source:      chat.Capability(c.FormValue("source")),
	}
	if err := h.app.Actions.SendMedia(c.UserContext(), roomID, m); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.app.View(roomID))
}

// MessageActionHandler POST /api/rooms/:id/messages/:mid/:action {emoji|target}
func (h *Handler) MessageActionHandler(c *fiber.Ctx) error {
	var in struct {
		Emoji  string `json:"emoji"`
		Target string `json:"target"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return respondError(c, fiber.ErrBadRequest)
		}
	}
	ctx := c.UserContext()
	roomID, msgID := c.Params("id"), c.Params("mid")
	actions := h.app.Actions

	var err error
	switch strings.ToLower(c.Params("action")) {
	case "recall":
		err = actions.Recall(ctx, roomID, msgID)
	case "pin":
		err = actions.Pin(ctx, roomID, msgID)
	case "unpin":
		err = actions.Unpin(ctx, roomID, msgID)
	case "hide":
		err = actions.Hide(ctx, roomID, msgID)
	case "react":
		err = actions.React(ctx, roomID, msgID, in.Emoji)
	case "forward":
		err = actions.Forward(ctx, roomID, msgID, in.Target)
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_action"})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.app.View(roomID))
}

// DeleteMessageHandler DELETE /api/rooms/:id/messages/:mid
func (h *Handler) DeleteMessageHandler(c *fiber.Ctx) error {
	roomID := c.Params("id")
	if err := h.app.Actions.Delete(c.UserContext(), roomID, c.Params("mid")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.app.View(roomID))
}

type membersView struct {
	Group      *chat.Group `json:"group"`
	Me         string      `json:"me"`
	MyRole     string      `json:"my_role"`
	CanManage  bool        `json:"can_manage"`
	Kickable   []string    `json:"kickable"`
	Promotable []string    `json:"promotable"`
	Demotable  []string    `json:"demotable"`
}

func (h *Handler) membersView(g *chat.Group) membersView {
	me := h.app.Session.UserID()
	role := g.RoleOf(me)
	v := membersView{
		Group:      g,
		Me:         me,
		MyRole:     role.String(),
		CanManage:  role != chat.RoleMember,
		Kickable:   []string{},
		Promotable: []string{},
		Demotable:  []string{},
	}
	for _, m := range g.Members {
		if g.CanKick(me, m.UserID) {
			v.Kickable = append(v.Kickable, m.UserID)
		}
		if g.CanPromote(me, m.UserID) {
			v.Promotable = append(v.Promotable, m.UserID)
		}
		if g.CanDemote(me, m.UserID) {
			v.Demotable = append(v.Demotable, m.UserID)
		}
	}
	return v
}

// MembersHandler GET /api/rooms/:id/members
func (h *Handler) MembersHandler(c *fiber.Ctx) error {
	roomID := c.Params("id")
	if _, ok := h.app.Directory.Room(roomID); !ok {
		if _, err := h.app.Directory.ListRooms(c.UserContext()); err != nil {
			return respondError(c, err)
		}
	}
	g, err := h.app.Authority.Load(c.UserContext(), roomID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.membersView(g))
}

// MemberActionHandler POST /api/rooms/:id/members/:uid/:action
func (h *Handler) MemberActionHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	roomID, target := c.Params("id"), c.Params("uid")
	auth := h.app.Authority

	var err error
	switch strings.ToLower(c.Params("action")) {
	case "kick":
		err = auth.Kick(ctx, roomID, target)
	case "promote":
		err = auth.Promote(ctx, roomID, target)
	case "demote":
		err = auth.Demote(ctx, roomID, target)
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_action"})
	}
	if err != nil {
		return respondError(c, err)
	}
	g, ok := auth.Group(roomID)
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(h.membersView(g))
}

// DevicePermissionHandler POST /api/device/permissions {capability, granted}
func (h *Handler) DevicePermissionHandler(c *fiber.Ctx) error {
	var in struct {
		Capability string `json:"capability"`
		Granted    bool   `json:"granted"`
	}
	if err := c.BodyParser(&in); err != nil || in.Capability == "" {
		return respondError(c, fiber.ErrBadRequest)
	}
	h.perms.Set(chat.Capability(in.Capability), in.Granted)
	return c.SendStatus(fiber.StatusNoContent)
}
