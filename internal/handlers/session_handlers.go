package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
	"github.com/pelusa-v/pelusa-chat-client/internal/chat"
)

// LoginHandler POST /api/session/login {email, password}
func (h *Handler) LoginHandler(c *fiber.Ctx) error {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, fiber.ErrBadRequest)
	}
	sess, err := h.app.Login(c.UserContext(), in.Email, in.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"user_id": sess.UserID})
}

// LogoutHandler POST /api/session/logout
func (h *Handler) LogoutHandler(c *fiber.Ctx) error {
	h.app.Logout()
	return c.SendStatus(fiber.StatusNoContent)
}

// SendOTPHandler POST /api/session/otp
func (h *Handler) SendOTPHandler(c *fiber.Ctx) error {
	var reg api.Registration
	if err := c.BodyParser(&reg); err != nil {
		return respondError(c, fiber.ErrBadRequest)
	}
	if err := h.app.Session.SendOTP(c.UserContext(), h.app.API, reg); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// RegisterHandler POST /api/session/register
func (h *Handler) RegisterHandler(c *fiber.Ctx) error {
	var reg api.Registration
	if err := c.BodyParser(&reg); err != nil {
		return respondError(c, fiber.ErrBadRequest)
	}
	if err := h.app.Session.Register(c.UserContext(), h.app.API, reg); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

// ProfileHandler GET /api/profile
func (h *Handler) ProfileHandler(c *fiber.Ctx) error {
	u, err := h.app.API.Profile(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"id": u.ID, "display_name": u.Label(), "photo_url": u.Photo(), "email": u.Email})
}

// FriendsHandler GET /api/friends?q=
func (h *Handler) FriendsHandler(c *fiber.Ctx) error {
	list, err := h.app.Friends.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(chat.FilterFriends(list, c.Query("q")))
}

// FriendRequestsHandler GET /api/friends/requests
func (h *Handler) FriendRequestsHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	received, err := h.app.Friends.Received(ctx)
	if err != nil {
		return respondError(c, err)
	}
	sent, err := h.app.Friends.Sent(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"received": received, "sent": sent})
}

// AcceptFriendHandler POST /api/friends/accept {sender_id}
func (h *Handler) AcceptFriendHandler(c *fiber.Ctx) error {
	var in struct {
		SenderID string `json:"sender_id"`
	}
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, fiber.ErrBadRequest)
	}
	if err := h.app.Friends.Accept(c.UserContext(), in.SenderID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CancelFriendHandler POST /api/friends/cancel {request_id}
func (h *Handler) CancelFriendHandler(c *fiber.Ctx) error {
	var in struct {
		RequestID string `json:"request_id"`
	}
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, fiber.ErrBadRequest)
	}
	if err := h.app.Friends.Cancel(c.UserContext(), in.RequestID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
