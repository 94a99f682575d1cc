// Package handlers is the local HTTP and websocket bridge a UI shell talks to.
package handlers

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the bridge app.
func NewRouter(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(h.requestLogger)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/api/session/login", h.LoginHandler)
	app.Post("/api/session/logout", h.LogoutHandler)
	app.Post("/api/session/otp", h.SendOTPHandler)
	app.Post("/api/session/register", h.RegisterHandler)
	app.Get("/api/profile", h.ProfileHandler)
	app.Post("/api/device/permissions", h.DevicePermissionHandler)

	app.Get("/api/rooms", h.RoomsHandler) // ?q=
	app.Post("/api/rooms/group", h.CreateGroupHandler)
	app.Post("/api/rooms/:id/enter", h.EnterRoomHandler)
	app.Post("/api/rooms/:id/leave", h.LeaveRoomHandler)
	app.Get("/api/rooms/:id/messages", h.MessagesHandler)
	app.Post("/api/rooms/:id/messages", h.SendMessageHandler)
	app.Post("/api/rooms/:id/media", h.SendMediaHandler)
	app.Post("/api/rooms/:id/messages/:mid/:action", h.MessageActionHandler)
	app.Delete("/api/rooms/:id/messages/:mid", h.DeleteMessageHandler)
	app.Get("/api/rooms/:id/members", h.MembersHandler)
	app.Post("/api/rooms/:id/members/:uid/:action", h.MemberActionHandler)

	app.Get("/api/friends", h.FriendsHandler) // ?q=
	app.Get("/api/friends/requests", h.FriendRequestsHandler)
	app.Post("/api/friends/accept", h.AcceptFriendHandler)
	app.Post("/api/friends/cancel", h.CancelFriendHandler)

	app.Use("/api/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/api/ws/rooms/:id", websocket.New(h.RoomSocketHandler))
	app.Get("/api/subscribers", h.SubscribersHandler) // ?room=

	return app
}

func (h *Handler) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	h.log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("took", time.Since(start)).
		Msg("request")
	return err
}
