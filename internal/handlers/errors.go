package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
	"github.com/pelusa-v/pelusa-chat-client/internal/realtime"
)

// statusFor maps an error kind to the bridge's HTTP status.
func statusFor(err error) int {
	switch api.KindOf(err) {
	case api.KindAuth:
		return fiber.StatusUnauthorized
	case api.KindValidation:
		return fiber.StatusBadRequest
	case api.KindNotPermitted, api.KindPermissionDenied:
		return fiber.StatusForbidden
	case api.KindNetwork:
		return fiber.StatusBadGateway
	case api.KindActionFailed, api.KindSendFailed, api.KindUploadFailed:
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

// respondError writes {"error": kind, "message": text}.
func respondError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": "bad_request", "message": fe.Message})
	}
	if errors.Is(err, realtime.ErrCancelled) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "cancelled", "message": "The room was left before it finished opening."})
	}
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error":   api.KindOf(err).String(),
		"message": api.UserMessage(err),
	})
}

// errorHandler is the fiber fallback for errors handlers return unhandled.
func errorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}
