package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/arena-api/internal/service"
	"github.com/noah-isme/arena-api/internal/utils"
)

func currentUserID(c *fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals("user_id").(uint)
	return userID, ok
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

// sendServiceError maps the service layer's sentinel errors onto HTTP
// statuses. Anything unrecognized is an internal error; its detail stays in
// the logs, not the response.
func sendServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, trimmedMessage(err))
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, trimmedMessage(err))
	case errors.Is(err, service.ErrConflict):
		return utils.SendError(c, fiber.StatusConflict, trimmedMessage(err))
	case errors.Is(err, service.ErrInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, trimmedMessage(err))
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func trimmedMessage(err error) string {
	message := err.Error()
	if idx := strings.Index(message, ": "); idx >= 0 {
		return message[idx+2:]
	}
	return message
}

func parseBody(c *fiber.Ctx, validate *validator.Validate, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		first := fieldErrors[0]
		return "validation failed on field '" + first.Field() + "' (" + first.Tag() + ")"
	}
	return "validation failed"
}
