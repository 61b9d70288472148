package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/arena-api/internal/utils"
)

// HealthHandler exposes liveness information.
type HealthHandler struct {
	appName string
	env     string
}

// NewHealthHandler constructs a health handler.
func NewHealthHandler(appName, env string) *HealthHandler {
	return &HealthHandler{appName: appName, env: env}
}

// Check handles GET /health.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "", fiber.Map{
		"app":    h.appName,
		"env":    h.env,
		"status": "ok",
	})
}
