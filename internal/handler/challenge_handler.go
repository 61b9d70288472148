package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/arena-api/internal/dto"
	"github.com/noah-isme/arena-api/internal/service"
	"github.com/noah-isme/arena-api/internal/utils"
)

// ChallengeHandler exposes challenge and problem management endpoints.
type ChallengeHandler struct {
	challenges *service.ChallengeService
	validate   *validator.Validate
}

// NewChallengeHandler constructs a challenge handler.
func NewChallengeHandler(challenges *service.ChallengeService, validate *validator.Validate) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges, validate: validate}
}

// Create handles POST /challenges.
func (h *ChallengeHandler) Create(c *fiber.Ctx) error {
	teacherID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	var req dto.ChallengeCreateRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}

	challenge, err := h.challenges.Create(c.Context(), teacherID, req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "challenge created", challenge)
}

// Update handles PUT /challenges/:id.
func (h *ChallengeHandler) Update(c *fiber.Ctx) error {
	teacherID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.ChallengeUpdateRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}

	challenge, err := h.challenges.Update(c.Context(), challengeID, teacherID, req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "challenge updated", challenge)
}

// Get handles GET /challenges/:id.
func (h *ChallengeHandler) Get(c *fiber.Ctx) error {
	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	challenge, err := h.challenges.Get(c.Context(), challengeID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "", challenge)
}

// Publish handles POST /challenges/:id/publish.
func (h *ChallengeHandler) Publish(c *fiber.Ctx) error {
	teacherID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	challenge, err := h.challenges.Publish(c.Context(), challengeID, teacherID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "challenge published", challenge)
}

// Unpublish handles POST /challenges/:id/unpublish.
func (h *ChallengeHandler) Unpublish(c *fiber.Ctx) error {
	teacherID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	challenge, err := h.challenges.Unpublish(c.Context(), challengeID, teacherID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "challenge unpublished", challenge)
}

// Join handles POST /challenges/:id/join.
func (h *ChallengeHandler) Join(c *fiber.Ctx) error {
	studentID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.JoinRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, h.validate, &req); err != nil {
			return err
		}
	}

	if err := h.challenges.Join(c.Context(), challengeID, studentID, req.DisplayName); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "joined challenge", nil)
}

// CreateMatchSetting handles POST /match-settings.
func (h *ChallengeHandler) CreateMatchSetting(c *fiber.Ctx) error {
	var req dto.MatchSettingRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}

	setting, err := h.challenges.CreateMatchSetting(c.Context(), req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "match setting created", setting)
}

// UpdateMatchSetting handles PUT /match-settings/:id.
func (h *ChallengeHandler) UpdateMatchSetting(c *fiber.Ctx) error {
	settingID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.MatchSettingRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}

	setting, err := h.challenges.UpdateMatchSetting(c.Context(), settingID, req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "match setting updated", setting)
}

// AttachSetting handles POST /challenges/:id/settings.
func (h *ChallengeHandler) AttachSetting(c *fiber.Ctx) error {
	teacherID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.AttachSettingRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}

	if err := h.challenges.AttachSetting(c.Context(), challengeID, teacherID, req.MatchSettingID); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "match setting attached", nil)
}
