package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/arena-api/internal/dto"
	"github.com/noah-isme/arena-api/internal/service"
	"github.com/noah-isme/arena-api/internal/utils"
)

// SubmissionHandler exposes the student-facing coding endpoints.
type SubmissionHandler struct {
	submissions *service.SubmissionService
	validate    *validator.Validate
}

// NewSubmissionHandler constructs a submission handler.
func NewSubmissionHandler(submissions *service.SubmissionService, validate *validator.Validate) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, validate: validate}
}

// MyMatch handles GET /challenges/:id/my-match.
func (h *SubmissionHandler) MyMatch(c *fiber.Ctx) error {
	studentID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	match, err := h.submissions.MyMatch(c.Context(), challengeID, studentID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "", match)
}

// Submit handles POST /challenges/:id/submissions.
func (h *SubmissionHandler) Submit(c *fiber.Ctx) error {
	studentID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.SubmitRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}

	submission, err := h.submissions.Submit(c.Context(), challengeID, studentID, req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission judged", submission)
}

// RunCustomInput handles POST /challenges/:id/runs.
func (h *SubmissionHandler) RunCustomInput(c *fiber.Ctx) error {
	studentID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.RunInputRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}

	result, err := h.submissions.RunCustomInput(c.Context(), challengeID, studentID, req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "", result)
}
