package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/arena-api/internal/dto"
	"github.com/noah-isme/arena-api/internal/service"
	"github.com/noah-isme/arena-api/internal/utils"
)

// PeerReviewHandler exposes the reviewer-facing endpoints.
type PeerReviewHandler struct {
	peerReviews *service.PeerReviewService
	validate    *validator.Validate
}

// NewPeerReviewHandler constructs a peer review handler.
func NewPeerReviewHandler(peerReviews *service.PeerReviewService, validate *validator.Validate) *PeerReviewHandler {
	return &PeerReviewHandler{peerReviews: peerReviews, validate: validate}
}

// MyAssignments handles GET /challenges/:id/reviews.
func (h *PeerReviewHandler) MyAssignments(c *fiber.Ctx) error {
	studentID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	assignments, err := h.peerReviews.ListMyAssignments(c.Context(), challengeID, studentID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "", assignments)
}

// SubmitFeedbackTests handles POST /reviews/:id/feedback-tests.
func (h *PeerReviewHandler) SubmitFeedbackTests(c *fiber.Ctx) error {
	studentID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	assignmentID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.FeedbackTestsRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}

	if err := h.peerReviews.SubmitFeedbackTests(c.Context(), assignmentID, studentID, req.Tests); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "feedback tests saved", nil)
}

// CastVote handles POST /reviews/:id/vote.
func (h *PeerReviewHandler) CastVote(c *fiber.Ctx) error {
	studentID, ok := currentUserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing user identity")
	}

	assignmentID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.VoteRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return err
	}

	vote, err := h.peerReviews.CastVote(c.Context(), assignmentID, studentID, req)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "vote recorded", vote)
}
