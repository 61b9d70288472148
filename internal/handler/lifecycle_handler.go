package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/arena-api/internal/dto"
	"github.com/noah-isme/arena-api/internal/service"
	"github.com/noah-isme/arena-api/internal/utils"
)

// LifecycleHandler exposes the phase transition endpoints.
type LifecycleHandler struct {
	lifecycle *service.LifecycleService
	finalizer *service.FinalizationService
	scoring   *service.ScoringService
	validate  *validator.Validate
}

// NewLifecycleHandler constructs a lifecycle handler.
func NewLifecycleHandler(
	lifecycle *service.LifecycleService,
	finalizer *service.FinalizationService,
	scoring *service.ScoringService,
	validate *validator.Validate,
) *LifecycleHandler {
	return &LifecycleHandler{
		lifecycle: lifecycle,
		finalizer: finalizer,
		scoring:   scoring,
		validate:  validate,
	}
}

// outcomeStatus maps transition outcomes to HTTP statuses. A loser of an
// end-phase race gets 200: from the caller's point of view the phase did end.
var outcomeStatus = map[string]int{
	service.OutcomeOK:                           fiber.StatusOK,
	service.OutcomeAlreadyEnded:                 fiber.StatusOK,
	service.OutcomeChallengeNotFound:            fiber.StatusNotFound,
	service.OutcomeNoMatchSettings:              fiber.StatusBadRequest,
	service.OutcomeNoParticipants:               fiber.StatusBadRequest,
	service.OutcomeTooEarly:                     fiber.StatusBadRequest,
	service.OutcomeNoMatches:                    fiber.StatusBadRequest,
	service.OutcomeInvalidExpectedReviews:       fiber.StatusBadRequest,
	service.OutcomeInsufficientValidSubmissions: fiber.StatusBadRequest,
	service.OutcomeAlreadyAssigned:              fiber.StatusConflict,
	service.OutcomeAlreadyStarted:               fiber.StatusConflict,
	service.OutcomeInvalidStatus:                fiber.StatusConflict,
	service.OutcomeFinalizationPending:          fiber.StatusConflict,
	service.OutcomeNoAssignments:                fiber.StatusConflict,
	service.OutcomeUpdateFailed:                 fiber.StatusConflict,
}

func sendTransition(c *fiber.Ctx, result service.TransitionResult) error {
	status, ok := outcomeStatus[result.Outcome]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	if result.OK() {
		return utils.SendSuccessWithStatus(c, status, result.Outcome, result.Response())
	}

	return c.Status(status).JSON(utils.APIResponse{
		Success: false,
		Data:    result.Response(),
		Message: result.Outcome,
	})
}

// AssignMatches handles POST /challenges/:id/assign-matches.
func (h *LifecycleHandler) AssignMatches(c *fiber.Ctx) error {
	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.AssignMatchesRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	result, err := h.lifecycle.Assign(c.Context(), challengeID, req.Overwrite)
	if err != nil {
		return sendServiceError(c, err)
	}
	return sendTransition(c, result)
}

// StartCoding handles POST /challenges/:id/start-coding.
func (h *LifecycleHandler) StartCoding(c *fiber.Ctx) error {
	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.lifecycle.StartCoding(c.Context(), challengeID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return sendTransition(c, result)
}

// EndCoding handles POST /challenges/:id/end-coding.
func (h *LifecycleHandler) EndCoding(c *fiber.Ctx) error {
	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.lifecycle.EndCoding(c.Context(), challengeID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return sendTransition(c, result)
}

// AssignPeerReviews handles POST /challenges/:id/assign-peer-reviews.
func (h *LifecycleHandler) AssignPeerReviews(c *fiber.Ctx) error {
	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.PeerReviewAssignRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, h.validate, &req); err != nil {
			return err
		}
	}

	result, err := h.lifecycle.AssignPeerReviews(c.Context(), challengeID, req.ExpectedReviewsPerSubmission)
	if err != nil {
		return sendServiceError(c, err)
	}
	return sendTransition(c, result)
}

// StartPeerReview handles POST /challenges/:id/start-peer-review.
func (h *LifecycleHandler) StartPeerReview(c *fiber.Ctx) error {
	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.lifecycle.StartPeerReview(c.Context(), challengeID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return sendTransition(c, result)
}

// EndPeerReview handles POST /challenges/:id/end-peer-review.
func (h *LifecycleHandler) EndPeerReview(c *fiber.Ctx) error {
	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.lifecycle.EndPeerReview(c.Context(), challengeID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return sendTransition(c, result)
}

// Stats handles GET /challenges/:id/stats.
func (h *LifecycleHandler) Stats(c *fiber.Ctx) error {
	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	stats, err := h.finalizer.Stats(c.Context(), challengeID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "", stats)
}

// ComputeScores handles POST /challenges/:id/compute-scores, the manual
// re-scoring trigger.
func (h *LifecycleHandler) ComputeScores(c *fiber.Ctx) error {
	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.scoring.ComputeScores(c.Context(), challengeID); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "scoring completed", nil)
}

// Results handles GET /challenges/:id/results.
func (h *LifecycleHandler) Results(c *fiber.Ctx) error {
	challengeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	results, err := h.scoring.Results(c.Context(), challengeID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "", results)
}
