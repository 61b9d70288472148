package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-api/internal/dto"
	"github.com/noah-isme/arena-api/internal/models"
	"github.com/noah-isme/arena-api/internal/repository"
)

// PeerReviewService lets reviewers inspect assigned submissions, attach
// feedback tests, and cast votes while the peer review phase runs.
type PeerReviewService struct {
	challenges   repository.ChallengeRepository
	participants repository.ParticipantRepository
	peerReviews  repository.PeerReviewRepository
	logger       zerolog.Logger
}

// NewPeerReviewService constructs a peer review service.
func NewPeerReviewService(
	challenges repository.ChallengeRepository,
	participants repository.ParticipantRepository,
	peerReviews repository.PeerReviewRepository,
	logger zerolog.Logger,
) *PeerReviewService {
	return &PeerReviewService{
		challenges:   challenges,
		participants: participants,
		peerReviews:  peerReviews,
		logger:       logger.With().Str("component", "peer_review").Logger(),
	}
}

// ListMyAssignments returns the caller's review assignments for a challenge.
func (s *PeerReviewService) ListMyAssignments(ctx context.Context, challengeID, studentID uint) ([]dto.ReviewAssignmentResponse, error) {
	participant, err := s.participants.GetByChallengeAndStudent(ctx, challengeID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: not a participant of this challenge", ErrForbidden)
		}
		return nil, fmt.Errorf("load participant: %w", err)
	}

	assignments, err := s.peerReviews.ListByReviewer(ctx, challengeID, participant.ID)
	if err != nil {
		return nil, fmt.Errorf("list review assignments: %w", err)
	}

	responses := make([]dto.ReviewAssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, dto.NewReviewAssignmentResponse(assignment))
	}
	return responses, nil
}

// SubmitFeedbackTests stores suggested test cases on the reviewer's own
// assignment. They are advisory for the author and never affect scores.
func (s *PeerReviewService) SubmitFeedbackTests(ctx context.Context, assignmentID, studentID uint, tests []models.TestCase) error {
	assignment, err := s.ownedAssignment(ctx, assignmentID, studentID)
	if err != nil {
		return err
	}

	if err := s.requireReviewOpen(ctx, assignment.ChallengeID); err != nil {
		return err
	}

	raw, err := models.EncodeTestCases(tests)
	if err != nil {
		return fmt.Errorf("encode feedback tests: %w", err)
	}

	return s.peerReviews.SetFeedbackTests(ctx, assignmentID, raw)
}

// CastVote records or replaces the reviewer's verdict on an assignment. An
// incorrect verdict must carry a counter-example input; revoting while the
// phase is open resets the evaluation.
func (s *PeerReviewService) CastVote(ctx context.Context, assignmentID, studentID uint, req dto.VoteRequest) (dto.VoteResponse, error) {
	assignment, err := s.ownedAssignment(ctx, assignmentID, studentID)
	if err != nil {
		return dto.VoteResponse{}, err
	}

	if err := s.requireReviewOpen(ctx, assignment.ChallengeID); err != nil {
		return dto.VoteResponse{}, err
	}

	if req.Verdict == models.VoteVerdictIncorrect && req.TestCaseInput == "" {
		return dto.VoteResponse{}, fmt.Errorf("%w: an incorrect verdict requires a counter-example input", ErrInvalid)
	}

	vote := assignment.Vote
	if vote == nil {
		vote = &models.PeerReviewVote{AssignmentID: assignment.ID}
	}
	vote.Verdict = req.Verdict
	vote.TestCaseInput = req.TestCaseInput
	vote.ExpectedOutput = req.ExpectedOutput
	vote.IsBugProven = nil
	vote.IsVoteCorrect = nil
	vote.EvaluationStatus = models.VoteEvaluationPending

	if vote.ID == 0 {
		err = s.peerReviews.CreateVote(ctx, vote)
	} else {
		err = s.peerReviews.UpdateVote(ctx, vote)
	}
	if err != nil {
		return dto.VoteResponse{}, fmt.Errorf("store vote: %w", err)
	}

	return dto.VoteResponse{
		ID:               vote.ID,
		Verdict:          vote.Verdict,
		TestCaseInput:    vote.TestCaseInput,
		ExpectedOutput:   vote.ExpectedOutput,
		EvaluationStatus: vote.EvaluationStatus,
	}, nil
}

func (s *PeerReviewService) ownedAssignment(ctx context.Context, assignmentID, studentID uint) (models.PeerReviewAssignment, error) {
	assignment, err := s.peerReviews.GetAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PeerReviewAssignment{}, fmt.Errorf("%w: review assignment not found", ErrNotFound)
		}
		return models.PeerReviewAssignment{}, fmt.Errorf("load review assignment: %w", err)
	}

	if assignment.Reviewer.StudentID != studentID {
		return models.PeerReviewAssignment{}, fmt.Errorf("%w: assignment belongs to another reviewer", ErrForbidden)
	}

	return assignment, nil
}

func (s *PeerReviewService) requireReviewOpen(ctx context.Context, challengeID uint) error {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		return fmt.Errorf("load challenge: %w", err)
	}
	if challenge.Status != models.ChallengeStatusStartedPeerReview {
		return fmt.Errorf("%w: peer review phase is not running", ErrConflict)
	}
	return nil
}
