package dto

import (
	"time"

	"github.com/noah-isme/arena-api/internal/models"
)

// FeedbackTestsRequest attaches suggested test cases to a review assignment.
type FeedbackTestsRequest struct {
	Tests []models.TestCase `json:"tests" validate:"required,min=1,dive"`
}

// VoteRequest is a reviewer's verdict on an assigned submission. A
// counter-example is required for incorrect verdicts.
type VoteRequest struct {
	Verdict        string `json:"verdict" validate:"required,oneof=correct incorrect abstain"`
	TestCaseInput  string `json:"test_case_input"`
	ExpectedOutput string `json:"expected_output"`
}

// ReviewAssignmentResponse shows a reviewer their assignment. The author's
// identity is withheld; only the code and its public results are shown.
type ReviewAssignmentResponse struct {
	ID           uint          `json:"id"`
	ChallengeID  uint          `json:"challenge_id"`
	SubmissionID uint          `json:"submission_id"`
	Code         string        `json:"code"`
	IsExtra      bool          `json:"is_extra"`
	Voted        bool          `json:"voted"`
	Vote         *VoteResponse `json:"vote,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// VoteResponse represents a stored vote.
type VoteResponse struct {
	ID               uint   `json:"id"`
	Verdict          string `json:"verdict"`
	TestCaseInput    string `json:"test_case_input,omitempty"`
	ExpectedOutput   string `json:"expected_output,omitempty"`
	IsBugProven      *bool  `json:"is_bug_proven"`
	IsVoteCorrect    *bool  `json:"is_vote_correct"`
	EvaluationStatus string `json:"evaluation_status"`
}

// NewReviewAssignmentResponse builds a response DTO from a model.
func NewReviewAssignmentResponse(assignment models.PeerReviewAssignment) ReviewAssignmentResponse {
	resp := ReviewAssignmentResponse{
		ID:           assignment.ID,
		ChallengeID:  assignment.ChallengeID,
		SubmissionID: assignment.SubmissionID,
		Code:         assignment.Submission.Code,
		IsExtra:      assignment.IsExtra,
		Voted:        assignment.Vote != nil,
		CreatedAt:    assignment.CreatedAt,
	}
	if assignment.Vote != nil {
		resp.Vote = &VoteResponse{
			ID:               assignment.Vote.ID,
			Verdict:          assignment.Vote.Verdict,
			TestCaseInput:    assignment.Vote.TestCaseInput,
			ExpectedOutput:   assignment.Vote.ExpectedOutput,
			IsBugProven:      assignment.Vote.IsBugProven,
			IsVoteCorrect:    assignment.Vote.IsVoteCorrect,
			EvaluationStatus: assignment.Vote.EvaluationStatus,
		}
	}
	return resp
}
