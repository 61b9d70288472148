package dto

import (
	"time"

	"github.com/noah-isme/arena-api/internal/models"
	"github.com/noah-isme/arena-api/pkg/judge"
)

// SubmitRequest is the payload for submitting code against a match.
type SubmitRequest struct {
	Code    string `json:"code" validate:"required"`
	IsFinal bool   `json:"is_final"`
}

// RunInputRequest is the payload for running code against a custom input.
type RunInputRequest struct {
	Code  string `json:"code" validate:"required"`
	Input string `json:"input"`
}

// RunInputResponse carries the raw output of a custom run.
type RunInputResponse struct {
	Output   string `json:"output"`
	Stderr   string `json:"stderr,omitempty"`
	TimedOut bool   `json:"timed_out"`
}

// SubmissionResponse represents a stored submission. Private test results are
// exposed only as an aggregate pass count, never per test.
type SubmissionResponse struct {
	ID                    uint               `json:"id"`
	MatchID               uint               `json:"match_id"`
	Status                string             `json:"status"`
	IsFinal               bool               `json:"is_final"`
	IsAutomaticSubmission bool               `json:"is_automatic_submission"`
	PublicTestResults     []judge.TestResult `json:"public_test_results,omitempty"`
	PrivatePassedCount    int                `json:"private_passed_count"`
	PrivateTotalCount     int                `json:"private_total_count"`
	CreatedAt             time.Time          `json:"created_at"`
}

// ScoreEntry is one row of a challenge's final results.
type ScoreEntry struct {
	SubmissionID        uint    `json:"submission_id"`
	ParticipantID       uint    `json:"participant_id"`
	StudentID           uint    `json:"student_id"`
	ImplementationScore float64 `json:"implementation_score"`
	CodeReviewScore     float64 `json:"code_review_score"`
	TotalScore          float64 `json:"total_score"`
}

// ResultsResponse is the final leaderboard of a challenge.
type ResultsResponse struct {
	ChallengeID   uint         `json:"challenge_id"`
	ScoringStatus string       `json:"scoring_status"`
	Entries       []ScoreEntry `json:"entries"`
}

// MatchResponse represents a participant's assigned match.
type MatchResponse struct {
	ID           uint                 `json:"id"`
	ChallengeID  uint                 `json:"challenge_id"`
	MatchSetting MatchSettingResponse `json:"match_setting"`
	Submissions  []SubmissionResponse `json:"submissions,omitempty"`
}

// NewSubmissionResponse builds a response DTO from a model, decoding stored
// judge results and reducing private results to counts.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	resp := SubmissionResponse{
		ID:                    submission.ID,
		MatchID:               submission.MatchID,
		Status:                submission.Status,
		IsFinal:               submission.IsFinal,
		IsAutomaticSubmission: submission.IsAutomaticSubmission,
		CreatedAt:             submission.CreatedAt,
	}

	if publicResults, err := judge.DecodeResults(submission.PublicTestResults); err == nil {
		resp.PublicTestResults = publicResults
	}
	if privateResults, err := judge.DecodeResults(submission.PrivateTestResults); err == nil {
		resp.PrivateTotalCount = len(privateResults)
		for _, result := range privateResults {
			if result.Passed {
				resp.PrivatePassedCount++
			}
		}
	}

	return resp
}
