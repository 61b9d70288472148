package models

import (
	"time"

	"gorm.io/datatypes"
)

// Peer review vote verdicts.
const (
	VoteVerdictCorrect   = "correct"
	VoteVerdictIncorrect = "incorrect"
	VoteVerdictAbstain   = "abstain"
)

// Vote evaluation states, set while scoring runs counter-examples against the
// reference solution.
const (
	VoteEvaluationPending   = "pending"
	VoteEvaluationCompleted = "completed"
	VoteEvaluationFailed    = "failed"
)

// PeerReviewAssignment hands one submission to one reviewer. IsExtra marks
// load beyond the reviewer's fair-share baseline when a group is too small to
// meet the requested review count with distinct reviewers alone.
type PeerReviewAssignment struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ChallengeID   uint           `gorm:"not null;index" json:"challenge_id"`
	ReviewerID    uint           `gorm:"not null;index" json:"reviewer_id"` // ChallengeParticipant ID
	SubmissionID  uint           `gorm:"not null;index" json:"submission_id"`
	IsExtra       bool           `gorm:"not null;default:false" json:"is_extra"`
	FeedbackTests datatypes.JSON `json:"feedback_tests"`
	CreatedAt     time.Time      `json:"created_at"`
	Reviewer      ChallengeParticipant `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
	Submission    Submission           `json:"submission,omitempty"`
	Vote          *PeerReviewVote      `gorm:"foreignKey:AssignmentID" json:"vote,omitempty"`
}

// PeerReviewVote is the reviewer's verdict on an assigned submission, with an
// optional counter-example evaluated post hoc against the reference solution.
type PeerReviewVote struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	AssignmentID     uint       `gorm:"not null;uniqueIndex" json:"assignment_id"`
	Verdict          string     `gorm:"size:16;not null" json:"verdict"`
	TestCaseInput    string     `gorm:"type:text" json:"test_case_input"`
	ExpectedOutput   string     `gorm:"type:text" json:"expected_output"`
	IsBugProven      *bool      `json:"is_bug_proven"`
	IsVoteCorrect    *bool      `json:"is_vote_correct"`
	EvaluationStatus string     `gorm:"size:16;not null;default:pending" json:"evaluation_status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HasCounterExample reports whether the vote carries a test case to verify.
func (v PeerReviewVote) HasCounterExample() bool {
	return v.TestCaseInput != "" || v.ExpectedOutput != ""
}
