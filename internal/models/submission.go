package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission quality statuses derived from judge results.
const (
	SubmissionStatusWrong           = "wrong"
	SubmissionStatusImprovable      = "improvable"
	SubmissionStatusProbablyCorrect = "probably_correct"
)

// Submission is one attempt at a match's problem. At most one submission per
// match carries IsFinal=true; the finalization step enforces this.
type Submission struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	MatchID               uint           `gorm:"not null;index" json:"match_id"`
	Code                  string         `gorm:"type:text" json:"code"`
	Status                string         `gorm:"size:32;not null" json:"status"`
	IsFinal               bool           `gorm:"not null;default:false;index" json:"is_final"`
	IsAutomaticSubmission bool           `gorm:"not null;default:false" json:"is_automatic_submission"`
	PublicTestResults     datatypes.JSON `json:"public_test_results"`
	PrivateTestResults    datatypes.JSON `json:"private_test_results"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// IsReviewable reports whether the submission qualifies for peer review.
// Wrong submissions are excluded from being reviewed.
func (s Submission) IsReviewable() bool {
	return s.IsFinal && (s.Status == SubmissionStatusImprovable || s.Status == SubmissionStatusProbablyCorrect)
}
