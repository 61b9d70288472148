package models

import "time"

// SubmissionScoreBreakdown holds the computed score for one final submission.
// Rows are upserted keyed on SubmissionID so re-running the scoring step
// overwrites rather than duplicates.
type SubmissionScoreBreakdown struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	SubmissionID        uint      `gorm:"not null;uniqueIndex" json:"submission_id"`
	ChallengeID         uint      `gorm:"not null;index" json:"challenge_id"`
	ImplementationScore float64   `gorm:"not null;default:0" json:"implementation_score"`
	CodeReviewScore     float64   `gorm:"not null;default:0" json:"code_review_score"`
	TotalScore          float64   `gorm:"not null;default:0" json:"total_score"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
