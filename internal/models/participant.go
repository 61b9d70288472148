package models

import "time"

// ChallengeParticipant is a student's enrollment in one challenge. Rows are
// immutable after creation and only removed wholesale when the challenge is
// unpublished.
type ChallengeParticipant struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChallengeID uint      `gorm:"not null;index;uniqueIndex:idx_challenge_student" json:"challenge_id"`
	StudentID   uint      `gorm:"not null;uniqueIndex:idx_challenge_student" json:"student_id"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
