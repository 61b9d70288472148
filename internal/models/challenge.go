package models

import "time"

// Challenge lifecycle statuses. Transitions only move forward through the
// state machine; the single allowed reset is unpublishing a public challenge.
const (
	ChallengeStatusDraft             = "draft"
	ChallengeStatusPrivate           = "private"
	ChallengeStatusPublic            = "public"
	ChallengeStatusAssigned          = "assigned"
	ChallengeStatusStartedCoding     = "started_coding_phase"
	ChallengeStatusEndedCoding       = "ended_coding_phase"
	ChallengeStatusStartedPeerReview = "started_peer_review"
	ChallengeStatusEndedPeerReview   = "ended_peer_review"
)

// Scoring computation states for a challenge.
const (
	ScoringStatusPending   = "pending"
	ScoringStatusComputing = "computing"
	ScoringStatusCompleted = "completed"
)

// Challenge represents a timed coding challenge run by a teacher.
type Challenge struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	Title                 string    `gorm:"size:255;not null" json:"title"`
	Description           string    `gorm:"type:text" json:"description"`
	TeacherID             uint      `gorm:"not null;index" json:"teacher_id"`
	Status                string    `gorm:"size:32;not null;default:draft" json:"status"`
	ScoringStatus         string    `gorm:"size:32;not null;default:pending" json:"scoring_status"`
	StartDatetime         time.Time `json:"start_datetime"`
	EndDatetime           time.Time `json:"end_datetime"`
	DurationMinutes       int       `gorm:"not null;default:60" json:"duration_minutes"`
	PeerReviewMinutes     int       `gorm:"not null;default:30" json:"peer_review_minutes"`
	AllowedNumberOfReview int       `gorm:"not null;default:2" json:"allowed_number_of_review"`

	StartCodingPhaseAt      *time.Time `json:"start_coding_phase_at"`
	EndCodingPhaseAt        *time.Time `json:"end_coding_phase_at"`
	StartPeerReviewAt       *time.Time `json:"start_peer_review_at"`
	EndPeerReviewAt         *time.Time `json:"end_peer_review_at"`
	FinalizationCompletedAt *time.Time `json:"finalization_completed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Settings     []ChallengeMatchSetting `json:"settings,omitempty"`
	Participants []ChallengeParticipant  `json:"participants,omitempty"`
}

// IsEditable reports whether the challenge content may still be modified.
func (c Challenge) IsEditable() bool {
	return c.Status == ChallengeStatusDraft || c.Status == ChallengeStatusPrivate
}

// HasStarted reports whether the challenge window has opened.
func (c Challenge) HasStarted(reference time.Time) bool {
	return !reference.Before(c.StartDatetime)
}

// CodingDeadline returns the moment the coding phase should end, or zero when
// the phase has not started.
func (c Challenge) CodingDeadline() time.Time {
	if c.StartCodingPhaseAt == nil {
		return time.Time{}
	}
	return c.StartCodingPhaseAt.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

// PeerReviewDeadline returns the moment the peer review phase should end, or
// zero when the phase has not started.
func (c Challenge) PeerReviewDeadline() time.Time {
	if c.StartPeerReviewAt == nil {
		return time.Time{}
	}
	return c.StartPeerReviewAt.Add(time.Duration(c.PeerReviewMinutes) * time.Minute)
}
