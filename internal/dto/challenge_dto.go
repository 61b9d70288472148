package dto

import (
	"time"

	"github.com/noah-isme/arena-api/internal/models"
)

// ChallengeCreateRequest is the payload for creating a challenge draft.
type ChallengeCreateRequest struct {
	Title                 string    `json:"title" validate:"required,min=3,max=255"`
	Description           string    `json:"description"`
	StartDatetime         time.Time `json:"start_datetime" validate:"required"`
	EndDatetime           time.Time `json:"end_datetime" validate:"required,gtfield=StartDatetime"`
	DurationMinutes       int       `json:"duration_minutes" validate:"required,gt=0"`
	PeerReviewMinutes     int       `json:"peer_review_minutes" validate:"required,gt=0"`
	AllowedNumberOfReview int       `json:"allowed_number_of_review" validate:"omitempty,gte=2"`
}

// ChallengeUpdateRequest is the payload for editing a challenge while private.
type ChallengeUpdateRequest struct {
	Title                 *string    `json:"title" validate:"omitempty,min=3,max=255"`
	Description           *string    `json:"description"`
	StartDatetime         *time.Time `json:"start_datetime"`
	EndDatetime           *time.Time `json:"end_datetime"`
	DurationMinutes       *int       `json:"duration_minutes" validate:"omitempty,gt=0"`
	PeerReviewMinutes     *int       `json:"peer_review_minutes" validate:"omitempty,gt=0"`
	AllowedNumberOfReview *int       `json:"allowed_number_of_review" validate:"omitempty,gte=2"`
}

// JoinRequest is the payload for a student joining a challenge.
type JoinRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=255"`
}

// AttachSettingRequest links a ready problem to a challenge.
type AttachSettingRequest struct {
	MatchSettingID uint `json:"match_setting_id" validate:"required,gt=0"`
}

// MatchSettingRequest is the payload for creating or updating a problem.
type MatchSettingRequest struct {
	Title             string            `json:"title" validate:"required,min=3,max=255"`
	Description       string            `json:"description"`
	Language          string            `json:"language" validate:"required"`
	ReferenceSolution string            `json:"reference_solution"`
	TemplateCode      string            `json:"template_code"`
	PublicTests       []models.TestCase `json:"public_tests"`
	PrivateTests      []models.TestCase `json:"private_tests"`
	Ready             bool              `json:"ready"`
}

// ChallengeResponse represents a challenge to API consumers.
type ChallengeResponse struct {
	ID                      uint       `json:"id"`
	Title                   string     `json:"title"`
	Description             string     `json:"description"`
	Status                  string     `json:"status"`
	ScoringStatus           string     `json:"scoring_status"`
	StartDatetime           time.Time  `json:"start_datetime"`
	EndDatetime             time.Time  `json:"end_datetime"`
	DurationMinutes         int        `json:"duration_minutes"`
	PeerReviewMinutes       int        `json:"peer_review_minutes"`
	AllowedNumberOfReview   int        `json:"allowed_number_of_review"`
	StartCodingPhaseAt      *time.Time `json:"start_coding_phase_at"`
	EndCodingPhaseAt        *time.Time `json:"end_coding_phase_at"`
	StartPeerReviewAt       *time.Time `json:"start_peer_review_at"`
	EndPeerReviewAt         *time.Time `json:"end_peer_review_at"`
	FinalizationCompletedAt *time.Time `json:"finalization_completed_at"`
	ParticipantCount        int        `json:"participant_count"`
	SettingCount            int        `json:"setting_count"`
}

// NewChallengeResponse builds a response DTO from a model.
func NewChallengeResponse(challenge models.Challenge) ChallengeResponse {
	return ChallengeResponse{
		ID:                      challenge.ID,
		Title:                   challenge.Title,
		Description:             challenge.Description,
		Status:                  challenge.Status,
		ScoringStatus:           challenge.ScoringStatus,
		StartDatetime:           challenge.StartDatetime,
		EndDatetime:             challenge.EndDatetime,
		DurationMinutes:         challenge.DurationMinutes,
		PeerReviewMinutes:       challenge.PeerReviewMinutes,
		AllowedNumberOfReview:   challenge.AllowedNumberOfReview,
		StartCodingPhaseAt:      challenge.StartCodingPhaseAt,
		EndCodingPhaseAt:        challenge.EndCodingPhaseAt,
		StartPeerReviewAt:       challenge.StartPeerReviewAt,
		EndPeerReviewAt:         challenge.EndPeerReviewAt,
		FinalizationCompletedAt: challenge.FinalizationCompletedAt,
		ParticipantCount:        len(challenge.Participants),
		SettingCount:            len(challenge.Settings),
	}
}

// MatchSettingResponse represents a problem to API consumers. Private tests
// and the reference solution never leave the service.
type MatchSettingResponse struct {
	ID           uint              `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Language     string            `json:"language"`
	TemplateCode string            `json:"template_code"`
	PublicTests  []models.TestCase `json:"public_tests"`
	Status       string            `json:"status"`
}
