package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/arena-api/internal/models"
)

// ChallengeRepository exposes persistence helpers for challenges. Status
// transitions go through TransitionStatus, a conditional update that acts as
// the concurrency guard for the lifecycle state machine.
type ChallengeRepository interface {
	Create(ctx context.Context, challenge *models.Challenge) error
	Update(ctx context.Context, challenge *models.Challenge) error
	GetByID(ctx context.Context, id uint) (models.Challenge, error)
	GetWithDetails(ctx context.Context, id uint) (models.Challenge, error)
	TransitionStatus(ctx context.Context, id uint, from, to string, updates map[string]interface{}) (bool, error)
	TransitionScoringStatus(ctx context.Context, id uint, from, to string) (bool, error)
	CompleteFinalization(ctx context.Context, id uint, at time.Time) (bool, error)
	ClearFinalization(ctx context.Context, id uint) error
	ListByStatus(ctx context.Context, statuses ...string) ([]models.Challenge, error)
	ResetToPrivate(ctx context.Context, id uint) error
}

// NewChallengeRepository constructs a challenge repository.
func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

type challengeRepository struct {
	db *gorm.DB
}

func (r *challengeRepository) Create(ctx context.Context, challenge *models.Challenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

func (r *challengeRepository) Update(ctx context.Context, challenge *models.Challenge) error {
	return r.db.WithContext(ctx).Save(challenge).Error
}

func (r *challengeRepository) GetByID(ctx context.Context, id uint) (models.Challenge, error) {
	var challenge models.Challenge
	if err := r.db.WithContext(ctx).First(&challenge, id).Error; err != nil {
		return models.Challenge{}, err
	}
	return challenge, nil
}

func (r *challengeRepository) GetWithDetails(ctx context.Context, id uint) (models.Challenge, error) {
	var challenge models.Challenge
	err := r.db.WithContext(ctx).
		Preload("Settings.MatchSetting").
		Preload("Participants").
		First(&challenge, id).Error
	if err != nil {
		return models.Challenge{}, err
	}
	return challenge, nil
}

// TransitionStatus performs `UPDATE challenges SET status = to, ... WHERE id = ?
// AND status = from`. Returning false means a concurrent caller already moved
// the challenge out of `from`; callers treat that as a benign no-op.
func (r *challengeRepository) TransitionStatus(ctx context.Context, id uint, from, to string, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"status": to}
	for key, value := range updates {
		values[key] = value
	}

	result := r.db.WithContext(ctx).
		Model(&models.Challenge{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *challengeRepository) TransitionScoringStatus(ctx context.Context, id uint, from, to string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Challenge{}).
		Where("id = ? AND scoring_status = ?", id, from).
		Update("scoring_status", to)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// CompleteFinalization stamps the finalization timestamp once; a second call
// finds the column already set and reports false.
func (r *challengeRepository) CompleteFinalization(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Challenge{}).
		Where("id = ? AND finalization_completed_at IS NULL", id).
		Update("finalization_completed_at", at)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *challengeRepository) ClearFinalization(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Challenge{}).
		Where("id = ?", id).
		Update("finalization_completed_at", nil).Error
}

func (r *challengeRepository) ListByStatus(ctx context.Context, statuses ...string) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Find(&challenges).Error
	if err != nil {
		return nil, err
	}
	return challenges, nil
}

// ResetToPrivate is the unpublish reset: participants, matches, submissions
// and review data are destroyed and phase bookkeeping is rewound, all in one
// transaction.
func (r *challengeRepository) ResetToPrivate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var matchIDs []uint
		if err := tx.Model(&models.Match{}).Where("challenge_id = ?", id).Pluck("id", &matchIDs).Error; err != nil {
			return err
		}

		var assignmentIDs []uint
		if err := tx.Model(&models.PeerReviewAssignment{}).Where("challenge_id = ?", id).Pluck("id", &assignmentIDs).Error; err != nil {
			return err
		}

		if len(assignmentIDs) > 0 {
			if err := tx.Where("assignment_id IN ?", assignmentIDs).Delete(&models.PeerReviewVote{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("challenge_id = ?", id).Delete(&models.PeerReviewAssignment{}).Error; err != nil {
			return err
		}
		if len(matchIDs) > 0 {
			if err := tx.Where("match_id IN ?", matchIDs).Delete(&models.Submission{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("challenge_id = ?", id).Delete(&models.SubmissionScoreBreakdown{}).Error; err != nil {
			return err
		}
		if err := tx.Where("challenge_id = ?", id).Delete(&models.Match{}).Error; err != nil {
			return err
		}
		if err := tx.Where("challenge_id = ?", id).Delete(&models.ChallengeParticipant{}).Error; err != nil {
			return err
		}

		return tx.Model(&models.Challenge{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":                    models.ChallengeStatusPrivate,
				"scoring_status":            models.ScoringStatusPending,
				"start_coding_phase_at":     nil,
				"end_coding_phase_at":       nil,
				"start_peer_review_at":      nil,
				"end_peer_review_at":        nil,
				"finalization_completed_at": nil,
			}).Error
	})
}
