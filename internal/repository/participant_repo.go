package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/arena-api/internal/models"
)

// ParticipantRepository exposes persistence helpers for challenge enrollment.
type ParticipantRepository interface {
	Create(ctx context.Context, participant *models.ChallengeParticipant) error
	GetByChallengeAndStudent(ctx context.Context, challengeID, studentID uint) (models.ChallengeParticipant, error)
	ListByChallenge(ctx context.Context, challengeID uint) ([]models.ChallengeParticipant, error)
	CountByChallenge(ctx context.Context, challengeID uint) (int64, error)
}

// NewParticipantRepository constructs a participant repository.
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

type participantRepository struct {
	db *gorm.DB
}

func (r *participantRepository) Create(ctx context.Context, participant *models.ChallengeParticipant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

func (r *participantRepository) GetByChallengeAndStudent(ctx context.Context, challengeID, studentID uint) (models.ChallengeParticipant, error) {
	var participant models.ChallengeParticipant
	err := r.db.WithContext(ctx).
		Where("challenge_id = ? AND student_id = ?", challengeID, studentID).
		First(&participant).Error
	if err != nil {
		return models.ChallengeParticipant{}, err
	}
	return participant, nil
}

func (r *participantRepository) ListByChallenge(ctx context.Context, challengeID uint) ([]models.ChallengeParticipant, error) {
	var participants []models.ChallengeParticipant
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("id").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *participantRepository) CountByChallenge(ctx context.Context, challengeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChallengeParticipant{}).
		Where("challenge_id = ?", challengeID).
		Count(&count).Error
	return count, err
}
