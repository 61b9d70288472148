package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/arena-api/internal/models"
)

// ScoreRepository persists per-submission score breakdowns.
type ScoreRepository interface {
	Upsert(ctx context.Context, breakdown *models.SubmissionScoreBreakdown) error
	ListByChallenge(ctx context.Context, challengeID uint) ([]models.SubmissionScoreBreakdown, error)
}

// NewScoreRepository constructs a score repository.
func NewScoreRepository(db *gorm.DB) ScoreRepository {
	return &scoreRepository{db: db}
}

type scoreRepository struct {
	db *gorm.DB
}

// Upsert writes the breakdown keyed on submission_id: re-running scoring
// overwrites, never duplicates.
func (r *scoreRepository) Upsert(ctx context.Context, breakdown *models.SubmissionScoreBreakdown) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"implementation_score", "code_review_score", "total_score", "updated_at"}),
		}).
		Create(breakdown).Error
}

func (r *scoreRepository) ListByChallenge(ctx context.Context, challengeID uint) ([]models.SubmissionScoreBreakdown, error) {
	var breakdowns []models.SubmissionScoreBreakdown
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("total_score DESC").
		Find(&breakdowns).Error
	if err != nil {
		return nil, err
	}
	return breakdowns, nil
}
