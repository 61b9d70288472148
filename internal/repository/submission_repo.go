package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/arena-api/internal/models"
)

// SubmissionRepository exposes persistence helpers for submissions. Finality
// invariants (at most one is_final row per match) are enforced here inside
// transactions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	CreateFinal(ctx context.Context, submission *models.Submission) error
	CreateFinalIfMissing(ctx context.Context, submission *models.Submission) (bool, error)
	LastByMatch(ctx context.Context, matchID uint) (models.Submission, error)
	GetFinalByMatch(ctx context.Context, matchID uint) (models.Submission, error)
	ListFinalByChallenge(ctx context.Context, challengeID uint) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// CreateFinal persists a final submission, demoting any earlier final row for
// the same match. Last writer for finality wins.
func (r *submissionRepository) CreateFinal(ctx context.Context, submission *models.Submission) error {
	submission.IsFinal = true
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Submission{}).
			Where("match_id = ? AND is_final = ?", submission.MatchID, true).
			Update("is_final", false).Error; err != nil {
			return err
		}
		return tx.Create(submission).Error
	})
}

// CreateFinalIfMissing persists the backfill submission only when the match
// still has no final row; a manual submission that landed first takes
// precedence and the call reports false.
func (r *submissionRepository) CreateFinalIfMissing(ctx context.Context, submission *models.Submission) (bool, error) {
	submission.IsFinal = true
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Submission
		err := tx.Where("match_id = ? AND is_final = ?", submission.MatchID, true).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(submission).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *submissionRepository) LastByMatch(ctx context.Context, matchID uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("id DESC").
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) GetFinalByMatch(ctx context.Context, matchID uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Where("match_id = ? AND is_final = ?", matchID, true).
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) ListFinalByChallenge(ctx context.Context, challengeID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Joins("JOIN matches ON matches.id = submissions.match_id").
		Where("matches.challenge_id = ? AND submissions.is_final = ?", challengeID, true).
		Order("submissions.id").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}
