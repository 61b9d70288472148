package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/arena-api/internal/models"
)

// MatchRepository exposes persistence helpers for participant/problem pairings.
type MatchRepository interface {
	ReplaceForChallenge(ctx context.Context, challengeID uint, matches []models.Match) error
	CountByChallenge(ctx context.Context, challengeID uint) (int64, error)
	ListByChallenge(ctx context.Context, challengeID uint) ([]models.Match, error)
	GetByParticipant(ctx context.Context, participantID uint) (models.Match, error)
	ListMissingFinal(ctx context.Context, challengeID uint) ([]models.Match, error)
	CountMissingFinal(ctx context.Context, challengeID uint) (int64, error)
}

// NewMatchRepository constructs a match repository.
func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepository{db: db}
}

type matchRepository struct {
	db *gorm.DB
}

// ReplaceForChallenge atomically swaps the challenge's pairings: prior
// matches (and their submissions) are removed and the new set inserted in a
// single transaction, so an overwrite never leaves a partial assignment.
func (r *matchRepository) ReplaceForChallenge(ctx context.Context, challengeID uint, matches []models.Match) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var matchIDs []uint
		if err := tx.Model(&models.Match{}).Where("challenge_id = ?", challengeID).Pluck("id", &matchIDs).Error; err != nil {
			return err
		}
		if len(matchIDs) > 0 {
			if err := tx.Where("match_id IN ?", matchIDs).Delete(&models.Submission{}).Error; err != nil {
				return err
			}
			if err := tx.Where("challenge_id = ?", challengeID).Delete(&models.Match{}).Error; err != nil {
				return err
			}
		}
		if len(matches) == 0 {
			return nil
		}
		return tx.Create(&matches).Error
	})
}

func (r *matchRepository) CountByChallenge(ctx context.Context, challengeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("challenge_id = ?", challengeID).
		Count(&count).Error
	return count, err
}

func (r *matchRepository) ListByChallenge(ctx context.Context, challengeID uint) ([]models.Match, error) {
	var matches []models.Match
	err := r.db.WithContext(ctx).
		Preload("Participant").
		Preload("Setting.MatchSetting").
		Preload("Submissions").
		Where("challenge_id = ?", challengeID).
		Order("id").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *matchRepository) GetByParticipant(ctx context.Context, participantID uint) (models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).
		Preload("Setting.MatchSetting").
		Preload("Submissions").
		Where("challenge_participant_id = ?", participantID).
		First(&match).Error
	if err != nil {
		return models.Match{}, err
	}
	return match, nil
}

func (r *matchRepository) ListMissingFinal(ctx context.Context, challengeID uint) ([]models.Match, error) {
	var matches []models.Match
	err := r.db.WithContext(ctx).
		Preload("Setting.MatchSetting").
		Where("challenge_id = ?", challengeID).
		Where("id NOT IN (?)", r.db.Model(&models.Submission{}).Select("match_id").Where("is_final = ?", true)).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *matchRepository) CountMissingFinal(ctx context.Context, challengeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("challenge_id = ?", challengeID).
		Where("id NOT IN (?)", r.db.Model(&models.Submission{}).Select("match_id").Where("is_final = ?", true)).
		Count(&count).Error
	return count, err
}
