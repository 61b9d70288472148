package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/arena-api/internal/models"
)

// MatchSettingRepository exposes persistence helpers for problems and their
// attachment to challenges.
type MatchSettingRepository interface {
	Create(ctx context.Context, setting *models.MatchSetting) error
	Update(ctx context.Context, setting *models.MatchSetting) error
	GetByID(ctx context.Context, id uint) (models.MatchSetting, error)
	Attach(ctx context.Context, link *models.ChallengeMatchSetting) error
	ListByChallenge(ctx context.Context, challengeID uint) ([]models.ChallengeMatchSetting, error)
	CountByChallenge(ctx context.Context, challengeID uint) (int64, error)
}

// NewMatchSettingRepository constructs a match setting repository.
func NewMatchSettingRepository(db *gorm.DB) MatchSettingRepository {
	return &matchSettingRepository{db: db}
}

type matchSettingRepository struct {
	db *gorm.DB
}

func (r *matchSettingRepository) Create(ctx context.Context, setting *models.MatchSetting) error {
	return r.db.WithContext(ctx).Create(setting).Error
}

func (r *matchSettingRepository) Update(ctx context.Context, setting *models.MatchSetting) error {
	return r.db.WithContext(ctx).Save(setting).Error
}

func (r *matchSettingRepository) GetByID(ctx context.Context, id uint) (models.MatchSetting, error) {
	var setting models.MatchSetting
	if err := r.db.WithContext(ctx).First(&setting, id).Error; err != nil {
		return models.MatchSetting{}, err
	}
	return setting, nil
}

func (r *matchSettingRepository) Attach(ctx context.Context, link *models.ChallengeMatchSetting) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *matchSettingRepository) ListByChallenge(ctx context.Context, challengeID uint) ([]models.ChallengeMatchSetting, error) {
	var links []models.ChallengeMatchSetting
	err := r.db.WithContext(ctx).
		Preload("MatchSetting").
		Where("challenge_id = ?", challengeID).
		Order("id").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *matchSettingRepository) CountByChallenge(ctx context.Context, challengeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChallengeMatchSetting{}).
		Where("challenge_id = ?", challengeID).
		Count(&count).Error
	return count, err
}
