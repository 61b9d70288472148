package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-api/internal/models"
)

// PeerReviewRepository exposes persistence helpers for review assignments and votes.
type PeerReviewRepository interface {
	CreateAssignments(ctx context.Context, assignments []models.PeerReviewAssignment) error
	CountByChallenge(ctx context.Context, challengeID uint) (int64, error)
	ListByChallenge(ctx context.Context, challengeID uint) ([]models.PeerReviewAssignment, error)
	ListByReviewer(ctx context.Context, challengeID, reviewerID uint) ([]models.PeerReviewAssignment, error)
	GetAssignment(ctx context.Context, id uint) (models.PeerReviewAssignment, error)
	SetFeedbackTests(ctx context.Context, assignmentID uint, tests datatypes.JSON) error
	CreateVote(ctx context.Context, vote *models.PeerReviewVote) error
	UpdateVote(ctx context.Context, vote *models.PeerReviewVote) error
	ListVotesBySubmission(ctx context.Context, submissionID uint) ([]models.PeerReviewVote, error)
}

// NewPeerReviewRepository constructs a peer review repository.
func NewPeerReviewRepository(db *gorm.DB) PeerReviewRepository {
	return &peerReviewRepository{db: db}
}

type peerReviewRepository struct {
	db *gorm.DB
}

func (r *peerReviewRepository) CreateAssignments(ctx context.Context, assignments []models.PeerReviewAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&assignments).Error
}

func (r *peerReviewRepository) CountByChallenge(ctx context.Context, challengeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PeerReviewAssignment{}).
		Where("challenge_id = ?", challengeID).
		Count(&count).Error
	return count, err
}

func (r *peerReviewRepository) ListByChallenge(ctx context.Context, challengeID uint) ([]models.PeerReviewAssignment, error) {
	var assignments []models.PeerReviewAssignment
	err := r.db.WithContext(ctx).
		Preload("Vote").
		Preload("Submission").
		Where("challenge_id = ?", challengeID).
		Order("id").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *peerReviewRepository) ListByReviewer(ctx context.Context, challengeID, reviewerID uint) ([]models.PeerReviewAssignment, error) {
	var assignments []models.PeerReviewAssignment
	err := r.db.WithContext(ctx).
		Preload("Vote").
		Preload("Submission").
		Where("challenge_id = ? AND reviewer_id = ?", challengeID, reviewerID).
		Order("id").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *peerReviewRepository) GetAssignment(ctx context.Context, id uint) (models.PeerReviewAssignment, error) {
	var assignment models.PeerReviewAssignment
	err := r.db.WithContext(ctx).
		Preload("Vote").
		Preload("Submission").
		Preload("Reviewer").
		First(&assignment, id).Error
	if err != nil {
		return models.PeerReviewAssignment{}, err
	}
	return assignment, nil
}

func (r *peerReviewRepository) SetFeedbackTests(ctx context.Context, assignmentID uint, tests datatypes.JSON) error {
	return r.db.WithContext(ctx).
		Model(&models.PeerReviewAssignment{}).
		Where("id = ?", assignmentID).
		Update("feedback_tests", tests).Error
}

func (r *peerReviewRepository) CreateVote(ctx context.Context, vote *models.PeerReviewVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *peerReviewRepository) UpdateVote(ctx context.Context, vote *models.PeerReviewVote) error {
	return r.db.WithContext(ctx).Save(vote).Error
}

func (r *peerReviewRepository) ListVotesBySubmission(ctx context.Context, submissionID uint) ([]models.PeerReviewVote, error) {
	var votes []models.PeerReviewVote
	err := r.db.WithContext(ctx).
		Joins("JOIN peer_review_assignments ON peer_review_assignments.id = peer_review_votes.assignment_id").
		Where("peer_review_assignments.submission_id = ?", submissionID).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}
