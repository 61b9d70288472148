package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-api/internal/dto"
	"github.com/noah-isme/arena-api/internal/events"
	"github.com/noah-isme/arena-api/internal/models"
	"github.com/noah-isme/arena-api/internal/repository"
)

// ChallengeService manages challenge content, publication, enrollment, and
// problem attachment. Lifecycle transitions live in LifecycleService.
type ChallengeService struct {
	challenges   repository.ChallengeRepository
	participants repository.ParticipantRepository
	settings     repository.MatchSettingRepository
	emitter      events.Emitter
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
}

// NewChallengeService constructs a challenge service.
func NewChallengeService(
	challenges repository.ChallengeRepository,
	participants repository.ParticipantRepository,
	settings repository.MatchSettingRepository,
	emitter events.Emitter,
	logger zerolog.Logger,
) *ChallengeService {
	return &ChallengeService{
		challenges:   challenges,
		participants: participants,
		settings:     settings,
		emitter:      emitter,
		sanitizer:    bluemonday.UGCPolicy(),
		logger:       logger.With().Str("component", "challenges").Logger(),
	}
}

// Create stores a new draft challenge owned by the teacher.
func (s *ChallengeService) Create(ctx context.Context, teacherID uint, req dto.ChallengeCreateRequest) (dto.ChallengeResponse, error) {
	allowedReviews := req.AllowedNumberOfReview
	if allowedReviews == 0 {
		allowedReviews = 2
	}

	challenge := models.Challenge{
		Title:                 s.sanitizer.Sanitize(req.Title),
		Description:           s.sanitizer.Sanitize(req.Description),
		TeacherID:             teacherID,
		Status:                models.ChallengeStatusDraft,
		ScoringStatus:         models.ScoringStatusPending,
		StartDatetime:         req.StartDatetime,
		EndDatetime:           req.EndDatetime,
		DurationMinutes:       req.DurationMinutes,
		PeerReviewMinutes:     req.PeerReviewMinutes,
		AllowedNumberOfReview: allowedReviews,
	}

	if err := s.challenges.Create(ctx, &challenge); err != nil {
		return dto.ChallengeResponse{}, fmt.Errorf("create challenge: %w", err)
	}

	return dto.NewChallengeResponse(challenge), nil
}

// Update modifies a challenge's content. Only drafts and private challenges
// are editable; published state is frozen until unpublished.
func (s *ChallengeService) Update(ctx context.Context, challengeID, teacherID uint, req dto.ChallengeUpdateRequest) (dto.ChallengeResponse, error) {
	challenge, err := s.ownedChallenge(ctx, challengeID, teacherID)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}

	if !challenge.IsEditable() {
		return dto.ChallengeResponse{}, fmt.Errorf("%w: challenge can no longer be edited", ErrConflict)
	}

	if req.Title != nil {
		challenge.Title = s.sanitizer.Sanitize(*req.Title)
	}
	if req.Description != nil {
		challenge.Description = s.sanitizer.Sanitize(*req.Description)
	}
	if req.StartDatetime != nil {
		challenge.StartDatetime = *req.StartDatetime
	}
	if req.EndDatetime != nil {
		challenge.EndDatetime = *req.EndDatetime
	}
	if req.DurationMinutes != nil {
		challenge.DurationMinutes = *req.DurationMinutes
	}
	if req.PeerReviewMinutes != nil {
		challenge.PeerReviewMinutes = *req.PeerReviewMinutes
	}
	if req.AllowedNumberOfReview != nil {
		challenge.AllowedNumberOfReview = *req.AllowedNumberOfReview
	}

	if challenge.EndDatetime.Before(challenge.StartDatetime) {
		return dto.ChallengeResponse{}, fmt.Errorf("%w: end datetime precedes start datetime", ErrInvalid)
	}

	if err := s.challenges.Update(ctx, &challenge); err != nil {
		return dto.ChallengeResponse{}, fmt.Errorf("update challenge: %w", err)
	}

	return dto.NewChallengeResponse(challenge), nil
}

// Get returns a challenge with its settings and participants loaded.
func (s *ChallengeService) Get(ctx context.Context, challengeID uint) (dto.ChallengeResponse, error) {
	challenge, err := s.challenges.GetWithDetails(ctx, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChallengeResponse{}, ErrNotFound
		}
		return dto.ChallengeResponse{}, fmt.Errorf("load challenge: %w", err)
	}
	return dto.NewChallengeResponse(challenge), nil
}

// Publish opens a challenge for enrollment. At least one problem must be
// attached; after publishing the content is frozen.
func (s *ChallengeService) Publish(ctx context.Context, challengeID, teacherID uint) (dto.ChallengeResponse, error) {
	challenge, err := s.ownedChallenge(ctx, challengeID, teacherID)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}

	if !challenge.IsEditable() {
		return dto.ChallengeResponse{}, fmt.Errorf("%w: challenge is already published", ErrConflict)
	}

	settingCount, err := s.settings.CountByChallenge(ctx, challengeID)
	if err != nil {
		return dto.ChallengeResponse{}, fmt.Errorf("count challenge settings: %w", err)
	}
	if settingCount == 0 {
		return dto.ChallengeResponse{}, fmt.Errorf("%w: attach at least one problem before publishing", ErrInvalid)
	}

	moved, err := s.challenges.TransitionStatus(ctx, challengeID, challenge.Status, models.ChallengeStatusPublic, nil)
	if err != nil {
		return dto.ChallengeResponse{}, fmt.Errorf("publish challenge: %w", err)
	}
	if !moved {
		return dto.ChallengeResponse{}, fmt.Errorf("%w: challenge status changed concurrently", ErrConflict)
	}

	challenge.Status = models.ChallengeStatusPublic
	s.emitter.Publish(ctx, events.ChallengeUpdated, map[string]interface{}{
		"challenge_id": challengeID,
		"status":       models.ChallengeStatusPublic,
	})

	return dto.NewChallengeResponse(challenge), nil
}

// Unpublish rewinds a challenge to private. This is the state machine's only
// reset: every participant, match, submission, and review is destroyed so a
// republished challenge starts clean.
func (s *ChallengeService) Unpublish(ctx context.Context, challengeID, teacherID uint) (dto.ChallengeResponse, error) {
	challenge, err := s.ownedChallenge(ctx, challengeID, teacherID)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}

	switch challenge.Status {
	case models.ChallengeStatusPublic, models.ChallengeStatusAssigned:
	default:
		return dto.ChallengeResponse{}, fmt.Errorf("%w: only a published challenge can be unpublished", ErrConflict)
	}

	if err := s.challenges.ResetToPrivate(ctx, challengeID); err != nil {
		return dto.ChallengeResponse{}, fmt.Errorf("reset challenge: %w", err)
	}

	s.emitter.Publish(ctx, events.ChallengeUpdated, map[string]interface{}{
		"challenge_id": challengeID,
		"status":       models.ChallengeStatusPrivate,
	})

	return s.Get(ctx, challengeID)
}

// Join enrolls a student in a public challenge. Enrollment closes once the
// challenge window opens; the unique index on challenge/student makes double
// joins a conflict rather than a duplicate.
func (s *ChallengeService) Join(ctx context.Context, challengeID, studentID uint, displayName string) error {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load challenge: %w", err)
	}

	if challenge.Status != models.ChallengeStatusPublic {
		return fmt.Errorf("%w: challenge is not open for enrollment", ErrConflict)
	}
	if challenge.HasStarted(time.Now().UTC()) {
		return fmt.Errorf("%w: challenge has already started", ErrConflict)
	}

	if _, err := s.participants.GetByChallengeAndStudent(ctx, challengeID, studentID); err == nil {
		return fmt.Errorf("%w: already joined", ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check enrollment: %w", err)
	}

	participant := models.ChallengeParticipant{
		ChallengeID: challengeID,
		StudentID:   studentID,
		DisplayName: s.sanitizer.Sanitize(displayName),
	}
	if err := s.participants.Create(ctx, &participant); err != nil {
		return fmt.Errorf("create participant: %w", err)
	}

	s.emitter.Publish(ctx, events.ParticipantJoined, map[string]interface{}{
		"challenge_id":   challengeID,
		"participant_id": participant.ID,
	})

	return nil
}

// CreateMatchSetting stores a new problem. A problem marked ready must carry a
// reference solution and private tests, since both drive finalization and
// vote evaluation later.
func (s *ChallengeService) CreateMatchSetting(ctx context.Context, req dto.MatchSettingRequest) (dto.MatchSettingResponse, error) {
	setting, err := s.settingFromRequest(req)
	if err != nil {
		return dto.MatchSettingResponse{}, err
	}

	if err := s.settings.Create(ctx, &setting); err != nil {
		return dto.MatchSettingResponse{}, fmt.Errorf("create match setting: %w", err)
	}

	return settingResponse(setting, req.PublicTests), nil
}

// UpdateMatchSetting replaces a problem's content.
func (s *ChallengeService) UpdateMatchSetting(ctx context.Context, settingID uint, req dto.MatchSettingRequest) (dto.MatchSettingResponse, error) {
	existing, err := s.settings.GetByID(ctx, settingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MatchSettingResponse{}, ErrNotFound
		}
		return dto.MatchSettingResponse{}, fmt.Errorf("load match setting: %w", err)
	}

	setting, err := s.settingFromRequest(req)
	if err != nil {
		return dto.MatchSettingResponse{}, err
	}
	setting.ID = existing.ID
	setting.CreatedAt = existing.CreatedAt

	if err := s.settings.Update(ctx, &setting); err != nil {
		return dto.MatchSettingResponse{}, fmt.Errorf("update match setting: %w", err)
	}

	return settingResponse(setting, req.PublicTests), nil
}

// AttachSetting links a ready problem to an editable challenge.
func (s *ChallengeService) AttachSetting(ctx context.Context, challengeID, teacherID, settingID uint) error {
	challenge, err := s.ownedChallenge(ctx, challengeID, teacherID)
	if err != nil {
		return err
	}

	if !challenge.IsEditable() {
		return fmt.Errorf("%w: challenge can no longer be edited", ErrConflict)
	}

	setting, err := s.settings.GetByID(ctx, settingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: match setting not found", ErrNotFound)
		}
		return fmt.Errorf("load match setting: %w", err)
	}

	if !setting.IsReady() {
		return fmt.Errorf("%w: match setting is not ready", ErrInvalid)
	}

	link := models.ChallengeMatchSetting{
		ChallengeID:    challengeID,
		MatchSettingID: settingID,
	}
	if err := s.settings.Attach(ctx, &link); err != nil {
		return fmt.Errorf("attach match setting: %w", err)
	}

	return nil
}

func (s *ChallengeService) settingFromRequest(req dto.MatchSettingRequest) (models.MatchSetting, error) {
	status := models.MatchSettingStatusDraft
	if req.Ready {
		if req.ReferenceSolution == "" {
			return models.MatchSetting{}, fmt.Errorf("%w: a ready problem requires a reference solution", ErrInvalid)
		}
		if len(req.PrivateTests) == 0 {
			return models.MatchSetting{}, fmt.Errorf("%w: a ready problem requires private tests", ErrInvalid)
		}
		status = models.MatchSettingStatusReady
	}

	publicRaw, err := models.EncodeTestCases(req.PublicTests)
	if err != nil {
		return models.MatchSetting{}, fmt.Errorf("encode public tests: %w", err)
	}
	privateRaw, err := models.EncodeTestCases(req.PrivateTests)
	if err != nil {
		return models.MatchSetting{}, fmt.Errorf("encode private tests: %w", err)
	}

	return models.MatchSetting{
		Title:             s.sanitizer.Sanitize(req.Title),
		Description:       s.sanitizer.Sanitize(req.Description),
		Language:          req.Language,
		ReferenceSolution: req.ReferenceSolution,
		TemplateCode:      req.TemplateCode,
		PublicTests:       publicRaw,
		PrivateTests:      privateRaw,
		Status:            status,
	}, nil
}

func (s *ChallengeService) ownedChallenge(ctx context.Context, challengeID, teacherID uint) (models.Challenge, error) {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Challenge{}, ErrNotFound
		}
		return models.Challenge{}, fmt.Errorf("load challenge: %w", err)
	}

	if challenge.TeacherID != teacherID {
		return models.Challenge{}, fmt.Errorf("%w: challenge belongs to another teacher", ErrForbidden)
	}

	return challenge, nil
}

func settingResponse(setting models.MatchSetting, publicTests []models.TestCase) dto.MatchSettingResponse {
	return dto.MatchSettingResponse{
		ID:           setting.ID,
		Title:        setting.Title,
		Description:  setting.Description,
		Language:     setting.Language,
		TemplateCode: setting.TemplateCode,
		PublicTests:  publicTests,
		Status:       setting.Status,
	}
}
