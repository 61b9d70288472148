package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-api/internal/dto"
	"github.com/noah-isme/arena-api/internal/events"
	"github.com/noah-isme/arena-api/internal/models"
	"github.com/noah-isme/arena-api/internal/repository"
	"github.com/noah-isme/arena-api/pkg/judge"
)

// SubmissionService judges and stores student code for their assigned match.
type SubmissionService struct {
	challenges   repository.ChallengeRepository
	participants repository.ParticipantRepository
	matches      repository.MatchRepository
	submissions  repository.SubmissionRepository
	judge        judge.Service
	finalizer    *FinalizationService
	emitter      events.Emitter
	logger       zerolog.Logger
	now          func() time.Time
}

// NewSubmissionService constructs a submission service.
func NewSubmissionService(
	challenges repository.ChallengeRepository,
	participants repository.ParticipantRepository,
	matches repository.MatchRepository,
	submissions repository.SubmissionRepository,
	judgeService judge.Service,
	finalizer *FinalizationService,
	emitter events.Emitter,
	logger zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		challenges:   challenges,
		participants: participants,
		matches:      matches,
		submissions:  submissions,
		judge:        judgeService,
		finalizer:    finalizer,
		emitter:      emitter,
		logger:       logger.With().Str("component", "submissions").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Submit judges the student's code against their match's tests and stores the
// attempt. Submissions are accepted while the coding phase runs and for a
// short grace window after it ends, so an attempt sent just before the
// deadline is not lost. The in-flight counter around the judge call keeps
// finalization from completing underneath a running submission.
func (s *SubmissionService) Submit(ctx context.Context, challengeID, studentID uint, req dto.SubmitRequest) (dto.SubmissionResponse, error) {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("load challenge: %w", err)
	}

	inGrace := false
	switch challenge.Status {
	case models.ChallengeStatusStartedCoding:
	case models.ChallengeStatusEndedCoding:
		if challenge.EndCodingPhaseAt == nil || s.now().After(challenge.EndCodingPhaseAt.Add(s.finalizer.Grace())) {
			return dto.SubmissionResponse{}, fmt.Errorf("%w: coding phase has ended", ErrConflict)
		}
		if challenge.FinalizationCompletedAt != nil {
			return dto.SubmissionResponse{}, fmt.Errorf("%w: challenge is already finalized", ErrConflict)
		}
		inGrace = true
	default:
		return dto.SubmissionResponse{}, fmt.Errorf("%w: coding phase is not running", ErrConflict)
	}

	match, setting, err := s.matchForStudent(ctx, challengeID, studentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	publicTests, err := models.DecodeTestCases(setting.PublicTests)
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("decode public tests: %w", err)
	}
	privateTests, err := models.DecodeTestCases(setting.PrivateTests)
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("decode private tests: %w", err)
	}

	s.finalizer.BeginSubmission(challengeID)
	defer func() {
		s.finalizer.EndSubmission(challengeID)
		if inGrace || req.IsFinal {
			if _, err := s.finalizer.MaybeCompleteFinalization(context.WithoutCancel(ctx), challengeID); err != nil {
				s.logger.Error().Err(err).Uint("challenge_id", challengeID).Msg("finalization check after submission failed")
			}
		}
	}()

	publicReport, err := s.judge.Execute(ctx, judge.ExecuteRequest{
		Code:     req.Code,
		Language: setting.Language,
		Tests:    toJudgeTests(publicTests),
	})
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("judge public tests: %w", err)
	}
	privateReport, err := s.judge.Execute(ctx, judge.ExecuteRequest{
		Code:     req.Code,
		Language: setting.Language,
		Tests:    toJudgeTests(privateTests),
	})
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("judge private tests: %w", err)
	}

	publicRaw, err := judge.EncodeResults(publicReport.Results)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	privateRaw, err := judge.EncodeResults(privateReport.Results)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		MatchID:            match.ID,
		Code:               req.Code,
		Status:             classifySubmission(publicReport, privateReport),
		PublicTestResults:  publicRaw,
		PrivateTestResults: privateRaw,
	}

	if req.IsFinal {
		err = s.submissions.CreateFinal(ctx, &submission)
	} else {
		err = s.submissions.Create(ctx, &submission)
	}
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("store submission: %w", err)
	}

	if req.IsFinal || inGrace {
		s.emitter.Publish(ctx, events.FinalizationUpdated, map[string]interface{}{
			"challenge_id":  challengeID,
			"match_id":      match.ID,
			"submission_id": submission.ID,
			"is_final":      submission.IsFinal,
		})
	}

	return dto.NewSubmissionResponse(submission), nil
}

// RunCustomInput executes the student's code once against an input of their
// choosing. Available only while the coding phase runs.
func (s *SubmissionService) RunCustomInput(ctx context.Context, challengeID, studentID uint, req dto.RunInputRequest) (dto.RunInputResponse, error) {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RunInputResponse{}, ErrNotFound
		}
		return dto.RunInputResponse{}, fmt.Errorf("load challenge: %w", err)
	}

	if challenge.Status != models.ChallengeStatusStartedCoding {
		return dto.RunInputResponse{}, fmt.Errorf("%w: coding phase is not running", ErrConflict)
	}

	_, setting, err := s.matchForStudent(ctx, challengeID, studentID)
	if err != nil {
		return dto.RunInputResponse{}, err
	}

	result, err := s.judge.RunInput(ctx, req.Code, setting.Language, req.Input)
	if err != nil {
		return dto.RunInputResponse{}, fmt.Errorf("run custom input: %w", err)
	}

	return dto.RunInputResponse{
		Output:   result.ActualOutput,
		Stderr:   result.Stderr,
		TimedOut: result.TimedOut,
	}, nil
}

// MyMatch returns the caller's assigned match with its problem statement and
// prior submissions. Private tests and the reference solution are withheld.
func (s *SubmissionService) MyMatch(ctx context.Context, challengeID, studentID uint) (dto.MatchResponse, error) {
	match, setting, err := s.matchForStudent(ctx, challengeID, studentID)
	if err != nil {
		return dto.MatchResponse{}, err
	}

	publicTests, err := models.DecodeTestCases(setting.PublicTests)
	if err != nil {
		return dto.MatchResponse{}, fmt.Errorf("decode public tests: %w", err)
	}

	resp := dto.MatchResponse{
		ID:          match.ID,
		ChallengeID: match.ChallengeID,
		MatchSetting: dto.MatchSettingResponse{
			ID:           setting.ID,
			Title:        setting.Title,
			Description:  setting.Description,
			Language:     setting.Language,
			TemplateCode: setting.TemplateCode,
			PublicTests:  publicTests,
			Status:       setting.Status,
		},
	}

	for _, submission := range match.Submissions {
		resp.Submissions = append(resp.Submissions, dto.NewSubmissionResponse(submission))
	}

	return resp, nil
}

func (s *SubmissionService) matchForStudent(ctx context.Context, challengeID, studentID uint) (models.Match, models.MatchSetting, error) {
	participant, err := s.participants.GetByChallengeAndStudent(ctx, challengeID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Match{}, models.MatchSetting{}, fmt.Errorf("%w: not a participant of this challenge", ErrForbidden)
		}
		return models.Match{}, models.MatchSetting{}, fmt.Errorf("load participant: %w", err)
	}

	match, err := s.matches.GetByParticipant(ctx, participant.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Match{}, models.MatchSetting{}, fmt.Errorf("%w: no match assigned", ErrNotFound)
		}
		return models.Match{}, models.MatchSetting{}, fmt.Errorf("load match: %w", err)
	}

	return match, match.Setting.MatchSetting, nil
}
