package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-api/internal/dto"
	"github.com/noah-isme/arena-api/internal/events"
	"github.com/noah-isme/arena-api/internal/models"
	"github.com/noah-isme/arena-api/internal/observability"
	"github.com/noah-isme/arena-api/internal/repository"
	"github.com/noah-isme/arena-api/pkg/judge"
)

// inflightTracker counts submissions currently being judged, per challenge.
// The count gates finalization completion: the phase cannot be declared final
// while a submission accepted before the deadline is still running.
type inflightTracker struct {
	mu     sync.Mutex
	counts map[uint]int
}

func newInflightTracker() *inflightTracker {
	return &inflightTracker{counts: make(map[uint]int)}
}

func (t *inflightTracker) begin(challengeID uint) {
	t.mu.Lock()
	t.counts[challengeID]++
	t.mu.Unlock()
	observability.InFlightSubmissions().Inc()
}

func (t *inflightTracker) end(challengeID uint) {
	t.mu.Lock()
	if t.counts[challengeID] > 0 {
		t.counts[challengeID]--
		if t.counts[challengeID] == 0 {
			delete(t.counts, challengeID)
		}
		observability.InFlightSubmissions().Dec()
	}
	t.mu.Unlock()
}

func (t *inflightTracker) count(challengeID uint) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[challengeID]
}

// FinalizationService settles the end of a coding phase: it tracks in-flight
// judge runs, backfills automatic final submissions for matches without one,
// and stamps the challenge finalized exactly once when nothing is pending.
type FinalizationService struct {
	challenges  repository.ChallengeRepository
	matches     repository.MatchRepository
	submissions repository.SubmissionRepository
	judge       judge.Service
	emitter     events.Emitter
	cache       *redis.Client
	logger      zerolog.Logger
	inflight    *inflightTracker
	grace       time.Duration
	cacheTTL    time.Duration
}

// NewFinalizationService constructs a finalization service. The cache client
// may be nil, in which case stats are computed on every call.
func NewFinalizationService(
	challenges repository.ChallengeRepository,
	matches repository.MatchRepository,
	submissions repository.SubmissionRepository,
	judgeService judge.Service,
	emitter events.Emitter,
	cache *redis.Client,
	logger zerolog.Logger,
	grace time.Duration,
	cacheTTL time.Duration,
) *FinalizationService {
	return &FinalizationService{
		challenges:  challenges,
		matches:     matches,
		submissions: submissions,
		judge:       judgeService,
		emitter:     emitter,
		cache:       cache,
		logger:      logger.With().Str("component", "finalization").Logger(),
		inflight:    newInflightTracker(),
		grace:       grace,
		cacheTTL:    cacheTTL,
	}
}

// Grace returns the window after the coding deadline during which in-flight
// submissions may still land.
func (s *FinalizationService) Grace() time.Duration {
	return s.grace
}

// BeginSubmission records that a submission for the challenge entered judging.
func (s *FinalizationService) BeginSubmission(challengeID uint) {
	s.inflight.begin(challengeID)
}

// EndSubmission records that a submission finished judging, successfully or not.
func (s *FinalizationService) EndSubmission(challengeID uint) {
	s.inflight.end(challengeID)
}

// InFlight returns the number of submissions currently being judged for the
// challenge.
func (s *FinalizationService) InFlight(challengeID uint) int {
	return s.inflight.count(challengeID)
}

// RunBackfill creates an automatic final submission for every match that has
// none. The last draft is promoted when one exists; otherwise the problem's
// template code (or an empty body) is judged and stored. A failure on one
// match is logged and does not abort the rest.
func (s *FinalizationService) RunBackfill(ctx context.Context, challengeID uint) error {
	missing, err := s.matches.ListMissingFinal(ctx, challengeID)
	if err != nil {
		return fmt.Errorf("list matches missing final submission: %w", err)
	}

	for _, match := range missing {
		if err := s.backfillMatch(ctx, match); err != nil {
			observability.AutoSubmissions().WithLabelValues("failed").Inc()
			s.logger.Error().Err(err).
				Uint("challenge_id", challengeID).
				Uint("match_id", match.ID).
				Msg("auto submission failed")
		}
	}

	return nil
}

func (s *FinalizationService) backfillMatch(ctx context.Context, match models.Match) error {
	submission := models.Submission{
		MatchID:               match.ID,
		IsAutomaticSubmission: true,
	}

	last, err := s.submissions.LastByMatch(ctx, match.ID)
	switch {
	case err == nil:
		// Promote the latest draft; its judge results are already stored.
		submission.Code = last.Code
		submission.Status = last.Status
		submission.PublicTestResults = last.PublicTestResults
		submission.PrivateTestResults = last.PrivateTestResults
	case errors.Is(err, gorm.ErrRecordNotFound):
		setting := match.Setting.MatchSetting
		submission.Code = setting.TemplateCode

		report, judgeErr := s.judgeCode(ctx, setting, submission.Code)
		if judgeErr != nil {
			return judgeErr
		}
		submission.Status = report.status
		submission.PublicTestResults = report.publicResults
		submission.PrivateTestResults = report.privateResults
	default:
		return err
	}

	created, err := s.submissions.CreateFinalIfMissing(ctx, &submission)
	if err != nil {
		return err
	}

	if created {
		observability.AutoSubmissions().WithLabelValues("created").Inc()
	} else {
		observability.AutoSubmissions().WithLabelValues("skipped").Inc()
	}

	return nil
}

type judgedCode struct {
	status         string
	publicResults  []byte
	privateResults []byte
}

func (s *FinalizationService) judgeCode(ctx context.Context, setting models.MatchSetting, code string) (judgedCode, error) {
	publicTests, err := models.DecodeTestCases(setting.PublicTests)
	if err != nil {
		return judgedCode{}, fmt.Errorf("decode public tests: %w", err)
	}
	privateTests, err := models.DecodeTestCases(setting.PrivateTests)
	if err != nil {
		return judgedCode{}, fmt.Errorf("decode private tests: %w", err)
	}

	publicReport, err := s.judge.Execute(ctx, judge.ExecuteRequest{
		Code:     code,
		Language: setting.Language,
		Tests:    toJudgeTests(publicTests),
	})
	if err != nil {
		return judgedCode{}, fmt.Errorf("judge public tests: %w", err)
	}
	privateReport, err := s.judge.Execute(ctx, judge.ExecuteRequest{
		Code:     code,
		Language: setting.Language,
		Tests:    toJudgeTests(privateTests),
	})
	if err != nil {
		return judgedCode{}, fmt.Errorf("judge private tests: %w", err)
	}

	publicRaw, err := judge.EncodeResults(publicReport.Results)
	if err != nil {
		return judgedCode{}, err
	}
	privateRaw, err := judge.EncodeResults(privateReport.Results)
	if err != nil {
		return judgedCode{}, err
	}

	return judgedCode{
		status:         classifySubmission(publicReport, privateReport),
		publicResults:  publicRaw,
		privateResults: privateRaw,
	}, nil
}

// MaybeCompleteFinalization stamps the challenge finalized when the coding
// phase has ended, no match is missing a final submission, and no submission
// is still being judged. The stamp lands at most once; concurrent callers
// lose on the conditional update and return false.
func (s *FinalizationService) MaybeCompleteFinalization(ctx context.Context, challengeID uint) (bool, error) {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		return false, fmt.Errorf("load challenge: %w", err)
	}

	if challenge.Status != models.ChallengeStatusEndedCoding {
		return false, nil
	}
	if challenge.FinalizationCompletedAt != nil {
		return false, nil
	}
	if s.inflight.count(challengeID) > 0 {
		return false, nil
	}

	pending, err := s.matches.CountMissingFinal(ctx, challengeID)
	if err != nil {
		return false, fmt.Errorf("count matches missing final submission: %w", err)
	}
	if pending > 0 {
		return false, nil
	}

	stamped, err := s.challenges.CompleteFinalization(ctx, challengeID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("stamp finalization: %w", err)
	}

	if stamped {
		s.invalidateStats(ctx, challengeID)
		s.emitter.Publish(ctx, events.FinalizationUpdated, map[string]interface{}{
			"challenge_id": challengeID,
			"finalized":    true,
		})
		s.logger.Info().Uint("challenge_id", challengeID).Msg("finalization completed")
	}

	return stamped, nil
}

// Stats reports finalization progress for a challenge. Results are cached
// briefly in Redis since the frontend polls this endpoint.
func (s *FinalizationService) Stats(ctx context.Context, challengeID uint) (dto.MatchStatsResponse, error) {
	cacheKey := fmt.Sprintf("arena:stats:%d", challengeID)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached dto.MatchStatsResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				cached.InFlightSubmissionsCount = s.inflight.count(challengeID)
				return cached, nil
			}
		}
	}

	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MatchStatsResponse{}, ErrNotFound
		}
		return dto.MatchStatsResponse{}, fmt.Errorf("load challenge: %w", err)
	}

	total, err := s.matches.CountByChallenge(ctx, challengeID)
	if err != nil {
		return dto.MatchStatsResponse{}, fmt.Errorf("count matches: %w", err)
	}
	pending, err := s.matches.CountMissingFinal(ctx, challengeID)
	if err != nil {
		return dto.MatchStatsResponse{}, fmt.Errorf("count matches missing final submission: %w", err)
	}

	stats := dto.MatchStatsResponse{
		ChallengeID:              challengeID,
		Status:                   challenge.Status,
		ScoringStatus:            challenge.ScoringStatus,
		TotalMatches:             total,
		PendingFinalCount:        pending,
		InFlightSubmissionsCount: s.inflight.count(challengeID),
		ResultsReady:             challenge.ScoringStatus == models.ScoringStatusCompleted,
		PeerReviewReady:          challenge.FinalizationCompletedAt != nil,
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			s.cache.Set(ctx, cacheKey, raw, s.cacheTTL)
		}
	}

	return stats, nil
}

func (s *FinalizationService) invalidateStats(ctx context.Context, challengeID uint) {
	if s.cache == nil {
		return
	}
	s.cache.Del(ctx, fmt.Sprintf("arena:stats:%d", challengeID))
}

func toJudgeTests(tests []models.TestCase) []judge.TestCase {
	converted := make([]judge.TestCase, 0, len(tests))
	for _, test := range tests {
		converted = append(converted, judge.TestCase{
			Input:          test.Input,
			ExpectedOutput: test.ExpectedOutput,
		})
	}
	return converted
}

// classifySubmission derives the quality status from judge reports: failing a
// public test (or not compiling) is wrong, failing only private tests is
// improvable, passing everything is probably correct.
func classifySubmission(publicReport, privateReport judge.RunReport) string {
	if !publicReport.IsCompiled || !publicReport.IsPassed {
		return models.SubmissionStatusWrong
	}
	if !privateReport.IsPassed {
		return models.SubmissionStatusImprovable
	}
	return models.SubmissionStatusProbablyCorrect
}
