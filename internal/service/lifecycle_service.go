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
	"github.com/noah-isme/arena-api/internal/observability"
	"github.com/noah-isme/arena-api/internal/repository"
	"github.com/noah-isme/arena-api/internal/scheduler"
)

// Transition outcomes. Handlers map these to HTTP statuses; concurrent losers
// of an end-phase race get OutcomeAlreadyEnded, which reads as success.
const (
	OutcomeOK                           = "ok"
	OutcomeChallengeNotFound            = "challenge_not_found"
	OutcomeNoMatchSettings              = "no_match_settings"
	OutcomeNoParticipants               = "no_participants"
	OutcomeTooEarly                     = "too_early"
	OutcomeAlreadyAssigned              = "already_assigned"
	OutcomeInvalidStatus                = "invalid_status"
	OutcomeAlreadyStarted               = "already_started"
	OutcomeNoMatches                    = "no_matches"
	OutcomeInvalidExpectedReviews       = "invalid_expected_reviews"
	OutcomeFinalizationPending          = "finalization_pending"
	OutcomeNoAssignments                = "no_assignments"
	OutcomeInsufficientValidSubmissions = "insufficient_valid_submissions"
	OutcomeAlreadyEnded                 = "already_ended"
	OutcomeUpdateFailed                 = "update_failed"
)

// Scheduler phase keys.
const (
	phaseEndCoding     = "end_coding"
	phaseEndPeerReview = "end_peer_review"
	phaseFinalize      = "finalize"
)

// TransitionResult is the outcome of a lifecycle operation.
type TransitionResult struct {
	Outcome string
	Status  string
	Detail  string
}

// OK reports whether the transition took effect or was a benign no-op.
func (r TransitionResult) OK() bool {
	return r.Outcome == OutcomeOK || r.Outcome == OutcomeAlreadyEnded
}

// Response converts the result to its API representation.
func (r TransitionResult) Response() dto.TransitionResponse {
	return dto.TransitionResponse{Outcome: r.Outcome, Status: r.Status, Detail: r.Detail}
}

// LifecycleService drives the challenge state machine: match assignment, phase
// starts and ends, and peer review assignment. Every transition goes through a
// conditional update so a timer and a manual caller racing on the same edge
// produce exactly one state change.
type LifecycleService struct {
	challenges   repository.ChallengeRepository
	participants repository.ParticipantRepository
	settings     repository.MatchSettingRepository
	matches      repository.MatchRepository
	submissions  repository.SubmissionRepository
	peerReviews  repository.PeerReviewRepository
	finalizer    *FinalizationService
	scoring      *ScoringService
	emitter      events.Emitter
	timers       *scheduler.Scheduler
	logger       zerolog.Logger

	// shuffle is swapped for a deterministic version in tests.
	shuffle func(n int, swap func(i, j int))
	now     func() time.Time
}

// NewLifecycleService constructs the lifecycle orchestrator.
func NewLifecycleService(
	challenges repository.ChallengeRepository,
	participants repository.ParticipantRepository,
	settings repository.MatchSettingRepository,
	matches repository.MatchRepository,
	submissions repository.SubmissionRepository,
	peerReviews repository.PeerReviewRepository,
	finalizer *FinalizationService,
	scoring *ScoringService,
	emitter events.Emitter,
	timers *scheduler.Scheduler,
	logger zerolog.Logger,
) *LifecycleService {
	return &LifecycleService{
		challenges:   challenges,
		participants: participants,
		settings:     settings,
		matches:      matches,
		submissions:  submissions,
		peerReviews:  peerReviews,
		finalizer:    finalizer,
		scoring:      scoring,
		emitter:      emitter,
		timers:       timers,
		logger:       logger.With().Str("component", "lifecycle").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Assign pairs every participant with a problem. A public challenge becomes
// assigned; re-running on an assigned challenge requires overwrite and swaps
// the whole pairing set atomically.
func (s *LifecycleService) Assign(ctx context.Context, challengeID uint, overwrite bool) (TransitionResult, error) {
	challenge, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return s.record("assign", TransitionResult{Outcome: OutcomeChallengeNotFound}), nil
	}

	reassigning := challenge.Status == models.ChallengeStatusAssigned
	if reassigning && !overwrite {
		return s.record("assign", TransitionResult{Outcome: OutcomeAlreadyAssigned, Status: challenge.Status}), nil
	}
	if !reassigning && challenge.Status != models.ChallengeStatusPublic {
		return s.record("assign", TransitionResult{Outcome: OutcomeInvalidStatus, Status: challenge.Status, Detail: "challenge must be public before assignment"}), nil
	}
	if !reassigning && !challenge.HasStarted(s.now()) {
		return s.record("assign", TransitionResult{Outcome: OutcomeTooEarly, Status: challenge.Status, Detail: "challenge window has not opened"}), nil
	}

	links, err := s.settings.ListByChallenge(ctx, challengeID)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("list challenge settings: %w", err)
	}
	if len(links) == 0 {
		return s.record("assign", TransitionResult{Outcome: OutcomeNoMatchSettings, Status: challenge.Status}), nil
	}

	participants, err := s.participants.ListByChallenge(ctx, challengeID)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("list participants: %w", err)
	}
	if len(participants) == 0 {
		return s.record("assign", TransitionResult{Outcome: OutcomeNoParticipants, Status: challenge.Status}), nil
	}

	participantIDs := make([]uint, 0, len(participants))
	for _, participant := range participants {
		participantIDs = append(participantIDs, participant.ID)
	}
	settingIDs := make([]uint, 0, len(links))
	for _, link := range links {
		settingIDs = append(settingIDs, link.ID)
	}

	pairs := assignMatches(participantIDs, settingIDs, s.shuffle)
	matches := make([]models.Match, 0, len(pairs))
	for _, pair := range pairs {
		matches = append(matches, models.Match{
			ChallengeID:             challengeID,
			ChallengeParticipantID:  pair.ParticipantID,
			ChallengeMatchSettingID: pair.SettingID,
		})
	}

	if err := s.matches.ReplaceForChallenge(ctx, challengeID, matches); err != nil {
		return TransitionResult{}, fmt.Errorf("replace matches: %w", err)
	}

	status := models.ChallengeStatusAssigned
	if !reassigning {
		moved, err := s.challenges.TransitionStatus(ctx, challengeID, models.ChallengeStatusPublic, models.ChallengeStatusAssigned, nil)
		if err != nil {
			return TransitionResult{}, fmt.Errorf("transition to assigned: %w", err)
		}
		if !moved {
			return s.record("assign", TransitionResult{Outcome: OutcomeUpdateFailed, Status: challenge.Status}), nil
		}
	}

	s.emitter.Publish(ctx, events.ChallengeUpdated, map[string]interface{}{
		"challenge_id": challengeID,
		"status":       status,
	})

	return s.record("assign", TransitionResult{Outcome: OutcomeOK, Status: status}), nil
}

// StartCoding opens the coding phase of an assigned challenge once its window
// has opened, and arms the end-of-phase timer.
func (s *LifecycleService) StartCoding(ctx context.Context, challengeID uint) (TransitionResult, error) {
	challenge, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return s.record("start_coding", TransitionResult{Outcome: OutcomeChallengeNotFound}), nil
	}

	switch challenge.Status {
	case models.ChallengeStatusAssigned:
	case models.ChallengeStatusStartedCoding:
		return s.record("start_coding", TransitionResult{Outcome: OutcomeAlreadyStarted, Status: challenge.Status}), nil
	default:
		return s.record("start_coding", TransitionResult{Outcome: OutcomeInvalidStatus, Status: challenge.Status, Detail: "challenge must be assigned before starting"}), nil
	}

	startedAt := s.now()
	if !challenge.HasStarted(startedAt) {
		return s.record("start_coding", TransitionResult{Outcome: OutcomeTooEarly, Status: challenge.Status, Detail: "challenge window has not opened"}), nil
	}

	matchCount, err := s.matches.CountByChallenge(ctx, challengeID)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("count matches: %w", err)
	}
	if matchCount == 0 {
		return s.record("start_coding", TransitionResult{Outcome: OutcomeNoMatches, Status: challenge.Status}), nil
	}

	moved, err := s.challenges.TransitionStatus(ctx, challengeID,
		models.ChallengeStatusAssigned, models.ChallengeStatusStartedCoding,
		map[string]interface{}{"start_coding_phase_at": startedAt})
	if err != nil {
		return TransitionResult{}, fmt.Errorf("transition to started coding: %w", err)
	}
	if !moved {
		return s.record("start_coding", TransitionResult{Outcome: OutcomeAlreadyStarted, Status: models.ChallengeStatusStartedCoding}), nil
	}

	deadline := startedAt.Add(time.Duration(challenge.DurationMinutes) * time.Minute)
	s.scheduleEndCoding(challengeID, deadline)

	s.emitter.Publish(ctx, events.ChallengeUpdated, map[string]interface{}{
		"challenge_id": challengeID,
		"status":       models.ChallengeStatusStartedCoding,
	})

	return s.record("start_coding", TransitionResult{Outcome: OutcomeOK, Status: models.ChallengeStatusStartedCoding}), nil
}

// EndCoding closes the coding phase. The timer and a manual caller may race
// here; the conditional update picks one winner and the loser reports
// already_ended. The winner schedules the finalization backfill to run after
// the grace window so in-flight submissions can land.
func (s *LifecycleService) EndCoding(ctx context.Context, challengeID uint) (TransitionResult, error) {
	endedAt := s.now()
	moved, err := s.challenges.TransitionStatus(ctx, challengeID,
		models.ChallengeStatusStartedCoding, models.ChallengeStatusEndedCoding,
		map[string]interface{}{"end_coding_phase_at": endedAt})
	if err != nil {
		return TransitionResult{}, fmt.Errorf("transition to ended coding: %w", err)
	}

	if !moved {
		challenge, err := s.loadChallenge(ctx, challengeID)
		if err != nil {
			return s.record("end_coding", TransitionResult{Outcome: OutcomeChallengeNotFound}), nil
		}
		if codingEnded(challenge.Status) {
			return s.record("end_coding", TransitionResult{Outcome: OutcomeAlreadyEnded, Status: challenge.Status}), nil
		}
		return s.record("end_coding", TransitionResult{Outcome: OutcomeInvalidStatus, Status: challenge.Status, Detail: "coding phase is not running"}), nil
	}

	s.timers.Cancel(challengeID, phaseEndCoding)
	s.timers.Schedule(challengeID, phaseFinalize, endedAt.Add(s.finalizer.Grace()), func() {
		s.finalize(challengeID)
	})

	s.emitter.Publish(ctx, events.ChallengeUpdated, map[string]interface{}{
		"challenge_id": challengeID,
		"status":       models.ChallengeStatusEndedCoding,
	})

	return s.record("end_coding", TransitionResult{Outcome: OutcomeOK, Status: models.ChallengeStatusEndedCoding}), nil
}

// AssignPeerReviews distributes final submissions among reviewers. Only valid
// submissions in problem groups of at least two enter the pool; the requested
// review count defaults to the challenge's configured value.
func (s *LifecycleService) AssignPeerReviews(ctx context.Context, challengeID uint, expectedReviews int) (TransitionResult, error) {
	challenge, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return s.record("assign_peer_reviews", TransitionResult{Outcome: OutcomeChallengeNotFound}), nil
	}

	if challenge.Status != models.ChallengeStatusEndedCoding {
		return s.record("assign_peer_reviews", TransitionResult{Outcome: OutcomeInvalidStatus, Status: challenge.Status, Detail: "coding phase must have ended"}), nil
	}
	if challenge.FinalizationCompletedAt == nil {
		return s.record("assign_peer_reviews", TransitionResult{Outcome: OutcomeFinalizationPending, Status: challenge.Status}), nil
	}

	if expectedReviews == 0 {
		expectedReviews = challenge.AllowedNumberOfReview
	}
	if expectedReviews < 2 {
		return s.record("assign_peer_reviews", TransitionResult{Outcome: OutcomeInvalidExpectedReviews, Status: challenge.Status}), nil
	}

	existing, err := s.peerReviews.CountByChallenge(ctx, challengeID)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("count review assignments: %w", err)
	}
	if existing > 0 {
		return s.record("assign_peer_reviews", TransitionResult{Outcome: OutcomeAlreadyAssigned, Status: challenge.Status, Detail: "peer reviews already assigned"}), nil
	}

	matches, err := s.matches.ListByChallenge(ctx, challengeID)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("list matches: %w", err)
	}

	groups := reviewGroups(matches)

	assignments := make([]models.PeerReviewAssignment, 0)
	for _, group := range groups {
		for _, assignment := range assignReviews(group, expectedReviews) {
			assignments = append(assignments, models.PeerReviewAssignment{
				ChallengeID:  challengeID,
				ReviewerID:   assignment.ReviewerID,
				SubmissionID: assignment.SubmissionID,
				IsExtra:      assignment.IsExtra,
			})
		}
	}

	if len(assignments) == 0 {
		return s.record("assign_peer_reviews", TransitionResult{Outcome: OutcomeInsufficientValidSubmissions, Status: challenge.Status}), nil
	}

	if err := s.peerReviews.CreateAssignments(ctx, assignments); err != nil {
		return TransitionResult{}, fmt.Errorf("create review assignments: %w", err)
	}

	s.emitter.Publish(ctx, events.ChallengeUpdated, map[string]interface{}{
		"challenge_id":       challengeID,
		"review_assignments": len(assignments),
	})

	return s.record("assign_peer_reviews", TransitionResult{Outcome: OutcomeOK, Status: challenge.Status}), nil
}

// StartPeerReview opens the peer review phase once finalization has completed
// and review assignments exist, and arms the end-of-phase timer.
func (s *LifecycleService) StartPeerReview(ctx context.Context, challengeID uint) (TransitionResult, error) {
	challenge, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return s.record("start_peer_review", TransitionResult{Outcome: OutcomeChallengeNotFound}), nil
	}

	switch challenge.Status {
	case models.ChallengeStatusEndedCoding:
	case models.ChallengeStatusStartedPeerReview:
		return s.record("start_peer_review", TransitionResult{Outcome: OutcomeAlreadyStarted, Status: challenge.Status}), nil
	default:
		return s.record("start_peer_review", TransitionResult{Outcome: OutcomeInvalidStatus, Status: challenge.Status, Detail: "coding phase must have ended"}), nil
	}

	if challenge.FinalizationCompletedAt == nil {
		return s.record("start_peer_review", TransitionResult{Outcome: OutcomeFinalizationPending, Status: challenge.Status}), nil
	}

	assignmentCount, err := s.peerReviews.CountByChallenge(ctx, challengeID)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("count review assignments: %w", err)
	}
	if assignmentCount == 0 {
		return s.record("start_peer_review", TransitionResult{Outcome: OutcomeNoAssignments, Status: challenge.Status}), nil
	}

	startedAt := s.now()
	moved, err := s.challenges.TransitionStatus(ctx, challengeID,
		models.ChallengeStatusEndedCoding, models.ChallengeStatusStartedPeerReview,
		map[string]interface{}{"start_peer_review_at": startedAt})
	if err != nil {
		return TransitionResult{}, fmt.Errorf("transition to started peer review: %w", err)
	}
	if !moved {
		return s.record("start_peer_review", TransitionResult{Outcome: OutcomeAlreadyStarted, Status: models.ChallengeStatusStartedPeerReview}), nil
	}

	deadline := startedAt.Add(time.Duration(challenge.PeerReviewMinutes) * time.Minute)
	s.scheduleEndPeerReview(challengeID, deadline)

	s.emitter.Publish(ctx, events.ChallengeUpdated, map[string]interface{}{
		"challenge_id": challengeID,
		"status":       models.ChallengeStatusStartedPeerReview,
	})

	return s.record("start_peer_review", TransitionResult{Outcome: OutcomeOK, Status: models.ChallengeStatusStartedPeerReview}), nil
}

// EndPeerReview closes the peer review phase and kicks off score computation
// in the background. Like EndCoding, racing callers are settled by the
// conditional update.
func (s *LifecycleService) EndPeerReview(ctx context.Context, challengeID uint) (TransitionResult, error) {
	endedAt := s.now()
	moved, err := s.challenges.TransitionStatus(ctx, challengeID,
		models.ChallengeStatusStartedPeerReview, models.ChallengeStatusEndedPeerReview,
		map[string]interface{}{"end_peer_review_at": endedAt})
	if err != nil {
		return TransitionResult{}, fmt.Errorf("transition to ended peer review: %w", err)
	}

	if !moved {
		challenge, err := s.loadChallenge(ctx, challengeID)
		if err != nil {
			return s.record("end_peer_review", TransitionResult{Outcome: OutcomeChallengeNotFound}), nil
		}
		if challenge.Status == models.ChallengeStatusEndedPeerReview {
			return s.record("end_peer_review", TransitionResult{Outcome: OutcomeAlreadyEnded, Status: challenge.Status}), nil
		}
		return s.record("end_peer_review", TransitionResult{Outcome: OutcomeInvalidStatus, Status: challenge.Status, Detail: "peer review phase is not running"}), nil
	}

	s.timers.Cancel(challengeID, phaseEndPeerReview)

	s.emitter.Publish(ctx, events.ChallengeUpdated, map[string]interface{}{
		"challenge_id": challengeID,
		"status":       models.ChallengeStatusEndedPeerReview,
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.scoring.ComputeScores(ctx, challengeID); err != nil {
			s.logger.Error().Err(err).Uint("challenge_id", challengeID).Msg("score computation failed")
		}
	}()

	return s.record("end_peer_review", TransitionResult{Outcome: OutcomeOK, Status: models.ChallengeStatusEndedPeerReview}), nil
}

// RestoreTimers re-arms phase-end timers after a restart. Deadlines already in
// the past fire immediately; the idempotent transitions make that safe.
func (s *LifecycleService) RestoreTimers(ctx context.Context) error {
	running, err := s.challenges.ListByStatus(ctx,
		models.ChallengeStatusStartedCoding,
		models.ChallengeStatusEndedCoding,
		models.ChallengeStatusStartedPeerReview)
	if err != nil {
		return fmt.Errorf("list running challenges: %w", err)
	}

	for _, challenge := range running {
		switch challenge.Status {
		case models.ChallengeStatusStartedCoding:
			s.scheduleEndCoding(challenge.ID, challenge.CodingDeadline())
		case models.ChallengeStatusEndedCoding:
			if challenge.FinalizationCompletedAt == nil && challenge.EndCodingPhaseAt != nil {
				challengeID := challenge.ID
				s.timers.Schedule(challengeID, phaseFinalize, challenge.EndCodingPhaseAt.Add(s.finalizer.Grace()), func() {
					s.finalize(challengeID)
				})
			}
		case models.ChallengeStatusStartedPeerReview:
			s.scheduleEndPeerReview(challenge.ID, challenge.PeerReviewDeadline())
		}
		s.logger.Info().Uint("challenge_id", challenge.ID).Str("status", challenge.Status).Msg("phase timer restored")
	}

	return nil
}

func (s *LifecycleService) scheduleEndCoding(challengeID uint, at time.Time) {
	s.timers.Schedule(challengeID, phaseEndCoding, at, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.EndCoding(ctx, challengeID); err != nil {
			s.logger.Error().Err(err).Uint("challenge_id", challengeID).Msg("timer-driven end coding failed")
		}
	})
}

func (s *LifecycleService) scheduleEndPeerReview(challengeID uint, at time.Time) {
	s.timers.Schedule(challengeID, phaseEndPeerReview, at, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.EndPeerReview(ctx, challengeID); err != nil {
			s.logger.Error().Err(err).Uint("challenge_id", challengeID).Msg("timer-driven end peer review failed")
		}
	})
}

func (s *LifecycleService) finalize(challengeID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := s.finalizer.RunBackfill(ctx, challengeID); err != nil {
		s.logger.Error().Err(err).Uint("challenge_id", challengeID).Msg("finalization backfill failed")
	}
	if _, err := s.finalizer.MaybeCompleteFinalization(ctx, challengeID); err != nil {
		s.logger.Error().Err(err).Uint("challenge_id", challengeID).Msg("finalization completion check failed")
	}
}

func (s *LifecycleService) loadChallenge(ctx context.Context, challengeID uint) (models.Challenge, error) {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error().Err(err).Uint("challenge_id", challengeID).Msg("failed to load challenge")
		}
		return models.Challenge{}, err
	}
	return challenge, nil
}

func (s *LifecycleService) record(transition string, result TransitionResult) TransitionResult {
	observability.PhaseTransitions().WithLabelValues(transition, result.Outcome).Inc()
	s.logger.Info().
		Str("transition", transition).
		Str("outcome", result.Outcome).
		Str("status", result.Status).
		Msg("lifecycle transition")
	return result
}

// reviewGroups collects, per problem, the reviewable final submissions tagged
// with their authors. Groups of one cannot be cross-reviewed and are dropped.
func reviewGroups(matches []models.Match) [][]reviewCandidate {
	byProblem := make(map[uint][]reviewCandidate)
	for _, match := range matches {
		for _, submission := range match.Submissions {
			if !submission.IsReviewable() {
				continue
			}
			byProblem[match.ChallengeMatchSettingID] = append(byProblem[match.ChallengeMatchSettingID], reviewCandidate{
				SubmissionID: submission.ID,
				AuthorID:     match.ChallengeParticipantID,
			})
			break
		}
	}

	groups := make([][]reviewCandidate, 0, len(byProblem))
	for _, group := range byProblem {
		if len(group) < 2 {
			continue
		}
		groups = append(groups, group)
	}
	return groups
}

func codingEnded(status string) bool {
	switch status {
	case models.ChallengeStatusEndedCoding,
		models.ChallengeStatusStartedPeerReview,
		models.ChallengeStatusEndedPeerReview:
		return true
	}
	return false
}
