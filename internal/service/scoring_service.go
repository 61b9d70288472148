package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-api/internal/dto"
	"github.com/noah-isme/arena-api/internal/events"
	"github.com/noah-isme/arena-api/internal/models"
	"github.com/noah-isme/arena-api/internal/observability"
	"github.com/noah-isme/arena-api/internal/repository"
	"github.com/noah-isme/arena-api/pkg/judge"
)

// Score weights. Implementation quality dominates; review quality rewards
// catching real bugs in peers' code.
const (
	implementationWeight = 0.7
	codeReviewWeight     = 0.3
)

// ScoringService reconciles a finished challenge into per-submission scores.
// Computation is idempotent: re-running overwrites previous breakdowns.
type ScoringService struct {
	challenges  repository.ChallengeRepository
	matches     repository.MatchRepository
	peerReviews repository.PeerReviewRepository
	scores      repository.ScoreRepository
	judge       judge.Service
	emitter     events.Emitter
	logger      zerolog.Logger
}

// NewScoringService constructs a scoring service.
func NewScoringService(
	challenges repository.ChallengeRepository,
	matches repository.MatchRepository,
	peerReviews repository.PeerReviewRepository,
	scores repository.ScoreRepository,
	judgeService judge.Service,
	emitter events.Emitter,
	logger zerolog.Logger,
) *ScoringService {
	return &ScoringService{
		challenges:  challenges,
		matches:     matches,
		peerReviews: peerReviews,
		scores:      scores,
		judge:       judgeService,
		emitter:     emitter,
		logger:      logger.With().Str("component", "scoring").Logger(),
	}
}

// ComputeScores evaluates every vote's counter-example, derives implementation
// and review scores per participant, and upserts the breakdowns. The scoring
// status acts as the lock: only one caller wins the move to computing, and a
// completed challenge can be re-scored by moving completed back to computing.
func (s *ScoringService) ComputeScores(ctx context.Context, challengeID uint) error {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load challenge: %w", err)
	}

	if challenge.Status != models.ChallengeStatusEndedPeerReview {
		return fmt.Errorf("%w: peer review phase must have ended", ErrConflict)
	}

	locked, err := s.challenges.TransitionScoringStatus(ctx, challengeID, models.ScoringStatusPending, models.ScoringStatusComputing)
	if err != nil {
		return fmt.Errorf("acquire scoring lock: %w", err)
	}
	if !locked {
		locked, err = s.challenges.TransitionScoringStatus(ctx, challengeID, models.ScoringStatusCompleted, models.ScoringStatusComputing)
		if err != nil {
			return fmt.Errorf("acquire scoring lock: %w", err)
		}
	}
	if !locked {
		observability.ScoringRuns().WithLabelValues("already_computing").Inc()
		return fmt.Errorf("%w: scoring already in progress", ErrConflict)
	}

	if err := s.computeAll(ctx, challengeID); err != nil {
		observability.ScoringRuns().WithLabelValues("failed").Inc()
		// Release the lock so a retry can run.
		if _, unlockErr := s.challenges.TransitionScoringStatus(ctx, challengeID, models.ScoringStatusComputing, models.ScoringStatusPending); unlockErr != nil {
			s.logger.Error().Err(unlockErr).Uint("challenge_id", challengeID).Msg("failed to release scoring lock")
		}
		return err
	}

	if _, err := s.challenges.TransitionScoringStatus(ctx, challengeID, models.ScoringStatusComputing, models.ScoringStatusCompleted); err != nil {
		return fmt.Errorf("mark scoring completed: %w", err)
	}

	observability.ScoringRuns().WithLabelValues("completed").Inc()
	s.emitter.Publish(ctx, events.ChallengeUpdated, map[string]interface{}{
		"challenge_id":   challengeID,
		"scoring_status": models.ScoringStatusCompleted,
	})
	s.logger.Info().Uint("challenge_id", challengeID).Msg("scoring completed")

	return nil
}

func (s *ScoringService) computeAll(ctx context.Context, challengeID uint) error {
	matches, err := s.matches.ListByChallenge(ctx, challengeID)
	if err != nil {
		return fmt.Errorf("list matches: %w", err)
	}

	assignments, err := s.peerReviews.ListByChallenge(ctx, challengeID)
	if err != nil {
		return fmt.Errorf("list review assignments: %w", err)
	}

	// submissionStatus lets vote correctness be judged without re-running
	// private tests; settingBySubmission locates the reference solution for
	// counter-example evaluation.
	submissionStatus := make(map[uint]string)
	settingBySubmission := make(map[uint]models.MatchSetting)
	finalByParticipant := make(map[uint]models.Submission)
	for _, match := range matches {
		for _, submission := range match.Submissions {
			if !submission.IsFinal {
				continue
			}
			submissionStatus[submission.ID] = submission.Status
			settingBySubmission[submission.ID] = match.Setting.MatchSetting
			finalByParticipant[match.ChallengeParticipantID] = submission
		}
	}

	votesByReviewer := make(map[uint][]evaluatedVote)
	for _, assignment := range assignments {
		if assignment.Vote == nil {
			continue
		}
		evaluated, err := s.evaluateVote(ctx, assignment, submissionStatus, settingBySubmission)
		if err != nil {
			s.logger.Warn().Err(err).
				Uint("assignment_id", assignment.ID).
				Msg("vote evaluation failed")
			continue
		}
		if evaluated.counted {
			votesByReviewer[assignment.ReviewerID] = append(votesByReviewer[assignment.ReviewerID], evaluated)
		}
	}

	for participantID, submission := range finalByParticipant {
		implementation := implementationScore(submission)
		review := codeReviewScore(votesByReviewer[participantID])
		total := implementationWeight*implementation + codeReviewWeight*review

		breakdown := models.SubmissionScoreBreakdown{
			SubmissionID:        submission.ID,
			ChallengeID:         challengeID,
			ImplementationScore: implementation,
			CodeReviewScore:     review,
			TotalScore:          total,
		}
		if err := s.scores.Upsert(ctx, &breakdown); err != nil {
			return fmt.Errorf("upsert score for submission %d: %w", submission.ID, err)
		}
	}

	return nil
}

type evaluatedVote struct {
	counted bool
	correct bool
}

// evaluateVote settles one vote. A correct verdict is right when the
// submission passed all private tests. An incorrect verdict is right only
// when its counter-example proves a bug: the reference solution produces the
// expected output and the submission does not. Abstentions never count.
func (s *ScoringService) evaluateVote(
	ctx context.Context,
	assignment models.PeerReviewAssignment,
	submissionStatus map[uint]string,
	settingBySubmission map[uint]models.MatchSetting,
) (evaluatedVote, error) {
	vote := assignment.Vote

	switch vote.Verdict {
	case models.VoteVerdictAbstain:
		s.storeEvaluation(ctx, vote, nil, nil, models.VoteEvaluationCompleted)
		return evaluatedVote{}, nil

	case models.VoteVerdictCorrect:
		correct := submissionStatus[assignment.SubmissionID] == models.SubmissionStatusProbablyCorrect
		s.storeEvaluation(ctx, vote, nil, &correct, models.VoteEvaluationCompleted)
		return evaluatedVote{counted: true, correct: correct}, nil

	case models.VoteVerdictIncorrect:
		if !vote.HasCounterExample() {
			incorrect := false
			s.storeEvaluation(ctx, vote, nil, &incorrect, models.VoteEvaluationCompleted)
			return evaluatedVote{counted: true, correct: false}, nil
		}

		setting, ok := settingBySubmission[assignment.SubmissionID]
		if !ok {
			s.storeEvaluation(ctx, vote, nil, nil, models.VoteEvaluationFailed)
			return evaluatedVote{}, fmt.Errorf("no problem found for submission %d", assignment.SubmissionID)
		}

		proven, err := s.proveBug(ctx, assignment, setting)
		if err != nil {
			s.storeEvaluation(ctx, vote, nil, nil, models.VoteEvaluationFailed)
			return evaluatedVote{}, err
		}

		s.storeEvaluation(ctx, vote, &proven, &proven, models.VoteEvaluationCompleted)
		return evaluatedVote{counted: true, correct: proven}, nil
	}

	return evaluatedVote{}, fmt.Errorf("unknown verdict %q", vote.Verdict)
}

// proveBug runs the counter-example against the reference solution first and
// the reviewed submission second. The bug is proven when the reference
// confirms the expected output and the submission diverges from it.
func (s *ScoringService) proveBug(ctx context.Context, assignment models.PeerReviewAssignment, setting models.MatchSetting) (bool, error) {
	vote := assignment.Vote

	reference, err := s.judge.RunInput(ctx, setting.ReferenceSolution, setting.Language, vote.TestCaseInput)
	if err != nil {
		return false, fmt.Errorf("run reference solution: %w", err)
	}
	if reference.TimedOut {
		return false, fmt.Errorf("reference solution timed out on counter-example")
	}

	expected := vote.ExpectedOutput
	if expected == "" {
		expected = reference.ActualOutput
	} else if !outputsEqual(reference.ActualOutput, expected) {
		// Reviewer's expected output disagrees with the reference: the
		// counter-example itself is wrong, so no bug is proven.
		return false, nil
	}

	report, err := s.judge.Execute(ctx, judge.ExecuteRequest{
		Code:     assignment.Submission.Code,
		Language: setting.Language,
		Tests:    []judge.TestCase{{Input: vote.TestCaseInput, ExpectedOutput: expected}},
	})
	if err != nil {
		return false, fmt.Errorf("run submission against counter-example: %w", err)
	}

	return !report.IsPassed, nil
}

func (s *ScoringService) storeEvaluation(ctx context.Context, vote *models.PeerReviewVote, bugProven, voteCorrect *bool, status string) {
	vote.IsBugProven = bugProven
	vote.IsVoteCorrect = voteCorrect
	vote.EvaluationStatus = status
	if err := s.peerReviews.UpdateVote(ctx, vote); err != nil {
		s.logger.Error().Err(err).Uint("vote_id", vote.ID).Msg("failed to store vote evaluation")
	}
}

// Results returns the score breakdowns of a challenge ordered by total score.
func (s *ScoringService) Results(ctx context.Context, challengeID uint) (dto.ResultsResponse, error) {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResultsResponse{}, ErrNotFound
		}
		return dto.ResultsResponse{}, fmt.Errorf("load challenge: %w", err)
	}

	breakdowns, err := s.scores.ListByChallenge(ctx, challengeID)
	if err != nil {
		return dto.ResultsResponse{}, fmt.Errorf("list scores: %w", err)
	}

	matches, err := s.matches.ListByChallenge(ctx, challengeID)
	if err != nil {
		return dto.ResultsResponse{}, fmt.Errorf("list matches: %w", err)
	}

	participantBySubmission := make(map[uint]models.ChallengeParticipant)
	for _, match := range matches {
		for _, submission := range match.Submissions {
			if submission.IsFinal {
				participantBySubmission[submission.ID] = match.Participant
			}
		}
	}

	entries := make([]dto.ScoreEntry, 0, len(breakdowns))
	for _, breakdown := range breakdowns {
		participant := participantBySubmission[breakdown.SubmissionID]
		entries = append(entries, dto.ScoreEntry{
			SubmissionID:        breakdown.SubmissionID,
			ParticipantID:       participant.ID,
			StudentID:           participant.StudentID,
			ImplementationScore: breakdown.ImplementationScore,
			CodeReviewScore:     breakdown.CodeReviewScore,
			TotalScore:          breakdown.TotalScore,
		})
	}

	return dto.ResultsResponse{
		ChallengeID:   challengeID,
		ScoringStatus: challenge.ScoringStatus,
		Entries:       entries,
	}, nil
}

// implementationScore is the private-test pass rate scaled to 100. A
// submission with no private results scores zero.
func implementationScore(submission models.Submission) float64 {
	results, err := judge.DecodeResults(submission.PrivateTestResults)
	if err != nil || len(results) == 0 {
		return 0
	}

	passed := 0
	for _, result := range results {
		if result.Passed {
			passed++
		}
	}

	return float64(passed) / float64(len(results)) * 100
}

// codeReviewScore is the correct-vote rate scaled to 100. Participants who
// cast no countable votes score zero.
func codeReviewScore(votes []evaluatedVote) float64 {
	if len(votes) == 0 {
		return 0
	}

	correct := 0
	for _, vote := range votes {
		if vote.correct {
			correct++
		}
	}

	return float64(correct) / float64(len(votes)) * 100
}

func outputsEqual(a, b string) bool {
	return trimTrailing(a) == trimTrailing(b)
}

func trimTrailing(s string) string {
	for len(s) > 0 {
		last := s[len(s)-1]
		if last != '\n' && last != '\r' && last != ' ' && last != '\t' {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}
