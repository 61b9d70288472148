package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-api/internal/models"
)

func TestAssignCreatesOneMatchPerParticipant(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusPublic)
	env.attachSetting(t, challenge.ID)
	env.attachSetting(t, challenge.ID)
	env.addParticipants(t, challenge.ID, 5)

	result, err := env.lifecycle.Assign(context.Background(), challenge.ID, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.Equal(t, models.ChallengeStatusAssigned, result.Status)

	matches, err := env.matches.ListByChallenge(context.Background(), challenge.ID)
	require.NoError(t, err)
	require.Len(t, matches, 5)

	counts := make(map[uint]int)
	for _, match := range matches {
		counts[match.ChallengeMatchSettingID]++
	}
	for _, count := range counts {
		assert.InDelta(t, 2.5, float64(count), 0.5)
	}
}

func TestAssignRequiresSettingsAndParticipants(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusPublic)

	result, err := env.lifecycle.Assign(context.Background(), challenge.ID, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatchSettings, result.Outcome)

	env.attachSetting(t, challenge.ID)
	result, err = env.lifecycle.Assign(context.Background(), challenge.ID, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoParticipants, result.Outcome)
}

func TestAssignRefusesSecondRunWithoutOverwrite(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusPublic)
	env.attachSetting(t, challenge.ID)
	env.addParticipants(t, challenge.ID, 3)

	result, err := env.lifecycle.Assign(context.Background(), challenge.ID, false)
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, result.Outcome)

	result, err = env.lifecycle.Assign(context.Background(), challenge.ID, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyAssigned, result.Outcome)

	result, err = env.lifecycle.Assign(context.Background(), challenge.ID, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
}

func TestAssignBeforeStartWindowIsTooEarly(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusPublic)
	env.attachSetting(t, challenge.ID)
	env.addParticipants(t, challenge.ID, 2)
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("start_datetime", time.Now().Add(time.Hour)).Error)

	result, err := env.lifecycle.Assign(context.Background(), challenge.ID, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTooEarly, result.Outcome)

	count, err := env.matches.CountByChallenge(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAssignOverwriteIgnoresStartWindow(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusPublic)
	env.attachSetting(t, challenge.ID)
	env.addParticipants(t, challenge.ID, 2)

	result, err := env.lifecycle.Assign(context.Background(), challenge.ID, false)
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, result.Outcome)

	// Moving the window forward must not block re-pairing an assigned challenge.
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("start_datetime", time.Now().Add(time.Hour)).Error)

	result, err = env.lifecycle.Assign(context.Background(), challenge.ID, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
}

func TestStartCodingTooEarly(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusAssigned)
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("start_datetime", time.Now().Add(time.Hour)).Error)

	link := env.attachSetting(t, challenge.ID)
	participants := env.addParticipants(t, challenge.ID, 1)
	env.addMatch(t, challenge.ID, participants[0].ID, link.ID)

	result, err := env.lifecycle.StartCoding(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTooEarly, result.Outcome)
}

func TestStartCodingStampsPhaseStart(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusAssigned)
	link := env.attachSetting(t, challenge.ID)
	participants := env.addParticipants(t, challenge.ID, 2)
	for _, participant := range participants {
		env.addMatch(t, challenge.ID, participant.ID, link.ID)
	}

	result, err := env.lifecycle.StartCoding(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)

	stored, err := env.challenges.GetByID(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusStartedCoding, stored.Status)
	require.NotNil(t, stored.StartCodingPhaseAt)

	result, err = env.lifecycle.StartCoding(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyStarted, result.Outcome)
}

func TestEndCodingConcurrentCallersProduceOneTransition(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusStartedCoding)
	now := time.Now().UTC()
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("start_coding_phase_at", now).Error)

	const callers = 4
	outcomes := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := env.lifecycle.EndCoding(context.Background(), challenge.ID)
			require.NoError(t, err)
			outcomes[i] = result.Outcome
		}(i)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, outcome := range outcomes {
		switch outcome {
		case OutcomeOK:
			winners++
		case OutcomeAlreadyEnded:
			losers++
		default:
			t.Fatalf("unexpected outcome %q", outcome)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, callers-1, losers)

	stored, err := env.challenges.GetByID(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusEndedCoding, stored.Status)
	require.NotNil(t, stored.EndCodingPhaseAt)
}

func TestAssignPeerReviewsRequiresFinalization(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusEndedCoding)

	result, err := env.lifecycle.AssignPeerReviews(context.Background(), challenge.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinalizationPending, result.Outcome)
}

func TestAssignPeerReviewsRejectsLowTarget(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusEndedCoding)
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("finalization_completed_at", time.Now().UTC()).Error)

	result, err := env.lifecycle.AssignPeerReviews(context.Background(), challenge.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidExpectedReviews, result.Outcome)
}

func TestAssignPeerReviewsExcludesWrongSubmissions(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusEndedCoding)
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("finalization_completed_at", time.Now().UTC()).Error)

	link := env.attachSetting(t, challenge.ID)
	participants := env.addParticipants(t, challenge.ID, 3)
	matches := make([]models.Match, 0, 3)
	for _, participant := range participants {
		matches = append(matches, env.addMatch(t, challenge.ID, participant.ID, link.ID))
	}

	env.addFinalSubmission(t, matches[0].ID, models.SubmissionStatusProbablyCorrect)
	env.addFinalSubmission(t, matches[1].ID, models.SubmissionStatusImprovable)
	env.addFinalSubmission(t, matches[2].ID, models.SubmissionStatusWrong)

	result, err := env.lifecycle.AssignPeerReviews(context.Background(), challenge.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)

	assignments, err := env.peerReviews.ListByChallenge(context.Background(), challenge.ID)
	require.NoError(t, err)
	// Two valid submissions cross-review each other; the target clamps to one
	// reviewer each and the wrong submission stays out of the pool.
	require.Len(t, assignments, 2)
	for _, assignment := range assignments {
		assert.NotEqual(t, matches[2].ChallengeParticipantID, assignment.ReviewerID)
	}
}

func TestAssignPeerReviewsInsufficientGroup(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusEndedCoding)
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("finalization_completed_at", time.Now().UTC()).Error)

	link := env.attachSetting(t, challenge.ID)
	participants := env.addParticipants(t, challenge.ID, 1)
	match := env.addMatch(t, challenge.ID, participants[0].ID, link.ID)
	env.addFinalSubmission(t, match.ID, models.SubmissionStatusProbablyCorrect)

	result, err := env.lifecycle.AssignPeerReviews(context.Background(), challenge.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientValidSubmissions, result.Outcome)
}

func TestStartPeerReviewRequiresAssignments(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusEndedCoding)
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("finalization_completed_at", time.Now().UTC()).Error)

	result, err := env.lifecycle.StartPeerReview(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoAssignments, result.Outcome)
}

func TestEndPeerReviewBenignForLoser(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusStartedPeerReview)
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("start_peer_review_at", time.Now().UTC()).Error)

	first, err := env.lifecycle.EndPeerReview(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, first.Outcome)

	second, err := env.lifecycle.EndPeerReview(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyEnded, second.Outcome)
	assert.True(t, second.OK())
}

func TestTransitionsOnMissingChallenge(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.lifecycle.StartCoding(context.Background(), 9999)
	require.NoError(t, err)
	assert.Equal(t, OutcomeChallengeNotFound, result.Outcome)
}
