package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-api/internal/dto"
	"github.com/noah-isme/arena-api/internal/models"
)

func reviewPhaseChallenge(t *testing.T, env *testEnv) (models.Challenge, []models.ChallengeParticipant, models.PeerReviewAssignment) {
	t.Helper()

	challenge := env.createChallenge(t, models.ChallengeStatusStartedPeerReview)
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("start_peer_review_at", time.Now().UTC()).Error)

	link := env.attachSetting(t, challenge.ID)
	participants := env.addParticipants(t, challenge.ID, 2)
	matchB := env.addMatch(t, challenge.ID, participants[1].ID, link.ID)
	submission := env.addFinalSubmission(t, matchB.ID, models.SubmissionStatusImprovable)

	assignment := models.PeerReviewAssignment{
		ChallengeID:  challenge.ID,
		ReviewerID:   participants[0].ID,
		SubmissionID: submission.ID,
	}
	require.NoError(t, env.db.Create(&assignment).Error)

	return challenge, participants, assignment
}

func TestCastVoteRequiresCounterExampleForIncorrect(t *testing.T) {
	env := newTestEnv(t)
	_, participants, assignment := reviewPhaseChallenge(t, env)

	_, err := env.reviewer.CastVote(context.Background(), assignment.ID, participants[0].StudentID, dto.VoteRequest{
		Verdict: models.VoteVerdictIncorrect,
	})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCastVoteStoresAndResetsOnRevote(t *testing.T) {
	env := newTestEnv(t)
	_, participants, assignment := reviewPhaseChallenge(t, env)

	vote, err := env.reviewer.CastVote(context.Background(), assignment.ID, participants[0].StudentID, dto.VoteRequest{
		Verdict: models.VoteVerdictCorrect,
	})
	require.NoError(t, err)
	assert.Equal(t, models.VoteEvaluationPending, vote.EvaluationStatus)

	revote, err := env.reviewer.CastVote(context.Background(), assignment.ID, participants[0].StudentID, dto.VoteRequest{
		Verdict:       models.VoteVerdictIncorrect,
		TestCaseInput: "9",
	})
	require.NoError(t, err)
	assert.Equal(t, vote.ID, revote.ID)
	assert.Equal(t, models.VoteVerdictIncorrect, revote.Verdict)

	var count int64
	require.NoError(t, env.db.Model(&models.PeerReviewVote{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCastVoteRejectsForeignAssignment(t *testing.T) {
	env := newTestEnv(t)
	_, participants, assignment := reviewPhaseChallenge(t, env)

	_, err := env.reviewer.CastVote(context.Background(), assignment.ID, participants[1].StudentID, dto.VoteRequest{
		Verdict: models.VoteVerdictCorrect,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCastVoteClosedPhase(t *testing.T) {
	env := newTestEnv(t)
	challenge, participants, assignment := reviewPhaseChallenge(t, env)

	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("status", models.ChallengeStatusEndedPeerReview).Error)

	_, err := env.reviewer.CastVote(context.Background(), assignment.ID, participants[0].StudentID, dto.VoteRequest{
		Verdict: models.VoteVerdictCorrect,
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestListMyAssignmentsHidesOtherReviewers(t *testing.T) {
	env := newTestEnv(t)
	challenge, participants, _ := reviewPhaseChallenge(t, env)

	mine, err := env.reviewer.ListMyAssignments(context.Background(), challenge.ID, participants[0].StudentID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.False(t, mine[0].Voted)

	theirs, err := env.reviewer.ListMyAssignments(context.Background(), challenge.ID, participants[1].StudentID)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestSubmitFeedbackTests(t *testing.T) {
	env := newTestEnv(t)
	_, participants, assignment := reviewPhaseChallenge(t, env)

	err := env.reviewer.SubmitFeedbackTests(context.Background(), assignment.ID, participants[0].StudentID, []models.TestCase{
		{Input: "5", ExpectedOutput: "5"},
	})
	require.NoError(t, err)

	stored, err := env.peerReviews.GetAssignment(context.Background(), assignment.ID)
	require.NoError(t, err)
	tests, err := models.DecodeTestCases(stored.FeedbackTests)
	require.NoError(t, err)
	require.Len(t, tests, 1)
	assert.Equal(t, "5", tests[0].Input)
}
