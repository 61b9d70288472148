package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-api/internal/dto"
	"github.com/noah-isme/arena-api/internal/models"
	"github.com/noah-isme/arena-api/pkg/judge"
)

func codingChallenge(t *testing.T, env *testEnv) (models.Challenge, models.ChallengeParticipant, models.Match) {
	t.Helper()

	challenge := env.createChallenge(t, models.ChallengeStatusStartedCoding)
	now := time.Now().UTC()
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("start_coding_phase_at", now.Add(-time.Minute)).Error)

	link := env.attachSetting(t, challenge.ID)
	participants := env.addParticipants(t, challenge.ID, 1)
	match := env.addMatch(t, challenge.ID, participants[0].ID, link.ID)
	return challenge, participants[0], match
}

func TestSubmitClassifiesBySuiteResults(t *testing.T) {
	env := newTestEnv(t)
	challenge, participant, match := codingChallenge(t, env)

	// The canned report fails a test on both suites, so the public run fails
	// and the submission is wrong.
	env.judge.reports["partial"] = judge.RunReport{
		IsCompiled: true,
		IsPassed:   false,
		Results: []judge.TestResult{
			{Input: "2", ExpectedOutput: "2", ActualOutput: "2", Passed: true},
			{Input: "3", ExpectedOutput: "3", ActualOutput: "0", Passed: false},
		},
	}

	resp, err := env.submitter.Submit(context.Background(), challenge.ID, participant.StudentID, dto.SubmitRequest{Code: "partial"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusWrong, resp.Status)

	resp, err = env.submitter.Submit(context.Background(), challenge.ID, participant.StudentID, dto.SubmitRequest{Code: "print(input())"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusProbablyCorrect, resp.Status)
	assert.Equal(t, match.ID, resp.MatchID)
	assert.Equal(t, 2, resp.PrivatePassedCount)
	assert.Equal(t, 2, resp.PrivateTotalCount)
}

func TestSubmitFinalDemotesPreviousFinal(t *testing.T) {
	env := newTestEnv(t)
	challenge, participant, match := codingChallenge(t, env)

	first, err := env.submitter.Submit(context.Background(), challenge.ID, participant.StudentID, dto.SubmitRequest{Code: "v1", IsFinal: true})
	require.NoError(t, err)
	require.True(t, first.IsFinal)

	second, err := env.submitter.Submit(context.Background(), challenge.ID, participant.StudentID, dto.SubmitRequest{Code: "v2", IsFinal: true})
	require.NoError(t, err)
	require.True(t, second.IsFinal)

	final, err := env.submissions.GetFinalByMatch(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, final.ID)

	var finalCount int64
	require.NoError(t, env.db.Model(&models.Submission{}).
		Where("match_id = ? AND is_final = ?", match.ID, true).
		Count(&finalCount).Error)
	assert.Equal(t, int64(1), finalCount)
}

func TestSubmitRejectedOutsidePhase(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, models.ChallengeStatusAssigned)
	link := env.attachSetting(t, challenge.ID)
	participants := env.addParticipants(t, challenge.ID, 1)
	env.addMatch(t, challenge.ID, participants[0].ID, link.ID)

	_, err := env.submitter.Submit(context.Background(), challenge.ID, participants[0].StudentID, dto.SubmitRequest{Code: "x"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSubmitAcceptedDuringGraceWindow(t *testing.T) {
	env := newTestEnv(t)
	challenge, participant, _ := codingChallenge(t, env)

	now := time.Now().UTC()
	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Updates(map[string]interface{}{
			"status":              models.ChallengeStatusEndedCoding,
			"end_coding_phase_at": now,
		}).Error)

	resp, err := env.submitter.Submit(context.Background(), challenge.ID, participant.StudentID, dto.SubmitRequest{Code: "late", IsFinal: true})
	require.NoError(t, err)
	assert.True(t, resp.IsFinal)
}

func TestSubmitRejectedAfterGraceWindow(t *testing.T) {
	env := newTestEnv(t)
	challenge, participant, _ := codingChallenge(t, env)

	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Updates(map[string]interface{}{
			"status":              models.ChallengeStatusEndedCoding,
			"end_coding_phase_at": time.Now().UTC().Add(-time.Hour),
		}).Error)

	_, err := env.submitter.Submit(context.Background(), challenge.ID, participant.StudentID, dto.SubmitRequest{Code: "too-late"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSubmitRequiresParticipation(t *testing.T) {
	env := newTestEnv(t)
	challenge, _, _ := codingChallenge(t, env)

	_, err := env.submitter.Submit(context.Background(), challenge.ID, 55555, dto.SubmitRequest{Code: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRunCustomInputOnlyWhileCoding(t *testing.T) {
	env := newTestEnv(t)
	challenge, participant, _ := codingChallenge(t, env)

	result, err := env.submitter.RunCustomInput(context.Background(), challenge.ID, participant.StudentID, dto.RunInputRequest{Code: "print(1)", Input: "1"})
	require.NoError(t, err)
	assert.Equal(t, "42\n", result.Output)

	require.NoError(t, env.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("status", models.ChallengeStatusEndedCoding).Error)

	_, err = env.submitter.RunCustomInput(context.Background(), challenge.ID, participant.StudentID, dto.RunInputRequest{Code: "print(1)", Input: "1"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMyMatchHidesPrivateMaterial(t *testing.T) {
	env := newTestEnv(t)
	challenge, participant, match := codingChallenge(t, env)

	resp, err := env.submitter.MyMatch(context.Background(), challenge.ID, participant.StudentID)
	require.NoError(t, err)
	assert.Equal(t, match.ID, resp.ID)
	assert.Len(t, resp.MatchSetting.PublicTests, 1)
}
