package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-api/internal/models"
)

func TestCreateFinalDemotesEarlierFinal(t *testing.T) {
	db := testDB(t)
	repo := NewSubmissionRepository(db)

	match := models.Match{ChallengeID: 1, ChallengeParticipantID: 1, ChallengeMatchSettingID: 1}
	require.NoError(t, db.Create(&match).Error)

	first := models.Submission{MatchID: match.ID, Code: "v1", Status: models.SubmissionStatusImprovable}
	require.NoError(t, repo.CreateFinal(context.Background(), &first))

	second := models.Submission{MatchID: match.ID, Code: "v2", Status: models.SubmissionStatusProbablyCorrect}
	require.NoError(t, repo.CreateFinal(context.Background(), &second))

	final, err := repo.GetFinalByMatch(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, final.ID)

	var finals int64
	require.NoError(t, db.Model(&models.Submission{}).Where("is_final = ?", true).Count(&finals).Error)
	assert.Equal(t, int64(1), finals)
}

func TestCreateFinalIfMissingPrefersManualFinal(t *testing.T) {
	db := testDB(t)
	repo := NewSubmissionRepository(db)

	match := models.Match{ChallengeID: 1, ChallengeParticipantID: 1, ChallengeMatchSettingID: 1}
	require.NoError(t, db.Create(&match).Error)

	manual := models.Submission{MatchID: match.ID, Code: "manual", Status: models.SubmissionStatusProbablyCorrect}
	require.NoError(t, repo.CreateFinal(context.Background(), &manual))

	backfill := models.Submission{MatchID: match.ID, Code: "auto", Status: models.SubmissionStatusWrong, IsAutomaticSubmission: true}
	created, err := repo.CreateFinalIfMissing(context.Background(), &backfill)
	require.NoError(t, err)
	assert.False(t, created)

	final, err := repo.GetFinalByMatch(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, manual.ID, final.ID)
}

func TestCreateFinalIfMissingFillsEmptyMatch(t *testing.T) {
	db := testDB(t)
	repo := NewSubmissionRepository(db)

	match := models.Match{ChallengeID: 1, ChallengeParticipantID: 1, ChallengeMatchSettingID: 1}
	require.NoError(t, db.Create(&match).Error)

	backfill := models.Submission{MatchID: match.ID, Code: "auto", Status: models.SubmissionStatusWrong, IsAutomaticSubmission: true}
	created, err := repo.CreateFinalIfMissing(context.Background(), &backfill)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, backfill.IsFinal)
}

func TestListMissingFinal(t *testing.T) {
	db := testDB(t)
	matchRepo := NewMatchRepository(db)
	submissionRepo := NewSubmissionRepository(db)

	withFinal := models.Match{ChallengeID: 1, ChallengeParticipantID: 1, ChallengeMatchSettingID: 1}
	require.NoError(t, db.Create(&withFinal).Error)
	withDraft := models.Match{ChallengeID: 1, ChallengeParticipantID: 2, ChallengeMatchSettingID: 1}
	require.NoError(t, db.Create(&withDraft).Error)
	empty := models.Match{ChallengeID: 1, ChallengeParticipantID: 3, ChallengeMatchSettingID: 1}
	require.NoError(t, db.Create(&empty).Error)

	final := models.Submission{MatchID: withFinal.ID, Status: models.SubmissionStatusProbablyCorrect}
	require.NoError(t, submissionRepo.CreateFinal(context.Background(), &final))
	draft := models.Submission{MatchID: withDraft.ID, Status: models.SubmissionStatusImprovable}
	require.NoError(t, submissionRepo.Create(context.Background(), &draft))

	missing, err := matchRepo.ListMissingFinal(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, missing, 2)

	count, err := matchRepo.CountMissingFinal(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	ids := []uint{missing[0].ID, missing[1].ID}
	assert.ElementsMatch(t, []uint{withDraft.ID, empty.ID}, ids)
}
