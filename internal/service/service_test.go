package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/arena-api/internal/events"
	"github.com/noah-isme/arena-api/internal/models"
	"github.com/noah-isme/arena-api/internal/repository"
	"github.com/noah-isme/arena-api/internal/scheduler"
	"github.com/noah-isme/arena-api/pkg/judge"
)

// fakeJudge returns canned reports keyed by code so tests control pass/fail
// behaviour without containers.
type fakeJudge struct {
	reports map[string]judge.RunReport
	inputs  map[string]judge.TestResult
}

func newFakeJudge() *fakeJudge {
	return &fakeJudge{
		reports: make(map[string]judge.RunReport),
		inputs:  make(map[string]judge.TestResult),
	}
}

func (f *fakeJudge) setReport(code string, compiled, passed bool, results ...judge.TestResult) {
	f.reports[code] = judge.RunReport{IsCompiled: compiled, IsPassed: passed, Results: results}
}

func (f *fakeJudge) Execute(_ context.Context, req judge.ExecuteRequest) (judge.RunReport, error) {
	if report, ok := f.reports[req.Code]; ok {
		return report, nil
	}

	// Default: everything passes.
	report := judge.RunReport{IsCompiled: true, IsPassed: true}
	for _, test := range req.Tests {
		report.Results = append(report.Results, judge.TestResult{
			Input:          test.Input,
			ExpectedOutput: test.ExpectedOutput,
			ActualOutput:   test.ExpectedOutput,
			Passed:         true,
		})
	}
	return report, nil
}

func (f *fakeJudge) RunInput(_ context.Context, code, _, input string) (judge.TestResult, error) {
	if result, ok := f.inputs[code+"|"+input]; ok {
		return result, nil
	}
	return judge.TestResult{Input: input, ActualOutput: "42\n", Passed: true}, nil
}

type testEnv struct {
	db           *gorm.DB
	judge        *fakeJudge
	challenges   repository.ChallengeRepository
	participants repository.ParticipantRepository
	settings     repository.MatchSettingRepository
	matches      repository.MatchRepository
	submissions  repository.SubmissionRepository
	peerReviews  repository.PeerReviewRepository
	scores       repository.ScoreRepository
	finalizer    *FinalizationService
	scoring      *ScoringService
	lifecycle    *LifecycleService
	submitter    *SubmissionService
	reviewer     *PeerReviewService
	manager      *ChallengeService
	timers       *scheduler.Scheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every pooled connection to :memory: would get its own database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Challenge{},
		&models.MatchSetting{},
		&models.ChallengeMatchSetting{},
		&models.ChallengeParticipant{},
		&models.Match{},
		&models.Submission{},
		&models.PeerReviewAssignment{},
		&models.PeerReviewVote{},
		&models.SubmissionScoreBreakdown{},
	))

	env := &testEnv{
		db:           db,
		judge:        newFakeJudge(),
		challenges:   repository.NewChallengeRepository(db),
		participants: repository.NewParticipantRepository(db),
		settings:     repository.NewMatchSettingRepository(db),
		matches:      repository.NewMatchRepository(db),
		submissions:  repository.NewSubmissionRepository(db),
		peerReviews:  repository.NewPeerReviewRepository(db),
		scores:       repository.NewScoreRepository(db),
		timers:       scheduler.New(zerolog.Nop()),
	}
	t.Cleanup(env.timers.Stop)

	env.finalizer = NewFinalizationService(env.challenges, env.matches, env.submissions, env.judge, events.Nop(), nil, zerolog.Nop(), 2*time.Second, time.Second)
	env.scoring = NewScoringService(env.challenges, env.matches, env.peerReviews, env.scores, env.judge, events.Nop(), zerolog.Nop())
	env.lifecycle = NewLifecycleService(env.challenges, env.participants, env.settings, env.matches, env.submissions, env.peerReviews, env.finalizer, env.scoring, events.Nop(), env.timers, zerolog.Nop())
	env.lifecycle.shuffle = func(int, func(i, j int)) {}
	env.submitter = NewSubmissionService(env.challenges, env.participants, env.matches, env.submissions, env.judge, env.finalizer, events.Nop(), zerolog.Nop())
	env.reviewer = NewPeerReviewService(env.challenges, env.participants, env.peerReviews, zerolog.Nop())
	env.manager = NewChallengeService(env.challenges, env.participants, env.settings, events.Nop(), zerolog.Nop())

	return env
}

func (e *testEnv) createChallenge(t *testing.T, status string) models.Challenge {
	t.Helper()

	challenge := models.Challenge{
		Title:                 "Test Challenge",
		TeacherID:             1,
		Status:                status,
		ScoringStatus:         models.ScoringStatusPending,
		StartDatetime:         time.Now().Add(-time.Hour),
		EndDatetime:           time.Now().Add(time.Hour),
		DurationMinutes:       60,
		PeerReviewMinutes:     30,
		AllowedNumberOfReview: 2,
	}
	require.NoError(t, e.db.Create(&challenge).Error)
	return challenge
}

func (e *testEnv) attachSetting(t *testing.T, challengeID uint) models.ChallengeMatchSetting {
	t.Helper()

	publicTests, err := models.EncodeTestCases([]models.TestCase{{Input: "1", ExpectedOutput: "1"}})
	require.NoError(t, err)
	privateTests, err := models.EncodeTestCases([]models.TestCase{
		{Input: "2", ExpectedOutput: "2"},
		{Input: "3", ExpectedOutput: "3"},
	})
	require.NoError(t, err)

	setting := models.MatchSetting{
		Title:             "Sum",
		Language:          "python",
		ReferenceSolution: "print(input())",
		TemplateCode:      "# template",
		PublicTests:       publicTests,
		PrivateTests:      privateTests,
		Status:            models.MatchSettingStatusReady,
	}
	require.NoError(t, e.db.Create(&setting).Error)

	link := models.ChallengeMatchSetting{ChallengeID: challengeID, MatchSettingID: setting.ID, MatchSetting: setting}
	require.NoError(t, e.db.Create(&link).Error)
	return link
}

func (e *testEnv) addParticipants(t *testing.T, challengeID uint, count int) []models.ChallengeParticipant {
	t.Helper()

	participants := make([]models.ChallengeParticipant, 0, count)
	for i := 0; i < count; i++ {
		participant := models.ChallengeParticipant{
			ChallengeID: challengeID,
			StudentID:   uint(100 + i),
			DisplayName: fmt.Sprintf("student-%d", i),
		}
		require.NoError(t, e.db.Create(&participant).Error)
		participants = append(participants, participant)
	}
	return participants
}

func (e *testEnv) addMatch(t *testing.T, challengeID, participantID, settingLinkID uint) models.Match {
	t.Helper()

	match := models.Match{
		ChallengeID:             challengeID,
		ChallengeParticipantID:  participantID,
		ChallengeMatchSettingID: settingLinkID,
	}
	require.NoError(t, e.db.Create(&match).Error)
	return match
}

func (e *testEnv) addFinalSubmission(t *testing.T, matchID uint, status string) models.Submission {
	t.Helper()

	privateResults, err := judge.EncodeResults([]judge.TestResult{
		{Input: "2", ExpectedOutput: "2", ActualOutput: "2", Passed: true},
		{Input: "3", ExpectedOutput: "3", ActualOutput: "3", Passed: status == models.SubmissionStatusProbablyCorrect},
	})
	require.NoError(t, err)

	submission := models.Submission{
		MatchID:            matchID,
		Code:               fmt.Sprintf("code-for-match-%d", matchID),
		Status:             status,
		IsFinal:            true,
		PrivateTestResults: privateResults,
	}
	require.NoError(t, e.db.Create(&submission).Error)
	return submission
}
