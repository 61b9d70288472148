package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/arena-api/internal/events"
	"github.com/noah-isme/arena-api/internal/handler"
	"github.com/noah-isme/arena-api/internal/models"
	"github.com/noah-isme/arena-api/internal/repository"
	"github.com/noah-isme/arena-api/internal/router"
	"github.com/noah-isme/arena-api/internal/scheduler"
	"github.com/noah-isme/arena-api/internal/service"
	"github.com/noah-isme/arena-api/internal/utils"
	"github.com/noah-isme/arena-api/pkg/judge"
)

const testSecret = "handler-test-secret"

// stubJudge satisfies judge.Service for endpoints that never reach the judge.
type stubJudge struct{}

func (stubJudge) Execute(_ context.Context, _ judge.ExecuteRequest) (judge.RunReport, error) {
	return judge.RunReport{IsCompiled: true}, nil
}

func (stubJudge) RunInput(_ context.Context, _, _, _ string) (judge.TestResult, error) {
	return judge.TestResult{Passed: true}, nil
}

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

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

	challengeRepo := repository.NewChallengeRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	settingRepo := repository.NewMatchSettingRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	peerReviewRepo := repository.NewPeerReviewRepository(db)
	scoreRepo := repository.NewScoreRepository(db)

	timers := scheduler.New(zerolog.Nop())
	t.Cleanup(timers.Stop)

	judgeService := stubJudge{}

	finalizer := service.NewFinalizationService(challengeRepo, matchRepo, submissionRepo, judgeService, events.Nop(), nil, zerolog.Nop(), time.Second, time.Second)
	scoring := service.NewScoringService(challengeRepo, matchRepo, peerReviewRepo, scoreRepo, judgeService, events.Nop(), zerolog.Nop())
	lifecycle := service.NewLifecycleService(challengeRepo, participantRepo, settingRepo, matchRepo, submissionRepo, peerReviewRepo, finalizer, scoring, events.Nop(), timers, zerolog.Nop())
	challenges := service.NewChallengeService(challengeRepo, participantRepo, settingRepo, events.Nop(), zerolog.Nop())
	submissions := service.NewSubmissionService(challengeRepo, participantRepo, matchRepo, submissionRepo, judgeService, finalizer, events.Nop(), zerolog.Nop())
	peerReviews := service.NewPeerReviewService(challengeRepo, participantRepo, peerReviewRepo, zerolog.Nop())

	validate := validator.New()
	app := fiber.New()
	router.Register(app, router.Dependencies{
		JWTSecret:   testSecret,
		Health:      handler.NewHealthHandler("arena-test", "test"),
		Challenges:  handler.NewChallengeHandler(challenges, validate),
		Lifecycle:   handler.NewLifecycleHandler(lifecycle, finalizer, scoring, validate),
		Submissions: handler.NewSubmissionHandler(submissions, validate),
		PeerReviews: handler.NewPeerReviewHandler(peerReviews, validate),
	})

	return &testApp{app: app, db: db}
}

func signToken(t *testing.T, userID uint, role string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (ta *testApp) request(t *testing.T, method, path, token string) (*http.Response, utils.APIResponse) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed utils.APIResponse
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &parsed))
	}
	return resp, parsed
}

func (ta *testApp) seedChallenge(t *testing.T, status string) models.Challenge {
	t.Helper()

	challenge := models.Challenge{
		Title:             "Handler Test",
		TeacherID:         1,
		Status:            status,
		ScoringStatus:     models.ScoringStatusPending,
		StartDatetime:     time.Now().Add(-time.Hour),
		EndDatetime:       time.Now().Add(time.Hour),
		DurationMinutes:   60,
		PeerReviewMinutes: 30,
	}
	require.NoError(t, ta.db.Create(&challenge).Error)
	return challenge
}

func TestTransitionEndpointsRequireAuth(t *testing.T) {
	ta := newTestApp(t)

	resp, _ := ta.request(t, fiber.MethodPost, "/api/v1/challenges/1/start-coding", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTransitionEndpointsRequireTeacherRole(t *testing.T) {
	ta := newTestApp(t)
	token := signToken(t, 2, "student")

	resp, _ := ta.request(t, fiber.MethodPost, "/api/v1/challenges/1/start-coding", token)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestStartCodingNotFoundMapsTo404(t *testing.T) {
	ta := newTestApp(t)
	token := signToken(t, 1, "teacher")

	resp, body := ta.request(t, fiber.MethodPost, "/api/v1/challenges/999/start-coding", token)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.False(t, body.Success)
	assert.Equal(t, service.OutcomeChallengeNotFound, body.Message)
}

func TestStartCodingInvalidStatusMapsTo409(t *testing.T) {
	ta := newTestApp(t)
	challenge := ta.seedChallenge(t, models.ChallengeStatusDraft)
	token := signToken(t, 1, "teacher")

	resp, body := ta.request(t, fiber.MethodPost, fmt.Sprintf("/api/v1/challenges/%d/start-coding", challenge.ID), token)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, service.OutcomeInvalidStatus, body.Message)
}

func TestAssignWithoutSettingsMapsTo400(t *testing.T) {
	ta := newTestApp(t)
	challenge := ta.seedChallenge(t, models.ChallengeStatusPublic)
	token := signToken(t, 1, "teacher")

	resp, body := ta.request(t, fiber.MethodPost, fmt.Sprintf("/api/v1/challenges/%d/assign-matches", challenge.ID), token)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, service.OutcomeNoMatchSettings, body.Message)
}

func TestEndCodingSecondCallIsBenign(t *testing.T) {
	ta := newTestApp(t)
	challenge := ta.seedChallenge(t, models.ChallengeStatusStartedCoding)
	require.NoError(t, ta.db.Model(&models.Challenge{}).
		Where("id = ?", challenge.ID).
		Update("start_coding_phase_at", time.Now().UTC()).Error)
	token := signToken(t, 1, "teacher")

	path := fmt.Sprintf("/api/v1/challenges/%d/end-coding", challenge.ID)

	resp, body := ta.request(t, fiber.MethodPost, path, token)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, service.OutcomeOK, body.Message)

	resp, body = ta.request(t, fiber.MethodPost, path, token)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, service.OutcomeAlreadyEnded, body.Message)
}

func TestStatsEndpoint(t *testing.T) {
	ta := newTestApp(t)
	challenge := ta.seedChallenge(t, models.ChallengeStatusStartedCoding)
	token := signToken(t, 7, "student")

	resp, body := ta.request(t, fiber.MethodGet, fmt.Sprintf("/api/v1/challenges/%d/stats", challenge.ID), token)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
}

func TestHealthEndpointIsPublic(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.request(t, fiber.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
}
