package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/arena-api/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
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

	return db
}
