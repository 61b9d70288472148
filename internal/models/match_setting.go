package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Match setting readiness states.
const (
	MatchSettingStatusDraft = "draft"
	MatchSettingStatusReady = "ready"
)

// TestCase describes one input/expected-output pair of a problem.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// EncodeTestCases serializes test cases for JSON column storage.
func EncodeTestCases(tests []TestCase) (datatypes.JSON, error) {
	if tests == nil {
		tests = []TestCase{}
	}
	raw, err := json.Marshal(tests)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// DecodeTestCases parses test cases from a JSON column.
func DecodeTestCases(raw datatypes.JSON) ([]TestCase, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var tests []TestCase
	if err := json.Unmarshal(raw, &tests); err != nil {
		return nil, err
	}
	return tests, nil
}

// MatchSetting is a coding problem that can be attached to challenges.
type MatchSetting struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Title             string         `gorm:"size:255;not null" json:"title"`
	Description       string         `gorm:"type:text" json:"description"`
	Language          string         `gorm:"size:32;not null;default:python" json:"language"`
	ReferenceSolution string         `gorm:"type:text" json:"reference_solution"`
	TemplateCode      string         `gorm:"type:text" json:"template_code"`
	PublicTests       datatypes.JSON `json:"public_tests"`
	PrivateTests      datatypes.JSON `json:"private_tests"`
	Status            string         `gorm:"size:16;not null;default:draft" json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// IsReady reports whether the problem may be attached to a challenge.
func (m MatchSetting) IsReady() bool {
	return m.Status == MatchSettingStatusReady
}

// ChallengeMatchSetting links a problem to a challenge. Matches reference this
// join row rather than the problem directly, so one problem can appear in many
// challenges with independent pairings.
type ChallengeMatchSetting struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	ChallengeID    uint         `gorm:"not null;index;uniqueIndex:idx_challenge_setting" json:"challenge_id"`
	MatchSettingID uint         `gorm:"not null;uniqueIndex:idx_challenge_setting" json:"match_setting_id"`
	CreatedAt      time.Time    `json:"created_at"`
	MatchSetting   MatchSetting `json:"match_setting,omitempty"`
}
