package models

import "time"

// Match assigns one participant to one problem within a challenge. Exactly one
// match exists per participant; rows are created by the assignment engine and
// never updated afterwards.
type Match struct {
	ID                      uint                  `gorm:"primaryKey" json:"id"`
	ChallengeID             uint                  `gorm:"not null;index" json:"challenge_id"`
	ChallengeParticipantID  uint                  `gorm:"not null;uniqueIndex" json:"challenge_participant_id"`
	ChallengeMatchSettingID uint                  `gorm:"not null;index" json:"challenge_match_setting_id"`
	CreatedAt               time.Time             `json:"created_at"`
	Participant             ChallengeParticipant  `gorm:"foreignKey:ChallengeParticipantID" json:"participant,omitempty"`
	Setting                 ChallengeMatchSetting `gorm:"foreignKey:ChallengeMatchSettingID" json:"setting,omitempty"`
	Submissions             []Submission          `json:"submissions,omitempty"`
}
