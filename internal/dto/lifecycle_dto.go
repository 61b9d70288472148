package dto

// AssignMatchesRequest controls match assignment.
type AssignMatchesRequest struct {
	Overwrite bool `json:"overwrite"`
}

// PeerReviewAssignRequest controls peer review assignment.
type PeerReviewAssignRequest struct {
	ExpectedReviewsPerSubmission int `json:"expected_reviews_per_submission" validate:"omitempty,gte=2"`
}

// TransitionResponse reports the result of a lifecycle transition.
type TransitionResponse struct {
	Outcome string `json:"outcome"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
}

// MatchStatsResponse summarizes finalization progress for a challenge.
type MatchStatsResponse struct {
	ChallengeID              uint   `json:"challenge_id"`
	Status                   string `json:"status"`
	ScoringStatus            string `json:"scoring_status"`
	TotalMatches             int64  `json:"total_matches"`
	PendingFinalCount        int64  `json:"pending_final_count"`
	InFlightSubmissionsCount int    `json:"in_flight_submissions_count"`
	ResultsReady             bool   `json:"results_ready"`
	PeerReviewReady          bool   `json:"peer_review_ready"`
}
