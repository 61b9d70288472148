package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityShuffle(int, func(i, j int)) {}

func TestAssignMatchesEveryParticipantPaired(t *testing.T) {
	participants := []uint{1, 2, 3, 4, 5}
	settings := []uint{10, 20}

	pairs := assignMatches(participants, settings, identityShuffle)
	require.Len(t, pairs, len(participants))

	seen := make(map[uint]bool)
	for _, pair := range pairs {
		assert.False(t, seen[pair.ParticipantID], "participant %d paired twice", pair.ParticipantID)
		seen[pair.ParticipantID] = true
		assert.Contains(t, settings, pair.SettingID)
	}
}

func TestAssignMatchesSpreadWithinOne(t *testing.T) {
	for _, tc := range []struct {
		participants int
		settings     int
	}{
		{participants: 7, settings: 3},
		{participants: 10, settings: 4},
		{participants: 3, settings: 5},
		{participants: 1, settings: 1},
	} {
		participants := make([]uint, tc.participants)
		for i := range participants {
			participants[i] = uint(i + 1)
		}
		settings := make([]uint, tc.settings)
		for i := range settings {
			settings[i] = uint(100 + i)
		}

		pairs := assignMatches(participants, settings, nil)
		require.Len(t, pairs, tc.participants)

		counts := make(map[uint]int)
		for _, pair := range pairs {
			counts[pair.SettingID]++
		}

		minCount, maxCount := tc.participants, 0
		for _, setting := range settings {
			count := counts[setting]
			if count < minCount {
				minCount = count
			}
			if count > maxCount {
				maxCount = count
			}
		}
		assert.LessOrEqual(t, maxCount-minCount, 1, "%d participants over %d settings", tc.participants, tc.settings)
	}
}

func TestAssignMatchesEmptyInputs(t *testing.T) {
	assert.Nil(t, assignMatches(nil, []uint{1}, identityShuffle))
	assert.Nil(t, assignMatches([]uint{1}, nil, identityShuffle))
}

func TestAssignMatchesDoesNotMutateInput(t *testing.T) {
	participants := []uint{1, 2, 3}
	assignMatches(participants, []uint{9}, func(n int, swap func(i, j int)) {
		swap(0, n-1)
	})
	assert.Equal(t, []uint{1, 2, 3}, participants)
}
