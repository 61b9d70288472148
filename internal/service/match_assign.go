package service

import "math/rand"

// matchPair is one computed participant/problem pairing.
type matchPair struct {
	ParticipantID uint
	SettingID     uint
}

// assignMatches distributes participants across the challenge's problems.
// Participants are shuffled and dealt round-robin, so for any participant and
// problem counts the per-problem participant counts differ by at most one.
// The shuffle function is injectable for deterministic tests.
func assignMatches(participantIDs, settingIDs []uint, shuffle func(n int, swap func(i, j int))) []matchPair {
	if len(participantIDs) == 0 || len(settingIDs) == 0 {
		return nil
	}

	if shuffle == nil {
		shuffle = rand.Shuffle
	}

	shuffled := make([]uint, len(participantIDs))
	copy(shuffled, participantIDs)
	shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	pairs := make([]matchPair, 0, len(shuffled))
	for i, participantID := range shuffled {
		pairs = append(pairs, matchPair{
			ParticipantID: participantID,
			SettingID:     settingIDs[i%len(settingIDs)],
		})
	}

	return pairs
}
