package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler fires per-challenge phase-end callbacks. Timers are at-least-once
// triggers: the callback must be idempotent, since a manual action may have
// already performed the transition by the time a timer fires.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	logger zerolog.Logger
	closed bool
}

// New constructs an empty scheduler.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Schedule registers fn to run at the given time, keyed by challenge and
// phase. Scheduling the same key again replaces the pending timer.
func (s *Scheduler) Schedule(challengeID uint, phase string, at time.Time, fn func()) {
	key := timerKey(challengeID, phase)
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if existing, ok := s.timers[key]; ok {
		existing.Stop()
	}

	s.logger.Debug().Uint("challenge_id", challengeID).Str("phase", phase).Time("at", at).Msg("phase timer scheduled")

	s.timers[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending timer for the given challenge and phase, if any.
func (s *Scheduler) Cancel(challengeID uint, phase string) {
	key := timerKey(challengeID, phase)

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}
}

// Stop cancels all pending timers. The scheduler accepts no new work afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
	s.closed = true
}

func timerKey(challengeID uint, phase string) string {
	return fmt.Sprintf("%d:%s", challengeID, phase)
}
