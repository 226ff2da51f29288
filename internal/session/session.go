package session

import (
	"sync"
	"time"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/pose"
)

// Frame outcomes recorded in the frames counter.
const (
	resultEvaluated = "evaluated"
	resultSkipped   = "skipped"
)

// Session owns one evaluator and serializes the frames fed into it.
type Session struct {
	ID        string
	Exercise  exercise.Kind
	Side      pose.Side
	ProfileID string
	CreatedAt time.Time

	mu         sync.Mutex
	evaluator  exercise.Evaluator
	metrics    *metrics.Manager
	clock      exercise.Clock
	lastActive time.Time
	frames     int
	skipped    int
	lastCount  int
}

// Info is a snapshot of a session for listings.
type Info struct {
	ID         string         `json:"id"`
	Exercise   exercise.Kind  `json:"exercise"`
	Side       pose.Side      `json:"side"`
	ProfileID  string         `json:"profile_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	LastActive time.Time      `json:"last_active"`
	Frames     int            `json:"frames"`
	Skipped    int            `json:"skipped"`
	State      exercise.State `json:"state"`
}

// Process evaluates one frame and returns the resulting state. The boolean is
// false when the frame was rejected and the evaluator did not advance.
func (s *Session) Process(frame pose.Frame) (exercise.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := string(s.Exercise)
	start := time.Now()
	ok := s.evaluator.Update(frame, s.Side)
	s.metrics.HistUpdateDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	s.lastActive = s.clock.Now()
	state := s.evaluator.State()

	if !ok {
		s.skipped++
		s.metrics.CounterFrames.WithLabelValues(kind, resultSkipped).Inc()
		return state, false
	}

	s.frames++
	s.metrics.CounterFrames.WithLabelValues(kind, resultEvaluated).Inc()
	if delta := state.Count - s.lastCount; delta > 0 {
		s.metrics.CounterReps.WithLabelValues(kind).Add(float64(delta))
	}
	s.lastCount = state.Count
	if !state.IsCorrectForm {
		s.metrics.CounterFormWarnings.WithLabelValues(kind).Inc()
	}

	return state, true
}

// State returns the current evaluator state without feeding a frame.
func (s *Session) State() exercise.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluator.State()
}

// Reset clears the evaluator and the frame counters.
func (s *Session) Reset() exercise.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evaluator.Reset()
	s.frames = 0
	s.skipped = 0
	s.lastCount = 0
	s.lastActive = s.clock.Now()
	return s.evaluator.State()
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Info{
		ID:         s.ID,
		Exercise:   s.Exercise,
		Side:       s.Side,
		ProfileID:  s.ProfileID,
		CreatedAt:  s.CreatedAt,
		LastActive: s.lastActive,
		Frames:     s.frames,
		Skipped:    s.skipped,
		State:      s.evaluator.State(),
	}
}

// LastActive is the time of the last frame or reset.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
