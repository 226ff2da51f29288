package exercise

import "fmt"

// Stage is the coarse phase reported to renderers.
type Stage int

const (
	StageNeutral Stage = iota
	StageUp
	StageDown
)

// String returns the stage name as used on the wire.
func (s Stage) String() string {
	switch s {
	case StageUp:
		return "UP"
	case StageDown:
		return "DOWN"
	default:
		return "NEUTRAL"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	switch string(text) {
	case "UP":
		*s = StageUp
	case "DOWN":
		*s = StageDown
	case "NEUTRAL", "":
		*s = StageNeutral
	default:
		return fmt.Errorf("unknown stage %q", text)
	}
	return nil
}

// State is the per-frame output of an evaluator.
type State struct {
	Exercise      Kind   `json:"exercise"`
	Count         int    `json:"count"`
	Feedback      string `json:"feedback"`
	IsCorrectForm bool   `json:"isCorrectForm"`
	Stage         Stage  `json:"stage"`
	// Phase is the evaluator's internal state machine phase.
	Phase string `json:"phase"`

	// Plank only.
	Timer    *float64 `json:"timer,omitempty"`
	BestHold *float64 `json:"bestHold,omitempty"`
	Score    *float64 `json:"score,omitempty"`

	VisibilityIssue             bool  `json:"visibilityIssue,omitempty"`
	LandmarksNeedingImprovement []int `json:"landmarksNeedingImprovement,omitempty"`

	// Angles holds the joint angles (degrees) the decision was based on.
	Angles map[string]float64 `json:"angles,omitempty"`
}

// Common feedback text.
const (
	msgGetInPosition = "Get into position"
	msgGoodForm      = "Good form"
)

// finish fills the derived output fields from the feedback text.
func (s State) finish(warning bool) State {
	s.IsCorrectForm = !warning
	if warning {
		s.LandmarksNeedingImprovement = LandmarksForFeedback(s.Feedback)
	}
	return s
}

func floatPtr(v float64) *float64 {
	return &v
}
