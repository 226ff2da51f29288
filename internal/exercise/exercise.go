// Package exercise implements the per-exercise evaluators that turn pose
// frames into repetition counts, hold timers and coaching feedback.
//
// Every evaluator is a single-owner state machine: Update advances it by one
// frame, State returns a snapshot and Reset returns it to its initial state.
// Evaluators do no locking; callers that share one across goroutines must
// synchronize externally.
package exercise

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/formcoach/internal/pose"
)

// ErrUnsupportedExercise is returned when an exercise kind has no evaluator.
var ErrUnsupportedExercise = errors.New("unsupported exercise")

// ErrInvalidConfig is returned when an evaluator configuration is unusable.
var ErrInvalidConfig = errors.New("invalid exercise config")

// Kind identifies an exercise type.
type Kind string

const (
	// KindPushup counts push-up repetitions.
	KindPushup Kind = "pushup"
	// KindSquat counts squat repetitions.
	KindSquat Kind = "squat"
	// KindPlank scores and times plank holds.
	KindPlank Kind = "plank"
)

// Kinds lists every supported exercise.
func Kinds() []Kind {
	return []Kind{KindPushup, KindSquat, KindPlank}
}

// ParseKind maps a user supplied name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pushup", "push-up", "pushups":
		return KindPushup, nil
	case "squat", "squats":
		return KindSquat, nil
	case "plank":
		return KindPlank, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedExercise, s)
	}
}

// Evaluator is the contract shared by all exercise evaluators.
type Evaluator interface {
	// Kind returns the exercise this evaluator handles.
	Kind() Kind

	// Update advances the evaluator by one frame. preferred selects the body
	// side to measure when both are usable. It returns false, leaving the
	// state untouched, when the frame lacks the full landmark set.
	Update(frame pose.Frame, preferred pose.Side) bool

	// State returns a snapshot of the current output.
	State() State

	// Reset clears counters, timers and smoothing history.
	Reset()
}

// Clock supplies wall-clock time to time-dependent evaluators.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Config groups the configuration of every evaluator.
type Config struct {
	Pushup PushupConfig `json:"pushup" toml:"pushup"`
	Squat  SquatConfig  `json:"squat" toml:"squat"`
	Plank  PlankConfig  `json:"plank" toml:"plank"`
}

// DefaultConfig returns the default configuration for all evaluators.
func DefaultConfig() Config {
	return Config{
		Pushup: DefaultPushupConfig(),
		Squat:  DefaultSquatConfig(),
		Plank:  DefaultPlankConfig(),
	}
}

// Validate checks every evaluator configuration.
func (c Config) Validate() error {
	if err := c.Pushup.Validate(); err != nil {
		return fmt.Errorf("pushup: %w", err)
	}
	if err := c.Squat.Validate(); err != nil {
		return fmt.Errorf("squat: %w", err)
	}
	if err := c.Plank.Validate(); err != nil {
		return fmt.Errorf("plank: %w", err)
	}
	return nil
}

// Overlay decodes a partial JSON configuration for one exercise over c and
// validates the result. Unknown fields are rejected.
func (c Config) Overlay(kind Kind, raw json.RawMessage) (Config, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return c, nil
	}

	var target any
	switch kind {
	case KindPushup:
		target = &c.Pushup
	case KindSquat:
		target = &c.Squat
	case KindPlank:
		target = &c.Plank
	default:
		return c, fmt.Errorf("%w: %q", ErrUnsupportedExercise, string(kind))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return c, invalid("%s overlay: %v", kind, err)
	}

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// New builds an evaluator for kind. A nil clock uses the system clock.
func New(kind Kind, cfg Config, clock Clock) (Evaluator, error) {
	if clock == nil {
		clock = SystemClock{}
	}

	switch kind {
	case KindPushup:
		if err := cfg.Pushup.Validate(); err != nil {
			return nil, err
		}
		return NewPushupCounter(cfg.Pushup), nil
	case KindSquat:
		if err := cfg.Squat.Validate(); err != nil {
			return nil, err
		}
		return NewSquatCounter(cfg.Squat), nil
	case KindPlank:
		if err := cfg.Plank.Validate(); err != nil {
			return nil, err
		}
		return NewPlankEvaluator(cfg.Plank, clock), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExercise, string(kind))
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func checkThreshold(name string, v float64) error {
	if v <= 0 || v > 1 {
		return invalid("%s must be in (0, 1], got %v", name, v)
	}
	return nil
}

func checkAlpha(v float64) error {
	if v < 0 || v > 1 {
		return invalid("smoothing alpha must be in [0, 1], got %v", v)
	}
	return nil
}
