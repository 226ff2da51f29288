package exercise

import (
	"math"

	"github.com/ayusman/formcoach/internal/pose"
)

// SquatConfig holds the squat thresholds. Angles are in degrees.
type SquatConfig struct {
	VisibilityThreshold float64 `json:"visibility_threshold" toml:"visibility_threshold"`
	UpThreshold         float64 `json:"up_threshold" toml:"up_threshold"`
	DownThreshold       float64 `json:"down_threshold" toml:"down_threshold"`
	SmoothingAlpha      float64 `json:"smoothing_alpha" toml:"smoothing_alpha"`
	// DepthMarginRatio is how far, as a fraction of frame height, the hip
	// must sit below the knee for depth to count.
	DepthMarginRatio float64 `json:"depth_margin_ratio" toml:"depth_margin_ratio"`
	DepthTolerance   float64 `json:"depth_tolerance" toml:"depth_tolerance"`
	StandTolerance   float64 `json:"stand_tolerance" toml:"stand_tolerance"`
	// KneeForwardRatio is the horizontal knee-ankle offset, relative to the
	// shin length, above which the knee is drifting forward.
	KneeForwardRatio float64 `json:"knee_forward_ratio" toml:"knee_forward_ratio"`
	TorsoLeanMax     float64 `json:"torso_lean_max" toml:"torso_lean_max"`
	// SideViewRatio is the shoulder span, relative to torso length, below
	// which the camera is treated as seeing the body from the side.
	SideViewRatio float64 `json:"side_view_ratio" toml:"side_view_ratio"`
}

// DefaultSquatConfig returns the default squat thresholds.
func DefaultSquatConfig() SquatConfig {
	return SquatConfig{
		VisibilityThreshold: 0.5,
		UpThreshold:         165,
		DownThreshold:       95,
		SmoothingAlpha:      0.35,
		DepthMarginRatio:    0.01,
		DepthTolerance:      12,
		StandTolerance:      10,
		KneeForwardRatio:    0.45,
		TorsoLeanMax:        55,
		SideViewRatio:       0.35,
	}
}

// Validate checks the thresholds for consistency.
func (c SquatConfig) Validate() error {
	if err := checkThreshold("visibility_threshold", c.VisibilityThreshold); err != nil {
		return err
	}
	if err := checkAlpha(c.SmoothingAlpha); err != nil {
		return err
	}
	if c.DownThreshold <= 0 || c.UpThreshold > 180 || c.DownThreshold >= c.UpThreshold {
		return invalid("need 0 < down_threshold < up_threshold <= 180, got %v and %v", c.DownThreshold, c.UpThreshold)
	}
	if c.DepthMarginRatio < 0 || c.DepthMarginRatio >= 1 {
		return invalid("depth_margin_ratio must be in [0, 1), got %v", c.DepthMarginRatio)
	}
	if c.DepthTolerance < 0 || c.StandTolerance < 0 {
		return invalid("tolerances must not be negative")
	}
	if c.KneeForwardRatio <= 0 || c.TorsoLeanMax <= 0 || c.SideViewRatio <= 0 {
		return invalid("knee_forward_ratio, torso_lean_max and side_view_ratio must be positive")
	}
	return nil
}

// riseEpsilon is the per-frame knee angle increase that counts as rising.
const riseEpsilon = 0.5

type squatPhase int

const (
	squatUnarmed squatPhase = iota
	squatUp
	squatDown
)

func (p squatPhase) String() string {
	switch p {
	case squatUp:
		return "UP"
	case squatDown:
		return "DOWN"
	default:
		return "UNARMED"
	}
}

func (p squatPhase) stage() Stage {
	switch p {
	case squatUp:
		return StageUp
	case squatDown:
		return StageDown
	default:
		return StageNeutral
	}
}

// squatObservation is what one frame tells the squat machine. Angles are
// smoothed.
type squatObservation struct {
	knee  float64
	hip   float64
	lean  float64
	delta float64

	visible      bool
	hipBelowKnee bool
	depth        bool
	standing     bool
	kneeForward  bool
	sideView     bool
}

// squatMachine is the squat repetition state. bottom is the lowest knee
// angle seen since the last time the user was standing.
type squatMachine struct {
	phase     squatPhase
	qualified bool
	count     int
	bottom    float64
	bottomSet bool
}

// step applies one observation. Standing always closes a rep so a lost
// landmark cannot wedge the machine in DOWN; only qualified reps count.
func (m squatMachine) step(obs squatObservation) squatMachine {
	switch m.phase {
	case squatUnarmed:
		if obs.standing {
			m.phase = squatUp
		}
	case squatUp:
		if obs.depth {
			m.phase = squatDown
			m.qualified = obs.visible
		}
	case squatDown:
		m.qualified = m.qualified && obs.visible
		if obs.standing {
			if m.qualified {
				m.count++
			}
			m.phase = squatUp
			m.qualified = false
		}
	}

	if obs.standing || !m.bottomSet {
		m.bottom = obs.knee
		m.bottomSet = true
	} else {
		m.bottom = math.Min(m.bottom, obs.knee)
	}
	return m
}

// Squat feedback text.
const (
	msgSquatDeeper     = "Squat deeper, bend your knees more"
	msgHipsBelowKnees  = "Drop your hips below your knees"
	msgStandFully      = "Stand up fully to finish the rep"
	msgKneesOverToes   = "Keep your knees behind your toes"
	msgTorsoTooForward = "Keep your chest up, you are leaning too far forward"
)

// SquatCounter counts squats from the smoothed knee angle, requiring the
// hips to drop below the knees.
type SquatCounter struct {
	cfg     SquatConfig
	machine squatMachine
	last    squatObservation
	seen    bool

	knee pose.Smoother
	hip  pose.Smoother
	lean pose.Smoother
}

// NewSquatCounter returns a counter in its initial state.
func NewSquatCounter(cfg SquatConfig) *SquatCounter {
	c := &SquatCounter{cfg: cfg}
	c.Reset()
	return c
}

// Kind returns KindSquat.
func (c *SquatCounter) Kind() Kind {
	return KindSquat
}

// Update advances the counter by one frame.
func (c *SquatCounter) Update(frame pose.Frame, preferred pose.Side) bool {
	if !frame.Complete() {
		return false
	}

	obs := c.observe(frame, preferred)
	c.machine = c.machine.step(obs)
	c.last = obs
	c.seen = true
	return true
}

func (c *SquatCounter) observe(f pose.Frame, preferred pose.Side) squatObservation {
	cfg := c.cfg
	joints := []pose.Joint{pose.Shoulder, pose.Hip, pose.Knee, pose.Ankle}

	side, ok := pose.PickSide(f, preferred, cfg.VisibilityThreshold, joints...)
	shoulder := f.Joint(side, pose.Shoulder)
	hip := f.Joint(side, pose.Hip)
	knee := f.Joint(side, pose.Knee)
	ankle := f.Joint(side, pose.Ankle)

	prevKnee, hadKnee := c.knee.Value()

	var obs squatObservation
	obs.visible = ok
	obs.knee = c.knee.Next(pose.Angle(hip, knee, ankle))
	obs.hip = c.hip.Next(pose.Angle(shoulder, hip, knee))
	obs.lean = c.lean.Next(torsoLean(shoulder, hip))
	if hadKnee {
		obs.delta = obs.knee - prevKnee
	}

	obs.hipBelowKnee = hip.Y-knee.Y > cfg.DepthMarginRatio*f.H()
	obs.depth = obs.knee <= cfg.DownThreshold && obs.hipBelowKnee
	obs.standing = obs.knee >= cfg.UpThreshold

	if shin := pose.Distance(knee, ankle); shin > 0 {
		obs.kneeForward = math.Abs(knee.X-ankle.X) > cfg.KneeForwardRatio*shin
	}

	leftOK := f.SideVisible(pose.SideLeft, cfg.VisibilityThreshold, joints...)
	rightOK := f.SideVisible(pose.SideRight, cfg.VisibilityThreshold, joints...)
	span := math.Abs(f.Point(pose.LeftShoulder).X - f.Point(pose.RightShoulder).X)
	obs.sideView = leftOK != rightOK || span < cfg.SideViewRatio*pose.Distance(shoulder, hip)

	return obs
}

// torsoLean returns the angle between the hip→shoulder segment and vertical.
func torsoLean(shoulder, hip pose.Point) float64 {
	return math.Atan2(math.Abs(shoulder.X-hip.X), hip.Y-shoulder.Y) * 180 / math.Pi
}

// State returns the current squat state.
func (c *SquatCounter) State() State {
	s := State{
		Exercise: KindSquat,
		Count:    c.machine.count,
		Stage:    c.machine.phase.stage(),
		Phase:    c.machine.phase.String(),
	}
	if !c.seen {
		s.Feedback = msgGetInPosition
		return s
	}

	s.Angles = map[string]float64{
		"knee": c.last.knee,
		"hip":  c.last.hip,
		"lean": c.last.lean,
	}

	msg, visibility := c.feedback()
	if msg == "" {
		s.Feedback = msgGoodForm
		return s.finish(false)
	}
	s.Feedback = msg
	s.VisibilityIssue = visibility
	return s.finish(true)
}

// feedback returns the highest priority warning, or "" when the form is fine.
func (c *SquatCounter) feedback() (string, bool) {
	obs, m, cfg := c.last, c.machine, c.cfg
	rising := obs.delta > riseEpsilon

	switch {
	case !obs.visible:
		return msgLegsNotVisible, true
	case m.phase != squatDown && rising && obs.knee < cfg.UpThreshold &&
		m.bottom > cfg.DownThreshold+cfg.DepthTolerance:
		return msgSquatDeeper, false
	case obs.knee <= cfg.DownThreshold && !obs.hipBelowKnee:
		return msgHipsBelowKnees, false
	case m.phase == squatDown && !rising &&
		obs.knee > cfg.DownThreshold+cfg.DepthTolerance && obs.knee < cfg.UpThreshold-cfg.StandTolerance:
		return msgStandFully, false
	case obs.kneeForward:
		return msgKneesOverToes, false
	case obs.sideView && obs.lean > cfg.TorsoLeanMax:
		return msgTorsoTooForward, false
	}
	return "", false
}

// Reset returns the counter to its initial state and drops smoothing history.
func (c *SquatCounter) Reset() {
	c.machine = squatMachine{}
	c.last = squatObservation{}
	c.seen = false
	c.knee = pose.NewSmoother(c.cfg.SmoothingAlpha)
	c.hip = pose.NewSmoother(c.cfg.SmoothingAlpha)
	c.lean = pose.NewSmoother(c.cfg.SmoothingAlpha)
}
