package exercise

import "github.com/ayusman/formcoach/internal/pose"

// PushupConfig holds the push-up thresholds. Angles are in degrees.
type PushupConfig struct {
	VisibilityThreshold  float64 `json:"visibility_threshold" toml:"visibility_threshold"`
	UpThreshold          float64 `json:"up_threshold" toml:"up_threshold"`
	DownThreshold        float64 `json:"down_threshold" toml:"down_threshold"`
	LegExtendedThreshold float64 `json:"leg_extended_threshold" toml:"leg_extended_threshold"`
	// FormTolerance is how far past a threshold the elbow may stop before
	// the range-of-motion warnings fire.
	FormTolerance float64 `json:"form_tolerance" toml:"form_tolerance"`
}

// DefaultPushupConfig returns the default push-up thresholds.
func DefaultPushupConfig() PushupConfig {
	return PushupConfig{
		VisibilityThreshold:  0.5,
		UpThreshold:          145,
		DownThreshold:        70,
		LegExtendedThreshold: 130,
		FormTolerance:        10,
	}
}

// Validate checks the thresholds for consistency.
func (c PushupConfig) Validate() error {
	if err := checkThreshold("visibility_threshold", c.VisibilityThreshold); err != nil {
		return err
	}
	if c.DownThreshold <= 0 || c.UpThreshold > 180 || c.DownThreshold >= c.UpThreshold {
		return invalid("need 0 < down_threshold < up_threshold <= 180, got %v and %v", c.DownThreshold, c.UpThreshold)
	}
	if c.LegExtendedThreshold <= 0 || c.LegExtendedThreshold > 180 {
		return invalid("leg_extended_threshold must be in (0, 180], got %v", c.LegExtendedThreshold)
	}
	if c.FormTolerance < 0 {
		return invalid("form_tolerance must not be negative, got %v", c.FormTolerance)
	}
	return nil
}

type pushupPhase int

const (
	pushupUnarmed pushupPhase = iota
	pushupUp
	pushupDown
)

func (p pushupPhase) String() string {
	switch p {
	case pushupUp:
		return "UP"
	case pushupDown:
		return "DOWN"
	default:
		return "UNARMED"
	}
}

func (p pushupPhase) stage() Stage {
	switch p {
	case pushupUp:
		return StageUp
	case pushupDown:
		return StageDown
	default:
		return StageNeutral
	}
}

// pushupObservation is what one frame tells the push-up machine.
type pushupObservation struct {
	elbow        float64
	armVisible   bool
	knee         float64
	kneeKnown    bool
	legsExtended bool
}

// pushupMachine is the push-up repetition state.
type pushupMachine struct {
	phase         pushupPhase
	legsQualified bool
	count         int
}

// step applies one observation. Legs only need to be straight at some point
// while down for the rep to count.
func (m pushupMachine) step(obs pushupObservation, cfg PushupConfig) pushupMachine {
	switch m.phase {
	case pushupUnarmed:
		if obs.elbow >= cfg.UpThreshold && obs.legsExtended {
			m.phase = pushupUp
		}
	case pushupUp:
		if obs.elbow <= cfg.DownThreshold {
			m.phase = pushupDown
			m.legsQualified = obs.legsExtended
		}
	case pushupDown:
		m.legsQualified = m.legsQualified || obs.legsExtended
		if obs.elbow >= cfg.UpThreshold && m.legsQualified {
			m.phase = pushupUp
			m.count++
			m.legsQualified = false
		}
	}
	return m
}

// Push-up feedback text.
const (
	msgArmsNotVisible      = "Keep your arms visible to the camera"
	msgLegsNotVisible      = "Keep your legs visible to the camera"
	msgStraightenLegsStart = "Straighten your legs to start"
	msgKeepLegsStraight    = "Keep your legs straight"
	msgExtendArms          = "Fully extend your arms at the top"
	msgBendElbowsMore      = "Go lower, bend your elbows more"
)

// PushupCounter counts push-ups from the elbow angle, requiring straight
// legs during the lowering phase.
type PushupCounter struct {
	cfg     PushupConfig
	machine pushupMachine
	last    pushupObservation
	seen    bool
}

// NewPushupCounter returns a counter in its initial state.
func NewPushupCounter(cfg PushupConfig) *PushupCounter {
	return &PushupCounter{cfg: cfg}
}

// Kind returns KindPushup.
func (c *PushupCounter) Kind() Kind {
	return KindPushup
}

// Update advances the counter by one frame.
func (c *PushupCounter) Update(frame pose.Frame, preferred pose.Side) bool {
	if !frame.Complete() {
		return false
	}

	obs := c.observe(frame, preferred)
	c.machine = c.machine.step(obs, c.cfg)
	c.last = obs
	c.seen = true
	return true
}

func (c *PushupCounter) observe(f pose.Frame, preferred pose.Side) pushupObservation {
	thr := c.cfg.VisibilityThreshold

	var obs pushupObservation
	arm, ok := pose.PickSide(f, preferred, thr, pose.Shoulder, pose.Elbow, pose.Wrist)
	obs.armVisible = ok
	obs.elbow = pose.Angle(f.Joint(arm, pose.Shoulder), f.Joint(arm, pose.Elbow), f.Joint(arm, pose.Wrist))

	leftLeg := f.SideVisible(pose.SideLeft, thr, pose.Hip, pose.Knee, pose.Ankle)
	rightLeg := f.SideVisible(pose.SideRight, thr, pose.Hip, pose.Knee, pose.Ankle)
	switch {
	case leftLeg && rightLeg:
		obs.knee = (kneeAngle(f, pose.SideLeft) + kneeAngle(f, pose.SideRight)) / 2
		obs.kneeKnown = true
	case leftLeg:
		obs.knee = kneeAngle(f, pose.SideLeft)
		obs.kneeKnown = true
	case rightLeg:
		obs.knee = kneeAngle(f, pose.SideRight)
		obs.kneeKnown = true
	}
	obs.legsExtended = obs.kneeKnown && obs.knee >= c.cfg.LegExtendedThreshold
	return obs
}

func kneeAngle(f pose.Frame, s pose.Side) float64 {
	return pose.Angle(f.Joint(s, pose.Hip), f.Joint(s, pose.Knee), f.Joint(s, pose.Ankle))
}

// State returns the current push-up state.
func (c *PushupCounter) State() State {
	s := State{
		Exercise: KindPushup,
		Count:    c.machine.count,
		Stage:    c.machine.phase.stage(),
		Phase:    c.machine.phase.String(),
	}
	if !c.seen {
		s.Feedback = msgGetInPosition
		return s
	}

	s.Angles = map[string]float64{"elbow": c.last.elbow}
	if c.last.kneeKnown {
		s.Angles["knee"] = c.last.knee
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
func (c *PushupCounter) feedback() (string, bool) {
	obs, m, cfg := c.last, c.machine, c.cfg

	switch {
	case !obs.armVisible:
		return msgArmsNotVisible, true
	case !obs.kneeKnown:
		return msgLegsNotVisible, true
	case m.phase == pushupUnarmed && !obs.legsExtended:
		return msgStraightenLegsStart, false
	case m.phase == pushupDown && !m.legsQualified:
		return msgKeepLegsStraight, false
	case m.phase == pushupUp && obs.elbow < cfg.UpThreshold-cfg.FormTolerance:
		return msgExtendArms, false
	case m.phase != pushupUp && obs.elbow > cfg.DownThreshold+cfg.FormTolerance:
		return msgBendElbowsMore, false
	}
	return "", false
}

// Reset returns the counter to its initial state.
func (c *PushupCounter) Reset() {
	c.machine = pushupMachine{}
	c.last = pushupObservation{}
	c.seen = false
}
