package exercise

import (
	"math"
	"time"

	"github.com/ayusman/formcoach/internal/pose"
)

// Band maps a signal onto a [0, 1] score. Values inside [OkMin, OkMax] score
// 1, the score falls linearly to 0 at Low below the band and at High above it.
type Band struct {
	Low   float64 `json:"low" toml:"low"`
	OkMin float64 `json:"ok_min" toml:"ok_min"`
	OkMax float64 `json:"ok_max" toml:"ok_max"`
	High  float64 `json:"high" toml:"high"`
}

// Score returns the sub-score for v.
func (b Band) Score(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= b.OkMin && v <= b.OkMax:
		return 1
	case v < b.OkMin:
		if v <= b.Low {
			return 0
		}
		return (v - b.Low) / (b.OkMin - b.Low)
	default:
		if v >= b.High {
			return 0
		}
		return (b.High - v) / (b.High - b.OkMax)
	}
}

func (b Band) validate(name string) error {
	if !(b.Low <= b.OkMin && b.OkMin <= b.OkMax && b.OkMax <= b.High) {
		return invalid("%s band must satisfy low <= ok_min <= ok_max <= high, got %+v", name, b)
	}
	return nil
}

// PlankWeights weighs the five sub-scores into the overall score.
type PlankWeights struct {
	Hip   float64 `json:"hip" toml:"hip"`
	Head  float64 `json:"head" toml:"head"`
	Stack float64 `json:"stack" toml:"stack"`
	Under float64 `json:"under" toml:"under"`
	Feet  float64 `json:"feet" toml:"feet"`
}

func (w PlankWeights) sum() float64 {
	return w.Hip + w.Head + w.Stack + w.Under + w.Feet
}

// PlankConfig holds the plank scoring bands and timing.
type PlankConfig struct {
	VisibilityThreshold float64 `json:"visibility_threshold" toml:"visibility_threshold"`
	SmoothingAlpha      float64 `json:"smoothing_alpha" toml:"smoothing_alpha"`
	// ReadySeconds is how long the pose must stay stable before a hold starts.
	ReadySeconds float64 `json:"ready_seconds" toml:"ready_seconds"`
	// StableScore is the overall score a pose must exceed to be stable.
	StableScore float64      `json:"stable_score" toml:"stable_score"`
	Weights     PlankWeights `json:"weights" toml:"weights"`

	// Hip is the shoulder-hip-ankle angle, past 180 when piking.
	Hip Band `json:"hip" toml:"hip"`
	// Head is the ear-shoulder-hip angle.
	Head Band `json:"head" toml:"head"`
	// Twist is the vertical shoulder/hip misalignment over body scale.
	Twist Band `json:"twist" toml:"twist"`
	// Under is the horizontal support-to-shoulder offset over body scale.
	Under Band `json:"under" toml:"under"`
	// Feet is the ankle width over shoulder/hip width.
	Feet Band `json:"feet" toml:"feet"`

	HighPlankElbowAngle float64 `json:"high_plank_elbow_angle" toml:"high_plank_elbow_angle"`
}

// DefaultPlankConfig returns the default plank configuration.
func DefaultPlankConfig() PlankConfig {
	return PlankConfig{
		VisibilityThreshold: 0.5,
		SmoothingAlpha:      0.35,
		ReadySeconds:        1.0,
		StableScore:         50,
		Weights: PlankWeights{
			Hip:   0.35,
			Head:  0.15,
			Stack: 0.15,
			Under: 0.20,
			Feet:  0.15,
		},
		Hip:                 Band{Low: 150, OkMin: 165, OkMax: 180, High: 190},
		Head:                Band{Low: 120, OkMin: 150, OkMax: 180, High: 180},
		Twist:               Band{Low: 0, OkMin: 0, OkMax: 0.10, High: 0.30},
		Under:               Band{Low: 0, OkMin: 0, OkMax: 0.25, High: 0.75},
		Feet:                Band{Low: 0.2, OkMin: 0.6, OkMax: 1.6, High: 2.5},
		HighPlankElbowAngle: 150,
	}
}

// Validate checks that the weights sum to 1 and the bands are ordered.
func (c PlankConfig) Validate() error {
	if err := checkThreshold("visibility_threshold", c.VisibilityThreshold); err != nil {
		return err
	}
	if err := checkAlpha(c.SmoothingAlpha); err != nil {
		return err
	}
	if c.ReadySeconds < 0 {
		return invalid("ready_seconds must not be negative, got %v", c.ReadySeconds)
	}
	if c.StableScore < 0 || c.StableScore >= 100 {
		return invalid("stable_score must be in [0, 100), got %v", c.StableScore)
	}
	w := c.Weights
	if w.Hip < 0 || w.Head < 0 || w.Stack < 0 || w.Under < 0 || w.Feet < 0 {
		return invalid("weights must not be negative, got %+v", w)
	}
	if math.Abs(w.sum()-1) > 1e-6 {
		return invalid("weights must sum to 1, got %v", w.sum())
	}
	for name, b := range map[string]Band{
		"hip": c.Hip, "head": c.Head, "twist": c.Twist, "under": c.Under, "feet": c.Feet,
	} {
		if err := b.validate(name); err != nil {
			return err
		}
	}
	return nil
}

const (
	// minScale floors the shoulder-hip distance used to normalize ratios.
	minScale = 1.0
	// minFeetReference is the smallest shoulder/hip width, relative to body
	// scale, that the feet ratio is computed against. Narrower widths mean
	// a side view where foot spacing cannot be judged.
	minFeetReference = 0.05
	// highPlankWristDrop is the wrist-below-elbow distance, relative to body
	// scale, that marks a high plank.
	highPlankWristDrop = 0.25
	// pointsPerScoreRatio scales the weighted [0, 1] sum to a 0-100 score.
	pointsPerScoreRatio = 100
)

type plankPhase int

const (
	plankNotReady plankPhase = iota
	plankReady
	plankHolding
)

func (p plankPhase) String() string {
	switch p {
	case plankReady:
		return "READY"
	case plankHolding:
		return "HOLDING"
	default:
		return "NOT_READY"
	}
}

func (p plankPhase) stage() Stage {
	if p == plankHolding {
		return StageUp
	}
	return StageNeutral
}

// plankMachine is the readiness and hold timer state.
type plankMachine struct {
	phase      plankPhase
	readySince time.Time
	holdStart  time.Time
	hold       float64
	best       float64
	count      int
}

// step applies one stability observation taken at now.
func (m plankMachine) step(stable bool, now time.Time, readySeconds float64) plankMachine {
	if !stable {
		return m.drop()
	}

	switch m.phase {
	case plankNotReady:
		m.phase = plankReady
		m.readySince = now
	case plankReady:
		if now.Sub(m.readySince).Seconds() >= readySeconds {
			m.phase = plankHolding
			m.holdStart = now
			m.hold = 0
			m.count++
		}
	case plankHolding:
		if elapsed := now.Sub(m.holdStart).Seconds(); elapsed > m.hold {
			m.hold = elapsed
		}
		if m.hold > m.best {
			m.best = m.hold
		}
	}
	return m
}

// drop returns to NOT_READY, keeping the best hold and the count.
func (m plankMachine) drop() plankMachine {
	m.phase = plankNotReady
	m.readySince = time.Time{}
	m.holdStart = time.Time{}
	m.hold = 0
	return m
}

// plankSignals are the smoothed raw measurements.
type plankSignals struct {
	hip   float64
	head  float64
	twist float64
	under float64
	feet  float64
}

// plankIssue is a scored signal with the message shown when it is off.
type plankIssue struct {
	weight  float64
	score   float64
	message string
}

// Plank feedback text.
const (
	msgPlankNotVisible = "Keep your shoulders and knees visible to the camera"
	msgPlankCoreHidden = "Keep your shoulders, hips and ankles visible to the camera"
	msgHipsSagging     = "Lift your hips, they are sagging"
	msgHipsPiking      = "Lower your hips, they are piking up"
	msgHeadDropping    = "Keep your head in line with your spine"
	msgTwisting        = "Keep your shoulders and hips level, avoid twisting"
	msgHandsNotUnder   = "Place your hands under your shoulders"
	msgElbowsNotUnder  = "Place your elbows under your shoulders"
	msgFeetTooNarrow   = "Feet too narrow, set them hip-width apart"
	msgFeetTooWide     = "Feet too wide, bring them closer together"
	msgGetIntoPlank    = "Get into plank position"
	msgHoldSteady      = "Hold steady"
	msgKeepHolding     = "Great form, keep holding"
)

// PlankEvaluator scores plank posture and times holds.
type PlankEvaluator struct {
	cfg     PlankConfig
	clock   Clock
	machine plankMachine

	hip   pose.Smoother
	head  pose.Smoother
	twist pose.Smoother
	under pose.Smoother
	feet  pose.Smoother

	seen        bool
	gateOK      bool
	coreVisible bool
	highPlank   bool
	signals     plankSignals
	score       float64
	issue       string
}

// NewPlankEvaluator returns an evaluator in its initial state. A nil clock
// uses the system clock.
func NewPlankEvaluator(cfg PlankConfig, clock Clock) *PlankEvaluator {
	if clock == nil {
		clock = SystemClock{}
	}
	e := &PlankEvaluator{cfg: cfg, clock: clock}
	e.Reset()
	return e
}

// Kind returns KindPlank.
func (e *PlankEvaluator) Kind() Kind {
	return KindPlank
}

// Update advances the evaluator by one frame. The preferred side is ignored;
// the plank is measured on the midline.
func (e *PlankEvaluator) Update(frame pose.Frame, _ pose.Side) bool {
	if !frame.Complete() {
		return false
	}
	now := e.clock.Now()
	e.seen = true

	thr := e.cfg.VisibilityThreshold
	e.gateOK = frame.SideVisible(pose.SideLeft, thr, pose.Shoulder, pose.Knee) ||
		frame.SideVisible(pose.SideRight, thr, pose.Shoulder, pose.Knee)
	if !e.gateOK {
		e.score = 0
		e.issue = ""
		e.machine = e.machine.drop()
		return true
	}

	e.coreVisible = frame.SideVisible(pose.SideLeft, thr, pose.Shoulder, pose.Hip, pose.Ankle) &&
		frame.SideVisible(pose.SideRight, thr, pose.Shoulder, pose.Hip, pose.Ankle)

	e.signals = e.measure(frame)
	issues := e.issues()

	var total float64
	for _, is := range issues {
		total += is.weight * is.score
	}
	e.score = clamp(total*pointsPerScoreRatio, 0, 100)
	e.issue = worstIssue(issues)

	stable := e.score > e.cfg.StableScore && e.coreVisible
	e.machine = e.machine.step(stable, now, e.cfg.ReadySeconds)
	return true
}

// measure computes and smooths the five raw signals.
func (e *PlankEvaluator) measure(f pose.Frame) plankSignals {
	shoulder := e.mid(f, pose.Shoulder)
	hip := e.mid(f, pose.Hip)
	ankle := e.mid(f, pose.Ankle)
	ear := e.mid(f, pose.Ear)
	elbow := e.mid(f, pose.Elbow)
	wrist := e.mid(f, pose.Wrist)

	scale := math.Max(pose.Distance(shoulder, hip), minScale)

	thr := e.cfg.VisibilityThreshold
	if pose.IsVisible(elbow, thr) && pose.IsVisible(wrist, thr) {
		e.highPlank = wrist.Y-elbow.Y > highPlankWristDrop*scale
	} else {
		e.highPlank = pose.Angle(shoulder, elbow, wrist) > e.cfg.HighPlankElbowAngle
	}

	ls, rs := f.Point(pose.LeftShoulder), f.Point(pose.RightShoulder)
	lh, rh := f.Point(pose.LeftHip), f.Point(pose.RightHip)
	la, ra := f.Point(pose.LeftAnkle), f.Point(pose.RightAnkle)

	twist := math.Max(math.Abs(ls.Y-rs.Y), math.Abs(lh.Y-rh.Y)) / scale

	support := elbow
	if e.highPlank {
		support = wrist
	}
	under := math.Abs(support.X-shoulder.X) / scale

	feet := 1.0
	if ref := math.Max(math.Abs(ls.X-rs.X), math.Abs(lh.X-rh.X)); ref >= minFeetReference*scale {
		feet = math.Abs(la.X-ra.X) / ref
	}

	return plankSignals{
		hip:   e.hip.Next(hipLineAngle(shoulder, hip, ankle)),
		head:  e.head.Next(pose.Angle(ear, shoulder, hip)),
		twist: e.twist.Next(twist),
		under: e.under.Next(under),
		feet:  e.feet.Next(feet),
	}
}

// mid returns the midline point of joint j, using only the visible side
// when the other is hidden.
func (e *PlankEvaluator) mid(f pose.Frame, j pose.Joint) pose.Point {
	thr := e.cfg.VisibilityThreshold
	l, r := f.Joint(pose.SideLeft, j), f.Joint(pose.SideRight, j)
	lv, rv := pose.IsVisible(l, thr), pose.IsVisible(r, thr)
	switch {
	case lv && !rv:
		return l
	case rv && !lv:
		return r
	}
	return pose.Midpoint(l, r)
}

// hipLineAngle returns the shoulder-hip-ankle angle with a straight body at
// 180. Hips below the shoulder-ankle line read under 180, hips above it
// read over 180.
func hipLineAngle(shoulder, hip, ankle pose.Point) float64 {
	raw := pose.Angle(shoulder, hip, ankle)

	lineY := (shoulder.Y + ankle.Y) / 2
	if dx := ankle.X - shoulder.X; math.Abs(dx) > 1e-9 {
		t := (hip.X - shoulder.X) / dx
		lineY = shoulder.Y + t*(ankle.Y-shoulder.Y)
	}
	if hip.Y < lineY {
		return 360 - raw
	}
	return raw
}

// issues scores every signal against its band.
func (e *PlankEvaluator) issues() []plankIssue {
	cfg, sig := e.cfg, e.signals

	hip := plankIssue{weight: cfg.Weights.Hip, score: cfg.Hip.Score(sig.hip), message: msgHipsSagging}
	if sig.hip > cfg.Hip.OkMax {
		hip.message = msgHipsPiking
	}

	under := plankIssue{weight: cfg.Weights.Under, score: cfg.Under.Score(sig.under), message: msgElbowsNotUnder}
	if e.highPlank {
		under.message = msgHandsNotUnder
	}

	feet := plankIssue{weight: cfg.Weights.Feet, score: cfg.Feet.Score(sig.feet), message: msgFeetTooNarrow}
	if sig.feet > cfg.Feet.OkMax {
		feet.message = msgFeetTooWide
	}

	return []plankIssue{
		hip,
		{weight: cfg.Weights.Head, score: cfg.Head.Score(sig.head), message: msgHeadDropping},
		{weight: cfg.Weights.Stack, score: cfg.Twist.Score(sig.twist), message: msgTwisting},
		under,
		feet,
	}
}

// worstIssue returns the message of the signal losing the most weighted
// score, or "" when every signal is inside its band.
func worstIssue(issues []plankIssue) string {
	var (
		worst string
		loss  float64
	)
	for _, is := range issues {
		if is.score >= 1 {
			continue
		}
		if l := is.weight * (1 - is.score); worst == "" || l > loss {
			worst, loss = is.message, l
		}
	}
	return worst
}

// State returns the current plank state.
func (e *PlankEvaluator) State() State {
	m := e.machine
	s := State{
		Exercise: KindPlank,
		Count:    m.count,
		Stage:    m.phase.stage(),
		Phase:    m.phase.String(),
		Timer:    floatPtr(m.hold),
		BestHold: floatPtr(m.best),
		Score:    floatPtr(e.score),
	}
	if !e.seen {
		s.Feedback = msgGetIntoPlank
		return s
	}

	if !e.gateOK {
		s.Feedback = msgPlankNotVisible
		s.VisibilityIssue = true
		return s.finish(true)
	}

	s.Angles = map[string]float64{"hip": e.signals.hip, "head": e.signals.head}
	switch {
	case !e.coreVisible:
		s.Feedback = msgPlankCoreHidden
		s.VisibilityIssue = true
		return s.finish(true)
	case e.issue != "":
		s.Feedback = e.issue
		return s.finish(true)
	}

	switch m.phase {
	case plankHolding:
		s.Feedback = msgKeepHolding
	case plankReady:
		s.Feedback = msgHoldSteady
	default:
		s.Feedback = msgGetIntoPlank
	}
	return s.finish(false)
}

// Reset returns the evaluator to its initial state, clearing the best hold
// and smoothing history.
func (e *PlankEvaluator) Reset() {
	alpha := e.cfg.SmoothingAlpha
	e.machine = plankMachine{}
	e.hip = pose.NewSmoother(alpha)
	e.head = pose.NewSmoother(alpha)
	e.twist = pose.NewSmoother(alpha)
	e.under = pose.NewSmoother(alpha)
	e.feet = pose.NewSmoother(alpha)
	e.seen = false
	e.gateOK = false
	e.coreVisible = false
	e.highPlank = false
	e.signals = plankSignals{}
	e.score = 0
	e.issue = ""
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
