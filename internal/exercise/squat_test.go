package exercise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/formcoach/internal/pose"
)

func newSquat() *SquatCounter {
	return NewSquatCounter(DefaultSquatConfig())
}

var (
	standing = pose.SquatFrame(170, 0)
	deep     = pose.SquatFrame(80, 0)
	// hipsHigh bends the knee as far as deep but keeps the hip above the knee.
	hipsHigh = pose.SquatFrame(80, -20)
)

func TestSquatMachine_Step(t *testing.T) {
	stand := squatObservation{knee: 170, standing: true, visible: true}
	depth := squatObservation{knee: 80, depth: true, visible: true}
	mid := squatObservation{knee: 120, visible: true}

	t.Run("arms when standing", func(t *testing.T) {
		m := squatMachine{}.step(stand)
		assert.Equal(t, squatUp, m.phase)
	})

	t.Run("latches visibility at depth", func(t *testing.T) {
		m := squatMachine{phase: squatUp}.step(depth)
		assert.Equal(t, squatDown, m.phase)
		assert.True(t, m.qualified)
	})

	t.Run("losing visibility disqualifies", func(t *testing.T) {
		hidden := mid
		hidden.visible = false
		m := squatMachine{phase: squatDown, qualified: true}.step(hidden)
		assert.False(t, m.qualified)

		m = m.step(mid).step(stand)
		assert.Equal(t, squatUp, m.phase)
		assert.Equal(t, 0, m.count)
	})

	t.Run("counts a qualified rep", func(t *testing.T) {
		m := squatMachine{phase: squatDown, qualified: true, count: 4}.step(stand)
		assert.Equal(t, squatUp, m.phase)
		assert.Equal(t, 5, m.count)
		assert.False(t, m.qualified)
	})

	t.Run("tracks the bottom since standing", func(t *testing.T) {
		m := squatMachine{}.step(stand).step(mid).step(depth).step(mid)
		assert.Equal(t, 80.0, m.bottom)

		m = m.step(stand)
		assert.Equal(t, 170.0, m.bottom)
	})
}

func TestSquatCounter_CountsOneRep(t *testing.T) {
	c := newSquat()

	feed(c, repeat(standing, 10)...)
	assert.Equal(t, StageUp, c.State().Stage)

	s := feed(c, repeat(deep, 15)...)
	assert.Equal(t, StageDown, s.Stage)
	assert.Equal(t, 0, s.Count)

	s = feed(c, repeat(standing, 15)...)
	assert.Equal(t, StageUp, s.Stage)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, msgGoodForm, s.Feedback)
}

func TestSquatCounter_HipsAboveKneesDoNotCount(t *testing.T) {
	c := newSquat()

	feed(c, repeat(standing, 10)...)
	s := feed(c, repeat(hipsHigh, 15)...)
	assert.Equal(t, StageUp, s.Stage)
	assert.Equal(t, msgHipsBelowKnees, s.Feedback)
	assert.Contains(t, s.LandmarksNeedingImprovement, pose.LeftHip)

	s = feed(c, repeat(standing, 15)...)
	assert.Equal(t, 0, s.Count)
}

func TestSquatCounter_SmoothsAngles(t *testing.T) {
	c := newSquat()

	s := feed(c, standing)
	assert.InDelta(t, 170, s.Angles["knee"], 1e-6, "first sample passes through")

	s = feed(c, deep)
	assert.InDelta(t, 0.35*80+0.65*170, s.Angles["knee"], 1e-6)
	assert.Equal(t, StageUp, s.Stage, "one deep frame is not enough to reach depth")

	c.Reset()
	s = feed(c, deep)
	assert.InDelta(t, 80, s.Angles["knee"], 1e-6, "reset drops smoothing history")
}

func TestSquatCounter_LostVisibilityMidRep(t *testing.T) {
	c := newSquat()
	hidden := hide(pose.SquatFrame(80, 0), 0.1, pose.LeftKnee, pose.RightKnee)

	feed(c, repeat(standing, 10)...)
	feed(c, repeat(deep, 15)...)
	s := feed(c, hidden)
	assert.Equal(t, msgLegsNotVisible, s.Feedback)
	assert.True(t, s.VisibilityIssue)

	s = feed(c, repeat(standing, 15)...)
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, StageUp, s.Stage)

	// The next clean rep still counts.
	feed(c, repeat(deep, 15)...)
	s = feed(c, repeat(standing, 15)...)
	assert.Equal(t, 1, s.Count)
}

func TestSquatCounter_Feedback(t *testing.T) {
	t.Run("not deep enough", func(t *testing.T) {
		c := newSquat()
		feed(c, repeat(standing, 10)...)
		feed(c, repeat(pose.SquatFrame(120, 0), 10)...)

		s := feed(c, pose.SquatFrame(150, 0))
		assert.Equal(t, msgSquatDeeper, s.Feedback)
		assert.Equal(t, 0, s.Count)
	})

	t.Run("not standing fully", func(t *testing.T) {
		c := newSquat()
		feed(c, repeat(standing, 10)...)
		feed(c, repeat(deep, 15)...)
		s := feed(c, repeat(pose.SquatFrame(130, 0), 15)...)

		assert.Equal(t, StageDown, s.Stage)
		assert.Equal(t, msgStandFully, s.Feedback)
	})

	t.Run("descent is not flagged", func(t *testing.T) {
		c := newSquat()
		feed(c, repeat(standing, 10)...)
		s := feed(c, repeat(pose.SquatFrame(130, 0), 15)...)

		assert.Equal(t, StageUp, s.Stage)
		assert.Equal(t, msgGoodForm, s.Feedback)
		assert.True(t, s.IsCorrectForm)
	})

	t.Run("knees past toes", func(t *testing.T) {
		s := feed(newSquat(), pose.SquatFrame(170, 30))
		assert.Equal(t, msgKneesOverToes, s.Feedback)
		assert.Contains(t, s.LandmarksNeedingImprovement, pose.LeftFootIndex)
	})

	t.Run("torso lean in side view", func(t *testing.T) {
		s := feed(newSquat(), leaning(standing, 70, 0))
		assert.Equal(t, msgTorsoTooForward, s.Feedback)
		assert.InDelta(t, 70, s.Angles["lean"], 1e-6)
	})

	t.Run("torso lean ignored in front view", func(t *testing.T) {
		s := feed(newSquat(), leaning(standing, 70, 200))
		assert.Equal(t, msgGoodForm, s.Feedback)
	})
}

// leaning tilts both shoulders forward by deg from vertical around the hip
// and moves the right shoulder span pixels to the left.
func leaning(f pose.Frame, deg, span float64) pose.Frame {
	out := pose.Frame{Landmarks: append([]pose.Landmark(nil), f.Landmarks...), Width: f.Width, Height: f.Height}
	hip := out.Joint(pose.SideLeft, pose.Hip)
	r := deg * math.Pi / 180
	x, y := hip.X+250*math.Sin(r), hip.Y-250*math.Cos(r)
	out = setPx(out, pose.LeftShoulder, x, y)
	out = setPx(out, pose.RightShoulder, x-span, y)
	return out
}

func TestSquatCounter_ShortFrameIsNoop(t *testing.T) {
	c := newSquat()
	require.False(t, c.Update(pose.Frame{Landmarks: make([]pose.Landmark, 32)}, pose.SideAuto))
	assert.Equal(t, msgGetInPosition, c.State().Feedback)
}
