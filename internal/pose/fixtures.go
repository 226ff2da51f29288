package pose

import "math"

// Builder assembles synthetic frames from pixel-space coordinates.
// It is used by tests to produce frames with known joint angles.
type Builder struct {
	width, height float64
	landmarks     []Landmark
}

// NewBuilder returns a Builder for a frame of the given pixel size. Every
// landmark starts at the image center with visibility 0.9.
func NewBuilder(width, height int) *Builder {
	b := &Builder{
		width:     float64(width),
		height:    float64(height),
		landmarks: make([]Landmark, NumLandmarks),
	}
	for i := range b.landmarks {
		b.landmarks[i] = Landmark{X: 0.5, Y: 0.5, Visibility: Vis(0.9)}
	}
	return b
}

// Set places landmark i at pixel coordinates (x, y).
func (b *Builder) Set(i int, x, y float64) *Builder {
	b.landmarks[i].X = x / b.width
	b.landmarks[i].Y = y / b.height
	return b
}

// SetBoth places the left and right landmarks of joint j at the same pixel
// coordinates, as seen from a pure side view.
func (b *Builder) SetBoth(j Joint, x, y float64) *Builder {
	b.Set(SideLeft.Index(j), x, y)
	b.Set(SideRight.Index(j), x, y)
	return b
}

// Visibility overrides the visibility of landmark i. nil means unknown.
func (b *Builder) Visibility(i int, v *float64) *Builder {
	b.landmarks[i].Visibility = v
	return b
}

// HideSide sets the visibility of the listed joints on side s to v.
func (b *Builder) HideSide(s Side, v float64, joints ...Joint) *Builder {
	for _, j := range joints {
		b.landmarks[s.Index(j)].Visibility = Vis(v)
	}
	return b
}

// Frame returns the built frame. The Builder can keep being modified.
func (b *Builder) Frame() Frame {
	lms := make([]Landmark, len(b.landmarks))
	copy(lms, b.landmarks)
	return Frame{
		Landmarks: lms,
		Width:     int(b.width),
		Height:    int(b.height),
	}
}

// rotate turns (x, y) by deg degrees.
func rotate(x, y, deg float64) (float64, float64) {
	r := deg * math.Pi / 180
	return x*math.Cos(r) - y*math.Sin(r), x*math.Sin(r) + y*math.Cos(r)
}

// PushupFrame returns a side-view push-up frame (1000x1000) whose elbow
// angle and knee angle equal the given values on both sides.
func PushupFrame(elbowDeg, kneeDeg float64) Frame {
	b := NewBuilder(1000, 1000)

	// Arm hangs from the shoulder; the wrist swings away from the upper arm.
	b.SetBoth(Shoulder, 400, 500)
	b.SetBoth(Elbow, 400, 600)
	dx, dy := rotate(0, -1, elbowDeg)
	b.SetBoth(Wrist, 400+100*dx, 600+100*dy)

	// Leg runs horizontally away from the hip, bending at the knee.
	b.SetBoth(Hip, 600, 500)
	b.SetBoth(Knee, 700, 500)
	dx, dy = rotate(-1, 0, kneeDeg)
	b.SetBoth(Ankle, 700+100*dx, 500+100*dy)

	b.SetBoth(Ear, 350, 480)
	return b.Frame()
}

// SquatFrame returns a side-view squat frame (1000x1000) with the given
// knee angle. shinTiltDeg rotates the shin around the knee; 0 keeps the
// ankle straight below the knee, negative values lift the hip above the
// knee for the same knee angle.
func SquatFrame(kneeDeg, shinTiltDeg float64) Frame {
	b := NewBuilder(1000, 1000)

	const (
		kx, ky = 500.0, 700.0
		shin   = 200.0
		thigh  = 200.0
		torso  = 250.0
	)

	ax, ay := rotate(0, 1, shinTiltDeg)
	b.SetBoth(Knee, kx, ky)
	b.SetBoth(Ankle, kx+shin*ax, ky+shin*ay)

	hx, hy := rotate(ax, ay, -kneeDeg)
	hipX, hipY := kx+thigh*hx, ky+thigh*hy
	b.SetBoth(Hip, hipX, hipY)
	b.SetBoth(Shoulder, hipX, hipY-torso)
	b.SetBoth(Ear, hipX, hipY-torso-40)
	b.SetBoth(Elbow, hipX+60, hipY-torso+80)
	b.SetBoth(Wrist, hipX+120, hipY-torso+80)
	return b.Frame()
}

// PlankFrame returns a side-view high plank (1000x1000). hipDrop moves the
// hips down (positive) or up (negative) in pixels from the straight line
// between shoulders and ankles.
func PlankFrame(hipDrop float64) Frame {
	b := NewBuilder(1000, 1000)
	b.SetBoth(Shoulder, 300, 500)
	b.SetBoth(Hip, 550, 500+hipDrop)
	b.SetBoth(Knee, 675, 500+hipDrop/2)
	b.SetBoth(Ankle, 800, 500)
	b.SetBoth(Ear, 220, 480)
	b.SetBoth(Elbow, 300, 600)
	b.SetBoth(Wrist, 300, 700)
	return b.Frame()
}
