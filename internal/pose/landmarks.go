// Package pose provides body landmark types and the geometry and smoothing
// primitives used by the exercise evaluators.
package pose

// Body landmark indices following the MediaPipe BlazePose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// MinLandmarks is the smallest landmark count an evaluator will process.
const MinLandmarks = NumLandmarks

// Landmark is a single tracked point as reported by the pose model.
// X and Y are normalized to the image size, Z is relative depth.
// Visibility is nil when the model did not report a confidence.
type Landmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// Vis returns a pointer to v, for building landmarks with a known visibility.
func Vis(v float64) *float64 {
	return &v
}

// Point is a landmark rescaled into pixel space. Z is left unscaled.
type Point struct {
	X          float64
	Y          float64
	Z          float64
	Visibility *float64
}

// ToPoint rescales the landmark into pixel space for a frame of the given size.
func (l Landmark) ToPoint(width, height float64) Point {
	return Point{
		X:          l.X * width,
		Y:          l.Y * height,
		Z:          l.Z,
		Visibility: l.Visibility,
	}
}

// Frame is one set of landmarks together with the pixel size of the image
// they were detected in.
type Frame struct {
	Landmarks []Landmark `json:"landmarks"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Timestamp int64      `json:"timestamp,omitempty"` // milliseconds, informational
}

// Complete reports whether the frame carries the full landmark set.
func (f Frame) Complete() bool {
	return len(f.Landmarks) >= MinLandmarks
}

// W returns the frame width in pixels, treating unset sizes as 1.
func (f Frame) W() float64 {
	if f.Width <= 0 {
		return 1
	}
	return float64(f.Width)
}

// H returns the frame height in pixels, treating unset sizes as 1.
func (f Frame) H() float64 {
	if f.Height <= 0 {
		return 1
	}
	return float64(f.Height)
}

// Point returns landmark i in pixel space. Out of range indices yield the zero Point.
func (f Frame) Point(i int) Point {
	if i < 0 || i >= len(f.Landmarks) {
		return Point{}
	}
	return f.Landmarks[i].ToPoint(f.W(), f.H())
}

// Side selects the left or right half of the body.
type Side int

const (
	SideAuto Side = iota
	SideLeft
	SideRight
)

// String returns the lowercase side name.
func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "auto"
	}
}

// ParseSide parses "left", "right" or "auto". Anything else is SideAuto.
func ParseSide(s string) Side {
	switch s {
	case "left", "LEFT", "Left":
		return SideLeft
	case "right", "RIGHT", "Right":
		return SideRight
	default:
		return SideAuto
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(text []byte) error {
	*s = ParseSide(string(text))
	return nil
}

// Joint names a body joint independent of side.
type Joint int

const (
	Shoulder Joint = iota
	Elbow
	Wrist
	Hip
	Knee
	Ankle
	Ear
)

var jointIndices = map[Joint][2]int{
	Shoulder: {LeftShoulder, RightShoulder},
	Elbow:    {LeftElbow, RightElbow},
	Wrist:    {LeftWrist, RightWrist},
	Hip:      {LeftHip, RightHip},
	Knee:     {LeftKnee, RightKnee},
	Ankle:    {LeftAnkle, RightAnkle},
	Ear:      {LeftEar, RightEar},
}

// Index returns the landmark index of joint j on side s.
// SideAuto resolves to the left side.
func (s Side) Index(j Joint) int {
	idx := jointIndices[j]
	if s == SideRight {
		return idx[1]
	}
	return idx[0]
}

// Joint returns the pixel-space point of joint j on the given side.
func (f Frame) Joint(s Side, j Joint) Point {
	return f.Point(s.Index(j))
}

// SideVisible reports whether every listed joint on side s passes the
// visibility threshold.
func (f Frame) SideVisible(s Side, threshold float64, joints ...Joint) bool {
	for _, j := range joints {
		if !IsVisible(f.Joint(s, j), threshold) {
			return false
		}
	}
	return true
}

// meanVisibility averages the visibility of the listed joints, counting
// unknown visibility as 1.
func (f Frame) meanVisibility(s Side, joints ...Joint) float64 {
	if len(joints) == 0 {
		return 0
	}
	var sum float64
	for _, j := range joints {
		p := f.Joint(s, j)
		if p.Visibility == nil {
			sum += 1
			continue
		}
		sum += *p.Visibility
	}
	return sum / float64(len(joints))
}

// PickSide chooses which body side to measure.
//
// The preferred side wins when all its joints are visible. Otherwise the
// side that is fully visible is used; with SideAuto and both sides visible
// the one with the higher mean visibility wins (left on ties). When neither
// side qualifies the preferred side (left for SideAuto) is returned with
// ok=false so the caller can continue with a degraded measurement.
func PickSide(f Frame, preferred Side, threshold float64, joints ...Joint) (Side, bool) {
	left := f.SideVisible(SideLeft, threshold, joints...)
	right := f.SideVisible(SideRight, threshold, joints...)

	switch preferred {
	case SideLeft:
		if left {
			return SideLeft, true
		}
	case SideRight:
		if right {
			return SideRight, true
		}
	}

	switch {
	case left && right:
		if f.meanVisibility(SideRight, joints...) > f.meanVisibility(SideLeft, joints...) {
			return SideRight, true
		}
		return SideLeft, true
	case left:
		return SideLeft, true
	case right:
		return SideRight, true
	}

	if preferred == SideRight {
		return SideRight, false
	}
	return SideLeft, false
}
