package pose

import "math"

// minNorm floors the product of vector lengths in angle computations.
const minNorm = 1e-9

// Angle returns the angle at vertex b, in degrees within [0, 180], between
// the vectors b→a and b→c. Depth is ignored.
// Coincident points produce a zero vector and yield 90 rather than NaN.
func Angle(a, b, c Point) float64 {
	v1x, v1y := a.X-b.X, a.Y-b.Y
	v2x, v2y := c.X-b.X, c.Y-b.Y

	dot := v1x*v2x + v1y*v2y
	norm := math.Hypot(v1x, v1y) * math.Hypot(v2x, v2y)
	return angleFromCos(dot, norm)
}

// Angle3D is Angle including the depth component.
func Angle3D(a, b, c Point) float64 {
	v1x, v1y, v1z := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	v2x, v2y, v2z := c.X-b.X, c.Y-b.Y, c.Z-b.Z

	dot := v1x*v2x + v1y*v2y + v1z*v2z
	n1 := math.Sqrt(v1x*v1x + v1y*v1y + v1z*v1z)
	n2 := math.Sqrt(v2x*v2x + v2y*v2y + v2z*v2z)
	return angleFromCos(dot, n1*n2)
}

func angleFromCos(dot, norm float64) float64 {
	if norm < minNorm {
		norm = minNorm
	}
	cos := dot / norm
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// Distance returns the 2D Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Midpoint averages two points. The result's visibility is the lower of the
// two known visibilities, or nil when neither is known.
func Midpoint(a, b Point) Point {
	m := Point{
		X: (a.X + b.X) / 2,
		Y: (a.Y + b.Y) / 2,
		Z: (a.Z + b.Z) / 2,
	}
	switch {
	case a.Visibility != nil && b.Visibility != nil:
		m.Visibility = Vis(math.Min(*a.Visibility, *b.Visibility))
	case a.Visibility != nil:
		m.Visibility = Vis(*a.Visibility)
	case b.Visibility != nil:
		m.Visibility = Vis(*b.Visibility)
	}
	return m
}

// IsVisible reports whether a point is trustworthy: its visibility is
// unknown or at least threshold.
func IsVisible(p Point, threshold float64) bool {
	if p.Visibility == nil {
		return true
	}
	return *p.Visibility >= threshold
}

// EMA blends current into previous with weight alpha on the new sample.
// When ok is false there is no history yet and current is returned as is.
// A non-positive alpha disables smoothing.
func EMA(previous float64, ok bool, current, alpha float64) float64 {
	if !ok || alpha <= 0 {
		return current
	}
	if alpha > 1 {
		alpha = 1
	}
	return alpha*current + (1-alpha)*previous
}

// Smoother holds the running value of an exponential moving average.
// The zero value is unset and smooths nothing until Alpha is set.
type Smoother struct {
	Alpha float64
	value float64
	ok    bool
}

// NewSmoother returns an unset Smoother with the given alpha.
func NewSmoother(alpha float64) Smoother {
	return Smoother{Alpha: alpha}
}

// Next feeds a sample and returns the smoothed value.
func (s *Smoother) Next(v float64) float64 {
	s.value = EMA(s.value, s.ok, v, s.Alpha)
	s.ok = true
	return s.value
}

// Value returns the smoothed value and whether any sample has been seen.
func (s *Smoother) Value() (float64, bool) {
	return s.value, s.ok
}

// Reset discards the smoothing history.
func (s *Smoother) Reset() {
	s.value = 0
	s.ok = false
}
