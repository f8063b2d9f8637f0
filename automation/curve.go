// Package automation provides deterministic, time-addressable parameter
// curves for audio graph nodes.
//
// Curves are built and edited on the control context only. The audio
// context samples them through immutable Snapshots swapped in over the
// command channel, so evaluation never races with editing. Evaluation is
// a pure function of (curve, time): no allocation, no side effects, and
// bit-identical results for identical inputs.
package automation

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors for curve construction.
var (
	// ErrNoPoints indicates a curve with an empty control point list.
	ErrNoPoints = errors.New("curve has no control points")

	// ErrUnorderedPoints indicates control points whose times are not
	// strictly ascending.
	ErrUnorderedPoints = errors.New("control point times not strictly ascending")
)

// Interp selects how the curve moves from a control point to the next.
type Interp int

const (
	// Step holds the point's value until the next point.
	Step Interp = iota
	// Linear interpolates linearly to the next point.
	Linear
	// Bezier follows a cubic bezier segment to the next point, shaped
	// by the point's two control handles.
	Bezier
)

// Point is one control point of a curve. Interp describes the segment
// leaving this point. For Bezier segments, Ctrl1 and Ctrl2 are the two
// inner handles of the cubic, in absolute (time, value) coordinates;
// their times should lie between this point and the next for the segment
// to remain single-valued in time.
type Point struct {
	Time   float64
	Value  float64
	Interp Interp
	Ctrl1  [2]float64
	Ctrl2  [2]float64
}

// Curve is an immutable, ordered sequence of control points bound to one
// node parameter. Construct with NewCurve; do not mutate the point slice
// afterwards.
type Curve struct {
	points []Point
}

// NewCurve validates the points and builds a curve. Times must be
// strictly ascending and at least one point is required.
func NewCurve(points []Point) (*Curve, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	for i := 1; i < len(points); i++ {
		if points[i].Time <= points[i-1].Time {
			return nil, fmt.Errorf("point %d at t=%v after t=%v: %w",
				i, points[i].Time, points[i-1].Time, ErrUnorderedPoints)
		}
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return &Curve{points: cp}, nil
}

// Points returns the curve's control points. Callers must not modify the
// returned slice.
func (c *Curve) Points() []Point { return c.points }

// Value samples the curve at time t. Before the first point the first
// value holds; after the last point the last value holds. Safe to call
// from the audio context.
func (c *Curve) Value(t float64) float64 {
	pts := c.points
	if t <= pts[0].Time {
		return pts[0].Value
	}
	last := len(pts) - 1
	if t >= pts[last].Time {
		return pts[last].Value
	}

	// Find the segment containing t: pts[i].Time <= t < pts[i+1].Time.
	i := sort.Search(len(pts), func(k int) bool { return pts[k].Time > t }) - 1
	p0, p1 := pts[i], pts[i+1]

	switch p0.Interp {
	case Linear:
		u := (t - p0.Time) / (p1.Time - p0.Time)
		return p0.Value + u*(p1.Value-p0.Value)
	case Bezier:
		return bezierValue(p0, p1, t)
	default:
		return p0.Value
	}
}

// bezierValue evaluates a cubic bezier segment at the given time by
// solving the time component for the curve parameter with bisection and
// then evaluating the value component. The iteration count is fixed, so
// the cost is bounded and results are deterministic.
func bezierValue(p0, p1 Point, t float64) float64 {
	x0, y0 := p0.Time, p0.Value
	x1, y1 := p0.Ctrl1[0], p0.Ctrl1[1]
	x2, y2 := p0.Ctrl2[0], p0.Ctrl2[1]
	x3, y3 := p1.Time, p1.Value

	lo, hi := 0.0, 1.0
	var u float64
	for iter := 0; iter < 32; iter++ {
		u = (lo + hi) / 2
		if cubic(x0, x1, x2, x3, u) < t {
			lo = u
		} else {
			hi = u
		}
	}
	return cubic(y0, y1, y2, y3, u)
}

func cubic(a, b, c, d, u float64) float64 {
	v := 1 - u
	return v*v*v*a + 3*v*v*u*b + 3*v*u*u*c + u*u*u*d
}
