package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCurveValidation(t *testing.T) {
	tests := []struct {
		name    string
		points  []Point
		wantErr error
	}{
		{
			name:    "empty",
			points:  nil,
			wantErr: ErrNoPoints,
		},
		{
			name: "descending times",
			points: []Point{
				{Time: 1, Value: 0},
				{Time: 0.5, Value: 1},
			},
			wantErr: ErrUnorderedPoints,
		},
		{
			name: "duplicate times",
			points: []Point{
				{Time: 1, Value: 0},
				{Time: 1, Value: 1},
			},
			wantErr: ErrUnorderedPoints,
		},
		{
			name:   "single point",
			points: []Point{{Time: 0, Value: 0.5}},
		},
		{
			name: "ascending times",
			points: []Point{
				{Time: 0, Value: 0},
				{Time: 1, Value: 1},
				{Time: 2, Value: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCurve(tt.points)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
		})
	}
}

func TestCurveClampsOutsideRange(t *testing.T) {
	c, err := NewCurve([]Point{
		{Time: 1, Value: 0.2, Interp: Linear},
		{Time: 3, Value: 0.8},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.2, c.Value(-5), "before the first point the first value holds")
	assert.Equal(t, 0.2, c.Value(1))
	assert.Equal(t, 0.8, c.Value(3))
	assert.Equal(t, 0.8, c.Value(100), "after the last point the last value holds")
}

func TestStepInterpolation(t *testing.T) {
	c, err := NewCurve([]Point{
		{Time: 0, Value: 1, Interp: Step},
		{Time: 2, Value: 3, Interp: Step},
		{Time: 4, Value: 5},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, c.Value(0))
	assert.Equal(t, 1.0, c.Value(1.999))
	assert.Equal(t, 3.0, c.Value(2))
	assert.Equal(t, 3.0, c.Value(3.5))
	assert.Equal(t, 5.0, c.Value(4))
}

func TestLinearInterpolation(t *testing.T) {
	c, err := NewCurve([]Point{
		{Time: 0, Value: 0, Interp: Linear},
		{Time: 10, Value: 1},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.25, c.Value(2.5), 1e-12)
	assert.InDelta(t, 0.5, c.Value(5), 1e-12)
	assert.InDelta(t, 0.75, c.Value(7.5), 1e-12)
}

func TestBezierInterpolation(t *testing.T) {
	// Handles placed on the straight line between the endpoints make the
	// cubic degenerate to a linear ramp, which gives exact expectations.
	c, err := NewCurve([]Point{
		{
			Time: 0, Value: 0, Interp: Bezier,
			Ctrl1: [2]float64{1.0 / 3.0, 1.0 / 3.0},
			Ctrl2: [2]float64{2.0 / 3.0, 2.0 / 3.0},
		},
		{Time: 1, Value: 1},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.25, c.Value(0.25), 1e-6)
	assert.InDelta(t, 0.5, c.Value(0.5), 1e-6)
	assert.InDelta(t, 0.75, c.Value(0.75), 1e-6)

	// Monotone within the segment.
	prev := c.Value(0)
	for i := 1; i <= 100; i++ {
		v := c.Value(float64(i) / 100)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestEvaluationIsDeterministic(t *testing.T) {
	c, err := NewCurve([]Point{
		{
			Time: 0, Value: 0.1, Interp: Bezier,
			Ctrl1: [2]float64{0.2, 0.9},
			Ctrl2: [2]float64{0.8, 0.0},
		},
		{Time: 1, Value: 0.7, Interp: Linear},
		{Time: 2, Value: 0.3},
	})
	require.NoError(t, err)

	for _, tm := range []float64{0, 0.1, 0.37, 0.5, 0.99, 1.5, 2} {
		first := c.Value(tm)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, c.Value(tm), "t=%v must be bit-identical", tm)
		}
	}
}

func TestNewCurveCopiesPoints(t *testing.T) {
	pts := []Point{{Time: 0, Value: 1}}
	c, err := NewCurve(pts)
	require.NoError(t, err)

	pts[0].Value = 99
	assert.Equal(t, 1.0, c.Value(0), "mutating the input slice must not affect the curve")
}

func TestSnapshotSampling(t *testing.T) {
	gain, err := NewCurve([]Point{
		{Time: 0, Value: 0, Interp: Linear},
		{Time: 1, Value: 1},
	})
	require.NoError(t, err)

	key := ParamKey{Node: 7, Param: 0}
	snap := NewSnapshot(map[ParamKey]*Curve{key: gain})
	assert.Equal(t, 1, snap.Len())

	v, ok := snap.Sample(key, 0.5)
	require.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-12)

	_, ok = snap.Sample(ParamKey{Node: 8, Param: 0}, 0.5)
	assert.False(t, ok, "unbound parameter must report absence")

	_, ok = EmptySnapshot().Sample(key, 0.5)
	assert.False(t, ok)
}

func TestSnapshotCopiesCurveMap(t *testing.T) {
	c, err := NewCurve([]Point{{Time: 0, Value: 2}})
	require.NoError(t, err)

	src := map[ParamKey]*Curve{{Node: 1, Param: 0}: c}
	snap := NewSnapshot(src)
	delete(src, ParamKey{Node: 1, Param: 0})

	v, ok := snap.Sample(ParamKey{Node: 1, Param: 0}, 0)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}
