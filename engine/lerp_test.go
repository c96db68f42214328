package engine_test

import (
	"fmt"
	"testing"

	"github.com/plus3/keel/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLerpVar(start float64, mode engine.LerpMode, speed float64) (*engine.Lerp, *float64) {
	v := start
	return engine.NewLerp("v", engine.Float64Var(&v), mode, speed), &v
}

func TestLinearSnapsToTargetOnOvershoot(t *testing.T) {
	// current=10, target=0, speed=5, dt=3: step magnitude 15 >= delta 10,
	// so the result is exactly 0, never negative.
	l, v := newLerpVar(10, engine.LerpLinear, 5)
	l.SetTarget(0)

	assert.True(t, l.Update(3))
	assert.Equal(t, 0.0, *v)

	// Settled: no further change.
	assert.False(t, l.Update(3))
	assert.Equal(t, 0.0, *v)
}

func TestLinearStepsTowardTarget(t *testing.T) {
	l, v := newLerpVar(10, engine.LerpLinear, 5)
	l.SetTarget(0)

	assert.True(t, l.Update(0.25))
	assert.Equal(t, 8.75, *v)
	assert.True(t, l.Update(0.25))
	assert.Equal(t, 7.5, *v)
}

func TestLinearMovesUpward(t *testing.T) {
	l, v := newLerpVar(-2, engine.LerpLinear, 4)
	l.SetTarget(6)

	assert.True(t, l.Update(1))
	assert.Equal(t, 2.0, *v)
	assert.True(t, l.Update(1))
	assert.Equal(t, 6.0, *v)
}

func TestAngularTakesShortArcThroughZero(t *testing.T) {
	// current=350°, target=10°: the short arc is 20° wide, through 360/0.
	l, v := newLerpVar(350, engine.LerpAngular, 100)
	l.SetTarget(10)

	// One large step covers the whole arc and snaps to the target.
	assert.True(t, l.Update(1))
	assert.Equal(t, 10.0, *v)
}

func TestAngularCrossesWrapBoundaryStepwise(t *testing.T) {
	l, v := newLerpVar(350, engine.LerpAngular, 100)
	l.SetTarget(10)

	// 10°/step: 350 -> 0 (wrapped) -> 10. Never the 340° long arc.
	assert.True(t, l.Update(0.1))
	assert.Equal(t, 0.0, *v)
	assert.True(t, l.Update(0.1))
	assert.Equal(t, 10.0, *v)
}

func TestAngularTakesShortArcDownward(t *testing.T) {
	l, v := newLerpVar(10, engine.LerpAngular, 100)
	l.SetTarget(350)

	assert.True(t, l.Update(0.1))
	assert.Equal(t, 0.0, *v)
	assert.True(t, l.Update(0.1))
	assert.Equal(t, 350.0, *v)
}

func TestAngularNormalizesStateFirst(t *testing.T) {
	l, v := newLerpVar(-10, engine.LerpAngular, 1000)
	l.SetTarget(725) // normalizes to 5; -10 normalizes to 350

	assert.True(t, l.Update(1))
	assert.Equal(t, 5.0, *v)
}

func TestFractionalTerminatesInBoundedSteps(t *testing.T) {
	tests := []struct {
		from, target, speed float64
	}{
		{0, 10, 1},
		{10, 0, 3},
		{-5, 5, 0.2},
		{1000, -1000, 0.05},
	}

	const dt = 1.0 / 60.0
	const maxSteps = 100000

	for _, tt := range tests {
		t.Run(fmt.Sprintf("from=%v,target=%v,speed=%v", tt.from, tt.target, tt.speed), func(t *testing.T) {
			l, v := newLerpVar(tt.from, engine.LerpFractional, tt.speed)
			l.SetTarget(tt.target)

			steps := 0
			for ; steps < maxSteps; steps++ {
				if !l.Update(dt) {
					break
				}
			}
			require.Less(t, steps, maxSteps, "fractional approach must terminate")
			assert.Equal(t, tt.target, *v, "must reach exact equality, not an asymptote")
		})
	}
}

func TestFractionalNeverOvershoots(t *testing.T) {
	l, v := newLerpVar(0, engine.LerpFractional, 0.5)
	l.SetTarget(1)

	prev := *v
	for i := 0; i < 10000; i++ {
		if !l.Update(1.0 / 60.0) {
			break
		}
		assert.LessOrEqual(t, prev, *v)
		assert.LessOrEqual(t, *v, 1.0)
		prev = *v
	}
	assert.Equal(t, 1.0, *v)
}

func TestRetargetMidFlight(t *testing.T) {
	l, v := newLerpVar(0, engine.LerpLinear, 10)
	l.SetTarget(100)

	assert.True(t, l.Update(1))
	assert.Equal(t, 10.0, *v)

	l.SetTarget(0)
	assert.True(t, l.Update(1))
	assert.Equal(t, 0.0, *v)
}

func TestLerpReportsValueUnderName(t *testing.T) {
	l, _ := newLerpVar(42, engine.LerpLinear, 1)
	assert.Equal(t, map[string]float64{"v": 42}, l.Values())
}

func TestFloat64Func(t *testing.T) {
	backing := 3.0
	val := engine.Float64Func(
		func() float64 { return backing },
		func(f float64) { backing = f },
	)

	assert.Equal(t, 3.0, val.Get())
	val.Set(7)
	assert.Equal(t, 7.0, backing)
}
