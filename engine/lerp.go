package engine

import "math"

// LerpMode selects the interpolation rule a Lerp applies each tick.
type LerpMode int

const (
	// LerpLinear moves toward the target at a constant speed (units/s).
	LerpLinear LerpMode = iota

	// LerpAngular is LerpLinear on degrees, always taking the shorter arc.
	// State is normalized into [0, 360) before each step.
	LerpAngular

	// LerpFractional closes a fraction of the remaining distance per second
	// (exponential decay), with a minimum per-step magnitude and an epsilon
	// snap so the approach terminates in bounded steps.
	LerpFractional
)

const (
	// defaultEpsilon is the snap distance for fractional interpolation.
	defaultEpsilon = 1e-3

	// minFractionalRate floors the fractional step at this many units/s so a
	// decaying approach cannot take unbounded time.
	minFractionalRate = 0.5
)

// Lerp interpolates an accessor-wrapped value toward a target. All modes
// operate in closed form against the target: a step whose magnitude would
// overshoot snaps exactly to the target, never past it.
type Lerp struct {
	name    string
	value   Float64Value
	target  float64
	speed   float64
	mode    LerpMode
	epsilon float64
}

// NewLerp creates a lerp over the given value. Speed is units/s for linear
// and angular modes, and the decay rate (fraction of remaining distance per
// second) for fractional mode.
func NewLerp(name string, value Float64Value, mode LerpMode, speed float64) *Lerp {
	return &Lerp{
		name:    name,
		value:   value,
		target:  value.Get(),
		speed:   speed,
		mode:    mode,
		epsilon: defaultEpsilon,
	}
}

// Name returns the lerp's name, used as its reported value key.
func (l *Lerp) Name() string { return l.name }

// Target returns the current target.
func (l *Lerp) Target() float64 { return l.target }

// SetTarget retargets the interpolation. The current value is untouched.
func (l *Lerp) SetTarget(t float64) { l.target = t }

// SetEpsilon overrides the fractional snap distance.
func (l *Lerp) SetEpsilon(eps float64) { l.epsilon = eps }

// Update advances the value by one step and reports whether it moved.
func (l *Lerp) Update(dt float64) bool {
	switch l.mode {
	case LerpAngular:
		return l.stepAngular(dt)
	case LerpFractional:
		return l.stepFractional(dt)
	default:
		return l.stepLinear(dt)
	}
}

// Values implements Reporter.
func (l *Lerp) Values() map[string]float64 {
	return map[string]float64{l.name: l.value.Get()}
}

func (l *Lerp) stepLinear(dt float64) bool {
	cur := l.value.Get()
	delta := l.target - cur
	if delta == 0 {
		return false
	}
	step := l.speed * dt
	if math.Abs(delta) <= step {
		l.value.Set(l.target)
		return true
	}
	l.value.Set(cur + math.Copysign(step, delta))
	return true
}

func (l *Lerp) stepAngular(dt float64) bool {
	cur := normalizeDegrees(l.value.Get())
	target := normalizeDegrees(l.target)
	delta := target - cur
	// Take the shorter arc.
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	if delta == 0 {
		if cur != l.value.Get() {
			l.value.Set(cur)
		}
		return false
	}
	step := l.speed * dt
	if math.Abs(delta) <= step {
		l.value.Set(target)
		return true
	}
	l.value.Set(normalizeDegrees(cur + math.Copysign(step, delta)))
	return true
}

func (l *Lerp) stepFractional(dt float64) bool {
	cur := l.value.Get()
	delta := l.target - cur
	if delta == 0 {
		return false
	}
	if math.Abs(delta) <= l.epsilon {
		l.value.Set(l.target)
		return true
	}
	step := delta * math.Min(1, l.speed*dt)
	if minStep := minFractionalRate * dt; math.Abs(step) < minStep {
		step = math.Copysign(minStep, delta)
	}
	if math.Abs(step) >= math.Abs(delta) {
		l.value.Set(l.target)
		return true
	}
	l.value.Set(cur + step)
	return true
}

// normalizeDegrees maps an angle into [0, 360).
func normalizeDegrees(v float64) float64 {
	v = math.Mod(v, 360)
	if v < 0 {
		v += 360
	}
	return v
}
