package engine

// Float64Value is the accessor pair a component mutates a target field
// through. Implement it per target type instead of handing components loose
// getter/setter closures.
type Float64Value interface {
	Get() float64
	Set(v float64)
}

type float64Var struct {
	p *float64
}

func (v float64Var) Get() float64  { return *v.p }
func (v float64Var) Set(f float64) { *v.p = f }

// Float64Var adapts a pointer into a Float64Value.
func Float64Var(p *float64) Float64Value {
	return float64Var{p: p}
}

type float64Func struct {
	get func() float64
	set func(float64)
}

func (v float64Func) Get() float64  { return v.get() }
func (v float64Func) Set(f float64) { v.set(f) }

// Float64Func adapts a get/set function pair into a Float64Value, for targets
// that are not addressable as a plain pointer.
func Float64Func(get func() float64, set func(float64)) Float64Value {
	return float64Func{get: get, set: set}
}
